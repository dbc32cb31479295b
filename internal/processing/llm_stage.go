package processing

import (
	"context"
	"fmt"

	"github.com/voxpipe/voxpipe/internal/llm"
)

// LLMPriority orders the built-in stage ahead of typical plugins.
const LLMPriority = 100

// LLMStage is the built-in chain stage wrapping language-model
// post-processing. Each mode may carry its own prompt template with
// {{transcription}} and {{context}} placeholders.
type LLMStage struct {
	provider llm.Provider
	prompts  map[Mode]string
	modes    []Mode
}

// NewLLMStage builds the stage. prompts may be nil; the provider then
// receives the raw transcription. modes limits applicability (nil = all).
func NewLLMStage(provider llm.Provider, prompts map[Mode]string, modes []Mode) *LLMStage {
	return &LLMStage{provider: provider, prompts: prompts, modes: modes}
}

func (s *LLMStage) Name() string            { return "llm" }
func (s *LLMStage) Priority() int           { return LLMPriority }
func (s *LLMStage) ApplicableModes() []Mode { return s.modes }

func (s *LLMStage) Transform(ctx context.Context, text string, pc *Context) (string, error) {
	resolved := llm.ResolveTemplate(s.prompts[pc.Mode], text, contextString(pc))
	out, err := s.provider.Process(ctx, resolved)
	if err != nil {
		return "", err
	}
	return out, nil
}

func contextString(pc *Context) string {
	if pc.SourceApp == "" {
		return ""
	}
	return fmt.Sprintf("target application: %s", pc.SourceApp)
}
