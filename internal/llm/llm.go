package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoModelLoaded = errors.New("no language model loaded")
	ErrPromptTooLong = errors.New("prompt too long")
	ErrBackend       = errors.New("llm backend error")
)

// Provider is the opaque language-model contract used for dictation
// post-processing. Implementations must honor ctx cancellation.
type Provider interface {
	Process(ctx context.Context, text string) (string, error)
}

// Config holds provider configuration.
type Config struct {
	Provider          string // "openai" or "ollama"
	APIKey            string
	Model             string
	URL               string // ollama base URL
	MaxPromptChars    int    // 0 = no limit
	RemoveStutters    bool
	AddPunctuation    bool
	FixGrammar        bool
	RemoveFillerWords bool
	Keywords          []string
}

// New creates a provider for the configured backend. The backend family is a
// closed set resolved here, at construction.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai llm: %w", ErrNoModelLoaded)
		}
		return NewOpenAIProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

func checkPromptLength(cfg Config, text string) error {
	if cfg.MaxPromptChars > 0 && len(text) > cfg.MaxPromptChars {
		return fmt.Errorf("%w: %d chars (limit %d)", ErrPromptTooLong, len(text), cfg.MaxPromptChars)
	}
	return nil
}
