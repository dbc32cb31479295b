package processing

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/voxpipe/voxpipe/internal/logging"
)

// Stage transforms dictation text. Stages are already-instantiated, trusted
// objects; loading and sandboxing third-party stages is the embedder's
// problem.
type Stage interface {
	Name() string
	// Priority orders the chain, lower first. Equal priorities keep
	// registration order.
	Priority() int
	// ApplicableModes limits the stage to specific modes; nil means all.
	ApplicableModes() []Mode
	Transform(ctx context.Context, text string, pc *Context) (string, error)
}

// Chain is the ordered, fail-open sequence of text transformers applied
// between transcription and injection. A failing stage is logged and
// skipped; its input text carries forward unchanged.
type Chain struct {
	log zerolog.Logger

	mu     sync.RWMutex
	stages []Stage
}

func NewChain() *Chain {
	return &Chain{log: logging.Component("processing")}
}

// Register adds a stage. Safe to call concurrently with Apply.
func (c *Chain) Register(s Stage) {
	c.mu.Lock()
	c.stages = append(c.stages, s)
	c.mu.Unlock()
}

// Len returns the registered stage count.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stages)
}

// Apply runs the chain over text. Stages run strictly sequentially, each
// receiving the previous stage's output. Apply never fails: the worst case
// is the input text unchanged.
func (c *Chain) Apply(ctx context.Context, text string, pc *Context) string {
	c.mu.RLock()
	stages := make([]Stage, len(c.stages))
	copy(stages, c.stages)
	c.mu.RUnlock()

	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Priority() < stages[j].Priority()
	})

	for _, stage := range stages {
		if !applies(stage, pc.Mode) {
			c.log.Debug().Str("stage", stage.Name()).Str("mode", string(pc.Mode)).
				Msg("stage skipped for mode")
			continue
		}
		out, err := stage.Transform(ctx, text, pc)
		if err != nil {
			// fail-open: discard the stage's output, keep going
			c.log.Warn().Err(err).Str("stage", stage.Name()).
				Msg("stage failed, passing text through unchanged")
			continue
		}
		text = out
	}
	return text
}

func applies(s Stage, mode Mode) bool {
	modes := s.ApplicableModes()
	if modes == nil {
		return true
	}
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}
