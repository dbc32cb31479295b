package transcriber

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoModelLoaded means the backing inference service has no model
	// resolved; the caller must address the configuration, retries won't
	// help.
	ErrNoModelLoaded = errors.New("no transcription model loaded")
	// ErrInferenceFailed wraps a backend inference failure.
	ErrInferenceFailed = errors.New("transcription inference failed")
)

// Params tunes a single transcription call.
type Params struct {
	Language string // ISO-639-1, empty for auto-detect
	Prompt   string // optional context hint
}

// SegmentText is one timed span of the transcription.
type SegmentText struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Result is the outcome of one transcription call.
type Result struct {
	Text       string
	Segments   []SegmentText
	Language   string
	Confidence float64 // [0,1]
}

// Service is the opaque speech-to-text contract. Samples are mono float32 at
// 16 kHz. Implementations must honor ctx cancellation.
type Service interface {
	Transcribe(ctx context.Context, samples []float32, params Params) (Result, error)
}

// Config selects and configures a transcription backend.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	Language string
}

// New creates the transcription service for the configured provider.
func New(cfg Config) (Service, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai transcription: %w", ErrNoModelLoaded)
		}
		return NewOpenAIService(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s", cfg.Provider)
	}
}
