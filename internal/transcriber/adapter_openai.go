package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/voxpipe/voxpipe/internal/logging"
)

// OpenAIService transcribes through an OpenAI-compatible audio endpoint.
type OpenAIService struct {
	client *openai.Client
	config Config
}

func NewOpenAIService(cfg Config) *OpenAIService {
	return &OpenAIService{
		client: openai.NewClient(cfg.APIKey),
		config: cfg,
	}
}

func (s *OpenAIService) Transcribe(ctx context.Context, samples []float32, params Params) (Result, error) {
	log := logging.Component("transcriber")

	if len(samples) == 0 {
		return Result{}, fmt.Errorf("%w: empty samples", ErrInferenceFailed)
	}

	model := s.config.Model
	if model == "" {
		model = openai.Whisper1
	}
	language := params.Language
	if language == "" {
		language = s.config.Language
	}

	req := openai.AudioRequest{
		Model:    model,
		Reader:   bytes.NewReader(encodeWAV(samples)),
		FilePath: "audio.wav",
		Language: language,
		Prompt:   params.Prompt,
	}

	start := time.Now()
	resp, err := s.client.CreateTranscription(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("transcription call failed")
		return Result{}, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}

	log.Debug().
		Dur("elapsed", elapsed).
		Int("samples", len(samples)).
		Str("text", resp.Text).
		Msg("transcription complete")

	// The plain transcription endpoint carries no per-segment scores; the
	// service-level contract reports full confidence and lets richer
	// backends fill in segments.
	return Result{
		Text:       resp.Text,
		Language:   language,
		Confidence: 1.0,
	}, nil
}
