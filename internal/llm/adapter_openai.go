package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/voxpipe/voxpipe/internal/logging"
)

// OpenAIProvider implements Provider using OpenAI chat completions.
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(cfg.APIKey),
		config: cfg,
	}
}

func (p *OpenAIProvider) Process(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	if err := checkPromptLength(p.config, text); err != nil {
		return "", err
	}

	log := logging.Component("llm")

	model := p.config.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: BuildSystemPrompt(p.config)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.3, // low temperature for consistent cleanup
	}

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("chat completion failed")
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices", ErrBackend)
	}

	result := resp.Choices[0].Message.Content
	log.Debug().Dur("elapsed", elapsed).Str("in", text).Str("out", result).Msg("processed")
	return result, nil
}
