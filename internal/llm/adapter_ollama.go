package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxpipe/voxpipe/internal/logging"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "qwen2.5:0.5b"
)

// OllamaProvider implements Provider against a local or remote Ollama
// server.
type OllamaProvider struct {
	baseURL    string
	model      string
	config     Config
	httpClient *http.Client
}

func NewOllamaProvider(cfg Config) *OllamaProvider {
	url := cfg.URL
	if url == "" {
		url = defaultOllamaURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(url, "/"),
		model:      model,
		config:     cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	System  string `json:"system,omitempty"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (p *OllamaProvider) Process(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if err := checkPromptLength(p.config, text); err != nil {
		return "", err
	}

	log := logging.Component("llm")

	reqBody := generateRequest{
		Model:  p.model,
		Prompt: text,
		System: BuildSystemPrompt(p.config),
		Stream: false,
	}
	reqBody.Options.Temperature = 0.3

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrBackend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrBackend, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: model %q not available", ErrNoModelLoaded, p.model)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrBackend, resp.StatusCode, string(body))
	}

	var gen generateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrBackend, err)
	}
	if gen.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrBackend, gen.Error)
	}

	result := strings.TrimSpace(gen.Response)
	log.Debug().Dur("elapsed", time.Since(start)).Str("model", p.model).Msg("ollama generate complete")
	return result, nil
}
