package config

import (
	"os"

	"github.com/voxpipe/voxpipe/internal/audio"
	"github.com/voxpipe/voxpipe/internal/injection"
	"github.com/voxpipe/voxpipe/internal/llm"
	"github.com/voxpipe/voxpipe/internal/pipeline"
	"github.com/voxpipe/voxpipe/internal/processing"
	"github.com/voxpipe/voxpipe/internal/transcriber"
)

func (c *Config) ToAudioConfig() audio.Config {
	cfg := audio.DefaultConfig()
	cfg.SampleRate = c.Capture.SampleRate
	cfg.RingCapacity = c.Capture.SampleRate * c.Capture.BufferSeconds
	cfg.ChunkSize = c.Capture.ChunkSize
	cfg.PollInterval = c.Capture.PollInterval
	cfg.MaxDuration = c.Capture.MaxDuration
	cfg.VADThreshold = c.VAD.Threshold
	cfg.MinSpeechChunks = c.VAD.MinSpeechChunks
	cfg.SilenceTimeout = c.VAD.SilenceTimeout
	return cfg
}

func (c *Config) ToTranscriberConfig() transcriber.Config {
	return transcriber.Config{
		Provider: c.Transcription.Provider,
		APIKey:   c.resolveAPIKeyForProvider(c.Transcription.Provider),
		Model:    c.Transcription.Model,
		Language: c.Transcription.Language,
	}
}

func (c *Config) ToLLMConfig() llm.Config {
	cfg := llm.Config{
		Provider:          c.LLM.Provider,
		Model:             c.LLM.Model,
		URL:               c.LLM.URL,
		RemoveStutters:    c.LLM.PostProcessing.RemoveStutters,
		AddPunctuation:    c.LLM.PostProcessing.AddPunctuation,
		FixGrammar:        c.LLM.PostProcessing.FixGrammar,
		RemoveFillerWords: c.LLM.PostProcessing.RemoveFillerWords,
		Keywords:          c.Keywords,
	}
	if c.LLM.Provider != "" {
		cfg.APIKey = c.resolveAPIKeyForProvider(c.LLM.Provider)
	}
	return cfg
}

// IsLLMEnabled reports whether LLM post-processing is enabled and configured.
func (c *Config) IsLLMEnabled() bool {
	return c.LLM.Enabled && c.LLM.Provider != ""
}

// CustomLLMPrompt returns the user prompt template, empty when disabled.
func (c *Config) CustomLLMPrompt() string {
	if c.LLM.CustomPrompt.Enabled {
		return c.LLM.CustomPrompt.Prompt
	}
	return ""
}

func (c *Config) ToInjectionConfig() injection.Config {
	return injection.Config{
		Strategy:           injection.Strategy(c.Injection.Strategy),
		ClipboardThreshold: c.Injection.ClipboardThreshold,
		PreserveClipboard:  c.Injection.PreserveClipboard,
		RestoreDelay:       c.Injection.RestoreDelay,
		InterKeyDelay:      c.Injection.InterKeyDelay,
	}
}

func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Mode:               processing.Mode(c.Processing.Mode),
		Language:           c.Transcription.Language,
		AmbiguityThreshold: c.Detection.AmbiguityThreshold,
		SampleRate:         c.Capture.SampleRate,
	}
}

// NotifierType resolves the effective notifier kind.
func (c *Config) NotifierType() string {
	if !c.Notifications.Enabled {
		return "none"
	}
	return c.Notifications.Type
}

// resolveAPIKeyForProvider returns the API key for a provider, preferring the
// config file over the environment.
func (c *Config) resolveAPIKeyForProvider(providerName string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[providerName]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}
	if envVar := envVarForProvider(providerName); envVar != "" {
		return os.Getenv(envVar)
	}
	return ""
}

func envVarForProvider(providerName string) string {
	switch providerName {
	case "openai":
		return "OPENAI_API_KEY"
	case "ollama":
		return "" // local, no key
	default:
		return ""
	}
}
