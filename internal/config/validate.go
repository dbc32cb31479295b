package config

import "fmt"

func (c *Config) Validate() error {
	if c.Capture.SampleRate <= 0 {
		return fmt.Errorf("invalid capture.sample_rate: %d", c.Capture.SampleRate)
	}
	if c.Capture.BufferSeconds <= 0 {
		return fmt.Errorf("invalid capture.buffer_seconds: %d", c.Capture.BufferSeconds)
	}
	if c.Capture.ChunkSize <= 0 {
		return fmt.Errorf("invalid capture.chunk_size: %d", c.Capture.ChunkSize)
	}
	if c.Capture.PollInterval <= 0 {
		return fmt.Errorf("invalid capture.poll_interval: %v", c.Capture.PollInterval)
	}
	if c.Capture.MaxDuration <= 0 {
		return fmt.Errorf("invalid capture.max_duration: %v", c.Capture.MaxDuration)
	}

	if c.VAD.Threshold < 0 || c.VAD.Threshold >= 1 {
		return fmt.Errorf("invalid vad.threshold: %v (must be in [0, 1))", c.VAD.Threshold)
	}
	if c.VAD.MinSpeechChunks <= 0 {
		return fmt.Errorf("invalid vad.min_speech_chunks: %d", c.VAD.MinSpeechChunks)
	}
	if c.VAD.SilenceTimeout <= 0 {
		return fmt.Errorf("invalid vad.silence_timeout: %v", c.VAD.SilenceTimeout)
	}

	if c.Transcription.Provider == "" {
		return fmt.Errorf("invalid transcription.provider: empty")
	}
	switch c.Transcription.Provider {
	case "openai":
		if c.resolveAPIKeyForProvider("openai") == "" {
			return fmt.Errorf("OpenAI API key required: not found in config (providers.openai.api_key) or environment variable (OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("unsupported transcription.provider: %s (must be openai)", c.Transcription.Provider)
	}
	if c.Transcription.Language != "" && !isValidLanguageCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", c.Transcription.Language)
	}

	if c.Detection.AmbiguityThreshold < 0 || c.Detection.AmbiguityThreshold > 1 {
		return fmt.Errorf("invalid detection.ambiguity_threshold: %v (must be in [0, 1])", c.Detection.AmbiguityThreshold)
	}

	validModes := map[string]bool{"dictation": true, "email": true, "code": true, "notes": true}
	if !validModes[c.Processing.Mode] {
		return fmt.Errorf("invalid processing.mode: %s (must be dictation, email, code, or notes)", c.Processing.Mode)
	}

	if c.LLM.Enabled {
		if c.LLM.Provider == "" {
			return fmt.Errorf("llm.provider required when llm.enabled = true")
		}
		validLLMProviders := map[string]bool{"openai": true, "ollama": true}
		if !validLLMProviders[c.LLM.Provider] {
			return fmt.Errorf("invalid llm.provider: %s (must be openai or ollama)", c.LLM.Provider)
		}
		if c.LLM.Provider == "openai" && c.resolveAPIKeyForProvider("openai") == "" {
			return fmt.Errorf("OpenAI API key required for LLM: not found in config (providers.openai.api_key) or environment variable (OPENAI_API_KEY)")
		}
	}

	validStrategies := map[string]bool{"auto": true, "keystroke": true, "clipboard": true, "direct": true}
	if !validStrategies[c.Injection.Strategy] {
		return fmt.Errorf("invalid injection.strategy: %s (must be auto, keystroke, clipboard, or direct)", c.Injection.Strategy)
	}
	if c.Injection.ClipboardThreshold <= 0 {
		return fmt.Errorf("invalid injection.clipboard_threshold: %d", c.Injection.ClipboardThreshold)
	}
	if c.Injection.RestoreDelay < 0 {
		return fmt.Errorf("invalid injection.restore_delay: %v", c.Injection.RestoreDelay)
	}
	if c.Injection.InterKeyDelay < 0 {
		return fmt.Errorf("invalid injection.inter_key_delay: %v", c.Injection.InterKeyDelay)
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}

func isValidLanguageCode(code string) bool {
	validCodes := map[string]bool{
		"en": true, "es": true, "fr": true, "de": true, "it": true, "pt": true,
		"ru": true, "ja": true, "ko": true, "zh": true, "ar": true, "hi": true,
		"nl": true, "sv": true, "da": true, "no": true, "fi": true, "pl": true,
		"tr": true, "he": true, "th": true, "vi": true, "id": true, "ms": true,
		"uk": true, "cs": true, "hu": true, "ro": true, "bg": true, "hr": true,
	}
	return validCodes[code]
}
