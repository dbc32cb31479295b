package config

import "time"

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			SampleRate:    16000,
			Device:        "",
			BufferSeconds: 8,
			ChunkSize:     1600, // 100ms at 16kHz
			PollInterval:  50 * time.Millisecond,
			MaxDuration:   2 * time.Minute,
		},
		VAD: VADConfig{
			Threshold:       0.015,
			MinSpeechChunks: 2,
			SilenceTimeout:  1500 * time.Millisecond,
		},
		Transcription: TranscriptionConfig{
			Provider: "openai",
			Model:    "whisper-1",
			Language: "",
		},
		Detection: DetectionConfig{
			WakePhrase:         "hey type",
			AmbiguityThreshold: 0.8,
		},
		Processing: ProcessingConfig{
			Mode: "dictation",
		},
		LLM: LLMConfig{
			Enabled: false,
		},
		Injection: InjectionConfig{
			Strategy:           "auto",
			ClipboardThreshold: 50,
			PreserveClipboard:  true,
			RestoreDelay:       200 * time.Millisecond,
			InterKeyDelay:      2 * time.Millisecond,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "",
		},
		Notifications: NotificationsConfig{
			Enabled: false,
			Type:    "none",
		},
		Providers: make(map[string]ProviderConfig),
		Keywords:  nil,
	}
}

// applyLLMDefaults enables all cleanup options when none is set explicitly.
func (c *Config) applyLLMDefaults() {
	pp := &c.LLM.PostProcessing
	if !pp.RemoveStutters && !pp.AddPunctuation && !pp.FixGrammar && !pp.RemoveFillerWords {
		pp.RemoveStutters = true
		pp.AddPunctuation = true
		pp.FixGrammar = true
		pp.RemoveFillerWords = true
	}
}
