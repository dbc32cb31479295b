package config

import "time"

type Config struct {
	Capture       CaptureConfig             `toml:"capture"`
	VAD           VADConfig                 `toml:"vad"`
	Transcription TranscriptionConfig       `toml:"transcription"`
	Detection     DetectionConfig           `toml:"detection"`
	Processing    ProcessingConfig          `toml:"processing"`
	LLM           LLMConfig                 `toml:"llm"`
	Injection     InjectionConfig           `toml:"injection"`
	History       HistoryConfig             `toml:"history"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Providers     map[string]ProviderConfig `toml:"providers"`
	Keywords      []string                  `toml:"keywords"`
}

type CaptureConfig struct {
	SampleRate    int           `toml:"sample_rate"`
	Device        string        `toml:"device"`
	BufferSeconds int           `toml:"buffer_seconds"` // ring capacity
	ChunkSize     int           `toml:"chunk_size"`     // samples per VAD chunk
	PollInterval  time.Duration `toml:"poll_interval"`
	MaxDuration   time.Duration `toml:"max_duration"` // hard bound per segment
}

type VADConfig struct {
	Threshold       float64       `toml:"threshold"` // RMS energy
	MinSpeechChunks int           `toml:"min_speech_chunks"`
	SilenceTimeout  time.Duration `toml:"silence_timeout"`
}

type TranscriptionConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	Language string `toml:"language"` // ISO-639-1, empty for auto-detect
}

type DetectionConfig struct {
	WakePhrase         string  `toml:"wake_phrase"`
	AmbiguityThreshold float64 `toml:"ambiguity_threshold"`
}

type ProcessingConfig struct {
	Mode string `toml:"mode"` // dictation, email, code, notes
}

// LLMConfig configures the LLM post-processing stage.
type LLMConfig struct {
	Enabled        bool                    `toml:"enabled"`
	Provider       string                  `toml:"provider"`
	Model          string                  `toml:"model"`
	URL            string                  `toml:"url"` // ollama endpoint
	PostProcessing LLMPostProcessingConfig `toml:"post_processing"`
	CustomPrompt   LLMCustomPromptConfig   `toml:"custom_prompt"`
}

type LLMPostProcessingConfig struct {
	RemoveStutters    bool `toml:"remove_stutters"`
	AddPunctuation    bool `toml:"add_punctuation"`
	FixGrammar        bool `toml:"fix_grammar"`
	RemoveFillerWords bool `toml:"remove_filler_words"`
}

type LLMCustomPromptConfig struct {
	Enabled bool   `toml:"enabled"`
	Prompt  string `toml:"prompt"`
}

type InjectionConfig struct {
	Strategy           string        `toml:"strategy"` // auto, keystroke, clipboard, direct
	ClipboardThreshold int           `toml:"clipboard_threshold"`
	PreserveClipboard  bool          `toml:"preserve_clipboard"`
	RestoreDelay       time.Duration `toml:"restore_delay"`
	InterKeyDelay      time.Duration `toml:"inter_key_delay"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // empty for the default cache location
}

type NotificationsConfig struct {
	Enabled bool   `toml:"enabled"`
	Type    string `toml:"type"` // "desktop", "log", "none"
}

// ProviderConfig holds the API key for a provider.
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}
