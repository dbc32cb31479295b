package notify

import (
	"github.com/gen2brain/beeep"

	"github.com/voxpipe/voxpipe/internal/logging"
)

// Notifier surfaces pipeline milestones to the user.
type Notifier interface {
	CaptureStarted()
	CaptureStopped()
	InjectionComplete(chars int)
	CommandExecuted(id string)
	Error(msg string)
}

// Desktop sends desktop notifications through beeep.
type Desktop struct{}

func (Desktop) CaptureStarted() {
	send("Voxpipe", "Listening…")
}

func (Desktop) CaptureStopped() {
	send("Voxpipe", "Transcribing…")
}

func (Desktop) InjectionComplete(chars int) {
	// intentionally quiet: injected text is its own feedback
}

func (Desktop) CommandExecuted(id string) {
	send("Voxpipe", "Command: "+id)
}

func (Desktop) Error(msg string) {
	if err := beeep.Alert("Voxpipe", msg, ""); err != nil {
		l := logging.Component("notify")
		l.Warn().Err(err).Msg("failed to send alert")
	}
}

func send(title, body string) {
	if err := beeep.Notify(title, body, ""); err != nil {
		l := logging.Component("notify")
		l.Warn().Err(err).Msg("failed to send notification")
	}
}

// Log writes notifications to the log only.
type Log struct{}

func (Log) CaptureStarted() {
	l := logging.Component("notify")
	l.Info().Msg("capture started")
}

func (Log) CaptureStopped() {
	l := logging.Component("notify")
	l.Info().Msg("capture stopped")
}

func (Log) InjectionComplete(chars int) {
	l := logging.Component("notify")
	l.Info().Int("chars", chars).Msg("injection complete")
}

func (Log) CommandExecuted(id string) {
	l := logging.Component("notify")
	l.Info().Str("command", id).Msg("command executed")
}

func (Log) Error(msg string) {
	l := logging.Component("notify")
	l.Error().Msg(msg)
}

// Nop does nothing. Useful in tests and headless builds.
type Nop struct{}

func (Nop) CaptureStarted()        {}
func (Nop) CaptureStopped()        {}
func (Nop) InjectionComplete(int)  {}
func (Nop) CommandExecuted(string) {}
func (Nop) Error(string)           {}

// ForType resolves a configured notifier type.
func ForType(kind string) Notifier {
	switch kind {
	case "desktop":
		return Desktop{}
	case "log":
		return Log{}
	default:
		return Nop{}
	}
}
