package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.Mutex
	root zerolog.Logger = zerolog.New(consoleWriter()).With().Timestamp().Logger()
)

func consoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
}

// Setup configures the root logger. An empty dir keeps console-only output;
// otherwise a voxpipe.log file in dir is appended alongside the console.
func Setup(level string, dir string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{consoleWriter()}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(dir, "voxpipe.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	mu.Lock()
	root = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
	return nil
}

// Component returns a sub-logger tagged with the component name.
func Component(name string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root.With().Str("component", name).Logger()
}
