package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"

	"github.com/voxpipe/voxpipe/internal/logging"
	"github.com/voxpipe/voxpipe/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS utterances (
	id          TEXT PRIMARY KEY,
	created_at  TIMESTAMP NOT NULL,
	raw_text    TEXT NOT NULL,
	final_text  TEXT NOT NULL,
	language    TEXT,
	confidence  REAL,
	command_id  TEXT,
	duration_ms INTEGER
);
CREATE INDEX IF NOT EXISTS idx_utterances_created_at ON utterances(created_at);
`

// Entry is one recorded utterance.
type Entry struct {
	ID         string
	CreatedAt  time.Time
	RawText    string
	FinalText  string
	Language   string
	Confidence float64
	CommandID  string
	Duration   time.Duration
}

// Store persists pipeline results to a local SQLite database. Record is
// fire-and-forget: persistence failures never affect pipeline outcome.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// DefaultPath returns the default database location.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "voxpipe", "history.db"), nil
}

// Open opens (and migrates) the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}

	return &Store{db: db, log: logging.Component("history")}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record stores a pipeline result. Errors are logged, never returned.
func (s *Store) Record(result pipeline.Result) {
	_, err := s.db.Exec(`
		INSERT INTO utterances
			(id, created_at, raw_text, final_text, language, confidence, command_id, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, time.Now().UTC(), result.RawText, result.FinalText,
		result.Language, result.Confidence, result.CommandID,
		result.Duration.Milliseconds(),
	)
	if err != nil {
		s.log.Warn().Err(err).Str("id", result.ID).Msg("failed to record utterance")
	}
}

// Recent returns the latest n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, raw_text, final_text, language, confidence, command_id, duration_ms
		FROM utterances ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMs int64
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.RawText, &e.FinalText,
			&e.Language, &e.Confidence, &e.CommandID, &durationMs); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
