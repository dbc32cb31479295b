package processing

import "time"

// Mode is the active dictation mode. Stages may opt out of modes.
type Mode string

const (
	ModeDictation Mode = "dictation"
	ModeEmail     Mode = "email"
	ModeCode      Mode = "code"
	ModeNotes     Mode = "notes"
)

// Context describes one utterance for the chain. It is immutable after
// construction; every stage receives the same value read-only.
type Context struct {
	Mode      Mode
	Language  string
	SourceApp string
	Duration  time.Duration
}
