package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/voxpipe/voxpipe/internal/logging"
)

var (
	ErrNoHandler        = errors.New("no handler registered for command")
	ErrDuplicateCommand = errors.New("command already registered")
	ErrUnknownCommand   = errors.New("unknown command")
)

// Definition describes a registerable voice command. Triggers may contain
// {name} placeholders; a placeholder binds one spoken word, except in
// trailing position where it consumes the rest of the utterance.
type Definition struct {
	ID          string
	Triggers    []string
	Description string
}

// ParsedCommand is a recognized command occurrence.
type ParsedCommand struct {
	ID         string
	Args       map[string]string
	Text       string  // originating utterance
	Confidence float64 // [0,1]
}

// Result is what a command handler reports back.
type Result struct {
	Success bool
	Message string
}

// Handler executes a parsed command.
type Handler func(ctx context.Context, cmd ParsedCommand) (Result, error)

// Kind tags a ParseResult variant.
type Kind int

const (
	KindDictation Kind = iota
	KindCommand
	KindAmbiguous
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindAmbiguous:
		return "ambiguous"
	default:
		return "dictation"
	}
}

// ParseResult is the tagged outcome of Parse. Command and Dictation are
// mutually exclusive except for KindAmbiguous, where Command holds the
// candidate match and Dictation the trailing text.
type ParseResult struct {
	Kind      Kind
	Command   ParsedCommand
	Dictation string
}

type registration struct {
	def     Definition
	handler Handler
}

// Detector matches transcribed utterances against registered commands.
// An utterance engages command mode only when it begins with the wake
// phrase; the wake phrase is stripped before matching and confidence is
// computed on the remainder.
type Detector struct {
	wakePhrase string
	log        zerolog.Logger

	mu   sync.RWMutex
	regs []registration // evaluated in registration order
}

func NewDetector(wakePhrase string) *Detector {
	return &Detector{
		wakePhrase: strings.ToLower(strings.TrimSpace(wakePhrase)),
		log:        logging.Component("command"),
	}
}

// Register adds a command definition with its handler. A nil handler is
// allowed; executing the command then fails with ErrNoHandler.
func (d *Detector) Register(def Definition, handler Handler) error {
	if def.ID == "" {
		return fmt.Errorf("command definition needs an ID")
	}
	if len(def.Triggers) == 0 {
		return fmt.Errorf("command %q needs at least one trigger", def.ID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, reg := range d.regs {
		if reg.def.ID == def.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateCommand, def.ID)
		}
	}
	d.regs = append(d.regs, registration{def: def, handler: handler})
	return nil
}

// Unregister removes a command by ID.
func (d *Detector) Unregister(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, reg := range d.regs {
		if reg.def.ID == id {
			d.regs = append(d.regs[:i], d.regs[i+1:]...)
			return
		}
	}
}

// Definitions lists registered commands in registration order.
func (d *Detector) Definitions() []Definition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	defs := make([]Definition, 0, len(d.regs))
	for _, reg := range d.regs {
		defs = append(defs, reg.def)
	}
	return defs
}

// Parse classifies an utterance. Without the wake prefix everything is
// dictation. First matching definition wins; a match consuming the entire
// remainder yields confidence 1.0, trailing text yields an ambiguous result
// with confidence scaled down by the trailing share.
func (d *Detector) Parse(text string) ParseResult {
	trimmed := strings.TrimSpace(text)
	remainder := trimmed

	if d.wakePhrase != "" {
		lower := strings.ToLower(trimmed)
		if !strings.HasPrefix(lower, d.wakePhrase) {
			return ParseResult{Kind: KindDictation, Dictation: text}
		}
		rest := trimmed[len(d.wakePhrase):]
		if rest != "" && !strings.HasPrefix(rest, " ") {
			// wake phrase matched mid-word, e.g. "hey typewriter"
			return ParseResult{Kind: KindDictation, Dictation: text}
		}
		remainder = strings.TrimSpace(rest)
	}
	if remainder == "" {
		return ParseResult{Kind: KindDictation, Dictation: text}
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	words := strings.Fields(remainder)
	for _, reg := range d.regs {
		for _, trigger := range reg.def.Triggers {
			args, consumed, ok := matchTrigger(trigger, words)
			if !ok {
				continue
			}
			cmd := ParsedCommand{
				ID:   reg.def.ID,
				Args: args,
				Text: text,
			}
			if consumed == len(words) {
				cmd.Confidence = 1.0
				return ParseResult{Kind: KindCommand, Command: cmd}
			}
			trailing := strings.Join(words[consumed:], " ")
			cmd.Confidence = float64(len(remainder)-len(trailing)) / float64(len(remainder))
			return ParseResult{
				Kind:      KindAmbiguous,
				Command:   cmd,
				Dictation: trailing,
			}
		}
	}

	return ParseResult{Kind: KindDictation, Dictation: remainder}
}

// Execute runs the handler for a parsed command.
func (d *Detector) Execute(ctx context.Context, cmd ParsedCommand) (Result, error) {
	d.mu.RLock()
	var handler Handler
	found := false
	for _, reg := range d.regs {
		if reg.def.ID == cmd.ID {
			handler = reg.handler
			found = true
			break
		}
	}
	d.mu.RUnlock()

	if !found {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.ID)
	}
	if handler == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNoHandler, cmd.ID)
	}

	d.log.Debug().Str("command", cmd.ID).Msg("executing command")
	return handler(ctx, cmd)
}

// matchTrigger matches a trigger pattern against utterance words
// case-insensitively. Returns extracted placeholder args and how many words
// were consumed.
func matchTrigger(trigger string, words []string) (map[string]string, int, bool) {
	pattern := strings.Fields(strings.ToLower(trigger))
	if len(pattern) == 0 || len(words) < len(pattern) {
		return nil, 0, false
	}

	args := make(map[string]string)
	for i, p := range pattern {
		if name, ok := placeholderName(p); ok {
			if i == len(pattern)-1 {
				// trailing placeholder consumes the rest
				args[name] = strings.Join(words[i:], " ")
				return args, len(words), true
			}
			args[name] = words[i]
			continue
		}
		if !strings.EqualFold(p, words[i]) {
			return nil, 0, false
		}
	}
	return args, len(pattern), true
}

func placeholderName(word string) (string, bool) {
	if strings.HasPrefix(word, "{") && strings.HasSuffix(word, "}") && len(word) > 2 {
		return word[1 : len(word)-1], true
	}
	return "", false
}
