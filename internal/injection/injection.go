package injection

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/voxpipe/voxpipe/internal/logging"
	"github.com/voxpipe/voxpipe/internal/permission"
)

var (
	ErrEmptyText         = errors.New("cannot inject empty text")
	ErrFieldNotEditable  = errors.New("active field is not editable")
	ErrPermissionDenied  = errors.New("accessibility permission denied")
	ErrDirectUnavailable = errors.New("direct-set backend unavailable")
)

// Strategy selects how text reaches the target application.
type Strategy string

const (
	StrategyAuto      Strategy = "auto"
	StrategyKeystroke Strategy = "keystroke"
	StrategyClipboard Strategy = "clipboard"
	StrategyDirect    Strategy = "direct"
)

// DefaultClipboardThreshold is the automatic-selection boundary: shorter
// texts are typed, longer ones pasted.
const DefaultClipboardThreshold = 50

type Config struct {
	Strategy           Strategy
	ClipboardThreshold int // runes
	PreserveClipboard  bool
	// RestoreDelay waits before restoring the snapshotted clipboard; the
	// target app's paste handler may read the clipboard asynchronously and
	// restoring too early would hand it the old contents.
	RestoreDelay  time.Duration
	InterKeyDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Strategy:           StrategyAuto,
		ClipboardThreshold: DefaultClipboardThreshold,
		PreserveClipboard:  true,
		RestoreDelay:       200 * time.Millisecond,
		InterKeyDelay:      2 * time.Millisecond,
	}
}

// Result reports what an injection actually did.
type Result struct {
	Strategy Strategy
	Chars    int
	Elapsed  time.Duration
	Success  bool
}

// Typer simulates keyboard input.
type Typer interface {
	// TypeText simulates a key-down/key-up pair per codepoint, separated
	// by delay to avoid event coalescing in the target input system.
	TypeText(ctx context.Context, text string, delay time.Duration) error
	// PasteChord simulates the platform paste shortcut.
	PasteChord(ctx context.Context) error
}

// Clipboard is the system clipboard.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// FieldSetter writes text straight into the focused field through an
// accessibility API, bypassing simulated input.
type FieldSetter interface {
	Available() bool
	SetText(ctx context.Context, text string) error
}

// Field describes the currently focused input field.
type Field struct {
	App      string
	Editable bool
}

// FocusProbe resolves the focused field of the target application.
type FocusProbe interface {
	Active() (Field, error)
}

// Deps are the injector's backends; any nil dep is replaced with the
// platform default.
type Deps struct {
	Typer       Typer
	Clipboard   Clipboard
	Setter      FieldSetter
	Probe       FocusProbe
	Permissions permission.Provider
}

// Injector performs text injection with strategy selection and fallback.
type Injector struct {
	cfg   Config
	typer Typer
	clip  Clipboard
	set   FieldSetter
	probe FocusProbe
	perms permission.Provider
	log   zerolog.Logger
}

func New(cfg Config, deps Deps) *Injector {
	if cfg.ClipboardThreshold <= 0 {
		cfg.ClipboardThreshold = DefaultClipboardThreshold
	}
	if deps.Typer == nil {
		deps.Typer = NewKeybdTyper()
	}
	if deps.Clipboard == nil {
		deps.Clipboard = SystemClipboard{}
	}
	if deps.Setter == nil {
		deps.Setter = UnavailableSetter{}
	}
	if deps.Probe == nil {
		deps.Probe = AssumeEditableProbe{}
	}
	if deps.Permissions == nil {
		deps.Permissions = permission.Granted()
	}
	return &Injector{
		cfg:   cfg,
		typer: deps.Typer,
		clip:  deps.Clipboard,
		set:   deps.Setter,
		probe: deps.Probe,
		perms: deps.Permissions,
		log:   logging.Component("injection"),
	}
}

// Select resolves the automatic strategy for a text.
func (i *Injector) Select(text string) Strategy {
	if i.cfg.Strategy != StrategyAuto {
		return i.cfg.Strategy
	}
	if utf8.RuneCountInString(text) < i.cfg.ClipboardThreshold {
		return StrategyKeystroke
	}
	return StrategyClipboard
}

// Inject delivers text into the focused field of the target application.
func (i *Injector) Inject(ctx context.Context, text string) (Result, error) {
	start := time.Now()
	chars := utf8.RuneCountInString(text)
	strategy := i.Select(text)
	res := Result{Strategy: strategy, Chars: chars}

	fail := func(err error) (Result, error) {
		res.Elapsed = time.Since(start)
		return res, err
	}

	if text == "" {
		return fail(ErrEmptyText)
	}

	field, err := i.probe.Active()
	if err != nil || !field.Editable {
		return fail(ErrFieldNotEditable)
	}
	if !i.perms.HasAccessibilityPermission() {
		return fail(ErrPermissionDenied)
	}

	switch strategy {
	case StrategyKeystroke:
		if err := i.typer.TypeText(ctx, text, i.cfg.InterKeyDelay); err != nil {
			return fail(err)
		}

	case StrategyClipboard:
		if err := i.injectClipboard(ctx, text); err != nil {
			return fail(err)
		}

	case StrategyDirect:
		if !i.set.Available() {
			return fail(ErrDirectUnavailable)
		}
		if err := i.set.SetText(ctx, text); err != nil {
			return fail(err)
		}

	default:
		return fail(errors.New("unsupported injection strategy: " + string(strategy)))
	}

	res.Elapsed = time.Since(start)
	res.Success = true
	i.log.Debug().
		Str("strategy", string(strategy)).
		Int("chars", chars).
		Dur("elapsed", res.Elapsed).
		Msg("injection complete")
	return res, nil
}

// injectClipboard snapshots the clipboard, pastes the text and restores the
// snapshot after a delay. Restoration is guaranteed even when the paste
// fails partway.
func (i *Injector) injectClipboard(ctx context.Context, text string) error {
	var snapshot string
	restore := false
	if i.cfg.PreserveClipboard {
		prev, err := i.clip.Read()
		if err == nil {
			snapshot = prev
			restore = true
		}
	}

	if err := i.clip.Write(text); err != nil {
		return err
	}

	if restore {
		defer func() {
			i.sleep(ctx, i.cfg.RestoreDelay)
			if err := i.clip.Write(snapshot); err != nil {
				i.log.Warn().Err(err).Msg("clipboard restore failed")
			}
		}()
	}

	return i.typer.PasteChord(ctx)
}

func (i *Injector) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
