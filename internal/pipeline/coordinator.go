package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/voxpipe/voxpipe/internal/audio"
	"github.com/voxpipe/voxpipe/internal/command"
	"github.com/voxpipe/voxpipe/internal/injection"
	"github.com/voxpipe/voxpipe/internal/logging"
	"github.com/voxpipe/voxpipe/internal/notify"
	"github.com/voxpipe/voxpipe/internal/processing"
	"github.com/voxpipe/voxpipe/internal/transcriber"
)

var (
	ErrBusy               = errors.New("pipeline already running")
	ErrNotRunning         = errors.New("pipeline not running")
	ErrEmptyTranscription = errors.New("transcription produced no text")
)

// PipelineError tags a failure with the stage it happened in.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *PipelineError) Unwrap() error { return e.Err }

// Result is the outcome of one successful utterance.
type Result struct {
	ID             string
	RawText        string // transcription before processing
	FinalText      string // text actually injected (or raw text for commands)
	Language       string
	Confidence     float64
	CommandID      string // empty for dictation
	CommandMessage string
	Injection      injection.Result
	StageTimings   map[string]time.Duration
	Duration       time.Duration // wall time, capture start to terminal state
}

// Bridge is the capture dependency.
type Bridge interface {
	Start(ctx context.Context) error
	Stop() (*audio.Segment, error)
	Cancel()
	Segments() <-chan *audio.Segment
}

// Detector classifies and executes voice commands.
type Detector interface {
	Parse(text string) command.ParseResult
	Execute(ctx context.Context, cmd command.ParsedCommand) (command.Result, error)
}

// Processor runs the text transformation chain.
type Processor interface {
	Apply(ctx context.Context, text string, pc *processing.Context) string
}

// Injector delivers the final text into the focused application.
type Injector interface {
	Inject(ctx context.Context, text string) (injection.Result, error)
}

// Recorder persists finished results. Implementations must not fail the
// pipeline; persistence is best-effort.
type Recorder interface {
	Record(result Result)
}

// Deps are the coordinator's collaborators. Bridge, Transcriber, Detector,
// Chain and Injector are required; History and Notifier are optional.
type Deps struct {
	Bridge      Bridge
	Transcriber transcriber.Service
	Detector    Detector
	Chain       Processor
	Injector    Injector
	History     Recorder
	Notifier    notify.Notifier
}

type Config struct {
	Mode      processing.Mode
	Language  string // ISO-639-1 hint for transcription, empty for auto
	SourceApp string
	// AmbiguityThreshold resolves ambiguous parses: confidence strictly
	// above it executes the command, at or below it falls back to dictation.
	AmbiguityThreshold float64
	SampleRate         int
}

func DefaultConfig() Config {
	return Config{
		Mode:               processing.ModeDictation,
		AmbiguityThreshold: 0.8,
		SampleRate:         16000,
	}
}

// Coordinator drives one utterance at a time through capture, transcription,
// command detection, processing and injection. It owns the state machine;
// collaborators never see each other.
type Coordinator struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger

	mu       sync.Mutex
	state    State
	stop     chan struct{}
	stopOnce *sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	resultCh chan Result
	errCh    chan *PipelineError
}

func New(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Bridge == nil || deps.Transcriber == nil || deps.Detector == nil ||
		deps.Chain == nil || deps.Injector == nil {
		return nil, errors.New("pipeline: bridge, transcriber, detector, chain and injector are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if cfg.AmbiguityThreshold <= 0 {
		cfg.AmbiguityThreshold = DefaultConfig().AmbiguityThreshold
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	if cfg.Mode == "" {
		cfg.Mode = processing.ModeDictation
	}
	return &Coordinator{
		cfg:      cfg,
		deps:     deps,
		log:      logging.Component("pipeline"),
		state:    StateIdle,
		resultCh: make(chan Result, 1),
		errCh:    make(chan *PipelineError, 1),
	}, nil
}

// State snapshots the current pipeline state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Results delivers one Result per succeeded utterance. The channel is
// bounded; an unread result is replaced by the next one.
func (c *Coordinator) Results() <-chan Result { return c.resultCh }

// Errors delivers the failure of each failed utterance, same bounding as
// Results.
func (c *Coordinator) Errors() <-chan *PipelineError { return c.errCh }

// Start begins capturing a new utterance. Only legal from Idle.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrBusy, c.state)
	}
	c.state = StateCapturing
	c.mu.Unlock()

	if err := c.deps.Bridge.Start(ctx); err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.stop = make(chan struct{})
	c.stopOnce = &sync.Once{}
	stop := c.stop
	c.mu.Unlock()

	c.deps.Notifier.CaptureStarted()

	c.wg.Add(1)
	go c.run(runCtx, stop)
	return nil
}

// Stop ends the capture phase and lets the utterance finish downstream.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle || c.state.Terminal() {
		return ErrNotRunning
	}
	if c.stopOnce != nil {
		stop := c.stop
		c.stopOnce.Do(func() { close(stop) })
	}
	return nil
}

// Cancel aborts the utterance wherever it is; buffered audio and partial
// results are discarded.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the in-flight utterance reaches a terminal state.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Reset re-arms a terminal coordinator back to Idle.
func (c *Coordinator) Reset() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, StateIdle)
	}
	c.state = StateIdle
	c.stop = nil
	c.stopOnce = nil
	c.cancel = nil
	return nil
}

// transition moves to the next state, enforcing the legal edge set. A failed
// transition is a coordinator bug; it is logged and the move is refused.
func (c *Coordinator) transition(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.state, to) {
		c.log.Error().Str("from", string(c.state)).Str("to", string(to)).
			Msg("refused illegal state transition")
		return false
	}
	c.log.Debug().Str("from", string(c.state)).Str("to", string(to)).Msg("state change")
	c.state = to
	return true
}

func (c *Coordinator) run(ctx context.Context, stop <-chan struct{}) {
	defer c.wg.Done()

	started := time.Now()
	timings := make(map[string]time.Duration)

	segments, cancelled := c.capture(ctx, stop)
	timings["capture"] = time.Since(started)
	if cancelled {
		c.finishCancelled()
		return
	}

	samples := concat(segments)
	if len(samples) == 0 {
		c.fail("capture", audio.ErrEmptySamples, started)
		return
	}

	if !c.transition(StateTranscribing) {
		return
	}
	c.deps.Notifier.CaptureStopped()

	t0 := time.Now()
	tr, err := c.deps.Transcriber.Transcribe(ctx, samples, transcriber.Params{Language: c.cfg.Language})
	timings["transcribe"] = time.Since(t0)
	if ctx.Err() != nil {
		c.finishCancelled()
		return
	}
	if err != nil {
		c.fail("transcribe", err, started)
		return
	}
	rawText := strings.TrimSpace(tr.Text)
	if rawText == "" {
		c.fail("transcribe", ErrEmptyTranscription, started)
		return
	}

	if !c.transition(StateDetecting) {
		return
	}

	res := Result{
		ID:           uuid.NewString(),
		RawText:      rawText,
		Language:     tr.Language,
		Confidence:   tr.Confidence,
		StageTimings: timings,
	}

	parsed := c.deps.Detector.Parse(rawText)
	kind := parsed.Kind
	if kind == command.KindAmbiguous {
		if parsed.Command.Confidence > c.cfg.AmbiguityThreshold {
			kind = command.KindCommand
		} else {
			kind = command.KindDictation
		}
		c.log.Debug().
			Float64("confidence", parsed.Command.Confidence).
			Float64("threshold", c.cfg.AmbiguityThreshold).
			Str("resolved", kind.String()).
			Msg("ambiguous parse resolved")
	}

	if kind == command.KindCommand {
		t0 = time.Now()
		cmdRes, err := c.deps.Detector.Execute(ctx, parsed.Command)
		timings["command"] = time.Since(t0)
		if ctx.Err() != nil {
			c.finishCancelled()
			return
		}
		if err != nil {
			c.fail("command", err, started)
			return
		}
		res.CommandID = parsed.Command.ID
		res.CommandMessage = cmdRes.Message
		res.FinalText = rawText
		c.succeed(res, started)
		c.deps.Notifier.CommandExecuted(res.CommandID)
		return
	}

	if !c.transition(StateProcessing) {
		return
	}
	pc := &processing.Context{
		Mode:      c.cfg.Mode,
		Language:  tr.Language,
		SourceApp: c.cfg.SourceApp,
		Duration:  sampleDuration(len(samples), c.cfg.SampleRate),
	}
	t0 = time.Now()
	finalText := c.deps.Chain.Apply(ctx, rawText, pc)
	timings["process"] = time.Since(t0)
	if ctx.Err() != nil {
		c.finishCancelled()
		return
	}
	res.FinalText = finalText

	if !c.transition(StateInjecting) {
		return
	}
	t0 = time.Now()
	injRes, err := c.deps.Injector.Inject(ctx, finalText)
	timings["inject"] = time.Since(t0)
	res.Injection = injRes
	if ctx.Err() != nil {
		c.finishCancelled()
		return
	}
	if err != nil {
		c.fail("inject", err, started)
		return
	}

	c.succeed(res, started)
	c.deps.Notifier.InjectionComplete(injRes.Chars)
}

// capture collects segments until the utterance ends: an explicit Stop, a
// silence-closed segment, or cancellation. Max-duration segments bound memory
// without ending the utterance.
func (c *Coordinator) capture(ctx context.Context, stop <-chan struct{}) (segments []*audio.Segment, cancelled bool) {
	for {
		select {
		case <-ctx.Done():
			c.deps.Bridge.Cancel()
			return nil, true

		case <-stop:
			final, err := c.deps.Bridge.Stop()
			if err != nil && !errors.Is(err, audio.ErrEmptySamples) {
				c.log.Warn().Err(err).Msg("capture stop")
			}
			segments = append(segments, c.drainSegments()...)
			if final != nil {
				segments = append(segments, final)
			}
			return segments, false

		case seg := <-c.deps.Bridge.Segments():
			if seg == nil {
				continue
			}
			segments = append(segments, seg)
			if seg.Reason == audio.CloseSilence {
				final, err := c.deps.Bridge.Stop()
				if err != nil && !errors.Is(err, audio.ErrEmptySamples) {
					c.log.Warn().Err(err).Msg("capture stop after silence")
				}
				segments = append(segments, c.drainSegments()...)
				if final != nil {
					segments = append(segments, final)
				}
				return segments, false
			}
		}
	}
}

// drainSegments collects segments the bridge closed during its stop-triggered
// final drain. They were buffered before Stop returned, so a non-blocking
// drain sees all of them; chronologically they precede the explicit remainder.
func (c *Coordinator) drainSegments() []*audio.Segment {
	var out []*audio.Segment
	for {
		select {
		case seg := <-c.deps.Bridge.Segments():
			if seg != nil {
				out = append(out, seg)
			}
		default:
			return out
		}
	}
}

func (c *Coordinator) succeed(res Result, started time.Time) {
	res.Duration = time.Since(started)
	if !c.transition(StateSucceeded) {
		return
	}
	push(c.resultCh, res)
	if c.deps.History != nil {
		c.deps.History.Record(res)
	}
	c.log.Info().
		Str("id", res.ID).
		Str("command", res.CommandID).
		Dur("duration", res.Duration).
		Msg("utterance finished")
}

func (c *Coordinator) fail(stage string, err error, started time.Time) {
	if !c.transition(StateFailed) {
		return
	}
	perr := &PipelineError{Stage: stage, Err: err}
	push(c.errCh, perr)
	c.deps.Notifier.Error(perr.Error())
	c.log.Error().Err(err).Str("stage", stage).
		Dur("after", time.Since(started)).Msg("utterance failed")
}

func (c *Coordinator) finishCancelled() {
	c.mu.Lock()
	if !canTransition(c.state, StateCancelled) {
		c.mu.Unlock()
		return
	}
	c.state = StateCancelled
	c.mu.Unlock()
	c.log.Info().Msg("utterance cancelled")
}

// push replaces an unread value rather than blocking the pipeline goroutine.
func push[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

func concat(segments []*audio.Segment) []float32 {
	total := 0
	for _, s := range segments {
		total += len(s.Samples)
	}
	out := make([]float32, 0, total)
	for _, s := range segments {
		out = append(out, s.Samples...)
	}
	return out
}

func sampleDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
