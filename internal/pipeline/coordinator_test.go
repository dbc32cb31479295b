package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxpipe/voxpipe/internal/audio"
	"github.com/voxpipe/voxpipe/internal/command"
	"github.com/voxpipe/voxpipe/internal/injection"
	"github.com/voxpipe/voxpipe/internal/processing"
	"github.com/voxpipe/voxpipe/internal/transcriber"
)

type fakeBridge struct {
	segCh      chan *audio.Segment
	stopSeg    *audio.Segment
	stopErr    error
	startErr   error
	emitOnStop *audio.Segment // closed during the final drain, before Stop returns

	mu        sync.Mutex
	started   bool
	stopped   bool
	cancelled bool
}

func newFakeBridge(stopSeg *audio.Segment) *fakeBridge {
	return &fakeBridge{segCh: make(chan *audio.Segment, 4), stopSeg: stopSeg}
}

func (f *fakeBridge) Start(context.Context) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return f.startErr
}

func (f *fakeBridge) Stop() (*audio.Segment, error) {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	if f.emitOnStop != nil {
		f.segCh <- f.emitOnStop
	}
	return f.stopSeg, f.stopErr
}

func (f *fakeBridge) Cancel() {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
}

func (f *fakeBridge) Segments() <-chan *audio.Segment { return f.segCh }

func (f *fakeBridge) wasCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

type stubTranscriber struct {
	result transcriber.Result
	err    error

	mu      sync.Mutex
	calls   int
	samples []float32
}

func (s *stubTranscriber) Transcribe(ctx context.Context, samples []float32, _ transcriber.Params) (transcriber.Result, error) {
	s.mu.Lock()
	s.calls++
	s.samples = append([]float32(nil), samples...)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return transcriber.Result{}, err
	}
	if s.err != nil {
		return transcriber.Result{}, s.err
	}
	return s.result, nil
}

func (s *stubTranscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubTranscriber) Samples() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.samples...)
}

// blockingTranscriber parks until the pipeline context is cancelled.
type blockingTranscriber struct {
	entered chan struct{}
}

func (b *blockingTranscriber) Transcribe(ctx context.Context, _ []float32, _ transcriber.Params) (transcriber.Result, error) {
	close(b.entered)
	<-ctx.Done()
	return transcriber.Result{}, ctx.Err()
}

type stubInjector struct {
	err error

	mu    sync.Mutex
	texts []string
}

func (s *stubInjector) Inject(_ context.Context, text string) (injection.Result, error) {
	if s.err != nil {
		return injection.Result{}, s.err
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return injection.Result{Strategy: injection.StrategyKeystroke, Chars: len(text), Success: true}, nil
}

func (s *stubInjector) injected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type markerStage struct {
	mu    sync.Mutex
	calls int
}

func (m *markerStage) Name() string                            { return "marker" }
func (m *markerStage) Priority() int                           { return 10 }
func (m *markerStage) ApplicableModes() []processing.Mode      { return nil }
func (m *markerStage) Transform(_ context.Context, text string, _ *processing.Context) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return text + " [cleaned]", nil
}

func (m *markerStage) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type memoryRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (m *memoryRecorder) Record(result Result) {
	m.mu.Lock()
	m.results = append(m.results, result)
	m.mu.Unlock()
}

func (m *memoryRecorder) recorded() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Result(nil), m.results...)
}

type fixture struct {
	coord    *Coordinator
	bridge   *fakeBridge
	trans    *stubTranscriber
	detector *command.Detector
	stage    *markerStage
	injector *stubInjector
	history  *memoryRecorder

	executedCommands []string
	mu               sync.Mutex
}

func newFixture(t *testing.T, text string, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		bridge:   newFakeBridge(&audio.Segment{Samples: make([]float32, 160), Reason: audio.CloseExplicit}),
		trans:    &stubTranscriber{result: transcriber.Result{Text: text, Language: "en", Confidence: 1.0}},
		detector: command.NewDetector("hey type"),
		stage:    &markerStage{},
		injector: &stubInjector{},
		history:  &memoryRecorder{},
	}

	if err := f.detector.Register(command.Definition{
		ID:       "open-terminal",
		Triggers: []string{"open terminal"},
	}, func(_ context.Context, cmd command.ParsedCommand) (command.Result, error) {
		f.mu.Lock()
		f.executedCommands = append(f.executedCommands, cmd.ID)
		f.mu.Unlock()
		return command.Result{Success: true, Message: "opened"}, nil
	}); err != nil {
		t.Fatal(err)
	}

	chain := processing.NewChain()
	chain.Register(f.stage)

	coord, err := New(cfg, Deps{
		Bridge:      f.bridge,
		Transcriber: f.trans,
		Detector:    f.detector,
		Chain:       chain,
		Injector:    f.injector,
		History:     f.history,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.coord = coord
	return f
}

func (f *fixture) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.executedCommands...)
}

// runToTerminal starts the utterance, requests a stop and waits for the
// pipeline goroutine to finish.
func (f *fixture) runToTerminal(t *testing.T) {
	t.Helper()
	if err := f.coord.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.coord.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	f.coord.Wait()
}

func TestCoordinator_DictationFlow(t *testing.T) {
	f := newFixture(t, "this is plain dictation", DefaultConfig())
	f.runToTerminal(t)

	if got := f.coord.State(); got != StateSucceeded {
		t.Fatalf("State = %s, want succeeded", got)
	}

	var res Result
	select {
	case res = <-f.coord.Results():
	default:
		t.Fatal("no result emitted")
	}
	if res.RawText != "this is plain dictation" {
		t.Errorf("RawText = %q", res.RawText)
	}
	if res.FinalText != "this is plain dictation [cleaned]" {
		t.Errorf("FinalText = %q, want chain output", res.FinalText)
	}
	if res.CommandID != "" {
		t.Errorf("CommandID = %q, want empty for dictation", res.CommandID)
	}
	if res.ID == "" {
		t.Error("Result.ID empty")
	}
	for _, stage := range []string{"capture", "transcribe", "process", "inject"} {
		if _, ok := res.StageTimings[stage]; !ok {
			t.Errorf("StageTimings missing %q", stage)
		}
	}

	if got := f.injector.injected(); len(got) != 1 || got[0] != res.FinalText {
		t.Errorf("injected = %v, want the final text", got)
	}
	if recs := f.history.recorded(); len(recs) != 1 || recs[0].ID != res.ID {
		t.Errorf("history = %v, want the emitted result", recs)
	}
}

func TestCoordinator_CommandFlowSkipsProcessingAndInjection(t *testing.T) {
	f := newFixture(t, "hey type open terminal", DefaultConfig())
	f.runToTerminal(t)

	if got := f.coord.State(); got != StateSucceeded {
		t.Fatalf("State = %s, want succeeded", got)
	}

	res := <-f.coord.Results()
	if res.CommandID != "open-terminal" {
		t.Errorf("CommandID = %q, want open-terminal", res.CommandID)
	}
	if res.CommandMessage != "opened" {
		t.Errorf("CommandMessage = %q", res.CommandMessage)
	}
	if got := f.executed(); len(got) != 1 {
		t.Errorf("executed commands = %v, want one execution", got)
	}
	if got := f.injector.injected(); len(got) != 0 {
		t.Errorf("injector ran for a command utterance: %v", got)
	}
	if f.stage.Calls() != 0 {
		t.Errorf("processing chain ran for a command utterance")
	}
}

func TestCoordinator_AmbiguousAboveThresholdIsCommand(t *testing.T) {
	// trailing "now" leaves confidence ~0.82, above the 0.8 default
	f := newFixture(t, "hey type open terminal now", DefaultConfig())
	f.runToTerminal(t)

	if got := f.coord.State(); got != StateSucceeded {
		t.Fatalf("State = %s, want succeeded", got)
	}
	if got := f.executed(); len(got) != 1 {
		t.Errorf("command not executed, executions = %v", got)
	}
	if got := f.injector.injected(); len(got) != 0 {
		t.Errorf("injector ran: %v", got)
	}
}

func TestCoordinator_AmbiguousAtOrBelowThresholdIsDictation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AmbiguityThreshold = 0.9
	f := newFixture(t, "hey type open terminal now", cfg)
	f.runToTerminal(t)

	if got := f.coord.State(); got != StateSucceeded {
		t.Fatalf("State = %s, want succeeded", got)
	}
	if got := f.executed(); len(got) != 0 {
		t.Errorf("command executed despite dictation resolution: %v", got)
	}
	got := f.injector.injected()
	if len(got) != 1 {
		t.Fatalf("injected = %v, want one dictation injection", got)
	}
	// the whole utterance is dictated, not just the trailing words
	if got[0] != "hey type open terminal now [cleaned]" {
		t.Errorf("injected %q", got[0])
	}
}

func TestCoordinator_TranscribeFailure(t *testing.T) {
	f := newFixture(t, "ignored", DefaultConfig())
	f.trans.err = transcriber.ErrInferenceFailed
	f.runToTerminal(t)

	if got := f.coord.State(); got != StateFailed {
		t.Fatalf("State = %s, want failed", got)
	}

	var perr *PipelineError
	select {
	case perr = <-f.coord.Errors():
	default:
		t.Fatal("no pipeline error emitted")
	}
	if perr.Stage != "transcribe" {
		t.Errorf("Stage = %q, want transcribe", perr.Stage)
	}
	if !errors.Is(perr, transcriber.ErrInferenceFailed) {
		t.Errorf("error = %v, want ErrInferenceFailed", perr)
	}
	if got := f.injector.injected(); len(got) != 0 {
		t.Errorf("injector ran after failure: %v", got)
	}
}

func TestCoordinator_EmptyTranscriptionFails(t *testing.T) {
	f := newFixture(t, "   ", DefaultConfig())
	f.runToTerminal(t)

	if got := f.coord.State(); got != StateFailed {
		t.Fatalf("State = %s, want failed", got)
	}
	perr := <-f.coord.Errors()
	if !errors.Is(perr, ErrEmptyTranscription) {
		t.Errorf("error = %v, want ErrEmptyTranscription", perr)
	}
}

func TestCoordinator_EmptyCaptureFails(t *testing.T) {
	f := newFixture(t, "ignored", DefaultConfig())
	f.bridge.stopSeg = nil
	f.bridge.stopErr = audio.ErrEmptySamples
	f.runToTerminal(t)

	if got := f.coord.State(); got != StateFailed {
		t.Fatalf("State = %s, want failed", got)
	}
	perr := <-f.coord.Errors()
	if perr.Stage != "capture" || !errors.Is(perr, audio.ErrEmptySamples) {
		t.Errorf("error = %v, want capture/ErrEmptySamples", perr)
	}
	if f.trans.Calls() != 0 {
		t.Error("transcriber ran on an empty capture")
	}
}

func TestCoordinator_InjectFailure(t *testing.T) {
	f := newFixture(t, "some dictation", DefaultConfig())
	f.injector.err = injection.ErrFieldNotEditable
	f.runToTerminal(t)

	if got := f.coord.State(); got != StateFailed {
		t.Fatalf("State = %s, want failed", got)
	}
	perr := <-f.coord.Errors()
	if perr.Stage != "inject" || !errors.Is(perr, injection.ErrFieldNotEditable) {
		t.Errorf("error = %v, want inject/ErrFieldNotEditable", perr)
	}
}

func TestCoordinator_CancelDuringCapture(t *testing.T) {
	f := newFixture(t, "ignored", DefaultConfig())
	if err := f.coord.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.coord.Cancel()
	f.coord.Wait()

	if got := f.coord.State(); got != StateCancelled {
		t.Fatalf("State = %s, want cancelled", got)
	}
	if !f.bridge.wasCancelled() {
		t.Error("bridge not cancelled")
	}
	if f.trans.Calls() != 0 {
		t.Error("transcriber ran after cancellation")
	}
}

func TestCoordinator_CancelDuringTranscription(t *testing.T) {
	f := newFixture(t, "ignored", DefaultConfig())
	bt := &blockingTranscriber{entered: make(chan struct{})}
	f.coord.deps.Transcriber = bt

	if err := f.coord.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.coord.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-bt.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("transcription never started")
	}
	f.coord.Cancel()
	f.coord.Wait()

	if got := f.coord.State(); got != StateCancelled {
		t.Fatalf("State = %s, want cancelled", got)
	}
	if got := f.injector.injected(); len(got) != 0 {
		t.Errorf("injector ran after cancellation: %v", got)
	}
}

func TestCoordinator_StopCollectsFinalDrainSegments(t *testing.T) {
	f := newFixture(t, "late words", DefaultConfig())

	// a segment auto-closed while Stop drains the ring, plus a remainder
	emitted := []float32{0.1, 0.1, 0.1}
	f.bridge.emitOnStop = &audio.Segment{Samples: emitted, Reason: audio.CloseSilence}
	f.bridge.stopSeg = &audio.Segment{Samples: []float32{0.2, 0.2}, Reason: audio.CloseExplicit}

	f.runToTerminal(t)

	if got := f.coord.State(); got != StateSucceeded {
		t.Fatalf("State = %s, want succeeded", got)
	}
	got := f.trans.Samples()
	if len(got) != 5 {
		t.Fatalf("transcriber got %d samples, want all 5", len(got))
	}
	// the drained segment precedes the explicit remainder
	if got[0] != 0.1 || got[4] != 0.2 {
		t.Errorf("samples = %v, want drained segment first, remainder last", got)
	}
}

func TestCoordinator_StopKeepsSegmentClosedDuringFinalDrain(t *testing.T) {
	// A stalled consumer forces the silence emit to happen inside Stop's
	// final drain; the coordinator must still see those samples.
	bridge := audio.New(audio.Config{
		SampleRate:      1000,
		RingCapacity:    1 << 14,
		ChunkSize:       10,
		PollInterval:    time.Hour,
		VADThreshold:    0.1,
		MinSpeechChunks: 1,
		SilenceTimeout:  20 * time.Millisecond,
		MaxDuration:     time.Second,
		SegmentBuffer:   4,
		LevelBuffer:     16,
	}, nil)

	trans := &stubTranscriber{result: transcriber.Result{Text: "kept words", Language: "en", Confidence: 1.0}}
	inj := &stubInjector{}
	coord, err := New(DefaultConfig(), Deps{
		Bridge:      bridge,
		Transcriber: trans,
		Detector:    command.NewDetector("hey type"),
		Chain:       processing.NewChain(),
		Injector:    inj,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	speech := make([]float32, 30)
	for i := range speech {
		speech[i] = 0.5
	}
	bridge.Feed(speech)
	bridge.Feed(make([]float32, 20)) // exactly the silence timeout

	if err := coord.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	coord.Wait()

	if got := coord.State(); got != StateSucceeded {
		t.Fatalf("State = %s, want succeeded", got)
	}
	if n := len(trans.Samples()); n != 50 {
		t.Errorf("transcriber got %d samples, want 50", n)
	}
	if got := inj.injected(); len(got) != 1 {
		t.Errorf("injected = %v, want one injection", got)
	}
}

func TestCoordinator_SilenceClosedSegmentEndsUtterance(t *testing.T) {
	f := newFixture(t, "auto stopped words", DefaultConfig())
	f.bridge.stopSeg = nil // everything already emitted through Segments

	if err := f.coord.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.bridge.segCh <- &audio.Segment{Samples: make([]float32, 320), Reason: audio.CloseSilence}
	f.coord.Wait()

	if got := f.coord.State(); got != StateSucceeded {
		t.Fatalf("State = %s, want succeeded", got)
	}
	if got := f.injector.injected(); len(got) != 1 {
		t.Errorf("injected = %v, want one injection without an explicit stop", got)
	}
}

func TestCoordinator_MaxDurationSegmentKeepsCapturing(t *testing.T) {
	f := newFixture(t, "long dictation", DefaultConfig())
	if err := f.coord.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.bridge.segCh <- &audio.Segment{Samples: make([]float32, 320), Reason: audio.CloseMaxDuration}

	// still capturing: the bound segment does not end the utterance
	deadline := time.Now().Add(time.Second)
	for f.coord.State() != StateCapturing && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := f.coord.State(); got != StateCapturing {
		t.Fatalf("State = %s, want still capturing", got)
	}

	if err := f.coord.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	f.coord.Wait()

	if got := f.coord.State(); got != StateSucceeded {
		t.Fatalf("State = %s, want succeeded", got)
	}
}

func TestCoordinator_StartWhileRunning(t *testing.T) {
	f := newFixture(t, "ignored", DefaultConfig())
	if err := f.coord.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		f.coord.Cancel()
		f.coord.Wait()
	}()

	if err := f.coord.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start = %v, want ErrBusy", err)
	}
}

func TestCoordinator_ResetReArms(t *testing.T) {
	f := newFixture(t, "first utterance", DefaultConfig())
	f.runToTerminal(t)
	if got := f.coord.State(); got != StateSucceeded {
		t.Fatalf("State = %s, want succeeded", got)
	}

	// terminal states never go back to capturing directly
	if err := f.coord.Start(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("Start from terminal = %v, want ErrBusy", err)
	}

	if err := f.coord.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := f.coord.State(); got != StateIdle {
		t.Fatalf("State after Reset = %s, want idle", got)
	}

	f.runToTerminal(t)
	if got := f.coord.State(); got != StateSucceeded {
		t.Errorf("second run State = %s, want succeeded", got)
	}
}

func TestCoordinator_StopWhenIdle(t *testing.T) {
	f := newFixture(t, "ignored", DefaultConfig())
	if err := f.coord.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop while idle = %v, want ErrNotRunning", err)
	}
}
