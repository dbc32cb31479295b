package audio

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/voxpipe/voxpipe/internal/logging"
)

var (
	ErrAlreadyCapturing = errors.New("already capturing")
	ErrNotCapturing     = errors.New("not capturing")
	ErrEmptySamples     = errors.New("no samples captured")
	ErrDeviceNotFound   = errors.New("capture device not found")
)

// CloseReason records why a segment was closed.
type CloseReason string

const (
	CloseExplicit    CloseReason = "explicit"
	CloseSilence     CloseReason = "silence"
	CloseMaxDuration CloseReason = "max_duration"
)

// Segment is a bounded run of mono samples handed downstream. It is owned by
// the bridge until emitted and immutable afterward. Segments are never empty.
type Segment struct {
	Samples []float32
	Start   time.Duration // offset from capture start
	Reason  CloseReason
}

// Duration returns the segment length at the given sample rate.
func (s *Segment) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(sampleRate)
}

type Config struct {
	SampleRate      int
	RingCapacity    int           // samples
	ChunkSize       int           // samples per VAD chunk
	PollInterval    time.Duration // consumer drain interval
	VADThreshold    float64       // RMS energy above which a chunk is speech
	MinSpeechChunks int           // consecutive speech chunks to confirm voice
	SilenceTimeout  time.Duration // continuous silence after speech closes the segment
	MaxDuration     time.Duration // hard bound per segment
	SegmentBuffer   int
	LevelBuffer     int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		RingCapacity:    16000 * 8, // 8s of audio
		ChunkSize:       1600,      // 100ms
		PollInterval:    50 * time.Millisecond,
		VADThreshold:    0.015,
		MinSpeechChunks: 2,
		SilenceTimeout:  1500 * time.Millisecond,
		MaxDuration:     2 * time.Minute,
		SegmentBuffer:   4,
		LevelBuffer:     16,
	}
}

// Counters are the non-fatal health counters of the real-time boundary.
type Counters struct {
	Overruns  uint64
	Underruns uint64
}

type stopReply struct {
	segment *Segment
	err     error
}

// Bridge moves samples from the real-time capture callback to cooperative
// consumers. Feed is the only code that runs on the real-time thread; the
// ring buffer is the only structure crossing that boundary.
type Bridge struct {
	cfg Config
	log zerolog.Logger

	devCtx Context // nil when samples arrive via Feed only

	mu       sync.Mutex // guards start/stop transitions and device selection
	device   CaptureDevice
	selected *DeviceInfo
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	ring      atomic.Pointer[Ring]
	capturing atomic.Bool

	segCh   chan *Segment
	levelCh chan float32
	stopCh  chan chan stopReply
	done    chan struct{} // closed when the consumer exits

	// consumer-owned segmentation state
	pending      []float32
	current      []float32
	segStart     uint64 // sample offset of current segment
	consumed     uint64 // total samples consumed
	emitted      int
	silentChunks int
	vad          *VAD
}

func New(cfg Config, devCtx Context) *Bridge {
	return &Bridge{
		cfg:    cfg,
		log:    logging.Component("audio"),
		devCtx: devCtx,
	}
}

// Devices lists capture devices. Returns nil when no device context is wired.
func (b *Bridge) Devices() ([]DeviceInfo, error) {
	if b.devCtx == nil {
		return nil, nil
	}
	return b.devCtx.Devices()
}

// SelectDevice picks the capture device for subsequent captures. Switching
// while capturing is rejected.
func (b *Bridge) SelectDevice(id string) error {
	if b.capturing.Load() {
		return ErrAlreadyCapturing
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if id == "" {
		b.selected = nil
		return nil
	}
	devices, err := b.Devices()
	if err != nil {
		return err
	}
	for i := range devices {
		if devices[i].ID == id {
			b.selected = &devices[i]
			return nil
		}
	}
	return ErrDeviceNotFound
}

// Start opens the capture device (if any) and launches the consumer.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capturing.Load() {
		return ErrAlreadyCapturing
	}

	ring := NewRing(b.cfg.RingCapacity)
	b.segCh = make(chan *Segment, b.cfg.SegmentBuffer)
	b.levelCh = make(chan float32, b.cfg.LevelBuffer)
	b.stopCh = make(chan chan stopReply)
	b.done = make(chan struct{})
	b.pending = b.pending[:0]
	b.current = nil
	b.segStart = 0
	b.consumed = 0
	b.emitted = 0
	b.silentChunks = 0
	b.vad = NewVAD(b.cfg.VADThreshold, b.cfg.MinSpeechChunks)

	// the ring is published before the capturing flag so Feed never sees a
	// stale or nil ring once the flag is up
	b.ring.Store(ring)
	b.capturing.Store(true)

	if b.devCtx != nil {
		dev, err := b.devCtx.NewCapture(b.selected, CaptureConfig{
			SampleRate: uint32(b.cfg.SampleRate),
			Channels:   1,
		})
		if err != nil {
			b.capturing.Store(false)
			return err
		}
		dev.SetCallback(b.Feed)
		if err := dev.Start(); err != nil {
			dev.Close()
			b.capturing.Store(false)
			return err
		}
		b.device = dev
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.wg.Add(1)
	go b.consume(runCtx, ring)

	b.log.Debug().Int("ring_capacity", ring.Cap()).Msg("capture started")
	return nil
}

// Feed writes raw samples from the real-time thread into the ring buffer.
// It never allocates, locks or blocks; excess samples are dropped.
func (b *Bridge) Feed(samples []float32) {
	if !b.capturing.Load() {
		return
	}
	ring := b.ring.Load()
	if ring == nil {
		return
	}
	ring.Write(samples)
}

// Segments delivers segments auto-closed by silence or max duration.
func (b *Bridge) Segments() <-chan *Segment { return b.segCh }

// Levels delivers per-chunk RMS levels on a bounded channel; stale levels
// are dropped rather than buffered.
func (b *Bridge) Levels() <-chan float32 { return b.levelCh }

// Counters snapshots the overrun/underrun counters.
func (b *Bridge) Counters() Counters {
	ring := b.ring.Load()
	if ring == nil {
		return Counters{}
	}
	return Counters{Overruns: ring.Overruns(), Underruns: ring.Underruns()}
}

// Stop ends the capture, drains the ring and returns the remaining open
// segment. When the whole capture produced no samples at all it returns
// ErrEmptySamples. A nil segment with nil error means everything was already
// emitted through Segments.
func (b *Bridge) Stop() (*Segment, error) {
	if !b.capturing.Load() {
		return nil, ErrNotCapturing
	}
	b.stopDevice()

	reply := make(chan stopReply)
	select {
	case b.stopCh <- reply:
		r := <-reply
		b.finish()
		return r.segment, r.err
	case <-b.done:
		// consumer already gone (context cancelled)
		b.finish()
		return nil, ErrNotCapturing
	}
}

// Cancel ends the capture and discards everything buffered.
func (b *Bridge) Cancel() {
	if !b.capturing.Load() {
		return
	}
	b.stopDevice()
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.finish()
}

func (b *Bridge) stopDevice() {
	b.mu.Lock()
	dev := b.device
	b.device = nil
	b.mu.Unlock()
	if dev != nil {
		dev.Stop()
		dev.Close()
	}
}

func (b *Bridge) finish() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	b.capturing.Store(false)
}

func (b *Bridge) consume(ctx context.Context, ring *Ring) {
	defer b.wg.Done()
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	scratch := make([]float32, b.cfg.ChunkSize)

	for {
		select {
		case <-ctx.Done():
			return

		case reply := <-b.stopCh:
			b.drain(ctx, ring, scratch)
			b.flushPending()
			reply <- b.closeFinal()
			return

		case <-ticker.C:
			b.drain(ctx, ring, scratch)
		}
	}
}

// drain moves everything currently buffered through VAD chunking.
func (b *Bridge) drain(ctx context.Context, ring *Ring, scratch []float32) {
	for {
		n := ring.Read(scratch)
		if n == 0 {
			return
		}
		b.pending = append(b.pending, scratch[:n]...)
		for len(b.pending) >= b.cfg.ChunkSize {
			chunk := b.pending[:b.cfg.ChunkSize]
			b.processChunk(ctx, chunk)
			b.pending = b.pending[b.cfg.ChunkSize:]
		}
	}
}

// flushPending pushes a trailing partial chunk into the current segment.
func (b *Bridge) flushPending() {
	if len(b.pending) == 0 {
		return
	}
	b.current = append(b.current, b.pending...)
	b.consumed += uint64(len(b.pending))
	b.pending = b.pending[:0]
}

func (b *Bridge) processChunk(ctx context.Context, chunk []float32) {
	level := float32(RMS(chunk))
	select {
	case b.levelCh <- level:
	default:
		// drop-oldest keeps the channel bounded
		select {
		case <-b.levelCh:
		default:
		}
		select {
		case b.levelCh <- level:
		default:
		}
	}

	speech := b.vad.Process(chunk)
	b.current = append(b.current, chunk...)
	b.consumed += uint64(len(chunk))

	if speech {
		b.silentChunks = 0
	} else if b.vad.SpeechSeen() {
		b.silentChunks++
		if b.silenceDuration() >= b.cfg.SilenceTimeout {
			b.emit(ctx, CloseSilence)
			return
		}
	}

	if b.cfg.MaxDuration > 0 && b.segmentDuration() >= b.cfg.MaxDuration {
		b.emit(ctx, CloseMaxDuration)
	}
}

func (b *Bridge) silenceDuration() time.Duration {
	samples := uint64(b.silentChunks) * uint64(b.cfg.ChunkSize)
	return time.Duration(samples) * time.Second / time.Duration(b.cfg.SampleRate)
}

func (b *Bridge) segmentDuration() time.Duration {
	return time.Duration(len(b.current)) * time.Second / time.Duration(b.cfg.SampleRate)
}

func (b *Bridge) offset(sample uint64) time.Duration {
	return time.Duration(sample) * time.Second / time.Duration(b.cfg.SampleRate)
}

// emit hands the current segment downstream and resets segmentation state.
// Zero-length segments are dropped, never forwarded.
func (b *Bridge) emit(ctx context.Context, reason CloseReason) {
	if len(b.current) == 0 {
		return
	}
	seg := &Segment{
		Samples: b.current,
		Start:   b.offset(b.segStart),
		Reason:  reason,
	}
	select {
	case b.segCh <- seg:
		b.emitted++
		b.log.Debug().
			Str("reason", string(reason)).
			Int("samples", len(seg.Samples)).
			Msg("segment closed")
	case <-ctx.Done():
		return
	}
	b.current = nil
	b.segStart = b.consumed
	b.silentChunks = 0
	b.vad.Reset()
}

func (b *Bridge) closeFinal() stopReply {
	if len(b.current) == 0 {
		if b.emitted == 0 {
			return stopReply{err: ErrEmptySamples}
		}
		return stopReply{}
	}
	seg := &Segment{
		Samples: b.current,
		Start:   b.offset(b.segStart),
		Reason:  CloseExplicit,
	}
	b.current = nil
	b.emitted++
	return stopReply{segment: seg}
}
