package audio

import "sync"

// FakeContext drives captures from in-memory samples. Used in tests and by
// the bridge tests' end-to-end paths.
type FakeContext struct {
	Samples []float32
	Infos   []DeviceInfo
	Last    *FakeCapture // most recently opened capture
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.Infos, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.Last = &FakeCapture{samples: f.Samples}
	return f.Last, nil
}

// FakeCapture pushes its samples through the callback on Start, all at once.
type FakeCapture struct {
	samples []float32

	mu      sync.Mutex
	cb      DataCallback
	started bool
	stopped bool
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	cb := f.cb
	f.started = true
	f.mu.Unlock()
	if cb != nil && len(f.samples) > 0 {
		cb(f.samples)
	}
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {}

func (f *FakeCapture) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}
