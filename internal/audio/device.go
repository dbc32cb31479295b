package audio

// DataCallback receives raw mono samples from the capture device. It runs on
// the device's real-time thread and must not allocate, lock or block.
type DataCallback func(samples []float32)

// DeviceInfo identifies a capture device.
type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// CaptureConfig is the fixed capture format requested from a device.
type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// Context enumerates capture devices and opens capture streams. The malgo
// implementation backs production use; tests use a fake.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, cfg CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice is one open capture stream.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
}
