package audio

import "math"

// RMS computes the root-mean-square energy of a chunk of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// VAD classifies consecutive chunks as speech or silence from their RMS
// energy. A short debounce run is required before the first speech chunk is
// confirmed, so isolated energy spikes don't open an utterance.
type VAD struct {
	threshold float64
	minRun    int

	run       int
	confirmed bool
}

func NewVAD(threshold float64, minRun int) *VAD {
	if minRun < 1 {
		minRun = 1
	}
	return &VAD{threshold: threshold, minRun: minRun}
}

// Process classifies one chunk. It returns true when the chunk counts as
// speech (after debounce).
func (v *VAD) Process(chunk []float32) bool {
	if RMS(chunk) > v.threshold {
		v.run++
		if v.run >= v.minRun {
			v.confirmed = true
			return true
		}
		return false
	}
	v.run = 0
	return false
}

// SpeechSeen reports whether any speech has been confirmed since the last
// Reset.
func (v *VAD) SpeechSeen() bool { return v.confirmed }

func (v *VAD) Reset() {
	v.run = 0
	v.confirmed = false
}
