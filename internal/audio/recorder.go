package audio

import (
	"io"
	"math"
)

// Status represents the current state of the recorder
type Status string

const (
	StatusStandby   Status = "STANDBY"
	StatusRecording Status = "RECORDING"
)

// Recorder accumulates the left and right output of every processed block
// while enabled. It is not safe for concurrent use; the owning runtime
// serializes access.
type Recorder struct {
	left    []float32
	right   []float32
	enabled bool
	swap    bool
}

// NewRecorder creates a stopped recorder. Tracks map straight (left output
// to left track) unless swapChannels is set, which reproduces the legacy
// swapped capture where the left output lands in the right track.
func NewRecorder(swapChannels bool) *Recorder {
	return &Recorder{swap: swapChannels}
}

// SetEnabled starts or pauses recording. Already recorded audio is kept.
func (r *Recorder) SetEnabled(enabled bool) { r.enabled = enabled }

func (r *Recorder) Enabled() bool { return r.enabled }

// Status reports STANDBY or RECORDING.
func (r *Recorder) Status() Status {
	if r.enabled {
		return StatusRecording
	}
	return StatusStandby
}

// Append records one block if recording is enabled.
func (r *Recorder) Append(left, right []float32) {
	if !r.enabled {
		return
	}
	if r.swap {
		left, right = right, left
	}
	r.left = append(r.left, left...)
	r.right = append(r.right, right...)
}

// Frames returns the number of recorded frames per channel.
func (r *Recorder) Frames() int { return len(r.left) }

// Tracks returns copies of the recorded left and right tracks.
func (r *Recorder) Tracks() (left, right []float32) {
	return append([]float32(nil), r.left...), append([]float32(nil), r.right...)
}

// Clear drops everything recorded so far.
func (r *Recorder) Clear() {
	r.left = nil
	r.right = nil
}

// Peak returns the largest absolute sample in either track.
func (r *Recorder) Peak() float32 {
	return max(peak(r.left), peak(r.right))
}

// WriteWAV exports the recording as a stereo float WAV.
func (r *Recorder) WriteWAV(w io.Writer, sampleRate int) error {
	interleaved := make([]float32, 0, len(r.left)*2)
	for i := range r.left {
		interleaved = append(interleaved, r.left[i], r.right[i])
	}
	return WriteWAV(w, interleaved, 2, sampleRate)
}

func peak(samples []float32) float32 {
	var p float64
	for _, v := range samples {
		p = math.Max(p, math.Abs(float64(v)))
	}
	return float32(p)
}
