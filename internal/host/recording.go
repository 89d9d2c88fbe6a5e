package host

import "io"

// SetRecording starts or pauses appending output blocks to the recording.
func (r *Runtime) SetRecording(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder.SetEnabled(enabled)
	r.logger.Info("Recording toggled", "enabled", enabled, "frames", r.recorder.Frames())
}

func (r *Runtime) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorder.Enabled()
}

// RecordedSamples returns copies of the recorded left and right tracks.
func (r *Runtime) RecordedSamples() (left, right []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorder.Tracks()
}

func (r *Runtime) ClearRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder.Clear()
}

// ExportRecording writes the recording as a stereo float WAV at the runtime
// sample rate.
func (r *Runtime) ExportRecording(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sampleRate <= 0 {
		return ErrNotInitialized
	}
	return r.recorder.WriteWAV(w, int(r.sampleRate))
}
