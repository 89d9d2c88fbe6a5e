package audio

import (
	"bytes"
	"testing"
)

func TestRecorderAppendsOnlyWhenEnabled(t *testing.T) {
	r := NewRecorder(false)
	r.Append([]float32{1}, []float32{2})
	if r.Frames() != 0 {
		t.Fatalf("recorded %d frames while disabled", r.Frames())
	}
	if r.Status() != StatusStandby {
		t.Errorf("Status = %s", r.Status())
	}

	r.SetEnabled(true)
	r.Append([]float32{0.1, 0.2}, []float32{-0.1, -0.2})
	r.Append([]float32{0.3}, []float32{-0.3})
	if r.Status() != StatusRecording {
		t.Errorf("Status = %s", r.Status())
	}

	left, right := r.Tracks()
	if len(left) != 3 || left[2] != 0.3 || right[2] != -0.3 {
		t.Errorf("tracks = %v / %v", left, right)
	}
	if r.Peak() != 0.3 {
		t.Errorf("Peak = %v", r.Peak())
	}

	r.SetEnabled(false)
	r.Append([]float32{9}, []float32{9})
	if r.Frames() != 3 {
		t.Errorf("Frames = %d after pause", r.Frames())
	}

	r.Clear()
	if r.Frames() != 0 {
		t.Errorf("Frames = %d after clear", r.Frames())
	}
}

func TestRecorderDefaultMappingIsStraight(t *testing.T) {
	r := NewRecorder(false)
	r.SetEnabled(true)
	r.Append([]float32{1}, []float32{2})
	left, right := r.Tracks()
	if left[0] != 1 || right[0] != 2 {
		t.Errorf("default tracks = %v / %v, want left=1 right=2", left, right)
	}
}

func TestRecorderSwapChannels(t *testing.T) {
	r := NewRecorder(true)
	r.SetEnabled(true)
	r.Append([]float32{1}, []float32{2})
	left, right := r.Tracks()
	if left[0] != 2 || right[0] != 1 {
		t.Errorf("swapped tracks = %v / %v", left, right)
	}
}

func TestRecorderWriteWAV(t *testing.T) {
	r := NewRecorder(false)
	r.SetEnabled(true)
	r.Append([]float32{0.5, 0.25}, []float32{-0.5, -0.25})

	var buf bytes.Buffer
	if err := r.WriteWAV(&buf, 48000); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	if buf.Len() != 44+4*4 {
		t.Errorf("WAV size = %d, want %d", buf.Len(), 44+16)
	}
}
