package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readFloats(t *testing.T, src Source, count int) []float32 {
	t.Helper()
	buf := make([]byte, count*4)
	if _, err := io.ReadFull(src, buf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	out := make([]float32, count)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

func TestMemorySourcePadsAndKeepsTime(t *testing.T) {
	src, err := NewMemorySource([]float32{0.1, 0.2, 0.3, 0.4}, 2, 4)
	if err != nil {
		t.Fatalf("NewMemorySource failed: %v", err)
	}
	defer src.Close()

	if src.Duration() != 500*time.Millisecond {
		t.Errorf("Duration = %v, want 500ms", src.Duration())
	}

	got := readFloats(t, src, 6)
	want := []float32{0.1, 0.2, 0.3, 0.4, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("samples = %v, want %v", got, want)
		}
	}
	if src.Elapsed() != 750*time.Millisecond {
		t.Errorf("Elapsed = %v, want 750ms", src.Elapsed())
	}

	readFloats(t, src, 8)
	if src.Elapsed() != 1750*time.Millisecond {
		t.Errorf("Elapsed after padding = %v, want 1.75s", src.Elapsed())
	}
}

func TestMemorySourceRejectsBadFormat(t *testing.T) {
	if _, err := NewMemorySource(nil, 0, 44100); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestRawSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.f32")
	var buf bytes.Buffer
	for _, v := range []float32{0.5, -0.5, 0.25, -0.25} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write raw file: %v", err)
	}

	src, err := OpenSource(path, 48000, 2)
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	defer src.Close()

	if src.Channels() != 2 || src.SampleRate() != 48000 {
		t.Errorf("format = %d ch @ %d", src.Channels(), src.SampleRate())
	}
	got := readFloats(t, src, 6)
	want := []float32{0.5, -0.5, 0.25, -0.25, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("samples = %v, want %v", got, want)
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1, 0.125}
	var buf bytes.Buffer
	if err := WriteWAV(&buf, samples, 2, 44100); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	data := buf.Bytes()
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("bad header: %q", data[:44])
	}
	if size := binary.LittleEndian.Uint32(data[4:8]); int(size) != len(data)-8 {
		t.Errorf("RIFF size = %d, want %d", size, len(data)-8)
	}
	if format := binary.LittleEndian.Uint16(data[20:22]); format != wavFormatFloat {
		t.Errorf("format = %d, want float", format)
	}
	if len(data) != 44+len(samples)*4 {
		t.Errorf("len = %d", len(data))
	}

	path := filepath.Join(t.TempDir(), "render.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write WAV: %v", err)
	}
	src, err := OpenSource(path, 0, 0)
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	defer src.Close()

	if src.Channels() != 2 || src.SampleRate() != 44100 {
		t.Errorf("format = %d ch @ %d", src.Channels(), src.SampleRate())
	}
	got := readFloats(t, src, len(samples))
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("samples = %v, want %v", got, samples)
		}
	}
}

func TestWAVSourceRejectsTruncatedHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, []float32{0, 0}, 2, 44100); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	data := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"riff tag", data[:2]},
		{"fmt chunk", data[:30]},
		{"data tag", data[:38]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "short.wav")
			if err := os.WriteFile(path, tt.data, 0644); err != nil {
				t.Fatalf("Failed to write WAV: %v", err)
			}
			if src, err := NewWAVSource(path); err == nil {
				src.Close()
				t.Error("expected error for truncated header")
			}
		})
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"a.f32", FormatRaw, false},
		{"a.RAW", FormatRaw, false},
		{"b.wav", FormatWAV, false},
		{"c.Mp3", FormatMP3, false},
		{"d.flac", FormatFLAC, false},
		{"e.ogg", "", true},
	}

	for _, tt := range tests {
		got, err := FormatFor(tt.path)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("FormatFor(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestListAndValidateSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.mp3", "notes.txt", "c.flac"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	os.Mkdir(filepath.Join(dir, "sub.wav"), 0755)

	got, err := ListSources(dir, []string{".wav", ".mp3"})
	if err != nil {
		t.Fatalf("ListSources failed: %v", err)
	}
	want := []string{filepath.Join(dir, "a.mp3"), filepath.Join(dir, "b.wav")}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ListSources = %v, want %v", got, want)
	}

	if err := ValidateSource(filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
	if err := ValidateSource(filepath.Join(dir, "notes.txt")); err == nil {
		t.Error("expected error for unsupported extension")
	}
	if err := ValidateSource(filepath.Join(dir, "sub.wav")); err == nil {
		t.Error("expected error for directory")
	}
}
