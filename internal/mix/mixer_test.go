package mix

import (
	"strings"
	"testing"

	"github.com/audiolibrelab/fxhost/internal/config"
)

func TestCleanFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Take", "My_Take"},
		{"  warm/pad #2 ", "warmpad_2"},
		{"dry-run_1", "dry-run_1"},
	}
	for _, tt := range tests {
		if got := CleanFileName(tt.in); got != tt.want {
			t.Errorf("CleanFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPaths(t *testing.T) {
	cfg := &config.Config{Output: config.OutputConfig{Directory: "/tmp/renders", Format: "flac"}}

	if got := RenderPath(cfg, "My Take"); got != "/tmp/renders/My_Take.wav" {
		t.Errorf("Unexpected render path: %s", got)
	}
	if got := OutputPath(cfg, "My Take"); got != "/tmp/renders/My_Take.flac" {
		t.Errorf("Unexpected output path: %s", got)
	}
}

func TestBuildArgs(t *testing.T) {
	cfg := &config.Config{
		Audio:  config.AudioConfig{SampleRate: 48000},
		Output: config.OutputConfig{Format: "mp3"},
	}
	args := strings.Join(New(cfg).buildArgs("in.wav", "out.mp3", 0.5), " ")

	for _, want := range []string{"-i in.wav", "volume=0.500", "-ar 48000", "-c:a libmp3lame", "out.mp3"} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected %q in args: %s", want, args)
		}
	}
}

func TestMix_MissingInput(t *testing.T) {
	cfg := &config.Config{Output: config.OutputConfig{Directory: t.TempDir(), Format: "flac", Volume: 1}}
	if err := New(cfg).Mix("nothing here"); err == nil {
		t.Error("Expected error for missing render")
	}
}
