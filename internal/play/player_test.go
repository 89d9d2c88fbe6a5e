package play

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/audiolibrelab/fxhost/internal/config"
)

func TestResolve_FallsBackToRender(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Output: config.OutputConfig{Directory: dir, Format: "flac"}}
	p := New(cfg)

	if _, err := p.resolve("take"); err == nil {
		t.Fatal("Expected error when nothing was rendered")
	}

	render := filepath.Join(dir, "take.wav")
	if err := os.WriteFile(render, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := p.resolve("take")
	if err != nil || got != render {
		t.Fatalf("Expected %s, got %s (%v)", render, got, err)
	}

	mixed := filepath.Join(dir, "take.flac")
	if err := os.WriteFile(mixed, []byte("fLaC"), 0644); err != nil {
		t.Fatal(err)
	}
	if got, _ := p.resolve("take"); got != mixed {
		t.Errorf("Expected mixed file %s to win, got %s", mixed, got)
	}
}

func TestPlayerCommand(t *testing.T) {
	cmd, err := playerCommand("mpv", "/tmp/a.flac")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cmd.Args[1] != "--no-video" {
		t.Errorf("Unexpected mpv args: %v", cmd.Args)
	}
	if _, err := playerCommand("aplay", "/tmp/a.flac"); err == nil {
		t.Error("Expected aplay to reject non-WAV input")
	}
	if _, err := playerCommand("winamp", "/tmp/a.wav"); err == nil {
		t.Error("Expected error for unknown player")
	}
}
