package mix

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/audiolibrelab/fxhost/internal/config"
)

// Mixer encodes a rendered float WAV into the configured output format.
type Mixer struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Mixer {
	return &Mixer{cfg: cfg}
}

// RenderPath is where the render step leaves the raw WAV for name.
func RenderPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Output.Directory, CleanFileName(name)+".wav")
}

// OutputPath is where Mix writes the encoded file for name.
func OutputPath(cfg *config.Config, name string) string {
	return filepath.Join(cfg.Output.Directory, CleanFileName(name)+"."+cfg.Output.Format)
}

func (m *Mixer) Mix(name string) error {
	return m.MixWithVolume(name, m.cfg.Output.Volume)
}

// MixWithVolume is Mix with a one-off volume in place of output.volume.
func (m *Mixer) MixWithVolume(name string, volume float64) error {
	inputFile := RenderPath(m.cfg, name)
	outputFile := OutputPath(m.cfg, name)

	if _, err := os.Stat(inputFile); err != nil {
		return fmt.Errorf("input file not found: %s", inputFile)
	}
	if volume <= 0 {
		return fmt.Errorf("volume must be > 0, got: %.2f", volume)
	}

	// A wav output at unit volume is the render itself
	if inputFile == outputFile {
		if volume == 1.0 {
			slog.Info("Render already in output format", "file", outputFile)
			return nil
		}
		outputFile = filepath.Join(m.cfg.Output.Directory, CleanFileName(name)+"_mix.wav")
	}

	os.Remove(outputFile)

	cmd := exec.Command("ffmpeg", m.buildArgs(inputFile, outputFile, volume)...)
	slog.Debug("Running FFmpeg for mixing", "command", strings.Join(cmd.Args, " "))

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("FFmpeg mixing failed: %w\nOutput: %s", err, string(output))
	}

	if _, err := os.Stat(outputFile); err != nil {
		return fmt.Errorf("output file not created: %s", outputFile)
	}

	slog.Info("Mixed audio file saved to", "file", outputFile)
	return nil
}

func (m *Mixer) buildArgs(inputFile, outputFile string, volume float64) []string {
	return []string{
		"-i", inputFile,
		"-filter:a", fmt.Sprintf("volume=%.3f", volume),
		"-ar", fmt.Sprintf("%d", m.cfg.Audio.SampleRate),
		"-c:a", codecFor(m.cfg.Output.Format),
		"-y",
		outputFile,
	}
}

func codecFor(format string) string {
	switch format {
	case "wav":
		return "pcm_f32le"
	case "mp3":
		return "libmp3lame"
	case "ogg":
		return "libvorbis"
	default:
		return "flac"
	}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9 _-]`)

// CleanFileName keeps letters, digits, spaces, hyphens and underscores and
// turns spaces into underscores.
func CleanFileName(name string) string {
	cleaned := unsafeChars.ReplaceAllString(name, "")
	return strings.ReplaceAll(strings.TrimSpace(cleaned), " ", "_")
}
