package play

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/fxhost/internal/config"
	"github.com/audiolibrelab/fxhost/internal/mix"
)

type Player struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Player {
	return &Player{cfg: cfg}
}

// Play plays the mixed file for name, falling back to the raw render.
func (p *Player) Play(name string) error {
	audioFile, err := p.resolve(name)
	if err != nil {
		return err
	}

	fmt.Printf("Playing: %s\n", audioFile)

	player, err := findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	cmd, err := playerCommand(player, audioFile)
	if err != nil {
		return err
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}

	fmt.Println("Playback completed")
	return nil
}

func (p *Player) resolve(name string) (string, error) {
	candidates := []string{mix.OutputPath(p.cfg, name), mix.RenderPath(p.cfg, name)}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("audio file not found: %s", candidates[0])
}

func playerCommand(player, audioFile string) (*exec.Cmd, error) {
	switch player {
	case "vlc":
		return exec.Command("vlc", "--play-and-exit", audioFile), nil
	case "mpv":
		return exec.Command("mpv", "--no-video", audioFile), nil
	case "ffplay":
		return exec.Command("ffplay", "-nodisp", "-autoexit", audioFile), nil
	case "aplay":
		if !strings.HasSuffix(audioFile, ".wav") {
			return nil, fmt.Errorf("aplay requires WAV format, got %s", audioFile)
		}
		return exec.Command("aplay", audioFile), nil
	default:
		return nil, fmt.Errorf("unsupported player: %s", player)
	}
}

func findAudioPlayer() (string, error) {
	// In order of preference
	players := []string{"vlc", "mpv", "ffplay", "aplay"}

	for _, player := range players {
		if _, err := exec.LookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(players, ", "))
}
