package cmd

import (
	"fmt"
	"time"

	"github.com/audiolibrelab/fxhost/internal/audio"
	"github.com/audiolibrelab/fxhost/internal/config"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources [directory]",
	Short: "List audio files that can be rendered",
	Long: `List the source files in the sources directory (or the given directory)
with their format, length and channel layout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return listDirectory(args[0])
		}

		sources, err := newService().ListSources()
		if err != nil {
			return err
		}

		fmt.Printf("Audio Sources (%d found):\n", len(sources))
		for i, src := range sources {
			fmt.Printf("  %d. %s  %s  %s%s\n", i+1, src.Name, src.SizeHuman, src.ModTimeHuman, describeSource(src.Path, src.Valid))
		}
		return nil
	},
}

func listDirectory(dir string) error {
	paths, err := audio.ListSources(dir, config.GetSupportedAudioExtensions(cfgFile))
	if err != nil {
		return err
	}
	fmt.Printf("Audio Sources in %s (%d found):\n", dir, len(paths))
	for i, path := range paths {
		fmt.Printf("  %d. %s%s\n", i+1, path, describeSource(path, true))
	}
	return nil
}

// describeSource opens path to report its layout. Raw files have none of
// their own, so the configured rate and channel count are shown.
func describeSource(path string, valid bool) string {
	if !valid {
		return "  (unsupported)"
	}
	rate, channels := 44100, 2
	if cfg != nil {
		rate, channels = cfg.Audio.SampleRate, cfg.Audio.Channels
	}
	src, err := audio.OpenSource(path, rate, channels)
	if err != nil {
		return fmt.Sprintf("  (error: %v)", err)
	}
	defer src.Close()
	return fmt.Sprintf("  %d Hz, %d ch, %s", src.SampleRate(), src.Channels(), src.Duration().Round(10*time.Millisecond))
}
