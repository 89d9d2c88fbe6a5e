package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [name]",
	Short: "Play a mixed or rendered file",
	Long: `Play the mixed file using an available system player (vlc, mpv, ffplay
or aplay). Falls back to the raw render when no mix exists.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		fmt.Printf("Playing: %s\n", name)

		if err := newService().Play(name); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		return nil
	},
}
