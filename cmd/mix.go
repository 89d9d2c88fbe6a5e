package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var mixCmd = &cobra.Command{
	Use:   "mix [name]",
	Short: "Encode a render to the configured output format",
	Long: `Encode the rendered WAV with ffmpeg into the configured output format,
applying the output volume.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		svc := newService()

		volume, _ := cmd.Flags().GetFloat64("volume")
		effectiveVolume := svc.GetConfig().Output.Volume
		if volume > 0 {
			effectiveVolume = volume
		}

		fmt.Printf("Mixing: %s\n", name)
		fmt.Printf("Format: %s\n", svc.GetConfig().Output.Format)
		fmt.Printf("Volume: %.2f\n", effectiveVolume)

		if err := svc.MixWithVolume(name, effectiveVolume); err != nil {
			return fmt.Errorf("mixing failed: %w", err)
		}

		fmt.Println("Mixing completed successfully")

		return executePipeline(context.Background(), svc, "", name, 'm')
	},
}

func init() {
	mixCmd.Flags().Float64P("volume", "g", 0, "output volume (overrides config)")
}
