package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [source] [name]",
	Short: "Render a source file through the module",
	Long: `Stream a source file through the hosted module block by block and record
the module output, including the configured tail after the source ends.
The recording is saved as a 32-bit float WAV in the output directory.
Press Ctrl+C to abort.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		name := renderName(args)
		slog.Info("Record command started", "source", source, "name", name)

		if presetPath, _ := cmd.Flags().GetString("preset"); presetPath != "" {
			cfg.Module.Preset = presetPath
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := newService()
		defer svc.Close()

		result, err := svc.Render(ctx, source, name)
		if err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		printRender(result)

		// Execute pipeline if specified
		return executePipeline(ctx, svc, source, name, 'r')
	},
}

func init() {
	recordCmd.Flags().String("preset", "", "preset file to apply before rendering (overrides config)")
}
