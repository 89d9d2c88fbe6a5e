package cmd

import (
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/fxhost/internal/config"
	"github.com/audiolibrelab/fxhost/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the fxhost web server to control the hosted module over HTTP:
runtime status, preset download and upload, MIDI notes, recording control
and rendering. A WebSocket at /ws/monitor streams the latest output block.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		configPath := cfgFile
		if configPath == "" {
			configPath = config.DefaultPath()
		}

		srv, err := server.New(configPath, port)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		slog.Info("fxhost web server starting", "port", port, "config", configPath)

		// Start server (this blocks)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "8080", "port for the web server")
}
