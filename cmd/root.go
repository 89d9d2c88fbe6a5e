package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/audiolibrelab/fxhost/internal/config"
	"github.com/audiolibrelab/fxhost/internal/service"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	pipeline     string
	profile      string
	modulePath   string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "fxhost [source] [name]",
	Short: "Host an audio effect module and run audio through it",
	Long: `fxhost loads an audio effect or instrument module as a child process,
streams audio files through it block by block, and records, encodes and plays
back the result. Module state can be saved to and restored from program and
bank preset files, and notes can be sent to the module over MIDI.

When a source is provided, it acts as 'fxhost run [source] [name]'.`,
	Args: cobra.MaximumNArgs(2),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		// Skip config loading for commands that don't need it
		switch cmd.Name() {
		case "serve", "init", "help":
			return nil
		}

		if cfgFile == "" {
			cfgFile = config.DefaultPath()
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// --module replaces whatever the profile references
		if modulePath != "" {
			cfg.Module.ID = "cli"
			cfg.Module.Name = strings.TrimSuffix(filepath.Base(modulePath), filepath.Ext(modulePath))
			cfg.Module.Path = modulePath
		}

		return validatePipeline()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If a source is provided, delegate to run command
		if len(args) >= 1 {
			return runCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/fxhost.yaml)")
	rootCmd.PersistentFlags().StringVarP(&pipeline, "pipeline", "p", "", "pipeline steps: r=render, m=mix, p=play (e.g., 'rmp', 'mp', 'rm')")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().StringVar(&modulePath, "module", "", "module binary to host (overrides the profile's module)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=module output, 3=max tracing")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(mixCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(presetCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
}

// newService creates the service with log output matching the verbose level
func newService() service.Service {
	var logWriter io.Writer = io.Discard
	if verboseLevel >= 1 {
		logWriter = os.Stderr
	}
	return service.New(cfg, cfgFile, logWriter)
}

// renderName is the explicit name argument, or the source file's stem.
func renderName(args []string) string {
	if len(args) >= 2 {
		return args[1]
	}
	base := filepath.Base(args[0])
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	case 1, 2, 3:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))

	// Level 3 also turns on go-plugin and ffmpeg tracing
	if level >= 3 {
		os.Setenv("FFMPEG_LOGLEVEL", "debug")
		os.Setenv("PLUGIN_LOG_LEVEL", "trace")
	}
}
