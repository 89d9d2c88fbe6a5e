package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/audiolibrelab/fxhost/internal/config"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info [name]",
	Short: "Show resolved configuration, file paths and module details",
	Long: `Display the resolved configuration with inheritance indicators and, when a
name is given, the file paths used for it. Shows which values are inherited
from default vs profile-specific. With --probe, the module is opened and its
capabilities are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		if len(args) == 1 {
			paths := svc.GetRenderInfo(args[0])
			fmt.Printf("=== FILE PATHS ===\n")
			fmt.Printf("render_wav: %s\n", paths.RenderWAV)
			fmt.Printf("output_mixed: %s\n", paths.OutputMixed)
			fmt.Printf("clean_name: %s\n", paths.CleanName)
			fmt.Println()
		}

		printResolvedConfig(svc.GetConfig())

		probe, _ := cmd.Flags().GetBool("probe")
		if !probe {
			return nil
		}

		if err := svc.OpenModule(context.Background()); err != nil {
			return err
		}
		st := svc.Status()
		if st.Info == nil {
			return fmt.Errorf("module reported no info")
		}
		info := st.Info

		fmt.Printf("\n=== MODULE ===\n")
		fmt.Printf("name: %s\n", info.Name)
		fmt.Printf("session: %s\n", st.Session)
		fmt.Printf("unique_id: 0x%08x\n", uint32(info.UniqueID))
		fmt.Printf("version: %d\n", info.Version)
		fmt.Printf("inputs: %d\n", info.NumInputs)
		fmt.Printf("outputs: %d\n", info.NumOutputs)
		fmt.Printf("programs: %d\n", info.NumPrograms)
		fmt.Printf("parameters: %d\n", info.NumParams)

		caps := info.Capabilities()
		names := make([]string, len(caps))
		for i, c := range caps {
			names[i] = string(c)
		}
		fmt.Printf("capabilities: %s\n", strings.Join(names, ", "))
		return nil
	},
}

func printResolvedConfig(cfg *config.Config) {
	inh := cfg.Inheritance
	if inh == nil {
		inh = &config.InheritanceInfo{}
	}

	fmt.Printf("=== RESOLVED CONFIGURATION ===\n")

	fmt.Printf("\n[Module]\n")
	fmt.Printf("id: %s\n", cfg.Module.ID)
	fmt.Printf("name: %s\n", cfg.Module.Name)
	fmt.Printf("path: %s %s\n", cfg.Module.Path, getInheritanceIndicator(inh.Module.Path))
	fmt.Printf("start_timeout: %s %s\n", cfg.Module.StartTimeout, getInheritanceIndicator(inh.Module.StartTimeout))
	if cfg.Module.Preset != "" {
		fmt.Printf("preset: %s\n", cfg.Module.Preset)
	}

	fmt.Printf("\n[Audio]\n")
	fmt.Printf("block_size: %d %s\n", cfg.Audio.BlockSize, getInheritanceIndicator(inh.Audio.BlockSize))
	fmt.Printf("sample_rate: %d %s\n", cfg.Audio.SampleRate, getInheritanceIndicator(inh.Audio.SampleRate))
	fmt.Printf("channels: %d %s\n", cfg.Audio.Channels, getInheritanceIndicator(inh.Audio.Channels))
	fmt.Printf("tail_wait_seconds: %.2f %s\n", cfg.Audio.TailWaitSeconds, getInheritanceIndicator(inh.Audio.TailWait))

	fmt.Printf("\n[Recording]\n")
	fmt.Printf("enabled: %t\n", cfg.Recording.Enabled)
	fmt.Printf("swap_channels: %t\n", cfg.Recording.SwapChannels)

	fmt.Printf("\n[Output]\n")
	fmt.Printf("directory: %s %s\n", cfg.Output.Directory, getInheritanceIndicator(inh.Output.Directory))
	fmt.Printf("format: %s %s\n", cfg.Output.Format, getInheritanceIndicator(inh.Output.Format))
	fmt.Printf("volume: %.2f %s\n", cfg.Output.Volume, getInheritanceIndicator(inh.Output.Volume))

	fmt.Printf("\n[Presets]\n")
	fmt.Printf("directory: %s %s\n", cfg.Presets.Directory, getInheritanceIndicator(inh.Presets.Directory))
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[default]"
	}
}

func init() {
	infoCmd.Flags().Bool("probe", false, "open the module and show its capabilities")
	rootCmd.AddCommand(infoCmd)
}
