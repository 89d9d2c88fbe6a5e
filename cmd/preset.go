package cmd

import (
	"fmt"

	"github.com/audiolibrelab/fxhost/internal/preset"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Save, load and inspect program and bank presets",
}

var presetSaveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Save the module's current program (or bank with --bank)",
	Long: `Capture the module state into a preset file. Without a path, or with a
directory, the file is named after the program and written to the presets
directory. A missing extension is filled in (.fxp or .fxb).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bank, _ := cmd.Flags().GetBool("bank")
		from, _ := cmd.Flags().GetString("from")

		svc := newService()
		defer svc.Close()

		if from != "" {
			if _, err := svc.LoadPreset(from); err != nil {
				return fmt.Errorf("failed to load %s: %w", from, err)
			}
		}

		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		saved, err := svc.SavePreset(path, bank)
		if err != nil {
			return fmt.Errorf("failed to save preset: %w", err)
		}
		fmt.Printf("Preset saved: %s\n", saved)
		return nil
	},
}

var presetLoadCmd = &cobra.Command{
	Use:   "load [path]",
	Short: "Apply a program or bank file to the module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		report, err := svc.LoadPreset(args[0])
		if err != nil {
			return fmt.Errorf("failed to load preset: %w", err)
		}

		fmt.Printf("Loaded %s (%s)\n", args[0], report.FxMagic)
		if report.Name != "" {
			fmt.Printf("Program: %s\n", report.Name)
		}
		switch {
		case report.Chunk && report.IsPreset:
			fmt.Println("Chunk applied as program state")
		case report.Chunk:
			fmt.Println("Chunk applied as bank state")
		default:
			fmt.Printf("Parameters applied: %d\n", report.Applied)
		}
		if len(report.Skipped) > 0 {
			fmt.Printf("Parameters rejected by the module: %v\n", report.Skipped)
		}
		return nil
	},
}

var presetShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Decode a preset file and print its header and payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := preset.LoadFile(args[0])
		if err != nil {
			return err
		}

		view := struct {
			FxMagic   string    `yaml:"fx_magic"`
			Version   int32     `yaml:"version"`
			FxID      string    `yaml:"fx_id"`
			FxVersion int32     `yaml:"fx_version"`
			Count     int32     `yaml:"count"`
			Name      string    `yaml:"name,omitempty"`
			ChunkSize *int      `yaml:"chunk_size,omitempty"`
			Params    []float32 `yaml:"params,omitempty,flow"`
		}{
			FxMagic:   doc.FxMagic,
			Version:   doc.Version,
			FxID:      doc.FxID,
			FxVersion: doc.FxVersion,
			Count:     doc.Count,
			Name:      doc.Name,
			Params:    doc.Params,
		}
		if doc.IsChunk() {
			n := len(doc.Chunk)
			view.ChunkSize = &n
		}

		out, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("error marshaling preset: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	presetSaveCmd.Flags().Bool("bank", false, "save the whole bank instead of the current program")
	presetSaveCmd.Flags().String("from", "", "apply this preset before saving (convert program to bank or re-save)")

	presetCmd.AddCommand(presetSaveCmd)
	presetCmd.AddCommand(presetLoadCmd)
	presetCmd.AddCommand(presetShowCmd)
}
