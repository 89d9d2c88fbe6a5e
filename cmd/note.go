package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note [note] [velocity]",
	Short: "Send a MIDI note to the module",
	Long: `Open the module and send a note-on (or note-off with --off) on channel 1.
With --hold, the note-off follows after the given duration. Notes and
velocities are 0-127; the velocity defaults to 100.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		note, err := parseMidiByte("note", args[0])
		if err != nil {
			return err
		}
		velocity := byte(100)
		if len(args) == 2 {
			if velocity, err = parseMidiByte("velocity", args[1]); err != nil {
				return err
			}
		}
		off, _ := cmd.Flags().GetBool("off")
		hold, _ := cmd.Flags().GetDuration("hold")

		svc := newService()
		defer svc.Close()

		if err := svc.SendNote(note, velocity, !off); err != nil {
			return fmt.Errorf("failed to send note: %w", err)
		}
		if off {
			fmt.Printf("Note off: %d\n", note)
			return nil
		}
		fmt.Printf("Note on: %d velocity %d\n", note, velocity)

		if hold > 0 {
			time.Sleep(hold)
			if err := svc.SendNote(note, 0, false); err != nil {
				return fmt.Errorf("failed to send note off: %w", err)
			}
			fmt.Printf("Note off: %d\n", note)
		}
		return nil
	},
}

var ccCmd = &cobra.Command{
	Use:   "cc [controller] [value]",
	Short: "Send a MIDI control change to the module",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		controller, err := parseMidiByte("controller", args[0])
		if err != nil {
			return err
		}
		value, err := parseMidiByte("value", args[1])
		if err != nil {
			return err
		}

		svc := newService()
		defer svc.Close()

		if err := svc.SendControlChange(controller, value); err != nil {
			return fmt.Errorf("failed to send control change: %w", err)
		}
		fmt.Printf("Control change: %d = %d\n", controller, value)
		return nil
	},
}

func parseMidiByte(what, s string) (byte, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 || v > 127 {
		return 0, fmt.Errorf("%s must be a number between 0 and 127, got %q", what, s)
	}
	return byte(v), nil
}

func init() {
	noteCmd.Flags().Bool("off", false, "send note-off instead of note-on")
	noteCmd.Flags().Duration("hold", 0, "send the note-off after this long (e.g. 500ms)")
	noteCmd.AddCommand(ccCmd)
}
