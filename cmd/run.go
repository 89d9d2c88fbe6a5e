package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [source] [name]",
	Short: "Execute pipeline steps on a source file",
	Long: `Execute the specified pipeline steps. Use -p to specify which steps to run:
r renders the source through the module, m encodes the render, p plays it.
The name defaults to the source file name without its extension.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pipeline == "" {
			return fmt.Errorf("no pipeline specified, use -p flag (e.g., -p rmp)")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := newService()
		defer svc.Close()

		return runSteps(ctx, svc, args[0], renderName(args), []rune(strings.ToLower(pipeline)))
	},
}
