package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// NewRootCmd builds the otj command tree.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "otj",
		Short: "OpenTraceSplit - split KiCad tracks into parallel buses",
		Long: `OpenTraceSplit (otj) edits KiCad PCB files:
  - list nets with their pad, track and via counts
  - replace every straight track of a net by a bus of parallel tracks

Examples:
  otj pcb nets board.kicad_pcb                          # List nets
  otj pcb nets board.kicad_pcb VBUS                     # Show one net
  otj pcb split board.kicad_pcb --net VBUS --dry-run    # Preview a split
  otj pcb split board.kicad_pcb --net VBUS --count 3 --width 0.5mm --in-place --backup`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			logger := newLogger(cmd.ErrOrStderr(), level)
			log.SetDefault(logger)
			cmd.SetContext(withLogger(cmd.Context(), logger))
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	root.AddCommand(newPCBCmd())

	return root
}

// Execute runs the root command. An interrupt stops a split between two
// segments; what was applied before it is kept.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
