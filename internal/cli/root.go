// Package cli builds the scarabd command-line surface: run, status, stop,
// and version. status colors its session table only when stdout is a
// terminal.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/raibid-labs/scarab/internal/version"
)

// NewRootCmd creates the root cobra command with all subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "scarabd",
		Short:         "Split-process terminal emulator daemon",
		Long:          "scarabd runs terminal sessions under a PTY and publishes their grid state over shared memory for zero-copy client rendering.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newStopCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scarabd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(version.DisplayVersion())
			return nil
		},
	}
}
