package cli

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/raibid-labs/scarab/internal/control"
	"github.com/raibid-labs/scarab/internal/socketdir"
)

const stopDialTimeout = 2 * time.Second

func newStopCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Send a shutdown request to a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if socketPath == "" {
				socketPath = socketdir.Path()
			}
			return runStop(cmd, socketPath)
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "control socket path (default: SCARAB_SOCKET or $XDG_RUNTIME_DIR/scarab.sock)")
	return cmd
}

func runStop(cmd *cobra.Command, socketPath string) error {
	conn, err := net.DialTimeout("unix", socketPath, stopDialTimeout)
	if err != nil {
		return newExitError(ExitGeneric, fmt.Errorf("connect to %s: %w", socketPath, err))
	}
	defer conn.Close()

	if err := control.WriteFrame(conn, control.TypeShutdown, 0, control.EncodeShutdown(control.ShutdownRequest{RequestID: 1})); err != nil {
		return newExitError(ExitGeneric, fmt.Errorf("send shutdown request: %w", err))
	}
	f, err := control.ReadFrame(conn, 0)
	if err != nil {
		return newExitError(ExitGeneric, fmt.Errorf("read shutdown response: %w", err))
	}
	if f.Type != control.TypeOk {
		return newExitError(ExitGeneric, fmt.Errorf("daemon refused shutdown (type %v)", f.Type))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "scarabd: stop requested")
	return nil
}
