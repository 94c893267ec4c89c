package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/raibid-labs/scarab/internal/control"
	"github.com/raibid-labs/scarab/internal/socketdir"
)

const statusDialTimeout = 2 * time.Second

func newStatusCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe a running daemon and list its sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if socketPath == "" {
				socketPath = socketdir.Path()
			}
			return runStatus(cmd, socketPath)
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "control socket path (default: SCARAB_SOCKET or $XDG_RUNTIME_DIR/scarab.sock)")
	return cmd
}

func runStatus(cmd *cobra.Command, socketPath string) error {
	conn, err := net.DialTimeout("unix", socketPath, statusDialTimeout)
	if err != nil {
		return newExitError(ExitGeneric, fmt.Errorf("connect to %s: %w", socketPath, err))
	}
	defer conn.Close()

	if err := control.WriteFrame(conn, control.TypeListSessions, 0, control.EncodeListSessions(control.ListSessionsRequest{RequestID: 1})); err != nil {
		return newExitError(ExitGeneric, fmt.Errorf("send status request: %w", err))
	}
	f, err := control.ReadFrame(conn, 0)
	if err != nil {
		return newExitError(ExitGeneric, fmt.Errorf("read status response: %w", err))
	}
	if f.Type != control.TypeSessionList {
		return newExitError(ExitGeneric, fmt.Errorf("unexpected response type %v", f.Type))
	}
	resp, err := control.DecodeSessionList(f.Payload)
	if err != nil {
		return newExitError(ExitGeneric, fmt.Errorf("decode status response: %w", err))
	}

	sessions := make([]control.SessionInfoResponse, 0, len(resp.Names))
	for _, name := range resp.Names {
		info, err := fetchSessionInfo(conn, name)
		if err == nil {
			sessions = append(sessions, info)
		}
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		printStatusTable(cmd, sessions)
	} else {
		printStatusJSON(cmd, sessions)
	}
	return nil
}

func fetchSessionInfo(conn net.Conn, name string) (control.SessionInfoResponse, error) {
	if err := control.WriteFrame(conn, control.TypeGetSession, 0, control.EncodeGetSession(control.GetSessionRequest{RequestID: 2, Name: name})); err != nil {
		return control.SessionInfoResponse{}, err
	}
	f, err := control.ReadFrame(conn, 0)
	if err != nil {
		return control.SessionInfoResponse{}, err
	}
	if f.Type != control.TypeSessionInfo {
		return control.SessionInfoResponse{}, fmt.Errorf("unexpected response type %v", f.Type)
	}
	return control.DecodeSessionInfo(f.Payload)
}

func printStatusJSON(cmd *cobra.Command, sessions []control.SessionInfoResponse) {
	out, _ := json.MarshalIndent(sessions, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
}

func printStatusTable(cmd *cobra.Command, sessions []control.SessionInfoResponse) {
	p := termenv.NewOutput(cmd.OutOrStdout())
	header := p.String("NAME\tROWS\tCOLS\tRUNNING").Bold()
	fmt.Fprintln(cmd.OutOrStdout(), header)
	for _, s := range sessions {
		running := p.String("yes").Foreground(termenv.ANSIGreen)
		if !s.Running {
			running = p.String("no").Foreground(termenv.ANSIRed)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%d\t%s\n", s.Name, s.Rows, s.Cols, running)
	}
}
