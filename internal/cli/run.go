package cli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raibid-labs/scarab/internal/config"
	"github.com/raibid-labs/scarab/internal/daemon"
	"github.com/raibid-labs/scarab/internal/socketdir"
)

func newRunCmd() *cobra.Command {
	var socketPath string
	var shmName string
	var rows int
	var cols int
	var defaultShell string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scarab daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, socketPath, shmName, rows, cols, defaultShell)
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "control socket path (default: SCARAB_SOCKET or $XDG_RUNTIME_DIR/scarab.sock)")
	cmd.Flags().StringVar(&shmName, "shm-name", "", "shared-memory region base name (default: SCARAB_SHM or \"scarab\")")
	cmd.Flags().IntVar(&rows, "rows", 0, "maximum session rows (default: detected terminal height, or 512)")
	cmd.Flags().IntVar(&cols, "cols", 0, "maximum session cols (default: detected terminal width, or 512)")
	cmd.Flags().StringVar(&defaultShell, "shell", "", "full command line used when CreateSession omits Shell (default: $SHELL)")

	return cmd
}

func runDaemon(cmd *cobra.Command, socketPath, shmName string, rows, cols int, defaultShell string) error {
	if socketPath == "" {
		socketPath = socketdir.Path()
	}
	if shmName == "" {
		shmName = config.ShmName()
	}
	if rows <= 0 {
		rows = detectedRows()
	}
	if cols <= 0 {
		cols = detectedCols()
	}

	var shellCmd string
	var shellArgs []string
	if defaultShell != "" {
		argv, err := shlex.Split(defaultShell)
		if err != nil || len(argv) == 0 {
			return newExitError(ExitBadConfig, fmt.Errorf("invalid --shell %q: %w", defaultShell, err))
		}
		shellCmd, shellArgs = argv[0], argv[1:]
	}

	if err := socketdir.Probe(socketPath, "scarab daemon"); err != nil {
		return newExitError(ExitSocketBusy, err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return newExitError(ExitPermission, err)
		}
		return newExitError(ExitSocketBusy, err)
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		ln.Close()
		return newExitError(ExitGeneric, err)
	}
	defer os.Remove(socketPath)

	d := daemon.New(daemon.Options{
		ShmBase:      shmName,
		MaxRows:      rows,
		MaxCols:      cols,
		DefaultShell: shellCmd,
		DefaultArgs:  shellArgs,
	})

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- d.Serve(ln) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		fmt.Fprintf(cmd.ErrOrStderr(), "scarabd: received %s, shutting down\n", daemon.SignalName(sig))
	case <-d.Done():
		fmt.Fprintln(cmd.ErrOrStderr(), "scarabd: shutdown requested over control channel")
	case err := <-serveErrCh:
		if err != nil {
			return newExitError(ExitGeneric, err)
		}
	}

	ln.Close()
	d.Shutdown()
	return nil
}

// detectedRows probes the controlling terminal's height, falling back to
// a generous ceiling when scarabd is run without a tty (e.g. under a
// service manager).
func detectedRows() int {
	if _, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && h > 0 {
		return h
	}
	return 512
}

func detectedCols() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 512
}
