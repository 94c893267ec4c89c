package cli

import (
	"bytes"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/raibid-labs/scarab/internal/daemon"
)

func startTestDaemon(t *testing.T) (sockPath string, d *daemon.Daemon) {
	t.Helper()
	dir := t.TempDir()
	d = daemon.New(daemon.Options{ShmBase: filepath.Join(dir, "scarab"), GraceTimeout: 200 * time.Millisecond})
	sockPath = filepath.Join(dir, "scarab.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go d.Serve(ln)
	t.Cleanup(func() { ln.Close() })
	return sockPath, d
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	return cmd
}

func TestRunStatus_EmptyRegistry(t *testing.T) {
	sockPath, _ := startTestDaemon(t)
	cmd := newTestCmd()
	if err := runStatus(cmd, sockPath); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
}

func TestRunStatus_NoDaemonListening(t *testing.T) {
	cmd := newTestCmd()
	err := runStatus(cmd, filepath.Join(t.TempDir(), "no-such.sock"))
	if err == nil {
		t.Fatal("expected error dialing an absent socket")
	}
	if ExitCode(err) != ExitGeneric {
		t.Fatalf("ExitCode = %d, want ExitGeneric", ExitCode(err))
	}
}

func TestRunStop_TriggersDaemonShutdown(t *testing.T) {
	sockPath, d := startTestDaemon(t)
	cmd := newTestCmd()
	if err := runStop(cmd, sockPath); err != nil {
		t.Fatalf("runStop: %v", err)
	}
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not observe shutdown request")
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != ExitOK {
		t.Fatalf("ExitCode(nil) = %d, want ExitOK", ExitCode(nil))
	}
	if ExitCode(newExitError(ExitBadConfig, errPlaceholder)) != ExitBadConfig {
		t.Fatalf("ExitCode of typed error did not round-trip")
	}
	if ExitCode(errPlaceholder) != ExitGeneric {
		t.Fatalf("ExitCode of untyped error should default to ExitGeneric")
	}
}

var errPlaceholder = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
