// Package ptyproc owns one child process running under a pseudo-terminal:
// starting it, piping its output to a callback, writing input with a
// hang timeout, resizing, and a graceful-then-forceful shutdown sequence.
package ptyproc

import (
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/raibid-labs/scarab/internal/scarab/errs"
)

// StartOptions configures a new child process.
type StartOptions struct {
	Command string
	Args    []string
	Env     map[string]string // added to the inherited environment, overriding by key
	Dir     string
	Rows    int
	Cols    int
}

// Process owns a PTY master and the child process attached to its slave
// end. One Process exists per session's PTY-reader goroutine.
type Process struct {
	ptm *os.File
	cmd *exec.Cmd

	mu      sync.Mutex
	exited  bool
	exitErr error
}

// Start spawns the child under a new PTY sized rows x cols.
func Start(opts StartOptions) (*Process, error) {
	cmd := exec.Command(opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		env := make([]string, 0, len(os.Environ())+len(opts.Env))
		for _, e := range os.Environ() {
			key := e
			if idx := strings.IndexByte(e, '='); idx >= 0 {
				key = e[:idx]
			}
			if _, override := opts.Env[key]; !override {
				env = append(env, e)
			}
		}
		for k, v := range opts.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Rows),
		Cols: uint16(opts.Cols),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindChildSpawn, "start child under pty", err)
	}
	return &Process{ptm: ptm, cmd: cmd}, nil
}

// Pipe reads child output until EOF or error, invoking onChunk for every
// non-empty read. It returns the terminal read error (io.EOF on a normal
// child exit). The caller runs this on its own PTY-reader goroutine.
func (p *Process) Pipe(onChunk func([]byte)) error {
	buf := make([]byte, 4096)
	for {
		n, err := p.ptm.Read(buf)
		if n > 0 {
			onChunk(buf[:n])
		}
		if err != nil {
			p.mu.Lock()
			p.exited = true
			p.exitErr = err
			p.mu.Unlock()
			return err
		}
	}
}

// errWriteTimeoutMessage is the message of the KindTimeout error Write
// returns when the child is not draining its PTY input fast enough.
var errWriteTimeoutMessage = "pty write timed out: child is not reading stdin"

// Write writes p to the PTY master, giving up after timeout: if the
// child's kernel PTY input buffer is full (child is hung or ignoring
// stdin), a direct write can block forever, so the write runs on its own
// goroutine and the caller reclaims control on a deadline.
func (p *Process) Write(data []byte, timeout time.Duration) (int, error) {
	type result struct {
		n   int
		err error
	}
	ch := make(chan result, 1)
	go func() {
		n, err := p.ptm.Write(data)
		ch <- result{n, err}
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.err != nil {
			return r.n, errs.Wrap(errs.KindIO, "pty write", r.err)
		}
		return r.n, nil
	case <-timer.C:
		return 0, errs.New(errs.KindTimeout, errWriteTimeoutMessage)
	}
}

// Resize updates the PTY's window size, which delivers SIGWINCH to the
// child.
func (p *Process) Resize(rows, cols int) error {
	err := pty.Setsize(p.ptm, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return errs.Wrap(errs.KindIO, "resize pty", err)
	}
	return nil
}

// Close performs a graceful-then-forceful shutdown: SIGHUP, wait up to
// grace, then SIGKILL. The PTY master is always closed before returning.
func (p *Process) Close(grace time.Duration) error {
	defer p.ptm.Close()

	if p.cmd.Process != nil {
		p.cmd.Process.Signal(syscall.SIGHUP)
	}

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		<-done
		return errs.New(errs.KindTimeout, "child did not exit after SIGHUP, sent SIGKILL")
	}
}

// Exited reports whether Pipe has observed the child's output stream
// close, and the terminal error it saw (io.EOF on a clean exit).
func (p *Process) Exited() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited, p.exitErr
}

// Signal delivers sig to the child process, if still running.
func (p *Process) Signal(sig os.Signal) error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

// ExitCode returns the child's exit status. It is only meaningful after
// Close has returned (cmd.Wait must have run to populate ProcessState);
// before that, or if the child was killed by a signal, it returns -1.
func (p *Process) ExitCode() int {
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}
