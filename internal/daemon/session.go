package daemon

import (
	"sync"

	"github.com/raibid-labs/scarab/internal/grid"
	"github.com/raibid-labs/scarab/internal/ptyproc"
	"github.com/raibid-labs/scarab/internal/shm"
	"github.com/raibid-labs/scarab/internal/vt"
)

// Session is a daemon-side record for one running terminal: a PTY
// master, a child process handle, a Grid, a name, and the SMR it
// publishes to. Grid mutation happens only on this session's
// PTY-reader goroutine (spec.md §5); the mutable status fields below
// (dimensions, closed flag, exit code) are guarded by the Session's own
// mutex.
type Session struct {
	ID   string
	Name string

	Proc     *ptyproc.Process
	Grid     *grid.Grid
	Pipeline *vt.Pipeline
	Writer   *shm.Writer
	ShmPath  string

	mu       sync.Mutex
	rows     int
	cols     int
	closed   bool
	exitCode int
}

// Dims returns the session's current logical dimensions.
func (s *Session) Dims() (rows, cols int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.cols
}

func (s *Session) setDims(rows, cols int) {
	s.mu.Lock()
	s.rows, s.cols = rows, cols
	s.mu.Unlock()
}

// Running reports whether the session's child process is still alive.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Session) markClosed(exitCode int) {
	s.mu.Lock()
	s.closed = true
	s.exitCode = exitCode
	s.mu.Unlock()
}

// ExitCode returns the child's exit code once the session has closed
// (-1 while still running or if the code could not be determined).
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		return -1
	}
	return s.exitCode
}
