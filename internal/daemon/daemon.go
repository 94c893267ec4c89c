// Package daemon implements the session registry and orchestrator
// (spec.md §4.6, component C6): it owns every Session, mediates control
// channel requests against the VT pipeline and the SMR, and fans out
// unsolicited events to attached connections.
package daemon

import (
	"log"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/raibid-labs/scarab/internal/config"
	"github.com/raibid-labs/scarab/internal/control"
	"github.com/raibid-labs/scarab/internal/grid"
	"github.com/raibid-labs/scarab/internal/ptyproc"
	"github.com/raibid-labs/scarab/internal/scarab/errs"
	"github.com/raibid-labs/scarab/internal/shm"
	"github.com/raibid-labs/scarab/internal/vt"
)

// DefaultGraceTimeout is the default graceful-shutdown window before a
// session's child is SIGKILLed (spec.md §5, "default 5 s").
const DefaultGraceTimeout = 5 * time.Second

// Options configures a new Daemon.
type Options struct {
	ShmBase      string // base path; each session's SMR is ShmBase + "." + name
	MaxRows      int
	MaxCols      int
	DirtyCap     int
	InputCap     int
	GraceTimeout time.Duration
	Backlog      int // per-connection outgoing frame backlog

	// DefaultShell/DefaultArgs are used when a CreateSessionRequest
	// omits Shell (the --shell flag on `scarabd run`, split with
	// shlex). An empty DefaultShell falls back to config.Shell().
	DefaultShell string
	DefaultArgs  []string
}

func (o *Options) applyDefaults() {
	if o.MaxRows <= 0 {
		o.MaxRows = 512
	}
	if o.MaxCols <= 0 {
		o.MaxCols = 512
	}
	if o.GraceTimeout <= 0 {
		o.GraceTimeout = DefaultGraceTimeout
	}
	if o.Backlog <= 0 {
		o.Backlog = control.DefaultBacklog
	}
}

// Daemon owns the session registry and every accepted control-channel
// connection. All registry mutations are serialized through its mutex
// (spec.md §5 "single actor owning the registry"); grid mutation itself
// happens only on each session's own PTY-reader goroutine.
type Daemon struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
	conns    map[*control.Conn]*connState

	closing      bool
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// connState tracks the one session a connection is attached to, if any.
type connState struct {
	mu       sync.Mutex
	attached string
}

func (cs *connState) get() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.attached
}

func (cs *connState) set(name string) {
	cs.mu.Lock()
	cs.attached = name
	cs.mu.Unlock()
}

// New builds a Daemon ready to serve connections.
func New(opts Options) *Daemon {
	opts.applyDefaults()
	return &Daemon{
		opts:       opts,
		sessions:   make(map[string]*Session),
		conns:      make(map[*control.Conn]*connState),
		shutdownCh: make(chan struct{}),
	}
}

// Done returns a channel closed once a client has requested shutdown over
// the control channel (TypeShutdown). The caller (cmd/scarabd's run loop)
// is responsible for then closing its listener and calling Shutdown.
func (d *Daemon) Done() <-chan struct{} { return d.shutdownCh }

func (d *Daemon) requestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

// Serve accepts connections from ln until it returns an error (normally
// because ln was closed by Shutdown). Each connection is served on its
// own goroutine.
func (d *Daemon) Serve(ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		go d.serveConn(nc)
	}
}

func (d *Daemon) serveConn(nc net.Conn) {
	conn := control.NewConn(nc, d.opts.Backlog)
	cs := &connState{}

	d.mu.Lock()
	d.conns[conn] = cs
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.conns, conn)
		d.mu.Unlock()
		conn.Close()
	}()

	for {
		f, err := conn.ReadFrame()
		if err != nil {
			return // short read or bad frame: close the connection
		}
		d.dispatch(conn, cs, f)
	}
}

func (d *Daemon) dispatch(conn *control.Conn, cs *connState, f control.Frame) {
	switch f.Type {
	case control.TypeAttach:
		req, err := control.DecodeAttach(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		resp, aerr := d.Attach(cs, req.SessionName)
		if aerr != nil {
			d.sendErr(conn, req.RequestID, errs.KindOf(aerr), aerr.Error())
			return
		}
		resp.RequestID = req.RequestID
		conn.Send(control.TypeSmrHandle, 0, control.EncodeSmrHandle(resp))

	case control.TypeDetach:
		req, err := control.DecodeDetach(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		d.Detach(cs)
		conn.Send(control.TypeOk, 0, control.EncodeOk(control.OkResponse{RequestID: req.RequestID}))

	case control.TypeInput:
		req, err := control.DecodeInput(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		name := cs.get()
		if name == "" {
			d.sendErr(conn, req.RequestID, errs.KindInvalid, "no session attached")
			return
		}
		if err := d.Input(name, req.Bytes); err != nil {
			d.sendErr(conn, req.RequestID, errs.KindOf(err), err.Error())
			return
		}
		conn.Send(control.TypeOk, 0, control.EncodeOk(control.OkResponse{RequestID: req.RequestID}))

	case control.TypeResize:
		req, err := control.DecodeResize(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		name := cs.get()
		if name == "" {
			d.sendErr(conn, req.RequestID, errs.KindInvalid, "no session attached")
			return
		}
		if err := d.Resize(name, int(req.Rows), int(req.Cols)); err != nil {
			d.sendErr(conn, req.RequestID, errs.KindOf(err), err.Error())
			return
		}
		conn.Send(control.TypeOk, 0, control.EncodeOk(control.OkResponse{RequestID: req.RequestID}))

	case control.TypeCreateSession:
		req, err := control.DecodeCreateSession(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		resp, cerr := d.CreateSession(req)
		if cerr != nil {
			d.sendErr(conn, req.RequestID, errs.KindOf(cerr), cerr.Error())
			return
		}
		resp.RequestID = req.RequestID
		conn.Send(control.TypeSmrHandle, 0, control.EncodeSmrHandle(resp))

	case control.TypeCloseSession:
		req, err := control.DecodeCloseSession(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		if err := d.CloseSession(req.Name); err != nil {
			d.sendErr(conn, req.RequestID, errs.KindOf(err), err.Error())
			return
		}
		conn.Send(control.TypeOk, 0, control.EncodeOk(control.OkResponse{RequestID: req.RequestID}))

	case control.TypeListSessions:
		req, err := control.DecodeListSessions(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		names := d.ListSessions()
		conn.Send(control.TypeSessionList, 0, control.EncodeSessionList(control.SessionListResponse{RequestID: req.RequestID, Names: names}))

	case control.TypeGetSession:
		req, err := control.DecodeGetSession(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		info, gerr := d.GetSession(req.Name)
		if gerr != nil {
			d.sendErr(conn, req.RequestID, errs.KindOf(gerr), gerr.Error())
			return
		}
		info.RequestID = req.RequestID
		conn.Send(control.TypeSessionInfo, 0, control.EncodeSessionInfo(info))

	case control.TypeSetTitle:
		req, err := control.DecodeSetTitle(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		name := cs.get()
		if name != "" {
			d.broadcast(name, control.TypeTitleChanged, control.EncodeTitleChanged(control.TitleChangedEvent{Name: name, Text: req.Text}))
		}
		conn.Send(control.TypeOk, 0, control.EncodeOk(control.OkResponse{RequestID: req.RequestID}))

	case control.TypeShutdown:
		req, err := control.DecodeShutdown(f.Payload)
		if err != nil {
			d.sendErr(conn, 0, errs.KindProtocol, err.Error())
			return
		}
		conn.Send(control.TypeOk, 0, control.EncodeOk(control.OkResponse{RequestID: req.RequestID}))
		d.requestShutdown()

	default:
		// Unknown TYPE on an otherwise well-formed frame: reply with
		// Err{UnknownType} and keep the connection open (spec.md §4.5).
		// The first 4 payload bytes are the request_id by convention
		// even for a type we don't recognize.
		var requestID uint32
		if len(f.Payload) >= 4 {
			requestID = uint32(f.Payload[0])<<24 | uint32(f.Payload[1])<<16 | uint32(f.Payload[2])<<8 | uint32(f.Payload[3])
		}
		d.sendErr(conn, requestID, errs.KindUnknown, "unknown frame type")
	}
}

func (d *Daemon) sendErr(conn *control.Conn, requestID uint32, kind errs.Kind, message string) {
	code := control.ErrCodeFromKind(kind)
	if kind == errs.KindUnknown {
		code = control.UnknownTypeCode
	}
	conn.Send(control.TypeErr, 0, control.EncodeErr(control.ErrResponse{RequestID: requestID, Code: code, Message: message}))
}

// CreateSession allocates a Grid, an SMR region, and spawns the child
// under a PTY, then starts its PTY-reader goroutine.
func (d *Daemon) CreateSession(req control.CreateSessionRequest) (control.SmrHandleResponse, error) {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return control.SmrHandleResponse{}, errs.New(errs.KindClosed, "daemon is shutting down")
	}
	if _, exists := d.sessions[req.Name]; exists {
		d.mu.Unlock()
		return control.SmrHandleResponse{}, errs.New(errs.KindConflict, "session name in use")
	}
	d.mu.Unlock()

	rows, cols := int(req.Rows), int(req.Cols)
	if rows <= 0 || cols <= 0 {
		return control.SmrHandleResponse{}, errs.New(errs.KindInvalid, "rows and cols must be positive")
	}

	shell := req.Shell
	args := req.Args
	if shell == "" {
		if d.opts.DefaultShell != "" {
			shell = d.opts.DefaultShell
			if len(args) == 0 {
				args = d.opts.DefaultArgs
			}
		} else {
			shell = config.Shell()
		}
	}
	env := make(map[string]string, len(req.Env)+1)
	for k, v := range req.Env {
		env[k] = v
	}
	if _, ok := env["TERM"]; !ok {
		env["TERM"] = config.DefaultTerm
	}

	proc, err := ptyproc.Start(ptyproc.StartOptions{Command: shell, Args: args, Env: env, Dir: req.Cwd, Rows: rows, Cols: cols})
	if err != nil {
		return control.SmrHandleResponse{}, err
	}

	shmPath := d.opts.ShmBase + "." + req.Name
	w, err := shm.Create(shmPath, shm.CreateOptions{
		MaxRows: d.opts.MaxRows, MaxCols: d.opts.MaxCols,
		Rows: rows, Cols: cols,
		DirtyCap: d.opts.DirtyCap, InputCap: d.opts.InputCap,
	})
	if err != nil {
		proc.Close(d.opts.GraceTimeout)
		return control.SmrHandleResponse{}, err
	}

	g := grid.NewGrid(rows, cols, grid.DefaultScrollbackCapacity)
	pipeline := vt.NewPipeline(vt.PipelineOptions{Proc: proc, Grid: g, Writer: w})

	sess := &Session{
		ID:       uuid.New().String(),
		Name:     req.Name,
		Proc:     proc,
		Grid:     g,
		Pipeline: pipeline,
		Writer:   w,
		ShmPath:  shmPath,
		rows:     rows,
		cols:     cols,
	}

	d.mu.Lock()
	d.sessions[req.Name] = sess
	d.mu.Unlock()

	go d.runSession(sess)

	d.broadcast(req.Name, control.TypeSessionCreated, control.EncodeSessionCreated(control.SessionCreatedEvent{Name: req.Name}))

	return control.SmrHandleResponse{Path: shmPath, Version: shm.LayoutVersion}, nil
}

// runSession drives the session's PTY-reader goroutine until the child
// exits, then tears the session down and notifies attached connections.
func (d *Daemon) runSession(sess *Session) {
	runErr := sess.Pipeline.Run()

	sess.Proc.Close(d.opts.GraceTimeout) // reap the child so ExitCode() is populated
	exitCode := sess.Proc.ExitCode()
	sess.markClosed(exitCode)

	d.mu.Lock()
	delete(d.sessions, sess.Name)
	d.mu.Unlock()

	sess.Writer.Close()

	if runErr != nil {
		log.Printf("session %q: pty closed: %v", sess.Name, runErr)
	}
	d.broadcast(sess.Name, control.TypeChildExited, control.EncodeChildExited(control.ChildExitedEvent{Name: sess.Name}))
	d.broadcast(sess.Name, control.TypeSessionClosed, control.EncodeSessionClosed(control.SessionClosedEvent{Name: sess.Name, ExitCode: int32(exitCode)}))
}

// Attach associates a connection with a session and forces a full
// redraw so the client observes a coherent snapshot on its next poll.
func (d *Daemon) Attach(cs *connState, name string) (control.SmrHandleResponse, error) {
	d.mu.Lock()
	sess, ok := d.sessions[name]
	d.mu.Unlock()
	if !ok {
		return control.SmrHandleResponse{}, errs.New(errs.KindNotFound, "no such session")
	}
	cs.set(name)
	sess.Pipeline.PublishFullRedraw()
	return control.SmrHandleResponse{Path: sess.ShmPath, Version: shm.LayoutVersion}, nil
}

// Detach clears the connection's attached session, if any.
func (d *Daemon) Detach(cs *connState) {
	cs.set("")
}

// Input forwards bytes to the named session's PTY. No echo, no local
// processing.
func (d *Daemon) Input(name string, data []byte) error {
	d.mu.Lock()
	sess, ok := d.sessions[name]
	d.mu.Unlock()
	if !ok {
		return errs.New(errs.KindNotFound, "no such session")
	}
	_, err := sess.Proc.Write(data, ptyWriteTimeout)
	if err != nil {
		d.broadcast(name, control.TypeChildExited, control.EncodeChildExited(control.ChildExitedEvent{Name: name}))
		return err
	}
	return nil
}

// ptyWriteTimeout bounds how long Input waits for a hung child to drain
// its PTY input buffer before failing with KindIO/KindTimeout.
const ptyWriteTimeout = 5 * time.Second

// Resize resizes the session's PTY (TIOCSWINSZ) and then its Grid, and
// publishes the result.
func (d *Daemon) Resize(name string, rows, cols int) error {
	d.mu.Lock()
	sess, ok := d.sessions[name]
	d.mu.Unlock()
	if !ok {
		return errs.New(errs.KindNotFound, "no such session")
	}
	if rows <= 0 || cols <= 0 {
		return errs.New(errs.KindInvalid, "rows and cols must be positive")
	}
	if err := sess.Proc.Resize(rows, cols); err != nil {
		return err
	}
	sess.Grid.Resize(rows, cols)
	sess.setDims(rows, cols)
	return sess.Pipeline.PublishResize(rows, cols)
}

// CloseSession sends SIGHUP to the child, waits up to the configured
// grace timeout, SIGKILLs if needed, reaps, removes the session from
// the registry, and emits SessionClosed to attached connections.
func (d *Daemon) CloseSession(name string) error {
	d.mu.Lock()
	sess, ok := d.sessions[name]
	if ok {
		delete(d.sessions, name)
	}
	d.mu.Unlock()
	if !ok {
		return errs.New(errs.KindNotFound, "no such session")
	}

	closeErr := sess.Proc.Close(d.opts.GraceTimeout)
	exitCode := sess.Proc.ExitCode()
	sess.markClosed(exitCode)
	sess.Writer.Close()

	d.broadcast(name, control.TypeSessionClosed, control.EncodeSessionClosed(control.SessionClosedEvent{Name: name, ExitCode: int32(exitCode)}))

	if closeErr != nil && errs.KindOf(closeErr) != errs.KindTimeout {
		return closeErr
	}
	return nil
}

// ListSessions returns every registered session's name.
func (d *Daemon) ListSessions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.sessions))
	for name := range d.sessions {
		names = append(names, name)
	}
	return names
}

// GetSession returns a snapshot of one session's status.
func (d *Daemon) GetSession(name string) (control.SessionInfoResponse, error) {
	d.mu.Lock()
	sess, ok := d.sessions[name]
	d.mu.Unlock()
	if !ok {
		return control.SessionInfoResponse{}, errs.New(errs.KindNotFound, "no such session")
	}
	rows, cols := sess.Dims()
	return control.SessionInfoResponse{
		Name:    sess.Name,
		ID:      sess.ID,
		Rows:    uint16(rows),
		Cols:    uint16(cols),
		Running: sess.Running(),
	}, nil
}

// broadcast delivers an event to every connection currently attached to
// the named session. Delivery is best-effort: a connection whose
// backlog is full is dropped (spec.md §4.6).
func (d *Daemon) broadcast(name string, typ control.Type, payload []byte) {
	d.mu.Lock()
	targets := make([]*control.Conn, 0)
	for conn, cs := range d.conns {
		if cs.get() == name {
			targets = append(targets, conn)
		}
	}
	d.mu.Unlock()

	for _, conn := range targets {
		if err := conn.Send(typ, 0, payload); err != nil {
			conn.Close()
		}
	}
}

// Shutdown closes every session (SIGHUP/grace/SIGKILL, per CloseSession)
// and every open connection. It does not close any listener passed to
// Serve — the caller owns that.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	d.closing = true
	names := make([]string, 0, len(d.sessions))
	for name := range d.sessions {
		names = append(names, name)
	}
	conns := make([]*control.Conn, 0, len(d.conns))
	for conn := range d.conns {
		conns = append(conns, conn)
	}
	d.mu.Unlock()

	for _, name := range names {
		d.CloseSession(name)
	}
	for _, conn := range conns {
		conn.Close()
	}
}

// SignalName reports a human-readable name for a termination signal,
// used in log messages around shutdown.
func SignalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		return s.String()
	}
	return sig.String()
}
