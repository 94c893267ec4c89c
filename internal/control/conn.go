package control

import (
	"net"
	"sync"

	"github.com/raibid-labs/scarab/internal/scarab/errs"
)

// DefaultBacklog is the default bound on a connection's outgoing frame
// queue (spec.md §4.6 "default 1024 frames"). When a connection's writer
// cannot keep up and the queue is full, Send fails for the new frame
// (frames already queued are kept) so the caller can close the
// connection — broadcast delivery is best-effort, not guaranteed.
const DefaultBacklog = 1024

// Conn wraps one accepted (or dialed) net.Conn with Scarab's framing: a
// single writer goroutine owns all outgoing frames from an internal
// queue, so callers on any goroutine may call Send concurrently, while
// reading is left to the caller's own loop (its "reader task" per
// spec.md §5 — one reader, one writer per connection).
type Conn struct {
	nc net.Conn

	sendCh chan outFrame
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

type outFrame struct {
	typ     Type
	flags   uint16
	payload []byte
}

// NewConn wraps nc and starts its writer goroutine. backlog <= 0 uses
// DefaultBacklog.
func NewConn(nc net.Conn, backlog int) *Conn {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	c := &Conn{
		nc:     nc,
		sendCh: make(chan outFrame, backlog),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// ReadFrame reads the next frame. Callers drive this in their own loop;
// Conn does not run a reader goroutine of its own.
func (c *Conn) ReadFrame() (Frame, error) {
	return ReadFrame(c.nc, MaxFrameLen)
}

// Send enqueues a frame for the writer goroutine. It returns a
// KindOverflow error without blocking if the outgoing queue is full —
// the caller (the orchestrator's fan-out) should treat that as
// grounds to drop the connection, per spec.md §4.6.
func (c *Conn) Send(typ Type, flags uint16, payload []byte) error {
	select {
	case <-c.done:
		return errs.New(errs.KindClosed, "connection closed")
	default:
	}
	select {
	case c.sendCh <- outFrame{typ: typ, flags: flags, payload: payload}:
		return nil
	default:
		return errs.New(errs.KindOverflow, "connection send backlog full")
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case f := <-c.sendCh:
			if err := WriteFrame(c.nc, f.typ, f.flags, f.payload); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close closes the underlying connection and stops the writer
// goroutine. Safe to call more than once and from any goroutine.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

// RemoteAddr exposes the peer address for logging.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }
