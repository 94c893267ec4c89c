// Package control implements Scarab's control channel: the framed
// request/response/event protocol carried over a Unix stream socket,
// out of band from the shared-memory grid. See internal/daemon for the
// orchestrator that decides what each request does.
package control

import (
	"encoding/binary"
	"io"

	"github.com/raibid-labs/scarab/internal/scarab/errs"
)

// MaxFrameLen is the default maximum payload length a frame may carry;
// larger frames are rejected as a protocol error.
const MaxFrameLen = 4 * 1024 * 1024

// frameHeaderLen is the fixed LEN(4)|TYPE(2)|FLAGS(2) prefix.
const frameHeaderLen = 8

// Type codepoints are partitioned into request/response/event ranges so
// a single uint16 switch can classify a frame without a side table.
type Type uint16

// Request types (client -> daemon).
const (
	TypeAttach Type = 0x0001 + iota
	TypeDetach
	TypeInput
	TypeResize
	TypeCreateSession
	TypeCloseSession
	TypeListSessions
	TypeGetSession
	TypeSetTitle
	TypeShutdown
)

// Response types (daemon -> client).
const (
	TypeOk Type = 0x1001 + iota
	TypeErr
	TypeSessionList
	TypeSessionInfo
	TypeSmrHandle
)

// Event types (daemon -> client, unsolicited; RequestID is always 0).
const (
	TypeSessionCreated Type = 0x2001 + iota
	TypeSessionClosed
	TypeTitleChanged
	TypeChildExited
	TypeSemanticZone
	TypeBellRang
)

// IsEvent reports whether t is in the unsolicited-event range.
func (t Type) IsEvent() bool { return t >= TypeSessionCreated && t <= TypeBellRang }

// IsResponse reports whether t is in the response range.
func (t Type) IsResponse() bool { return t >= TypeOk && t <= TypeSmrHandle }

// IsRequest reports whether t is in the request range.
func (t Type) IsRequest() bool { return t >= TypeAttach && t <= TypeShutdown }

// Frame is one decoded `LEN|TYPE|FLAGS|PAYLOAD` message.
type Frame struct {
	Type    Type
	Flags   uint16
	Payload []byte
}

// ReadFrame reads one frame from r. Either failure closes the connection
// in the caller's eyes: a short read of the header or payload returns a
// KindIO error wrapping the read error, and a length prefix exceeding
// maxLen (0 means MaxFrameLen) returns a KindProtocol error.
func ReadFrame(r io.Reader, maxLen uint32) (Frame, error) {
	if maxLen == 0 {
		maxLen = MaxFrameLen
	}
	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, errs.Wrap(errs.KindIO, "read frame header", err)
	}
	length := binary.BigEndian.Uint32(hdr[0:4])
	typ := Type(binary.BigEndian.Uint16(hdr[4:6]))
	flags := binary.BigEndian.Uint16(hdr[6:8])
	if length > maxLen {
		return Frame{}, errs.New(errs.KindProtocol, "frame exceeds maximum length")
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, errs.Wrap(errs.KindIO, "read frame payload", err)
		}
	}
	return Frame{Type: typ, Flags: flags, Payload: payload}, nil
}

// WriteFrame writes one frame to w as a single LEN|TYPE|FLAGS|PAYLOAD
// message.
func WriteFrame(w io.Writer, typ Type, flags uint16, payload []byte) error {
	if len(payload) > MaxFrameLen {
		return errs.New(errs.KindProtocol, "frame exceeds maximum length")
	}
	var hdr [frameHeaderLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint16(hdr[4:6], uint16(typ))
	binary.BigEndian.PutUint16(hdr[6:8], flags)
	if _, err := w.Write(hdr[:]); err != nil {
		return errs.Wrap(errs.KindIO, "write frame header", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return errs.Wrap(errs.KindIO, "write frame payload", err)
		}
	}
	return nil
}
