package control

import "github.com/raibid-labs/scarab/internal/scarab/errs"

// Every request and response payload begins with a 4-byte RequestID
// (documented once, here, per spec.md §4.5's "implementer's choice").
// Events carry no RequestID field; their frame's FLAGS/Type alone
// identify them, and by convention a reader treats an event's logical
// request id as 0.

// --- Requests (client -> daemon) ---

type AttachRequest struct {
	RequestID   uint32
	SessionName string
}

type DetachRequest struct {
	RequestID uint32
}

type InputRequest struct {
	RequestID uint32
	Bytes     []byte
}

type ResizeRequest struct {
	RequestID uint32
	Rows      uint16
	Cols      uint16
}

type CreateSessionRequest struct {
	RequestID uint32
	Name      string
	Shell     string
	Args      []string
	Env       map[string]string
	Cwd       string
	Rows      uint16
	Cols      uint16
}

type CloseSessionRequest struct {
	RequestID uint32
	Name      string
}

type ListSessionsRequest struct {
	RequestID uint32
}

type GetSessionRequest struct {
	RequestID uint32
	Name      string
}

type SetTitleRequest struct {
	RequestID uint32
	Text      string
}

type ShutdownRequest struct {
	RequestID uint32
}

// --- Responses (daemon -> client) ---

type OkResponse struct {
	RequestID uint32
}

type ErrResponse struct {
	RequestID uint32
	Code      uint16 // mirrors errs.Kind
	Message   string
}

type SessionListResponse struct {
	RequestID uint32
	Names     []string
}

type SessionInfoResponse struct {
	RequestID uint32
	Name      string
	ID        string
	Rows      uint16
	Cols      uint16
	Running   bool
}

type SmrHandleResponse struct {
	RequestID uint32
	Path      string
	Version   uint32
}

// --- Events (daemon -> client, unsolicited) ---

type SessionCreatedEvent struct {
	Name string
}

type SessionClosedEvent struct {
	Name     string
	ExitCode int32
}

type TitleChangedEvent struct {
	Name string
	Text string
}

type ChildExitedEvent struct {
	Name string
}

type SemanticZoneEvent struct {
	Name  string
	Kind  uint8
	Start uint32
	End   uint32
}

type BellRangEvent struct {
	Name string
}

// --- Encode ---

func EncodeAttach(r AttachRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.str(r.SessionName)
	return e.buf
}

func EncodeDetach(r DetachRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	return e.buf
}

func EncodeInput(r InputRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.bytes(r.Bytes)
	return e.buf
}

func EncodeResize(r ResizeRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.u16(r.Rows)
	e.u16(r.Cols)
	return e.buf
}

func EncodeCreateSession(r CreateSessionRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.str(r.Name)
	e.str(r.Shell)
	e.strSlice(r.Args)
	e.strMap(r.Env)
	e.str(r.Cwd)
	e.u16(r.Rows)
	e.u16(r.Cols)
	return e.buf
}

func EncodeCloseSession(r CloseSessionRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.str(r.Name)
	return e.buf
}

func EncodeListSessions(r ListSessionsRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	return e.buf
}

func EncodeGetSession(r GetSessionRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.str(r.Name)
	return e.buf
}

func EncodeSetTitle(r SetTitleRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.str(r.Text)
	return e.buf
}

func EncodeShutdown(r ShutdownRequest) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	return e.buf
}

func EncodeOk(r OkResponse) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	return e.buf
}

func EncodeErr(r ErrResponse) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.u16(r.Code)
	e.str(r.Message)
	return e.buf
}

func EncodeSessionList(r SessionListResponse) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.strSlice(r.Names)
	return e.buf
}

func EncodeSessionInfo(r SessionInfoResponse) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.str(r.Name)
	e.str(r.ID)
	e.u16(r.Rows)
	e.u16(r.Cols)
	if r.Running {
		e.u8(1)
	} else {
		e.u8(0)
	}
	return e.buf
}

func EncodeSmrHandle(r SmrHandleResponse) []byte {
	e := &encoder{}
	e.u32(r.RequestID)
	e.str(r.Path)
	e.u32(r.Version)
	return e.buf
}

func EncodeSessionCreated(ev SessionCreatedEvent) []byte {
	e := &encoder{}
	e.str(ev.Name)
	return e.buf
}

func EncodeSessionClosed(ev SessionClosedEvent) []byte {
	e := &encoder{}
	e.str(ev.Name)
	e.u32(uint32(ev.ExitCode))
	return e.buf
}

func EncodeTitleChanged(ev TitleChangedEvent) []byte {
	e := &encoder{}
	e.str(ev.Name)
	e.str(ev.Text)
	return e.buf
}

func EncodeChildExited(ev ChildExitedEvent) []byte {
	e := &encoder{}
	e.str(ev.Name)
	return e.buf
}

func EncodeSemanticZone(ev SemanticZoneEvent) []byte {
	e := &encoder{}
	e.str(ev.Name)
	e.u8(ev.Kind)
	e.u32(ev.Start)
	e.u32(ev.End)
	return e.buf
}

func EncodeBellRang(ev BellRangEvent) []byte {
	e := &encoder{}
	e.str(ev.Name)
	return e.buf
}

// --- Decode ---

func DecodeAttach(p []byte) (AttachRequest, error) {
	d := newDecoder(p)
	var r AttachRequest
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	r.SessionName, err = d.str()
	return r, err
}

func DecodeDetach(p []byte) (DetachRequest, error) {
	d := newDecoder(p)
	var r DetachRequest
	var err error
	r.RequestID, err = d.u32()
	return r, err
}

func DecodeInput(p []byte) (InputRequest, error) {
	d := newDecoder(p)
	var r InputRequest
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	r.Bytes, err = d.bytes()
	return r, err
}

func DecodeResize(p []byte) (ResizeRequest, error) {
	d := newDecoder(p)
	var r ResizeRequest
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	if r.Rows, err = d.u16(); err != nil {
		return r, err
	}
	r.Cols, err = d.u16()
	return r, err
}

func DecodeCreateSession(p []byte) (CreateSessionRequest, error) {
	d := newDecoder(p)
	var r CreateSessionRequest
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	if r.Name, err = d.str(); err != nil {
		return r, err
	}
	if r.Shell, err = d.str(); err != nil {
		return r, err
	}
	if r.Args, err = d.strSlice(); err != nil {
		return r, err
	}
	if r.Env, err = d.strMap(); err != nil {
		return r, err
	}
	if r.Cwd, err = d.str(); err != nil {
		return r, err
	}
	if r.Rows, err = d.u16(); err != nil {
		return r, err
	}
	r.Cols, err = d.u16()
	return r, err
}

func DecodeCloseSession(p []byte) (CloseSessionRequest, error) {
	d := newDecoder(p)
	var r CloseSessionRequest
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	r.Name, err = d.str()
	return r, err
}

func DecodeListSessions(p []byte) (ListSessionsRequest, error) {
	d := newDecoder(p)
	var r ListSessionsRequest
	var err error
	r.RequestID, err = d.u32()
	return r, err
}

func DecodeGetSession(p []byte) (GetSessionRequest, error) {
	d := newDecoder(p)
	var r GetSessionRequest
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	r.Name, err = d.str()
	return r, err
}

func DecodeSetTitle(p []byte) (SetTitleRequest, error) {
	d := newDecoder(p)
	var r SetTitleRequest
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	r.Text, err = d.str()
	return r, err
}

func DecodeShutdown(p []byte) (ShutdownRequest, error) {
	d := newDecoder(p)
	var r ShutdownRequest
	var err error
	r.RequestID, err = d.u32()
	return r, err
}

func DecodeOk(p []byte) (OkResponse, error) {
	d := newDecoder(p)
	var r OkResponse
	var err error
	r.RequestID, err = d.u32()
	return r, err
}

func DecodeErr(p []byte) (ErrResponse, error) {
	d := newDecoder(p)
	var r ErrResponse
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	if r.Code, err = d.u16(); err != nil {
		return r, err
	}
	r.Message, err = d.str()
	return r, err
}

func DecodeSessionList(p []byte) (SessionListResponse, error) {
	d := newDecoder(p)
	var r SessionListResponse
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	r.Names, err = d.strSlice()
	return r, err
}

func DecodeSessionInfo(p []byte) (SessionInfoResponse, error) {
	d := newDecoder(p)
	var r SessionInfoResponse
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	if r.Name, err = d.str(); err != nil {
		return r, err
	}
	if r.ID, err = d.str(); err != nil {
		return r, err
	}
	if r.Rows, err = d.u16(); err != nil {
		return r, err
	}
	if r.Cols, err = d.u16(); err != nil {
		return r, err
	}
	running, err := d.u8()
	if err != nil {
		return r, err
	}
	r.Running = running != 0
	return r, nil
}

func DecodeSmrHandle(p []byte) (SmrHandleResponse, error) {
	d := newDecoder(p)
	var r SmrHandleResponse
	var err error
	if r.RequestID, err = d.u32(); err != nil {
		return r, err
	}
	if r.Path, err = d.str(); err != nil {
		return r, err
	}
	r.Version, err = d.u32()
	return r, err
}

func DecodeSessionCreated(p []byte) (SessionCreatedEvent, error) {
	d := newDecoder(p)
	var ev SessionCreatedEvent
	var err error
	ev.Name, err = d.str()
	return ev, err
}

func DecodeSessionClosed(p []byte) (SessionClosedEvent, error) {
	d := newDecoder(p)
	var ev SessionClosedEvent
	var err error
	if ev.Name, err = d.str(); err != nil {
		return ev, err
	}
	exitCode, err := d.u32()
	ev.ExitCode = int32(exitCode)
	return ev, err
}

func DecodeTitleChanged(p []byte) (TitleChangedEvent, error) {
	d := newDecoder(p)
	var ev TitleChangedEvent
	var err error
	if ev.Name, err = d.str(); err != nil {
		return ev, err
	}
	ev.Text, err = d.str()
	return ev, err
}

func DecodeChildExited(p []byte) (ChildExitedEvent, error) {
	d := newDecoder(p)
	var ev ChildExitedEvent
	var err error
	ev.Name, err = d.str()
	return ev, err
}

func DecodeSemanticZone(p []byte) (SemanticZoneEvent, error) {
	d := newDecoder(p)
	var ev SemanticZoneEvent
	var err error
	if ev.Name, err = d.str(); err != nil {
		return ev, err
	}
	if ev.Kind, err = d.u8(); err != nil {
		return ev, err
	}
	if ev.Start, err = d.u32(); err != nil {
		return ev, err
	}
	ev.End, err = d.u32()
	return ev, err
}

func DecodeBellRang(p []byte) (BellRangEvent, error) {
	d := newDecoder(p)
	var ev BellRangEvent
	var err error
	ev.Name, err = d.str()
	return ev, err
}

// ErrCodeFromKind maps an errs.Kind onto the wire-stable Err.Code field.
func ErrCodeFromKind(k errs.Kind) uint16 { return uint16(k) }

// KindFromErrCode is the inverse of ErrCodeFromKind.
func KindFromErrCode(code uint16) errs.Kind { return errs.Kind(code) }

// UnknownTypeCode is the Err.Code sent back for an unrecognized frame
// Type on an otherwise well-formed frame (spec.md §4.5).
const UnknownTypeCode uint16 = 0xFFFF
