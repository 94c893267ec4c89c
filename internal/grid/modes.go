package grid

// ModeFlags mirrors the SMR header's mode_flags bitset (see internal/shm),
// one bit per terminal mode.
const (
	ModeAutoWrap ModeFlags = 1 << iota
	ModeOrigin
	ModeAppKeypad
	ModeAppCursor
	ModeMouseX10
	ModeMouseNormal
	ModeMouseBtn
	ModeMouseAny
	ModeSGRMouse
	ModeBracketedPaste
	ModeReverseVideo
)

// ModeFlags is the bit-set type for terminal modes.
type ModeFlags uint32

// CursorShape enumerates the cursor rendering shapes a client may draw.
type CursorShape uint8

const (
	CursorBlock CursorShape = iota
	CursorUnderline
	CursorBeam
)

// Cursor holds the cursor's logical position and rendering hints.
// Col may equal Cols: that is the pending-wrap sentinel (invariant I1).
type Cursor struct {
	Row, Col int
	Visible  bool
	Shape    CursorShape
}

// Charset identifies a G-set's character mapping.
type Charset uint8

const (
	CharsetASCII Charset = iota
	CharsetDECSpecialGraphics
)

// CharsetState tracks the four G-sets and which is mapped into GL by LS0/LS1.
type CharsetState struct {
	G       [4]Charset
	Active  int // index into G, selected by LS0 (0) / LS1 (1)
}

// savedCursorState captures everything DECSC/DECRC round-trips.
type savedCursorState struct {
	cursor   Cursor
	sgrFg    Color
	sgrBg    Color
	sgrAttrs uint32
	charsets CharsetState
	origin   bool
	valid    bool
}
