package shm

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/raibid-labs/scarab/internal/grid"
	"github.com/raibid-labs/scarab/internal/scarab/errs"
)

// DefaultMaxRetries bounds how many times ObserveSnapshot retries a torn
// read before giving up.
const DefaultMaxRetries = 8

// Reader is the client-side handle on an SMR: it observes grid snapshots
// and the dirty-rect ring under the seqlock protocol, and is the sole
// producer of the client-input ring.
type Reader struct {
	path string
	file *os.File
	data []byte
	l    layout
}

// Open maps an existing SMR read/write, verifying magic, layout version,
// and the ready flag. A mismatched version or absent ready flag is
// reported as a KindProtocol error so the caller refuses to attach
// rather than guess at a possibly-incompatible layout.
func Open(path string, maxRows, maxCols, dirtyCap, inputCap int) (*Reader, error) {
	if dirtyCap <= 0 {
		dirtyCap = DefaultDirtyCap
	}
	if inputCap <= 0 {
		inputCap = DefaultInputCap
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New(errs.KindNotFound, "shm region does not exist")
		}
		return nil, errs.Wrap(errs.KindIO, "open shm file", err)
	}
	l := computeLayout(maxRows, maxCols, dirtyCap, inputCap)
	data, err := unix.Mmap(int(f.Fd()), 0, int(l.totalSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.KindIO, "mmap shm file", err)
	}
	r := &Reader{path: path, file: f, data: data, l: l}
	if err := r.verify(); err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) verify() error {
	if loadU32(r.data, offMagic) != Magic {
		return errs.New(errs.KindProtocol, "bad shm magic")
	}
	if loadU32(r.data, offLayoutVersion) != LayoutVersion {
		return errs.New(errs.KindProtocol, "incompatible shm layout version")
	}
	if r.data[offReady] == 0 {
		return errs.New(errs.KindProtocol, "shm region not ready")
	}
	return nil
}

// Snapshot is a torn-read-free copy of everything a renderer needs for
// one frame.
type Snapshot struct {
	Rows, Cols      int
	CursorRow       int
	CursorCol       int
	CursorVisible   bool
	CursorShape     grid.CursorShape
	AltScreenActive bool
	ModeFlags       grid.ModeFlags
	PrimaryCells    []grid.Cell
	AltCells        []grid.Cell
}

// ObserveSnapshot reads a coherent grid snapshot using the seqlock
// protocol: it retries up to maxRetries times on a torn read (an odd or
// changed sequence value) before giving up and returning ok=false.
func (r *Reader) ObserveSnapshot(maxRetries int) (snap Snapshot, ok bool) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		s1 := loadU64(r.data, offSequence)
		if s1&1 != 0 {
			continue // writer mid-batch
		}
		snap = r.copySnapshot()
		s2 := loadU64(r.data, offSequence)
		if s1 == s2 {
			return snap, true
		}
	}
	return Snapshot{}, false
}

func (r *Reader) copySnapshot() Snapshot {
	b := r.data
	rows := int(uint16(b[offRows]) | uint16(b[offRows+1])<<8)
	cols := int(uint16(b[offCols]) | uint16(b[offCols+1])<<8)
	snap := Snapshot{
		Rows:            rows,
		Cols:            cols,
		CursorRow:       int(uint16(b[offCursorRow]) | uint16(b[offCursorRow+1])<<8),
		CursorCol:       int(uint16(b[offCursorCol]) | uint16(b[offCursorCol+1])<<8),
		CursorVisible:   b[offCursorVisible] != 0,
		CursorShape:     grid.CursorShape(b[offCursorShape]),
		AltScreenActive: b[offAltScreenActive] != 0,
		ModeFlags:       grid.ModeFlags(loadU32(b, offModeFlags)),
	}
	snap.PrimaryCells = r.copyCells(r.l.primaryCellsOff, rows, cols)
	snap.AltCells = r.copyCells(r.l.altCellsOff, rows, cols)
	return snap
}

func (r *Reader) copyCells(screenOff int64, rows, cols int) []grid.Cell {
	out := make([]grid.Cell, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			out[row*cols+col] = getCell(r.data, r.l.cellOffset(screenOff, row, col))
		}
	}
	return out
}

// DrainDirty pops every available dirty rect from the ring. Callers
// should check each rect with IsFullRedraw: a full-redraw sentinel means
// the writer collapsed the ring and the whole grid should be treated as
// dirty regardless of any other rects returned.
func (r *Reader) DrainDirty() []DirtyRect {
	head := loadU32(r.data, r.l.dirtyHeadOff)
	tail := loadU32(r.data, r.l.dirtyTailOff)
	cap32 := uint32(r.l.dirtyCap)
	var rects []DirtyRect
	for tail != head {
		slot := int64(tail%cap32) * dirtyRectSize
		rects = append(rects, getDirtyRect(r.data, r.l.dirtyRingOff+slot))
		tail++
	}
	storeU32(r.data, r.l.dirtyTailOff, head)
	return rects
}

// IsFullRedraw reports whether rect is the full-redraw sentinel for a
// grid of the given logical dimensions.
func IsFullRedraw(rect DirtyRect, rows, cols int) bool {
	return rect == FullRedraw(rows, cols)
}

// PushInput appends data to the client-input ring for the daemon to
// drain as a fast path alternative to control-channel Input frames.
// Returns the number of bytes accepted; fewer than len(data) means the
// ring is full. When bytes are dropped, the overflow flag is set so the
// daemon observes it on its next DrainInput — the caller should fall
// back to a control-channel Input frame for the remainder.
func (r *Reader) PushInput(data []byte) int {
	head := loadU32(r.data, r.l.inputHeadOff)
	tail := loadU32(r.data, r.l.inputTailOff)
	cap32 := uint32(r.l.inputCap)
	free := cap32 - (head - tail)
	n := uint32(len(data))
	if n > free {
		n = free
		storeU32(r.data, r.l.inputOverflowOff, 1)
	}
	for i := uint32(0); i < n; i++ {
		r.data[r.l.inputRingOff+int64((head+i)%cap32)] = data[i]
	}
	storeU32(r.data, r.l.inputHeadOff, head+n)
	return int(n)
}

// Close unmaps the region. It never unlinks the underlying file — the
// daemon owns that lifecycle.
func (r *Reader) Close() error {
	if err := unix.Munmap(r.data); err != nil {
		return errs.Wrap(errs.KindIO, "munmap shm file", err)
	}
	return r.file.Close()
}
