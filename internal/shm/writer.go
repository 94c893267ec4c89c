package shm

import (
	"os"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/raibid-labs/scarab/internal/grid"
	"github.com/raibid-labs/scarab/internal/scarab/errs"
)

// Screen selects which of the two cell arenas a Writer call addresses.
type Screen int

const (
	ScreenPrimary Screen = iota
	ScreenAlt
)

// Writer is the daemon-side handle on an SMR: it owns the mapping, runs
// the seqlock writer discipline, and is the sole producer of grid cells
// and dirty rectangles. Exactly one Writer exists per session.
type Writer struct {
	path     string
	lockPath string
	lock     *flock.Flock
	file     *os.File
	data     []byte
	l        layout
	rows     int
	cols     int
}

// CreateOptions configures a new SMR.
type CreateOptions struct {
	MaxRows, MaxCols int
	Rows, Cols       int
	DirtyCap         int
	InputCap         int
	Force            bool // unlink and recreate if a stale region exists
}

// Create allocates and initializes a new SMR at path with exclusive
// semantics: it fails with a KindConflict error if the region already
// exists, unless Force is set. ready is set to 1 last, after every other
// header field has been written, per the lifecycle contract.
func Create(path string, opts CreateOptions) (*Writer, error) {
	if opts.MaxRows <= 0 || opts.MaxCols <= 0 || opts.Rows <= 0 || opts.Cols <= 0 {
		return nil, errs.New(errs.KindInvalid, "rows and cols must be positive")
	}
	if opts.Rows > opts.MaxRows || opts.Cols > opts.MaxCols {
		return nil, errs.New(errs.KindInvalid, "rows/cols exceed compile-time maxima")
	}
	if opts.DirtyCap <= 0 {
		opts.DirtyCap = DefaultDirtyCap
	}
	if opts.InputCap <= 0 {
		opts.InputCap = DefaultInputCap
	}

	lockPath := path + ".lock"
	lk := flock.New(lockPath)
	locked, err := lk.TryLock()
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "acquire shm lock", err)
	}
	if !locked {
		return nil, errs.New(errs.KindConflict, "shm name in use")
	}

	flags := os.O_RDWR | os.O_CREATE | os.O_EXCL
	if opts.Force {
		_ = os.Remove(path)
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		lk.Unlock()
		if os.IsExist(err) {
			return nil, errs.New(errs.KindConflict, "shm name in use")
		}
		return nil, errs.Wrap(errs.KindIO, "create shm file", err)
	}

	l := computeLayout(opts.MaxRows, opts.MaxCols, opts.DirtyCap, opts.InputCap)
	if err := f.Truncate(l.totalSize); err != nil {
		f.Close()
		lk.Unlock()
		return nil, errs.Wrap(errs.KindIO, "truncate shm file", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(l.totalSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		lk.Unlock()
		return nil, errs.Wrap(errs.KindIO, "mmap shm file", err)
	}

	w := &Writer{path: path, lockPath: lockPath, lock: lk, file: f, data: data, l: l}
	w.initHeader(opts.Rows, opts.Cols)
	return w, nil
}

func (w *Writer) initHeader(rows, cols int) {
	b := w.data
	storeU32(b, offMagic, Magic)
	storeU32(b, offLayoutVersion, LayoutVersion)
	storeU64(b, offSequence, 0)
	binary16(b, offRows, uint16(rows))
	binary16(b, offCols, uint16(cols))
	binary16(b, offCursorRow, 0)
	binary16(b, offCursorCol, 0)
	b[offCursorVisible] = 1
	b[offCursorShape] = 0
	b[offAltScreenActive] = 0
	storeU32(b, offModeFlags, uint32(grid.ModeAutoWrap))
	for i := 0; i < reservedSize; i++ {
		b[offReserved+i] = 0
	}
	storeU32(b, w.l.dirtyHeadOff, 0)
	storeU32(b, w.l.dirtyTailOff, 0)
	storeU32(b, w.l.inputHeadOff, 0)
	storeU32(b, w.l.inputTailOff, 0)
	storeU32(b, w.l.inputOverflowOff, 0)
	w.rows, w.cols = rows, cols
	// ready is the very last field written, per the lifecycle contract.
	b[offReady] = 1
}

func binary16(b []byte, off int64, v uint16) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
}

// BeginBatch increments sequence to odd, marking a mutation batch as
// in-flight. No reader sees a consistent snapshot until EndBatch.
func (w *Writer) BeginBatch() {
	addU64(w.data, offSequence, 1)
}

// EndBatch increments sequence back to even, publishing every mutation
// made since BeginBatch to readers.
func (w *Writer) EndBatch() {
	addU64(w.data, offSequence, 1)
}

// SetDims updates the logical rows/cols exposed to readers. It must be
// called within a batch; the arena itself never changes size.
func (w *Writer) SetDims(rows, cols int) error {
	if rows <= 0 || cols <= 0 || rows > w.l.maxRows || cols > w.l.maxCols {
		return errs.New(errs.KindInvalid, "rows/cols out of bounds")
	}
	binary16(w.data, offRows, uint16(rows))
	binary16(w.data, offCols, uint16(cols))
	w.rows, w.cols = rows, cols
	return nil
}

// PutCell writes one cell into the given screen's arena.
func (w *Writer) PutCell(screen Screen, row, col int, c grid.Cell) {
	putCell(w.data, w.l.cellOffset(w.screenOffset(screen), row, col), c)
}

func (w *Writer) screenOffset(screen Screen) int64 {
	if screen == ScreenAlt {
		return w.l.altCellsOff
	}
	return w.l.primaryCellsOff
}

// SetCursor updates the cursor's position, visibility, and shape.
func (w *Writer) SetCursor(row, col int, visible bool, shape grid.CursorShape) {
	binary16(w.data, offCursorRow, uint16(row))
	binary16(w.data, offCursorCol, uint16(col))
	if visible {
		w.data[offCursorVisible] = 1
	} else {
		w.data[offCursorVisible] = 0
	}
	w.data[offCursorShape] = byte(shape)
}

// SetAltScreenActive flips the alt-screen indicator.
func (w *Writer) SetAltScreenActive(active bool) {
	if active {
		w.data[offAltScreenActive] = 1
	} else {
		w.data[offAltScreenActive] = 0
	}
}

// SetModeFlags replaces the published mode bitset.
func (w *Writer) SetModeFlags(flags grid.ModeFlags) {
	storeU32(w.data, offModeFlags, uint32(flags))
}

// PushDirty appends a dirty rectangle to the ring. When the ring is
// already full, every queued rect is dropped and replaced with a single
// full-redraw sentinel (the reader will repaint the whole grid instead
// of trusting stale partial rects); PushDirty then returns a
// KindOverflow error — a warning, not a failure.
func (w *Writer) PushDirty(r DirtyRect) error {
	head := loadU32(w.data, w.l.dirtyHeadOff)
	tail := loadU32(w.data, w.l.dirtyTailOff)
	cap32 := uint32(w.l.dirtyCap)
	if head-tail >= cap32 {
		storeU32(w.data, w.l.dirtyTailOff, head)
		slot := int64(head%cap32) * dirtyRectSize
		putDirtyRect(w.data, w.l.dirtyRingOff+slot, FullRedraw(w.rows, w.cols))
		storeU32(w.data, w.l.dirtyHeadOff, head+1)
		return errs.New(errs.KindOverflow, "dirty ring collapsed to full redraw")
	}
	slot := int64(head%cap32) * dirtyRectSize
	putDirtyRect(w.data, w.l.dirtyRingOff+slot, r)
	storeU32(w.data, w.l.dirtyHeadOff, head+1)
	return nil
}

// DrainInput consumes up to len(buf) bytes the client pushed into the
// input ring (the daemon is the sole consumer). Returns the number of
// bytes copied and whether the producer reported an overflow since the
// last drain; the overflow flag is cleared as part of the drain.
func (w *Writer) DrainInput(buf []byte) (int, bool) {
	head := loadU32(w.data, w.l.inputHeadOff)
	tail := loadU32(w.data, w.l.inputTailOff)
	cap32 := uint32(w.l.inputCap)
	avail := head - tail
	n := uint32(len(buf))
	if n > avail {
		n = avail
	}
	for i := uint32(0); i < n; i++ {
		buf[i] = w.data[w.l.inputRingOff+int64((tail+i)%cap32)]
	}
	storeU32(w.data, w.l.inputTailOff, tail+n)
	overflow := loadU32(w.data, w.l.inputOverflowOff) != 0
	if overflow {
		storeU32(w.data, w.l.inputOverflowOff, 0)
	}
	return int(n), overflow
}

// Close unmaps and unlinks the SMR file and releases the lock.
func (w *Writer) Close() error {
	w.data[offReady] = 0
	err := unix.Munmap(w.data)
	w.file.Close()
	os.Remove(w.path)
	w.lock.Unlock()
	os.Remove(w.lockPath)
	if err != nil {
		return errs.Wrap(errs.KindIO, "munmap shm file", err)
	}
	return nil
}
