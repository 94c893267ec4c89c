// Package shm implements the shared-memory region (SMR) that publishes a
// daemon-owned grid to a client process, and the lock-free seqlock
// publish/observe protocol built on top of it. The byte layout is
// bit-exact and versioned so a client can refuse to attach to an
// incompatible daemon.
package shm

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/raibid-labs/scarab/internal/grid"
)

// Magic identifies an SMR file (the bytes "SCAR" read big-endian as a
// u32; it is stored in host byte order like every other header field).
const Magic uint32 = 0x53434152

// LayoutVersion is bumped whenever the byte layout below changes shape.
const LayoutVersion uint32 = 1

const (
	cellSize      = 16
	dirtyRectSize = 8

	// Fixed header field offsets, bit-exact per the wire contract.
	offMagic           = 0x0000
	offLayoutVersion   = 0x0004
	offSequence        = 0x0008
	offRows            = 0x0010
	offCols            = 0x0012
	offCursorRow       = 0x0014
	offCursorCol       = 0x0016
	offCursorVisible   = 0x0018
	offCursorShape     = 0x0019
	offAltScreenActive = 0x001A
	offReady           = 0x001B
	offModeFlags       = 0x001C
	offReserved        = 0x0020
	reservedSize       = 24
	headerSize         = 0x0038
)

// DefaultDirtyCap and DefaultInputCap are the ring capacities used when a
// caller does not override them.
const (
	DefaultDirtyCap = 256
	DefaultInputCap = 4096
)

// DirtyRect names a rectangular region of the grid that changed since the
// last dirty-ring drain; (RowEnd, ColEnd) are exclusive.
type DirtyRect struct {
	RowStart, ColStart uint16
	RowEnd, ColEnd     uint16
}

// FullRedraw is pushed in place of individual rects when the dirty ring
// overflows: it spans the entire logical grid and tells the reader to
// treat every cell as dirty instead of trusting the ring.
func FullRedraw(rows, cols int) DirtyRect {
	return DirtyRect{RowStart: 0, ColStart: 0, RowEnd: uint16(rows), ColEnd: uint16(cols)}
}

// layout computes every derived offset for a region sized to hold
// maxRows x maxCols cells per screen plus the given ring capacities. The
// total size never changes after creation — resizing the logical grid
// (within maxRows x maxCols) only updates header fields, never the
// region's size, so a resize never requires remapping.
type layout struct {
	maxRows, maxCols     int
	dirtyCap, inputCap   int
	primaryCellsOff      int64
	altCellsOff          int64
	dirtyHeadOff         int64
	dirtyTailOff         int64
	dirtyRingOff         int64
	inputHeadOff         int64
	inputTailOff         int64
	inputOverflowOff     int64
	inputRingOff         int64
	totalSize            int64
}

func computeLayout(maxRows, maxCols, dirtyCap, inputCap int) layout {
	cellsLen := int64(maxRows) * int64(maxCols) * cellSize
	l := layout{maxRows: maxRows, maxCols: maxCols, dirtyCap: dirtyCap, inputCap: inputCap}
	l.primaryCellsOff = headerSize
	l.altCellsOff = l.primaryCellsOff + cellsLen
	l.dirtyHeadOff = l.altCellsOff + cellsLen
	l.dirtyTailOff = l.dirtyHeadOff + 4
	l.dirtyRingOff = l.dirtyTailOff + 4
	l.inputHeadOff = l.dirtyRingOff + int64(dirtyCap)*dirtyRectSize
	l.inputTailOff = l.inputHeadOff + 4
	// inputOverflowOff is an extra atomic flag the input-ring producer
	// (the client) sets when PushInput has to drop bytes for lack of
	// room; the consumer (the daemon) clears it on each DrainInput. The
	// wire contract's byte map leaves the ring internals as "var", so
	// this field has no fixed spec offset.
	l.inputOverflowOff = l.inputTailOff + 4
	l.inputRingOff = l.inputOverflowOff + 4
	l.totalSize = l.inputRingOff + int64(inputCap)
	return l
}

func (l layout) cellOffset(screenOff int64, row, col int) int64 {
	return screenOff + (int64(row)*int64(l.maxCols)+int64(col))*cellSize
}

// --- atomic helpers over a byte-addressed mmap ---
//
// sync/atomic requires naturally aligned addresses; every offset above is
// chosen to satisfy that for its field width, and mmap returns
// page-aligned (hence far-more-than-8-byte-aligned) base addresses, so
// casting &buf[off] is safe. No third-party library offers atomic
// operations over an mmap'd byte slice, so this is the one place this
// package reaches past golang.org/x/sys/unix into stdlib unsafe/atomic.

func loadU64(b []byte, off int64) uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&b[off])))
}

func storeU64(b []byte, off int64, v uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&b[off])), v)
}

func addU64(b []byte, off int64, delta uint64) uint64 {
	return atomic.AddUint64((*uint64)(unsafe.Pointer(&b[off])), delta)
}

func loadU32(b []byte, off int64) uint32 {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&b[off])))
}

func storeU32(b []byte, off int64, v uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&b[off])), v)
}

func putCell(b []byte, off int64, c grid.Cell) {
	binary.LittleEndian.PutUint32(b[off:], c.Glyph)
	binary.LittleEndian.PutUint32(b[off+4:], c.Fg)
	binary.LittleEndian.PutUint32(b[off+8:], c.Bg)
	binary.LittleEndian.PutUint32(b[off+12:], c.Attrs)
}

func getCell(b []byte, off int64) grid.Cell {
	return grid.Cell{
		Glyph: binary.LittleEndian.Uint32(b[off:]),
		Fg:    binary.LittleEndian.Uint32(b[off+4:]),
		Bg:    binary.LittleEndian.Uint32(b[off+8:]),
		Attrs: binary.LittleEndian.Uint32(b[off+12:]),
	}
}

func putDirtyRect(b []byte, off int64, r DirtyRect) {
	binary.LittleEndian.PutUint16(b[off:], r.RowStart)
	binary.LittleEndian.PutUint16(b[off+2:], r.ColStart)
	binary.LittleEndian.PutUint16(b[off+4:], r.RowEnd)
	binary.LittleEndian.PutUint16(b[off+6:], r.ColEnd)
}

func getDirtyRect(b []byte, off int64) DirtyRect {
	return DirtyRect{
		RowStart: binary.LittleEndian.Uint16(b[off:]),
		ColStart: binary.LittleEndian.Uint16(b[off+2:]),
		RowEnd:   binary.LittleEndian.Uint16(b[off+4:]),
		ColEnd:   binary.LittleEndian.Uint16(b[off+6:]),
	}
}
