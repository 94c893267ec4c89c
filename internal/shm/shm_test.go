package shm

import (
	"path/filepath"
	"testing"

	"github.com/raibid-labs/scarab/internal/grid"
	"github.com/raibid-labs/scarab/internal/scarab/errs"
)

func testOptions() CreateOptions {
	return CreateOptions{MaxRows: 24, MaxCols: 80, Rows: 24, Cols: 80, DirtyCap: 4, InputCap: 8}
}

func TestCreateExclusiveFailsWhenExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	w1, err := Create(path, testOptions())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	defer w1.Close()

	_, err = Create(path, testOptions())
	if errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("second create should conflict, got %v", err)
	}
}

func TestOpenVerifiesMagicAndReady(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	w, err := Create(path, testOptions())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()

	r, err := Open(path, 24, 80, 4, 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
}

func TestSeqlockPublishAndObserve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	w, err := Create(path, testOptions())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()
	r, err := Open(path, 24, 80, 4, 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	w.BeginBatch()
	w.PutCell(ScreenPrimary, 0, 0, grid.Cell{Glyph: 'h'})
	w.PutCell(ScreenPrimary, 0, 1, grid.Cell{Glyph: 'i'})
	w.SetCursor(0, 2, true, grid.CursorBlock)
	w.EndBatch()

	snap, ok := r.ObserveSnapshot(0)
	if !ok {
		t.Fatalf("observe should succeed after a completed batch")
	}
	if snap.PrimaryCells[0].Glyph != 'h' || snap.PrimaryCells[1].Glyph != 'i' {
		t.Fatalf("unexpected cells: %v", snap.PrimaryCells[:2])
	}
	if snap.CursorRow != 0 || snap.CursorCol != 2 || !snap.CursorVisible {
		t.Fatalf("unexpected cursor state: %+v", snap)
	}
}

func TestObserveFailsMidBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	w, err := Create(path, testOptions())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()
	r, err := Open(path, 24, 80, 4, 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	w.BeginBatch()
	_, ok := r.ObserveSnapshot(1)
	if ok {
		t.Fatalf("observe must not succeed while sequence is odd")
	}
	w.EndBatch()
}

func TestDirtyRingOverflowCollapsesToFullRedraw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	opts := testOptions()
	opts.DirtyCap = 2
	w, err := Create(path, opts)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()
	r, err := Open(path, opts.MaxRows, opts.MaxCols, opts.DirtyCap, opts.InputCap)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	if err := w.PushDirty(DirtyRect{RowStart: 0, ColStart: 0, RowEnd: 1, ColEnd: 1}); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if err := w.PushDirty(DirtyRect{RowStart: 1, ColStart: 0, RowEnd: 2, ColEnd: 1}); err != nil {
		t.Fatalf("push 2: %v", err)
	}
	err = w.PushDirty(DirtyRect{RowStart: 2, ColStart: 0, RowEnd: 3, ColEnd: 1})
	if errs.KindOf(err) != errs.KindOverflow {
		t.Fatalf("third push on a 2-slot ring should overflow, got %v", err)
	}

	rects := r.DrainDirty()
	if len(rects) != 1 {
		t.Fatalf("overflow should collapse the ring to exactly 1 rect, got %d", len(rects))
	}
	if !IsFullRedraw(rects[0], 24, 80) {
		t.Fatalf("collapsed rect should be the full-redraw sentinel, got %+v", rects[0])
	}
}

func TestDirtyRingDrainsInOrderWithoutOverflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	w, err := Create(path, testOptions())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()
	r, err := Open(path, 24, 80, 4, 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	a := DirtyRect{RowStart: 0, ColStart: 0, RowEnd: 1, ColEnd: 5}
	b := DirtyRect{RowStart: 1, ColStart: 0, RowEnd: 2, ColEnd: 5}
	if err := w.PushDirty(a); err != nil {
		t.Fatalf("push a: %v", err)
	}
	if err := w.PushDirty(b); err != nil {
		t.Fatalf("push b: %v", err)
	}
	rects := r.DrainDirty()
	if len(rects) != 2 || rects[0] != a || rects[1] != b {
		t.Fatalf("rects out of order or wrong count: %+v", rects)
	}
	if len(r.DrainDirty()) != 0 {
		t.Fatalf("a second drain with nothing new should return no rects")
	}
}

func TestInputRingRoundTripAndOverflowFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	opts := testOptions()
	opts.InputCap = 4
	w, err := Create(path, opts)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()
	r, err := Open(path, opts.MaxRows, opts.MaxCols, opts.DirtyCap, opts.InputCap)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()

	n := r.PushInput([]byte("ab"))
	if n != 2 {
		t.Fatalf("PushInput accepted = %d, want 2", n)
	}
	buf := make([]byte, 8)
	got, overflow := w.DrainInput(buf)
	if got != 2 || overflow {
		t.Fatalf("DrainInput = (%d, %v), want (2, false)", got, overflow)
	}
	if string(buf[:2]) != "ab" {
		t.Fatalf("DrainInput content = %q, want ab", buf[:2])
	}

	n = r.PushInput([]byte("abcdef")) // 6 bytes into a 4-byte ring
	if n != opts.InputCap {
		t.Fatalf("overflowing PushInput accepted = %d, want %d", n, opts.InputCap)
	}
	_, overflow = w.DrainInput(buf)
	if !overflow {
		t.Fatalf("DrainInput should report the overflow the producer flagged")
	}
	_, overflow = w.DrainInput(buf)
	if overflow {
		t.Fatalf("overflow flag should clear after being observed once")
	}
}

func TestSetDimsRejectsOutOfBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	w, err := Create(path, testOptions())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer w.Close()

	if err := w.SetDims(24, 80); err != nil {
		t.Fatalf("within bounds should succeed: %v", err)
	}
	err = w.SetDims(25, 80)
	if errs.KindOf(err) != errs.KindInvalid {
		t.Fatalf("exceeding MaxRows should be Invalid, got %v", err)
	}
}
