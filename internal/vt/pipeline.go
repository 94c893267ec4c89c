package vt

import (
	"github.com/raibid-labs/scarab/internal/grid"
	"github.com/raibid-labs/scarab/internal/ptyproc"
	"github.com/raibid-labs/scarab/internal/shm"
)

// Pipeline wires one session's PTY output through a Parser into a Grid,
// publishing one seqlock batch per PTY read to an shm.Writer — the
// "one read, one batch" discipline of spec.md §4.4.
type Pipeline struct {
	proc *ptyproc.Process
	g    *grid.Grid
	p    *Parser
	w    *shm.Writer
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Proc   *ptyproc.Process
	Grid   *grid.Grid
	Writer *shm.Writer
	Parser Options
}

// NewPipeline builds a Pipeline bound to one session's PTY, Grid and SMR
// writer.
func NewPipeline(opts PipelineOptions) *Pipeline {
	return &Pipeline{
		proc: opts.Proc,
		g:    opts.Grid,
		p:    New(opts.Grid, opts.Parser),
		w:    opts.Writer,
	}
}

// Run reads the PTY until EOF or error, feeding every chunk through the
// parser and publishing a batch after each read. It blocks; the caller
// runs it on its own per-session goroutine (spec.md §5's "one PTY-reader
// task per session") and should treat a returned error as the session's
// PTY read terminating — a normal io.EOF on child exit, or a harder I/O
// error.
func (pl *Pipeline) Run() error {
	return pl.proc.Pipe(pl.publishChunk)
}

func (pl *Pipeline) publishChunk(data []byte) {
	pl.w.BeginBatch()
	pl.p.Feed(data)
	pl.publishGridState()
	pl.w.EndBatch()
}

// PublishResize batches an SMR dimension change together with the full
// grid republish that Grid.Resize's own dirty-tracking already produces
// (grid.Resize marks the whole grid dirty as part of reflow).
func (pl *Pipeline) PublishResize(rows, cols int) error {
	pl.w.BeginBatch()
	defer pl.w.EndBatch()
	if err := pl.w.SetDims(rows, cols); err != nil {
		return err
	}
	pl.publishGridState()
	return nil
}

// PublishFullRedraw forces a full-grid publish batch regardless of
// actual dirty state — used on Attach so a newly attached client always
// starts from a coherent snapshot (spec.md §4.6).
func (pl *Pipeline) PublishFullRedraw() {
	pl.w.BeginBatch()
	pl.g.MarkAllDirty()
	pl.publishGridState()
	pl.w.EndBatch()
}

func (pl *Pipeline) publishGridState() {
	screen := shm.ScreenPrimary
	if pl.g.AltScreenActive() {
		screen = shm.ScreenAlt
	}
	if region, ok := pl.g.TakeDirty(); ok {
		for row := region.RowStart; row < region.RowEnd; row++ {
			for col := region.ColStart; col < region.ColEnd; col++ {
				pl.w.PutCell(screen, row, col, pl.g.CellAt(row, col))
			}
		}
		_ = pl.w.PushDirty(shm.DirtyRect{
			RowStart: uint16(region.RowStart),
			ColStart: uint16(region.ColStart),
			RowEnd:   uint16(region.RowEnd),
			ColEnd:   uint16(region.ColEnd),
		})
	}
	cur := pl.g.Cursor()
	pl.w.SetCursor(cur.Row, cur.Col, cur.Visible, cur.Shape)
	pl.w.SetAltScreenActive(pl.g.AltScreenActive())
	pl.w.SetModeFlags(pl.g.Modes())
}

// Grid exposes the underlying grid for read-only inspection (e.g. by
// the orchestrator building a SessionInfo response).
func (pl *Pipeline) Grid() *grid.Grid { return pl.g }
