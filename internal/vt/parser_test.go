package vt

import (
	"testing"

	"github.com/raibid-labs/scarab/internal/grid"
)

func TestEcho(t *testing.T) {
	g := grid.NewGrid(24, 80, 100)
	p := New(g, Options{})
	p.Feed([]byte("hello\n"))

	cur := g.Cursor()
	if cur.Row != 1 || cur.Col != 0 {
		t.Fatalf("cursor = (%d,%d), want (1,0)", cur.Row, cur.Col)
	}
	want := "hello"
	for i, r := range want {
		if got := rune(g.CellAt(0, i).Glyph); got != r {
			t.Fatalf("cell (0,%d) = %q, want %q", i, got, r)
		}
	}
}

func TestSGRAndClear(t *testing.T) {
	g := grid.NewGrid(5, 5, 10)
	p := New(g, Options{})
	p.Feed([]byte("\x1b[31mX\x1b[0m\x1b[2J"))

	cur := g.Cursor()
	if cur.Row != 0 || cur.Col != 1 {
		t.Fatalf("2J must not move the cursor, got (%d,%d)", cur.Row, cur.Col)
	}
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			cell := g.CellAt(r, c)
			if grid.Color(cell.Fg) != grid.DefaultColor || grid.Color(cell.Bg) != grid.DefaultColor {
				t.Fatalf("cell (%d,%d) not cleared to default color: %+v", r, c, cell)
			}
		}
	}
}

func TestAltScreenRoundtrip(t *testing.T) {
	g := grid.NewGrid(5, 5, 10)
	p := New(g, Options{})
	p.Feed([]byte("A\x1b[?1049hB\x1b[?1049l"))

	if g.AltScreenActive() {
		t.Fatalf("alt screen should be inactive after the roundtrip")
	}
	if got := rune(g.CellAt(0, 0).Glyph); got != 'A' {
		t.Fatalf("primary cell (0,0) = %q, want 'A'", got)
	}
}

func TestCursorMotionCSI(t *testing.T) {
	g := grid.NewGrid(10, 10, 10)
	p := New(g, Options{})
	p.Feed([]byte("\x1b[5;5H"))
	cur := g.Cursor()
	if cur.Row != 4 || cur.Col != 4 {
		t.Fatalf("CUP 5;5 -> (%d,%d), want (4,4)", cur.Row, cur.Col)
	}
	p.Feed([]byte("\x1b[2A\x1b[3C"))
	cur = g.Cursor()
	if cur.Row != 2 || cur.Col != 7 {
		t.Fatalf("after CUU2/CUF3 -> (%d,%d), want (2,7)", cur.Row, cur.Col)
	}
}

func TestEraseLineToEndFromCursor(t *testing.T) {
	g := grid.NewGrid(1, 5, 10)
	p := New(g, Options{})
	p.Feed([]byte("abcde\x1b[3G\x1b[K"))
	if g.CellAt(0, 2).Glyph != ' ' {
		t.Fatalf("EL default (to-end) should clear from the cursor")
	}
	if g.CellAt(0, 0).Glyph != 'a' {
		t.Fatalf("EL to-end must not clear before the cursor")
	}
}

func TestInsertAndDeleteChars(t *testing.T) {
	g := grid.NewGrid(1, 5, 10)
	p := New(g, Options{})
	p.Feed([]byte("abcde\x1b[1;1H\x1b[2@"))
	if g.CellAt(0, 0).Glyph != ' ' || g.CellAt(0, 1).Glyph != ' ' {
		t.Fatalf("ICH 2 should blank the first two columns")
	}
	if g.CellAt(0, 2).Glyph != 'a' {
		t.Fatalf("ICH 2 should shift 'a' to column 2, got %q", rune(g.CellAt(0, 2).Glyph))
	}

	g2 := grid.NewGrid(1, 5, 10)
	p2 := New(g2, Options{})
	p2.Feed([]byte("abcde\x1b[1;1H\x1b[2P"))
	if g2.CellAt(0, 0).Glyph != 'c' {
		t.Fatalf("DCH 2 should shift 'c' into column 0, got %q", rune(g2.CellAt(0, 0).Glyph))
	}
	if g2.CellAt(0, 4).Glyph != ' ' {
		t.Fatalf("DCH 2 should blank the vacated trailing column")
	}
}

func TestSetScrollRegionDECSTBM(t *testing.T) {
	g := grid.NewGrid(4, 3, 10)
	p := New(g, Options{})
	p.Feed([]byte("\x1b[2;3r"))
	top, bottom := g.ScrollRegion()
	if top != 1 || bottom != 2 {
		t.Fatalf("DECSTBM 2;3 -> region (%d,%d), want (1,2)", top, bottom)
	}
}

func TestSGRPalette256AndTrueColor(t *testing.T) {
	g := grid.NewGrid(1, 5, 10)
	p := New(g, Options{})
	p.Feed([]byte("\x1b[38;5;200;48;2;10;20;30mX"))
	cell := g.CellAt(0, 0)
	fg := grid.Color(cell.Fg)
	bg := grid.Color(cell.Bg)
	if fg.Tag() != grid.ColorPalette || fg.PaletteIndex() != 200 {
		t.Fatalf("fg should be palette 200, got %+v", fg)
	}
	if bg.Tag() != grid.ColorRGB {
		t.Fatalf("bg should be true color, got %+v", bg)
	}
	r, gg, b := bg.RGB()
	if r != 10 || gg != 20 || b != 30 {
		t.Fatalf("bg rgb = (%d,%d,%d), want (10,20,30)", r, gg, b)
	}
}

func TestBoldAndResetSGR(t *testing.T) {
	g := grid.NewGrid(1, 5, 10)
	p := New(g, Options{})
	p.Feed([]byte("\x1b[1mX\x1b[0mY"))
	if g.CellAt(0, 0).Attrs&grid.AttrBold == 0 {
		t.Fatalf("first cell should carry the bold attribute")
	}
	if g.CellAt(0, 1).Attrs&grid.AttrBold != 0 {
		t.Fatalf("SGR 0 should have cleared bold before the second write")
	}
}

func TestHyperlinkAssignsStableID(t *testing.T) {
	g := grid.NewGrid(1, 10, 10)
	p := New(g, Options{})
	p.Feed([]byte("\x1b]8;;http://example.com\x07link\x1b]8;;\x07plain"))
	linked := g.CellAt(0, 0)
	if grid.HyperlinkID(linked.Attrs) == 0 {
		t.Fatalf("cells written inside the OSC 8 span should carry a nonzero hyperlink id")
	}
	plain := g.CellAt(0, 4)
	if grid.HyperlinkID(plain.Attrs) != 0 {
		t.Fatalf("cells written after the closing OSC 8 must not carry a hyperlink id")
	}
}

func TestTitleCallback(t *testing.T) {
	g := grid.NewGrid(1, 10, 10)
	var got string
	p := New(g, Options{OnTitle: func(s string) { got = s }})
	p.Feed([]byte("\x1b]2;my session\x07"))
	if got != "my session" {
		t.Fatalf("OnTitle = %q, want %q", got, "my session")
	}
}

func TestSemanticZoneCallback(t *testing.T) {
	g := grid.NewGrid(1, 10, 10)
	var kinds []byte
	p := New(g, Options{OnSemanticZone: func(k byte) { kinds = append(kinds, k) }})
	p.Feed([]byte("\x1b]133;A\x07\x1b]133;B\x07"))
	if len(kinds) != 2 || kinds[0] != 'A' || kinds[1] != 'B' {
		t.Fatalf("unexpected semantic zone sequence: %v", kinds)
	}
}

func TestColorQueryReplyIsSynchronous(t *testing.T) {
	g := grid.NewGrid(1, 10, 10)
	var reply []byte
	p := New(g, Options{Reply: func(b []byte) { reply = append(reply, b...) }})
	p.Feed([]byte("\x1b]11;?\x07"))
	if len(reply) == 0 {
		t.Fatalf("expected a synchronous reply to the OSC 11 color query")
	}
}

func TestMalformedEscapeIsDroppedAndResyncs(t *testing.T) {
	g := grid.NewGrid(1, 10, 10)
	p := New(g, Options{})
	// ESC followed by a byte outside any recognized final range, then a
	// normal printable byte: the garbage must not corrupt subsequent
	// parsing.
	p.Feed([]byte("\x1b\x01Z"))
	if g.CellAt(0, 0).Glyph != 'Z' {
		t.Fatalf("parser should resync to ground and write 'Z', got %q", rune(g.CellAt(0, 0).Glyph))
	}
}

func TestUTF8MultibyteWrite(t *testing.T) {
	g := grid.NewGrid(1, 10, 10)
	p := New(g, Options{})
	p.Feed([]byte("héllo"))
	if rune(g.CellAt(0, 1).Glyph) != 'é' {
		t.Fatalf("expected decoded 'é' at column 1, got %q", rune(g.CellAt(0, 1).Glyph))
	}
}

func TestWideCJKGlyphViaUTF8(t *testing.T) {
	g := grid.NewGrid(1, 10, 10)
	p := New(g, Options{})
	p.Feed([]byte("中a"))
	if !g.CellAt(0, 0).IsWideLeader() {
		t.Fatalf("expected a wide leader cell at (0,0)")
	}
	if !g.CellAt(0, 1).IsWideFollower() {
		t.Fatalf("expected a wide follower cell at (0,1)")
	}
	if rune(g.CellAt(0, 2).Glyph) != 'a' {
		t.Fatalf("expected 'a' at column 2, got %q", rune(g.CellAt(0, 2).Glyph))
	}
}

func TestResizeScenarioThroughParser(t *testing.T) {
	g := grid.NewGrid(1, 100, 10)
	p := New(g, Options{})
	for i := 0; i < 120; i++ {
		p.Feed([]byte("x"))
	}
	g.Resize(1, 50)
	if g.Scrollback().Len() != 2 {
		t.Fatalf("scrollback length after resize = %d, want 2", g.Scrollback().Len())
	}
	cur := g.Cursor()
	if cur.Row != 0 || cur.Col != 20 {
		t.Fatalf("cursor after resize = (%d,%d), want (0,20)", cur.Row, cur.Col)
	}
}

func TestDirtyTrackingAfterFeed(t *testing.T) {
	g := grid.NewGrid(5, 5, 10)
	p := New(g, Options{})
	if _, ok := g.TakeDirty(); ok {
		t.Fatalf("fresh grid should report no dirty region")
	}
	p.Feed([]byte("hi"))
	if _, ok := g.TakeDirty(); !ok {
		t.Fatalf("expected a dirty region after writing two cells")
	}
}
