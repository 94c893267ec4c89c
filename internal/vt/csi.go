package vt

import "github.com/raibid-labs/scarab/internal/grid"

// dispatchCSI handles one complete CSI sequence, identified by its final
// byte. Unknown finals are dropped; that is the standard VT500 behavior
// for sequences a terminal doesn't implement.
func (p *Parser) dispatchCSI(final byte) {
	if p.priv == '?' {
		switch final {
		case 'h':
			p.decPrivate(true)
		case 'l':
			p.decPrivate(false)
		}
		return
	}
	if p.priv != 0 {
		return // '>' (DA2) and '=' (DA3) queries are not answered
	}

	switch final {
	case 'A': // CUU
		c := p.g.Cursor()
		p.g.SetCursor(c.Row-p.param(0, 1), c.Col)
	case 'B', 'e': // CUD, VPR
		c := p.g.Cursor()
		p.g.SetCursor(c.Row+p.param(0, 1), c.Col)
	case 'C', 'a': // CUF, HPR
		c := p.g.Cursor()
		p.g.SetCursor(c.Row, c.Col+p.param(0, 1))
	case 'D': // CUB
		c := p.g.Cursor()
		p.g.SetCursor(c.Row, c.Col-p.param(0, 1))
	case 'E': // CNL
		c := p.g.Cursor()
		p.g.SetCursor(c.Row+p.param(0, 1), 0)
	case 'F': // CPL
		c := p.g.Cursor()
		p.g.SetCursor(c.Row-p.param(0, 1), 0)
	case 'G', '`': // CHA, HPA
		c := p.g.Cursor()
		p.g.SetCursor(c.Row, p.param(0, 1)-1)
	case 'd': // VPA
		c := p.g.Cursor()
		p.g.SetCursor(p.param(0, 1)-1, c.Col)
	case 'H', 'f': // CUP, HVP
		p.g.SetCursor(p.param(0, 1)-1, p.param(1, 1)-1)
	case 'I': // CHT
		c := p.g.Cursor()
		col := c.Col
		for i := 0; i < p.param(0, 1); i++ {
			col = p.g.NextTabStop(col)
		}
		p.g.SetCursor(c.Row, col)
	case 'J': // ED
		p.g.Erase(grid.TargetDisplay, eraseScope(p.rawParam(0)), false)
	case 'K': // EL
		p.g.Erase(grid.TargetLine, eraseScope(p.rawParam(0)), false)
	case 'L': // IL
		c := p.g.Cursor()
		_, bottom := p.g.ScrollRegion()
		p.g.ScrollDown(p.param(0, 1), c.Row, bottom)
	case 'M': // DL
		c := p.g.Cursor()
		_, bottom := p.g.ScrollRegion()
		p.g.ScrollUp(p.param(0, 1), c.Row, bottom)
	case 'P': // DCH
		p.deleteChars(p.param(0, 1))
	case '@': // ICH
		p.insertChars(p.param(0, 1))
	case 'S': // SU
		top, bottom := p.g.ScrollRegion()
		p.g.ScrollUp(p.param(0, 1), top, bottom)
	case 'T': // SD
		top, bottom := p.g.ScrollRegion()
		p.g.ScrollDown(p.param(0, 1), top, bottom)
	case 'X': // ECH — erase n chars at cursor without shifting
		p.eraseChars(p.param(0, 1))
	case 'r': // DECSTBM
		top := p.param(0, 1) - 1
		bottom := p.param(1, p.g.Rows) - 1
		p.g.SetScrollRegion(top, bottom)
		p.g.SetCursor(0, 0)
	case 's': // ANSI.SYS save cursor (CSI s)
		p.g.SaveCursor()
	case 'u': // ANSI.SYS restore cursor (CSI u)
		p.g.RestoreCursor()
	case 'm': // SGR
		p.applySGR()
	case 'h':
		p.ansiMode(true)
	case 'l':
		p.ansiMode(false)
	}
}

func eraseScope(n int) grid.EraseScope {
	switch n {
	case 1:
		return grid.ScopeToStart
	case 2, 3:
		return grid.ScopeAll
	default:
		return grid.ScopeToEnd
	}
}

// ansiMode handles non-private (no '?' marker) CSI h/l: every code is
// silently accepted and ignored, matching unknown-mode behavior.
func (p *Parser) ansiMode(set bool) {
	// No ANSI (non-DEC) modes are modeled; accept and ignore.
	_ = set
}

func (p *Parser) decPrivate(set bool) {
	for i := 0; i < p.nparams; i++ {
		switch p.rawParam(i) {
		case 1:
			p.g.SetMode(grid.ModeAppCursor, set)
		case 6:
			p.g.SetMode(grid.ModeOrigin, set)
		case 7:
			p.g.SetMode(grid.ModeAutoWrap, set)
		case 25:
			p.g.SetCursorVisible(set)
		case 1000:
			p.g.SetMode(grid.ModeMouseNormal, set)
		case 1002:
			p.g.SetMode(grid.ModeMouseBtn, set)
		case 1003:
			p.g.SetMode(grid.ModeMouseAny, set)
		case 1006:
			p.g.SetMode(grid.ModeSGRMouse, set)
		case 1049:
			if set {
				p.g.SaveCursor()
				p.g.EnterAltScreen()
			} else {
				p.g.ExitAltScreen()
				p.g.RestoreCursor()
			}
		case 47, 1047:
			if set {
				p.g.EnterAltScreen()
			} else {
				p.g.ExitAltScreen()
			}
		case 2004:
			p.g.SetMode(grid.ModeBracketedPaste, set)
		default:
			// 12 (cursor blink), 1004 (focus events), 1005 (UTF-8 mouse
			// encoding), and any other unrecognized private mode: accepted
			// and ignored, no grid state models them.
		}
	}
}

// insertChars implements ICH: shift the cells from the cursor to the
// right margin right by n, discarding what falls off the edge, filling
// the freed columns at the cursor with blanks.
func (p *Parser) insertChars(n int) {
	c := p.g.Cursor()
	if n <= 0 {
		return
	}
	for col := p.g.Cols - 1; col >= c.Col+n; col-- {
		p.g.Put(c.Row, col, p.g.CellAt(c.Row, col-n))
	}
	end := c.Col + n
	if end > p.g.Cols {
		end = p.g.Cols
	}
	for col := c.Col; col < end; col++ {
		p.g.Put(c.Row, col, grid.Blank(p.sgrBg))
	}
}

// deleteChars implements DCH: shift cells from cursor+n left to the
// cursor, filling the vacated right columns with blanks.
func (p *Parser) deleteChars(n int) {
	c := p.g.Cursor()
	if n <= 0 {
		return
	}
	for col := c.Col; col+n < p.g.Cols; col++ {
		p.g.Put(c.Row, col, p.g.CellAt(c.Row, col+n))
	}
	start := p.g.Cols - n
	if start < c.Col {
		start = c.Col
	}
	for col := start; col < p.g.Cols; col++ {
		p.g.Put(c.Row, col, grid.Blank(p.sgrBg))
	}
}

// eraseChars implements ECH: blank n cells at the cursor without
// shifting anything.
func (p *Parser) eraseChars(n int) {
	c := p.g.Cursor()
	end := c.Col + n
	if end > p.g.Cols {
		end = p.g.Cols
	}
	for col := c.Col; col < end; col++ {
		p.g.Put(c.Row, col, grid.Blank(p.sgrBg))
	}
}
