package vt

import "github.com/raibid-labs/scarab/internal/grid"

// applySGR walks the CSI m parameter list and updates the parser's
// pending graphic-rendition state, then pushes it to the grid so it
// applies to subsequent writes. An empty parameter list means SGR 0.
func (p *Parser) applySGR() {
	n := p.nparams
	if n == 0 {
		n = 1 // bare CSI m means reset
	}
	for i := 0; i < n; i++ {
		v := p.rawParam(i)
		switch {
		case v == 0:
			p.sgrFg, p.sgrBg, p.sgrAttrs = grid.DefaultColor, grid.DefaultColor, 0
		case v == 1:
			p.sgrAttrs |= grid.AttrBold
		case v == 2:
			p.sgrAttrs |= grid.AttrDim
		case v == 3:
			p.sgrAttrs |= grid.AttrItalic
		case v == 4:
			p.sgrAttrs = grid.WithUnderline(p.sgrAttrs, grid.UnderlineStraight)
		case v == 5:
			p.sgrAttrs |= grid.AttrBlink
		case v == 7:
			p.sgrAttrs |= grid.AttrReverse
		case v == 8:
			p.sgrAttrs |= grid.AttrInvisible
		case v == 9:
			p.sgrAttrs |= grid.AttrStrikethrough
		case v == 21:
			p.sgrAttrs = grid.WithUnderline(p.sgrAttrs, grid.UnderlineDouble)
		case v == 22:
			p.sgrAttrs &^= grid.AttrBold | grid.AttrDim
		case v == 23:
			p.sgrAttrs &^= grid.AttrItalic
		case v == 24:
			p.sgrAttrs = grid.WithUnderline(p.sgrAttrs, grid.UnderlineNone)
		case v == 25:
			p.sgrAttrs &^= grid.AttrBlink
		case v == 27:
			p.sgrAttrs &^= grid.AttrReverse
		case v == 28:
			p.sgrAttrs &^= grid.AttrInvisible
		case v == 29:
			p.sgrAttrs &^= grid.AttrStrikethrough
		case v >= 30 && v <= 37:
			p.sgrFg = grid.MakePaletteColor(uint8(v - 30))
		case v == 38:
			color, consumed := p.extendedColor(i)
			p.sgrFg = color
			i += consumed
		case v == 39:
			p.sgrFg = grid.DefaultColor
		case v >= 40 && v <= 47:
			p.sgrBg = grid.MakePaletteColor(uint8(v - 40))
		case v == 48:
			color, consumed := p.extendedColor(i)
			p.sgrBg = color
			i += consumed
		case v == 49:
			p.sgrBg = grid.DefaultColor
		case v >= 90 && v <= 97:
			p.sgrFg = grid.MakePaletteColor(uint8(v-90) + 8)
		case v >= 100 && v <= 107:
			p.sgrBg = grid.MakePaletteColor(uint8(v-100) + 8)
		}
	}
	p.g.SetSGR(p.sgrFg, p.sgrBg, p.sgrAttrs)
}

// extendedColor parses the "38;5;n" (palette) or "38;2;r;g;b" (true
// color) subsequence starting at index i (which holds the 38/48 itself).
// It returns the decoded color and how many extra parameters it
// consumed, so the caller can skip past them.
func (p *Parser) extendedColor(i int) (grid.Color, int) {
	if i+1 >= p.nparams {
		return grid.DefaultColor, 0
	}
	switch p.rawParam(i + 1) {
	case 5:
		if i+2 >= p.nparams {
			return grid.DefaultColor, 1
		}
		return grid.MakePaletteColor(uint8(p.rawParam(i + 2))), 2
	case 2:
		if i+4 >= p.nparams {
			return grid.DefaultColor, p.nparams - i - 1
		}
		r := uint8(p.rawParam(i + 2))
		g := uint8(p.rawParam(i + 3))
		b := uint8(p.rawParam(i + 4))
		return grid.MakeRGBColor(r, g, b), 4
	default:
		return grid.DefaultColor, 0
	}
}
