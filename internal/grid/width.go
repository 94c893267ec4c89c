package grid

import "github.com/mattn/go-runewidth"

// RuneWidth returns the display width of r: 0 for combining/zero-width
// marks, 1 for normal glyphs, 2 for wide (East Asian / emoji) glyphs.
func RuneWidth(r rune) int {
	return runewidth.RuneWidth(r)
}

// IsCombining reports whether r has zero display width and should attach
// to the preceding base cell rather than occupy a column of its own.
func IsCombining(r rune) bool {
	return RuneWidth(r) == 0
}
