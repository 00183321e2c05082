package emu

// lineDrawing maps the DEC special graphics set onto box-drawing
// runes. Characters without an entry print as themselves.
var lineDrawing = map[rune]rune{
	'`': '◆', 'a': '▒', 'f': '°', 'g': '±',
	'j': '┘', 'k': '┐', 'l': '┌', 'm': '└', 'n': '┼',
	'q': '─', 't': '├', 'u': '┤', 'v': '┴', 'w': '┬', 'x': '│',
	'~': '·',
}

// translateRune applies the designated charset of the shifted-in G
// set. Only printable ASCII is subject to translation.
func (e *Emulator) translateRune(r rune) rune {
	active := e.g0Drawing
	if e.shiftOut {
		active = e.g1Drawing
	}
	if !active || r < 0x20 || r > 0x7e {
		return r
	}
	if mapped, ok := lineDrawing[r]; ok {
		return mapped
	}
	return r
}
