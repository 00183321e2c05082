package emu

import "pkt.systems/hjortron/internal/terminal"

// cellAttr is the pen: the attributes applied to newly printed cells.
type cellAttr struct {
	fg   uint32
	bg   uint32
	mode int16
}

// sgrSet maps SGR 1-9 to the mode bit each one raises. Unsupported
// entries stay zero and turn the parameter into a no-op.
var sgrSet = [10]int16{
	1: terminal.ModeBold,
	2: terminal.ModeFaint,
	3: terminal.ModeItalic,
	4: terminal.ModeUnderline,
	5: terminal.ModeBlink,
	7: terminal.ModeInverse,
	8: terminal.ModeHidden,
	9: terminal.ModeStrike,
}

// sgrClear maps SGR 21-29 (index minus 20) to the bits each one drops.
var sgrClear = [10]int16{
	2: terminal.ModeBold | terminal.ModeFaint,
	3: terminal.ModeItalic,
	4: terminal.ModeUnderline,
	5: terminal.ModeBlink,
	7: terminal.ModeInverse,
	8: terminal.ModeHidden,
	9: terminal.ModeStrike,
}

// applySGR folds one SGR parameter list into the pen.
func (e *Emulator) applySGR(params []int) {
	if len(params) == 0 {
		e.resetAttributes()
		return
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		if p < 0 {
			p = 0
		}
		switch {
		case p == 0:
			e.resetAttributes()
		case p >= 1 && p <= 9:
			e.attr.mode |= sgrSet[p]
		case p >= 21 && p <= 29:
			e.attr.mode &^= sgrClear[p-20]
		case p >= 30 && p <= 37:
			e.attr.fg = terminal.ColorIndexed | uint32(p-30)
		case p == 38:
			e.attr.fg, i = extendedColor(params, i, e.attr.fg)
		case p == 39:
			e.attr.fg = terminal.ColorDefault
		case p >= 40 && p <= 47:
			e.attr.bg = terminal.ColorIndexed | uint32(p-40)
		case p == 48:
			e.attr.bg, i = extendedColor(params, i, e.attr.bg)
		case p == 49:
			e.attr.bg = terminal.ColorDefault
		case p >= 90 && p <= 97:
			e.attr.fg = terminal.ColorIndexed | uint32(p-90+8)
		case p >= 100 && p <= 107:
			e.attr.bg = terminal.ColorIndexed | uint32(p-100+8)
		}
	}
}

// extendedColor reads a 38/48 continuation (5;n or 2;r;g;b) and
// returns the new color plus the index of the last parameter consumed.
// Malformed continuations leave the color untouched.
func extendedColor(params []int, i int, cur uint32) (uint32, int) {
	if i+1 >= len(params) {
		return cur, i
	}
	switch params[i+1] {
	case 5:
		if i+2 < len(params) {
			return terminal.ColorIndexed256 | (uint32(params[i+2]) & terminal.ColorValueMask), i + 2
		}
	case 2:
		if i+4 < len(params) {
			rgb := uint32(params[i+2])<<16 | uint32(params[i+3])<<8 | uint32(params[i+4])
			return terminal.ColorTrue | rgb, i + 4
		}
	}
	return cur, i
}

func (e *Emulator) resetAttributes() {
	e.attr = cellAttr{fg: terminal.ColorDefault, bg: terminal.ColorDefault}
}

// blankCell is the erase fill: a space carrying the current
// background, with attributes cleared.
func (e *Emulator) blankCell() terminal.Cell {
	return terminal.Cell{
		Rune: ' ',
		FG:   terminal.ColorDefault,
		BG:   e.attr.bg,
	}
}
