package emu

import (
	"strings"

	"pkt.systems/hjortron/internal/terminal"
)

// SetSelection records a selection over the buffer. Coordinates are
// absolute: line 0 is the oldest scrollback row.
func (e *Emulator) SetSelection(anchor, active terminal.Coord, kind terminal.SelectionKind) {
	sel := terminal.Selection{Anchor: anchor, Active: active, Kind: kind}
	e.sel = &sel
}

// ClearSelection drops the selection.
func (e *Emulator) ClearSelection() {
	e.sel = nil
}

// Selection returns the current selection, if one is set.
func (e *Emulator) Selection() (terminal.Selection, bool) {
	if e.sel == nil {
		return terminal.Selection{}, false
	}
	return *e.sel, true
}

// SelectionText extracts the text covered by the current selection.
func (e *Emulator) SelectionText() string {
	if e.sel == nil {
		return ""
	}
	return e.TextRange(*e.sel)
}

// TextRange extracts the text covered by sel. Wide cell continuations
// are skipped, trailing blanks are trimmed per row, and rows joined by
// a soft wrap run together without a newline.
func (e *Emulator) TextRange(sel terminal.Selection) string {
	total := e.TotalLines()
	if total == 0 {
		return ""
	}
	sel = sel.Normalized()
	first := clamp(sel.Anchor.Line, 0, total-1)
	last := clamp(sel.Active.Line, 0, total-1)
	if last < first {
		return ""
	}

	var b strings.Builder
	switch sel.Kind {
	case terminal.SelectionBlock:
		x0, x1 := sel.Anchor.X, sel.Active.X
		if x1 < x0 {
			x0, x1 = x1, x0
		}
		for l := first; l <= last; l++ {
			cells, _ := e.lineAt(l)
			b.WriteString(extractSpan(cells, x0, x1))
			if l < last {
				b.WriteByte('\n')
			}
		}
	case terminal.SelectionLine:
		for l := first; l <= last; l++ {
			cells, wrapped := e.lineAt(l)
			b.WriteString(extractSpan(cells, 0, len(cells)-1))
			if l < last && !wrapped {
				b.WriteByte('\n')
			}
		}
	default:
		for l := first; l <= last; l++ {
			cells, wrapped := e.lineAt(l)
			x0, x1 := 0, len(cells)-1
			if l == first {
				x0 = clamp(sel.Anchor.X, 0, len(cells)-1)
				// An anchor on a wide continuation takes the leader.
				if x0 > 0 && cells[x0].Mode&terminal.ModeWideCont != 0 {
					x0--
				}
			}
			if l == last {
				x1 = clamp(sel.Active.X, 0, len(cells)-1)
			}
			b.WriteString(extractSpan(cells, x0, x1))
			if l < last && !wrapped {
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

func extractSpan(cells []terminal.Cell, x0, x1 int) string {
	if len(cells) == 0 {
		return ""
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 >= len(cells) {
		x1 = len(cells) - 1
	}
	var b strings.Builder
	for x := x0; x <= x1; x++ {
		c := cells[x]
		if c.Mode&terminal.ModeWideCont != 0 {
			continue
		}
		b.WriteRune(c.Rune)
	}
	return strings.TrimRight(b.String(), " ")
}
