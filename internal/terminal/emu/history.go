package emu

import (
	"unicode/utf8"

	"pkt.systems/hjortron/internal/terminal"
)

// DefaultMaxScrollback is the scrollback row cap used by New.
const DefaultMaxScrollback = 10000

// maxAppendedBytes caps the appended-text feed between TakeAppended
// calls. When nothing drains the feed, the oldest half is dropped.
const maxAppendedBytes = 1 << 20

// maxMarks caps undrained prompt marks the same way.
const maxMarks = 1024

// line is one row evicted to scrollback, with its soft-wrap flag.
type line struct {
	cells   []terminal.Cell
	wrapped bool
}

// captureScrollback copies the top n region rows into scrollback
// before a scroll evicts them. Only the primary screen with a region
// anchored at the first row feeds history.
func (e *Emulator) captureScrollback(n int) {
	if e.active != &e.main || e.active.scrollTop != 0 || e.maxScrollback <= 0 {
		return
	}
	n = min(n, e.active.scrollBottom-e.active.scrollTop+1)
	for y := 0; y < n; y++ {
		row := append([]terminal.Cell(nil), e.active.cells[y*e.cols:(y+1)*e.cols]...)
		e.scrollback = append(e.scrollback, line{cells: row, wrapped: e.active.wrapped[y]})
	}
	e.trimScrollback()
}

func (e *Emulator) trimScrollback() {
	over := len(e.scrollback) - e.maxScrollback
	if over <= 0 {
		return
	}
	e.scrollback = append(e.scrollback[:0], e.scrollback[over:]...)
	e.shiftHistory(over)
}

// shiftHistory moves the selection and pending marks up by n lines
// after scrollback eviction, dropping whatever fell off the top.
func (e *Emulator) shiftHistory(n int) {
	if e.sel != nil {
		sel := *e.sel
		sel.Anchor.Line -= n
		sel.Active.Line -= n
		if sel.Anchor.Line < 0 && sel.Active.Line < 0 {
			e.sel = nil
		} else {
			if sel.Anchor.Line < 0 {
				sel.Anchor = terminal.Coord{X: 0, Line: 0}
			}
			if sel.Active.Line < 0 {
				sel.Active = terminal.Coord{X: 0, Line: 0}
			}
			*e.sel = sel
		}
	}
	kept := e.marks[:0]
	for _, m := range e.marks {
		m.Line -= n
		if m.Line >= 0 {
			kept = append(kept, m)
		}
	}
	e.marks = kept
}

func (e *Emulator) clearScrollback() {
	if len(e.scrollback) == 0 {
		return
	}
	n := len(e.scrollback)
	e.scrollback = nil
	e.shiftHistory(n)
}

// recordPrinted feeds the plain-text stream, primary screen only.
func (e *Emulator) recordPrinted(r rune) {
	if e.active != &e.main {
		return
	}
	e.appended = utf8.AppendRune(e.appended, r)
	e.trimAppended()
}

func (e *Emulator) recordNewline() {
	if e.active != &e.main {
		return
	}
	e.appended = append(e.appended, '\n')
	e.trimAppended()
}

func (e *Emulator) trimAppended() {
	if len(e.appended) <= maxAppendedBytes {
		return
	}
	cut := len(e.appended) - maxAppendedBytes/2
	for cut < len(e.appended) && !utf8.RuneStart(e.appended[cut]) {
		cut++
	}
	e.appended = append(e.appended[:0], e.appended[cut:]...)
}

func (e *Emulator) promptMark(payload string) {
	if payload == "" || e.active != &e.main {
		return
	}
	kind := payload[0]
	switch kind {
	case 'A', 'B', 'C', 'D':
	default:
		return
	}
	arg := ""
	if len(payload) > 1 && payload[1] == ';' {
		arg = payload[2:]
	}
	e.marks = append(e.marks, terminal.Mark{
		Kind: kind,
		Arg:  arg,
		Line: len(e.scrollback) + e.active.cursor.Y,
	})
	if len(e.marks) > maxMarks {
		e.marks = append(e.marks[:0], e.marks[len(e.marks)-maxMarks:]...)
	}
}

// TakeAppended returns the plain text printed to the primary screen
// since the last call and resets the feed.
func (e *Emulator) TakeAppended() string {
	if len(e.appended) == 0 {
		return ""
	}
	out := string(e.appended)
	e.appended = e.appended[:0]
	return out
}

// TakeMarks returns the prompt marks collected since the last call.
func (e *Emulator) TakeMarks() []terminal.Mark {
	if len(e.marks) == 0 {
		return nil
	}
	out := make([]terminal.Mark, len(e.marks))
	copy(out, e.marks)
	e.marks = e.marks[:0]
	return out
}

// TakeBell reports whether BEL arrived since the last call.
func (e *Emulator) TakeBell() bool {
	b := e.bell
	e.bell = false
	return b
}

// ScrollbackLen returns the number of rows held in scrollback.
func (e *Emulator) ScrollbackLen() int {
	return len(e.scrollback)
}

// TotalLines returns the addressable line count: scrollback plus the
// visible grid.
func (e *Emulator) TotalLines() int {
	return len(e.scrollback) + e.rows
}

// lineAt returns the cells and wrap flag of an absolute buffer line,
// counting from the oldest scrollback row.
func (e *Emulator) lineAt(abs int) ([]terminal.Cell, bool) {
	if abs < 0 {
		return nil, false
	}
	if abs < len(e.scrollback) {
		ln := e.scrollback[abs]
		return ln.cells, ln.wrapped
	}
	y := abs - len(e.scrollback)
	if y >= e.rows {
		return nil, false
	}
	return e.active.cells[y*e.cols : (y+1)*e.cols], e.active.wrapped[y]
}

// resizeHistoryRow pads or truncates an evicted row to the new width.
func resizeHistoryRow(cells []terminal.Cell, cols int) []terminal.Cell {
	if len(cells) == cols {
		return cells
	}
	out := make([]terminal.Cell, cols)
	for i := copy(out, cells); i < cols; i++ {
		out[i] = terminal.Cell{Rune: ' '}
	}
	if cols > 0 && out[cols-1].Mode&terminal.ModeWide != 0 {
		out[cols-1] = terminal.Cell{Rune: ' '}
	}
	return out
}
