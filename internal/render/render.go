package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"pkt.systems/hjortron/internal/protocol"
	"pkt.systems/hjortron/internal/terminal"
)

const (
	clearAll   = "\x1b[2J\x1b[H"
	hideCursor = "\x1b[?25l"
	showCursor = "\x1b[?25h"
	resetPen   = "\x1b[0m"
)

// paint is the visual state of one cell as the renderer tracks it.
// unknownPaint compares unequal to every real cell so the first cell of
// a frame always emits an SGR.
type paint struct {
	mode int32
	fg   uint32
	bg   uint32
}

var unknownPaint = paint{mode: -1, fg: ^uint32(0), bg: ^uint32(0)}

// Snapshot paints a full frame to w using ANSI escapes.
func Snapshot(w io.Writer, snap *protocol.Snapshot) error {
	if snap == nil {
		return nil
	}
	return SnapshotViewport(w, snap, snap.Cols, snap.Rows)
}

// SnapshotViewport paints a frame cropped or padded to viewCols by
// viewRows. When the grid is larger than the view, the viewport slides
// to keep the cursor visible.
func SnapshotViewport(w io.Writer, snap *protocol.Snapshot, viewCols, viewRows int) error {
	if snap == nil {
		return nil
	}
	if viewCols <= 0 {
		viewCols = snap.Cols
	}
	if viewRows <= 0 {
		viewRows = snap.Rows
	}

	cx, cy := clampedCursor(snap)
	x0 := originAxis(snap.Cols, viewCols, cx)
	y0 := originAxis(snap.Rows, viewRows, cy)

	var out strings.Builder
	out.WriteString(clearAll)
	if snap.CursorVisible {
		out.WriteString(showCursor)
	} else {
		out.WriteString(hideCursor)
	}
	out.WriteString(resetPen)

	pen := unknownPaint
	for y := 0; y < viewRows; y++ {
		fmt.Fprintf(&out, "\x1b[%d;1H", y+1)
		pen = emitRow(&out, snap, x0, y0+y, viewCols, pen)
	}

	if row, col, ok := viewCursor(cx, cy, x0, y0, viewCols, viewRows); ok {
		fmt.Fprintf(&out, "\x1b[%d;%dH", row, col)
	} else if snap.CursorVisible {
		out.WriteString(hideCursor)
	}
	if snap.Title != "" {
		writeTitle(&out, snap.Title)
	}

	_, err := io.WriteString(w, out.String())
	return err
}

// SnapshotViewportDelta repaints only the viewport rows that changed
// between two same-sized frames. The first frame and any geometry
// change fall back to a full repaint. A delta never clears the screen,
// so untouched rows cannot flicker.
func SnapshotViewportDelta(w io.Writer, prev, next *protocol.Snapshot, viewCols, viewRows int) error {
	if next == nil {
		return nil
	}
	if prev == nil || prev.Cols != next.Cols || prev.Rows != next.Rows {
		return SnapshotViewport(w, next, viewCols, viewRows)
	}
	if viewCols <= 0 {
		viewCols = next.Cols
	}
	if viewRows <= 0 {
		viewRows = next.Rows
	}

	prevX, prevY := clampedCursor(prev)
	nextX, nextY := clampedCursor(next)
	px0 := originAxis(prev.Cols, viewCols, prevX)
	py0 := originAxis(prev.Rows, viewRows, prevY)
	nx0 := originAxis(next.Cols, viewCols, nextX)
	ny0 := originAxis(next.Rows, viewRows, nextY)

	var out strings.Builder
	out.WriteString(hideCursor)

	pen := unknownPaint
	dirty := false
	for y := 0; y < viewRows; y++ {
		if !rowsDiffer(prev, next, px0, py0, nx0, ny0, y, viewCols) {
			continue
		}
		if !dirty {
			out.WriteString(resetPen)
			dirty = true
		}
		fmt.Fprintf(&out, "\x1b[%d;1H", y+1)
		pen = emitRow(&out, next, nx0, ny0+y, viewCols, pen)
	}

	if row, col, ok := viewCursor(nextX, nextY, nx0, ny0, viewCols, viewRows); ok {
		fmt.Fprintf(&out, "\x1b[%d;%dH", row, col)
		if next.CursorVisible {
			out.WriteString(showCursor)
		}
	}
	if next.Title != "" && next.Title != prev.Title {
		writeTitle(&out, next.Title)
	}

	_, err := io.WriteString(w, out.String())
	return err
}

// emitRow paints one viewport row. A wide rune advances the terminal
// two columns, so its continuation cell is skipped; a continuation
// whose leader was cropped away, or a leader against the right edge,
// paints as a blank to keep columns aligned.
func emitRow(out *strings.Builder, snap *protocol.Snapshot, x0, gy, viewCols int, pen paint) paint {
	for x := 0; x < viewCols; x++ {
		r, p := cellAt(snap, x0+x, gy)
		switch {
		case p.mode&int32(terminal.ModeWideCont) != 0:
			if x > 0 {
				continue
			}
			r = ' '
		case p.mode&int32(terminal.ModeWide) != 0 && x == viewCols-1:
			r = ' '
		}
		if p != pen {
			writeSGR(out, p)
			pen = p
		}
		out.WriteRune(r)
	}
	return pen
}

// cellAt resolves the rune and paint at grid coordinates. Anything
// outside the grid, and any slice the frame did not fill, reads as a
// blank default cell.
func cellAt(snap *protocol.Snapshot, gx, gy int) (rune, paint) {
	r, p := ' ', paint{fg: terminal.ColorDefault, bg: terminal.ColorDefault}
	if gx < 0 || gy < 0 || gx >= snap.Cols || gy >= snap.Rows {
		return r, p
	}
	idx := gy*snap.Cols + gx
	if idx < len(snap.Runes) && snap.Runes[idx] != 0 {
		r = rune(snap.Runes[idx])
	}
	if idx < len(snap.Modes) {
		p.mode = snap.Modes[idx]
	}
	if idx < len(snap.Fg) {
		p.fg = snap.Fg[idx]
	}
	if idx < len(snap.Bg) {
		p.bg = snap.Bg[idx]
	}
	if p.mode&int32(terminal.ModeHidden) != 0 {
		r = ' '
	}
	return r, p
}

func rowsDiffer(prev, next *protocol.Snapshot, px0, py0, nx0, ny0, y, viewCols int) bool {
	for x := 0; x < viewCols; x++ {
		pr, pp := cellAt(prev, px0+x, py0+y)
		nr, np := cellAt(next, nx0+x, ny0+y)
		if pr != nr || pp != np {
			return true
		}
	}
	return false
}

func clampedCursor(snap *protocol.Snapshot) (int, int) {
	x := min(max(snap.Cursor.X, 0), snap.Cols-1)
	y := min(max(snap.Cursor.Y, 0), snap.Rows-1)
	return x, y
}

// viewCursor maps grid cursor coordinates to 1-based viewport
// coordinates, reporting whether the cursor lands inside the view.
func viewCursor(cx, cy, x0, y0, vw, vh int) (int, int, bool) {
	if cx < x0 || cx >= x0+vw || cy < y0 || cy >= y0+vh {
		return 0, 0, false
	}
	return cy - y0 + 1, cx - x0 + 1, true
}

// originAxis picks the leading grid coordinate of the viewport along
// one axis, sliding just far enough to keep the cursor in view without
// running past the grid edge.
func originAxis(size, view, cursor int) int {
	if view >= size {
		return 0
	}
	return max(0, min(cursor-view+1, size-view))
}

var sgrBits = [...]struct {
	bit  int32
	code string
}{
	{int32(terminal.ModeBold), "1"},
	{int32(terminal.ModeFaint), "2"},
	{int32(terminal.ModeItalic), "3"},
	{int32(terminal.ModeUnderline), "4"},
	{int32(terminal.ModeBlink), "5"},
	{int32(terminal.ModeInverse), "7"},
	{int32(terminal.ModeHidden), "8"},
	{int32(terminal.ModeStrike), "9"},
}

// writeSGR emits the full attribute state as one SGR sequence, starting
// from a reset so stale attributes never leak between cells.
func writeSGR(out *strings.Builder, p paint) {
	out.WriteString("\x1b[0")
	for _, f := range sgrBits {
		if p.mode&f.bit != 0 {
			out.WriteByte(';')
			out.WriteString(f.code)
		}
	}
	writeColor(out, p.fg, true)
	writeColor(out, p.bg, false)
	out.WriteByte('m')
}

// writeColor appends the SGR fragment for one color. The first 16
// palette entries keep their legacy 30-37/90-97 codes only when the
// source used a legacy code; explicit 256-palette colors stay in 38;5
// form so the receiving terminal applies its own palette the same way.
func writeColor(out *strings.Builder, val uint32, fg bool) {
	base := 40
	if fg {
		base = 30
	}
	if val == terminal.ColorDefault {
		writeCode(out, base+9)
		return
	}
	flag := val & terminal.ColorFlagMask
	raw := val & terminal.ColorValueMask
	switch {
	case flag == terminal.ColorIndexed && raw < 8:
		writeCode(out, base+int(raw))
	case flag == terminal.ColorIndexed && raw < 16:
		writeCode(out, base+60+int(raw)-8)
	case flag == terminal.ColorIndexed || flag == terminal.ColorIndexed256:
		writeCode(out, base+8)
		writeCode(out, 5)
		writeCode(out, int(raw))
	case flag == terminal.ColorTrue:
		writeCode(out, base+8)
		writeCode(out, 2)
		writeCode(out, int(raw>>16&0xff))
		writeCode(out, int(raw>>8&0xff))
		writeCode(out, int(raw&0xff))
	default:
		writeCode(out, base+9)
	}
}

func writeCode(out *strings.Builder, n int) {
	out.WriteByte(';')
	out.WriteString(strconv.Itoa(n))
}

var titleSanitizer = strings.NewReplacer("\n", "", "\r", "")

func writeTitle(out *strings.Builder, title string) {
	out.WriteString("\x1b]0;")
	out.WriteString(titleSanitizer.Replace(title))
	out.WriteByte('\x07')
}
