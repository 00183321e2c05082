package emu

import "pkt.systems/hjortron/internal/terminal"

// cursorState holds what DECSC captures for one screen.
type cursorState struct {
	cursor      terminal.Cursor
	attr        cellAttr
	origin      bool
	pendingWrap bool
	g0Drawing   bool
	g1Drawing   bool
	shiftOut    bool
}

type screen struct {
	cols, rows int

	cells   []terminal.Cell
	wrapped []bool

	cursor terminal.Cursor
	saved  cursorState

	scrollTop    int
	scrollBottom int
}

func newScreen(cols, rows int) screen {
	s := screen{cols: cols, rows: rows, scrollBottom: rows - 1}
	s.cells = make([]terminal.Cell, cols*rows)
	s.wrapped = make([]bool, rows)
	s.clearAll(terminal.Cell{Rune: ' '})
	return s
}

// reset restores the screen to its power-on state at the current size.
func (s *screen) reset(blank terminal.Cell) {
	s.clearAll(blank)
	s.cursor = terminal.Cursor{}
	s.saved = cursorState{}
	s.scrollTop = 0
	s.scrollBottom = s.rows - 1
}

func (s screen) resize(cols, rows int) screen {
	next := newScreen(cols, rows)
	keepCols, keepRows := min(cols, s.cols), min(rows, s.rows)
	for y := 0; y < keepRows; y++ {
		copy(next.cells[y*cols:y*cols+keepCols], s.cells[y*s.cols:y*s.cols+keepCols])
		next.wrapped[y] = s.wrapped[y]
	}
	if cols < s.cols {
		// A wide pair cut at the new right edge loses its leader too.
		for y := 0; y < keepRows; y++ {
			last := y*cols + cols - 1
			if next.cells[last].Mode&terminal.ModeWide != 0 {
				next.cells[last] = terminal.Cell{Rune: ' '}
			}
		}
	}
	next.cursor = clampCursor(s.cursor, cols, rows)
	next.saved = s.saved
	next.saved.cursor = clampCursor(s.saved.cursor, cols, rows)
	return next
}

func clampCursor(c terminal.Cursor, cols, rows int) terminal.Cursor {
	c.X = min(c.X, cols-1)
	c.Y = min(c.Y, rows-1)
	return c
}

func (s *screen) inBounds(x, y int) bool {
	return 0 <= x && x < s.cols && 0 <= y && y < s.rows
}

func (s *screen) index(x, y int) int { return y*s.cols + x }

func (s *screen) setWrapped(y int, v bool) {
	if y >= 0 && y < len(s.wrapped) {
		s.wrapped[y] = v
	}
}

// ensureBlank substitutes a space for a zero fill rune so cleared
// cells always hold printable content.
func ensureBlank(fill terminal.Cell) terminal.Cell {
	if fill.Rune == 0 {
		fill.Rune = ' '
	}
	return fill
}

func (s *screen) clearAll(fill terminal.Cell) {
	fill = ensureBlank(fill)
	for i := range s.cells {
		s.cells[i] = fill
	}
	clear(s.wrapped)
}

func (s *screen) clearLine(y, x0, x1 int, fill terminal.Cell) {
	if y >= s.rows || y < 0 {
		return
	}
	x0, x1 = max(x0, 0), min(x1, s.cols-1)
	if x0 > x1 {
		return
	}
	fill = ensureBlank(fill)
	s.repairWide(x0, y)
	s.repairWide(x1, y)
	for x := x0; x <= x1; x++ {
		s.cells[s.index(x, y)] = fill
	}
	if x0 == 0 && x1 == s.cols-1 {
		s.setWrapped(y, false)
	}
}

// repairWide blanks the other half of a wide pair when the cell at x
// is about to be overwritten, so no orphaned leader or continuation
// survives.
func (s *screen) repairWide(x, y int) {
	if !s.inBounds(x, y) {
		return
	}
	i := s.index(x, y)
	c := s.cells[i]
	if c.Mode&terminal.ModeWideCont != 0 && x > 0 {
		s.cells[i-1] = terminal.Cell{Rune: ' '}
	}
	if c.Mode&terminal.ModeWide != 0 && x+1 < s.cols {
		s.cells[i+1] = terminal.Cell{Rune: ' '}
	}
}

// normalizeLine sweeps a row after a shifting edit and blanks any
// half of a wide pair that lost its partner.
func (s *screen) normalizeLine(y int) {
	if y < 0 || y >= s.rows {
		return
	}
	row := s.cells[y*s.cols : (y+1)*s.cols]
	for x := 0; x < len(row); x++ {
		c := row[x]
		switch {
		case c.Mode&terminal.ModeWide != 0:
			if x+1 < len(row) && row[x+1].Mode&terminal.ModeWideCont != 0 {
				x++
				continue
			}
			row[x] = terminal.Cell{Rune: ' ', FG: c.FG, BG: c.BG}
		case c.Mode&terminal.ModeWideCont != 0:
			row[x] = terminal.Cell{Rune: ' ', FG: c.FG, BG: c.BG}
		}
	}
}

// clampRegion clips the scroll region to the screen and n to its
// height.
func (s *screen) clampRegion(n int) (top, bottom, count int) {
	top = max(s.scrollTop, 0)
	bottom = min(s.scrollBottom, s.rows-1)
	count = min(n, bottom-top+1)
	return top, bottom, count
}

// blankRows fills rows y0 through y1 and clears their wrap flags.
func (s *screen) blankRows(y0, y1 int, fill terminal.Cell) {
	for y := y0; y <= y1; y++ {
		row := s.cells[y*s.cols : (y+1)*s.cols]
		for x := range row {
			row[x] = fill
		}
		s.wrapped[y] = false
	}
}

func (s *screen) copyRow(dst, src int) {
	copy(s.cells[dst*s.cols:(dst+1)*s.cols], s.cells[src*s.cols:(src+1)*s.cols])
	s.wrapped[dst] = s.wrapped[src]
}

func (s *screen) scrollUp(n int, fill terminal.Cell) {
	top, bottom, count := s.clampRegion(n)
	if count < 1 {
		return
	}
	fill = ensureBlank(fill)
	copy(s.cells[top*s.cols:], s.cells[(top+count)*s.cols:(bottom+1)*s.cols])
	copy(s.wrapped[top:], s.wrapped[top+count:bottom+1])
	s.blankRows(bottom-count+1, bottom, fill)
}

func (s *screen) scrollDown(n int, fill terminal.Cell) {
	top, bottom, count := s.clampRegion(n)
	if count < 1 {
		return
	}
	fill = ensureBlank(fill)
	for y := bottom; y >= top+count; y-- {
		s.copyRow(y, y-count)
	}
	s.blankRows(top, top+count-1, fill)
}

func (s *screen) insertLines(row, n int, fill terminal.Cell) {
	if row < s.scrollTop || row > s.scrollBottom || n < 1 {
		return
	}
	fill = ensureBlank(fill)
	count := min(n, s.scrollBottom-row+1)
	for y := s.scrollBottom; y >= row+count; y-- {
		s.copyRow(y, y-count)
	}
	s.blankRows(row, row+count-1, fill)
}

func (s *screen) deleteLines(row, n int, fill terminal.Cell) {
	if row < s.scrollTop || row > s.scrollBottom || n < 1 {
		return
	}
	fill = ensureBlank(fill)
	count := min(n, s.scrollBottom-row+1)
	for y := row; y <= s.scrollBottom-count; y++ {
		s.copyRow(y, y+count)
	}
	s.blankRows(s.scrollBottom-count+1, s.scrollBottom, fill)
}

func (s *screen) insertChars(row, col, n int, fill terminal.Cell) {
	if row < 0 || row >= s.rows || n < 1 {
		return
	}
	col = max(col, 0)
	if col >= s.cols {
		return
	}
	n = min(n, s.cols-col)
	fill = ensureBlank(fill)
	// A wide pair split by the insert point loses its leader; a pair
	// fully right of it shifts intact.
	if c := s.cells[s.index(col, row)]; c.Mode&terminal.ModeWideCont != 0 && col > 0 {
		s.cells[s.index(col-1, row)] = terminal.Cell{Rune: ' '}
	}
	line := s.cells[row*s.cols : (row+1)*s.cols]
	copy(line[col+n:], line[col:s.cols-n])
	for x := col; x < col+n; x++ {
		line[x] = fill
	}
	s.normalizeLine(row)
}

func (s *screen) deleteChars(row, col, n int, fill terminal.Cell) {
	if row < 0 || row >= s.rows || n < 1 {
		return
	}
	col = max(col, 0)
	if col >= s.cols {
		return
	}
	n = min(n, s.cols-col)
	fill = ensureBlank(fill)
	s.repairWide(col, row)
	s.repairWide(col+n-1, row)
	line := s.cells[row*s.cols : (row+1)*s.cols]
	copy(line[col:], line[col+n:])
	for x := s.cols - n; x < s.cols; x++ {
		line[x] = fill
	}
	s.normalizeLine(row)
}
