package terminal

import "fmt"

// Emulator is the authoritative screen: it consumes raw PTY bytes and
// serves cell-grid snapshots.
type Emulator interface {
	Write(p []byte) error
	Snapshot() (Snapshot, error)
	Resize(cols, rows int)
}

// Cursor is a zero-based grid position.
type Cursor struct {
	X, Y int
}

// Cell is one grid position: rune content plus attribute and color
// planes.
type Cell struct {
	Rune rune
	FG   uint32
	BG   uint32
	Mode int16
}

// Width reports how many columns the cell occupies: 2 for a wide
// leader, 0 for its continuation, 1 otherwise.
func (c Cell) Width() int {
	switch {
	case c.Mode&ModeWide != 0:
		return 2
	case c.Mode&ModeWideCont != 0:
		return 0
	default:
		return 1
	}
}

// Snapshot is a self-contained copy of the visible screen.
type Snapshot struct {
	Cols, Rows int
	Cells      []Cell
	// Wrapped marks rows whose content continues on the next row.
	Wrapped       []bool
	Cursor        Cursor
	CursorVisible bool
	Title         string
	Mode          uint32
}

// Cell mode flags carried in Cell.Mode.
const (
	ModeBold int16 = 1 << iota
	ModeFaint
	ModeItalic
	ModeUnderline
	ModeBlink
	ModeInverse
	ModeHidden
	ModeStrike
	ModeWide
	ModeWideCont
)

// Color encoding flags for snapshot cells. ColorIndexed marks the
// basic ANSI palette (SGR 30-37, 90-97 and the bg forms) while
// ColorIndexed256 marks an explicit 256-color index (SGR 38;5;n);
// renderers keep the two apart so palette remapping only touches the
// former.
const (
	ColorDefault    uint32 = 0
	ColorIndexed    uint32 = 1 << 24
	ColorTrue       uint32 = 2 << 24
	ColorIndexed256 uint32 = 3 << 24
	ColorFlagMask   uint32 = 0xff000000
	ColorValueMask  uint32 = 0x00ffffff
)

// CellAt returns the cell at (x, y) or an error outside the grid.
func (s Snapshot) CellAt(x, y int) (Cell, error) {
	if x < 0 || x >= s.Cols || y < 0 || y >= s.Rows {
		return Cell{}, fmt.Errorf("cell %d,%d outside %dx%d grid", x, y, s.Cols, s.Rows)
	}
	return s.Cells[y*s.Cols+x], nil
}

// RowWrapped reports whether row y continues on the following row.
func (s Snapshot) RowWrapped(y int) bool {
	if y < 0 || y >= len(s.Wrapped) {
		return false
	}
	return s.Wrapped[y]
}

// SelectionKind selects how a Selection expands to cells.
type SelectionKind int

const (
	// SelectionChar spans from anchor to active in reading order.
	SelectionChar SelectionKind = iota
	// SelectionLine spans whole rows between anchor and active.
	SelectionLine
	// SelectionBlock spans the rectangle with anchor and active corners.
	SelectionBlock
)

// Coord addresses a cell in the combined scrollback+grid space.
// Line 0 is the oldest scrollback row; the visible grid follows.
type Coord struct {
	X    int
	Line int
}

// Selection describes a region selected by the user.
type Selection struct {
	Anchor Coord
	Active Coord
	Kind   SelectionKind
}

// Normalized returns the selection with Anchor ordered before Active.
func (s Selection) Normalized() Selection {
	a, b := s.Anchor, s.Active
	if a.Line > b.Line || (a.Line == b.Line && a.X > b.X) {
		a, b = b, a
	}
	out := s
	out.Anchor = a
	out.Active = b
	return out
}

// Match locates one search hit on a buffer line. StartX is the first
// cell of the hit and EndX the cell just past it.
type Match struct {
	Line   int
	StartX int
	EndX   int
}

// Mark records a shell integration prompt marker (OSC 133) at the
// buffer line where it was emitted. Kind is one of 'A' (prompt
// start), 'B' (prompt end), 'C' (command output start) or 'D'
// (command finished, with the exit status in Arg when reported).
type Mark struct {
	Kind byte
	Arg  string
	Line int
}
