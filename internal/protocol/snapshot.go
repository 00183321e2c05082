package protocol

import (
	"pkt.systems/hjortron/internal/terminal"
)

// Cursor is the wire form of a cursor position.
type Cursor struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Snapshot is the wire form of a full screen repaint. Cell data is
// columnar: index y*Cols+x addresses Runes, Modes, Fg and Bg.
type Snapshot struct {
	Cols          int      `json:"cols"`
	Rows          int      `json:"rows"`
	Runes         []uint32 `json:"runes"`
	Modes         []int32  `json:"modes"`
	Fg            []uint32 `json:"fg"`
	Bg            []uint32 `json:"bg"`
	Cursor        Cursor   `json:"cursor"`
	CursorVisible bool     `json:"cursor_visible"`
	Mode          uint32   `json:"mode,omitempty"`
	Title         string   `json:"title,omitempty"`
}

// Clone returns a deep copy. ApplyDiff patches a snapshot in place,
// so callers that keep a before/after pair must copy first.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Runes = append([]uint32(nil), s.Runes...)
	out.Modes = append([]int32(nil), s.Modes...)
	out.Fg = append([]uint32(nil), s.Fg...)
	out.Bg = append([]uint32(nil), s.Bg...)
	return &out
}

// SnapshotToWire flattens a terminal snapshot into its wire form.
func SnapshotToWire(s terminal.Snapshot) *Snapshot {
	out := &Snapshot{
		Cols:          s.Cols,
		Rows:          s.Rows,
		Runes:         make([]uint32, len(s.Cells)),
		Modes:         make([]int32, len(s.Cells)),
		Fg:            make([]uint32, len(s.Cells)),
		Bg:            make([]uint32, len(s.Cells)),
		Cursor:        Cursor{X: s.Cursor.X, Y: s.Cursor.Y},
		CursorVisible: s.CursorVisible,
		Mode:          s.Mode,
		Title:         s.Title,
	}
	for i, cell := range s.Cells {
		out.Runes[i] = uint32(cell.Rune)
		out.Modes[i] = int32(cell.Mode)
		out.Fg[i] = cell.FG
		out.Bg[i] = cell.BG
	}
	return out
}
