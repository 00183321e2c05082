package protocol

// DiffRow carries the full cell contents of one changed row.
type DiffRow struct {
	Row   int      `json:"row"`
	Runes []uint32 `json:"runes"`
	Modes []int32  `json:"modes"`
	Fg    []uint32 `json:"fg"`
	Bg    []uint32 `json:"bg"`
}

// Diff carries the rows changed since the previous snapshot plus the
// current cursor and title state.
type Diff struct {
	Cols          int        `json:"cols"`
	Rows          int        `json:"rows"`
	DiffRows      []*DiffRow `json:"diff_rows,omitempty"`
	Cursor        Cursor     `json:"cursor"`
	CursorVisible bool       `json:"cursor_visible"`
	Mode          uint32     `json:"mode,omitempty"`
	Title         string     `json:"title,omitempty"`
}

// DiffSnapshots compares two snapshots. It returns the diff and false
// when an incremental update can represent the change, nil and true
// when the receiver needs a full snapshot (first frame or size
// change), and nil and false when nothing changed at all.
func DiffSnapshots(prev, next *Snapshot) (*Diff, bool) {
	switch {
	case next == nil:
		return nil, false
	case prev == nil, prev.Cols != next.Cols, prev.Rows != next.Rows:
		return nil, true
	}

	var changed []*DiffRow
	for y := 0; y < next.Rows; y++ {
		if rowSame(prev, next, y, next.Cols) {
			continue
		}
		changed = append(changed, &DiffRow{
			Row:   y,
			Runes: copyRow(next.Runes, y, next.Cols),
			Modes: copyRowInt32(next.Modes, y, next.Cols),
			Fg:    copyRow(next.Fg, y, next.Cols),
			Bg:    copyRow(next.Bg, y, next.Cols),
		})
	}

	sameMeta := prev.Cursor == next.Cursor &&
		prev.CursorVisible == next.CursorVisible &&
		prev.Mode == next.Mode && prev.Title == next.Title
	if len(changed) == 0 && sameMeta {
		return nil, false
	}
	return &Diff{
		Cols:          next.Cols,
		Rows:          next.Rows,
		DiffRows:      changed,
		Cursor:        next.Cursor,
		CursorVisible: next.CursorVisible,
		Mode:          next.Mode,
		Title:         next.Title,
	}, false
}

// ApplyDiff patches prev with diff and returns the resulting
// snapshot. A nil or size-mismatched prev is replaced with a blank
// snapshot of the diff's dimensions before patching.
func ApplyDiff(prev *Snapshot, diff *Diff) *Snapshot {
	if diff == nil {
		return prev
	}
	cols := diff.Cols
	rows := diff.Rows
	if cols <= 0 || rows <= 0 {
		if prev == nil {
			return nil
		}
		cols = prev.Cols
		rows = prev.Rows
	}

	snap := prev
	if snap == nil || snap.Cols != cols || snap.Rows != rows {
		snap = emptyFrame(cols, rows)
	}

	for _, row := range diff.DiffRows {
		if row == nil || row.Row < 0 || row.Row >= rows {
			continue
		}
		start := row.Row * cols
		copy(snap.Runes[start:start+cols], row.Runes)
		copy(snap.Modes[start:start+cols], row.Modes)
		copy(snap.Fg[start:start+cols], row.Fg)
		copy(snap.Bg[start:start+cols], row.Bg)
	}
	snap.Cursor = diff.Cursor
	snap.CursorVisible = diff.CursorVisible
	snap.Title = diff.Title
	snap.Mode = diff.Mode
	return snap
}

// emptyFrame allocates a blank snapshot sized for a cols x rows grid.
func emptyFrame(cols, rows int) *Snapshot {
	n := cols * rows
	return &Snapshot{
		Cols:  cols,
		Rows:  rows,
		Runes: make([]uint32, n),
		Modes: make([]int32, n),
		Fg:    make([]uint32, n),
		Bg:    make([]uint32, n),
	}
}

// rowSame reports whether every cell plane matches on row y.
func rowSame(prev, next *Snapshot, y, cols int) bool {
	lo := y * cols
	for i := lo; i < lo+cols; i++ {
		if i >= len(prev.Runes) || i >= len(next.Runes) {
			return false
		}
		if prev.Runes[i] != next.Runes[i] {
			return false
		}
		if !sameInt32At(prev.Modes, next.Modes, i) ||
			!sameUint32At(prev.Fg, next.Fg, i) ||
			!sameUint32At(prev.Bg, next.Bg, i) {
			return false
		}
	}
	return true
}

// sameUint32At compares index i of two planes; an index past the end
// counts as equal only when both planes have the same length.
func sameUint32At(a, b []uint32, i int) bool {
	if i >= len(a) || i >= len(b) {
		return len(a) == len(b)
	}
	return a[i] == b[i]
}

func sameInt32At(a, b []int32, i int) bool {
	if i >= len(a) || i >= len(b) {
		return len(a) == len(b)
	}
	return a[i] == b[i]
}

// copyRow extracts row y as a cols-wide slice, zero filling anything
// past the end of the plane.
func copyRow(data []uint32, y, cols int) []uint32 {
	out := make([]uint32, cols)
	if start := y * cols; start < len(data) {
		copy(out, data[start:])
	}
	return out
}

func copyRowInt32(data []int32, y, cols int) []int32 {
	out := make([]int32, cols)
	if start := y * cols; start < len(data) {
		copy(out, data[start:])
	}
	return out
}
