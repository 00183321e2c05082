package hjortron

import (
	"pkt.systems/hjortron/internal/terminal"
	"pkt.systems/hjortron/internal/terminal/emu"
)

// Emulator is the embeddable terminal core: feed it PTY bytes with
// Write and read the grid back with Snapshot. It is not safe for
// concurrent use; callers serialize access the way internal/session
// does.
type Emulator = emu.Emulator

// NewEmulator returns an emulator with a cols x rows primary screen.
func NewEmulator(cols, rows int) *Emulator {
	return emu.New(cols, rows)
}

// Cell is one grid cell: rune, attribute bits and packed colors.
type Cell = terminal.Cell

// Cursor is a zero-based grid position.
type Cursor = terminal.Cursor

// Snapshot is a read-only copy of the visible grid.
type Snapshot = terminal.Snapshot

// Coord addresses a cell in the combined scrollback+grid space.
type Coord = terminal.Coord

// Selection describes a selected region.
type Selection = terminal.Selection

// SelectionKind selects character, line or block expansion.
type SelectionKind = terminal.SelectionKind

const (
	SelectionChar  = terminal.SelectionChar
	SelectionLine  = terminal.SelectionLine
	SelectionBlock = terminal.SelectionBlock
)

// Match locates one search hit on a buffer line.
type Match = terminal.Match

// Mark records a shell integration prompt marker (OSC 133).
type Mark = terminal.Mark

// SearchOptions controls Search matching.
type SearchOptions = emu.SearchOptions

// NextMatch returns the first match after from, wrapping to the start.
func NextMatch(matches []Match, from Coord) (Match, bool) {
	return emu.NextMatch(matches, from)
}

// PrevMatch returns the last match before from, wrapping to the end.
func PrevMatch(matches []Match, from Coord) (Match, bool) {
	return emu.PrevMatch(matches, from)
}

// Cell attribute bits.
const (
	ModeBold      = terminal.ModeBold
	ModeFaint     = terminal.ModeFaint
	ModeItalic    = terminal.ModeItalic
	ModeUnderline = terminal.ModeUnderline
	ModeBlink     = terminal.ModeBlink
	ModeInverse   = terminal.ModeInverse
	ModeHidden    = terminal.ModeHidden
	ModeStrike    = terminal.ModeStrike
	ModeWide      = terminal.ModeWide
	ModeWideCont  = terminal.ModeWideCont
)

// Packed color encoding.
const (
	ColorDefault    = terminal.ColorDefault
	ColorIndexed    = terminal.ColorIndexed
	ColorTrue       = terminal.ColorTrue
	ColorIndexed256 = terminal.ColorIndexed256
	ColorFlagMask   = terminal.ColorFlagMask
	ColorValueMask  = terminal.ColorValueMask
)
