package emu

import (
	"strings"
	"testing"

	"pkt.systems/hjortron/internal/terminal"
)

func feed(t *testing.T, e *Emulator, chunks ...string) {
	t.Helper()
	for _, c := range chunks {
		if err := e.Write([]byte(c)); err != nil {
			t.Fatalf("Write(%q): %v", c, err)
		}
	}
}

func grab(t *testing.T, e *Emulator) terminal.Snapshot {
	t.Helper()
	snap, err := e.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

// cell reads one cell, folding out-of-bounds reads into a blank so
// assertions stay short.
func cell(s terminal.Snapshot, x, y int) terminal.Cell {
	c, err := s.CellAt(x, y)
	if err != nil {
		return terminal.Cell{Rune: ' '}
	}
	return c
}

// row renders a grid row as a string, one rune per cell.
func row(s terminal.Snapshot, y int) string {
	var b strings.Builder
	for x := 0; ; x++ {
		c, err := s.CellAt(x, y)
		if err != nil {
			return b.String()
		}
		b.WriteRune(c.Rune)
	}
}

func TestPrintAdvancesCursor(t *testing.T) {
	e := New(4, 2)
	feed(t, e, "ab")
	snap := grab(t, e)
	if got := row(snap, 0); got != "ab  " {
		t.Fatalf("row0 = %q", got)
	}
	if snap.Cursor.X != 2 || snap.Cursor.Y != 0 {
		t.Fatalf("cursor = %+v, want after b", snap.Cursor)
	}
}

func TestWrapAndScroll(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "abcdefg")
	snap := grab(t, e)
	for y, want := range []string{"def", "g  "} {
		if got := row(snap, y); got != want {
			t.Fatalf("row%d = %q, want %q", y, got, want)
		}
	}
}

func TestWrapSetsRowFlag(t *testing.T) {
	e := New(3, 3)
	feed(t, e, "abcd")
	snap := grab(t, e)
	if !snap.RowWrapped(0) {
		t.Fatalf("expected row 0 marked wrapped")
	}
	if snap.RowWrapped(1) {
		t.Fatalf("row 1 should not be wrapped")
	}
}

func TestCarriageReturnCancelsPendingWrap(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "abc\rX")
	snap := grab(t, e)
	if got := row(snap, 0); got != "Xbc" {
		t.Fatalf("row0 = %q", got)
	}
	if snap.Cursor.Y != 0 {
		t.Fatalf("cursor.Y = %d, want 0", snap.Cursor.Y)
	}
	if snap.RowWrapped(0) {
		t.Fatalf("row 0 should not be wrapped")
	}
}

func TestCursorMovement(t *testing.T) {
	e := New(5, 1)
	feed(t, e, "abc", "\x1b[2D", "Z")
	snap := grab(t, e)
	if got := row(snap, 0); got != "aZc  " {
		t.Fatalf("row = %q", got)
	}
}

func TestCursorClampedAtEdges(t *testing.T) {
	e := New(4, 3)
	feed(t, e, "\x1b[99;99H")
	snap := grab(t, e)
	if snap.Cursor.X != 3 || snap.Cursor.Y != 2 {
		t.Fatalf("cursor = %+v, want bottom right", snap.Cursor)
	}
	feed(t, e, "\x1b[99A\x1b[99D")
	snap = grab(t, e)
	if snap.Cursor.X != 0 || snap.Cursor.Y != 0 {
		t.Fatalf("cursor = %+v, want origin", snap.Cursor)
	}
}

func TestEraseLine(t *testing.T) {
	e := New(5, 1)
	feed(t, e, "hello", "\x1b[2K")
	snap := grab(t, e)
	if got := row(snap, 0); got != "     " {
		t.Fatalf("row = %q", got)
	}
}

func TestEraseBelow(t *testing.T) {
	e := New(3, 3)
	feed(t, e, "aaa\r\nbbb\r\nccc", "\x1b[2;2H\x1b[J")
	snap := grab(t, e)
	for y, want := range []string{"aaa", "b  ", "   "} {
		if got := row(snap, y); got != want {
			t.Fatalf("row%d = %q, want %q", y, got, want)
		}
	}
}

func TestEraseUsesCurrentBackground(t *testing.T) {
	e := New(2, 1)
	feed(t, e, "\x1b[1;41mA\x1b[2J")
	c := cell(grab(t, e), 0, 0)
	if c.Rune != ' ' {
		t.Fatalf("rune = %q", c.Rune)
	}
	if c.BG != terminal.ColorIndexed|1 {
		t.Fatalf("bg = %#x, want red", c.BG)
	}
	if c.Mode != 0 {
		t.Fatalf("mode = %#x, want attributes cleared", c.Mode)
	}
	if c.FG != terminal.ColorDefault {
		t.Fatalf("fg = %#x, want default", c.FG)
	}
}

func TestAltScreenSwitch(t *testing.T) {
	e := New(5, 1)
	feed(t, e, "main", "\x1b[?1049h", "alt")
	if got := row(grab(t, e), 0); got != "alt  " {
		t.Fatalf("alt row = %q", got)
	}
	feed(t, e, "\x1b[?1049l")
	if got := row(grab(t, e), 0); got != "main " {
		t.Fatalf("main row = %q", got)
	}
}

func TestAltScreenStartsBlankEachEntry(t *testing.T) {
	e := New(5, 1)
	feed(t, e, "\x1b[?1049halt\x1b[?1049l", "\x1b[?1049h")
	snap := grab(t, e)
	if got := row(snap, 0); got != "     " {
		t.Fatalf("alt row = %q, want blank", got)
	}
	if snap.Cursor.X != 0 || snap.Cursor.Y != 0 {
		t.Fatalf("cursor = %+v, want origin", snap.Cursor)
	}
}

func TestAltScreenRestoresCursor(t *testing.T) {
	e := New(10, 2)
	feed(t, e, "prompt", "\x1b[?1049h\x1b[2;5Hvi\x1b[?1049l")
	snap := grab(t, e)
	if snap.Cursor.X != 6 || snap.Cursor.Y != 0 {
		t.Fatalf("cursor = %+v, want restored after prompt", snap.Cursor)
	}
	if got := row(snap, 0); !strings.HasPrefix(got, "prompt") {
		t.Fatalf("row0 = %q", got)
	}
}

func TestSGRBasicForeground(t *testing.T) {
	e := New(2, 1)
	feed(t, e, "\x1b[31mA")
	c := cell(grab(t, e), 0, 0)
	if c.Rune != 'A' {
		t.Fatalf("rune = %q", c.Rune)
	}
	if c.FG != terminal.ColorIndexed|1 {
		t.Fatalf("fg = %#x, want ansi red", c.FG)
	}
}

func TestSGRSetAndClearFlags(t *testing.T) {
	cases := []struct {
		name  string
		input string
		mode  int16
	}{
		{"empty SGR resets inverse", "\x1b[7mA\x1b[mB", terminal.ModeInverse},
		{"24 clears underline", "\x1b[4mA\x1b[24mB", terminal.ModeUnderline},
		{"29 clears strikethrough", "\x1b[9mA\x1b[29mB", terminal.ModeStrike},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := New(3, 1)
			feed(t, e, tc.input)
			snap := grab(t, e)
			if cell(snap, 0, 0).Mode&tc.mode == 0 {
				t.Fatalf("attribute not set on first cell")
			}
			if cell(snap, 1, 0).Mode&tc.mode != 0 {
				t.Fatalf("attribute not cleared on second cell")
			}
		})
	}
}

func TestSGRColonSubparameters(t *testing.T) {
	e := New(2, 1)
	feed(t, e, "\x1b[38:5:196mA")
	if got := cell(grab(t, e), 0, 0).FG; got != terminal.ColorIndexed256|196 {
		t.Fatalf("fg = %#x, want indexed 196", got)
	}
}

func TestSGRBasicAndExtendedPalettesStayApart(t *testing.T) {
	e := New(3, 1)
	feed(t, e, "\x1b[37ma\x1b[38;5;7mb")
	snap := grab(t, e)
	if got := cell(snap, 0, 0).FG; got != terminal.ColorIndexed|7 {
		t.Fatalf("basic white = %#x, want ansi palette 7", got)
	}
	if got := cell(snap, 1, 0).FG; got != terminal.ColorIndexed256|7 {
		t.Fatalf("explicit 256 gray = %#x, want 256-color 7", got)
	}
}

func TestSGRTrueColor(t *testing.T) {
	e := New(2, 1)
	feed(t, e, "\x1b[48;2;16;32;48mA")
	want := terminal.ColorTrue | 16<<16 | 32<<8 | 48
	if got := cell(grab(t, e), 0, 0).BG; got != want {
		t.Fatalf("bg = %#x, want %#x", got, want)
	}
}

func TestTabStops(t *testing.T) {
	e := New(10, 1)
	feed(t, e, "a\tb")
	if got := row(grab(t, e), 0); got != "a       b " {
		t.Fatalf("row = %q", got)
	}
}

func TestCustomTabStop(t *testing.T) {
	e := New(20, 1)
	feed(t, e, "\x1b[5G\x1bH\x1b[G\t")
	if got := grab(t, e).Cursor.X; got != 4 {
		t.Fatalf("cursor.X = %d, want custom stop at 4", got)
	}
	feed(t, e, "\x1b[0g\x1b[G\t")
	if got := grab(t, e).Cursor.X; got != 8 {
		t.Fatalf("cursor.X = %d, want default stop after clear", got)
	}
}

func TestBackTab(t *testing.T) {
	e := New(20, 1)
	feed(t, e, "\x1b[12G\x1b[Z")
	if got := grab(t, e).Cursor.X; got != 8 {
		t.Fatalf("cursor.X = %d, want previous stop", got)
	}
}

func TestLineDrawingCharset(t *testing.T) {
	e := New(2, 1)
	feed(t, e, "\x1b)0\x0eq\x0f")
	if got := row(grab(t, e), 0); got != "─ " {
		t.Fatalf("row = %q, want line-drawing glyph", got)
	}
}

func TestCRLFMovesToNextLine(t *testing.T) {
	e := New(4, 3)
	feed(t, e, "one\r\ntwo\r\n")
	snap := grab(t, e)
	for y, want := range []string{"one ", "two "} {
		if got := row(snap, y); got != want {
			t.Fatalf("row%d = %q, want %q", y, got, want)
		}
	}
}

func TestScrollRegion(t *testing.T) {
	e := New(3, 4)
	feed(t, e, "top\x1b[2;3r\x1b[2Haaa\r\nbbb\r\nccc")
	snap := grab(t, e)
	for y, want := range []string{"top", "bbb", "ccc", "   "} {
		if got := row(snap, y); got != want {
			t.Fatalf("row%d = %q, want %q", y, got, want)
		}
	}
}

func TestOriginModeHomesToRegion(t *testing.T) {
	e := New(4, 4)
	feed(t, e, "\x1b[2;3r\x1b[?6hA")
	if got := cell(grab(t, e), 0, 1).Rune; got != 'A' {
		t.Fatalf("cell(0,1) = %q, want region-relative home", got)
	}
}

func TestDeviceAttributesReply(t *testing.T) {
	e := New(4, 2)
	feed(t, e, "\x1b[c") // no writer installed, reply dropped
	var out []byte
	e.SetResponseWriter(func(p []byte) { out = append(out, p...) })
	feed(t, e, "\x1b[c\x1b[5n")
	if got := string(out); got != "\x1b[?6c\x1b[0n" {
		t.Fatalf("replies = %q", got)
	}
}

func TestCursorPositionReport(t *testing.T) {
	e := New(10, 5)
	var out []byte
	e.SetResponseWriter(func(p []byte) { out = append(out, p...) })
	feed(t, e, "\x1b[3;5H\x1b[6n")
	if got := string(out); got != "\x1b[3;5R" {
		t.Fatalf("report = %q", got)
	}
	out = out[:0]
	feed(t, e, "\x1b[2;4r\x1b[?6h\x1b[2;2H\x1b[?6n")
	if got := string(out); got != "\x1b[?2;2R" {
		t.Fatalf("origin-relative report = %q", got)
	}
}

func TestInsertAndDeleteChars(t *testing.T) {
	e := New(6, 1)
	feed(t, e, "abcdef\r\x1b[2@")
	if got := row(grab(t, e), 0); got != "  abcd" {
		t.Fatalf("after ICH row = %q", got)
	}
	feed(t, e, "\x1b[2P")
	if got := row(grab(t, e), 0); got != "abcd  " {
		t.Fatalf("after DCH row = %q", got)
	}
}

func TestInsertAndDeleteLines(t *testing.T) {
	e := New(3, 3)
	feed(t, e, "aaa\r\nbbb\r\nccc\x1b[H\x1b[M")
	snap := grab(t, e)
	if got := row(snap, 0); got != "bbb" {
		t.Fatalf("after DL row0 = %q", got)
	}
	if got := row(snap, 2); got != "   " {
		t.Fatalf("after DL row2 = %q", got)
	}
	feed(t, e, "\x1b[L")
	snap = grab(t, e)
	for y, want := range []string{"   ", "bbb"} {
		if got := row(snap, y); got != want {
			t.Fatalf("after IL row%d = %q, want %q", y, got, want)
		}
	}
}

func TestInsertMode(t *testing.T) {
	e := New(6, 1)
	feed(t, e, "abc\x1b[G\x1b[4hXY\x1b[4l")
	if got := row(grab(t, e), 0); got != "XYabc " {
		t.Fatalf("row = %q", got)
	}
}

func TestEraseChars(t *testing.T) {
	e := New(5, 1)
	feed(t, e, "hello\x1b[2G\x1b[2X")
	if got := row(grab(t, e), 0); got != "h  lo" {
		t.Fatalf("row = %q", got)
	}
}

func TestSaveRestoreCursor(t *testing.T) {
	e := New(6, 1)
	feed(t, e, "ab\x1b7cd\x1b8X")
	if got := row(grab(t, e), 0); got != "abXd  " {
		t.Fatalf("row = %q", got)
	}
}

func TestRestoreCursorBringsBackAttributes(t *testing.T) {
	e := New(4, 1)
	feed(t, e, "\x1b[1m\x1b7\x1b[0m\x1b8A")
	if cell(grab(t, e), 0, 0).Mode&terminal.ModeBold == 0 {
		t.Fatalf("expected bold restored with cursor")
	}
}

func TestAlignmentPattern(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "\x1b#8")
	snap := grab(t, e)
	for y := 0; y < 2; y++ {
		if got := row(snap, y); got != "EEE" {
			t.Fatalf("row%d = %q", y, got)
		}
	}
}

func TestResizeTruncatesAndPads(t *testing.T) {
	e := New(4, 2)
	feed(t, e, "abcd\r\nxy")
	e.Resize(2, 3)
	snap := grab(t, e)
	if snap.Cols != 2 || snap.Rows != 3 {
		t.Fatalf("size = %dx%d", snap.Cols, snap.Rows)
	}
	for y, want := range []string{"ab", "xy", "  "} {
		if got := row(snap, y); got != want {
			t.Fatalf("row%d = %q, want %q", y, got, want)
		}
	}
	if snap.Cursor.X >= snap.Cols || snap.Cursor.Y >= snap.Rows {
		t.Fatalf("cursor out of bounds after resize: %+v", snap.Cursor)
	}
}

func TestResizeKeepsWider(t *testing.T) {
	e := New(2, 2)
	feed(t, e, "ab")
	e.Resize(5, 2)
	if got := row(grab(t, e), 0); got != "ab   " {
		t.Fatalf("row0 = %q", got)
	}
}

func TestTitleOSC(t *testing.T) {
	e := New(4, 1)
	feed(t, e, "\x1b]2;hej\x07")
	if got := grab(t, e).Title; got != "hej" {
		t.Fatalf("title = %q", got)
	}
	feed(t, e, "\x1b]0;again\x1b\\")
	if got := grab(t, e).Title; got != "again" {
		t.Fatalf("title = %q", got)
	}
}

func TestBellReported(t *testing.T) {
	e := New(4, 1)
	feed(t, e, "a\x07b")
	if !e.TakeBell() {
		t.Fatalf("expected bell")
	}
	if e.TakeBell() {
		t.Fatalf("bell should reset after take")
	}
	if got := row(grab(t, e), 0); got != "ab  " {
		t.Fatalf("row = %q", got)
	}
}

func TestResetClearsScreenKeepsScrollback(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "a\r\nb\r\nc\r\nd")
	before := e.ScrollbackLen()
	if before == 0 {
		t.Fatalf("expected scrollback before reset")
	}
	feed(t, e, "\x1bc")
	if got := row(grab(t, e), 0); got != "   " {
		t.Fatalf("row0 = %q, want cleared", got)
	}
	if got := e.ScrollbackLen(); got != before {
		t.Fatalf("scrollback = %d, want %d", got, before)
	}
}

func TestAutowrapDisabledPinsCursor(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "\x1b[?7labcXY")
	snap := grab(t, e)
	for y, want := range []string{"abY", "   "} {
		if got := row(snap, y); got != want {
			t.Fatalf("row%d = %q, want %q", y, got, want)
		}
	}
	if snap.Cursor.X != 2 || snap.Cursor.Y != 0 {
		t.Fatalf("cursor = %+v, want pinned at last column", snap.Cursor)
	}
}
