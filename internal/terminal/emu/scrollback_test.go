package emu

import (
	"strings"
	"testing"
)

// lineString renders an absolute line (history or visible) with
// trailing blanks trimmed.
func lineString(e *Emulator, abs int) string {
	cells, _ := e.lineAt(abs)
	var b strings.Builder
	for _, c := range cells {
		b.WriteRune(c.Rune)
	}
	return strings.TrimRight(b.String(), " ")
}

func TestScrollbackCapture(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "a\r\nb\r\nc\r\nd")
	if got := e.ScrollbackLen(); got != 2 {
		t.Fatalf("scrollback = %d, want 2", got)
	}
	for i, want := range []string{"a", "b"} {
		if got := lineString(e, i); got != want {
			t.Fatalf("line%d = %q, want %q", i, got, want)
		}
	}
	if got := row(grab(t, e), 0); got != "c  " {
		t.Fatalf("visible row0 = %q", got)
	}
}

func TestScrollbackOldestEvictedFirst(t *testing.T) {
	e := New(3, 2)
	e.SetMaxScrollback(2)
	feed(t, e, "1\r\n2\r\n3\r\n4\r\n5")
	if got := e.ScrollbackLen(); got != 2 {
		t.Fatalf("scrollback = %d, want capped at 2", got)
	}
	for i, want := range []string{"2", "3"} {
		if got := lineString(e, i); got != want {
			t.Fatalf("line%d = %q, want %q", i, got, want)
		}
	}
}

func TestScrollbackDisabled(t *testing.T) {
	e := New(3, 2)
	e.SetMaxScrollback(0)
	feed(t, e, "a\r\nb\r\nc\r\nd")
	if got := e.ScrollbackLen(); got != 0 {
		t.Fatalf("scrollback = %d, want 0", got)
	}
}

func TestAltScreenNeverFeedsScrollback(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "\x1b[?1049h", "a\r\nb\r\nc\r\nd")
	if got := e.ScrollbackLen(); got != 0 {
		t.Fatalf("scrollback = %d, want 0 while on alternate", got)
	}
	feed(t, e, "\x1b[?1049l")
	if got := e.ScrollbackLen(); got != 0 {
		t.Fatalf("scrollback = %d after leaving alternate", got)
	}
}

func TestScrollRegionSkipsScrollback(t *testing.T) {
	e := New(3, 4)
	feed(t, e, "\x1b[2;3r\x1b[2Ha\r\nb\r\nc\r\nd")
	if got := e.ScrollbackLen(); got != 0 {
		t.Fatalf("scrollback = %d, want 0 with region not at top", got)
	}
}

func TestEraseScrollback(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "a\r\nb\r\nc\r\nd")
	if e.ScrollbackLen() == 0 {
		t.Fatalf("expected scrollback before erase")
	}
	feed(t, e, "\x1b[3J")
	if got := e.ScrollbackLen(); got != 0 {
		t.Fatalf("scrollback = %d after ED 3", got)
	}
	if got := row(grab(t, e), 0); got != "c  " {
		t.Fatalf("visible row0 = %q, want untouched", got)
	}
}

func TestScrollbackKeepsWrapFlag(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "abcdef\r\nx\r\ny\r\nz")
	if e.ScrollbackLen() < 2 {
		t.Fatalf("scrollback = %d", e.ScrollbackLen())
	}
	if _, wrapped := e.lineAt(0); !wrapped {
		t.Fatalf("expected first history row marked wrapped")
	}
	if _, wrapped := e.lineAt(1); wrapped {
		t.Fatalf("second history row should not be wrapped")
	}
}

func TestScrollbackRowsFollowResize(t *testing.T) {
	e := New(3, 2)
	feed(t, e, "a\r\nb\r\nc\r\nd")
	e.Resize(5, 2)
	cells, _ := e.lineAt(0)
	if len(cells) != 5 {
		t.Fatalf("history row width = %d, want 5", len(cells))
	}
	if got := lineString(e, 0); got != "a" {
		t.Fatalf("line0 = %q", got)
	}
	e.Resize(1, 2)
	cells, _ = e.lineAt(0)
	if len(cells) != 1 {
		t.Fatalf("history row width = %d, want 1", len(cells))
	}
}

func TestTotalLines(t *testing.T) {
	e := New(3, 2)
	if got := e.TotalLines(); got != 2 {
		t.Fatalf("TotalLines = %d, want rows only", got)
	}
	feed(t, e, "a\r\nb\r\nc\r\nd")
	if got := e.TotalLines(); got != 4 {
		t.Fatalf("TotalLines = %d, want 4", got)
	}
}
