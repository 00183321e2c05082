package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/creack/pty"
)

// ttyPair opens a PTY pair with the given window size. Both ends close
// on cleanup.
func ttyPair(t *testing.T, cols, rows uint16) (master, slave *os.File) {
	t.Helper()
	var err error
	if master, slave, err = pty.Open(); err != nil {
		t.Fatalf("open pty: %v", err)
	}
	t.Cleanup(func() {
		_ = slave.Close()
		_ = master.Close()
	})
	if err := pty.Setsize(master, &pty.Winsize{Cols: cols, Rows: rows}); err != nil {
		t.Fatalf("set pty size: %v", err)
	}
	return master, slave
}

// sizedTTY returns the slave end of a sized PTY pair, which reports
// that size through term.GetSize.
func sizedTTY(t *testing.T, cols, rows uint16) *os.File {
	t.Helper()
	_, slave := ttyPair(t, cols, rows)
	return slave
}

func TestTermSizePrefersFirstTerminal(t *testing.T) {
	a := sizedTTY(t, 120, 40)
	b := sizedTTY(t, 80, 24)

	cols, rows := termSizeAny(a, b)
	if cols != 120 || rows != 40 {
		t.Fatalf("termSizeAny = %dx%d, want 120x40", cols, rows)
	}
}

func TestTermSizeSkipsNonTerminals(t *testing.T) {
	plain, err := os.Create(filepath.Join(t.TempDir(), "not-a-tty"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() {
		_ = plain.Close()
	})

	if cols, rows := termSize(plain); cols != 0 || rows != 0 {
		t.Fatalf("termSize on a regular file = %dx%d, want 0x0", cols, rows)
	}

	tty := sizedTTY(t, 100, 50)
	cols, rows := termSizeAny(plain, tty)
	if cols != 100 || rows != 50 {
		t.Fatalf("termSizeAny = %dx%d, want 100x50", cols, rows)
	}
}

// Without usable candidates the size comes from /dev/tty or reports
// zero, depending on whether the test has a controlling terminal. Both
// dimensions must agree either way.
func TestTermSizeWithoutCandidates(t *testing.T) {
	cols, rows := termSizeAny(nil, nil)
	if (cols > 0) != (rows > 0) {
		t.Fatalf("termSizeAny = %dx%d, want both set or both zero", cols, rows)
	}
	if cols < 0 || rows < 0 {
		t.Fatalf("termSizeAny = %dx%d, want non-negative", cols, rows)
	}
}
