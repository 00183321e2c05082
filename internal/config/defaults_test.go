package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultPathsFollowHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, DefaultConfigDirName)
	if got := DefaultConfigDir(); got != dir {
		t.Fatalf("config dir = %q, want %q", got, dir)
	}
	if got, want := DefaultConfigPath(), filepath.Join(dir, DefaultConfigFileName); got != want {
		t.Fatalf("config path = %q, want %q", got, want)
	}
	if got, want := DefaultLogPath(), filepath.Join(dir, DefaultLogFileName); got != want {
		t.Fatalf("log path = %q, want %q", got, want)
	}
}

func TestConfigDirWithoutHome(t *testing.T) {
	t.Setenv("HOME", "")

	if got := DefaultConfigDir(); got != DefaultConfigDirName {
		t.Fatalf("config dir = %q, want bare %q", got, DefaultConfigDirName)
	}
}

func TestDefaultConfigFallbacks(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()
	if cfg.Terminal.Term != DefaultTerminalTerm {
		t.Errorf("term = %q, want %q", cfg.Terminal.Term, DefaultTerminalTerm)
	}
	if cfg.Terminal.Cols != DefaultTerminalCols || cfg.Terminal.Rows != DefaultTerminalRows {
		t.Errorf("size = %dx%d, want %dx%d",
			cfg.Terminal.Cols, cfg.Terminal.Rows, DefaultTerminalCols, DefaultTerminalRows)
	}
	if cfg.Terminal.ScrollbackLines != DefaultScrollbackLines {
		t.Errorf("scrollback = %d, want %d", cfg.Terminal.ScrollbackLines, DefaultScrollbackLines)
	}
	if cfg.View.Listen != "" {
		t.Errorf("view listen = %q, want empty so sharing stays off", cfg.View.Listen)
	}
	if cfg.View.BufferLines != DefaultBufferLines {
		t.Errorf("buffer lines = %d, want %d", cfg.View.BufferLines, DefaultBufferLines)
	}
	if want := filepath.Join(home, DefaultConfigDirName, DefaultLogFileName); cfg.LogFile != want {
		t.Errorf("log file = %q, want %q", cfg.LogFile, want)
	}
}
