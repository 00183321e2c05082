package config

import (
	"os"
	"path/filepath"
)

// DefaultConfig returns the built-in configuration, before any file,
// environment, or flag overrides apply.
func DefaultConfig() Config {
	return Config{
		Terminal: TerminalConfig{
			Term:            DefaultTerminalTerm,
			Cols:            DefaultTerminalCols,
			Rows:            DefaultTerminalRows,
			ScrollbackLines: DefaultScrollbackLines,
		},
		View: ViewConfig{
			BufferLines: DefaultBufferLines,
		},
		LogFile: DefaultLogPath(),
	}
}

// DefaultConfigDir returns the Hjortron directory under the user's
// home, or a bare relative name when the home cannot be resolved.
func DefaultConfigDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, DefaultConfigDirName)
	}
	return DefaultConfigDirName
}

// DefaultConfigPath returns the path of the default config file.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), DefaultConfigFileName)
}

// DefaultLogPath returns the path of the default session log file.
func DefaultLogPath() string {
	return filepath.Join(DefaultConfigDir(), DefaultLogFileName)
}
