package hjortron

import "pkt.systems/hjortron/internal/config"

// Config mirrors the Hjortron configuration.
type Config = config.Config

// TerminalConfig configures the local terminal session.
type TerminalConfig = config.TerminalConfig

// ViewConfig configures the embedded viewer server.
type ViewConfig = config.ViewConfig

// Loader resolves configuration from file, environment, and bound
// defaults via Viper.
type Loader = config.Loader

// Defaults re-exported from the internal config package.
const (
	DefaultConfigDirName   = config.DefaultConfigDirName
	DefaultConfigFileName  = config.DefaultConfigFileName
	DefaultLogFileName     = config.DefaultLogFileName
	DefaultSessionID       = config.DefaultSessionID
	DefaultTerminalTerm    = config.DefaultTerminalTerm
	DefaultTerminalCols    = config.DefaultTerminalCols
	DefaultTerminalRows    = config.DefaultTerminalRows
	DefaultScrollbackLines = config.DefaultScrollbackLines
	DefaultBufferLines     = config.DefaultBufferLines
)

// NewLoader returns a config loader with env and search paths wired.
func NewLoader() *Loader { return config.NewLoader() }

// DefaultConfig returns the built-in Hjortron configuration.
func DefaultConfig() Config { return config.DefaultConfig() }

// DefaultConfigDir returns the default config directory.
func DefaultConfigDir() string { return config.DefaultConfigDir() }

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string { return config.DefaultConfigPath() }

// DefaultLogPath returns the default session log path.
func DefaultLogPath() string { return config.DefaultLogPath() }
