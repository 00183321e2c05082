package config

const (
	// DefaultConfigDirName is the per-user directory holding config and logs.
	DefaultConfigDirName = ".hjortron"
	// DefaultConfigFileName names the config file inside the config dir.
	DefaultConfigFileName = "config.yaml"
	// DefaultLogFileName names the session log inside the config dir.
	DefaultLogFileName = "hjortron.log"

	// DefaultSessionID labels a session when no ID is configured.
	DefaultSessionID = "local"
	// DefaultTerminalTerm is the TERM exported to the shell.
	DefaultTerminalTerm = "xterm-256color"
	// DefaultTerminalCols is the fallback width when no tty size is known.
	DefaultTerminalCols = 80
	// DefaultTerminalRows is the fallback height when no tty size is known.
	DefaultTerminalRows = 24
	// DefaultScrollbackLines caps rows kept above the primary screen.
	DefaultScrollbackLines = 10000
	// DefaultBufferLines caps frames queued for a viewer that is not
	// keeping up.
	DefaultBufferLines = 5000
)
