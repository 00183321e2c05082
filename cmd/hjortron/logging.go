package main

import (
	"io"
	"os"
	"path/filepath"

	"pkt.systems/hjortron"
	"pkt.systems/pslog"
)

// openSessionLogger opens the file-backed logger. Stdout belongs to
// the terminal session, so logs go to a file under the config dir.
// An empty path means the default log path.
func openSessionLogger(path string) (pslog.Logger, io.Closer, error) {
	if path == "" {
		path = hjortron.DefaultLogPath()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return pslog.LoggerFromEnv(pslog.WithEnvWriter(file)), file, nil
}
