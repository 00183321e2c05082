package hjortron

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
	"pkt.systems/pslog"
)

// Bootstrap writes cfg to the default config path and returns that
// path. An existing file is an error, never an overwrite.
func Bootstrap(cfg Config, logger pslog.Logger) (string, error) {
	if logger == nil {
		logger = pslog.LoggerFromEnv()
	}

	path := DefaultConfigPath()
	switch _, err := os.Stat(path); {
	case err == nil:
		return "", fmt.Errorf("config already exists at %s", path)
	case !os.IsNotExist(err):
		return "", err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(DefaultConfigDir(), 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	logger.Info("bootstrapped config", "path", path)
	return path, nil
}
