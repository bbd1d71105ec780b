package configstore

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigDir returns ~/.config/clawgate, overridable by
// CLAWGATE_CONFIG_DIR for tests and alternate profiles.
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("CLAWGATE_CONFIG_DIR")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "clawgate"), nil
}
