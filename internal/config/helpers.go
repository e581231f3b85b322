package config

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the threatviz home directory.
const HomeEnv = "THREATVIZ_HOME"

// DefaultHomeDir returns $THREATVIZ_HOME, or ~/.threatviz. It falls back to
// a temporary directory if the user home cannot be determined.
func DefaultHomeDir() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".threatviz")
	}
	return filepath.Join(userHome, ".threatviz")
}

// DefaultConfigPath returns the default config file path for a given home directory
func DefaultConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}
