package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/foresight/internal/config"
)

// DatabaseFile is the name of the SQLite catalog inside the .foresight directory.
const DatabaseFile = "foresight.db"

// LocalDir returns the .foresight directory for the given project root.
func LocalDir(projectRoot string) string {
	return filepath.Join(projectRoot, config.Dir)
}

// GlobalDir returns the path to the per-user .foresight directory.
// On Unix: ~/.foresight
// On Windows: %USERPROFILE%\.foresight
func GlobalDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, config.Dir), nil
}

// DatabasePath returns the catalog path for the given project root.
func DatabasePath(projectRoot string) string {
	return filepath.Join(LocalDir(projectRoot), DatabaseFile)
}

// EnsureDir creates the .foresight directory under projectRoot if needed and
// returns its path.
func EnsureDir(projectRoot string) (string, error) {
	dir := LocalDir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", config.Dir, err)
	}
	return dir, nil
}
