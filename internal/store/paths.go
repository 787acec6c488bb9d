package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-user data directory name.
const DirName = ".macrosim"

// DBFile is the run database file name inside DirName.
const DBFile = "runs.db"

// GlobalPath returns the path to the per-user .macrosim directory.
// On Unix: ~/.macrosim
// On Windows: %USERPROFILE%\.macrosim
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// DefaultDBPath returns the run database path inside GlobalPath.
func DefaultDBPath() (string, error) {
	dir, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DBFile), nil
}

// EnsureDir creates the parent directory of dbPath if it doesn't exist.
func EnsureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
