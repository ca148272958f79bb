package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.fieldcrawl/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fieldcrawl", "logs")
	}
	return filepath.Join(home, ".fieldcrawl", "logs")
}

// DefaultLogPath returns the default crawl log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "crawl.log")
}

// FindLogFile returns explicit if it exists, otherwise the default log path
// if it exists.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found, run with --debug first.\nExpected at: %s", path)
}
