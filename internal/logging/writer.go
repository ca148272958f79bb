package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB = 10
	defaultMaxFiles  = 5
)

// newFileWriter returns the size-rotated sink for JSON records at
// cfg.FilePath. Rotated files sit next to it as crawl-<timestamp>.log and at
// most cfg.MaxFiles of them are kept. Non-positive limits use the defaults.
func newFileWriter(cfg Config) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	maxSize, maxFiles := cfg.MaxSizeMB, cfg.MaxFiles
	if maxSize <= 0 {
		maxSize = defaultMaxSizeMB
	}
	if maxFiles <= 0 {
		maxFiles = defaultMaxFiles
	}

	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
	}, nil
}
