package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Aman-CERP/fieldcrawl/internal/diag"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error, fatal).
	Level string
	// FilePath is the path to the JSON log file. Empty means no file logging.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep (default: 5).
	// Rotated files are named after FilePath with a timestamp suffix.
	MaxFiles int
	// WriteToStderr whether to also write text records to stderr.
	WriteToStderr bool
	// Stderr overrides os.Stderr for text records.
	Stderr io.Writer
}

// DefaultConfig returns stderr-only logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		MaxSizeMB:     defaultMaxSizeMB,
		MaxFiles:      defaultMaxFiles,
		WriteToStderr: true,
	}
}

// DebugConfig returns configuration for --debug: debug level with a log file.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	cfg.FilePath = DefaultLogPath()
	return cfg
}

// Setup builds a logger from cfg and returns it with a cleanup function that
// closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var (
		stderr io.Writer
		file   io.Writer
		writer *lumberjack.Logger
	)
	if cfg.WriteToStderr {
		stderr = cfg.Stderr
		if stderr == nil {
			stderr = os.Stderr
		}
	}
	if cfg.FilePath != "" {
		w, err := newFileWriter(cfg)
		if err != nil {
			return nil, nil, err
		}
		writer = w
		file = w
	}

	logger := SetupWithWriters(stderr, file, parseLevel(cfg.Level))

	cleanup := func() {
		if writer != nil {
			_ = writer.Close()
		}
	}
	return logger, cleanup, nil
}

// SetupWithWriters creates a logger writing text to stderr and JSON to file.
// Either writer may be nil. With both nil the logger discards everything.
func SetupWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: diag.ReplaceLevel,
	}

	var handlers []slog.Handler
	if stderr != nil {
		handlers = append(handlers, slog.NewTextHandler(stderr, opts))
	}
	if file != nil {
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// SetupDefault sets up logging with cfg and installs it as the default
// logger. Returns cleanup function.
func SetupDefault(cfg Config) (func(), error) {
	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "fatal":
		return diag.LevelFatal
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts string level to slog.Level.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error", "fatal":
		return true
	}
	return false
}
