// Package config loads layered fieldcrawl configuration and turns it into a
// field selection policy.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
	"github.com/Aman-CERP/fieldcrawl/internal/logging"
	"github.com/Aman-CERP/fieldcrawl/internal/policy"
	"github.com/Aman-CERP/fieldcrawl/internal/store"
)

// ProjectFileNames are the project config names, in lookup order.
var ProjectFileNames = []string{".fieldcrawl.yaml", ".fieldcrawl.yml"}

// Config represents the complete fieldcrawl configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Fields  FieldsConfig  `yaml:"fields" json:"fields"`
	Crawl   CrawlConfig   `yaml:"crawl" json:"crawl"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// dir is the project directory relative paths resolve against.
	dir string
}

// IndexConfig selects where documents are committed.
type IndexConfig struct {
	// Backend is "bleve" (default) or "sqlite".
	Backend string `yaml:"backend" json:"backend"`
	// Path is the data directory holding the index. Relative paths resolve
	// against the project directory.
	Path string `yaml:"path" json:"path"`
	// FieldLanguageFallback enables language fallback while field values
	// are written to a document.
	FieldLanguageFallback bool `yaml:"field_language_fallback" json:"field_language_fallback"`
}

// FieldsConfig is the field selection policy. Keys are field names or
// field ids in any GUID form.
type FieldsConfig struct {
	IndexAllFields   bool     `yaml:"index_all_fields" json:"index_all_fields"`
	Included         []string `yaml:"included" json:"included"`
	Excluded         []string `yaml:"excluded" json:"excluded"`
	ExcludedTemplate []string `yaml:"excluded_template" json:"excluded_template"`
	ExcludedMedia    []string `yaml:"excluded_media" json:"excluded_media"`
}

// CrawlConfig tunes the crawl loop.
type CrawlConfig struct {
	// StopOnFieldError fails an item's document on the first field error
	// instead of logging and continuing.
	StopOnFieldError bool `yaml:"stop_on_field_error" json:"stop_on_field_error"`
	// Parallel processes the fields of one item concurrently.
	Parallel bool `yaml:"parallel" json:"parallel"`
	// MaxParallelism caps concurrent fields per item (0 = NumCPU).
	MaxParallelism int `yaml:"max_parallelism" json:"max_parallelism"`
	// ItemWorkers is the number of items built concurrently.
	ItemWorkers int `yaml:"item_workers" json:"item_workers"`
	// RevisionCacheSize bounds the cache of crawled item revisions.
	RevisionCacheSize int `yaml:"revision_cache_size" json:"revision_cache_size"`
	// WatchDebounce coalesces file events in watch mode (e.g. "500ms").
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Backend: string(store.BackendBleve),
			Path:    ".fieldcrawl",
		},
		Fields: FieldsConfig{
			IndexAllFields: true,
		},
		Crawl: CrawlConfig{
			MaxParallelism:    0,
			ItemWorkers:       runtime.NumCPU(),
			RevisionCacheSize: 10000,
			WatchDebounce:     "500ms",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/fieldcrawl/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/fieldcrawl/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fieldcrawl", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "fieldcrawl", "config.yaml")
	}
	return filepath.Join(home, ".config", "fieldcrawl", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the project in dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config ($XDG_CONFIG_HOME/fieldcrawl/config.yaml)
//  3. Project config (.fieldcrawl.yaml in dir)
//  4. Environment variables (FIELDCRAWL_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()
	cfg.dir = dir

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if path := FindProjectConfig(dir); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindProjectConfig returns the project config path in dir, or "".
func FindProjectConfig(dir string) string {
	for _, name := range ProjectFileNames {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// loadYAML decodes path on top of c. Keys absent from the file keep their
// current value; unknown keys are rejected.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return crawlerrors.ConfigError("failed to read config file", err).WithDetail("path", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return crawlerrors.New(crawlerrors.ErrCodeConfigInvalid, "failed to parse config file", err).
			WithDetail("path", path).
			WithSuggestion("Run 'fieldcrawl config show' to see the expected layout")
	}
	return nil
}

// applyEnvOverrides applies FIELDCRAWL_* environment variable overrides.
// Malformed values are configuration errors.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("FIELDCRAWL_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("FIELDCRAWL_INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv("FIELDCRAWL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FIELDCRAWL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("FIELDCRAWL_WATCH_DEBOUNCE"); v != "" {
		c.Crawl.WatchDebounce = v
	}

	bools := []struct {
		name string
		dst  *bool
	}{
		{"FIELDCRAWL_INDEX_ALL_FIELDS", &c.Fields.IndexAllFields},
		{"FIELDCRAWL_STOP_ON_FIELD_ERROR", &c.Crawl.StopOnFieldError},
		{"FIELDCRAWL_PARALLEL", &c.Crawl.Parallel},
		{"FIELDCRAWL_FIELD_LANGUAGE_FALLBACK", &c.Index.FieldLanguageFallback},
	}
	for _, b := range bools {
		v := os.Getenv(b.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return envError(b.name, v, err)
		}
		*b.dst = parsed
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"FIELDCRAWL_MAX_PARALLELISM", &c.Crawl.MaxParallelism},
		{"FIELDCRAWL_ITEM_WORKERS", &c.Crawl.ItemWorkers},
	}
	for _, n := range ints {
		v := os.Getenv(n.name)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return envError(n.name, v, err)
		}
		*n.dst = parsed
	}

	lists := []struct {
		name string
		dst  *[]string
	}{
		{"FIELDCRAWL_INCLUDED_FIELDS", &c.Fields.Included},
		{"FIELDCRAWL_EXCLUDED_FIELDS", &c.Fields.Excluded},
	}
	for _, l := range lists {
		if v := os.Getenv(l.name); v != "" {
			*l.dst = splitList(v)
		}
	}
	return nil
}

func envError(name, value string, cause error) error {
	return crawlerrors.New(crawlerrors.ErrCodeConfigInvalid,
		fmt.Sprintf("invalid value %q for %s", value, name), cause)
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch store.Backend(strings.ToLower(c.Index.Backend)) {
	case store.BackendBleve, store.BackendSQLite:
	default:
		return invalid("index.backend must be 'bleve' or 'sqlite', got %q", c.Index.Backend)
	}
	if strings.TrimSpace(c.Index.Path) == "" {
		return invalid("index.path must not be empty")
	}

	if c.Crawl.MaxParallelism < 0 {
		return invalid("crawl.max_parallelism must be non-negative, got %d", c.Crawl.MaxParallelism)
	}
	if c.Crawl.ItemWorkers < 1 {
		return invalid("crawl.item_workers must be at least 1, got %d", c.Crawl.ItemWorkers)
	}
	if c.Crawl.RevisionCacheSize < 0 {
		return invalid("crawl.revision_cache_size must be non-negative, got %d", c.Crawl.RevisionCacheSize)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return invalid("crawl.watch_debounce: %v", err)
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return invalid("logging.level must be 'debug', 'info', 'warn', 'error' or 'fatal', got %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxFiles < 0 {
		return invalid("logging.max_size_mb and logging.max_files must be non-negative")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return crawlerrors.New(crawlerrors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...), nil)
}

// Backend returns the configured index backend.
func (c *Config) Backend() store.Backend {
	return store.Backend(strings.ToLower(c.Index.Backend))
}

// DataDir returns the index data directory, resolved against the project
// directory when relative.
func (c *Config) DataDir() string {
	if filepath.IsAbs(c.Index.Path) || c.dir == "" {
		return c.Index.Path
	}
	return filepath.Join(c.dir, c.Index.Path)
}

// IndexPath returns the on-disk index location for the configured backend.
func (c *Config) IndexPath() string {
	return store.IndexPath(c.DataDir(), c.Backend())
}

// WatchDebounce parses crawl.watch_debounce. Empty means zero.
func (c *Config) WatchDebounce() (time.Duration, error) {
	if strings.TrimSpace(c.Crawl.WatchDebounce) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Crawl.WatchDebounce)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must be non-negative, got %s", d)
	}
	return d, nil
}

// Policy builds the field selection policy from the fields and crawl
// sections.
func (c *Config) Policy() *policy.Policy {
	return &policy.Policy{
		IndexAllFields:   c.Fields.IndexAllFields,
		Included:         policy.NewKeySet(c.Fields.Included...),
		Excluded:         policy.NewKeySet(c.Fields.Excluded...),
		ExcludedTemplate: policy.NewKeySet(c.Fields.ExcludedTemplate...),
		ExcludedMedia:    policy.NewKeySet(c.Fields.ExcludedMedia...),
		StopOnFieldError: c.Crawl.StopOnFieldError,
		Parallel:         c.Crawl.Parallel,
		ParallelOptions:  policy.ParallelOptions{MaxDegree: c.Crawl.MaxParallelism},
	}
}

// LoggingSetup returns the logging setup for this configuration. debug
// forces debug level and a log file.
func (c *Config) LoggingSetup(debug bool) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.FilePath = c.Logging.File
	if c.Logging.MaxSizeMB > 0 {
		lc.MaxSizeMB = c.Logging.MaxSizeMB
	}
	if c.Logging.MaxFiles > 0 {
		lc.MaxFiles = c.Logging.MaxFiles
	}
	if debug {
		lc.Level = "debug"
		if lc.FilePath == "" {
			lc.FilePath = logging.DefaultLogPath()
		}
	}
	return lc
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return crawlerrors.IOError("failed to write config file", err).WithDetail("path", path)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
