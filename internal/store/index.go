package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backend represents the index backend type.
type Backend string

const (
	// BackendBleve uses Bleve v2 (default). Single process per index.
	BackendBleve Backend = "bleve"

	// BackendSQLite uses SQLite FTS5 with one row per field.
	BackendSQLite Backend = "sqlite"
)

// Hit is one search result.
type Hit struct {
	DocID string
	Score float64
	// Fields holds stored field values when the backend returns them.
	Fields map[string]any
}

// SearchOptions narrows a search.
type SearchOptions struct {
	// Limit caps the number of hits (default 10).
	Limit int
	// Field restricts matching to one normalized field name.
	Field string
}

// Index is a search index that documents are committed to.
type Index interface {
	// Commit writes complete documents, replacing earlier versions.
	Commit(ctx context.Context, docs ...*Document) error

	// Delete removes documents by id.
	Delete(ctx context.Context, ids ...string) error

	// Search returns documents matching query, best first.
	Search(ctx context.Context, query string, opts SearchOptions) ([]*Hit, error)

	// Count returns the number of documents.
	Count() (uint64, error)

	// Close releases the index.
	Close() error
}

// NewIndex opens the index for backend at path. An empty path creates an
// in-memory index.
func NewIndex(backend Backend, path string) (Index, error) {
	switch backend {
	case BackendBleve, "":
		return NewBleveIndex(path)
	case BackendSQLite:
		return NewSQLiteIndex(path)
	default:
		return nil, fmt.Errorf("unknown index backend: %s (valid options: bleve, sqlite)", backend)
	}
}

// IndexPath returns the on-disk location of the index for backend under
// dataDir.
func IndexPath(dataDir string, backend Backend) string {
	base := filepath.Join(dataDir, "fields")
	switch backend {
	case BackendSQLite:
		return base + ".db"
	default:
		return base + ".bleve"
	}
}

// DetectBackend reports which backend an existing index under dataDir uses,
// or "" if none exists.
func DetectBackend(dataDir string) Backend {
	if fileExists(IndexPath(dataDir, BackendSQLite)) {
		return BackendSQLite
	}
	if dirExists(IndexPath(dataDir, BackendBleve)) {
		return BackendBleve
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}
