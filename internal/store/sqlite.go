package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteIndex stores one FTS5 row per document field. It allows concurrent
// multi-process readers via WAL mode.
type SQLiteIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// validateSQLiteIntegrity checks an existing database before opening.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='fts_fields'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'fts_fields' missing")
	}
	return nil
}

// NewSQLiteIndex opens or creates an SQLite index at path. If path is empty,
// creates an in-memory index.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("sqlite_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please recrawl"))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; an in-memory database lives only as long as its one
	// connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	if path != "" {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteIndex{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		doc_id  TEXT PRIMARY KEY,
		item_id TEXT NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS fts_fields USING fts5(
		doc_id UNINDEXED,
		field_name UNINDEXED,
		field_id UNINDEXED,
		value,
		tokenize='unicode61'
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Commit implements Index. Each document replaces its earlier rows.
func (s *SQLiteIndex) Commit(ctx context.Context, docs ...*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, so delete first
	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_fields WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_fields(doc_id, field_name, field_id, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare FTS statement: %w", err)
	}
	defer insertStmt.Close()

	docStmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO documents(doc_id, item_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare document statement: %w", err)
	}
	defer docStmt.Close()

	for _, doc := range docs {
		if _, err := deleteStmt.ExecContext(ctx, doc.ID); err != nil {
			return fmt.Errorf("failed to delete existing document %s: %w", doc.ID, err)
		}
		for _, fv := range doc.Fields() {
			if _, err := insertStmt.ExecContext(ctx, doc.ID, IndexFieldName(fv.Name), fv.FieldID, fv.Text); err != nil {
				return fmt.Errorf("failed to index field %s of document %s: %w", fv.Name, doc.ID, err)
			}
		}
		if _, err := docStmt.ExecContext(ctx, doc.ID, doc.ItemID); err != nil {
			return fmt.Errorf("failed to track document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// Delete implements Index.
func (s *SQLiteIndex) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM fts_fields WHERE doc_id IN (%s)", inClause), args...); err != nil {
		return fmt.Errorf("failed to delete from FTS: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM documents WHERE doc_id IN (%s)", inClause), args...); err != nil {
		return fmt.Errorf("failed to delete from documents: %w", err)
	}

	return tx.Commit()
}

// Search implements Index. Every query term must match within one field;
// a document scores as its best matching field.
func (s *SQLiteIndex) Search(ctx context.Context, queryStr string, opts SearchOptions) ([]*Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("index is closed")
	}

	match := ftsQuery(queryStr)
	if match == "" {
		return []*Hit{}, nil
	}

	q := `SELECT doc_id, field_name, value, bm25(fts_fields) AS score
		FROM fts_fields WHERE fts_fields MATCH ?`
	args := []any{match}
	if opts.Field != "" {
		q += ` AND field_name = ?`
		args = append(args, IndexFieldName(opts.Field))
	}
	q += ` ORDER BY score`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		// FTS5 returns error for invalid match queries, treat as no results
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return []*Hit{}, nil
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	byDoc := make(map[string]*Hit)
	for rows.Next() {
		var docID, field, value string
		var score float64
		if err := rows.Scan(&docID, &field, &value, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		// bm25() is negative, lower is better
		h, ok := byDoc[docID]
		if !ok {
			h = &Hit{DocID: docID, Score: -score, Fields: map[string]any{}}
			byDoc[docID] = h
		} else if -score > h.Score {
			h.Score = -score
		}
		h.Fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hits := make([]*Hit, 0, len(byDoc))
	for _, h := range byDoc {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if limit := limitOrDefault(opts.Limit); len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Count implements Index.
func (s *SQLiteIndex) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("index is closed")
	}

	var n uint64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Close implements Index.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return s.db.Close()
}

// ftsQuery turns free text into an FTS5 query of quoted terms joined by
// implicit AND. Returns "" when no terms remain.
func ftsQuery(s string) string {
	terms := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " ")
}

var _ Index = (*SQLiteIndex)(nil)
