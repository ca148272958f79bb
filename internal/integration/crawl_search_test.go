// Package integration holds end-to-end tests across item sources, the
// document builder, index backends and the file watcher.
package integration

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fieldcrawl/internal/builder"
	"github.com/Aman-CERP/fieldcrawl/internal/config"
	"github.com/Aman-CERP/fieldcrawl/internal/crawl"
	"github.com/Aman-CERP/fieldcrawl/internal/diag"
	"github.com/Aman-CERP/fieldcrawl/internal/source"
	"github.com/Aman-CERP/fieldcrawl/internal/store"
	"github.com/Aman-CERP/fieldcrawl/internal/watcher"
)

const catalog = `
items:
  - id: 0b5e7c1a-8a44-4c7d-9c6f-2f4f3c2a1b10
    revision: "1"
    fields:
      - id: "{11111111-1111-1111-1111-111111111111}"
        name: Title
        type: text
        value: Red widget
      - id: "{22222222-2222-2222-2222-222222222222}"
        name: Internal Notes
        type: text
        value: widget supplier margin
      - id: "{33333333-3333-3333-3333-333333333333}"
        name: Subtitle
        type: text
        fallback: Fallback widget text
  - id: 9a0e1c55-0000-4000-8000-000000000002
    revision: "1"
    template: true
    fields:
      - id: "{11111111-1111-1111-1111-111111111111}"
        name: Title
        type: text
        value: Widget template
`

const (
	widgetID   = "{0B5E7C1A-8A44-4C7D-9C6F-2F4F3C2A1B10}"
	templateID = "{9A0E1C55-0000-4000-8000-000000000002}"
)

func newCrawler(t *testing.T, idx store.Index, cfg *config.Config) *crawl.Crawler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	c, err := crawl.New(crawl.Options{
		Engine: builder.NewEngine(builder.Options{
			Sink:                  diag.NewSlogSink(logger),
			FieldLanguageFallback: cfg.Index.FieldLanguageFallback,
		}),
		Index:   idx,
		Policy:  cfg.Policy(),
		Workers: 2,
		Cache:   crawl.NewRevisionCache(cfg.Crawl.RevisionCacheSize),
		Logger:  logger,
	})
	require.NoError(t, err)
	return c
}

func projectConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	if yaml != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".fieldcrawl.yaml"), []byte(yaml), 0o644))
	}
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	return cfg
}

func TestCrawlThenSearch_PolicyFromConfig(t *testing.T) {
	for _, backend := range []store.Backend{store.BackendBleve, store.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			// Given: a config excluding a field and all template items' titles
			cfg := projectConfig(t, `
index:
  field_language_fallback: true
fields:
  excluded: ["Internal Notes"]
  excluded_template: ["{11111111-1111-1111-1111-111111111111}"]
`)
			idx, err := store.NewIndex(backend, "")
			require.NoError(t, err)
			defer func() { _ = idx.Close() }()

			items, err := source.Parse([]byte(catalog))
			require.NoError(t, err)

			// When: crawling
			sum, err := newCrawler(t, idx, cfg).Run(context.Background(), crawl.Items(items))
			require.NoError(t, err)
			require.True(t, sum.OK())
			assert.Equal(t, 2, sum.Crawled)

			// Then: the excluded field is not searchable
			hits, err := idx.Search(context.Background(), "supplier", store.SearchOptions{})
			require.NoError(t, err)
			assert.Empty(t, hits)

			// And: the fallback value was indexed
			hits, err = idx.Search(context.Background(), "fallback", store.SearchOptions{Field: "Subtitle"})
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, widgetID, hits[0].DocID)

			// And: the template item's title was excluded
			hits, err = idx.Search(context.Background(), "widget", store.SearchOptions{Field: "Title"})
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, widgetID, hits[0].DocID)

			n, err := idx.Count()
			require.NoError(t, err)
			assert.Equal(t, uint64(2), n)
		})
	}
}

func TestCrawlThenSearch_IncludeList(t *testing.T) {
	// Given: only Title is included
	cfg := projectConfig(t, `
fields:
  index_all_fields: false
  included: [Title]
`)
	idx, err := store.NewIndex(store.BackendSQLite, "")
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()

	items, err := source.Parse([]byte(catalog))
	require.NoError(t, err)

	// When: crawling
	sum, err := newCrawler(t, idx, cfg).Run(context.Background(), crawl.Items(items))
	require.NoError(t, err)

	// Then: other fields were skipped and are not searchable
	assert.Greater(t, sum.FieldsSkipped, 0)
	hits, err := idx.Search(context.Background(), "supplier", store.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(context.Background(), "widget", store.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestWatch_RecrawlsChangedFile(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a crawled item file and a polling watcher on its directory
	cfg := projectConfig(t, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o644))

	idx, err := store.NewIndex(store.BackendBleve, "")
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	crawler := newCrawler(t, idx, cfg)

	items, err := source.LoadPaths(dir)
	require.NoError(t, err)
	_, err = crawler.Run(context.Background(), crawl.Items(items))
	require.NoError(t, err)

	w, err := watcher.New(watcher.Options{
		DebounceWindow: 50 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
		ForcePolling:   true,
		Filter:         source.IsItemFile,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() { _ = w.Start(ctx, dir) }()
	defer func() { _ = w.Stop() }()
	time.Sleep(150 * time.Millisecond)

	// When: the widget title changes with a new revision
	updated := `
items:
  - id: 0b5e7c1a-8a44-4c7d-9c6f-2f4f3c2a1b10
    revision: "2"
    fields:
      - id: "{11111111-1111-1111-1111-111111111111}"
        name: Title
        type: text
        value: Green gizmo
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	// Modification times may share a second with the first write.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	var batch []watcher.FileEvent
	select {
	case batch = <-w.Events():
	case <-ctx.Done():
		t.Fatal("timed out waiting for file events")
	}
	require.NotEmpty(t, batch)
	assert.Equal(t, path, batch[0].Path)

	// Then: recrawling the file replaces the document
	changed, err := source.LoadFile(batch[0].Path)
	require.NoError(t, err)
	sum, err := crawler.Run(ctx, crawl.Items(changed))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Crawled)

	hits, err := idx.Search(ctx, "gizmo", store.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, widgetID, hits[0].DocID)

	hits, err = idx.Search(ctx, "red", store.SearchOptions{Field: "Title"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}
