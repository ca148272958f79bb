package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fieldcrawl/internal/crawl"
	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
	"github.com/Aman-CERP/fieldcrawl/internal/ui"
	"github.com/Aman-CERP/fieldcrawl/internal/watcher"
)

func TestCrawlCmd_CrawlsProjectDirectory(t *testing.T) {
	// Given: a project with one item file
	dir := newProject(t, map[string]string{"items/catalog.yaml": itemsYAML})

	// When: crawling without paths
	out, _, err := runCLI(t, dir, "crawl")

	// Then: both items are committed
	require.NoError(t, err)
	assert.Contains(t, out, "Crawl complete")
	assert.Contains(t, out, "Crawled:        2")
	assert.DirExists(t, filepath.Join(dir, ".fieldcrawl", "fields.bleve"))
}

func TestCrawlCmd_JSONSummary(t *testing.T) {
	dir := newProject(t, map[string]string{"catalog.yaml": itemsYAML})

	out, _, err := runCLI(t, dir, "crawl", "--format", "json", filepath.Join(dir, "catalog.yaml"))
	require.NoError(t, err)

	var sum map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, float64(2), sum["crawled"])
	assert.Equal(t, float64(3), sum["fields_added"])
}

func TestCrawlCmd_FieldErrorLoggedByDefault(t *testing.T) {
	// Given: an item whose number field does not parse
	dir := newProject(t, map[string]string{"bad.yaml": badItemYAML})

	// When: crawling with the default policy
	out, stderr, err := runCLI(t, dir, "crawl")

	// Then: the error is logged at FATAL and the item is still committed
	require.NoError(t, err)
	assert.Contains(t, out, "Crawled:        1")
	assert.Contains(t, out, "Field errors:")
	assert.Contains(t, stderr, "level=FATAL")
}

func TestCrawlCmd_StopOnErrorFailsItem(t *testing.T) {
	// Given: a good file and a bad file
	dir := newProject(t, map[string]string{"catalog.yaml": itemsYAML, "bad.yaml": badItemYAML})

	// When: crawling with --stop-on-error
	out, _, err := runCLI(t, dir, "crawl", "--stop-on-error")

	// Then: the command fails and the bad item is listed
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 item(s) failed")
	assert.Contains(t, out, "Failures")
	assert.Contains(t, out, badID)
	assert.Contains(t, out, crawlerrors.ErrCodeFieldAdd)
}

func TestCrawlCmd_ParallelAggregatesFieldErrors(t *testing.T) {
	dir := newProject(t, map[string]string{"bad.yaml": badItemYAML})

	out, _, err := runCLI(t, dir, "crawl", "--parallel", "--stop-on-error")

	require.Error(t, err)
	assert.Contains(t, out, crawlerrors.ErrCodeFieldAggregate)
}

func TestCrawlCmd_RecrawlReplacesDocuments(t *testing.T) {
	// Given: an item file crawled once
	dir := newProject(t, map[string]string{"catalog.yaml": itemsYAML})
	_, _, err := runCLI(t, dir, "crawl")
	require.NoError(t, err)

	// When: crawling again from a new command
	_, _, err = runCLI(t, dir, "crawl")
	require.NoError(t, err)

	// Then: documents are replaced, not duplicated
	out, _, err := runCLI(t, dir, "status", "--json")
	require.NoError(t, err)
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, float64(2), status["documents"])
}

func TestCrawlCmd_MissingPath(t *testing.T) {
	dir := newProject(t, nil)

	_, _, err := runCLI(t, dir, "crawl", filepath.Join(dir, "nope"))

	require.Error(t, err)
	assert.Equal(t, crawlerrors.ErrCodeFileNotFound, crawlerrors.GetCode(err))
}

func TestCrawlCmd_RejectsUnknownBackendAndFormat(t *testing.T) {
	dir := newProject(t, map[string]string{"catalog.yaml": itemsYAML})

	_, _, err := runCLI(t, dir, "crawl", "--backend", "lucene")
	require.Error(t, err)
	assert.Equal(t, crawlerrors.ErrCodeConfigInvalid, crawlerrors.GetCode(err))

	_, _, err = runCLI(t, dir, "crawl", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, crawlerrors.ErrCodeInvalidInput, crawlerrors.GetCode(err))
}

func TestCrawlCmd_LockedIndex(t *testing.T) {
	// Given: another crawler holding the lock
	dir := newProject(t, map[string]string{"catalog.yaml": itemsYAML})
	lock := crawl.NewIndexLock(filepath.Join(dir, ".fieldcrawl"))
	require.NoError(t, lock.Acquire())
	defer func() { _ = lock.Release() }()

	// When: crawling
	_, _, err := runCLI(t, dir, "crawl")

	// Then: the crawl is refused
	require.Error(t, err)
	assert.Equal(t, crawlerrors.ErrCodeIndexLocked, crawlerrors.GetCode(err))
}

func TestApplyBatch_TracksFileChanges(t *testing.T) {
	// Given: a session over a sqlite index with two items crawled
	dir := newProject(t, map[string]string{"catalog.yaml": itemsYAML})
	t.Setenv("FIELDCRAWL_BACKEND", "sqlite")

	c := &cobra.Command{}
	c.SetErr(&bytes.Buffer{})
	p, err := openProject(c, &rootFlags{dir: dir})
	require.NoError(t, err)
	defer p.Close()

	s, err := openSession(p, ui.NewProgressPrinter(&bytes.Buffer{}))
	require.NoError(t, err)
	defer s.close()

	tracked, items, err := loadTracked([]string{dir})
	require.NoError(t, err)
	_, err = s.crawler.Run(context.Background(), items)
	require.NoError(t, err)

	catalog := filepath.Join(dir, "catalog.yaml")
	require.Equal(t, []string{widgetID, gadgetID}, tracked[catalog])

	// When: the gadget moves to a new file and the widget is bumped
	writeFile(t, catalog, `
items:
  - id: 0b5e7c1a-8a44-4c7d-9c6f-2f4f3c2a1b10
    revision: "2"
    fields:
      - id: "{11111111-1111-1111-1111-111111111111}"
        name: Title
        type: text
        value: Green widget
`)
	other := filepath.Join(dir, "more.yaml")
	writeFile(t, other, badItemYAML)

	sum, err := applyBatch(context.Background(), s, tracked, []watcher.FileEvent{
		{Path: catalog, Operation: watcher.OpModify},
		{Path: other, Operation: watcher.OpCreate},
	})

	// Then: the gadget is removed and the other items are crawled
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 2, sum.Crawled)
	assert.Equal(t, []string{badID}, tracked[other])
	assertCount(t, s, 2)

	// When: the new file is deleted
	require.NoError(t, os.Remove(other))
	sum, err = applyBatch(context.Background(), s, tracked, []watcher.FileEvent{
		{Path: other, Operation: watcher.OpDelete},
	})

	// Then: its item is removed and nothing is crawled
	require.NoError(t, err)
	assert.Nil(t, sum)
	assert.NotContains(t, tracked, other)
	assertCount(t, s, 1)
}

func TestApplyBatch_InvalidFileKeepsDocuments(t *testing.T) {
	// Given: a crawled file
	dir := newProject(t, map[string]string{"catalog.yaml": itemsYAML})
	t.Setenv("FIELDCRAWL_BACKEND", "sqlite")

	c := &cobra.Command{}
	c.SetErr(&bytes.Buffer{})
	p, err := openProject(c, &rootFlags{dir: dir})
	require.NoError(t, err)
	defer p.Close()
	s, err := openSession(p, ui.NewProgressPrinter(&bytes.Buffer{}))
	require.NoError(t, err)
	defer s.close()

	tracked, items, err := loadTracked([]string{dir})
	require.NoError(t, err)
	_, err = s.crawler.Run(context.Background(), items)
	require.NoError(t, err)

	// When: the file is rewritten with invalid YAML
	catalog := filepath.Join(dir, "catalog.yaml")
	writeFile(t, catalog, "items: [")
	sum, err := applyBatch(context.Background(), s, tracked, []watcher.FileEvent{
		{Path: catalog, Operation: watcher.OpModify},
	})

	// Then: nothing changes
	require.NoError(t, err)
	assert.Nil(t, sum)
	assert.Len(t, tracked[catalog], 2)
	assertCount(t, s, 2)
}

func TestMissing(t *testing.T) {
	assert.Equal(t, []string{"a", "c"}, missing([]string{"c", "b", "a"}, []string{"b"}))
	assert.Nil(t, missing([]string{"a"}, []string{"a", "b"}))
	assert.Nil(t, missing(nil, nil))
}

func assertCount(t *testing.T, s *session, want uint64) {
	t.Helper()
	n, err := s.index.Count()
	require.NoError(t, err)
	assert.Equal(t, want, n)
}
