package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const itemsYAML = `
items:
  - id: 0b5e7c1a-8a44-4c7d-9c6f-2f4f3c2a1b10
    revision: "1"
    fields:
      - id: "{11111111-1111-1111-1111-111111111111}"
        name: Title
        type: text
        value: Red widget
      - id: "{22222222-2222-2222-2222-222222222222}"
        name: Price
        type: number
        value: "12.50"
  - id: 9a0e1c55-0000-4000-8000-000000000002
    revision: "1"
    fields:
      - id: "{11111111-1111-1111-1111-111111111111}"
        name: Title
        type: text
        value: Blue gadget
`

const badItemYAML = `
items:
  - id: 5d1f3b7e-0000-4000-8000-000000000003
    fields:
      - id: "{22222222-2222-2222-2222-222222222222}"
        name: Price
        type: number
        value: twelve
`

const (
	widgetID = "{0B5E7C1A-8A44-4C7D-9C6F-2F4F3C2A1B10}"
	gadgetID = "{9A0E1C55-0000-4000-8000-000000000002}"
	badID    = "{5D1F3B7E-0000-4000-8000-000000000003}"
)

// isolate points config lookups at a temporary home and clears env
// overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, name := range []string{
		"FIELDCRAWL_BACKEND", "FIELDCRAWL_INDEX_PATH", "FIELDCRAWL_LOG_LEVEL",
		"FIELDCRAWL_LOG_FILE", "FIELDCRAWL_WATCH_DEBOUNCE", "FIELDCRAWL_INDEX_ALL_FIELDS",
		"FIELDCRAWL_STOP_ON_FIELD_ERROR", "FIELDCRAWL_PARALLEL", "FIELDCRAWL_FIELD_LANGUAGE_FALLBACK",
		"FIELDCRAWL_MAX_PARALLELISM", "FIELDCRAWL_ITEM_WORKERS",
		"FIELDCRAWL_INCLUDED_FIELDS", "FIELDCRAWL_EXCLUDED_FIELDS",
	} {
		t.Setenv(name, "")
	}
}

// newProject creates an isolated project directory with the given files.
func newProject(t *testing.T, files map[string]string) string {
	t.Helper()
	isolate(t)
	dir := t.TempDir()
	for name, body := range files {
		writeFile(t, filepath.Join(dir, name), body)
	}
	return dir
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// runCLI executes the root command against dir and returns stdout and
// stderr.
func runCLI(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(append([]string{"--dir", dir}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
