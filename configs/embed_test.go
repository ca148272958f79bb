package configs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fieldcrawl/configs"
	"github.com/Aman-CERP/fieldcrawl/internal/config"
)

func TestConfigTemplate_MatchesDefaults(t *testing.T) {
	// Given: the template written as a project config
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".fieldcrawl.yaml"), []byte(configs.ConfigTemplate), 0o644))

	// When: loading it
	cfg, err := config.Load(dir)
	require.NoError(t, err)

	// Then: it is equivalent to the defaults
	want := config.NewConfig()
	assert.Equal(t, want.Index, cfg.Index)
	assert.Equal(t, want.Crawl, cfg.Crawl)
	assert.Equal(t, want.Logging, cfg.Logging)
	assert.True(t, cfg.Fields.IndexAllFields)
	assert.Empty(t, cfg.Fields.Included)
	assert.Empty(t, cfg.Fields.Excluded)
}
