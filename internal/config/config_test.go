package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://myrient.erista.me/files/", cfg.BaseURL)
	assert.Equal(t, "No-Intro", cfg.Collection)
	assert.Equal(t, 5.0, cfg.RequestsPerSecond)
	assert.Equal(t, 3, cfg.RetryMax)
	assert.True(t, cfg.Extract)
	assert.Equal(t, "USA", cfg.Filter.Region)
	assert.False(t, cfg.Filter.LatestRevision)
	assert.Equal(t, path, cfg.Path())

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config should be written")
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
collection: Redump
unknown_key: ignored
filter:
  region_limit: true
  region: Europe
  smart_filters: true
  exclude_patterns:
    - Rental
    - Alt
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("MYRIENT_FILTER_LATEST_REVISION", "true")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("region", "USA", "")
	flags.Bool("smart-filters", false, "")
	flags.StringSlice("exclude", nil, "")
	require.NoError(t, flags.Parse([]string{"--region", "Japan"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	p := cfg.Policy()
	assert.True(t, p.RegionLimit)
	assert.Equal(t, "Japan", p.Region, "explicit flag wins")
	assert.True(t, p.SmartFilters, "unset flag keeps file value")
	assert.Equal(t, []string{"Rental", "Alt"}, p.ExcludePatterns)
	assert.True(t, p.LatestRevision, "env overrides file")
	assert.Equal(t, "Redump", cfg.Collection)
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("filter: [unclosed"), 0o644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestConfigDir_Env(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MYRIENT_CONFIG_DIR", dir)
	assert.Equal(t, dir, ConfigDir())
	assert.Equal(t, filepath.Join(dir, "index.db"), DBPath())
	assert.Equal(t, filepath.Join(dir, "config.yaml"), ConfigPath())
}
