package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JohnDeved/myrient-filter/internal/filter"
)

func homeDirOrFallback() string {
	home, err := homedir.Dir()
	if err != nil || home == "" {
		return "."
	}
	return home
}

// Filter holds the selection policy settings.
type Filter struct {
	RegionLimit     bool     `mapstructure:"region_limit"`
	Region          string   `mapstructure:"region"`
	SmartFilters    bool     `mapstructure:"smart_filters"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`
	LatestRevision  bool     `mapstructure:"latest_revision"`
}

// Config holds all user-configurable settings.
type Config struct {
	// BaseURL is the root URL of the file index.
	BaseURL string `mapstructure:"base_url"`
	// Collection is the sub-path systems are listed under (e.g. "No-Intro").
	Collection string `mapstructure:"collection"`
	// DownloadDir is where downloaded files are saved.
	DownloadDir string `mapstructure:"download_dir"`
	// RequestsPerSecond rate-limits HTTP requests to the index.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	// RetryMax is how often a failed listing request is retried.
	RetryMax int `mapstructure:"retry_max"`
	// IndexStaleDays controls how many days before a system is re-crawled.
	IndexStaleDays int `mapstructure:"index_stale_days"`
	// Extract unpacks downloaded zip archives.
	Extract  bool   `mapstructure:"extract"`
	LogLevel string `mapstructure:"log_level"`
	Filter   Filter `mapstructure:"filter"`

	path string
}

// flagKeys maps command-line flags onto config keys. Flags only override the
// config when set explicitly.
var flagKeys = map[string]string{
	"base-url":      "base_url",
	"collection":    "collection",
	"output":        "download_dir",
	"extract":       "extract",
	"region-limit":  "filter.region_limit",
	"region":        "filter.region",
	"smart-filters": "filter.smart_filters",
	"exclude":       "filter.exclude_patterns",
	"latest":        "filter.latest_revision",
}

func setDefaults(v *viper.Viper) {
	home := homeDirOrFallback()
	v.SetDefault("base_url", "https://myrient.erista.me/files/")
	v.SetDefault("collection", "No-Intro")
	v.SetDefault("download_dir", filepath.Join(home, "Downloads", "myrient"))
	v.SetDefault("requests_per_second", 5.0)
	v.SetDefault("retry_max", 3)
	v.SetDefault("index_stale_days", 7)
	v.SetDefault("extract", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("filter.region_limit", false)
	v.SetDefault("filter.region", "USA")
	v.SetDefault("filter.smart_filters", false)
	v.SetDefault("filter.exclude_patterns", []string{})
	v.SetDefault("filter.latest_revision", false)
}

// ConfigDir returns the directory where config and data files are stored.
func ConfigDir() string {
	if dir := os.Getenv("MYRIENT_CONFIG_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(homeDirOrFallback(), ".config", "myrient-filter")
}

// DBPath returns the path to the SQLite listing index.
func DBPath() string {
	return filepath.Join(ConfigDir(), "index.db")
}

// ConfigPath returns the default path of the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Load reads the config file at path (ConfigPath when empty), writing the
// defaults there if it does not exist. Environment variables prefixed with
// MYRIENT_ and any explicitly set flags in flags override the file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("MYRIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}
		if err := v.SafeWriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.path = path
	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Policy returns the selection policy described by the config.
func (c *Config) Policy() filter.Policy {
	return filter.Policy{
		RegionLimit:     c.Filter.RegionLimit,
		Region:          c.Filter.Region,
		SmartFilters:    c.Filter.SmartFilters,
		ExcludePatterns: append([]string(nil), c.Filter.ExcludePatterns...),
		LatestRevision:  c.Filter.LatestRevision,
	}
}
