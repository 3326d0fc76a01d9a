// Package config provides configuration loading and validation for reteval.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/reteval/internal/accumulator"
	"github.com/hyperjump/reteval/internal/cli"
	"github.com/hyperjump/reteval/internal/querystream"
	"github.com/hyperjump/reteval/internal/ranking"
	"github.com/hyperjump/reteval/internal/search"
)

var (
	// ErrMissingOption is returned when a required option has no value.
	ErrMissingOption = errors.New("missing required option")
	// ErrInvalidOption is returned when an option has a value outside its domain.
	ErrInvalidOption = errors.New("invalid option")
)

// Config holds all configuration for an evaluation run and the HTTP service.
type Config struct {
	Debug bool `yaml:"debug"`

	Index      string `yaml:"index"`
	BleveField string `yaml:"bleveField"`

	Query         string `yaml:"query"`
	QueryFormat   string `yaml:"queryFormat"`
	QueryAnalyzer string `yaml:"queryAnalyzer"`

	Result       string `yaml:"result"`
	ResultFormat string `yaml:"resultFormat"`
	RunTag       string `yaml:"runTag"`

	WeightScheme string `yaml:"weightScheme"`
	ResultCount  int    `yaml:"resultCount"`
	TruncateIDF  bool   `yaml:"truncateIDF"`
	Accumulator  string `yaml:"accumulator"`
	Workers      int    `yaml:"workers"`

	// SuggestDistance is the largest edit distance of a did-you-mean suggestion.
	// Negative disables suggestions.
	SuggestDistance int `yaml:"suggestDistance"`

	Server ServerConfig `yaml:"server"`
	Watch  WatchConfig  `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	DefaultLimit int    `yaml:"defaultLimit"`
	MaxLimit     int    `yaml:"maxLimit"`
	PoolSize     int    `yaml:"poolSize"`
	CacheSize    int    `yaml:"cacheSize"`
}

// WatchConfig holds settings for re-running on file changes.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed. Load does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Index = expandPath(cfg.Index, configDir)
	cfg.Query = expandPath(cfg.Query, configDir)
	cfg.Result = expandPath(cfg.Result, configDir)

	return &cfg, nil
}

// Default returns a config with every default applied and no paths set.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks every option. requireQuery is set for batch runs, which need a query file.
func (c *Config) Validate(requireQuery bool) error {
	if c.Index == "" {
		return fmt.Errorf("%w: index", ErrMissingOption)
	}
	if requireQuery && c.Query == "" {
		return fmt.Errorf("%w: query", ErrMissingOption)
	}
	if requireQuery && c.Result == "" {
		return fmt.Errorf("%w: result", ErrMissingOption)
	}
	if _, err := ranking.ParseScheme(c.WeightScheme); err != nil {
		return fmt.Errorf("%w: weightScheme: %w", ErrInvalidOption, err)
	}
	if c.ResultCount <= 0 {
		return fmt.Errorf("%w: resultCount must be positive, got %d", ErrInvalidOption, c.ResultCount)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidOption, c.Workers)
	}
	if _, err := cli.ParseResultFormat(c.ResultFormat); err != nil {
		return fmt.Errorf("%w: resultFormat: %w", ErrInvalidOption, err)
	}
	if _, err := querystream.ParseFormat(c.QueryFormat); err != nil {
		return fmt.Errorf("%w: queryFormat: %w", ErrInvalidOption, err)
	}
	if _, err := accumulator.ParseKind(c.Accumulator); err != nil {
		return fmt.Errorf("%w: accumulator: %w", ErrInvalidOption, err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalidOption, c.Server.Port)
	}
	if c.Server.DefaultLimit <= 0 || c.Server.MaxLimit < c.Server.DefaultLimit {
		return fmt.Errorf("%w: server limits default=%d max=%d", ErrInvalidOption, c.Server.DefaultLimit, c.Server.MaxLimit)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("%w: watch.debounce must not be negative", ErrInvalidOption)
	}
	return nil
}

// SearchOptions converts the scoring options into engine options.
func (c *Config) SearchOptions() (search.Options, error) {
	scheme, err := ranking.ParseScheme(c.WeightScheme)
	if err != nil {
		return search.Options{}, fmt.Errorf("%w: weightScheme: %w", ErrInvalidOption, err)
	}
	kind, err := accumulator.ParseKind(c.Accumulator)
	if err != nil {
		return search.Options{}, fmt.Errorf("%w: accumulator: %w", ErrInvalidOption, err)
	}
	return search.Options{
		Scheme:      scheme,
		ResultCount: c.ResultCount,
		TruncateIDF: c.TruncateIDF,
		Accumulator: kind,
	}, nil
}

// QueryOptions returns the query stream options.
func (c *Config) QueryOptions() querystream.Options {
	return querystream.Options{Format: querystream.Format(c.QueryFormat), Analyzer: c.QueryAnalyzer}
}

// Addr returns the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// expandPath resolves "./" and "../" paths against configDir and "~/" against the home directory.
// Absolute paths and other relative paths are returned unchanged.
func expandPath(path string, configDir string) string {
	switch {
	case path == "" || filepath.IsAbs(path):
		return path
	case path == "." || strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../"):
		return filepath.Join(configDir, path)
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
