// internal/config/types.go
package config

import (
	"time"
)

// Config is the application configuration loaded from YAML
type Config struct {
	TheatersFile        string        `yaml:"theaters_file,omitempty" json:"theaters_file,omitempty"`
	Concurrency         int           `yaml:"concurrency" json:"concurrency" validate:"gte=1,lte=16"`
	SourceTimeout       time.Duration `yaml:"source_timeout" json:"source_timeout" validate:"gte=0"`
	KeepPreviousOnEmpty bool          `yaml:"keep_previous_on_empty" json:"keep_previous_on_empty"`

	LogLevel  string `yaml:"log_level,omitempty" json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `yaml:"log_format,omitempty" json:"log_format,omitempty" validate:"omitempty,oneof=console json"`
	LogFile   string `yaml:"log_file,omitempty" json:"log_file,omitempty"`

	Fetch      FetchConfig      `yaml:"fetch" json:"fetch"`
	Enrichment EnrichmentConfig `yaml:"enrichment" json:"enrichment"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Metrics    MetricsConfig    `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty" json:"server,omitempty"`
}

// FetchConfig selects and tunes the page fetcher
type FetchConfig struct {
	Mode           string        `yaml:"mode" json:"mode" validate:"oneof=http browser"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
	RetryAttempts  int           `yaml:"retry_attempts" json:"retry_attempts" validate:"gte=-1,lte=10"`
	RetryDelay     time.Duration `yaml:"retry_delay" json:"retry_delay"`
	RateLimit      float64       `yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`
	RateBurst      int           `yaml:"rate_burst" json:"rate_burst" validate:"gte=0"`
	UserAgents     []string      `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`
	Headless       bool          `yaml:"headless" json:"headless"`
	WaitDelay      time.Duration `yaml:"wait_delay,omitempty" json:"wait_delay,omitempty"`
	WaitForTimeout time.Duration `yaml:"wait_for_timeout,omitempty" json:"wait_for_timeout,omitempty"`
}

// EnrichmentConfig configures the optional metadata lookup service
type EnrichmentConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	BaseURL       string        `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"omitempty,url"`
	APIKey        string        `yaml:"api_key,omitempty" json:"-"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	RateLimit     float64       `yaml:"rate_limit" json:"rate_limit" validate:"gte=0"`
	SearchLimit   int           `yaml:"search_limit" json:"search_limit" validate:"gte=0,lte=50"`
	MinSimilarity float64       `yaml:"min_similarity" json:"min_similarity" validate:"gte=0,lte=1"`
	MaxFailures   int           `yaml:"max_failures" json:"max_failures" validate:"gte=0"`
	MaxMovies     int           `yaml:"max_movies" json:"max_movies" validate:"gte=0"`
	UseFallback   bool          `yaml:"use_fallback" json:"use_fallback"`
	// EnhanceDescriptions replaces listing descriptions with the looked-up plot
	EnhanceDescriptions bool `yaml:"enhance_descriptions" json:"enhance_descriptions"`
}

// OutputConfig locates the snapshot and lists extra export formats
type OutputConfig struct {
	Directory    string   `yaml:"directory" json:"directory" validate:"required"`
	SnapshotFile string   `yaml:"snapshot_file" json:"snapshot_file" validate:"required"`
	Formats      []string `yaml:"formats,omitempty" json:"formats,omitempty" validate:"dive,oneof=json yaml csv xlsx"`
}

// MetricsConfig controls Prometheus textfile export after each run
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" json:"textfile,omitempty"`
}

// ServerConfig configures the read-only HTTP API
type ServerConfig struct {
	Address   string  `yaml:"address,omitempty" json:"address,omitempty"`
	RateLimit float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst,omitempty" json:"rate_burst,omitempty" validate:"gte=0"`

	// SnapshotMaxAge degrades /health once the snapshot is older; zero disables
	SnapshotMaxAge time.Duration `yaml:"snapshot_max_age,omitempty" json:"snapshot_max_age,omitempty" validate:"gte=0"`
}

// Default configuration values
const (
	DefaultConcurrency     = 1
	DefaultSourceTimeout   = 45 * time.Second
	DefaultFetchTimeout    = 30 * time.Second
	DefaultFetchMode       = "http"
	DefaultOutputDirectory = "data"
	DefaultSnapshotFile    = "showtimes.json"
	DefaultServerAddress   = ":8080"
	DefaultServerRateLimit = 10.0
	DefaultServerRateBurst = 20

	DefaultEnrichmentTimeout = 3 * time.Second
	DefaultEnrichmentRate    = 10.0
	DefaultSearchLimit       = 5
	DefaultMinSimilarity     = 0.6
	DefaultMaxFailures       = 3
	DefaultMaxMovies         = 50
)
