// internal/config/config.go
package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFromFile loads configuration from a YAML file. A .env file next to
// it, if present, is loaded into the environment first.
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("%w: configuration filename cannot be empty", errs.ErrConfig)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read configuration file: %v", errs.ErrConfig, err)
	}

	if err := LoadEnv(filepath.Join(filepath.Dir(filename), ".env")); err != nil {
		return nil, err
	}

	cfg, err := LoadFromBytes(data)
	if err != nil {
		return nil, err
	}

	if cfg.TheatersFile != "" && !filepath.IsAbs(cfg.TheatersFile) {
		cfg.TheatersFile = filepath.Join(filepath.Dir(filename), cfg.TheatersFile)
	}
	return cfg, nil
}

// LoadFromBytes parses YAML, expands ${VAR} references, applies defaults
// and validates the result.
func LoadFromBytes(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: configuration data cannot be empty", errs.ErrConfig)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML configuration: %v", errs.ErrConfig, err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: reader cannot be nil", errs.ErrConfig)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read from reader: %v", errs.ErrConfig, err)
	}
	return LoadFromBytes(data)
}

// LoadEnv loads the given dotenv files, skipping missing ones. Variables
// already set in the process environment win.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%w: failed to load %s: %v", errs.ErrConfig, p, err)
		}
	}
	return nil
}

// SaveToWriter writes cfg as YAML
func SaveToWriter(cfg *Config, writer io.Writer) error {
	if cfg == nil || writer == nil {
		return fmt.Errorf("%w: configuration and writer are required", errs.ErrConfig)
	}

	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}
	return enc.Close()
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{
		Fetch: FetchConfig{Headless: true},
		Enrichment: EnrichmentConfig{
			UseFallback:         true,
			EnhanceDescriptions: true,
		},
	}
	applyDefaults(cfg)
	return cfg
}

// GenerateTemplate returns a starter configuration for the template command
func GenerateTemplate() *Config {
	cfg := Default()
	cfg.TheatersFile = "theaters.yaml"
	cfg.Output.Formats = []string{"json", "csv"}
	cfg.Enrichment.BaseURL = "${SHOWTIMES_ENRICHMENT_URL}"
	cfg.Metrics.Textfile = "data/showtimes.prom"
	return cfg
}

// Validate checks struct constraints and returns a *ValidationErrors
// wrapping errs.ErrConfig on failure.
func (c *Config) Validate() error {
	var out ValidationErrors
	if err := validate.Struct(c); err != nil {
		fieldErrs, ok := toValidationErrors(err)
		if !ok {
			return fmt.Errorf("%w: %v", errs.ErrConfig, err)
		}
		out = fieldErrs
	}

	if c.Enrichment.Enabled && c.Enrichment.BaseURL == "" {
		out = append(out, ValidationError{
			Field:   "Config.Enrichment.BaseURL",
			Message: "is required when enrichment is enabled",
		})
	}

	if len(out) > 0 {
		return out
	}
	return nil
}

// ValidationError describes one invalid field
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationErrors is every field failure found in one pass
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Unwrap ties validation failures to the config sentinel
func (v ValidationErrors) Unwrap() error { return errs.ErrConfig }

func toValidationErrors(err error) (ValidationErrors, bool) {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return nil, false
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Namespace(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: describe(fe),
		})
	}
	return out, true
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_without":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be an absolute URL"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.SourceTimeout == 0 {
		cfg.SourceTimeout = DefaultSourceTimeout
	}

	if cfg.Fetch.Mode == "" {
		cfg.Fetch.Mode = DefaultFetchMode
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = DefaultFetchTimeout
	}

	if cfg.Enrichment.Timeout == 0 {
		cfg.Enrichment.Timeout = DefaultEnrichmentTimeout
	}
	if cfg.Enrichment.RateLimit == 0 {
		cfg.Enrichment.RateLimit = DefaultEnrichmentRate
	}
	if cfg.Enrichment.SearchLimit == 0 {
		cfg.Enrichment.SearchLimit = DefaultSearchLimit
	}
	if cfg.Enrichment.MinSimilarity == 0 {
		cfg.Enrichment.MinSimilarity = DefaultMinSimilarity
	}
	if cfg.Enrichment.MaxFailures == 0 {
		cfg.Enrichment.MaxFailures = DefaultMaxFailures
	}
	if cfg.Enrichment.MaxMovies == 0 {
		cfg.Enrichment.MaxMovies = DefaultMaxMovies
	}

	if cfg.Output.Directory == "" {
		cfg.Output.Directory = DefaultOutputDirectory
	}
	if cfg.Output.SnapshotFile == "" {
		cfg.Output.SnapshotFile = DefaultSnapshotFile
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultServerAddress
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = DefaultServerRateLimit
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = DefaultServerRateBurst
	}
}
