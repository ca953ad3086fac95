// internal/config/registry.go
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
)

// IMDbShowtimesURL is the listing page template; %s is the cinema id
const IMDbShowtimesURL = "https://www.imdb.com/showtimes/cinema/US/%s/US/10006/"

//go:embed theaters.yaml
var defaultTheaters []byte

// Location is a theater's street address
type Location struct {
	StreetAddress string `yaml:"street_address" json:"street_address"`
	Neighborhood  string `yaml:"neighborhood,omitempty" json:"neighborhood,omitempty"`
	City          string `yaml:"city" json:"city"`
	State         string `yaml:"state" json:"state"`
	ZipCode       string `yaml:"zip_code,omitempty" json:"zip_code,omitempty"`
}

// FullAddress joins street, city, state and zip with commas
func (l Location) FullAddress() string {
	parts := []string{l.StreetAddress, l.City, l.State}
	if l.ZipCode != "" {
		parts = append(parts, l.ZipCode)
	}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// Theater is one registered source. Every theater shares the same
// extraction strategy; only this data differs.
type Theater struct {
	ID          string   `yaml:"theater_id" json:"theater_id" validate:"required"`
	Name        string   `yaml:"theater_name" json:"theater_name" validate:"required"`
	ExternalID  string   `yaml:"imdb_cinema_id,omitempty" json:"imdb_cinema_id,omitempty"`
	SourceURL   string   `yaml:"source_url,omitempty" json:"source_url,omitempty" validate:"omitempty,url"`
	PurchaseURL string   `yaml:"purchase_url" json:"purchase_url" validate:"required,url"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Location    Location `yaml:"location,omitempty" json:"location,omitempty"`
	Features    []string `yaml:"features,omitempty" json:"features,omitempty"`
	WaitFor     string   `yaml:"wait_for,omitempty" json:"wait_for,omitempty"`
	Enabled     *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether the theater takes part in runs; unset means yes
func (t Theater) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// URL returns the listing page to fetch
func (t Theater) URL() string {
	if t.SourceURL != "" {
		return t.SourceURL
	}
	return fmt.Sprintf(IMDbShowtimesURL, t.ExternalID)
}

// Registry maps theater ids to their configuration in registration order
type Registry struct {
	theaters []Theater
	index    map[string]int
}

// NewRegistry validates theaters and builds a registry; ids must be unique
func NewRegistry(theaters []Theater) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(theaters))}

	var problems ValidationErrors
	for i, t := range theaters {
		if err := validate.Struct(t); err != nil {
			fieldErrs, ok := toValidationErrors(err)
			if !ok {
				return nil, fmt.Errorf("%w: theater %d: %v", errs.ErrConfig, i, err)
			}
			problems = append(problems, fieldErrs...)
		}
		if t.ExternalID == "" && t.SourceURL == "" {
			problems = append(problems, ValidationError{
				Field:   fmt.Sprintf("theaters[%d]", i),
				Value:   t.ID,
				Message: "needs imdb_cinema_id or source_url",
			})
		}
		if _, dup := r.index[t.ID]; dup {
			problems = append(problems, ValidationError{
				Field:   fmt.Sprintf("theaters[%d].theater_id", i),
				Value:   t.ID,
				Message: "is a duplicate",
			})
			continue
		}
		r.index[t.ID] = len(r.theaters)
		r.theaters = append(r.theaters, t)
	}

	if len(problems) > 0 {
		return nil, problems
	}
	return r, nil
}

// LoadRegistryFromBytes parses a YAML list of theaters
func LoadRegistryFromBytes(data []byte) (*Registry, error) {
	var theaters []Theater
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &theaters); err != nil {
		return nil, fmt.Errorf("%w: failed to parse theater registry: %v", errs.ErrConfig, err)
	}
	if len(theaters) == 0 {
		return nil, fmt.Errorf("%w: theater registry is empty", errs.ErrConfig)
	}
	return NewRegistry(theaters)
}

// LoadRegistryFromFile reads a registry file
func LoadRegistryFromFile(filename string) (*Registry, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read theater registry: %v", errs.ErrConfig, err)
	}
	return LoadRegistryFromBytes(data)
}

// DefaultRegistry returns the built-in theater list
func DefaultRegistry() (*Registry, error) {
	return LoadRegistryFromBytes(defaultTheaters)
}

// LoadRegistry loads cfg.TheatersFile, or the built-in list when unset
func LoadRegistry(cfg *Config) (*Registry, error) {
	if cfg == nil || cfg.TheatersFile == "" {
		return DefaultRegistry()
	}
	return LoadRegistryFromFile(cfg.TheatersFile)
}

// Get returns the theater with the given id
func (r *Registry) Get(id string) (Theater, bool) {
	i, ok := r.index[id]
	if !ok {
		return Theater{}, false
	}
	return r.theaters[i], true
}

// All returns every theater in registration order
func (r *Registry) All() []Theater {
	return append([]Theater(nil), r.theaters...)
}

// Enabled returns enabled theaters in registration order
func (r *Registry) Enabled() []Theater {
	var out []Theater
	for _, t := range r.theaters {
		if t.IsEnabled() {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of registered theaters
func (r *Registry) Len() int { return len(r.theaters) }
