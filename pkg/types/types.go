// pkg/types/types.go
package types

import (
	"fmt"
	"time"
)

// Title length bounds applied after cleaning
const (
	MinTitleLength = 2
	MaxTitleLength = 200
)

// ShowtimeLink pairs a canonical showtime with the page where it can be booked
type ShowtimeLink struct {
	Time string `json:"time,omitempty" yaml:"time,omitempty"`
	URL  string `json:"url" yaml:"url"`
	Text string `json:"text,omitempty" yaml:"text,omitempty"`
}

// MovieRecord is one title playing at one theater
type MovieRecord struct {
	Title         string         `json:"title" yaml:"title"`
	Description   string         `json:"description" yaml:"description"`
	Showtimes     []string       `json:"showtimes" yaml:"showtimes"`
	ShowtimeLinks []ShowtimeLink `json:"showtime_links" yaml:"showtime_links"`
	Theater       string         `json:"theater" yaml:"theater"`
	SourceURL     string         `json:"source_url" yaml:"source_url"`
	ScrapedAt     time.Time      `json:"scraped_at" yaml:"scraped_at"`

	// Structured-data extras
	IMDbURL       string `json:"imdb_url,omitempty" yaml:"imdb_url,omitempty"`
	Rating        string `json:"rating,omitempty" yaml:"rating,omitempty"`
	ContentRating string `json:"content_rating,omitempty" yaml:"content_rating,omitempty"`

	// Enrichment, all optional
	PosterURL     string   `json:"poster_url,omitempty" yaml:"poster_url,omitempty"`
	IMDbID        string   `json:"imdb_id,omitempty" yaml:"imdb_id,omitempty"`
	IMDbPlot      string   `json:"imdb_plot,omitempty" yaml:"imdb_plot,omitempty"`
	IMDbGenres    []string `json:"imdb_genres,omitempty" yaml:"imdb_genres,omitempty"`
	IMDbDirector  string   `json:"imdb_director,omitempty" yaml:"imdb_director,omitempty"`
	IMDbYear      int      `json:"imdb_year,omitempty" yaml:"imdb_year,omitempty"`
	IMDbRuntime   string   `json:"imdb_runtime,omitempty" yaml:"imdb_runtime,omitempty"`
	IMDbAPIRating string   `json:"imdb_api_rating,omitempty" yaml:"imdb_api_rating,omitempty"`
}

// IsValid reports whether the record may enter a catalog
func (m *MovieRecord) IsValid() bool {
	if m == nil || m.Title == "" || m.Theater == "" {
		return false
	}
	n := len([]rune(m.Title))
	return n >= MinTitleLength && n <= MaxTitleLength
}

// Clone returns a deep copy; slices are not shared with the receiver.
func (m MovieRecord) Clone() MovieRecord {
	out := m
	if m.Showtimes != nil {
		out.Showtimes = append(make([]string, 0, len(m.Showtimes)), m.Showtimes...)
	}
	if m.ShowtimeLinks != nil {
		out.ShowtimeLinks = append(make([]ShowtimeLink, 0, len(m.ShowtimeLinks)), m.ShowtimeLinks...)
	}
	if m.IMDbGenres != nil {
		out.IMDbGenres = append(make([]string, 0, len(m.IMDbGenres)), m.IMDbGenres...)
	}
	return out
}

// HasEnrichment reports whether poster and plot metadata are already present
func (m *MovieRecord) HasEnrichment() bool {
	return m.PosterURL != "" && m.IMDbPlot != ""
}

// String implements fmt.Stringer
func (m MovieRecord) String() string {
	return fmt.Sprintf("%s @ %s (%d showtimes)", m.Title, m.Theater, len(m.Showtimes))
}

// Metadata is the optional result of an enrichment lookup
type Metadata struct {
	IMDbID    string   `json:"imdb_id,omitempty"`
	Title     string   `json:"title,omitempty"`
	PosterURL string   `json:"poster_url,omitempty"`
	Plot      string   `json:"plot,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	Director  string   `json:"director,omitempty"`
	Year      int      `json:"year,omitempty"`
	Runtime   string   `json:"runtime,omitempty"`
	Rating    string   `json:"rating,omitempty"`
	URL       string   `json:"url,omitempty"`
}

// TimelineEntry groups every movie playing at one canonical time
type TimelineEntry struct {
	Time   string        `json:"time" yaml:"time"`
	Movies []MovieRecord `json:"movies" yaml:"movies"`
	URLs   []string      `json:"urls" yaml:"urls"`
}

// TheaterCatalog is the aggregate written as a snapshot after each run
type TheaterCatalog struct {
	ScrapedAt   time.Time     `json:"scraped_at" yaml:"scraped_at"`
	TotalMovies int           `json:"total_movies" yaml:"total_movies"`
	Theaters    []string      `json:"theaters" yaml:"theaters"`
	Movies      []MovieRecord `json:"movies" yaml:"movies"`
}

// IsEmpty reports whether the catalog carries no movies
func (c *TheaterCatalog) IsEmpty() bool {
	return c == nil || len(c.Movies) == 0
}

// MoviesAt returns the movies playing at the named theater, in catalog order
func (c *TheaterCatalog) MoviesAt(theater string) []MovieRecord {
	if c == nil {
		return nil
	}
	var out []MovieRecord
	for _, m := range c.Movies {
		if m.Theater == theater {
			out = append(out, m)
		}
	}
	return out
}
