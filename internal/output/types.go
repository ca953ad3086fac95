// internal/output/types.go
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// OutputFormat represents supported export formats
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
	FormatCSV   OutputFormat = "csv"
	FormatExcel OutputFormat = "xlsx"
)

// ValidOutputFormats returns all valid output format values
func ValidOutputFormats() []OutputFormat {
	return []OutputFormat{FormatJSON, FormatYAML, FormatCSV, FormatExcel}
}

// ParseFormat matches name case-insensitively against the valid formats
func ParseFormat(name string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(name)))
	for _, valid := range ValidOutputFormats() {
		if f == valid {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format: %s", name)
}

// Writer renders a catalog in one format
type Writer interface {
	Write(w io.Writer, catalog *types.TheaterCatalog) error
}

// NewWriter returns the writer for format
func NewWriter(format OutputFormat) (Writer, error) {
	switch format {
	case FormatJSON:
		return JSONWriter{Indent: "  "}, nil
	case FormatYAML:
		return YAMLWriter{Indent: 2}, nil
	case FormatCSV:
		return CSVWriter{Separator: ", "}, nil
	case FormatExcel:
		return ExcelWriter{SheetName: DefaultSheetName}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// movieColumns is the flat column layout shared by CSV and Excel
var movieColumns = []string{
	"theater", "title", "showtimes", "description", "imdb_url", "rating",
	"content_rating", "poster_url", "imdb_year", "imdb_genres", "source_url", "scraped_at",
}

func movieRow(m types.MovieRecord, sep string) []string {
	year := ""
	if m.IMDbYear > 0 {
		year = fmt.Sprintf("%d", m.IMDbYear)
	}
	return []string{
		m.Theater,
		m.Title,
		strings.Join(m.Showtimes, sep),
		m.Description,
		m.IMDbURL,
		m.Rating,
		m.ContentRating,
		m.PosterURL,
		year,
		strings.Join(m.IMDbGenres, sep),
		m.SourceURL,
		m.ScrapedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
