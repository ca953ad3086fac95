// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// CSVWriter writes one row per movie. List fields are joined with Separator.
type CSVWriter struct {
	Separator string
}

// Write writes the header and every movie row to w
func (c CSVWriter) Write(w io.Writer, catalog *types.TheaterCatalog) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(movieColumns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if catalog != nil {
		for _, m := range catalog.Movies {
			if err := writer.Write(movieRow(m, c.Separator)); err != nil {
				return fmt.Errorf("failed to write record: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
