// internal/output/json.go
package output

import (
	"encoding/json"
	"io"

	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// JSONWriter writes the catalog in the snapshot's JSON shape
type JSONWriter struct {
	Indent string
}

// Write encodes catalog to w
func (j JSONWriter) Write(w io.Writer, catalog *types.TheaterCatalog) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", j.Indent)
	return encoder.Encode(catalog)
}
