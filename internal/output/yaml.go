// internal/output/yaml.go
package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// YAMLWriter writes the catalog as a single YAML document
type YAMLWriter struct {
	Indent int
}

// Write encodes catalog to w
func (y YAMLWriter) Write(w io.Writer, catalog *types.TheaterCatalog) error {
	encoder := yaml.NewEncoder(w)
	if y.Indent > 0 {
		encoder.SetIndent(y.Indent)
	}
	if err := encoder.Encode(catalog); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}
