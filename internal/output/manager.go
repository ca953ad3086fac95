// internal/output/manager.go
package output

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// Manager exports a catalog in every configured format next to the snapshot
type Manager struct {
	fs       afero.Fs
	dir      string
	baseName string
	formats  []OutputFormat
}

// NewManager creates a manager writing dir/baseName.<ext> for each format.
// Unknown format names are rejected.
func NewManager(fs afero.Fs, dir, baseName string, formats []string) (*Manager, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if baseName == "" {
		baseName = "showtimes"
	}
	baseName = strings.TrimSuffix(baseName, filepath.Ext(baseName))

	m := &Manager{fs: fs, dir: dir, baseName: baseName}
	for _, name := range formats {
		f, err := ParseFormat(name)
		if err != nil {
			return nil, err
		}
		m.formats = append(m.formats, f)
	}
	return m, nil
}

// Formats returns the configured formats
func (m *Manager) Formats() []OutputFormat {
	return append([]OutputFormat(nil), m.formats...)
}

// PathFor returns the export path for format
func (m *Manager) PathFor(format OutputFormat) string {
	return filepath.Join(m.dir, m.baseName+"."+string(format))
}

// Export writes catalog in every format and returns the written paths. It
// stops at the first failure.
func (m *Manager) Export(catalog *types.TheaterCatalog) ([]string, error) {
	if err := m.fs.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, format := range m.formats {
		writer, err := NewWriter(format)
		if err != nil {
			return written, err
		}

		var buf bytes.Buffer
		if err := writer.Write(&buf, catalog); err != nil {
			return written, fmt.Errorf("failed to render %s: %w", format, err)
		}

		path := m.PathFor(format)
		if err := afero.WriteFile(m.fs, path, buf.Bytes(), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
