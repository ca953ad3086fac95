// internal/output/store.go
package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// ErrSnapshotNotFound means no snapshot has been written yet
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Store reads and writes the catalog snapshot consumed by the site renderer
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore creates a store for dir/file on fs. A nil fs uses the OS.
func NewStore(fs afero.Fs, dir, file string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, path: filepath.Join(dir, file)}
}

// Path returns the snapshot location
func (s *Store) Path() string { return s.path }

// Save writes catalog as JSON. The file is written beside the target and
// renamed into place so readers never see a partial snapshot.
func (s *Store) Save(catalog *types.TheaterCatalog) error {
	if catalog == nil {
		return fmt.Errorf("%w: nil catalog", errs.ErrStorage)
	}

	var buf bytes.Buffer
	if err := (JSONWriter{Indent: "  "}).Write(&buf, catalog); err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", errs.ErrStorage, err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", errs.ErrStorage, filepath.Dir(s.path), err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", errs.ErrStorage, tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("%w: replace %s: %v", errs.ErrStorage, s.path, err)
	}
	return nil
}

// Load reads the stored catalog
func (s *Store) Load() (*types.TheaterCatalog, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w: %s", errs.ErrStorage, ErrSnapshotNotFound, s.path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", errs.ErrStorage, s.path, err)
	}

	var catalog types.TheaterCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", errs.ErrStorage, s.path, err)
	}
	if catalog.Movies == nil {
		catalog.Movies = []types.MovieRecord{}
	}
	if catalog.Theaters == nil {
		catalog.Theaters = []string{}
	}
	return &catalog, nil
}
