// internal/aggregator/persist.go
package aggregator

import (
	"errors"
	"fmt"

	"github.com/valpere/ShowtimeScrapexter/internal/output"
	"github.com/valpere/ShowtimeScrapexter/internal/utils"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// Persist writes catalog to store and returns the catalog now on disk.
// When catalog is empty and keepPreviousOnEmpty is set, a non-empty
// previous snapshot is left in place and returned instead. Storage
// failures are the only fatal errors of a run.
func Persist(store *output.Store, catalog *types.TheaterCatalog, keepPreviousOnEmpty bool, logger utils.Logger) (*types.TheaterCatalog, error) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	if catalog.IsEmpty() && keepPreviousOnEmpty {
		previous, err := store.Load()
		switch {
		case err == nil && !previous.IsEmpty():
			logger.Warnf("No movies found; keeping previous snapshot from %s (%d movies)",
				previous.ScrapedAt.Format("2006-01-02 15:04"), previous.TotalMovies)
			return previous, nil
		case err != nil && !errors.Is(err, output.ErrSnapshotNotFound):
			return nil, fmt.Errorf("failed to load previous snapshot: %w", err)
		}
	}

	if err := store.Save(catalog); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	logger.Infof("Saved %d movies to %s", catalog.TotalMovies, store.Path())
	return catalog, nil
}
