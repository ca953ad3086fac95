// internal/enrich/enrich.go
package enrich

import (
	"context"
	"errors"
	"strings"

	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
	"github.com/valpere/ShowtimeScrapexter/internal/utils"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// ErrNotFound means the lookup service had no acceptable match
var ErrNotFound = errors.New("no matching title")

// Enricher looks up metadata for a film title. Year is optional; zero
// means unknown.
type Enricher interface {
	Lookup(ctx context.Context, title string, year int) (*types.Metadata, error)
}

// Options controls how a batch of records is enriched
type Options struct {
	// MaxMovies caps lookups per batch; zero means no cap
	MaxMovies int
	// EnhanceDescriptions replaces descriptions with looked-up plots
	EnhanceDescriptions bool
	Logger              utils.Logger
}

// Apply returns a copy of record carrying meta's fields
func Apply(record types.MovieRecord, meta *types.Metadata) types.MovieRecord {
	out := record.Clone()
	if meta == nil {
		return out
	}

	out.PosterURL = meta.PosterURL
	out.IMDbID = meta.IMDbID
	out.IMDbPlot = meta.Plot
	out.IMDbGenres = append([]string(nil), meta.Genres...)
	out.IMDbDirector = meta.Director
	out.IMDbYear = meta.Year
	out.IMDbRuntime = meta.Runtime
	out.IMDbAPIRating = meta.Rating
	if out.IMDbURL == "" {
		out.IMDbURL = meta.URL
	}
	return out
}

// EnhanceDescription returns a copy of record whose description is the
// looked-up plot, when there is one
func EnhanceDescription(record types.MovieRecord) types.MovieRecord {
	out := record.Clone()
	plot := strings.TrimSpace(record.IMDbPlot)
	if plot != "" && plot != "N/A" {
		out.Description = plot
	}
	return out
}

// Records enriches copies of records with e. Records that already carry
// metadata are not looked up again. Lookup failures leave the record as it
// was and are reported to diags under source.
func Records(ctx context.Context, e Enricher, records []types.MovieRecord, opts Options, diags *errs.Diagnostics, source string) []types.MovieRecord {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	out := make([]types.MovieRecord, 0, len(records))
	lookups := 0
	breakerReported := false

	for _, record := range records {
		enriched := record.Clone()

		switch {
		case e == nil || ctx.Err() != nil:
		case record.HasEnrichment():
			logger.Debugf("Movie '%s' already has metadata, skipping lookup", record.Title)
		case opts.MaxMovies > 0 && lookups >= opts.MaxMovies:
		default:
			lookups++
			meta, err := e.Lookup(ctx, record.Title, record.IMDbYear)
			switch {
			case err == nil:
				enriched = Apply(enriched, meta)
				logger.Debugf("Enhanced '%s' with metadata", record.Title)
			case errors.Is(err, ErrNotFound):
				logger.Debugf("No metadata found for '%s'", record.Title)
			case errors.Is(err, errs.ErrCircuitOpen):
				if !breakerReported && diags != nil {
					diags.Skippable(source, errs.StageEnrich, err)
					breakerReported = true
				}
			default:
				logger.Warnf("Metadata lookup for '%s' failed: %v", record.Title, err)
				if diags != nil {
					diags.Skippable(source, errs.StageEnrich, err)
				}
			}
		}

		if opts.EnhanceDescriptions {
			enriched = EnhanceDescription(enriched)
		}
		out = append(out, enriched)
	}
	return out
}
