// internal/dedupe/dedupe.go
package dedupe

import (
	"github.com/valpere/ShowtimeScrapexter/internal/showtime"
	"github.com/valpere/ShowtimeScrapexter/internal/text"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// Deduplicator merges records whose titles name the same film
type Deduplicator struct {
	// Threshold is the word-overlap ratio passed to text.TitlesMatch
	Threshold float64
}

// New creates a deduplicator; a non-positive threshold selects the default
func New(threshold float64) *Deduplicator {
	if threshold <= 0 {
		threshold = text.DefaultMatchThreshold
	}
	return &Deduplicator{Threshold: threshold}
}

// RemoveDuplicatesByTitle merges records with the default threshold
func RemoveDuplicatesByTitle(records []types.MovieRecord) []types.MovieRecord {
	return New(text.DefaultMatchThreshold).Deduplicate(records)
}

// Deduplicate keeps the first record of every group of matching titles, in
// input order. Later matches contribute their showtimes and links to the
// kept record and are dropped. The input slice and its records are not
// modified. Every record is compared against all kept ones, so the cost is
// quadratic in the number of records per source.
func (d *Deduplicator) Deduplicate(records []types.MovieRecord) []types.MovieRecord {
	unique := make([]types.MovieRecord, 0, len(records))

	for _, record := range records {
		merged := false
		for i := range unique {
			if text.TitlesMatch(record.Title, unique[i].Title, d.Threshold) {
				unique[i] = Merge(unique[i], record)
				merged = true
				break
			}
		}
		if !merged {
			unique = append(unique, record.Clone())
		}
	}
	return unique
}

// Merge returns a copy of kept carrying the union of both records'
// showtimes, in chronological order, and links deduped by time and url.
func Merge(kept, incoming types.MovieRecord) types.MovieRecord {
	out := kept.Clone()
	out.Showtimes = unionShowtimes(kept.Showtimes, incoming.Showtimes)
	out.ShowtimeLinks = unionLinks(kept.ShowtimeLinks, incoming.ShowtimeLinks)
	return out
}

func unionShowtimes(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	showtime.SortChronologically(out)
	return out
}

type linkKey struct{ time, url string }

func unionLinks(a, b []types.ShowtimeLink) []types.ShowtimeLink {
	seen := make(map[linkKey]struct{}, len(a)+len(b))
	out := make([]types.ShowtimeLink, 0, len(a)+len(b))
	for _, list := range [][]types.ShowtimeLink{a, b} {
		for _, l := range list {
			k := linkKey{l.Time, l.URL}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
