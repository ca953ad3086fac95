// internal/aggregator/timeline.go
package aggregator

import (
	"sort"
	"strings"

	"github.com/valpere/ShowtimeScrapexter/internal/showtime"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// BuildTimeline groups movies across every theater by showtime. Entries
// are keyed by the case-normalized canonical time, display the first time
// string seen for the key, and are ordered chronologically with ties in
// first-seen order. URLs are aligned with Movies; a movie without a link
// for that time gets "".
func BuildTimeline(movies []types.MovieRecord) []types.TimelineEntry {
	entries := []types.TimelineEntry{}
	index := make(map[string]int)
	seen := make(map[string]map[int]struct{})

	for i, movie := range movies {
		for _, t := range movie.Showtimes {
			key := timelineKey(t)
			if key == "" {
				continue
			}

			pos, ok := index[key]
			if !ok {
				pos = len(entries)
				index[key] = pos
				seen[key] = make(map[int]struct{})
				entries = append(entries, types.TimelineEntry{
					Time:   strings.TrimSpace(t),
					Movies: []types.MovieRecord{},
					URLs:   []string{},
				})
			}
			if _, dup := seen[key][i]; dup {
				continue
			}
			seen[key][i] = struct{}{}

			entries[pos].Movies = append(entries[pos].Movies, movie.Clone())
			entries[pos].URLs = append(entries[pos].URLs, linkFor(movie, key))
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return showtime.SortKey(entries[i].Time) < showtime.SortKey(entries[j].Time)
	})
	return entries
}

func timelineKey(t string) string {
	if canonical, ok := showtime.Clean(t); ok {
		return strings.ToLower(canonical)
	}
	return strings.ToLower(strings.TrimSpace(t))
}

func linkFor(movie types.MovieRecord, key string) string {
	for _, link := range movie.ShowtimeLinks {
		if link.Time != "" && timelineKey(link.Time) == key {
			return link.URL
		}
	}
	return ""
}
