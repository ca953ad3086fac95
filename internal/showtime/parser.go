// internal/showtime/parser.go
package showtime

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/ShowtimeScrapexter/internal/text"
)

// InvalidSortKey orders unparseable times after every real one
const InvalidSortKey = 9999

const maxShowtimeLength = 20

// Selectors that usually wrap a single screening time
var TimeSelectors = []string{
	".showtime", ".time", ".screening-time", ".schedule",
	"time", ".times", ".showtimes", ".showtime-container",
}

var falsePositives = map[string]struct{}{
	"runtime": {}, "duration": {}, "year": {}, "rating": {}, "am/pm": {},
	"mins": {}, "minutes": {}, "min": {}, "hrs": {}, "hours": {}, "hr": {},
}

var (
	meridiemTime = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*([ap])m$`)
	clockTime    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	sortKeyRe    = regexp.MustCompile(`(?i)^(\d{1,2}):?(\d{0,2})\s*([ap])m`)
)

// IsValid reports whether text looks like a showtime
func IsValid(s string) bool {
	if s == "" || len(s) > maxShowtimeLength {
		return false
	}

	normalized := strings.ToLower(strings.TrimSpace(s))
	if _, bad := falsePositives[normalized]; bad {
		return false
	}
	return text.ContainsTimePattern(normalized)
}

// Clean extracts the first time in s and returns it in canonical form,
// e.g. "07:30 PM" becomes "7:30pm" and "19:30" becomes "7:30pm".
func Clean(s string) (string, bool) {
	if s == "" {
		return "", false
	}

	for _, re := range text.TimePatterns {
		match := re.FindString(s)
		if match == "" {
			continue
		}
		return canonicalize(strings.ToLower(text.CollapseWhitespace(match)))
	}
	return "", false
}

func canonicalize(match string) (string, bool) {
	if m := meridiemTime.FindStringSubmatch(match); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return "", false
		}
		return format(hour, minute, m[3] == "p"), true
	}

	if m := clockTime.FindStringSubmatch(match); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return "", false
		}
		pm := hour >= 12
		switch {
		case hour == 0:
			hour = 12
		case hour > 12:
			hour -= 12
		}
		return format(hour, minute, pm), true
	}

	return "", false
}

func format(hour, minute int, pm bool) string {
	suffix := "am"
	if pm {
		suffix = "pm"
	}
	return fmt.Sprintf("%d:%02d%s", hour, minute, suffix)
}

// CleanAndDedupe canonicalizes every input, drops failures and repeats,
// and returns the survivors in chronological order.
func CleanAndDedupe(times []string) []string {
	seen := make(map[string]struct{}, len(times))
	cleaned := make([]string, 0, len(times))

	for _, t := range times {
		c, ok := Clean(t)
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cleaned = append(cleaned, c)
	}

	SortChronologically(cleaned)
	return cleaned
}

// SortChronologically sorts times in place by SortKey, keeping ties stable
func SortChronologically(times []string) {
	sort.SliceStable(times, func(i, j int) bool {
		return SortKey(times[i]) < SortKey(times[j])
	})
}

// SortKey converts a 12-hour time to minutes since midnight.
// Anything it cannot parse yields InvalidSortKey.
func SortKey(s string) int {
	m := sortKeyRe.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return InvalidSortKey
	}

	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return InvalidSortKey
	}
	minute := 0
	if m[2] != "" {
		if minute, err = strconv.Atoi(m[2]); err != nil {
			return InvalidSortKey
		}
	}

	pm := m[3] == "p"
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return hour*60 + minute
}

// ExtractFromSelection collects showtimes from a fragment, trying time
// selectors, then a text scan, then clickable elements.
func ExtractFromSelection(sel *goquery.Selection) []string {
	if sel == nil {
		return nil
	}

	var found []string
	for _, selector := range TimeSelectors {
		sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); IsValid(t) {
				found = append(found, t)
			}
		})
	}

	if len(found) == 0 {
		found = scanText(sel.Text())
	}

	if len(found) == 0 {
		sel.Find("a[href], button[href]").Each(func(_ int, s *goquery.Selection) {
			if t := strings.TrimSpace(s.Text()); IsValid(t) {
				found = append(found, t)
			}
		})
	}

	return CleanAndDedupe(found)
}

// scanText finds times in free text. A lower-priority pattern never claims
// a span already matched by a higher one, so "7:30 PM" does not also yield
// a bare "7:30".
func scanText(content string) []string {
	var (
		found   []string
		claimed [][]int
	)
	for _, re := range text.TimePatterns {
		for _, loc := range re.FindAllStringIndex(content, -1) {
			if overlaps(claimed, loc) {
				continue
			}
			claimed = append(claimed, loc)
			if t := content[loc[0]:loc[1]]; IsValid(t) {
				found = append(found, t)
			}
		}
	}
	return found
}

func overlaps(spans [][]int, loc []int) bool {
	for _, s := range spans {
		if loc[0] < s[1] && s[0] < loc[1] {
			return true
		}
	}
	return false
}
