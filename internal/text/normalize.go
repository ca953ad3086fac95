// internal/text/normalize.go
package text

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultDescriptionLength caps cleaned descriptions
	DefaultDescriptionLength = 500

	// DefaultMatchThreshold is the word-overlap ratio above which titles match
	DefaultMatchThreshold = 0.7

	minTitleLength     = 2
	maxTitleLength     = 200
	minSubstringLength = 5
	ellipsis           = "..."
)

// TimePatterns are the recognised showtime shapes in priority order:
// "7:30 pm", "7pm", then a bare "19:30".
var TimePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*[ap]m\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}[ap]m\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\b`),
}

var (
	titlePrefixes = []string{"movie:", "film:", "showing:"}

	descriptionNoise = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(runtime|duration|rated|rating):\s*\w+`),
		regexp.MustCompile(`(?i)\b\d+\s*min(utes?)?\b`),
		regexp.MustCompile(`(?i)\b\d{4}\s*\|\s*`),
	}

	upper = cases.Upper(language.Und)
)

// CleanTitle trims a raw title and strips listing prefixes.
// The boolean is false when the result falls outside the allowed length.
func CleanTitle(raw string) (string, bool) {
	cleaned := strings.TrimSpace(raw)
	for _, prefix := range titlePrefixes {
		if strings.HasPrefix(strings.ToLower(cleaned), prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
		}
	}

	n := len([]rune(cleaned))
	if n < minTitleLength || n > maxTitleLength {
		return "", false
	}
	return cleaned, true
}

// CleanDescription removes runtime, rating and year noise and truncates the
// result on a word boundary. Non-positive maxLength selects the default.
func CleanDescription(raw string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultDescriptionLength
	}

	cleaned := CollapseWhitespace(raw)
	for _, re := range descriptionNoise {
		cleaned = re.ReplaceAllString(cleaned, "")
	}
	cleaned = CollapseWhitespace(cleaned)

	runes := []rune(cleaned)
	if len(runes) <= maxLength {
		return cleaned
	}

	cut := string(runes[:maxLength])
	if idx := strings.LastIndex(cut, " "); idx >= 0 {
		cut = cut[:idx]
	}
	return cut + ellipsis
}

// CollapseWhitespace trims s and replaces every whitespace run with one space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeForComparison upper-cases text and drops punctuation so that
// titles can be compared loosely. The result is never stored.
func NormalizeForComparison(s string) string {
	if s == "" {
		return ""
	}

	s = upper.String(norm.NFC.String(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return CollapseWhitespace(b.String())
}

// TitlesMatch reports whether two titles likely name the same film.
// Checks run exact, then substring (both longer than five runes), then
// word-set overlap against the smaller set.
func TitlesMatch(a, b string, threshold float64) bool {
	if a == "" || b == "" {
		return false
	}

	na := NormalizeForComparison(a)
	nb := NormalizeForComparison(b)
	if na == nb {
		return true
	}

	if len([]rune(na)) > minSubstringLength && len([]rune(nb)) > minSubstringLength {
		if strings.Contains(na, nb) || strings.Contains(nb, na) {
			return true
		}
	}

	wa := wordSet(na)
	wb := wordSet(nb)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}

	overlap := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			overlap++
		}
	}
	smaller := len(wa)
	if len(wb) < smaller {
		smaller = len(wb)
	}
	return float64(overlap)/float64(smaller) >= threshold
}

// ContainsTimePattern reports whether any showtime shape appears in s
func ContainsTimePattern(s string) bool {
	for _, re := range TimePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
