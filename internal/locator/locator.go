// internal/locator/locator.go
package locator

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	minTitleText       = 3
	maxTitleText       = 100
	minDescriptionText = 20
	minMovieContent    = 10
	minHeaderLength    = 5
)

var (
	HeadingTags = []string{"h1", "h2", "h3", "h4"}

	TitleSelectors = []string{
		".title", ".movie-title", ".film-title", ".show-title",
		".film-name", ".movie-name", ".name",
	}

	DescriptionSelectors = []string{
		".description", ".synopsis", ".summary", ".desc",
		".film-description", ".movie-description", ".short-description",
	}

	TabSelectors = []string{
		"div[id*='tab']", "div[class*='tab']",
		".tab-content", ".tabbed-content",
		"[role='tabpanel']",
	}

	// DefaultContainerTags are scanned by FindContainersByContent when none are given
	DefaultContainerTags = []string{"div", "article", "section", "li"}

	MovieKeywords = []string{
		"film", "movie", "director", "starring", "mins", "min",
		"runtime", "rated", "genre", "drama", "comedy", "documentary",
	}
)

var (
	twelveHourTime = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*[ap]m\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}[ap]m\b`),
	}
	clockPattern  = regexp.MustCompile(`\d{1,2}:\d{2}`)
	headerShape   = regexp.MustCompile(`^[A-Z][A-Z\s:]+$`)
	titleLikeText = regexp.MustCompile(`[A-Z][a-z\s]{5,50}`)
)

// FindTitle locates the element most likely to hold a title: a heading,
// then a title class, then a link, then any short capitalized block.
// The returned selection is empty when nothing qualifies.
func FindTitle(container *goquery.Selection) *goquery.Selection {
	if container == nil {
		return emptySelection()
	}

	if heading := FindHeading(container); heading.Length() > 0 {
		return heading
	}

	for _, selector := range TitleSelectors {
		if el := container.Find(selector).First(); el.Length() > 0 && trimmed(el) != "" {
			return el
		}
	}

	if link := firstMatching(container.Find("a[href]"), func(t string) bool {
		return inRange(t, minTitleText, maxTitleText)
	}); link != nil {
		return link
	}

	for _, tag := range []string{"div", "span", "p"} {
		if el := firstMatching(container.Find(tag), looksLikeTitleBlock); el != nil {
			return el
		}
	}

	return emptySelection()
}

// FindHeading returns the first non-empty h1..h4, checking levels in order
func FindHeading(container *goquery.Selection) *goquery.Selection {
	for _, tag := range HeadingTags {
		if el := container.Find(tag).First(); el.Length() > 0 && trimmed(el) != "" {
			return el
		}
	}
	return emptySelection()
}

// FindDescription locates a synopsis element longer than twenty characters.
// Paragraphs carrying a showtime are skipped.
func FindDescription(container *goquery.Selection) *goquery.Selection {
	if container == nil {
		return emptySelection()
	}

	for _, selector := range DescriptionSelectors {
		if el := container.Find(selector).First(); el.Length() > 0 && len([]rune(trimmed(el))) > minDescriptionText {
			return el
		}
	}

	if p := firstMatching(container.Find("p"), func(t string) bool {
		return len([]rune(t)) > minDescriptionText && !hasTwelveHourTime(t)
	}); p != nil {
		return p
	}

	return emptySelection()
}

// TextOf returns the trimmed text of sel, or "" for an empty selection
func TextOf(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return trimmed(sel)
}

// LooksLikeMovieContent is a cheap pre-filter for candidate containers
func LooksLikeMovieContent(s string) bool {
	if len([]rune(s)) < minMovieContent {
		return false
	}

	lower := strings.ToLower(s)
	for _, kw := range MovieKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return titleLikeText.MatchString(s)
}

// FindContainersByContent returns every element of the given tags whose
// trimmed text satisfies filter, grouped by tag in the order given.
func FindContainersByContent(doc *goquery.Document, filter func(string) bool, tags ...string) []*goquery.Selection {
	if doc == nil || filter == nil {
		return nil
	}
	if len(tags) == 0 {
		tags = DefaultContainerTags
	}

	var containers []*goquery.Selection
	for _, tag := range tags {
		doc.Find(tag).Each(func(_ int, el *goquery.Selection) {
			if filter(trimmed(el)) {
				containers = append(containers, el)
			}
		})
	}
	return containers
}

func firstMatching(sel *goquery.Selection, accept func(string) bool) *goquery.Selection {
	var found *goquery.Selection
	sel.EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if accept(trimmed(el)) {
			found = el
			return false
		}
		return true
	})
	return found
}

func looksLikeTitleBlock(t string) bool {
	if !inRange(t, minTitleText, maxTitleText) {
		return false
	}
	first := []rune(t)[0]
	return unicode.IsUpper(first) && !isAllUpper(t)
}

// isAllUpper mirrors the usual string-case test: at least one cased
// letter and no lowercase ones.
func isAllUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

func hasTwelveHourTime(s string) bool {
	for _, re := range twelveHourTime {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func inRange(s string, min, max int) bool {
	n := len([]rune(s))
	return n >= min && n <= max
}

func trimmed(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

func emptySelection() *goquery.Selection {
	return &goquery.Selection{Nodes: []*html.Node{}}
}
