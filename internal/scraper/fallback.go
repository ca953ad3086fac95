// internal/scraper/fallback.go
package scraper

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/ShowtimeScrapexter/internal/locator"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// MaxFallbackContainers caps how many candidate blocks the HTML fallback reads
const MaxFallbackContainers = 5

// FallbackLinkText labels the single purchase link of a fallback record
const FallbackLinkText = "View Showtimes"

var fallbackClass = regexp.MustCompile(`(?i)movie|film|showing`)

// extractFromHTML reads titles from movie-like blocks when a page carries no
// structured payload. Blocks whose text does not read like a listing are
// passed over. Only titles are recovered; showtimes are left to the
// purchase page.
func (s *Source) extractFromHTML(doc *goquery.Document) []rawMovie {
	containers := doc.Find("div, section").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		return fallbackClass.MatchString(class)
	})

	var movies []rawMovie
	containers.Slice(0, min(containers.Length(), MaxFallbackContainers)).Each(func(_ int, container *goquery.Selection) {
		if !locator.LooksLikeMovieContent(locator.TextOf(container)) {
			return
		}
		title := locator.TextOf(locator.FindHeading(container))
		n := len([]rune(title))
		if n <= 3 || n >= 100 {
			return
		}

		movies = append(movies, rawMovie{
			title:       title,
			description: "Showtimes available at " + s.theater.Name,
			showtimes:   []string{},
			links: []types.ShowtimeLink{{
				URL:  s.theater.PurchaseURL,
				Text: FallbackLinkText,
			}},
		})
	})
	return movies
}
