// internal/scraper/inspect.go
package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/ShowtimeScrapexter/internal/fetch"
	"github.com/valpere/ShowtimeScrapexter/internal/locator"
	"github.com/valpere/ShowtimeScrapexter/internal/showtime"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// DefaultInspectLimit caps the candidate blocks in a PageReport
const DefaultInspectLimit = 10

// Candidate is one listing-like block found on a page
type Candidate struct {
	Tag         string
	Class       string
	Title       string
	Description string
	Showtimes   []string
	Links       []types.ShowtimeLink
}

// PageReport describes what the extraction helpers find on a theater page.
// It is used when adding a theater whose markup is not known yet.
type PageReport struct {
	URL        string
	Structured bool
	Events     int
	Candidates []Candidate
	Tabs       []locator.TabSection
}

// Inspect fetches the theater's page and reports on it
func (s *Source) Inspect(ctx context.Context, fetcher fetch.Fetcher, limit int) (PageReport, error) {
	doc, err := fetcher.Fetch(ctx, fetch.Request{
		URL:     s.theater.URL(),
		WaitFor: s.theater.WaitFor,
		Timeout: s.fetchTimeout,
	})
	if err != nil {
		return PageReport{}, fmt.Errorf("fetch %s: %w", s.theater.URL(), err)
	}
	return InspectDocument(doc, s.theater.URL(), limit), nil
}

// InspectDocument reports the structured payload, the innermost blocks that
// read like a listing and carry both a title and a showtime, and any tabbed
// schedule sections. limit <= 0 uses DefaultInspectLimit.
func InspectDocument(doc *goquery.Document, baseURL string, limit int) PageReport {
	if limit <= 0 {
		limit = DefaultInspectLimit
	}
	report := PageReport{URL: baseURL}
	if doc == nil {
		return report
	}

	if events, err := findStructuredData(doc, func(error) {}); err == nil {
		report.Structured = true
		report.Events = len(events)
	}

	var blocks []*goquery.Selection
	for _, sel := range locator.FindContainersByContent(doc, locator.LooksLikeMovieContent) {
		if locator.FindTitle(sel).Length() == 0 || len(showtime.ExtractFromSelection(sel)) == 0 {
			continue
		}
		blocks = append(blocks, sel)
	}

	for _, sel := range innermost(blocks) {
		if len(report.Candidates) == limit {
			break
		}
		class, _ := sel.Attr("class")
		report.Candidates = append(report.Candidates, Candidate{
			Tag:         goquery.NodeName(sel),
			Class:       strings.TrimSpace(class),
			Title:       locator.TextOf(locator.FindTitle(sel)),
			Description: locator.TextOf(locator.FindDescription(sel)),
			Showtimes:   showtime.ExtractFromSelection(sel),
			Links:       showtime.ExtractLinks(sel, baseURL),
		})
	}

	report.Tabs = locator.ExtractTabs(doc)
	return report
}

// innermost drops every block that contains another block
func innermost(blocks []*goquery.Selection) []*goquery.Selection {
	var out []*goquery.Selection
	for i, sel := range blocks {
		outer := false
		for j, other := range blocks {
			if i != j && sel.Contains(other.Get(0)) {
				outer = true
				break
			}
		}
		if !outer {
			out = append(out, sel)
		}
	}
	return out
}
