// internal/showtime/links.go
package showtime

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/ShowtimeScrapexter/internal/text"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// LinkKeywords mark a hyperlink as ticketing related
var LinkKeywords = []string{
	"ticket", "purchase", "buy", "showtime", "screening",
	"book", "reserve", "select",
}

// ExtractLinks returns a {time, url} pair for every showtime-related
// hyperlink in sel whose time can be recovered.
func ExtractLinks(sel *goquery.Selection, baseURL string) []types.ShowtimeLink {
	if sel == nil {
		return nil
	}

	var links []types.ShowtimeLink
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		linkText := strings.TrimSpace(a.Text())

		if !isShowtimeLink(href, linkText) && !IsValid(linkText) {
			return
		}

		t, ok := timeFromLink(a, linkText)
		if !ok {
			return
		}
		links = append(links, types.ShowtimeLink{
			Time: t,
			URL:  AbsoluteURL(href, baseURL),
		})
	})
	return links
}

func isShowtimeLink(href, linkText string) bool {
	combined := strings.ToLower(href + " " + linkText)
	for _, kw := range LinkKeywords {
		if strings.Contains(combined, kw) {
			return true
		}
	}
	return false
}

func timeFromLink(a *goquery.Selection, linkText string) (string, bool) {
	if IsValid(linkText) {
		return Clean(linkText)
	}

	parent := a.Parent()
	if parent.Length() == 0 {
		return "", false
	}
	// only the 12-hour shape is trusted in surrounding text
	if match := text.TimePatterns[0].FindString(text.CollapseWhitespace(parent.Text())); match != "" {
		return Clean(match)
	}
	return "", false
}

// AbsoluteURL resolves href against baseURL. Root-relative paths take the
// base's scheme and host; other relative paths are appended to the base.
func AbsoluteURL(href, baseURL string) string {
	switch {
	case strings.HasPrefix(href, "http"):
		return href
	case strings.HasPrefix(href, "/"):
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			scheme := u.Scheme
			if scheme == "" {
				scheme = "https"
			}
			return scheme + "://" + u.Host + href
		}
		if baseURL != "" {
			return "https://" + strings.TrimRight(baseURL, "/") + href
		}
		return href
	case baseURL != "":
		return strings.TrimRight(baseURL, "/") + "/" + href
	default:
		return href
	}
}
