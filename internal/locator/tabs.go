// internal/locator/tabs.go
package locator

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// TabSection holds the times listed under one header inside a tab panel
type TabSection struct {
	Header string
	Times  []string
}

// ExtractTabs walks tab-like containers line by line. A long uppercase
// line without a clock time opens a section; later lines carrying clock
// times add them to the open section. Sections keep first-seen order and a
// header seen twice extends the earlier section.
func ExtractTabs(doc *goquery.Document) []TabSection {
	if doc == nil {
		return nil
	}

	var (
		sections []TabSection
		index    = map[string]int{}
		visited  = map[*html.Node]bool{}
	)

	for _, selector := range TabSelectors {
		doc.Find(selector).Each(func(_ int, tab *goquery.Selection) {
			node := tab.Get(0)
			if visited[node] {
				return
			}
			visited[node] = true

			current := -1
			for _, line := range strings.Split(tab.Text(), "\n") {
				line = strings.TrimSpace(line)
				if line == "" {
					continue
				}

				switch {
				case isSectionHeader(line):
					i, ok := index[line]
					if !ok {
						i = len(sections)
						index[line] = i
						sections = append(sections, TabSection{Header: line})
					}
					current = i
				case current >= 0 && clockPattern.MatchString(line):
					sections[current].Times = append(sections[current].Times, clockPattern.FindAllString(line, -1)...)
				}
			}
		})
	}

	return sections
}

func isSectionHeader(line string) bool {
	if len([]rune(line)) <= minHeaderLength {
		return false
	}
	if !isAllUpper(line) && !headerShape.MatchString(line) {
		return false
	}
	return !clockPattern.MatchString(line)
}
