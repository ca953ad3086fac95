// internal/scraper/structured.go
package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrNoStructuredData means the page carries no usable theater payload
var ErrNoStructuredData = errors.New("no structured theater data")

// theaterIndicators mark listing entries that name a venue rather than a film
var theaterIndicators = []string{
	"cinema", "theater", "theatre", "film center", "screening room",
	"multiplex", "movie house", "picture house", "bijou", "regal",
	"amc", "showcase", "landmark", "angelika", "nitehawk", "film forum",
}

// startDateLayouts are the ISO-8601 forms seen in listing payloads
var startDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var votePrinter = message.NewPrinter(language.English)

type ldTheater struct {
	Type  ldText          `json:"@type"`
	Event json.RawMessage `json:"event"`
}

type ldEvent struct {
	Type          ldText            `json:"@type"`
	StartDate     ldString          `json:"startDate"`
	WorkPresented ldObject[ldMovie] `json:"workPresented"`
}

type ldMovie struct {
	Type            ldText             `json:"@type"`
	Name            ldText             `json:"name"`
	URL             ldText             `json:"url"`
	ContentRating   ldText             `json:"contentRating"`
	AggregateRating ldObject[ldRating] `json:"aggregateRating"`
}

type ldRating struct {
	RatingValue ldText `json:"ratingValue"`
	RatingCount ldText `json:"ratingCount"`
}

// check lists the shape problems of an event. An event whose work is not an
// object cannot be used; the other problems only drop the affected field.
func (e *ldEvent) check() (problems []string, usable bool) {
	if e.WorkPresented.Mismatch != "" {
		return []string{"workPresented is " + e.WorkPresented.Mismatch + ", want object"}, false
	}
	if e.StartDate.Mismatch != "" {
		problems = append(problems, "startDate is "+e.StartDate.Mismatch+", want string")
	}
	if work := e.WorkPresented.Value; work != nil && work.AggregateRating.Mismatch != "" {
		problems = append(problems, "aggregateRating is "+work.AggregateRating.Mismatch+", want object")
	}
	return problems, true
}

// ldObject holds a JSON object decoded into T. null leaves Value nil; any
// other shape is noted in Mismatch instead of failing the decode.
type ldObject[T any] struct {
	Value    *T
	Mismatch string
}

func (o *ldObject[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '{' {
		o.Mismatch = jsonKind(data)
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// ldString holds a JSON string; other shapes are noted in Mismatch
type ldString struct {
	Value    string
	Mismatch string
}

func (s *ldString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] != '"' {
		s.Mismatch = jsonKind(data)
		return nil
	}
	return json.Unmarshal(data, &s.Value)
}

func jsonKind(data []byte) string {
	switch data[0] {
	case '{':
		return "an object"
	case '[':
		return "an array"
	case '"':
		return "a string"
	case 't', 'f':
		return "a boolean"
	default:
		return "a number"
	}
}

// ldText accepts a JSON string, number, boolean, array (first element) or
// object (its name). Anything else decodes to "".
type ldText string

func (t *ldText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = ldText(s)
	case '[':
		var items []ldText
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		if len(items) > 0 {
			*t = items[0]
		}
	case '{':
		var obj struct {
			Name ldText `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*t = obj.Name
	case 'n':
		*t = ""
	default:
		*t = ldText(data)
	}
	return nil
}

func (t ldText) String() string { return strings.TrimSpace(string(t)) }

// findStructuredData returns the events of the first MovieTheater object
// among the page's JSON-LD scripts. Scripts that fail to decode are
// reported through onMalformed and skipped, as are single events that do.
func findStructuredData(doc *goquery.Document, onMalformed func(error)) ([]ldEvent, error) {
	var (
		events []ldEvent
		found  bool
	)

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, script *goquery.Selection) bool {
		body := bytes.TrimSpace([]byte(script.Text()))
		if len(body) == 0 || body[0] != '{' {
			if len(body) > 0 && !json.Valid(body) {
				onMalformed(fmt.Errorf("json-ld script %d: invalid JSON", i))
			}
			return true
		}

		var theater ldTheater
		if err := json.Unmarshal(body, &theater); err != nil {
			onMalformed(fmt.Errorf("json-ld script %d: %w", i, err))
			return true
		}
		if theater.Type.String() != "MovieTheater" || theater.Event == nil {
			return true
		}

		list, err := splitEvents(theater.Event)
		if err != nil {
			onMalformed(fmt.Errorf("json-ld script %d: event list: %w", i, err))
			return true
		}

		events = make([]ldEvent, 0, len(list))
		for j, raw := range list {
			var event ldEvent
			if err := json.Unmarshal(raw, &event); err != nil {
				onMalformed(fmt.Errorf("json-ld script %d: event %d: %w", i, j, err))
				continue
			}
			problems, usable := event.check()
			for _, p := range problems {
				onMalformed(fmt.Errorf("json-ld script %d: event %d: %s", i, j, p))
			}
			if usable {
				events = append(events, event)
			}
		}

		found = true
		return false
	})

	if !found {
		return nil, ErrNoStructuredData
	}
	return events, nil
}

// splitEvents accepts an event array or a single event object
func splitEvents(data json.RawMessage) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		return []json.RawMessage{data}, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// processStructuredData groups screening events by film title in
// first-seen order
func (s *Source) processStructuredData(events []ldEvent) []rawMovie {
	var movies []*rawMovie
	byTitle := make(map[string]*rawMovie)
	seen := make(map[string]map[string]struct{})

	for _, event := range events {
		if event.Type.String() != "ScreeningEvent" {
			continue
		}
		work := event.WorkPresented.Value
		if work == nil || work.Type.String() != "Movie" {
			continue
		}

		name := html.UnescapeString(work.Name.String())
		if name == "" || isTheaterName(name, s.theater.Name) {
			continue
		}

		movie, ok := byTitle[name]
		if !ok {
			rating := formatRating(work.AggregateRating.Value)
			movie = &rawMovie{
				title:             name,
				description:       describe(rating, work.ContentRating.String()),
				showtimes:         []string{},
				imdbURL:           work.URL.String(),
				rating:            rating,
				contentRating:     work.ContentRating.String(),
				linkEveryShowtime: true,
			}
			byTitle[name] = movie
			seen[name] = make(map[string]struct{})
			movies = append(movies, movie)
		}

		if st, ok := formatStartDate(strings.TrimSpace(event.StartDate.Value)); ok {
			if _, dup := seen[name][st]; !dup {
				seen[name][st] = struct{}{}
				movie.showtimes = append(movie.showtimes, st)
			}
		}
	}

	out := make([]rawMovie, len(movies))
	for i, m := range movies {
		out[i] = *m
	}
	return out
}

// isTheaterName reports whether a listing entry names a venue, either by a
// venue noun or by overlapping the theater's own name
func isTheaterName(name, theaterName string) bool {
	lower := strings.ToLower(name)
	for _, indicator := range theaterIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	own := strings.ToLower(theaterName)
	if own == "" {
		return false
	}
	return strings.Contains(lower, own) || strings.Contains(own, lower)
}

// formatRating renders "7.5/10 (12,345 votes)", or "" unless both parts exist
func formatRating(r *ldRating) string {
	if r == nil {
		return ""
	}
	value, count := r.RatingValue.String(), r.RatingCount.String()
	if value == "" || count == "" {
		return ""
	}
	if n, err := strconv.ParseInt(count, 10, 64); err == nil {
		count = votePrinter.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s/10 (%s votes)", value, count)
}

func describe(rating, contentRating string) string {
	var parts []string
	if rating != "" {
		parts = append(parts, "IMDB: "+rating)
	}
	if contentRating != "" {
		parts = append(parts, "Rated "+contentRating)
	}
	return strings.Join(parts, " | ")
}

// formatStartDate turns an ISO-8601 start date into "3:04 PM" in the
// date's own offset
func formatStartDate(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	for _, layout := range startDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("3:04 PM"), true
		}
	}
	return "", false
}
