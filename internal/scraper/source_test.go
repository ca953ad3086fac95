// internal/scraper/source_test.go
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/ShowtimeScrapexter/internal/config"
	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
	"github.com/valpere/ShowtimeScrapexter/internal/fetch"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

var fixedTime = time.Date(2025, 7, 26, 9, 0, 0, 0, time.UTC)

func testTheater() config.Theater {
	return config.Theater{
		ID:          "film_forum",
		Name:        "Film Forum",
		ExternalID:  "ci0003551",
		PurchaseURL: "https://filmforum.org/now_playing",
	}
}

func newTestSource() *Source {
	return NewSource(testTheater(), Options{Clock: clockwork.NewFakeClockAt(fixedTime)})
}

type stubFetcher struct {
	html     string
	err      error
	panicMsg string
	lastReq  fetch.Request
}

func (f *stubFetcher) Fetch(_ context.Context, req fetch.Request) (*goquery.Document, error) {
	f.lastReq = req
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(f.html))
}

func (f *stubFetcher) Close() error { return nil }

func ldPage(scripts ...string) string {
	var b strings.Builder
	b.WriteString("<html><head>")
	for _, s := range scripts {
		fmt.Fprintf(&b, `<script type="application/ld+json">%s</script>`, s)
	}
	b.WriteString("</head><body></body></html>")
	return b.String()
}

const theaterPayload = `{
  "@context": "https://schema.org",
  "@type": "MovieTheater",
  "name": "Film Forum",
  "event": [
    {"@type": "ScreeningEvent", "startDate": "2025-07-26T19:30",
     "workPresented": {"@type": "Movie", "name": "Past Lives", "url": "https://www.imdb.com/title/tt13238346/",
       "contentRating": "PG-13", "aggregateRating": {"ratingValue": 7.8, "ratingCount": 250123}}},
    {"@type": "ScreeningEvent", "startDate": "2025-07-26T13:00:00-04:00",
     "workPresented": {"@type": "Movie", "name": "Past Lives"}},
    {"@type": "ScreeningEvent", "startDate": "2025-07-26T19:30",
     "workPresented": {"@type": "Movie", "name": "Past Lives"}},
    {"@type": "ScreeningEvent", "startDate": "2025-07-26T11:45",
     "workPresented": {"@type": "Movie", "name": "Singin&apos; in the Rain"}},
    {"@type": "ScreeningEvent", "startDate": "2025-07-26T20:00",
     "workPresented": {"@type": "Movie", "name": "Film Forum Jr."}},
    {"@type": "ScreeningEvent", "startDate": "2025-07-26T20:00",
     "workPresented": {"@type": "Movie", "name": "Landmark Shorts"}},
    {"@type": "Event", "startDate": "2025-07-26T20:00",
     "workPresented": {"@type": "Movie", "name": "Not A Screening"}},
    {"@type": "ScreeningEvent", "startDate": "2025-07-26T20:00",
     "workPresented": {"@type": "TVSeries", "name": "Some Show"}},
    {"@type": "ScreeningEvent", "startDate": "2025-07-26T20:00",
     "workPresented": {"@type": "Movie", "name": ""}}
  ]
}`

func TestExtract_StructuredData(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ldPage(theaterPayload)))
	require.NoError(t, err)

	result := newTestSource().Extract(doc)
	require.True(t, result.Outcome.OK())
	assert.Equal(t, StrategyStructured, result.Strategy)

	records := result.Records()
	require.Len(t, records, 2)

	lives := records[0]
	assert.Equal(t, "Past Lives", lives.Title)
	assert.Equal(t, []string{"1:00pm", "7:30pm"}, lives.Showtimes)
	assert.Equal(t, []types.ShowtimeLink{
		{Time: "1:00pm", URL: "https://filmforum.org/now_playing"},
		{Time: "7:30pm", URL: "https://filmforum.org/now_playing"},
	}, lives.ShowtimeLinks)
	assert.Equal(t, "7.8/10 (250,123 votes)", lives.Rating)
	assert.Equal(t, "PG-13", lives.ContentRating)
	assert.Equal(t, "IMDB: 7.8/10 (250,123 votes) | Rated PG-13", lives.Description)
	assert.Equal(t, "https://www.imdb.com/title/tt13238346/", lives.IMDbURL)
	assert.Equal(t, "Film Forum", lives.Theater)
	assert.Equal(t, "https://www.imdb.com/showtimes/cinema/US/ci0003551/US/10006/", lives.SourceURL)
	assert.Equal(t, fixedTime, lives.ScrapedAt)

	rain := records[1]
	assert.Equal(t, "Singin' in the Rain", rain.Title)
	assert.Equal(t, []string{"11:45am"}, rain.Showtimes)
	assert.Empty(t, rain.Description)
}

func TestExtract_MalformedScriptsAreSkipped(t *testing.T) {
	page := ldPage(
		`{"@type": "MovieTheater", "event": [`,
		`[{"@type": "Organization"}]`,
		`{"@type": "Organization", "name": "IMDb"}`,
		theaterPayload,
	)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	result := newTestSource().Extract(doc)
	assert.Equal(t, StrategyStructured, result.Strategy)
	assert.Len(t, result.Records(), 2)

	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, errs.StageParse, result.Diagnostics[0].Stage)
	assert.Equal(t, errs.KindSkippable, result.Diagnostics[0].Kind)
	assert.Equal(t, "film_forum", result.Diagnostics[0].Source)
}

func TestExtract_MalformedEventsAreSkipped(t *testing.T) {
	const valid = `{"@type": "ScreeningEvent", "startDate": "2025-07-26T19:30",
	  "workPresented": {"@type": "Movie", "name": "Past Lives", "aggregateRating": {"ratingValue": 7.8, "ratingCount": 10}}}`

	tests := []struct {
		name       string
		event      string
		wantTitles []string
		wantMsg    string
	}{
		{
			name:       "work presented as string",
			event:      `{"@type": "ScreeningEvent", "startDate": "2025-07-26T20:00", "workPresented": "Broken Entry"}`,
			wantTitles: []string{"Past Lives"},
			wantMsg:    "event 1: workPresented is a string, want object",
		},
		{
			name: "aggregate rating as array",
			event: `{"@type": "ScreeningEvent", "startDate": "2025-07-26T20:00",
			  "workPresented": {"@type": "Movie", "name": "Aftersun", "aggregateRating": []}}`,
			wantTitles: []string{"Past Lives", "Aftersun"},
			wantMsg:    "event 1: aggregateRating is an array, want object",
		},
		{
			name: "start date as object",
			event: `{"@type": "ScreeningEvent", "startDate": {"@value": "2025-07-26T21:00"},
			  "workPresented": {"@type": "Movie", "name": "Perfect Days"}}`,
			wantTitles: []string{"Past Lives", "Perfect Days"},
			wantMsg:    "event 1: startDate is an object, want string",
		},
		{
			name:       "event as string",
			event:      `"Broken Entry"`,
			wantTitles: []string{"Past Lives"},
			wantMsg:    "event 1: json: cannot unmarshal string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := fmt.Sprintf(`{"@type": "MovieTheater", "event": [%s, %s]}`, valid, tt.event)
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(ldPage(payload)))
			require.NoError(t, err)

			result := newTestSource().Extract(doc)
			require.True(t, result.Outcome.OK())
			assert.Equal(t, StrategyStructured, result.Strategy)

			var titles []string
			for _, r := range result.Records() {
				titles = append(titles, r.Title)
			}
			assert.Equal(t, tt.wantTitles, titles)

			lives := result.Records()[0]
			assert.Equal(t, []string{"7:30pm"}, lives.Showtimes)
			assert.Equal(t, "7.8/10 (10 votes)", lives.Rating)

			require.Len(t, result.Diagnostics, 1)
			diag := result.Diagnostics[0]
			assert.Equal(t, errs.StageParse, diag.Stage)
			assert.Equal(t, errs.KindSkippable, diag.Kind)
			assert.Contains(t, diag.Message, tt.wantMsg)
			assert.Equal(t, fixedTime, diag.Time)
		})
	}
}

func TestExtract_TolerantFieldsKeepTheMovie(t *testing.T) {
	payload := `{"@type": "MovieTheater", "event": [
	  {"@type": "ScreeningEvent", "startDate": "2025-07-26T20:00",
	   "workPresented": {"@type": "Movie", "name": "Aftersun", "contentRating": "R", "aggregateRating": []}},
	  {"@type": "ScreeningEvent", "startDate": {"@value": "2025-07-26T21:00"},
	   "workPresented": {"@type": "Movie", "name": "Aftersun"}},
	  {"@type": "ScreeningEvent", "startDate": 42, "workPresented": null}
	]}`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ldPage(payload)))
	require.NoError(t, err)

	result := newTestSource().Extract(doc)
	records := result.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Aftersun", records[0].Title)
	assert.Equal(t, []string{"8:00pm"}, records[0].Showtimes)
	assert.Empty(t, records[0].Rating)
	assert.Equal(t, "Rated R", records[0].Description)
	assert.Len(t, result.Diagnostics, 3)
}

func TestExtract_SingleEventObject(t *testing.T) {
	payload := `{"@type": "MovieTheater", "event":
	  {"@type": "ScreeningEvent", "startDate": "2025-07-26T18:15", "workPresented": {"@type": "Movie", "name": "Aftersun"}}}`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(ldPage(payload)))
	require.NoError(t, err)

	result := newTestSource().Extract(doc)
	assert.Equal(t, StrategyStructured, result.Strategy)
	require.Len(t, result.Records(), 1)
	assert.Equal(t, []string{"6:15pm"}, result.Records()[0].Showtimes)
	assert.Empty(t, result.Diagnostics)
}

func TestExtract_EmptyEventListStillWins(t *testing.T) {
	page := ldPage(`{"@type": "MovieTheater", "event": []}`)
	page = strings.Replace(page, "<body></body>", `<body><div class="movie"><h2>Ignored Title</h2></div></body>`, 1)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	result := newTestSource().Extract(doc)
	assert.Equal(t, StrategyStructured, result.Strategy)
	assert.Empty(t, result.Records())
	assert.NotNil(t, result.Records())
}

func TestExtract_HTMLFallback(t *testing.T) {
	page := `<html><body>
		<div class="movie-card"><h2>Oppenheimer</h2></div>
		<section class="FILM"><h3>Anatomy of a Fall</h3></section>
		<div class="showing"><h2>Up</h2></div>
		<div class="sidebar"><h2>Members Save</h2></div>
		<div class="film-item"><h4>Perfect Days</h4></div>
		<div class="film-item"><h4>The Zone of Interest</h4></div>
		<div class="film-item"><h4>Poor Things</h4></div>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	result := newTestSource().Extract(doc)
	assert.Equal(t, StrategyHTMLFallback, result.Strategy)

	records := result.Records()
	titles := make([]string, len(records))
	for i, r := range records {
		titles[i] = r.Title
	}
	// "Up" is too short and only the first five candidates are read
	assert.Equal(t, []string{"Oppenheimer", "Anatomy of a Fall", "Perfect Days", "The Zone of Interest"}, titles)

	first := records[0]
	assert.Equal(t, "Showtimes available at Film Forum", first.Description)
	assert.Empty(t, first.Showtimes)
	assert.NotNil(t, first.Showtimes)
	assert.Equal(t, []types.ShowtimeLink{{URL: "https://filmforum.org/now_playing", Text: "View Showtimes"}}, first.ShowtimeLinks)
}

func TestExtract_HTMLFallbackSkipsNonMovieBlocks(t *testing.T) {
	page := `<html><body>
		<div class="film-nav"><h2>TICKETS &amp; MEMBERSHIP</h2></div>
		<div class="film-item"><h3>Aftersun</h3><p>Drama, 101 min</p></div>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	result := newTestSource().Extract(doc)
	assert.Equal(t, StrategyHTMLFallback, result.Strategy)
	require.Len(t, result.Records(), 1)
	assert.Equal(t, "Aftersun", result.Records()[0].Title)
}

func TestScrape_FetchFailureIsSkippable(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("connection refused")}

	result := newTestSource().Scrape(context.Background(), fetcher)
	assert.False(t, result.Outcome.OK())
	assert.Equal(t, errs.KindSkippable, result.Outcome.Kind)
	assert.Equal(t, StrategyNone, result.Strategy)
	assert.Empty(t, result.Records())
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, errs.StageFetch, result.Diagnostics[0].Stage)
	assert.Contains(t, result.Diagnostics[0].Message, "connection refused")
}

func TestScrape_PanicIsRecovered(t *testing.T) {
	fetcher := &stubFetcher{panicMsg: "boom"}

	var result Result
	require.NotPanics(t, func() {
		result = newTestSource().Scrape(context.Background(), fetcher)
	})
	assert.Equal(t, errs.KindSkippable, result.Outcome.Kind)
	assert.Contains(t, result.Outcome.Err.Error(), "boom")
	assert.Equal(t, "film_forum", result.TheaterID)
}

func TestScrape_RequestCarriesTheaterSettings(t *testing.T) {
	theater := testTheater()
	theater.SourceURL = "https://example.com/listings"
	theater.WaitFor = ".showtimes"
	fetcher := &stubFetcher{html: ldPage(theaterPayload)}

	src := NewSource(theater, Options{Clock: clockwork.NewFakeClockAt(fixedTime), FetchTimeout: 5 * time.Second})
	result := src.Scrape(context.Background(), fetcher)

	assert.Equal(t, fetch.Request{URL: "https://example.com/listings", WaitFor: ".showtimes", Timeout: 5 * time.Second}, fetcher.lastReq)
	assert.Len(t, result.Records(), 2)
}

func TestScrape_Idempotent(t *testing.T) {
	fetcher := &stubFetcher{html: ldPage(theaterPayload)}
	src := newTestSource()

	first := src.Scrape(context.Background(), fetcher)
	second := src.Scrape(context.Background(), fetcher)
	assert.Equal(t, first.Records(), second.Records())
}

func TestIsTheaterName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Angelika Members Screening", true},
		{"Regal Summer Series", true},
		{"film forum", true},
		{"Forum", true},
		{"Past Lives", false},
		{"Oppenheimer", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isTheaterName(tt.name, "Film Forum"), tt.name)
	}
}

func TestFormatStartDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025-07-26T11:45", "11:45 AM", true},
		{"2025-07-26T19:30:00", "7:30 PM", true},
		{"2025-07-26T00:15:00Z", "12:15 AM", true},
		{"2025-07-26T12:05-04:00", "12:05 PM", true},
		{"tomorrow", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := formatStartDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatRating(t *testing.T) {
	assert.Equal(t, "8.1/10 (1,234 votes)", formatRating(&ldRating{RatingValue: "8.1", RatingCount: "1234"}))
	assert.Equal(t, "8.1/10 (many votes)", formatRating(&ldRating{RatingValue: "8.1", RatingCount: "many"}))
	assert.Empty(t, formatRating(&ldRating{RatingValue: "8.1"}))
	assert.Empty(t, formatRating(nil))
}
