// internal/scraper/source.go
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"

	"github.com/valpere/ShowtimeScrapexter/internal/config"
	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
	"github.com/valpere/ShowtimeScrapexter/internal/fetch"
	"github.com/valpere/ShowtimeScrapexter/internal/showtime"
	"github.com/valpere/ShowtimeScrapexter/internal/text"
	"github.com/valpere/ShowtimeScrapexter/internal/utils"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// Strategy names the extraction path that produced a source's records
type Strategy string

const (
	StrategyStructured   Strategy = "structured"
	StrategyHTMLFallback Strategy = "html_fallback"
	StrategyNone         Strategy = "none"
)

// Result is everything one source produced in a run
type Result struct {
	TheaterID   string
	Outcome     errs.Outcome[[]types.MovieRecord]
	Strategy    Strategy
	Diagnostics []errs.Diagnostic
	Duration    time.Duration
}

// Records returns the extracted movies, never nil
func (r Result) Records() []types.MovieRecord {
	if r.Outcome.Value == nil {
		return []types.MovieRecord{}
	}
	return r.Outcome.Value
}

// Options tunes a Source
type Options struct {
	Clock        clockwork.Clock
	Logger       utils.Logger
	FetchTimeout time.Duration
}

// Source scrapes one theater. Every theater uses the same strategy;
// only the configuration differs.
type Source struct {
	theater      config.Theater
	clock        clockwork.Clock
	logger       utils.Logger
	fetchTimeout time.Duration
}

// NewSource creates a source for theater
func NewSource(theater config.Theater, opts Options) *Source {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	return &Source{
		theater:      theater,
		clock:        opts.Clock,
		logger:       opts.Logger.WithField("theater", theater.ID),
		fetchTimeout: opts.FetchTimeout,
	}
}

// Theater returns the source's configuration
func (s *Source) Theater() config.Theater { return s.theater }

// Scrape fetches the theater's listing page and extracts its movies.
// Failures never escape: they come back as a skippable outcome with zero
// records and a diagnostic.
func (s *Source) Scrape(ctx context.Context, fetcher fetch.Fetcher) (result Result) {
	start := s.clock.Now()
	diags := errs.NewDiagnostics(s.clock)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while scraping %s: %v", s.theater.Name, r)
			s.logger.Errorf("%v", err)
			diags.Skippable(s.theater.ID, errs.StageExtract, err)
			result = s.failed(err, diags)
		}
		result.Duration = s.clock.Since(start)
	}()

	doc, err := fetcher.Fetch(ctx, fetch.Request{
		URL:     s.theater.URL(),
		WaitFor: s.theater.WaitFor,
		Timeout: s.fetchTimeout,
	})
	if err != nil {
		err = fmt.Errorf("fetch %s: %w", s.theater.URL(), err)
		s.logger.Warnf("Error scraping %s: %v", s.theater.Name, err)
		diags.Skippable(s.theater.ID, errs.StageFetch, err)
		return s.failed(err, diags)
	}

	return s.extract(doc, diags)
}

// Extract runs the extraction strategies over an already loaded document
func (s *Source) Extract(doc *goquery.Document) Result {
	return s.extract(doc, errs.NewDiagnostics(s.clock))
}

func (s *Source) extract(doc *goquery.Document, diags *errs.Diagnostics) Result {
	if doc == nil {
		err := fmt.Errorf("no document for %s", s.theater.Name)
		diags.Skippable(s.theater.ID, errs.StageParse, err)
		return s.failed(err, diags)
	}

	strategy := StrategyStructured
	payload, err := findStructuredData(doc, func(err error) {
		diags.Skippable(s.theater.ID, errs.StageParse, err)
	})

	var raw []rawMovie
	if err == nil {
		raw = s.processStructuredData(payload)
	} else {
		strategy = StrategyHTMLFallback
		raw = s.extractFromHTML(doc)
	}

	records := make([]types.MovieRecord, 0, len(raw))
	for _, r := range raw {
		record := s.standardize(r)
		if record.IsValid() {
			records = append(records, record)
		}
	}

	s.logger.Infof("Extracted %d movies from %s (%s)", len(records), s.theater.Name, strategy)
	return Result{
		TheaterID:   s.theater.ID,
		Outcome:     errs.Success(records),
		Strategy:    strategy,
		Diagnostics: diags.Items(),
	}
}

func (s *Source) failed(err error, diags *errs.Diagnostics) Result {
	return Result{
		TheaterID:   s.theater.ID,
		Outcome:     errs.Skip([]types.MovieRecord{}, err),
		Strategy:    StrategyNone,
		Diagnostics: diags.Items(),
	}
}

// rawMovie is a record before cleaning
type rawMovie struct {
	title         string
	description   string
	showtimes     []string
	links         []types.ShowtimeLink
	imdbURL       string
	rating        string
	contentRating string
	// linkEveryShowtime points one purchase link at each cleaned showtime
	linkEveryShowtime bool
}

func (s *Source) standardize(r rawMovie) types.MovieRecord {
	title, _ := text.CleanTitle(r.title)
	showtimes := showtime.CleanAndDedupe(r.showtimes)

	links := r.links
	if r.linkEveryShowtime {
		links = make([]types.ShowtimeLink, 0, len(showtimes))
		for _, t := range showtimes {
			links = append(links, types.ShowtimeLink{Time: t, URL: s.theater.PurchaseURL})
		}
	}
	if links == nil {
		links = []types.ShowtimeLink{}
	}

	return types.MovieRecord{
		Title:         title,
		Description:   text.CleanDescription(r.description, text.DefaultDescriptionLength),
		Showtimes:     showtimes,
		ShowtimeLinks: links,
		Theater:       s.theater.Name,
		SourceURL:     s.theater.URL(),
		ScrapedAt:     s.clock.Now(),
		IMDbURL:       r.imdbURL,
		Rating:        r.rating,
		ContentRating: r.contentRating,
	}
}
