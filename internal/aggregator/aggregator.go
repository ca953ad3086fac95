// internal/aggregator/aggregator.go
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/ShowtimeScrapexter/internal/config"
	"github.com/valpere/ShowtimeScrapexter/internal/dedupe"
	"github.com/valpere/ShowtimeScrapexter/internal/enrich"
	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
	"github.com/valpere/ShowtimeScrapexter/internal/fetch"
	"github.com/valpere/ShowtimeScrapexter/internal/scraper"
	"github.com/valpere/ShowtimeScrapexter/internal/utils"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// DefaultSourceTimeout bounds one source when Options carries none
const DefaultSourceTimeout = 45 * time.Second

// Scraper is one theater's extraction pipeline
type Scraper interface {
	Theater() config.Theater
	Scrape(ctx context.Context, fetcher fetch.Fetcher) scraper.Result
}

// Recorder receives run measurements. monitoring.Metrics satisfies it.
type Recorder interface {
	ObserveSource(theater, strategy string, movies int, duration time.Duration, err error)
	ObserveDiagnostic(stage, kind string)
	ObserveRun(movies, theaters int, duration time.Duration, finished time.Time, err error)
}

// Options configures an Orchestrator
type Options struct {
	// Concurrency is the number of sources scraped at once; 1 is sequential
	Concurrency   int
	SourceTimeout time.Duration

	// Enricher is optional; nil skips metadata lookups
	Enricher      enrich.Enricher
	EnrichOptions enrich.Options

	Clock    clockwork.Clock
	Logger   utils.Logger
	Recorder Recorder
}

// SourceReport summarizes one source's contribution to a run
type SourceReport struct {
	TheaterID string        `json:"theater_id"`
	Theater   string        `json:"theater"`
	Movies    int           `json:"movies"`
	Strategy  string        `json:"strategy"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunReport is the result of one aggregation run
type RunReport struct {
	RunID       string                `json:"run_id"`
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
	Catalog     *types.TheaterCatalog `json:"catalog"`
	Sources     []SourceReport        `json:"sources"`
	Diagnostics []errs.Diagnostic     `json:"diagnostics"`
}

// TheaterCount is one line of the per-theater summary
type TheaterCount struct {
	Theater string
	Movies  int
}

// TheaterCounts returns movie counts per theater in catalog order
func (r *RunReport) TheaterCounts() []TheaterCount {
	if r == nil || r.Catalog == nil {
		return nil
	}
	counts := make([]TheaterCount, 0, len(r.Catalog.Theaters))
	for _, name := range r.Catalog.Theaters {
		counts = append(counts, TheaterCount{Theater: name, Movies: len(r.Catalog.MoviesAt(name))})
	}
	return counts
}

// Orchestrator runs every source and assembles the catalog
type Orchestrator struct {
	sources []Scraper
	fetcher fetch.Fetcher
	opts    Options
	clock   clockwork.Clock
	logger  utils.Logger
}

// New creates an orchestrator over sources in registration order. The
// fetcher is owned by the caller.
func New(sources []Scraper, fetcher fetch.Fetcher, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if opts.EnrichOptions.Logger == nil {
		opts.EnrichOptions.Logger = opts.Logger
	}

	return &Orchestrator{
		sources: sources,
		fetcher: fetcher,
		opts:    opts,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
}

// SourcesFromRegistry builds one scraper per enabled theater
func SourcesFromRegistry(registry *config.Registry, opts scraper.Options) []Scraper {
	enabled := registry.Enabled()
	sources := make([]Scraper, 0, len(enabled))
	for _, theater := range enabled {
		sources = append(sources, scraper.NewSource(theater, opts))
	}
	return sources
}

// Run scrapes every source, dedupes and enriches each source's records,
// and returns the sorted catalog. Source failures are reported in the
// run's diagnostics and never fail the run. Only cancellation of ctx
// does.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	runID := uuid.NewString()
	logger := o.logger.WithField("run_id", runID)
	start := o.clock.Now()

	logger.Infof("Starting run over %d theaters (concurrency %d)", len(o.sources), o.opts.Concurrency)

	results := make([]scraper.Result, len(o.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)
	for i, source := range o.sources {
		i, source := i, source
		g.Go(func() error {
			results[i] = o.scrapeOne(gctx, source)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		o.observeRun(0, 0, start, err)
		return nil, fmt.Errorf("run %s cancelled: %w", runID, err)
	}

	diags := errs.NewDiagnostics(o.clock)
	reports := make([]SourceReport, len(o.sources))
	perSource := make([][]types.MovieRecord, len(o.sources))

	for i, source := range o.sources {
		theater := source.Theater()
		result := results[i]
		diags.Merge(result.Diagnostics)

		records := dedupe.RemoveDuplicatesByTitle(result.Records())
		perSource[i] = records

		report := SourceReport{
			TheaterID: theater.ID,
			Theater:   theater.Name,
			Movies:    len(records),
			Strategy:  string(result.Strategy),
			Duration:  result.Duration,
		}
		if result.Outcome.Err != nil {
			report.Error = result.Outcome.Err.Error()
		}
		reports[i] = report

		if o.opts.Recorder != nil {
			o.opts.Recorder.ObserveSource(theater.ID, report.Strategy, report.Movies, result.Duration, result.Outcome.Err)
		}
	}

	if o.opts.Enricher != nil {
		for i, source := range o.sources {
			perSource[i] = enrich.Records(ctx, o.opts.Enricher, perSource[i], o.opts.EnrichOptions, diags, source.Theater().ID)
		}
	}

	var movies []types.MovieRecord
	for _, records := range perSource {
		movies = append(movies, records...)
	}
	catalog := BuildCatalog(movies, start)

	report := &RunReport{
		RunID:       runID,
		StartedAt:   start,
		Duration:    o.clock.Since(start),
		Catalog:     catalog,
		Sources:     reports,
		Diagnostics: diags.Items(),
	}
	if report.Diagnostics == nil {
		report.Diagnostics = []errs.Diagnostic{}
	}

	for _, d := range report.Diagnostics {
		logger.Warnf("%s", d)
		if o.opts.Recorder != nil {
			o.opts.Recorder.ObserveDiagnostic(string(d.Stage), d.Kind.String())
		}
	}
	o.observeRun(catalog.TotalMovies, len(catalog.Theaters), start, nil)

	logger.Infof("Run finished: %d movies from %d theaters in %s", catalog.TotalMovies, len(catalog.Theaters), report.Duration)
	return report, nil
}

func (o *Orchestrator) scrapeOne(ctx context.Context, source Scraper) scraper.Result {
	theater := source.Theater()
	sctx, cancel := context.WithTimeout(ctx, o.opts.SourceTimeout)
	defer cancel()

	o.logger.Debugf("Scraping %s", theater.Name)
	result := source.Scrape(sctx, o.fetcher)
	if result.TheaterID == "" {
		result.TheaterID = theater.ID
	}
	if result.Strategy == "" {
		result.Strategy = scraper.StrategyNone
	}
	o.logger.Infof("%s: %d movies (%s)", theater.Name, len(result.Records()), result.Strategy)
	return result
}

func (o *Orchestrator) observeRun(movies, theaters int, start time.Time, err error) {
	if o.opts.Recorder == nil {
		return
	}
	o.opts.Recorder.ObserveRun(movies, theaters, o.clock.Since(start), o.clock.Now(), err)
}

// BuildCatalog sorts copies of movies by theater then title and derives
// the theater set. Slices in the result are never nil.
func BuildCatalog(movies []types.MovieRecord, scrapedAt time.Time) *types.TheaterCatalog {
	sorted := make([]types.MovieRecord, 0, len(movies))
	for _, m := range movies {
		sorted = append(sorted, m.Clone())
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Theater != sorted[j].Theater {
			return sorted[i].Theater < sorted[j].Theater
		}
		return sorted[i].Title < sorted[j].Title
	})

	theaters := []string{}
	for _, m := range sorted {
		if len(theaters) == 0 || theaters[len(theaters)-1] != m.Theater {
			theaters = append(theaters, m.Theater)
		}
	}

	return &types.TheaterCatalog{
		ScrapedAt:   scrapedAt,
		TotalMovies: len(sorted),
		Theaters:    theaters,
		Movies:      sorted,
	}
}
