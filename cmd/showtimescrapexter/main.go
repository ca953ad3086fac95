// cmd/showtimescrapexter/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/valpere/ShowtimeScrapexter/internal/aggregator"
	"github.com/valpere/ShowtimeScrapexter/internal/browser"
	"github.com/valpere/ShowtimeScrapexter/internal/config"
	"github.com/valpere/ShowtimeScrapexter/internal/enrich"
	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
	"github.com/valpere/ShowtimeScrapexter/internal/fetch"
	"github.com/valpere/ShowtimeScrapexter/internal/monitoring"
	"github.com/valpere/ShowtimeScrapexter/internal/output"
	"github.com/valpere/ShowtimeScrapexter/internal/scraper"
	"github.com/valpere/ShowtimeScrapexter/internal/server"
	"github.com/valpere/ShowtimeScrapexter/internal/utils"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// exportDir is where extra formats are written, relative to the output directory
const exportDir = "exports"

// cli carries the parsed flags and output streams of one invocation
type cli struct {
	configFile string
	verbose    bool
	args       []string

	stdout       io.Writer
	stderr       io.Writer
	errorService *errs.Service
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a command and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 1
	}

	c := parseArgs(args[1:], stdout, stderr)
	command := args[0]

	var err error
	switch command {
	case "run":
		err = c.runAggregation()
	case "validate":
		if c.configFile == "" && len(c.args) > 0 {
			c.configFile = c.args[0]
		}
		if c.configFile == "" {
			fmt.Fprintf(stderr, "Error: config file required\n")
			fmt.Fprintf(stderr, "Usage: showtimescrapexter validate <config.yaml>\n")
			return 1
		}
		err = c.validateConfig()
	case "theaters":
		err = c.listTheaters()
	case "timeline":
		err = c.printTimeline()
	case "inspect":
		if len(c.args) == 0 {
			fmt.Fprintf(stderr, "Error: theater id required\n")
			fmt.Fprintf(stderr, "Usage: showtimescrapexter inspect <theater-id> [-c config.yaml]\n")
			return 1
		}
		err = c.inspectTheater(c.args[0])
	case "export":
		err = c.exportSnapshot()
	case "serve":
		err = c.serve()
	case "template":
		err = config.SaveToWriter(config.GenerateTemplate(), stdout)
	case "version", "--version":
		printVersion(stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Error: unknown command '%s'\n", command)
		printUsage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprint(stderr, c.errorService.FormatErrorForCLI(err))
		return c.errorService.GetExitCode(err)
	}
	return 0
}

// parseArgs pulls -c/--config and -v/--verbose out of args; everything
// else is positional
func parseArgs(args []string, stdout, stderr io.Writer) *cli {
	c := &cli{stdout: stdout, stderr: stderr}
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "-v" || arg == "--verbose":
			c.verbose = true
		case (arg == "-c" || arg == "--config") && i+1 < len(args):
			c.configFile = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			c.configFile = strings.TrimPrefix(arg, "--config=")
		default:
			c.args = append(c.args, arg)
		}
	}
	c.errorService = errs.NewService().WithVerbose(c.verbose)
	return c
}

// loadConfig reads the configured file, or the defaults when none is given
func (c *cli) loadConfig() (*config.Config, error) {
	if c.configFile == "" {
		if err := config.LoadEnv(".env"); err != nil {
			return nil, err
		}
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(c.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func (c *cli) newLogger(cfg *config.Config) (utils.Logger, error) {
	level := cfg.LogLevel
	if c.verbose {
		level = "debug"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:  level,
		Format: cfg.LogFormat,
		Output: c.stderr,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrConfig, err)
	}
	return logger, nil
}

func snapshotStore(cfg *config.Config) *output.Store {
	return output.NewStore(nil, cfg.Output.Directory, cfg.Output.SnapshotFile)
}

// runAggregation scrapes every enabled theater, writes the snapshot and
// any extra export formats, and prints the per-theater summary
func (c *cli) runAggregation() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return err
	}
	registry, err := config.LoadRegistry(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	metrics := monitoring.NewMetrics(monitoring.MetricsConfig{})

	opts := aggregator.Options{
		Concurrency:   cfg.Concurrency,
		SourceTimeout: cfg.SourceTimeout,
		EnrichOptions: enrich.Options{
			MaxMovies:           cfg.Enrichment.MaxMovies,
			EnhanceDescriptions: cfg.Enrichment.EnhanceDescriptions,
			Logger:              logger,
		},
		Logger:   logger,
		Recorder: metrics,
	}
	if cfg.Enrichment.Enabled {
		client, err := enrich.NewClient(enrich.Config{
			BaseURL:       cfg.Enrichment.BaseURL,
			APIKey:        cfg.Enrichment.APIKey,
			Timeout:       cfg.Enrichment.Timeout,
			RateLimit:     cfg.Enrichment.RateLimit,
			SearchLimit:   cfg.Enrichment.SearchLimit,
			MinSimilarity: cfg.Enrichment.MinSimilarity,
			MaxFailures:   cfg.Enrichment.MaxFailures,
			UseFallback:   cfg.Enrichment.UseFallback,
			ErrorService:  c.errorService,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		opts.Enricher = client
	}

	sources := aggregator.SourcesFromRegistry(registry, scraper.Options{
		Logger:       logger,
		FetchTimeout: cfg.Fetch.Timeout,
	})
	report, err := aggregator.New(sources, fetcher, opts).Run(ctx)
	if err != nil {
		return err
	}

	store := snapshotStore(cfg)
	catalog := report.Catalog
	err = c.errorService.ExecuteWithRetry(ctx, func() error {
		saved, err := aggregator.Persist(store, report.Catalog, cfg.KeepPreviousOnEmpty, logger)
		if err != nil {
			return err
		}
		catalog = saved
		return nil
	}, "snapshot")
	if err != nil {
		return err
	}

	if len(cfg.Output.Formats) > 0 {
		manager, err := output.NewManager(nil, filepath.Join(cfg.Output.Directory, exportDir), cfg.Output.SnapshotFile, cfg.Output.Formats)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrConfig, err)
		}
		paths, err := manager.Export(catalog)
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrStorage, err)
		}
		for _, p := range paths {
			logger.Infof("Exported %s", p)
		}
	}

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteToTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warnf("%v", err)
		}
	}

	printSummary(c.stdout, report, catalog, store.Path())
	return nil
}

func printSummary(w io.Writer, report *aggregator.RunReport, kept *types.TheaterCatalog, path string) {
	fmt.Fprintf(w, "Run %s finished in %s\n", report.RunID, report.Duration.Round(time.Millisecond))
	for _, tc := range report.TheaterCounts() {
		fmt.Fprintf(w, "  %s: %d movies\n", tc.Theater, tc.Movies)
	}
	for _, s := range report.Sources {
		if s.Error != "" {
			fmt.Fprintf(w, "  %s: failed (%s)\n", s.Theater, s.Error)
		}
	}
	fmt.Fprintf(w, "Total: %d movies from %d theaters\n", report.Catalog.TotalMovies, len(report.Catalog.Theaters))
	if len(report.Diagnostics) > 0 {
		fmt.Fprintf(w, "Diagnostics: %d (re-run with -v for details)\n", len(report.Diagnostics))
	}
	if report.Catalog.IsEmpty() && !kept.IsEmpty() {
		fmt.Fprintf(w, "⚠ No movies found; kept the previous snapshot at %s\n", path)
		return
	}
	fmt.Fprintf(w, "Snapshot saved to %s\n", path)
}

// newFetcher builds the fetcher selected by fetch.mode. The caller closes it.
func newFetcher(cfg *config.Config, logger utils.Logger) (fetch.Fetcher, error) {
	if cfg.Fetch.Mode == "browser" {
		bc := browser.DefaultBrowserConfig()
		bc.Headless = cfg.Fetch.Headless
		if cfg.Fetch.Timeout > 0 {
			bc.Timeout = cfg.Fetch.Timeout
		}
		if cfg.Fetch.WaitDelay > 0 {
			bc.WaitDelay = cfg.Fetch.WaitDelay
		}
		if cfg.Fetch.WaitForTimeout > 0 {
			bc.WaitForTimeout = cfg.Fetch.WaitForTimeout
		}
		if len(cfg.Fetch.UserAgents) > 0 {
			bc.UserAgent = cfg.Fetch.UserAgents[0]
		}
		return browser.NewChromeFetcher(bc, logger)
	}

	return fetch.NewHTTPFetcher(fetch.ClientConfig{
		Timeout:       cfg.Fetch.Timeout,
		RetryAttempts: cfg.Fetch.RetryAttempts,
		RetryDelay:    cfg.Fetch.RetryDelay,
		UserAgents:    cfg.Fetch.UserAgents,
		RateLimit:     cfg.Fetch.RateLimit,
		RateBurst:     cfg.Fetch.RateBurst,
		Logger:        logger,
	}), nil
}

func (c *cli) validateConfig() error {
	cfg, err := config.LoadFromFile(c.configFile)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	registry, err := config.LoadRegistry(cfg)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(c.stdout, "✓ Configuration file '%s' is valid\n", c.configFile)
	if c.verbose {
		fmt.Fprintf(c.stdout, "Configuration details:\n")
		fmt.Fprintf(c.stdout, "  Theaters: %d (%d enabled)\n", registry.Len(), len(registry.Enabled()))
		fmt.Fprintf(c.stdout, "  Fetch mode: %s\n", cfg.Fetch.Mode)
		fmt.Fprintf(c.stdout, "  Concurrency: %d\n", cfg.Concurrency)
		fmt.Fprintf(c.stdout, "  Enrichment: %t\n", cfg.Enrichment.Enabled)
		fmt.Fprintf(c.stdout, "  Snapshot: %s\n", filepath.Join(cfg.Output.Directory, cfg.Output.SnapshotFile))
	}
	return nil
}

func (c *cli) listTheaters() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	registry, err := config.LoadRegistry(cfg)
	if err != nil {
		return err
	}

	for _, t := range registry.All() {
		status := "enabled"
		if !t.IsEnabled() {
			status = "disabled"
		}
		fmt.Fprintf(c.stdout, "%s (%s) [%s]\n", t.Name, t.ID, status)
		if addr := t.Location.FullAddress(); addr != "" {
			fmt.Fprintf(c.stdout, "  Address:  %s\n", addr)
		}
		if len(t.Features) > 0 {
			fmt.Fprintf(c.stdout, "  Features: %s\n", strings.Join(t.Features, ", "))
		}
		fmt.Fprintf(c.stdout, "  Source:   %s\n", t.URL())
		fmt.Fprintf(c.stdout, "  Tickets:  %s\n", t.PurchaseURL)
	}
	return nil
}

// inspectTheater fetches one theater's page and prints what the extraction
// helpers find on it
func (c *cli) inspectTheater(id string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	registry, err := config.LoadRegistry(cfg)
	if err != nil {
		return err
	}
	theater, ok := registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: unknown theater %q", errs.ErrValidation, id)
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	source := scraper.NewSource(theater, scraper.Options{Logger: logger, FetchTimeout: cfg.Fetch.Timeout})
	report, err := source.Inspect(ctx, fetcher, scraper.DefaultInspectLimit)
	if err != nil {
		return err
	}
	printInspection(c.stdout, theater, report)
	return nil
}

func printInspection(w io.Writer, theater config.Theater, report scraper.PageReport) {
	fmt.Fprintf(w, "%s (%s)\n", theater.Name, report.URL)
	if report.Structured {
		fmt.Fprintf(w, "Structured data: %d events\n", report.Events)
	} else {
		fmt.Fprintln(w, "Structured data: none")
	}

	fmt.Fprintf(w, "Listing blocks: %d\n", len(report.Candidates))
	for _, cand := range report.Candidates {
		fmt.Fprintf(w, "  <%s class=%q> %s\n", cand.Tag, cand.Class, cand.Title)
		if cand.Description != "" {
			fmt.Fprintf(w, "    %s\n", cand.Description)
		}
		fmt.Fprintf(w, "    Showtimes: %s\n", strings.Join(cand.Showtimes, ", "))
		for _, link := range cand.Links {
			fmt.Fprintf(w, "    %s -> %s\n", link.Time, link.URL)
		}
	}

	for _, tab := range report.Tabs {
		fmt.Fprintf(w, "Tab %s: %s\n", tab.Header, strings.Join(tab.Times, ", "))
	}
}

func (c *cli) printTimeline() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	catalog, err := snapshotStore(cfg).Load()
	if err != nil {
		return err
	}

	for _, entry := range aggregator.BuildTimeline(catalog.Movies) {
		fmt.Fprintf(c.stdout, "%s\n", entry.Time)
		for _, m := range entry.Movies {
			fmt.Fprintf(c.stdout, "  %s (%s)\n", m.Title, m.Theater)
		}
	}
	return nil
}

func (c *cli) exportSnapshot() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	catalog, err := snapshotStore(cfg).Load()
	if err != nil {
		return err
	}

	formats := cfg.Output.Formats
	if len(c.args) > 0 {
		formats = c.args
	}
	if len(formats) == 0 {
		for _, f := range output.ValidOutputFormats() {
			formats = append(formats, string(f))
		}
	}

	manager, err := output.NewManager(nil, filepath.Join(cfg.Output.Directory, exportDir), cfg.Output.SnapshotFile, formats)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	paths, err := manager.Export(catalog)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorage, err)
	}
	for _, p := range paths {
		fmt.Fprintf(c.stdout, "Exported %s\n", p)
	}
	return nil
}

func (c *cli) serve() error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger, err := c.newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(snapshotStore(cfg), server.Options{
		Address:        cfg.Server.Address,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		SnapshotMaxAge: cfg.Server.SnapshotMaxAge,
		Version:        version,
		Metrics:        monitoring.NewMetrics(monitoring.MetricsConfig{EnableGoMetrics: true}),
		Logger:         logger,
	})
	return srv.ListenAndServe(ctx)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "ShowtimeScrapexter - Independent cinema showtime aggregator")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  showtimescrapexter run [-c config.yaml]        Scrape every theater and write the snapshot")
	fmt.Fprintln(w, "  showtimescrapexter validate <config.yaml>      Validate configuration and theater registry")
	fmt.Fprintln(w, "  showtimescrapexter theaters [-c config.yaml]   List configured theaters")
	fmt.Fprintln(w, "  showtimescrapexter timeline [-c config.yaml]   Print the stored showtimes by time")
	fmt.Fprintln(w, "  showtimescrapexter inspect <theater-id>        Show the listing blocks found on a theater page")
	fmt.Fprintln(w, "  showtimescrapexter export [-c config.yaml] [formats...]")
	fmt.Fprintln(w, "                                                 Re-export the stored snapshot")
	fmt.Fprintln(w, "  showtimescrapexter serve [-c config.yaml]      Serve the snapshot over HTTP")
	fmt.Fprintln(w, "  showtimescrapexter template                    Generate configuration template")
	fmt.Fprintln(w, "  showtimescrapexter version                     Show version information")
	fmt.Fprintln(w, "  showtimescrapexter help                        Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -c, --config <file>                            Configuration file")
	fmt.Fprintln(w, "  -v, --verbose                                  Enable verbose output")
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "ShowtimeScrapexter %s\n", version)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
	fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
}
