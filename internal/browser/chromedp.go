// internal/browser/chromedp.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"github.com/valpere/ShowtimeScrapexter/internal/fetch"
	"github.com/valpere/ShowtimeScrapexter/internal/utils"
)

// ChromeFetcher renders pages in headless Chrome. One browser process is
// started per fetcher; every Fetch opens and closes its own tab, so
// concurrent fetches are safe.
type ChromeFetcher struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	config        *BrowserConfig
	logger        utils.Logger

	statsMu sync.Mutex
	stats   BrowserStats
}

// NewChromeFetcher launches Chrome. The caller must Close the fetcher.
func NewChromeFetcher(config *BrowserConfig, logger utils.Logger) (*ChromeFetcher, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(config)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	f := &ChromeFetcher{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		config:        config,
		logger:        logger,
	}

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return f, nil
}

func allocatorOptions(config *BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}

	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(config.UserDataDir))
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.ViewportWidth > 0 && config.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight))
	}
	if config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	return opts
}

// Fetch navigates a fresh tab to req.URL and returns the rendered DOM.
// A missing WaitFor marker is logged and the page is used as loaded.
func (f *ChromeFetcher) Fetch(ctx context.Context, req fetch.Request) (*goquery.Document, error) {
	start := time.Now()

	tabCtx, closeTab := chromedp.NewContext(f.browserCtx)
	defer closeTab()

	if req.Timeout <= 0 {
		req.Timeout = f.config.Timeout
	}
	tabCtx, cancel := fetch.WithTimeout(tabCtx, req)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tabCtx, chromedp.Navigate(req.URL), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		f.recordError()
		return nil, fmt.Errorf("navigation to %s failed: %w", req.URL, err)
	}

	if req.WaitFor != "" {
		f.waitForMarker(tabCtx, req)
	}

	if f.config.WaitDelay > 0 {
		if err := chromedp.Run(tabCtx, chromedp.Sleep(f.config.WaitDelay)); err != nil {
			f.recordError()
			return nil, fmt.Errorf("wait on %s interrupted: %w", req.URL, err)
		}
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		f.recordError()
		return nil, fmt.Errorf("failed to read HTML of %s: %w", req.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		f.recordError()
		return nil, fmt.Errorf("parse %s: %w", req.URL, err)
	}

	f.recordLoad(time.Since(start))
	return doc, nil
}

func (f *ChromeFetcher) waitForMarker(tabCtx context.Context, req fetch.Request) {
	waitCtx := tabCtx
	if f.config.WaitForTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(tabCtx, f.config.WaitForTimeout)
		defer cancel()
	}

	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(req.WaitFor, chromedp.ByQuery)); err != nil {
		f.statsMu.Lock()
		f.stats.MarkersMissed++
		f.statsMu.Unlock()
		f.logger.WithField("url", req.URL).Debugf("marker %q not found, continuing: %v", req.WaitFor, err)
	}
}

func (f *ChromeFetcher) recordLoad(d time.Duration) {
	f.statsMu.Lock()
	defer f.statsMu.Unlock()

	f.stats.PagesLoaded++
	if f.stats.PagesLoaded == 1 {
		f.stats.AverageLoadTime = d
	} else {
		f.stats.AverageLoadTime = (f.stats.AverageLoadTime + d) / 2
	}
}

func (f *ChromeFetcher) recordError() {
	f.statsMu.Lock()
	f.stats.Errors++
	f.statsMu.Unlock()
}

// GetStats returns a copy of the fetcher statistics
func (f *ChromeFetcher) GetStats() BrowserStats {
	f.statsMu.Lock()
	defer f.statsMu.Unlock()
	return f.stats
}

// Close shuts down the browser process
func (f *ChromeFetcher) Close() error {
	if f.browserCancel != nil {
		f.browserCancel()
	}
	if f.allocCancel != nil {
		f.allocCancel()
	}
	return nil
}

var _ fetch.Fetcher = (*ChromeFetcher)(nil)
