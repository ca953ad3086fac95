// internal/fetch/client.go
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
	"github.com/valpere/ShowtimeScrapexter/internal/utils"
)

// HTTPFetcher fetches pages over plain HTTP with pacing, user agent
// rotation and retry on transient statuses.
type HTTPFetcher struct {
	httpClient    *http.Client
	userAgents    []string
	currentUA     int
	uaMutex       sync.Mutex
	rateLimiter   *rate.Limiter
	retryAttempts int
	retryDelay    time.Duration
	headers       map[string]string
	logger        utils.Logger
}

// ClientConfig defines configuration options for the HTTP fetcher
type ClientConfig struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	UserAgents    []string
	Headers       map[string]string
	RateLimit     float64 // requests per second
	RateBurst     int
	Transport     http.RoundTripper
	Logger        utils.Logger
}

// NewHTTPFetcher creates a fetcher, filling unset options with defaults.
// A negative RetryAttempts disables retries.
func NewHTTPFetcher(config ClientConfig) *HTTPFetcher {
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 2
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 1.0
	}
	if config.RateBurst == 0 {
		config.RateBurst = 2
	}
	if len(config.UserAgents) == 0 {
		config.UserAgents = DefaultUserAgents()
	}
	if config.Logger == nil {
		config.Logger = utils.NewNopLogger()
	}

	transport := config.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &HTTPFetcher{
		httpClient:    &http.Client{Timeout: config.Timeout, Transport: transport},
		userAgents:    config.UserAgents,
		rateLimiter:   rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		retryAttempts: config.RetryAttempts,
		retryDelay:    config.RetryDelay,
		headers:       config.Headers,
		logger:        config.Logger,
	}
}

// Fetch GETs req.URL and parses the body. Non-2xx responses are returned
// as *HTTPError after retries are exhausted.
func (c *HTTPFetcher) Fetch(ctx context.Context, req Request) (*goquery.Document, error) {
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", req.URL, err)
	}

	ctx, cancel := WithTimeout(ctx, req)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= c.retryAttempts; attempt++ {
		if attempt > 0 {
			if err := c.waitForRetry(ctx, attempt-1); err != nil {
				return nil, err
			}
		}

		doc, err := c.fetchOnce(ctx, req.URL, attempt+1)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryableError(err) {
			break
		}
		c.logger.WithField("url", req.URL).Debugf("retrying after attempt %d: %v", attempt+1, err)
	}

	return nil, lastErr
}

func (c *HTTPFetcher) fetchOnce(ctx context.Context, target string, attempt int) (*goquery.Document, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setRequestHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{URL: target, Attempt: attempt, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        target,
			Attempt:    attempt,
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	return doc, nil
}

// Close releases idle connections
func (c *HTTPFetcher) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPFetcher) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}

func (c *HTTPFetcher) nextUserAgent() string {
	c.uaMutex.Lock()
	defer c.uaMutex.Unlock()

	ua := c.userAgents[c.currentUA]
	c.currentUA = (c.currentUA + 1) % len(c.userAgents)
	return ua
}

// waitForRetry sleeps with exponential backoff plus jitter, or until ctx ends
func (c *HTTPFetcher) waitForRetry(ctx context.Context, attempt int) error {
	backoff := c.retryDelay * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(backoff/2) + 1))
	delay := backoff + jitter
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DefaultUserAgents returns a set of realistic desktop browser user agents
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}
}

// HTTPError represents a non-2xx response
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
	Attempt    int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s, attempt: %d)", e.StatusCode, e.Status, e.URL, e.Attempt)
}

// Retryable reports whether the status is worth another attempt
func (e *HTTPError) Retryable() bool {
	switch e.StatusCode {
	case 429, 500, 502, 503, 504, 520, 521, 522, 523, 524:
		return true
	}
	return false
}

// NetworkError wraps a transport failure
type NetworkError struct {
	URL     string
	Attempt int
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed (attempt %d): %v", e.URL, e.Attempt, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports true; transport failures are usually transient
func (e *NetworkError) Retryable() bool { return true }

// IsRetryableError checks if an error indicates the request should be retried
func IsRetryableError(err error) bool {
	var r errs.Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
