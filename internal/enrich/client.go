// internal/enrich/client.go
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"
	"golang.org/x/time/rate"

	errs "github.com/valpere/ShowtimeScrapexter/internal/errors"
	"github.com/valpere/ShowtimeScrapexter/internal/text"
	"github.com/valpere/ShowtimeScrapexter/internal/utils"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// BreakerName identifies the lookup service's circuit breaker
const BreakerName = "enrichment"

const (
	defaultTimeout       = 3 * time.Second
	defaultRateLimit     = 10.0
	defaultSearchLimit   = 5
	defaultMinSimilarity = 0.6
	defaultMaxFailures   = 3
	maxResponseBytes     = 1 << 20
)

// unavailableStatus marks responses that mean the service is down rather
// than that a title is unknown
var unavailableStatus = map[int]bool{
	http.StatusNotFound:            true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var trailingYear = regexp.MustCompile(`\s*\(\d{4}\)\s*$`)

// Config configures a Client
type Config struct {
	BaseURL       string
	APIKey        string
	UserAgent     string
	Timeout       time.Duration
	RateLimit     float64
	SearchLimit   int
	MinSimilarity float64
	MaxFailures   int
	// UseFallback answers well-known titles from a built-in table when the
	// service fails
	UseFallback  bool
	HTTPClient   *http.Client
	ErrorService *errs.Service
	Logger       utils.Logger
}

// Client looks up film metadata through a title-search API
type Client struct {
	baseURL    string
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *errs.CircuitBreaker
	logger     utils.Logger
}

// NewClient creates a lookup client. The circuit breaker is shared through
// the error service so its state shows up in the service's stats.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid enrichment base URL %q", errs.ErrConfig, cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = defaultSearchLimit
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = defaultMinSimilarity
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.ErrorService == nil {
		cfg.ErrorService = errs.NewService()
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.NewNopLogger()
	}

	return &Client{
		baseURL:    base.String(),
		config:     cfg,
		httpClient: cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		// No reset timeout: once the service is down it stays skipped for the run.
		breaker: cfg.ErrorService.Breaker(BreakerName, errs.CircuitBreakerConfig{MaxFailures: cfg.MaxFailures}),
		logger:  cfg.Logger.WithField("component", "enrichment"),
	}, nil
}

// Breaker exposes the client's circuit breaker
func (c *Client) Breaker() *errs.CircuitBreaker { return c.breaker }

// Lookup searches for title and returns the closest result
func (c *Client) Lookup(ctx context.Context, title string, year int) (*types.Metadata, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrNotFound
	}

	if !c.breaker.CanExecute() {
		c.logger.Debugf("Skipping lookup for '%s': service appears to be down", title)
		return c.fallback(title, errs.ErrCircuitOpen)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	results, err := c.search(ctx, CleanTitleForSearch(title), year)
	if err != nil {
		var unavailable *UnavailableError
		switch {
		case errors.As(err, &unavailable) || isTimeout(err):
			c.logger.Warnf("Lookup service unavailable, disabling further lookups: %v", err)
			c.breaker.Trip()
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			c.breaker.RecordFailure()
		}
		return c.fallback(title, err)
	}
	c.breaker.RecordSuccess()

	best, ok := selectBest(results, CleanTitleForSearch(title), year, c.config.MinSimilarity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	return best.metadata(), nil
}

func (c *Client) fallback(title string, cause error) (*types.Metadata, error) {
	if c.config.UseFallback {
		if meta, ok := Fallback(title); ok {
			c.logger.Debugf("Using fallback data for '%s'", title)
			return meta, nil
		}
	}
	return nil, fmt.Errorf("lookup %q: %w", title, cause)
}

func (c *Client) search(ctx context.Context, query string, year int) ([]searchTitle, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(c.config.SearchLimit))
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}
	endpoint := c.baseURL + "/search/titles?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		if unavailableStatus[resp.StatusCode] {
			return nil, &UnavailableError{StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return payload.Titles, nil
}

// CleanTitleForSearch drops a trailing "(YYYY)" and a leading "The "
func CleanTitleForSearch(title string) string {
	title = strings.TrimSpace(title)
	title = trailingYear.ReplaceAllString(title, "")
	if strings.HasPrefix(strings.ToLower(title), "the ") {
		title = title[4:]
	}
	return title
}

// selectBest picks the result whose title is closest to query. A result
// from the requested year wins ties.
func selectBest(results []searchTitle, query string, year int, minSimilarity float64) (searchTitle, bool) {
	want := text.NormalizeForComparison(query)

	var (
		best      searchTitle
		bestScore float32 = -1
	)
	for _, r := range results {
		score := edlib.JaroWinklerSimilarity(want, text.NormalizeForComparison(CleanTitleForSearch(r.PrimaryTitle)))
		if score > bestScore || (score == bestScore && year > 0 && r.StartYear == year && best.StartYear != year) {
			best, bestScore = r, score
		}
	}

	if bestScore < float32(minSimilarity) {
		return searchTitle{}, false
	}
	return best, true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// UnavailableError is a response status that means the service is down
type UnavailableError struct {
	StatusCode int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("lookup service unavailable: HTTP %d", e.StatusCode)
}

type searchResponse struct {
	Titles []searchTitle `json:"titles"`
}

type searchTitle struct {
	ID           string        `json:"id"`
	PrimaryTitle string        `json:"primaryTitle"`
	StartYear    int           `json:"startYear"`
	PrimaryImage imageRef      `json:"primaryImage"`
	Plot         string        `json:"plot"`
	Genres       []string      `json:"genres"`
	Rating       *searchRating `json:"rating"`
}

type searchRating struct {
	AggregateRating float64 `json:"aggregateRating"`
	VoteCount       int     `json:"voteCount"`
}

// imageRef is either an object with a url or a bare url string
type imageRef string

func (r *imageRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || data[0] == 'n':
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = imageRef(s)
	case data[0] == '{':
		var obj struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*r = imageRef(obj.URL)
	}
	return nil
}

func (t searchTitle) metadata() *types.Metadata {
	meta := &types.Metadata{
		IMDbID:    t.ID,
		Title:     t.PrimaryTitle,
		PosterURL: string(t.PrimaryImage),
		Plot:      t.Plot,
		Genres:    append([]string(nil), t.Genres...),
		Year:      t.StartYear,
	}
	if t.Rating != nil && t.Rating.AggregateRating > 0 {
		meta.Rating = strconv.FormatFloat(t.Rating.AggregateRating, 'f', -1, 64)
	}
	if t.ID != "" {
		meta.URL = fmt.Sprintf("https://www.imdb.com/title/%s/", t.ID)
	}
	return meta
}
