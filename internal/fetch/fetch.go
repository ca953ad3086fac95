// internal/fetch/fetch.go
package fetch

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout bounds a single fetch when the request carries none
const DefaultTimeout = 30 * time.Second

// Request describes one page to load
type Request struct {
	URL string
	// WaitFor is a CSS selector a rendering fetcher waits for; absence is not an error.
	WaitFor string
	Timeout time.Duration
}

// Fetcher loads a page and returns its parsed document.
// Implementations are owned by the caller and must be closed after use.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*goquery.Document, error)
	Close() error
}

// WithTimeout derives a context bounded by the request timeout
func WithTimeout(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
