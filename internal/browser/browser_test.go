// internal/browser/browser_test.go
package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/ShowtimeScrapexter/internal/fetch"
)

func TestDefaultBrowserConfig(t *testing.T) {
	config := DefaultBrowserConfig()
	require.NotNil(t, config)

	assert.True(t, config.Headless, "Expected headless mode by default")
	assert.Equal(t, 1920, config.ViewportWidth)
	assert.Equal(t, 1080, config.ViewportHeight)
	assert.True(t, config.DisableImages)
	assert.Greater(t, config.WaitForTimeout, time.Duration(0))
}

func TestAllocatorOptions(t *testing.T) {
	base := len(allocatorOptions(&BrowserConfig{}))

	full := allocatorOptions(&BrowserConfig{
		Headless:       true,
		UserDataDir:    "/tmp/profile",
		UserAgent:      "Test/1.0",
		ViewportWidth:  800,
		ViewportHeight: 600,
		DisableImages:  true,
	})
	assert.Equal(t, base+5, len(full))
}

func TestChromeFetcher_Fetch(t *testing.T) {
	if os.Getenv("CHROME_TESTS") == "" {
		t.Skip("set CHROME_TESTS=1 to run tests that launch Chrome")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div class="showtimes"><h2>Past Lives</h2></div></body></html>`))
	}))
	defer server.Close()

	config := DefaultBrowserConfig()
	config.WaitDelay = 0
	config.WaitForTimeout = 500 * time.Millisecond

	fetcher, err := NewChromeFetcher(config, nil)
	require.NoError(t, err)
	defer fetcher.Close()

	doc, err := fetcher.Fetch(context.Background(), fetch.Request{URL: server.URL, WaitFor: ".missing-marker"})
	require.NoError(t, err)
	assert.Equal(t, "Past Lives", doc.Find("h2").Text())

	stats := fetcher.GetStats()
	assert.Equal(t, 1, stats.PagesLoaded)
	assert.Equal(t, 1, stats.MarkersMissed)
}
