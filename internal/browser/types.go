// internal/browser/types.go
package browser

import (
	"time"
)

// BrowserConfig defines headless Chrome settings for rendered fetches
type BrowserConfig struct {
	Headless       bool          `yaml:"headless" json:"headless"`
	UserDataDir    string        `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	ViewportWidth  int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`
	// WaitForTimeout caps how long a fetch waits for Request.WaitFor
	WaitForTimeout time.Duration `yaml:"wait_for_timeout" json:"wait_for_timeout"`
	WaitDelay      time.Duration `yaml:"wait_delay,omitempty" json:"wait_delay,omitempty"`
	UserAgent      string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	DisableImages  bool          `yaml:"disable_images" json:"disable_images"`
}

// DefaultBrowserConfig returns default browser configuration
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Headless:       true,
		Timeout:        30 * time.Second,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		WaitForTimeout: 10 * time.Second,
		WaitDelay:      2 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		DisableImages:  true,
	}
}

// BrowserStats contains browser automation statistics
type BrowserStats struct {
	PagesLoaded     int           `json:"pages_loaded"`
	AverageLoadTime time.Duration `json:"average_load_time"`
	Errors          int           `json:"errors"`
	MarkersMissed   int           `json:"markers_missed"`
}
