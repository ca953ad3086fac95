// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name      string                                      `json:"name"`
	Status    HealthStatus                                `json:"status"`
	Message   string                                      `json:"message,omitempty"`
	Error     string                                      `json:"error,omitempty"`
	LastCheck time.Time                                   `json:"last_check"`
	Duration  time.Duration                               `json:"duration"`
	Metadata  map[string]interface{}                      `json:"metadata,omitempty"`
	Critical  bool                                        `json:"critical"`
	CheckFunc func(ctx context.Context) HealthCheckResult `json:"-"`
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus
	Message  string
	Error    error
	Metadata map[string]interface{}
}

// HealthConfig configuration for health monitoring
type HealthConfig struct {
	Version        string
	DefaultTimeout time.Duration
	Clock          clockwork.Clock
}

// SystemHealth represents overall health information
type SystemHealth struct {
	Status     HealthStatus  `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	Version    string        `json:"version,omitempty"`
	Uptime     string        `json:"uptime"`
	Goroutines int           `json:"goroutines"`
	Checks     []HealthCheck `json:"checks"`
	Summary    HealthSummary `json:"summary"`
}

// HealthSummary provides a summary of health checks
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
	Unknown   int `json:"unknown"`
}

// HealthManager runs registered checks on demand
type HealthManager struct {
	mu      sync.RWMutex
	checks  map[string]*HealthCheck
	config  HealthConfig
	started time.Time
}

// NewHealthManager creates a new health manager
func NewHealthManager(config HealthConfig) *HealthManager {
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 5 * time.Second
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &HealthManager{
		checks:  make(map[string]*HealthCheck),
		config:  config,
		started: config.Clock.Now(),
	}
}

// RegisterCheck adds or replaces a check
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[check.Name] = check
}

// Check runs every registered check and folds them into one status: a
// failing critical check makes the whole system unhealthy, anything else
// short of healthy degrades it.
func (hm *HealthManager) Check(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, c := range hm.checks {
		checks = append(checks, c)
	}
	hm.mu.RUnlock()
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	now := hm.config.Clock.Now()
	health := SystemHealth{
		Status:     HealthStatusHealthy,
		Timestamp:  now,
		Version:    hm.config.Version,
		Uptime:     now.Sub(hm.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Checks:     make([]HealthCheck, 0, len(checks)),
	}

	for _, check := range checks {
		result := hm.runCheck(ctx, check)
		health.Checks = append(health.Checks, result)
		health.Summary.Total++

		switch result.Status {
		case HealthStatusHealthy:
			health.Summary.Healthy++
			continue
		case HealthStatusUnhealthy:
			health.Summary.Unhealthy++
			if result.Critical {
				health.Status = HealthStatusUnhealthy
				continue
			}
		case HealthStatusDegraded:
			health.Summary.Degraded++
		default:
			health.Summary.Unknown++
		}
		if health.Status == HealthStatusHealthy {
			health.Status = HealthStatusDegraded
		}
	}
	return health
}

func (hm *HealthManager) runCheck(ctx context.Context, check *HealthCheck) HealthCheck {
	start := hm.config.Clock.Now()
	checkCtx, cancel := context.WithTimeout(ctx, hm.config.DefaultTimeout)
	defer cancel()

	var result HealthCheckResult
	if check.CheckFunc != nil {
		result = check.CheckFunc(checkCtx)
	} else {
		result = HealthCheckResult{Status: HealthStatusUnknown, Message: "No check function defined"}
	}

	out := HealthCheck{
		Name:      check.Name,
		Status:    result.Status,
		Message:   result.Message,
		LastCheck: start,
		Duration:  hm.config.Clock.Since(start),
		Metadata:  result.Metadata,
		Critical:  check.Critical,
	}
	if result.Error != nil {
		out.Error = result.Error.Error()
	}
	return out
}

// HealthHandler serves the health report; unhealthy maps to 503
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// SnapshotHealthCheck reports whether the stored catalog can be read and is
// recent. A catalog older than maxAge degrades health; an unreadable one
// fails it. A zero maxAge disables the age check.
func SnapshotHealthCheck(load func() (*types.TheaterCatalog, error), maxAge time.Duration, clock clockwork.Clock) *HealthCheck {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HealthCheck{
		Name:     "snapshot",
		Critical: true,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			catalog, err := load()
			if err != nil {
				return HealthCheckResult{Status: HealthStatusUnhealthy, Message: "snapshot unavailable", Error: err}
			}

			age := clock.Since(catalog.ScrapedAt)
			meta := map[string]interface{}{
				"scraped_at":   catalog.ScrapedAt,
				"total_movies": catalog.TotalMovies,
				"age":          age.Round(time.Second).String(),
			}
			if maxAge > 0 && age > maxAge {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("snapshot is older than %s", maxAge),
					Metadata: meta,
				}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Message: "snapshot readable", Metadata: meta}
		},
	}
}
