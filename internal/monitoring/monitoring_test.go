// internal/monitoring/monitoring_test.go
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

func TestMetrics_ObserveSourceAndRun(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.ObserveSource("film_forum", "structured", 7, 2*time.Second, nil)
	m.ObserveSource("metrograph", "none", 0, time.Second, errors.New("timeout"))
	m.ObserveDiagnostic("fetch", "skippable")
	m.ObserveRun(7, 1, 3*time.Second, time.Unix(1700000000, 0), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceScrapes.WithLabelValues("film_forum", "structured", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceScrapes.WithLabelValues("metrograph", "none", "error")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.sourceMovies.WithLabelValues("film_forum")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.catalogMovies))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRunTimestamp))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.diagnosticTotal.WithLabelValues("fetch", "skippable")))
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a := NewMetrics(MetricsConfig{})
	b := NewMetrics(MetricsConfig{})
	a.ObserveRun(3, 1, time.Second, time.Now(), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.runsTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.runsTotal.WithLabelValues("success")))
}

func TestMetrics_HandlerAndTextfile(t *testing.T) {
	m := NewMetrics(MetricsConfig{Labels: map[string]string{"site": "nyc"}})
	m.ObserveHTTPRequest("/api/v1/catalog", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `showtimes_http_requests_total{route="/api/v1/catalog",site="nyc",status_code="200"} 1`)

	path := filepath.Join(t.TempDir(), "showtimes.prom")
	require.NoError(t, m.WriteToTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "showtimes_http_request_duration_seconds"))
}

func TestHealthManager_Statuses(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC))
	hm := NewHealthManager(HealthConfig{Version: "test", Clock: clock})

	hm.RegisterCheck(&HealthCheck{Name: "ok", CheckFunc: func(context.Context) HealthCheckResult {
		return HealthCheckResult{Status: HealthStatusHealthy}
	}})
	assert.Equal(t, HealthStatusHealthy, hm.Check(context.Background()).Status)

	hm.RegisterCheck(&HealthCheck{Name: "optional", CheckFunc: func(context.Context) HealthCheckResult {
		return HealthCheckResult{Status: HealthStatusUnhealthy}
	}})
	assert.Equal(t, HealthStatusDegraded, hm.Check(context.Background()).Status)

	hm.RegisterCheck(&HealthCheck{Name: "required", Critical: true, CheckFunc: func(context.Context) HealthCheckResult {
		return HealthCheckResult{Status: HealthStatusUnhealthy, Error: errors.New("down")}
	}})
	health := hm.Check(context.Background())
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
	assert.Equal(t, HealthSummary{Total: 3, Healthy: 1, Unhealthy: 2}, health.Summary)
	assert.Equal(t, []string{"ok", "optional", "required"}, []string{health.Checks[0].Name, health.Checks[1].Name, health.Checks[2].Name})
	assert.Equal(t, "down", health.Checks[2].Error)
}

func TestSnapshotHealthCheck(t *testing.T) {
	now := time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)

	fresh := func() (*types.TheaterCatalog, error) {
		return &types.TheaterCatalog{ScrapedAt: now.Add(-time.Hour), TotalMovies: 4}, nil
	}
	stale := func() (*types.TheaterCatalog, error) {
		return &types.TheaterCatalog{ScrapedAt: now.Add(-72 * time.Hour)}, nil
	}
	missing := func() (*types.TheaterCatalog, error) { return nil, errors.New("not found") }

	ctx := context.Background()
	assert.Equal(t, HealthStatusHealthy, SnapshotHealthCheck(fresh, 24*time.Hour, clock).CheckFunc(ctx).Status)
	assert.Equal(t, HealthStatusDegraded, SnapshotHealthCheck(stale, 24*time.Hour, clock).CheckFunc(ctx).Status)
	assert.Equal(t, HealthStatusHealthy, SnapshotHealthCheck(stale, 0, clock).CheckFunc(ctx).Status)
	assert.Equal(t, HealthStatusUnhealthy, SnapshotHealthCheck(missing, 0, clock).CheckFunc(ctx).Status)
}

func TestHealthHandler(t *testing.T) {
	hm := NewHealthManager(HealthConfig{})
	hm.RegisterCheck(SnapshotHealthCheck(func() (*types.TheaterCatalog, error) {
		return nil, errors.New("no snapshot")
	}, 0, nil))

	rec := httptest.NewRecorder()
	hm.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body SystemHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, HealthStatusUnhealthy, body.Status)
}
