// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/valpere/ShowtimeScrapexter/internal/aggregator"
	"github.com/valpere/ShowtimeScrapexter/internal/monitoring"
	"github.com/valpere/ShowtimeScrapexter/internal/output"
	"github.com/valpere/ShowtimeScrapexter/internal/utils"
	"github.com/valpere/ShowtimeScrapexter/pkg/types"
)

// Defaults for the request limiter
const (
	DefaultRateLimit = 10.0
	DefaultRateBurst = 20
)

const shutdownTimeout = 10 * time.Second

// Options configures the API server
type Options struct {
	Address        string
	RateLimit      float64
	RateBurst      int
	SnapshotMaxAge time.Duration
	Version        string

	Metrics *monitoring.Metrics
	Clock   clockwork.Clock
	Logger  utils.Logger
}

// Server exposes the stored snapshot over a read-only HTTP API. Every
// request reads the store, so a new run is visible without a restart.
type Server struct {
	store   *output.Store
	opts    Options
	health  *monitoring.HealthManager
	metrics *monitoring.Metrics
	limiter *rate.Limiter
	clock   clockwork.Clock
	logger  utils.Logger
	router  *mux.Router
}

// TheaterSummary is one entry of the theaters listing
type TheaterSummary struct {
	Name      string `json:"name"`
	Movies    int    `json:"movies"`
	Showtimes int    `json:"showtimes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a server reading from store
func New(store *output.Store, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = DefaultRateBurst
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics(monitoring.MetricsConfig{})
	}

	health := monitoring.NewHealthManager(monitoring.HealthConfig{Version: opts.Version, Clock: opts.Clock})
	health.RegisterCheck(monitoring.SnapshotHealthCheck(store.Load, opts.SnapshotMaxAge, opts.Clock))

	s := &Server{
		store:   store,
		opts:    opts,
		health:  health,
		metrics: opts.Metrics,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.rateLimitMiddleware, s.instrumentMiddleware)

	r.Handle("/health", s.health.HealthHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/catalog", s.catalogHandler).Methods(http.MethodGet)
	api.HandleFunc("/timeline", s.timelineHandler).Methods(http.MethodGet)
	api.HandleFunc("/theaters", s.theatersHandler).Methods(http.MethodGet)
	api.HandleFunc("/theaters/{name}/movies", s.theaterMoviesHandler).Methods(http.MethodGet)

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Serving snapshot %s on %s", s.store.Path(), s.opts.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) catalogHandler(w http.ResponseWriter, r *http.Request) {
	catalog, ok := s.loadCatalog(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) timelineHandler(w http.ResponseWriter, r *http.Request) {
	catalog, ok := s.loadCatalog(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, aggregator.BuildTimeline(catalog.Movies))
}

func (s *Server) theatersHandler(w http.ResponseWriter, r *http.Request) {
	catalog, ok := s.loadCatalog(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summarize(catalog))
}

func (s *Server) theaterMoviesHandler(w http.ResponseWriter, r *http.Request) {
	catalog, ok := s.loadCatalog(w)
	if !ok {
		return
	}

	name := mux.Vars(r)["name"]
	movies := catalog.MoviesAt(name)
	if len(movies) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("theater %q not found", name)})
		return
	}
	writeJSON(w, http.StatusOK, movies)
}

// loadCatalog reads the snapshot and writes an error response on failure
func (s *Server) loadCatalog(w http.ResponseWriter) (*types.TheaterCatalog, bool) {
	catalog, err := s.store.Load()
	if err == nil {
		return catalog, true
	}

	if errors.Is(err, output.ErrSnapshotNotFound) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no snapshot available yet"})
		return nil, false
	}
	s.logger.Errorf("Failed to load snapshot: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load snapshot"})
	return nil, false
}

func summarize(catalog *types.TheaterCatalog) []TheaterSummary {
	byName := make(map[string]*TheaterSummary)
	for _, m := range catalog.Movies {
		summary, ok := byName[m.Theater]
		if !ok {
			summary = &TheaterSummary{Name: m.Theater}
			byName[m.Theater] = summary
		}
		summary.Movies++
		summary.Showtimes += len(m.Showtimes)
	}

	out := make([]TheaterSummary, 0, len(byName))
	for _, summary := range byName {
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
