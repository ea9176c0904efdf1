package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/gfs-forecast-service/internal/adapter/sqlite"
	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
	"github.com/couchcryptid/gfs-forecast-service/internal/forecast"
)

// ForecastService is the part of forecast.Service the API serves.
type ForecastService interface {
	sharedobs.ReadinessChecker
	CurrentRun() forecast.RunInfo
	Regions() []domain.Region
	Snapshot(ctx context.Context, req forecast.Request) (domain.Snapshot, error)
}

// History lists archived snapshot summaries.
type History interface {
	Recent(ctx context.Context, region string, limit int) ([]sqlite.Record, error)
}

// Server exposes the forecast API together with health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	api        *api
	logger     *slog.Logger
}

// NewServer creates an HTTP server. history may be nil, in which case
// /api/history answers 404.
func NewServer(addr string, svc ForecastService, history History, maxHour int, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
			// Snapshots wait on NOMADS, so writes get more room than reads.
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api: &api{
			service: svc,
			history: history,
			maxHour: maxHour,
			logger:  logger,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/run", s.api.handleRun)
	mux.HandleFunc("GET /api/regions", s.api.handleRegions)
	mux.HandleFunc("GET /api/fields", s.api.handleFields)
	mux.HandleFunc("GET /api/forecast", s.api.handleForecast)
	mux.HandleFunc("GET /api/history", s.api.handleHistory)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
