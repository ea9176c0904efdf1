package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
	"github.com/couchcryptid/gfs-forecast-service/internal/observability"
)

// ErrFetch marks failures of the remote dataset fetch. Its text is what the
// dashboard shows the user.
var ErrFetch = errors.New("failed to load data")

// Fetcher downloads one GFS variable for one run and forecast hour.
type Fetcher interface {
	FetchGrid(ctx context.Context, run domain.ModelRun, variable string, hour int, box domain.BoundingBox) (domain.Grid, error)
}

// Sink receives every snapshot the service builds.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// Request selects one field snapshot. A nil Run means the latest run.
type Request struct {
	Region string
	Field  string
	Hour   int
	Run    *domain.ModelRun
}

// RunInfo describes the currently resolved run.
type RunInfo struct {
	Run     domain.ModelRun `json:"run"`
	ID      string          `json:"id"`
	Address string          `json:"address"`
}

// Options configures a Service.
type Options struct {
	Regions            *domain.RegionSet
	PublicationLatency time.Duration
	MaxForecastHour    int
	Sinks              []Sink
}

// Service resolves runs, fetches GFS grids and assembles field snapshots.
type Service struct {
	fetcher Fetcher
	regions *domain.RegionSet
	sinks   []Sink
	latency time.Duration
	maxHour int
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// NewService creates a Service with the given fetcher and observability.
func NewService(fetcher Fetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		fetcher: fetcher,
		regions: opts.Regions,
		sinks:   opts.Sinks,
		latency: opts.PublicationLatency,
		maxHour: opts.MaxForecastHour,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one snapshot has been built.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no forecast snapshot has been built yet")
	}
	return nil
}

// Regions returns every configured region.
func (s *Service) Regions() []domain.Region {
	return s.regions.All()
}

// CurrentRun resolves the latest published run and its retrieval address.
func (s *Service) CurrentRun() RunInfo {
	run := domain.LatestRun(s.latency)
	s.metrics.LatestRunInit.Set(float64(run.InitTime().Unix()))
	return RunInfo{Run: run, ID: run.String(), Address: domain.FormatRetrievalAddress(run)}
}

// Snapshot builds one field snapshot. Invalid requests return the matching
// domain sentinel error; fetch failures wrap ErrFetch.
func (s *Service) Snapshot(ctx context.Context, req Request) (domain.Snapshot, error) {
	start := time.Now()

	region, field, err := s.validate(req)
	if err != nil {
		s.metrics.SnapshotErrors.WithLabelValues("validate").Inc()
		return domain.Snapshot{}, err
	}

	run := s.CurrentRun().Run
	if req.Run != nil {
		run = *req.Run
	}

	grids := make([]domain.Grid, 0, len(field.Variables))
	for _, v := range field.Variables {
		g, err := s.fetcher.FetchGrid(ctx, run, v, req.Hour, region.Box)
		if err != nil {
			s.metrics.SnapshotErrors.WithLabelValues("fetch").Inc()
			s.logger.Error("gfs fetch failed",
				"error", err, "run", run.String(), "variable", v, "hour", req.Hour, "region", region.Key)
			return domain.Snapshot{}, fmt.Errorf("%w: %s %s: %w", ErrFetch, run, v, err)
		}
		grids = append(grids, g)
	}

	snap, err := domain.BuildSnapshot(run, region, field, req.Hour, grids)
	if err != nil {
		s.metrics.SnapshotErrors.WithLabelValues("build").Inc()
		return domain.Snapshot{}, fmt.Errorf("%w: %s: %w", ErrFetch, run, err)
	}

	s.metrics.SnapshotsBuilt.WithLabelValues(field.Key).Inc()
	s.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	s.ready.Store(true)

	s.publish(ctx, snap)
	return snap, nil
}

func (s *Service) validate(req Request) (domain.Region, domain.Field, error) {
	region, err := s.regions.Lookup(req.Region)
	if err != nil {
		return domain.Region{}, domain.Field{}, err
	}
	field, err := domain.LookupField(req.Field)
	if err != nil {
		return domain.Region{}, domain.Field{}, err
	}
	if err := domain.ValidateForecastHour(req.Hour, s.maxHour); err != nil {
		return domain.Region{}, domain.Field{}, err
	}
	return region, field, nil
}

// publish hands the snapshot to every sink. Sink failures never fail the request.
func (s *Service) publish(ctx context.Context, snap domain.Snapshot) {
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			s.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			s.logger.Warn("publish snapshot failed", "sink", sink.Name(), "key", snap.Key(), "error", err)
		}
	}
}
