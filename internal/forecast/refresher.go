package forecast

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
	"github.com/couchcryptid/gfs-forecast-service/internal/observability"
)

const initialBackoff = time.Second

// Refresher keeps the grid cache warm for the default region. Each pass
// builds every field at every configured forecast hour of the latest run,
// which also pushes the snapshots to the service's sinks.
type Refresher struct {
	service  *Service
	clock    clockwork.Clock
	region   string
	fields   []string
	hours    []int
	interval time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics

	lastRun *domain.ModelRun
}

// NewRefresher creates a Refresher for region covering all fields at hours.
func NewRefresher(service *Service, clock clockwork.Clock, region string, hours []int, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	fields := make([]string, 0, len(domain.Fields()))
	for _, f := range domain.Fields() {
		fields = append(fields, f.Key)
	}
	return &Refresher{
		service:  service,
		clock:    clock,
		region:   region,
		fields:   fields,
		hours:    hours,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run refreshes until the context is cancelled. Failed passes are retried
// with exponential backoff capped at the refresh interval.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "region", r.region, "hours", r.hours, "interval", r.interval)
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	backoff := initialBackoff
	for {
		wait := r.interval
		if !r.refresh(ctx) {
			if ctx.Err() != nil {
				r.logger.Info("refresher stopping", "reason", ctx.Err())
				return nil
			}
			wait = backoff
			backoff = nextBackoff(backoff, r.interval)
		} else {
			backoff = initialBackoff
		}

		if !r.sleep(ctx, wait) {
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// refresh runs one pass. It returns false if any snapshot failed.
func (r *Refresher) refresh(ctx context.Context) bool {
	run := r.service.CurrentRun().Run
	if r.lastRun != nil && r.lastRun.Compare(run) == 0 {
		r.logger.Debug("run unchanged, skipping refresh", "run", run.String())
		return true
	}

	start := r.clock.Now()
	failed := 0
	for _, field := range r.fields {
		for _, hour := range r.hours {
			if ctx.Err() != nil {
				return false
			}
			_, err := r.service.Snapshot(ctx, Request{Region: r.region, Field: field, Hour: hour, Run: &run})
			if err != nil {
				failed++
			}
		}
	}
	r.metrics.RefreshDuration.Observe(r.clock.Since(start).Seconds())

	if failed > 0 {
		r.logger.Warn("refresh incomplete", "run", run.String(), "failed", failed)
		return false
	}
	r.lastRun = &run
	r.logger.Info("refresh complete", "run", run.String(), "snapshots", len(r.fields)*len(r.hours))
	return true
}

func (r *Refresher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := r.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
