package forecast_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/gfs-forecast-service/internal/forecast"
)

const (
	refreshInterval = 30 * time.Minute
	// fetches per pass at one hour: pratesfc, tmp2m, ugrd10m, vgrd10m, prmslmsl
	fetchesPerPass = 5
)

func startRefresher(t *testing.T, r *forecast.Refresher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func waitForCalls(t *testing.T, f *mockFetcher, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.callCount() >= n }, 2*time.Second, 5*time.Millisecond)
}

func TestRefresher_RefreshesOncePerRun(t *testing.T) {
	fc := freezeClock(t, time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC))
	fetcher := &mockFetcher{value: 300}
	sink := &mockSink{}
	svc, metrics := newTestService(t, fetcher, sink)

	r := forecast.NewRefresher(svc, fc, "kalimantan-utara", []int{0}, refreshInterval, discardLogger(), metrics)
	cancel, done := startRefresher(t, r)

	waitForCalls(t, fetcher, fetchesPerPass)
	require.NoError(t, fc.BlockUntilContext(context.Background(), 1))
	assert.Equal(t, 4, sink.count())

	// Same run half an hour later: nothing to do.
	fc.Advance(refreshInterval)
	require.NoError(t, fc.BlockUntilContext(context.Background(), 1))
	assert.Equal(t, fetchesPerPass, fetcher.callCount())

	// Six hours on, the 12Z run is due.
	fc.Advance(6 * time.Hour)
	waitForCalls(t, fetcher, 2*fetchesPerPass)
	assert.Equal(t, 12, fetcher.lastCall().run.CycleHour)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestRefresher_BacksOffAfterFailure(t *testing.T) {
	fc := freezeClock(t, time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC))
	fetcher := &mockFetcher{err: errors.New("nomads unavailable")}
	svc, metrics := newTestService(t, fetcher)

	r := forecast.NewRefresher(svc, fc, "kalimantan-utara", []int{0}, refreshInterval, discardLogger(), metrics)
	startRefresher(t, r)

	// Every field fails on its first variable: four fetches per pass.
	waitForCalls(t, fetcher, 4)
	require.NoError(t, fc.BlockUntilContext(context.Background(), 1))

	fetcher.setErr(nil)
	fc.Advance(time.Second)
	waitForCalls(t, fetcher, 4+fetchesPerPass)
	assert.NoError(t, svc.CheckReadiness(context.Background()))
}

func TestRefresher_StopsOnCancel(t *testing.T) {
	fc := freezeClock(t, time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC))
	svc, metrics := newTestService(t, &mockFetcher{value: 1})

	r := forecast.NewRefresher(svc, fc, "indonesia", nil, refreshInterval, discardLogger(), metrics)
	cancel, done := startRefresher(t, r)

	require.NoError(t, fc.BlockUntilContext(context.Background(), 1))
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop")
	}
}
