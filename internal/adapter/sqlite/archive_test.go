package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := NewArchive(filepath.Join(t.TempDir(), "archive.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func testSnapshot(t *testing.T, region, field string, hour int, processedAt time.Time) domain.Snapshot {
	t.Helper()
	f, err := domain.LookupField(field)
	require.NoError(t, err)
	run := domain.ModelRun{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), CycleHour: 6}
	return domain.Snapshot{
		Run:          run,
		Address:      domain.FormatRetrievalAddress(run),
		Region:       domain.Region{Key: region},
		Field:        f,
		ForecastHour: hour,
		ValidTime:    domain.ValidTime(run, hour),
		Stats:        domain.Stats{Min: 24.5, Max: 31, Mean: 27.25, Count: 4},
		ProcessedAt:  processedAt,
	}
}

func TestArchive_PublishAndRecent(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC)

	marker := 28.5
	first := testSnapshot(t, "kalimantan-utara", "tmp2m", 0, base)
	first.MarkerValue = &marker
	require.NoError(t, a.Publish(ctx, first))
	require.NoError(t, a.Publish(ctx, testSnapshot(t, "kalimantan-utara", "tmp2m", 3, base.Add(time.Minute))))
	require.NoError(t, a.Publish(ctx, testSnapshot(t, "indonesia", "pratesfc", 0, base.Add(2*time.Minute))))

	recs, err := a.Recent(ctx, "kalimantan-utara", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[0].ForecastHour)
	assert.Nil(t, recs[0].MarkerValue)

	got := recs[1]
	assert.Equal(t, "20240102/06Z|kalimantan-utara|tmp2m|000", got.Key)
	assert.Equal(t, "20240102/06Z", got.Run)
	assert.Equal(t, "°C", got.Unit)
	assert.Equal(t, time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC), got.ValidTime)
	assert.Equal(t, "https://nomads.ncep.noaa.gov/dods/gfs_0p25_1hr/gfs20240102/gfs_0p25_1hr_06z", got.Address)
	assert.InDelta(t, 27.25, got.Mean, 1e-9)
	assert.Equal(t, 4, got.Count)
	require.NotNil(t, got.MarkerValue)
	assert.InDelta(t, 28.5, *got.MarkerValue, 1e-9)
	assert.True(t, got.ProcessedAt.Equal(base))
}

func TestArchive_RecentAllRegionsAndLimit(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC)

	for i, region := range []string{"indonesia", "kalimantan-utara", "indonesia"} {
		require.NoError(t, a.Publish(ctx, testSnapshot(t, region, "tmp2m", i*3, base.Add(time.Duration(i)*time.Second))))
	}

	all, err := a.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := a.Recent(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, 6, limited[0].ForecastHour)
}

func TestArchive_RepublishReplaces(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC)

	snap := testSnapshot(t, "indonesia", "tmp2m", 0, base)
	require.NoError(t, a.Publish(ctx, snap))
	snap.Stats.Mean = 30
	snap.ProcessedAt = base.Add(time.Hour)
	require.NoError(t, a.Publish(ctx, snap))

	recs, err := a.Recent(ctx, "indonesia", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.InDelta(t, 30.0, recs[0].Mean, 1e-9)
}

func TestArchive_EmptyRegionReturnsEmptySlice(t *testing.T) {
	a := newTestArchive(t)
	recs, err := a.Recent(context.Background(), "nowhere", 5)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
	assert.NoError(t, a.CheckReadiness(context.Background()))
}
