//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/gfs-forecast-service/internal/adapter/httpadapter"
	"github.com/couchcryptid/gfs-forecast-service/internal/adapter/kafka"
	"github.com/couchcryptid/gfs-forecast-service/internal/adapter/nomads"
	"github.com/couchcryptid/gfs-forecast-service/internal/adapter/sqlite"
	"github.com/couchcryptid/gfs-forecast-service/internal/config"
	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
	"github.com/couchcryptid/gfs-forecast-service/internal/forecast"
	"github.com/couchcryptid/gfs-forecast-service/internal/observability"
)

const testSinkTopic = "test-gfs-snapshots"

const tmp2mBody = `tmp2m, [1][2][3]
[0][0], 300.15, 301.15, 302.15
[0][1], 303.15, 304.15, 305.15

time, [1]
738887.25
lat, [2]
2.0, 2.25
lon, [3]
114.0, 114.25, 114.5
`

var testRegion = domain.Region{
	Key:   "test-box",
	Title: "Test box",
	Box:   domain.BoundingBox{LatMin: 2.0, LatMax: 2.25, LonMin: 114.0, LonMax: 114.5},
}

// TestSnapshotFlowsToSinks drives a forecast request through the HTTP API
// against a fake NOMADS server and checks that the snapshot reaches both
// Kafka and the SQLite archive.
func TestSnapshotFlowsToSinks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dods/gfs_0p25_1hr/gfs20240102/gfs_0p25_1hr_06z.ascii", r.URL.Path)
		_, _ = io.WriteString(w, tmp2mBody)
	}))
	t.Cleanup(upstream.Close)

	metrics := observability.NewMetricsForTesting()
	fetcher := nomads.NewCachedFetcher(
		nomads.NewClient(upstream.URL+"/dods", 10*time.Second, metrics, discardLogger()), 8, metrics)

	writer := kafka.NewWriter(&config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	archive, err := sqlite.NewArchive(filepath.Join(t.TempDir(), "archive.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	regions, err := domain.NewRegionSet(testRegion)
	require.NoError(t, err)

	svc := forecast.NewService(fetcher, forecast.Options{
		Regions:            regions,
		PublicationLatency: domain.DefaultPublicationLatency,
		MaxForecastHour:    240,
		Sinks:              []forecast.Sink{writer, archive},
	}, discardLogger(), metrics)

	srv := httptest.NewServer(httpadapter.NewServer(":0", svc, archive, 240, discardLogger()))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/forecast?region=test-box&field=tmp2m&hour=6")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap domain.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "20240102/06Z", snap.Run.String())
	assert.InDelta(t, 27.0, snap.Values[0][0], 1e-9)
	assert.InDelta(t, 29.5, snap.Stats.Mean, 1e-9)

	// Kafka sink.
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "20240102/06Z|test-box|tmp2m|006", string(msg.Key))
	assert.Equal(t, "tmp2m", headers["field"])
	assert.Equal(t, "20240102/06Z", headers["run"])
	_, err = time.Parse(time.RFC3339, headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")

	var published domain.Snapshot
	require.NoError(t, json.Unmarshal(msg.Value, &published))
	assert.Equal(t, snap.Stats, published.Stats)

	// SQLite sink, read back through the history endpoint.
	hresp, err := http.Get(srv.URL + "/api/history?region=test-box")
	require.NoError(t, err)
	defer hresp.Body.Close()
	require.Equal(t, http.StatusOK, hresp.StatusCode)

	var recs []sqlite.Record
	require.NoError(t, json.NewDecoder(hresp.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "20240102/06Z|test-box|tmp2m|006", recs[0].Key)
	assert.Equal(t, 6, recs[0].Count)
}
