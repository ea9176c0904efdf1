package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
)

func TestRun_PlainText(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-at", "2024-01-02T05:00:00Z"}, &out))

	assert.Equal(t,
		"run:     20240101/18Z\naddress: https://nomads.ncep.noaa.gov/dods/gfs_0p25_1hr/gfs20240101/gfs_0p25_1hr_18z\n",
		out.String())
}

func TestRun_JSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"-at", "2024-01-02T13:00:00+07:00", "-latency", "0s", "-json"}, &out))

	var got output
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "20240102/06Z", got.Run)
	assert.Equal(t, "20240102", got.Date)
	assert.Equal(t, 6, got.CycleHour)
	assert.Equal(t, time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC), got.InitTime)
}

func TestRun_DefaultsToClock(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	var out bytes.Buffer
	require.NoError(t, run(nil, &out))
	assert.Contains(t, out.String(), "run:     20240102/06Z")
}

func TestRun_InvalidFlags(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run([]string{"-at", "yesterday"}, &out))
	assert.Error(t, run([]string{"-latency", "-1h"}, &out))
	assert.Error(t, run([]string{"-latency", "soon"}, &out))
}
