package timeseries

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ldwatch/internal/contracts"
)

var (
	start = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
)

func TestUnavailable(t *testing.T) {
	err := unavailable("query meter readings", errors.New("connection refused"))

	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestClampOngoing(t *testing.T) {
	closedEnd := start.Add(5 * time.Hour)
	events := []contracts.OperationalEvent{
		{ID: "a", TimeStart: start, TimeEnd: &closedEnd},
		{ID: "b", TimeStart: end.Add(-3 * time.Hour)},
	}

	out := clampOngoing(events, end)

	require.Len(t, out, 2)
	assert.Equal(t, closedEnd, *out[0].TimeEnd)
	require.NotNil(t, out[1].TimeEnd)
	assert.Equal(t, end, *out[1].TimeEnd)
}

func TestNormalizeTypes(t *testing.T) {
	assert.Nil(t, normalizeTypes(nil))
	assert.Equal(t, []string{}, normalizeTypes([]string{}))
	assert.Equal(t,
		[]string{"FORCE_MAJEURE", "GRID_OUTAGE"},
		normalizeTypes([]string{"force_majeure", " GRID_OUTAGE ", "FORCE_MAJEURE", ""}),
	)
}

func TestInWindow(t *testing.T) {
	readings := []contracts.MeterReading{
		{Timestamp: start.Add(-time.Hour)},
		{Timestamp: start},
		{Timestamp: end.Add(-time.Minute)},
		{Timestamp: end},
	}

	out := inWindow(readings, start, end)

	require.Len(t, out, 2)
	assert.Equal(t, start, out[0].Timestamp)
}

func TestBuildReadingsQuery(t *testing.T) {
	q := buildReadingsQuery("meter_readings", "meter_reading", `p"1`, "PRODUCTION", start, end)

	assert.Contains(t, q, `from(bucket: "meter_readings")`)
	assert.Contains(t, q, "range(start: 2024-11-01T00:00:00Z, stop: 2024-12-01T00:00:00Z)")
	assert.Contains(t, q, `r.project_id == "p\"1"`)
	assert.Contains(t, q, `r.meter_type == "PRODUCTION"`)
	assert.True(t, strings.HasSuffix(q, `sort(columns: ["_time"])`))
}

func TestToFloat(t *testing.T) {
	v, ok := toFloat(2.5)
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)

	v, ok = toFloat(int64(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = toFloat("3")
	assert.False(t, ok)
}
