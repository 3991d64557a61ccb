package timeseries

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/wonny/ldwatch/internal/contracts"
)

// InfluxConfig locates meter readings in InfluxDB
type InfluxConfig struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
}

// EventSource loads operational events; readings come from Influx, events stay relational
type EventSource interface {
	LoadExcusedEvents(ctx context.Context, projectID string, start, end time.Time, allowedTypes []string) ([]contracts.OperationalEvent, error)
}

// InfluxStore reads meter readings from InfluxDB and delegates events
type InfluxStore struct {
	client      influxdb2.Client
	query       api.QueryAPI
	bucket      string
	measurement string
	events      EventSource
}

// NewInfluxStore creates a store backed by an InfluxDB client
func NewInfluxStore(cfg InfluxConfig, events EventSource) *InfluxStore {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxStore{
		client:      client,
		query:       client.QueryAPI(cfg.Org),
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
		events:      events,
	}
}

// Close releases the Influx client
func (s *InfluxStore) Close() {
	s.client.Close()
}

// Ping checks the Influx server
func (s *InfluxStore) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx ping: server not ready")
	}
	return nil
}

// LoadReadings returns readings in [start, end) ordered by timestamp
func (s *InfluxStore) LoadReadings(ctx context.Context, projectID, meterTypeCode string, start, end time.Time) ([]contracts.MeterReading, error) {
	flux := buildReadingsQuery(s.bucket, s.measurement, projectID, meterTypeCode, start, end)

	result, err := s.query.Query(ctx, flux)
	if err != nil {
		return []contracts.MeterReading{}, unavailable("influx query", err)
	}
	defer result.Close()

	readings := make([]contracts.MeterReading, 0, 1024)
	for result.Next() {
		rec := result.Record()
		value, ok := toFloat(rec.Value())
		if !ok {
			continue
		}
		readings = append(readings, contracts.MeterReading{
			Timestamp: rec.Time().UTC(),
			Value:     value,
			MeterID:   tagString(rec.ValueByKey("meter_id")),
			Unit:      tagString(rec.ValueByKey("unit")),
		})
	}
	if err := result.Err(); err != nil {
		return []contracts.MeterReading{}, unavailable("influx result", err)
	}

	readings = inWindow(readings, start, end)
	contracts.SortReadings(readings)
	return readings, nil
}

// LoadExcusedEvents delegates to the relational event source
func (s *InfluxStore) LoadExcusedEvents(ctx context.Context, projectID string, start, end time.Time, allowedTypes []string) ([]contracts.OperationalEvent, error) {
	return s.events.LoadExcusedEvents(ctx, projectID, start, end, allowedTypes)
}

// buildReadingsQuery renders the Flux query; range stop is exclusive
func buildReadingsQuery(bucket, measurement, projectID, meterTypeCode string, start, end time.Time) string {
	return fmt.Sprintf(`from(bucket: "%s")
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == "%s" and r._field == "value")
  |> filter(fn: (r) => r.project_id == "%s" and r.meter_type == "%s")
  |> keep(columns: ["_time", "_value", "meter_id", "unit"])
  |> sort(columns: ["_time"])`,
		fluxString(bucket),
		start.UTC().Format(time.RFC3339Nano),
		end.UTC().Format(time.RFC3339Nano),
		fluxString(measurement),
		fluxString(projectID),
		fluxString(meterTypeCode),
	)
}

// fluxString escapes a value for a double-quoted Flux string literal
func fluxString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "${", `\${`)
	return r.Replace(s)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func tagString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
