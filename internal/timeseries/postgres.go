package timeseries

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/ldwatch/internal/contracts"
)

// Repository reads meter readings and operational events from PostgreSQL
// ⭐ SSOT: 계측 데이터 조회
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new time-series repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadReadings returns readings in [start, end) ordered by timestamp
func (r *Repository) LoadReadings(ctx context.Context, projectID, meterTypeCode string, start, end time.Time) ([]contracts.MeterReading, error) {
	query := `
		SELECT ts, value, meter_id, unit
		FROM compliance.meter_readings
		WHERE project_id = $1
		  AND meter_type_code = $2
		  AND ts >= $3
		  AND ts < $4
		ORDER BY ts, meter_id
	`

	rows, err := r.pool.Query(ctx, query, projectID, meterTypeCode, start, end)
	if err != nil {
		return []contracts.MeterReading{}, unavailable("query meter readings", err)
	}
	defer rows.Close()

	readings := make([]contracts.MeterReading, 0, 1024)
	for rows.Next() {
		var rd contracts.MeterReading
		if err := rows.Scan(&rd.Timestamp, &rd.Value, &rd.MeterID, &rd.Unit); err != nil {
			return []contracts.MeterReading{}, unavailable("scan meter reading", err)
		}
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return []contracts.MeterReading{}, unavailable("iterate meter readings", err)
	}

	return readings, nil
}

// LoadExcusedEvents returns events overlapping [start, end); ongoing events are clamped to end.
// A nil allowedTypes returns every type.
func (r *Repository) LoadExcusedEvents(ctx context.Context, projectID string, start, end time.Time, allowedTypes []string) ([]contracts.OperationalEvent, error) {
	query := `
		SELECT id::text, project_id, event_type_code, time_start, time_end,
		       severity, raw_detail, computed_metrics, status
		FROM compliance.operational_events
		WHERE project_id = $1
		  AND time_start < $3
		  AND (time_end IS NULL OR time_end > $2)
		  AND ($4::text[] IS NULL OR event_type_code = ANY($4))
		ORDER BY time_start
	`

	rows, err := r.pool.Query(ctx, query, projectID, start, end, normalizeTypes(allowedTypes))
	if err != nil {
		return []contracts.OperationalEvent{}, unavailable("query operational events", err)
	}
	defer rows.Close()

	events := make([]contracts.OperationalEvent, 0)
	for rows.Next() {
		var (
			e      contracts.OperationalEvent
			status string
		)
		if err := rows.Scan(
			&e.ID,
			&e.ProjectID,
			&e.EventTypeCode,
			&e.TimeStart,
			&e.TimeEnd,
			&e.Severity,
			&e.RawDetail,
			&e.ComputedMetrics,
			&status,
		); err != nil {
			return []contracts.OperationalEvent{}, unavailable("scan operational event", err)
		}
		e.Status = contracts.EventStatus(status)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return []contracts.OperationalEvent{}, unavailable("iterate operational events", err)
	}

	return clampOngoing(events, end), nil
}

// ListMeterTypes returns the meter types recorded for a project
func (r *Repository) ListMeterTypes(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT meter_type_code FROM compliance.meter_readings WHERE project_id = $1 ORDER BY 1`,
		projectID,
	)
	if err != nil {
		return []string{}, unavailable("query meter types", err)
	}
	defer rows.Close()

	types := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return []string{}, unavailable("scan meter type", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return []string{}, unavailable("iterate meter types", err)
	}
	return types, nil
}
