// Package breach owns the write path for incidents and breach records.
package breach

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/ldwatch/internal/contracts"
)

// SQLRepository persists operational events and breach bundles through database/sql.
// Each breach is written in its own transaction.
// ⭐ SSOT: 위반 기록 저장
type SQLRepository struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// NewSQLRepository creates a repository over an open *sql.DB
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// CreateOperationalEvent inserts a detected incident and returns its id
func (r *SQLRepository) CreateOperationalEvent(ctx context.Context, e *contracts.OperationalEvent) (string, error) {
	raw, err := marshalJSON(e.RawDetail)
	if err != nil {
		return "", fmt.Errorf("%w: marshal raw_detail: %v", contracts.ErrPersistence, err)
	}
	metrics, err := marshalJSON(e.ComputedMetrics)
	if err != nil {
		return "", fmt.Errorf("%w: marshal computed_metrics: %v", contracts.ErrPersistence, err)
	}

	status := e.Status
	if status == "" {
		status = contracts.EventStatusOpen
	}

	id := r.newID()
	query := `
		INSERT INTO compliance.operational_events (
			id, project_id, event_type_code, time_start, time_end,
			severity, raw_detail, computed_metrics, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		id,
		e.ProjectID,
		e.EventTypeCode,
		e.TimeStart,
		nullTime(e.TimeEnd),
		e.Severity,
		raw,
		metrics,
		string(status),
		r.now(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: insert operational event: %v", contracts.ErrPersistence, err)
	}

	return id, nil
}

// PersistBreach writes DefaultEvent, RuleOutput and Notification atomically.
// On any failure the transaction is rolled back and nothing remains.
func (r *SQLRepository) PersistBreach(ctx context.Context, b *contracts.Breach) (persisted *contracts.PersistedBreach, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", contracts.ErrPersistence, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.now()
	ids := &contracts.PersistedBreach{
		DefaultEventID: r.newID(),
		RuleOutputID:   r.newID(),
		NotificationID: r.newID(),
	}

	// 1. default event
	de := b.DefaultEvent
	meta, err := marshalJSON(de.MetadataDetail)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal default event metadata: %v", contracts.ErrPersistence, err)
	}
	status := de.Status
	if status == "" {
		status = contracts.DefaultStatusOpen
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO compliance.default_events (
			id, project_id, contract_id, operational_event_id,
			time_start, status, description, metadata_detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ids.DefaultEventID,
		de.ProjectID,
		de.ContractID,
		nullString(de.OperationalEventID),
		de.TimeStart,
		string(status),
		de.Description,
		meta,
		now,
	); err != nil {
		return nil, fmt.Errorf("%w: insert default event: %v", contracts.ErrPersistence, err)
	}

	// 2. rule output
	ro := b.RuleOutput
	detail, err := marshalJSON(ro.Detail)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal rule output detail: %v", contracts.ErrPersistence, err)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO compliance.rule_outputs (
			id, default_event_id, clause_id, rule_type,
			calculated_value, threshold_value, shortfall, ld_amount, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ids.RuleOutputID,
		ids.DefaultEventID,
		ro.ClauseID,
		ro.RuleType,
		ro.CalculatedValue,
		ro.ThresholdValue,
		ro.Shortfall,
		ro.LDAmount,
		detail,
		now,
	); err != nil {
		return nil, fmt.Errorf("%w: insert rule output: %v", contracts.ErrPersistence, err)
	}

	// 3. notification
	n := b.Notification
	nmeta, err := marshalJSON(n.MetadataDetail)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal notification metadata: %v", contracts.ErrPersistence, err)
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO compliance.notifications (
			id, project_id, default_event_id, rule_output_id,
			description, metadata_detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ids.NotificationID,
		n.ProjectID,
		ids.DefaultEventID,
		ids.RuleOutputID,
		n.Description,
		nmeta,
		now,
	); err != nil {
		return nil, fmt.Errorf("%w: insert notification: %v", contracts.ErrPersistence, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", contracts.ErrPersistence, err)
	}

	return ids, nil
}

// ListDefaultEvents returns the most recent breach records of a contract
func (r *SQLRepository) ListDefaultEvents(ctx context.Context, contractID string, limit int) ([]contracts.DefaultEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id::text, project_id::text, contract_id::text, operational_event_id::text,
		       time_start, status, description, metadata_detail, created_at
		FROM compliance.default_events
		WHERE contract_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, contractID, limit)
	if err != nil {
		return nil, fmt.Errorf("query default events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]contracts.DefaultEvent, 0)
	for rows.Next() {
		var (
			e      contracts.DefaultEvent
			opID   sql.NullString
			status string
			meta   []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.ProjectID,
			&e.ContractID,
			&opID,
			&e.TimeStart,
			&status,
			&e.Description,
			&meta,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan default event: %w", err)
		}
		e.OperationalEventID = opID.String
		e.Status = contracts.DefaultStatus(status)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.MetadataDetail); err != nil {
				return nil, fmt.Errorf("unmarshal metadata_detail: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate default events: %w", err)
	}

	return events, nil
}

func marshalJSON(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
