package quality

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/ldwatch/internal/contracts"
)

// Repository handles completeness snapshot persistence
// ⭐ SSOT: 평가 실행별 완전성 스냅샷 저장/조회
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new quality repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveReport stores the completeness report of one evaluation run
func (r *Repository) SaveReport(ctx context.Context, runID, contractID, projectID string, report *contracts.CompletenessReport) error {
	gaps, err := json.Marshal(report.Gaps)
	if err != nil {
		return fmt.Errorf("marshal gaps: %w", err)
	}

	query := `
		INSERT INTO compliance.completeness_snapshots (
			run_id, contract_id, project_id, period_start, period_end,
			interval_minutes, expected_readings, actual_readings,
			coverage_pct, gaps, complete
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET
			expected_readings = EXCLUDED.expected_readings,
			actual_readings = EXCLUDED.actual_readings,
			coverage_pct = EXCLUDED.coverage_pct,
			gaps = EXCLUDED.gaps,
			complete = EXCLUDED.complete
	`

	_, err = r.pool.Exec(ctx, query,
		runID,
		contractID,
		projectID,
		report.PeriodStart,
		report.PeriodEnd,
		report.IntervalMinutes,
		report.ExpectedReadings,
		report.ActualReadings,
		report.CoveragePct,
		gaps,
		report.Complete,
	)
	if err != nil {
		return fmt.Errorf("save completeness snapshot: %w", err)
	}

	return nil
}

// GetLatest retrieves the most recent completeness snapshot of a contract
func (r *Repository) GetLatest(ctx context.Context, contractID string) (*contracts.CompletenessReport, error) {
	query := `
		SELECT
			period_start, period_end, interval_minutes,
			expected_readings, actual_readings, coverage_pct, gaps, complete
		FROM compliance.completeness_snapshots
		WHERE contract_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	report := &contracts.CompletenessReport{}
	var gaps []byte

	err := r.pool.QueryRow(ctx, query, contractID).Scan(
		&report.PeriodStart,
		&report.PeriodEnd,
		&report.IntervalMinutes,
		&report.ExpectedReadings,
		&report.ActualReadings,
		&report.CoveragePct,
		&gaps,
		&report.Complete,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest completeness snapshot: %w", err)
	}

	if len(gaps) > 0 {
		if err := json.Unmarshal(gaps, &report.Gaps); err != nil {
			return nil, fmt.Errorf("unmarshal gaps: %w", err)
		}
	}

	return report, nil
}
