// Package clause loads normalized contract clauses produced by the extraction pipeline.
package clause

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/ldwatch/internal/contracts"
)

// Repository reads clauses and contracts from PostgreSQL
// ⭐ SSOT: 조항 조회
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new clause repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadEvaluable returns active clauses of the contract with non-empty parameters.
// project_id falls back to the owning contract's project.
func (r *Repository) LoadEvaluable(ctx context.Context, contractID string) ([]contracts.Clause, error) {
	query := `
		SELECT cl.id::text, cl.contract_id::text,
		       COALESCE(cl.project_id, ct.project_id)::text,
		       cl.category_code, cl.normalized_parameters
		FROM compliance.clauses cl
		JOIN compliance.contracts ct ON ct.id = cl.contract_id
		WHERE cl.contract_id = $1
		  AND cl.is_active
		  AND cl.normalized_parameters IS NOT NULL
		  AND cl.normalized_parameters <> '{}'::jsonb
		ORDER BY cl.id
	`

	rows, err := r.pool.Query(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("query clauses: %w", err)
	}
	defer rows.Close()

	return scanClauses(rows)
}

// rowScanner is the subset of pgx.Rows used by scanClauses
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanClauses keeps going past a clause whose parameters do not decode;
// that clause carries ParamsErr instead of failing the whole load.
func scanClauses(rows rowScanner) ([]contracts.Clause, error) {
	clauses := make([]contracts.Clause, 0)
	for rows.Next() {
		var (
			c         contracts.Clause
			projectID *string
			raw       []byte
		)
		if err := rows.Scan(&c.ID, &c.ContractID, &projectID, &c.CategoryCode, &raw); err != nil {
			return nil, fmt.Errorf("scan clause: %w", err)
		}
		if projectID != nil {
			c.ProjectID = *projectID
		}

		params, err := DecodeParams(raw)
		if err != nil {
			c.ParamsErr = err
		} else {
			c.NormalizedParameters = params
		}

		if c.Evaluable() {
			clauses = append(clauses, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clauses: %w", err)
	}

	return clauses, nil
}

// ListActiveContracts returns contracts in force at asOf
func (r *Repository) ListActiveContracts(ctx context.Context, asOf time.Time) ([]string, error) {
	query := `
		SELECT id::text
		FROM compliance.contracts
		WHERE status = 'active'
		  AND effective_start <= $1
		  AND (effective_end IS NULL OR effective_end > $1)
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("query active contracts: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan contract id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active contracts: %w", err)
	}

	return ids, nil
}

// DecodeParams decodes a JSON parameter object keeping numbers exact
func DecodeParams(raw []byte) (contracts.Params, error) {
	params := contracts.Params{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return params, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("decode normalized parameters: %w", err)
	}
	return params, nil
}
