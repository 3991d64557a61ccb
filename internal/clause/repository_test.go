package clause

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParams(t *testing.T) {
	params, err := DecodeParams([]byte(`{"threshold": 95.5, "ld_per_point": 50000, "excused_events": ["FORCE_MAJEURE"]}`))
	require.NoError(t, err)

	assert.Equal(t, json.Number("95.5"), params["threshold"])

	d, found, err := params.Decimal("ld_per_point")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "50000", d.String())

	assert.Equal(t, []string{"FORCE_MAJEURE"}, params.StringList("excused_events"))
}

func TestDecodeParams_Empty(t *testing.T) {
	params, err := DecodeParams(nil)
	require.NoError(t, err)
	assert.Empty(t, params)

	_, err = DecodeParams([]byte(`[1, 2]`))
	assert.Error(t, err)
}

// clauseRows replays fixed clause rows through the pgx.Rows scan contract
type clauseRows struct {
	rows [][]byte
	pos  int
}

func (r *clauseRows) Next() bool {
	r.pos++
	return r.pos <= len(r.rows)
}

func (r *clauseRows) Scan(dest ...any) error {
	i := r.pos - 1
	project := "project-1"
	*dest[0].(*string) = fmt.Sprintf("clause-%d", i+1)
	*dest[1].(*string) = "contract-1"
	*dest[2].(**string) = &project
	*dest[3].(*string) = "AVAILABILITY"
	*dest[4].(*[]byte) = r.rows[i]
	return nil
}

func (r *clauseRows) Err() error { return nil }

func TestScanClauses_MalformedParamsKeepSiblings(t *testing.T) {
	rows := &clauseRows{rows: [][]byte{
		[]byte(`["threshold", 95]`),
		[]byte(`{"threshold": 95, "ld_per_point": 50000}`),
	}}

	clauses, err := scanClauses(rows)
	require.NoError(t, err)
	require.Len(t, clauses, 2)

	assert.Equal(t, "clause-1", clauses[0].ID)
	assert.Error(t, clauses[0].ParamsErr)
	assert.Empty(t, clauses[0].NormalizedParameters)
	assert.True(t, clauses[0].Evaluable())

	assert.Equal(t, "clause-2", clauses[1].ID)
	assert.NoError(t, clauses[1].ParamsErr)
	assert.Equal(t, "project-1", clauses[1].ProjectID)
	assert.Equal(t, json.Number("95"), clauses[1].NormalizedParameters["threshold"])
}

func TestRepository_LoadEvaluable(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if testing.Short() || dsn == "" {
		t.Skip("skipping integration test: DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "database connection failed")
	defer pool.Close()

	repo := NewRepository(pool)

	ids, err := repo.ListActiveContracts(ctx, time.Now())
	require.NoError(t, err)

	for _, id := range ids {
		clauses, err := repo.LoadEvaluable(ctx, id)
		require.NoError(t, err)
		for _, c := range clauses {
			assert.True(t, c.Evaluable())
			assert.Equal(t, id, c.ContractID)
		}
	}
}
