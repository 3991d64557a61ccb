package breach

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ldwatch/internal/contracts"
)

var fixedNow = time.Date(2024, 12, 1, 6, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLRepository(db)
	repo.now = func() time.Time { return fixedNow }
	n := 0
	repo.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return repo, mock
}

func sampleBreach() *contracts.Breach {
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	return &contracts.Breach{
		DefaultEvent: contracts.DefaultEvent{
			ProjectID:   "project-1",
			ContractID:  "contract-1",
			TimeStart:   start,
			Description: "Availability 89.62% below 95%",
		},
		RuleOutput: contracts.RuleOutput{
			ClauseID:        "clause-1",
			RuleType:        "availability",
			CalculatedValue: decimal.RequireFromString("89.624"),
			ThresholdValue:  decimal.NewFromInt(95),
			Shortfall:       decimal.RequireFromString("5.376"),
			LDAmount:        decimal.RequireFromString("268800.00"),
		},
		Notification: contracts.Notification{
			ProjectID:   "project-1",
			Description: "Availability breach",
		},
	}
}

func TestSQLRepository_PersistBreach_Commits(t *testing.T) {
	repo, mock := newTestRepo(t)
	b := sampleBreach()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.default_events")).
		WithArgs("id-1", "project-1", "contract-1", nil, b.DefaultEvent.TimeStart, "open", b.DefaultEvent.Description, []byte("{}"), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.rule_outputs")).
		WithArgs("id-2", "id-1", "clause-1", "availability",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			[]byte("{}"), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.notifications")).
		WithArgs("id-3", "project-1", "id-1", "id-2", "Availability breach", []byte("{}"), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ids, err := repo.PersistBreach(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, &contracts.PersistedBreach{DefaultEventID: "id-1", RuleOutputID: "id-2", NotificationID: "id-3"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_PersistBreach_RollsBackOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
	}{
		{
			name: "rule output insert fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.default_events")).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.rule_outputs")).WillReturnError(errors.New("numeric overflow"))
				mock.ExpectRollback()
			},
		},
		{
			name: "notification insert fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.default_events")).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.rule_outputs")).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.notifications")).WillReturnError(errors.New("fk violation"))
				mock.ExpectRollback()
			},
		},
		{
			name: "commit fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.default_events")).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.rule_outputs")).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.notifications")).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit().WillReturnError(errors.New("connection reset"))
			},
		},
		{
			name: "begin fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newTestRepo(t)
			tt.setup(mock)

			ids, err := repo.PersistBreach(context.Background(), sampleBreach())

			require.Error(t, err)
			assert.ErrorIs(t, err, contracts.ErrPersistence)
			assert.Nil(t, ids)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLRepository_CreateOperationalEvent(t *testing.T) {
	repo, mock := newTestRepo(t)
	start := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.operational_events")).
		WithArgs("id-1", "project-1", contracts.EventTypeGridOutage, start, sqlmock.AnyArg(), 3,
			[]byte(`{"duration_hours":6}`), []byte("{}"), "open", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.CreateOperationalEvent(context.Background(), &contracts.OperationalEvent{
		ProjectID:     "project-1",
		EventTypeCode: contracts.EventTypeGridOutage,
		TimeStart:     start,
		TimeEnd:       &end,
		Severity:      3,
		RawDetail:     map[string]interface{}{"duration_hours": 6},
	})

	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepository_CreateOperationalEvent_Failure(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO compliance.operational_events")).
		WillReturnError(errors.New("relation does not exist"))

	id, err := repo.CreateOperationalEvent(context.Background(), &contracts.OperationalEvent{ProjectID: "p"})
	assert.ErrorIs(t, err, contracts.ErrPersistence)
	assert.Empty(t, id)
}

func TestSQLRepository_ListDefaultEvents(t *testing.T) {
	repo, mock := newTestRepo(t)
	start := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "project_id", "contract_id", "operational_event_id",
		"time_start", "status", "description", "metadata_detail", "created_at",
	}).
		AddRow("de-1", "project-1", "contract-1", "oe-1", start, "open", "breach", []byte(`{"severity":"high"}`), fixedNow).
		AddRow("de-2", "project-1", "contract-1", nil, start, "cured", "older", nil, fixedNow.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("FROM compliance.default_events")).
		WithArgs("contract-1", 50).
		WillReturnRows(rows)

	events, err := repo.ListDefaultEvents(context.Background(), "contract-1", 0)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, "oe-1", events[0].OperationalEventID)
	assert.Equal(t, "high", events[0].MetadataDetail["severity"])
	assert.Equal(t, contracts.DefaultStatusCured, events[1].Status)
	assert.Empty(t, events[1].OperationalEventID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
