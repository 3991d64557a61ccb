package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// ClauseRepository loads normalized clauses
type ClauseRepository interface {
	// LoadEvaluable returns clauses of the contract with non-empty parameters
	LoadEvaluable(ctx context.Context, contractID string) ([]Clause, error)
}

// ContractLister enumerates contracts due for scheduled evaluation
type ContractLister interface {
	ListActiveContracts(ctx context.Context, asOf time.Time) ([]string, error)
}

// TimeSeriesStore is the read-only meter data source.
// Failures return an empty slice and an error wrapping ErrDataUnavailable.
type TimeSeriesStore interface {
	// LoadReadings returns readings in [start, end) ordered by timestamp
	LoadReadings(ctx context.Context, projectID, meterTypeCode string, start, end time.Time) ([]MeterReading, error)

	// LoadExcusedEvents returns events overlapping [start, end), ongoing events clamped to end.
	// A nil allowedTypes returns every type.
	LoadExcusedEvents(ctx context.Context, projectID string, start, end time.Time, allowedTypes []string) ([]OperationalEvent, error)
}

// BreachStore is the write path for incidents and breaches
type BreachStore interface {
	CreateOperationalEvent(ctx context.Context, event *OperationalEvent) (string, error)

	// PersistBreach writes DefaultEvent, RuleOutput and Notification in one transaction
	PersistBreach(ctx context.Context, breach *Breach) (*PersistedBreach, error)
}

// BreachReader lists persisted breach records
type BreachReader interface {
	ListDefaultEvents(ctx context.Context, contractID string, limit int) ([]DefaultEvent, error)
}
