package contracts

import "errors"

// Error taxonomy of the rules engine.
// Classify with errors.Is; nothing below the orchestrator escapes EvaluatePeriod.
var (
	// ErrDataUnavailable marks missing or unreadable time-series data (recoverable)
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrConfiguration marks an invalid or missing clause parameter (per clause)
	ErrConfiguration = errors.New("configuration error")

	// ErrPersistence marks a failed breach write (per breach)
	ErrPersistence = errors.New("persistence error")

	// ErrNoProject aborts a run whose clauses carry no project
	ErrNoProject = errors.New("no project for contract")
)
