package contracts

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ClauseStatus is the outcome of one clause in a run
type ClauseStatus string

const (
	ClauseNoBreach  ClauseStatus = "no_breach"
	ClauseBreach    ClauseStatus = "breach"
	ClausePersisted ClauseStatus = "persisted"
	ClauseSkipped   ClauseStatus = "skipped"
	ClauseFailed    ClauseStatus = "failed"
)

// ClauseOutcome records what happened to a single clause
type ClauseOutcome struct {
	ClauseID        string           `json:"clause_id"`
	CategoryCode    string           `json:"category_code"`
	RuleType        string           `json:"rule_type,omitempty"`
	Status          ClauseStatus     `json:"status"`
	CalculatedValue *decimal.Decimal `json:"calculated_value,omitempty"`
	ThresholdValue  *decimal.Decimal `json:"threshold_value,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// BreachSummary is one breach as returned to the caller
type BreachSummary struct {
	ClauseID        string                 `json:"clause_id"`
	RuleType        string                 `json:"rule_type"`
	Severity        Severity               `json:"severity"`
	CalculatedValue decimal.Decimal        `json:"calculated_value"`
	ThresholdValue  decimal.Decimal        `json:"threshold_value"`
	Shortfall       decimal.Decimal        `json:"shortfall"`
	LDAmount        decimal.Decimal        `json:"ld_amount"`
	Description     string                 `json:"description"`
	Detail          map[string]interface{} `json:"detail,omitempty"`
	DefaultEventID  string                 `json:"default_event_id,omitempty"`
	RuleOutputID    string                 `json:"rule_output_id,omitempty"`
	NotificationID  string                 `json:"notification_id,omitempty"`
	Persisted       bool                   `json:"persisted"`
}

// EvaluationResult is the aggregate of one EvaluatePeriod call.
// Always well-formed: failures become ProcessingNotes.
// ⭐ SSOT: 평가 결과 타입
type EvaluationResult struct {
	RunID                  string              `json:"run_id"`
	ContractID             string              `json:"contract_id"`
	ProjectID              string              `json:"project_id,omitempty"`
	PeriodStart            time.Time           `json:"period_start"`
	PeriodEnd              time.Time           `json:"period_end"`
	Breaches               []BreachSummary     `json:"breaches"`
	Evaluations            []ClauseOutcome     `json:"evaluations"`
	LDTotal                decimal.Decimal     `json:"ld_total"`
	NotificationsGenerated int                 `json:"notifications_generated"`
	ProcessingNotes        []string            `json:"processing_notes"`
	Completeness           *CompletenessReport `json:"completeness,omitempty"`
	DetectedEvents         []string            `json:"detected_events,omitempty"`
	ConfigHash             string              `json:"config_hash,omitempty"`
	StartedAt              time.Time           `json:"started_at"`
	Duration               time.Duration       `json:"duration"`
}

// NewEvaluationResult returns an empty, well-formed result
func NewEvaluationResult(runID, contractID string, start, end time.Time) *EvaluationResult {
	return &EvaluationResult{
		RunID:           runID,
		ContractID:      contractID,
		PeriodStart:     start,
		PeriodEnd:       end,
		Breaches:        []BreachSummary{},
		Evaluations:     []ClauseOutcome{},
		LDTotal:         decimal.Zero.Round(2),
		ProcessingNotes: []string{},
	}
}

// AddNote appends a processing note
func (r *EvaluationResult) AddNote(format string, args ...interface{}) {
	r.ProcessingNotes = append(r.ProcessingNotes, fmt.Sprintf(format, args...))
}

// BreachCount returns the number of breaching clauses
func (r *EvaluationResult) BreachCount() int {
	return len(r.Breaches)
}

// PersistedCount returns the number of breaches fully committed
func (r *EvaluationResult) PersistedCount() int {
	n := 0
	for _, b := range r.Breaches {
		if b.Persisted {
			n++
		}
	}
	return n
}
