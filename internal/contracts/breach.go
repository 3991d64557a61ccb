package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultStatus is the lifecycle state of a breach record
type DefaultStatus string

const (
	DefaultStatusOpen   DefaultStatus = "open"
	DefaultStatusCured  DefaultStatus = "cured"
	DefaultStatusClosed DefaultStatus = "closed"
)

// Severity of a breach, derived from shortfall relative to threshold
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// DefaultEvent is the persisted breach record
// ⭐ SSOT: 위반 기록 타입은 여기서만 정의
type DefaultEvent struct {
	ID                 string                 `json:"id"`
	ProjectID          string                 `json:"project_id"`
	ContractID         string                 `json:"contract_id"`
	OperationalEventID string                 `json:"operational_event_id,omitempty"`
	TimeStart          time.Time              `json:"time_start"`
	Status             DefaultStatus          `json:"status"`
	Description        string                 `json:"description"`
	MetadataDetail     map[string]interface{} `json:"metadata_detail,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
}

// RuleOutput is the quantitative evidence behind a DefaultEvent
type RuleOutput struct {
	ID              string                 `json:"id"`
	DefaultEventID  string                 `json:"default_event_id"`
	ClauseID        string                 `json:"clause_id"`
	RuleType        string                 `json:"rule_type"`
	CalculatedValue decimal.Decimal        `json:"calculated_value"`
	ThresholdValue  decimal.Decimal        `json:"threshold_value"`
	Shortfall       decimal.Decimal        `json:"shortfall"`
	LDAmount        decimal.Decimal        `json:"ld_amount"`
	Detail          map[string]interface{} `json:"detail,omitempty"`
}

// Notification is the downstream trigger polled by the delivery subsystem
type Notification struct {
	ID             string                 `json:"id"`
	ProjectID      string                 `json:"project_id"`
	DefaultEventID string                 `json:"default_event_id"`
	RuleOutputID   string                 `json:"rule_output_id"`
	Description    string                 `json:"description"`
	MetadataDetail map[string]interface{} `json:"metadata_detail,omitempty"`
}

// Breach bundles the three records written as one unit.
// Identifiers are assigned by the store.
type Breach struct {
	DefaultEvent DefaultEvent
	RuleOutput   RuleOutput
	Notification Notification
}

// PersistedBreach holds the identifiers of a committed Breach
type PersistedBreach struct {
	DefaultEventID string `json:"default_event_id"`
	RuleOutputID   string `json:"rule_output_id"`
	NotificationID string `json:"notification_id"`
}
