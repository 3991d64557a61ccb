package contracts

import "time"

// Operational event type codes
const (
	EventTypeEquipFail       = "EQUIP_FAIL"
	EventTypeGridOutage      = "GRID_OUTAGE"
	EventTypePerfDegradation = "PERF_DEGRADATION"
	EventTypeForceMajeure    = "FORCE_MAJEURE"
	EventTypeScheduledMaint  = "SCHEDULED_MAINT"
	EventTypeCurtailment     = "CURTAILMENT"
)

// EventStatus is the lifecycle state of an operational event
type EventStatus string

const (
	EventStatusOpen   EventStatus = "open"
	EventStatusClosed EventStatus = "closed"
)

// OperationalEvent is an operational incident or excused interval.
// Created by the detector (status open) or by an operator elsewhere.
// A nil TimeEnd means the event is still ongoing.
type OperationalEvent struct {
	ID              string                 `json:"id"`
	ProjectID       string                 `json:"project_id"`
	EventTypeCode   string                 `json:"event_type_code"`
	TimeStart       time.Time              `json:"time_start"`
	TimeEnd         *time.Time             `json:"time_end,omitempty"`
	Severity        int                    `json:"severity"` // 1~5
	RawDetail       map[string]interface{} `json:"raw_detail,omitempty"`
	ComputedMetrics map[string]interface{} `json:"computed_metrics,omitempty"`
	Status          EventStatus            `json:"status"`
}

// EndOr returns TimeEnd, or fallback for ongoing events
func (e OperationalEvent) EndOr(fallback time.Time) time.Time {
	if e.TimeEnd == nil {
		return fallback
	}
	return *e.TimeEnd
}

// Overlaps reports whether the event intersects [start, end)
func (e OperationalEvent) Overlaps(start, end time.Time) bool {
	return e.TimeStart.Before(end) && e.EndOr(end).After(start)
}

// Clamp returns the part of the event inside [start, end].
// ok is false when nothing remains.
func (e OperationalEvent) Clamp(start, end time.Time) (from, to time.Time, ok bool) {
	from = e.TimeStart
	if from.Before(start) {
		from = start
	}
	to = e.EndOr(end)
	if to.After(end) {
		to = end
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// DurationHours returns the event length, using fallback as end when ongoing
func (e OperationalEvent) DurationHours(fallback time.Time) float64 {
	end := e.EndOr(fallback)
	if !end.After(e.TimeStart) {
		return 0
	}
	return end.Sub(e.TimeStart).Hours()
}
