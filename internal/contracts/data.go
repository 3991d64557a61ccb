package contracts

import "time"

// Gap is a span without readings
type Gap struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Hours float64   `json:"hours"`
	Kind  string    `json:"kind"` // leading, trailing, interior
}

// CompletenessReport is the advisory data-density check of one run
// ⭐ SSOT: 데이터 완전성 정보 전달
type CompletenessReport struct {
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	IntervalMinutes  int       `json:"interval_minutes"`
	ExpectedReadings int       `json:"expected_readings"`
	ActualReadings   int       `json:"actual_readings"`
	CoveragePct      float64   `json:"coverage_pct"` // 0 ~ 100
	Gaps             []Gap     `json:"gaps,omitempty"`
	Complete         bool      `json:"complete"`
}

// HasGaps reports whether any gap was detected
func (r *CompletenessReport) HasGaps() bool {
	return len(r.Gaps) > 0
}

// GapHours returns total hours without data
func (r *CompletenessReport) GapHours() float64 {
	total := 0.0
	for _, g := range r.Gaps {
		total += g.Hours
	}
	return total
}
