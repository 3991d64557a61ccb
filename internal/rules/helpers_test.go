package rules

import (
	"time"

	"github.com/wonny/ldwatch/internal/contracts"
)

var (
	nov2024Start = time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	nov2024End   = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
)

// series builds readings every step from start; value(i) supplies each sample
func series(start time.Time, step time.Duration, n int, value func(i int) float64) []contracts.MeterReading {
	out := make([]contracts.MeterReading, n)
	for i := 0; i < n; i++ {
		out[i] = contracts.MeterReading{
			Timestamp: start.Add(time.Duration(i) * step),
			Value:     value(i),
			MeterID:   "m1",
			Unit:      contracts.UnitMWh,
		}
	}
	return out
}

func constant(v float64) func(int) float64 {
	return func(int) float64 { return v }
}

func event(typ string, start time.Time, d time.Duration) contracts.OperationalEvent {
	end := start.Add(d)
	return contracts.OperationalEvent{
		ID:            typ + "-" + start.Format(time.RFC3339),
		EventTypeCode: typ,
		TimeStart:     start,
		TimeEnd:       &end,
		Status:        contracts.EventStatusClosed,
	}
}

func clause(id, category string, params contracts.Params) contracts.Clause {
	return contracts.Clause{
		ID:                   id,
		ContractID:           "contract-1",
		ProjectID:            "project-1",
		CategoryCode:         category,
		NormalizedParameters: params,
	}
}
