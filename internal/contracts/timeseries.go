package contracts

import (
	"sort"
	"strings"
	"time"
)

// MeterReading is one metered sample produced by the ingestion pipeline.
// Readings are immutable facts; nothing in this module mutates them.
// ⭐ SSOT: 계측값 타입은 여기서만 정의
type MeterReading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	MeterID   string    `json:"meter_id"`
	Unit      string    `json:"unit"` // MWh, kWh, MW, kW
}

// Energy units understood by EnergyMWh
const (
	UnitMWh = "MWh"
	UnitKWh = "kWh"
	UnitMW  = "MW"
	UnitKW  = "kW"
)

// EnergyMWh converts the reading to delivered energy in MWh.
// Power units are integrated over intervalHours; an empty unit is MWh.
func (r MeterReading) EnergyMWh(intervalHours float64) float64 {
	switch strings.ToLower(r.Unit) {
	case "kwh":
		return r.Value / 1000
	case "mw":
		return r.Value * intervalHours
	case "kw":
		return r.Value * intervalHours / 1000
	default:
		return r.Value
	}
}

// SortReadings orders readings by timestamp in place
func SortReadings(readings []MeterReading) {
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
}

// AggregateByTimestamp sums readings from several meters that share a
// timestamp into one project-level series. The input is not modified.
// Mixed units are converted to MWh before summing.
func AggregateByTimestamp(readings []MeterReading) []MeterReading {
	if len(readings) == 0 {
		return []MeterReading{}
	}

	sorted := make([]MeterReading, len(readings))
	copy(sorted, readings)
	SortReadings(sorted)

	// ⭐ 단위가 섞이면 MWh 로 통일 (kWh + MWh 를 그대로 더하지 않음)
	if !sameUnit(sorted) {
		hours := InferInterval(sorted).Hours()
		if hours == 0 {
			hours = 1
		}
		for i := range sorted {
			sorted[i].Value = sorted[i].EnergyMWh(hours)
			sorted[i].Unit = UnitMWh
		}
	}

	out := make([]MeterReading, 0, len(sorted))
	for _, r := range sorted {
		last := len(out) - 1
		if last >= 0 && out[last].Timestamp.Equal(r.Timestamp) {
			out[last].Value += r.Value
			if out[last].MeterID != r.MeterID {
				out[last].MeterID = "aggregate"
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// sameUnit reports whether every reading uses one unit; empty counts as MWh
func sameUnit(readings []MeterReading) bool {
	norm := func(u string) string {
		if u == "" {
			return "mwh"
		}
		return strings.ToLower(u)
	}
	first := norm(readings[0].Unit)
	for _, r := range readings[1:] {
		if norm(r.Unit) != first {
			return false
		}
	}
	return true
}

// InferInterval returns the median spacing between consecutive readings.
// Zero means the interval cannot be inferred (fewer than two readings).
func InferInterval(readings []MeterReading) time.Duration {
	if len(readings) < 2 {
		return 0
	}

	diffs := make([]time.Duration, 0, len(readings)-1)
	for i := 1; i < len(readings); i++ {
		d := readings[i].Timestamp.Sub(readings[i-1].Timestamp)
		if d > 0 {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) == 0 {
		return 0
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i] < diffs[j] })
	return diffs[len(diffs)/2]
}

// PeriodHours returns the length of [start, end) in hours
func PeriodHours(start, end time.Time) float64 {
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}
