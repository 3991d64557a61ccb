// Package quality checks meter data density before evaluation.
// The report is advisory; it never blocks a run.
package quality

import (
	"math"
	"time"

	"github.com/wonny/ldwatch/internal/contracts"
)

// Gap kinds
const (
	GapLeading  = "leading"
	GapTrailing = "trailing"
	GapInterior = "interior"
)

// Config holds completeness thresholds
type Config struct {
	Interval           time.Duration `yaml:"-"`                    // nominal; 0 = infer from readings
	GapThreshold       time.Duration `yaml:"-"`                    // 1h
	MinCoveragePct     float64       `yaml:"min_coverage_pct"`     // 95
	DetectInteriorGaps bool          `yaml:"detect_interior_gaps"` // false
}

// DefaultConfig returns hourly nominal sampling with 1h gap detection
func DefaultConfig() Config {
	return Config{
		Interval:       time.Hour,
		GapThreshold:   time.Hour,
		MinCoveragePct: 95,
	}
}

// Validator computes CompletenessReports
type Validator struct {
	config Config
}

// NewValidator creates a new Validator instance
func NewValidator(config Config) *Validator {
	if config.GapThreshold <= 0 {
		config.GapThreshold = time.Hour
	}
	return &Validator{config: config}
}

// Check reports coverage and gaps for readings over [start, end)
// ⭐ SSOT: 데이터 완전성 검증
func (v *Validator) Check(readings []contracts.MeterReading, start, end time.Time) *contracts.CompletenessReport {
	report := &contracts.CompletenessReport{
		PeriodStart: start,
		PeriodEnd:   end,
		Gaps:        []contracts.Gap{},
	}

	interval := v.interval(readings)
	report.IntervalMinutes = int(math.Round(interval.Minutes()))

	// 1. 기대 건수
	periodHours := contracts.PeriodHours(start, end)
	if interval > 0 {
		report.ExpectedReadings = int(math.Round(periodHours * 60 / interval.Minutes()))
	}

	// 2. 실제 건수 ([start, end) 범위만)
	inRange := make([]contracts.MeterReading, 0, len(readings))
	for _, r := range readings {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			inRange = append(inRange, r)
		}
	}
	report.ActualReadings = len(inRange)

	// 3. 커버리지
	if report.ExpectedReadings > 0 {
		report.CoveragePct = math.Min(100, float64(report.ActualReadings)/float64(report.ExpectedReadings)*100)
		report.CoveragePct = math.Round(report.CoveragePct*100) / 100
	}

	// 4. 공백 구간
	report.Gaps = v.findGaps(inRange, start, end, interval)

	report.Complete = report.CoveragePct >= v.config.MinCoveragePct && len(report.Gaps) == 0
	return report
}

func (v *Validator) interval(readings []contracts.MeterReading) time.Duration {
	if v.config.Interval > 0 {
		return v.config.Interval
	}
	if d := contracts.InferInterval(readings); d > 0 {
		return d
	}
	return time.Hour
}

// findGaps detects leading and trailing gaps, and interior gaps when enabled
func (v *Validator) findGaps(readings []contracts.MeterReading, start, end time.Time, interval time.Duration) []contracts.Gap {
	gaps := []contracts.Gap{}
	if !end.After(start) {
		return gaps
	}

	if len(readings) == 0 {
		return append(gaps, newGap(start, end, GapLeading))
	}

	first := readings[0].Timestamp
	last := readings[len(readings)-1].Timestamp

	if first.Sub(start) > v.config.GapThreshold {
		gaps = append(gaps, newGap(start, first, GapLeading))
	}

	if v.config.DetectInteriorGaps {
		for i := 1; i < len(readings); i++ {
			prevEnd := readings[i-1].Timestamp.Add(interval)
			if readings[i].Timestamp.Sub(prevEnd) > v.config.GapThreshold {
				gaps = append(gaps, newGap(prevEnd, readings[i].Timestamp, GapInterior))
			}
		}
	}

	lastEnd := last.Add(interval)
	if end.Sub(lastEnd) > v.config.GapThreshold {
		gaps = append(gaps, newGap(lastEnd, end, GapTrailing))
	}

	return gaps
}

func newGap(from, to time.Time, kind string) contracts.Gap {
	return contracts.Gap{Start: from, End: to, Hours: to.Sub(from).Hours(), Kind: kind}
}
