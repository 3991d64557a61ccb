package detector

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/ldwatch/internal/contracts"
)

// Detection methods recorded in RawDetail
const (
	MethodZeroOutput       = "zero_output_run"
	MethodPerformanceRatio = "performance_ratio"
)

// Config holds detector thresholds
type Config struct {
	MinOutageSamples       int           `yaml:"min_outage_samples"`       // 2
	GridOutageMinHours     float64       `yaml:"grid_outage_min_hours"`    // 4
	ExtendedOutageHours    float64       `yaml:"extended_outage_hours"`    // 24
	DegradationRatio       float64       `yaml:"degradation_ratio"`        // 0.8
	MinDegradationSamples  int           `yaml:"min_degradation_samples"`  // 4
	ExpectedPercentile     float64       `yaml:"expected_percentile"`      // 90
	ExpectedOutputOverride float64       `yaml:"expected_output_override"` // 0 = percentile
	DefaultInterval        time.Duration `yaml:"-"`
}

// DefaultConfig returns the standard thresholds
func DefaultConfig() Config {
	return Config{
		MinOutageSamples:      2,
		GridOutageMinHours:    4,
		ExtendedOutageHours:   24,
		DegradationRatio:      0.8,
		MinDegradationSamples: 4,
		ExpectedPercentile:    90,
		DefaultInterval:       time.Hour,
	}
}

// Detector 운영 이상 감지기 (outage + degradation)
// 상태 없음: 같은 입력 → 같은 결과
type Detector struct {
	cfg Config
	log zerolog.Logger
}

// New creates a detector
func New(cfg Config, log zerolog.Logger) *Detector {
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = time.Hour
	}
	return &Detector{
		cfg: cfg,
		log: log.With().Str("component", "detector").Logger(),
	}
}

// run is a contiguous span of flagged samples [first, last]
type run struct {
	first, last int
}

func (r run) len() int { return r.last - r.first + 1 }

// Detect runs both passes and returns open incidents ordered by start time
func (d *Detector) Detect(projectID string, readings []contracts.MeterReading) []contracts.OperationalEvent {
	if len(readings) == 0 {
		return []contracts.OperationalEvent{}
	}

	series := readings
	if !sort.SliceIsSorted(series, func(i, j int) bool { return series[i].Timestamp.Before(series[j].Timestamp) }) {
		series = make([]contracts.MeterReading, len(readings))
		copy(series, readings)
		contracts.SortReadings(series)
	}

	interval := contracts.InferInterval(series)
	if interval <= 0 {
		interval = d.cfg.DefaultInterval
	}

	expected, source := d.expectedOutput(series)

	events := d.DetectOutages(projectID, series, interval, expected)
	events = append(events, d.DetectDegradation(projectID, series, interval, expected, source)...)

	sort.SliceStable(events, func(i, j int) bool { return events[i].TimeStart.Before(events[j].TimeStart) })

	d.log.Debug().
		Str("project_id", projectID).
		Int("readings", len(series)).
		Dur("interval", interval).
		Float64("expected_output", expected).
		Int("detected_events", len(events)).
		Msg("detection completed")

	return events
}

// DetectOutages classifies zero-output runs
func (d *Detector) DetectOutages(projectID string, readings []contracts.MeterReading, interval time.Duration, expected float64) []contracts.OperationalEvent {
	runs := findRuns(readings, func(r contracts.MeterReading) bool { return r.Value == 0 })

	events := make([]contracts.OperationalEvent, 0, len(runs))
	for _, rn := range runs {
		if rn.len() < d.cfg.MinOutageSamples {
			continue
		}

		hours := float64(rn.len()) * interval.Hours()
		eventType, severity := d.classifyOutage(hours)

		start := readings[rn.first].Timestamp
		end := readings[rn.last].Timestamp.Add(interval)

		events = append(events, contracts.OperationalEvent{
			ProjectID:     projectID,
			EventTypeCode: eventType,
			TimeStart:     start,
			TimeEnd:       &end,
			Severity:      severity,
			Status:        contracts.EventStatusOpen,
			RawDetail: map[string]interface{}{
				"detection_method":  MethodZeroOutput,
				"duration_hours":    hours,
				"sample_count":      rn.len(),
				"affected_capacity": expected,
				"meter_id":          readings[rn.first].MeterID,
			},
			ComputedMetrics: map[string]interface{}{
				"lost_energy_estimate": expected * float64(rn.len()),
			},
		})
	}
	return events
}

// classifyOutage maps an outage length to type and severity.
// ≥24h EQUIP_FAIL (3 + days − 1, max 5), ≥4h GRID_OUTAGE 3, else EQUIP_FAIL 2.
func (d *Detector) classifyOutage(hours float64) (string, int) {
	switch {
	case hours >= d.cfg.ExtendedOutageHours:
		days := int(math.Floor(hours / 24))
		severity := 3 + days - 1
		if severity > 5 {
			severity = 5
		}
		return contracts.EventTypeEquipFail, severity
	case hours >= d.cfg.GridOutageMinHours:
		return contracts.EventTypeGridOutage, 3
	default:
		return contracts.EventTypeEquipFail, 2
	}
}

// DetectDegradation flags sustained output below DegradationRatio × expected
func (d *Detector) DetectDegradation(projectID string, readings []contracts.MeterReading, interval time.Duration, expected float64, source string) []contracts.OperationalEvent {
	if expected <= 0 {
		return []contracts.OperationalEvent{}
	}

	runs := findRuns(readings, func(r contracts.MeterReading) bool {
		ratio := r.Value / expected
		return ratio > 0 && ratio < d.cfg.DegradationRatio
	})

	events := make([]contracts.OperationalEvent, 0, len(runs))
	for _, rn := range runs {
		if rn.len() < d.cfg.MinDegradationSamples {
			continue
		}

		minRatio, maxRatio, sumRatio := math.MaxFloat64, 0.0, 0.0
		lost := 0.0
		for i := rn.first; i <= rn.last; i++ {
			ratio := readings[i].Value / expected
			sumRatio += ratio
			minRatio = math.Min(minRatio, ratio)
			maxRatio = math.Max(maxRatio, ratio)
			lost += expected - readings[i].Value
		}
		meanRatio := sumRatio / float64(rn.len())
		meanShortfall := 1 - meanRatio
		hours := float64(rn.len()) * interval.Hours()

		start := readings[rn.first].Timestamp
		end := readings[rn.last].Timestamp.Add(interval)

		events = append(events, contracts.OperationalEvent{
			ProjectID:     projectID,
			EventTypeCode: contracts.EventTypePerfDegradation,
			TimeStart:     start,
			TimeEnd:       &end,
			Severity:      degradationSeverity(meanShortfall),
			Status:        contracts.EventStatusOpen,
			RawDetail: map[string]interface{}{
				"detection_method":   MethodPerformanceRatio,
				"duration_hours":     hours,
				"sample_count":       rn.len(),
				"affected_capacity":  lost / float64(rn.len()),
				"expected_output":    expected,
				"expected_source":    source,
				"min_ratio":          minRatio,
				"max_ratio":          maxRatio,
				"mean_ratio":         meanRatio,
				"mean_shortfall_pct": meanShortfall * 100,
				"degradation_ratio":  d.cfg.DegradationRatio,
				"meter_id":           readings[rn.first].MeterID,
			},
			ComputedMetrics: map[string]interface{}{
				"lost_energy_estimate": lost,
			},
		})
	}
	return events
}

// degradationSeverity bands mean shortfall: ≥40% 5, ≥30% 4, ≥20% 3, else 2
func degradationSeverity(meanShortfall float64) int {
	switch {
	case meanShortfall >= 0.40:
		return 5
	case meanShortfall >= 0.30:
		return 4
	case meanShortfall >= 0.20:
		return 3
	default:
		return 2
	}
}

// expectedOutput returns the override when set, else the configured percentile of non-zero output
func (d *Detector) expectedOutput(readings []contracts.MeterReading) (float64, string) {
	if d.cfg.ExpectedOutputOverride > 0 {
		return d.cfg.ExpectedOutputOverride, "override"
	}

	nonZero := make([]float64, 0, len(readings))
	for _, r := range readings {
		if r.Value > 0 {
			nonZero = append(nonZero, r.Value)
		}
	}
	return Percentile(nonZero, d.cfg.ExpectedPercentile), "percentile"
}

// findRuns run-length encodes samples matching flag
func findRuns(readings []contracts.MeterReading, flag func(contracts.MeterReading) bool) []run {
	var runs []run
	start := -1
	for i, r := range readings {
		if flag(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, run{first: start, last: i - 1})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, run{first: start, last: len(readings) - 1})
	}
	return runs
}

// Percentile returns the p-th percentile (0~100) with linear interpolation.
// Zero for an empty input.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
