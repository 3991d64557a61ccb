package rulesconfig

import (
	"time"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/detector"
	"github.com/wonny/ldwatch/internal/quality"
	"github.com/wonny/ldwatch/internal/rules"
)

// Config는 컴플라이언스 평가 엔진의 전체 설정
// ⭐ SSOT: 카테고리 매핑/감지 임계값/완전성 기준은 여기서만 정의
type Config struct {
	Meta         Meta              `yaml:"meta" json:"meta"`
	Engine       Engine            `yaml:"engine" json:"engine"`
	Categories   map[string]string `yaml:"categories" json:"categories"` // category_code → rule kind
	Detector     Detector          `yaml:"detector" json:"detector"`
	Completeness Completeness      `yaml:"completeness" json:"completeness"`
	Severity     Severity          `yaml:"severity" json:"severity"`
}

// Meta 메타 정보
type Meta struct {
	RulesetID string `yaml:"ruleset_id" json:"ruleset_id"`
	Version   string `yaml:"version" json:"version"`
}

// Engine 규칙 공통 기본값
type Engine struct {
	DefaultIntervalMinutes int      `yaml:"default_interval_minutes" json:"default_interval_minutes"`
	DefaultExcusedEvents   []string `yaml:"default_excused_events" json:"default_excused_events"`
}

// Detector 운영 이상 감지 임계값
type Detector struct {
	MinOutageSamples       int     `yaml:"min_outage_samples" json:"min_outage_samples"`
	GridOutageMinHours     float64 `yaml:"grid_outage_min_hours" json:"grid_outage_min_hours"`
	ExtendedOutageHours    float64 `yaml:"extended_outage_hours" json:"extended_outage_hours"`
	DegradationRatio       float64 `yaml:"degradation_ratio" json:"degradation_ratio"`
	MinDegradationSamples  int     `yaml:"min_degradation_samples" json:"min_degradation_samples"`
	ExpectedPercentile     float64 `yaml:"expected_percentile" json:"expected_percentile"`
	ExpectedOutputOverride float64 `yaml:"expected_output_override" json:"expected_output_override"` // 0 = percentile
}

// Completeness 데이터 완전성 기준
type Completeness struct {
	IntervalMinutes     int     `yaml:"interval_minutes" json:"interval_minutes"` // 0 = infer
	GapThresholdMinutes int     `yaml:"gap_threshold_minutes" json:"gap_threshold_minutes"`
	MinCoveragePct      float64 `yaml:"min_coverage_pct" json:"min_coverage_pct"`
	DetectInteriorGaps  bool    `yaml:"detect_interior_gaps" json:"detect_interior_gaps"`
}

// Severity 위반 심각도 구간 (shortfall / threshold, %)
type Severity struct {
	HighPct   float64 `yaml:"high_pct" json:"high_pct"`
	MediumPct float64 `yaml:"medium_pct" json:"medium_pct"`
}

// Default returns the built-in ruleset used when no YAML file is configured
func Default() *Config {
	dc := detector.DefaultConfig()
	qc := quality.DefaultConfig()
	env := rules.DefaultEnv()

	categories := make(map[string]string)
	for code, kind := range rules.DefaultCategories() {
		categories[code] = string(kind)
	}

	return &Config{
		Meta: Meta{RulesetID: "default", Version: "1"},
		Engine: Engine{
			DefaultIntervalMinutes: int(env.DefaultInterval / time.Minute),
			DefaultExcusedEvents:   append([]string(nil), env.DefaultExcusedTypes...),
		},
		Categories: categories,
		Detector: Detector{
			MinOutageSamples:      dc.MinOutageSamples,
			GridOutageMinHours:    dc.GridOutageMinHours,
			ExtendedOutageHours:   dc.ExtendedOutageHours,
			DegradationRatio:      dc.DegradationRatio,
			MinDegradationSamples: dc.MinDegradationSamples,
			ExpectedPercentile:    dc.ExpectedPercentile,
		},
		Completeness: Completeness{
			IntervalMinutes:     int(qc.Interval / time.Minute),
			GapThresholdMinutes: int(qc.GapThreshold / time.Minute),
			MinCoveragePct:      qc.MinCoveragePct,
			DetectInteriorGaps:  qc.DetectInteriorGaps,
		},
		Severity: Severity{HighPct: 10, MediumPct: 5},
	}
}

// RulesEnv converts the engine section for rule builders
func (c *Config) RulesEnv() rules.Env {
	return rules.Env{
		DefaultInterval:     time.Duration(c.Engine.DefaultIntervalMinutes) * time.Minute,
		DefaultExcusedTypes: append([]string(nil), c.Engine.DefaultExcusedEvents...),
	}
}

// CategoryKinds returns the category map typed for the registry.
// Validate guarantees every value parses.
func (c *Config) CategoryKinds() map[string]rules.Kind {
	out := make(map[string]rules.Kind, len(c.Categories))
	for code, kind := range c.Categories {
		k, err := rules.ParseKind(kind)
		if err != nil {
			continue
		}
		out[code] = k
	}
	return out
}

// DetectorConfig converts the detector section
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		MinOutageSamples:       c.Detector.MinOutageSamples,
		GridOutageMinHours:     c.Detector.GridOutageMinHours,
		ExtendedOutageHours:    c.Detector.ExtendedOutageHours,
		DegradationRatio:       c.Detector.DegradationRatio,
		MinDegradationSamples:  c.Detector.MinDegradationSamples,
		ExpectedPercentile:     c.Detector.ExpectedPercentile,
		ExpectedOutputOverride: c.Detector.ExpectedOutputOverride,
		DefaultInterval:        time.Duration(c.Engine.DefaultIntervalMinutes) * time.Minute,
	}
}

// QualityConfig converts the completeness section
func (c *Config) QualityConfig() quality.Config {
	return quality.Config{
		Interval:           time.Duration(c.Completeness.IntervalMinutes) * time.Minute,
		GapThreshold:       time.Duration(c.Completeness.GapThresholdMinutes) * time.Minute,
		MinCoveragePct:     c.Completeness.MinCoveragePct,
		DetectInteriorGaps: c.Completeness.DetectInteriorGaps,
	}
}

// Classify maps a shortfall ratio (percent of threshold) to a severity band
func (s Severity) Classify(shortfallPct float64) contracts.Severity {
	switch {
	case shortfallPct >= s.HighPct:
		return contracts.SeverityHigh
	case shortfallPct >= s.MediumPct:
		return contracts.SeverityMedium
	default:
		return contracts.SeverityLow
	}
}
