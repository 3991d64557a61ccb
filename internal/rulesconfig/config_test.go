package rulesconfig

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/rules"
)

func TestLoad(t *testing.T) {
	path := "../../config/rules/solar_ppa.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, yamlData)
	assert.Equal(t, "solar_ppa", cfg.Meta.RulesetID)
	assert.Len(t, cfg.Categories, 8)

	// 동일 설정 → 동일 해시
	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)
	hash2, _ := Hash(cfg)
	assert.Equal(t, hash, hash2)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	env := cfg.RulesEnv()
	assert.Equal(t, time.Hour, env.DefaultInterval)
	assert.ElementsMatch(t, rules.DefaultEnv().DefaultExcusedTypes, env.DefaultExcusedTypes)

	kinds := cfg.CategoryKinds()
	assert.Equal(t, rules.KindAvailability, kinds["AVAILABILITY"])
	assert.Equal(t, rules.KindPricing, kinds["TARIFF"])

	assert.Empty(t, Warn(cfg))
}

func TestParse_PartialOverride(t *testing.T) {
	cfg, err := Parse([]byte(`
meta:
  ruleset_id: custom
detector:
  degradation_ratio: 0.7
completeness:
  detect_interior_gaps: true
`))
	require.NoError(t, err)

	assert.Equal(t, "custom", cfg.Meta.RulesetID)
	assert.Equal(t, 0.7, cfg.Detector.DegradationRatio)
	assert.Equal(t, 2, cfg.Detector.MinOutageSamples, "omitted fields keep defaults")
	assert.True(t, cfg.QualityConfig().DetectInteriorGaps)
	assert.Len(t, cfg.Categories, len(rules.DefaultCategories()))
}

func TestParse_CategoriesReplaced(t *testing.T) {
	cfg, err := Parse([]byte(`
meta:
  ruleset_id: availability_only
categories:
  UPTIME: availability
`))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"UPTIME": "availability"}, cfg.Categories)

	codes := make([]string, 0)
	for _, w := range Warn(cfg) {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, "UNMAPPED_CATEGORY")
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte(`
meta:
  ruleset_id: x
detector:
  degredation_ratio: 0.7
`))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing ruleset id", func(c *Config) { c.Meta.RulesetID = "" }, "meta.ruleset_id"},
		{"zero interval", func(c *Config) { c.Engine.DefaultIntervalMinutes = 0 }, "engine.default_interval_minutes"},
		{"unknown kind", func(c *Config) { c.Categories["AVAILABILITY"] = "uptime" }, "categories.AVAILABILITY"},
		{"empty categories", func(c *Config) { c.Categories = map[string]string{} }, "categories"},
		{"ratio out of range", func(c *Config) { c.Detector.DegradationRatio = 1.2 }, "detector.degradation_ratio"},
		{"extended below grid", func(c *Config) { c.Detector.ExtendedOutageHours = 2 }, "detector.extended_outage_hours"},
		{"coverage above 100", func(c *Config) { c.Completeness.MinCoveragePct = 120 }, "completeness.min_coverage_pct"},
		{"severity inverted", func(c *Config) { c.Severity.MediumPct = 20 }, "severity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestHash_ChangesWithConfig(t *testing.T) {
	a := Default()
	b := Default()
	b.Severity.HighPct = 15

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestSeverityClassify(t *testing.T) {
	s := Severity{HighPct: 10, MediumPct: 5}

	assert.Equal(t, contracts.SeverityHigh, s.Classify(12))
	assert.Equal(t, contracts.SeverityHigh, s.Classify(10))
	assert.Equal(t, contracts.SeverityMedium, s.Classify(5.6))
	assert.Equal(t, contracts.SeverityLow, s.Classify(1))
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Detector.ExpectedOutputOverride = 40
	cfg.Engine.DefaultIntervalMinutes = 15

	dc := cfg.DetectorConfig()
	assert.Equal(t, 40.0, dc.ExpectedOutputOverride)
	assert.Equal(t, 15*time.Minute, dc.DefaultInterval)

	qc := cfg.QualityConfig()
	assert.Equal(t, time.Hour, qc.GapThreshold)
	assert.Equal(t, 95.0, qc.MinCoveragePct)
}
