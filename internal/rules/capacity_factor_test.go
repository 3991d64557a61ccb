package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ldwatch/internal/contracts"
)

var (
	dec2024Start = time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	dec2024End   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestCapacityFactorRule_JustBelowThreshold(t *testing.T) {
	// 744 hours, 6,000 MWh delivered
	readings := series(dec2024Start, time.Hour, 744, func(i int) float64 {
		if i < 600 {
			return 10
		}
		return 0
	})

	rule, err := NewCapacityFactorRule(clause("cf-1", "CAPACITY_FACTOR", contracts.Params{
		ParamThreshold:        85,
		ParamNameplateMW:      10,
		ParamEfficiencyFactor: 0.95,
	}), DefaultEnv())
	require.NoError(t, err)

	res, err := rule.Evaluate(readings, dec2024Start, dec2024End, nil)
	require.NoError(t, err)

	assert.True(t, res.Breach)
	assert.Equal(t, "7068", res.Detail["expected_mwh"])
	assert.InDelta(t, 84.9, res.CalculatedValue.InexactFloat64(), 0.05)
	require.NotNil(t, res.Shortfall)
	assert.InDelta(t, 0.1, res.Shortfall.InexactFloat64(), 0.05)
}

func TestCapacityFactorRule_ExcusedHoursLowerExpectation(t *testing.T) {
	readings := series(dec2024Start, time.Hour, 744, func(i int) float64 {
		if i < 600 {
			return 10
		}
		return 0
	})
	excused := []contracts.OperationalEvent{
		event(contracts.EventTypeGridOutage, dec2024Start.Add(600*time.Hour), 144*time.Hour),
	}

	rule, err := NewCapacityFactorRule(clause("cf-1", "CAPACITY_FACTOR", contracts.Params{
		ParamThreshold:   85,
		ParamNameplateMW: 10,
	}), DefaultEnv())
	require.NoError(t, err)

	res, err := rule.Evaluate(readings, dec2024Start, dec2024End, excused)
	require.NoError(t, err)
	assert.False(t, res.Breach)
	assert.Equal(t, "100", res.CalculatedValue.String())
}

func TestCapacityFactorRule_PowerUnitsIntegrated(t *testing.T) {
	// 10 MW for every quarter hour = full output
	readings := series(dec2024Start, 15*time.Minute, 744*4, constant(10))
	for i := range readings {
		readings[i].Unit = contracts.UnitMW
	}

	rule, err := NewCapacityFactorRule(clause("cf-1", "CAPACITY_FACTOR", contracts.Params{
		ParamThreshold:   85,
		ParamNameplateMW: 10,
	}), DefaultEnv())
	require.NoError(t, err)

	res, err := rule.Evaluate(readings, dec2024Start, dec2024End, nil)
	require.NoError(t, err)
	assert.False(t, res.Breach)
	assert.InDelta(t, 100, res.CalculatedValue.InexactFloat64(), 1e-6)
}

func TestNewCapacityFactorRule_InvalidNameplate(t *testing.T) {
	for _, nameplate := range []interface{}{0, -5, "n/a"} {
		_, err := NewCapacityFactorRule(clause("cf-1", "CAPACITY_FACTOR", contracts.Params{
			ParamThreshold:   85,
			ParamNameplateMW: nameplate,
		}), DefaultEnv())
		assert.ErrorIs(t, err, contracts.ErrConfiguration, "nameplate %v", nameplate)
	}
}
