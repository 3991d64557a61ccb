package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/ld"
)

func buildPricing(t *testing.T, params contracts.Params) *PricingRule {
	t.Helper()
	r, err := NewPricingRule(clause("price-1", "PRICING", params), DefaultEnv())
	require.NoError(t, err)
	return r.(*PricingRule)
}

func TestPricingRule_EffectiveRate(t *testing.T) {
	tests := []struct {
		name      string
		params    contracts.Params
		year      int
		wantRate  string
		wantBound string
	}{
		{
			name:      "discounted",
			params:    contracts.Params{ParamReferencePrice: "0.10", ParamDiscountRate: "0.1"},
			year:      2024,
			wantRate:  "0.09",
			wantBound: BoundDiscounted,
		},
		{
			name:      "discount given as percent",
			params:    contracts.Params{ParamReferencePrice: "0.10", ParamDiscountRate: "10"},
			year:      2024,
			wantRate:  "0.09",
			wantBound: BoundDiscounted,
		},
		{
			name:      "floor binding",
			params:    contracts.Params{ParamReferencePrice: "0.10", ParamDiscountRate: "0.1", ParamFloorPrice: "0.095"},
			year:      2024,
			wantRate:  "0.095",
			wantBound: BoundFloor,
		},
		{
			name:      "ceiling binding",
			params:    contracts.Params{ParamReferencePrice: "0.20", ParamCeilingPrice: "0.15"},
			year:      2024,
			wantRate:  "0.15",
			wantBound: BoundCeiling,
		},
		{
			name:      "escalated two years",
			params:    contracts.Params{ParamReferencePrice: "0.10", ParamEscalationRate: "0.02", ParamBaseYear: 2022},
			year:      2024,
			wantRate:  "0.10404",
			wantBound: BoundDiscounted,
		},
		{
			name:      "no escalation before base year",
			params:    contracts.Params{ParamReferencePrice: "0.10", ParamEscalationRate: "0.02", ParamBaseYear: 2026},
			year:      2024,
			wantRate:  "0.1",
			wantBound: BoundDiscounted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, bound := buildPricing(t, tt.params).EffectiveRate(tt.year)
			assert.True(t, rate.Equal(decimal.RequireFromString(tt.wantRate)), "rate %s", rate)
			assert.Equal(t, tt.wantBound, bound)
		})
	}
}

func TestPricingRule_Variance(t *testing.T) {
	// 1,000 kWh over the period
	readings := series(nov2024Start, time.Hour, 10, constant(100))
	for i := range readings {
		readings[i].Unit = contracts.UnitKWh
	}

	base := func(invoiced interface{}) contracts.Params {
		p := contracts.Params{
			ParamReferencePrice: "0.10",
			ParamDiscountRate:   "0.1",
			ParamFloorPrice:     "0.095",
		}
		if invoiced != nil {
			p[ParamInvoicedAmount] = invoiced
		}
		return p
	}

	t.Run("outside tolerance", func(t *testing.T) {
		res, err := buildPricing(t, base("100")).Evaluate(readings, nov2024Start, nov2024End, nil)
		require.NoError(t, err)
		assert.True(t, res.Breach)
		assert.Equal(t, "95.00", ld.Format(res.ThresholdValue))
		assert.Equal(t, "5.00", ld.Format(*res.Shortfall))
		assert.Equal(t, "0.00", ld.Format(*res.LDAmount))
		assert.Equal(t, BoundFloor, res.Detail["binding_bound"])
	})

	t.Run("within tolerance", func(t *testing.T) {
		res, err := buildPricing(t, base("95.50")).Evaluate(readings, nov2024Start, nov2024End, nil)
		require.NoError(t, err)
		assert.False(t, res.Breach)
		assert.Nil(t, res.Shortfall)
	})

	t.Run("underpayment also breaches", func(t *testing.T) {
		res, err := buildPricing(t, base("90")).Evaluate(readings, nov2024Start, nov2024End, nil)
		require.NoError(t, err)
		assert.True(t, res.Breach)
		assert.Equal(t, "5.00", ld.Format(*res.Shortfall))
	})

	t.Run("no invoice supplied", func(t *testing.T) {
		res, err := buildPricing(t, base(nil)).Evaluate(readings, nov2024Start, nov2024End, nil)
		require.NoError(t, err)
		assert.False(t, res.Breach)
		assert.Equal(t, "95.00", res.Detail["expected_amount"])
	})
}

func TestNewPricingRule_InvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		params contracts.Params
	}{
		{"missing reference", contracts.Params{ParamDiscountRate: 0.1}},
		{"floor above ceiling", contracts.Params{ParamReferencePrice: 0.1, ParamFloorPrice: 0.2, ParamCeilingPrice: 0.1}},
		{"escalation without base year", contracts.Params{ParamReferencePrice: 0.1, ParamEscalationRate: 0.02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPricingRule(clause("p", "PRICING", tt.params), DefaultEnv())
			assert.ErrorIs(t, err, contracts.ErrConfiguration)
		})
	}
}
