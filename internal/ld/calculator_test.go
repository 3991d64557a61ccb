package ld

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/ldwatch/internal/contracts"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		want      string
		capped    bool
		capSource string
	}{
		{
			name: "uncapped",
			in:   Input{Shortfall: dec("5.376"), RatePerPoint: dec("50000")},
			want: "268800.00",
		},
		{
			name:      "period cap wins over annual",
			in:        Input{Shortfall: dec("5.376"), RatePerPoint: dec("50000"), CapPeriod: ptr("100000"), CapAnnual: ptr("50000")},
			want:      "100000.00",
			capped:    true,
			capSource: CapSourcePeriod,
		},
		{
			name:      "annual cap used when no period cap",
			in:        Input{Shortfall: dec("5.376"), RatePerPoint: dec("50000"), CapAnnual: ptr("200000")},
			want:      "200000.00",
			capped:    true,
			capSource: CapSourceAnnual,
		},
		{
			name:      "cap above raw leaves amount untouched",
			in:        Input{Shortfall: dec("1"), RatePerPoint: dec("10"), CapPeriod: ptr("1000")},
			want:      "10.00",
			capSource: CapSourcePeriod,
		},
		{
			name: "zero shortfall",
			in:   Input{Shortfall: decimal.Zero, RatePerPoint: dec("50000")},
			want: "0.00",
		},
		{
			name: "negative shortfall",
			in:   Input{Shortfall: dec("-2"), RatePerPoint: dec("50000")},
			want: "0.00",
		},
		{
			name: "half rounds up",
			in:   Input{Shortfall: dec("0.0005"), RatePerPoint: dec("10")},
			want: "0.01",
		},
		{
			name: "below half rounds down",
			in:   Input{Shortfall: dec("0.0004"), RatePerPoint: dec("10")},
			want: "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Calculate(tt.in)
			assert.Equal(t, tt.want, Format(out.Amount))
			assert.Equal(t, tt.capped, out.Capped)
			assert.Equal(t, tt.capSource, out.CapSource)
			assert.Equal(t, int32(-2), out.Amount.Exponent())
		})
	}
}

func TestProductionPayment(t *testing.T) {
	tests := []struct {
		name    string
		in      PaymentInput
		want    string
		wantErr bool
	}{
		{
			name: "price differential",
			in:   PaymentInput{Formula: FormulaPriceDifferential, ShortfallKWh: dec("1000"), AlternatePrice: dec("0.15"), SolarPrice: dec("0.10")},
			want: "50.00",
		},
		{
			name: "price differential floored at zero",
			in:   PaymentInput{Formula: FormulaPriceDifferential, ShortfallKWh: dec("1000"), AlternatePrice: dec("0.08"), SolarPrice: dec("0.10")},
			want: "0.00",
		},
		{
			name: "fixed rate",
			in:   PaymentInput{Formula: FormulaFixedRatePerKWh, ShortfallKWh: dec("1234.5"), FixedRate: dec("0.05")},
			want: "61.73",
		},
		{
			name: "none",
			in:   PaymentInput{Formula: FormulaNone, ShortfallKWh: dec("1000")},
			want: "0.00",
		},
		{
			name:    "unknown formula",
			in:      PaymentInput{Formula: "barter", ShortfallKWh: dec("1000")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProductionPayment(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, contracts.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, Format(got))
		})
	}
}

func TestPercent(t *testing.T) {
	assert.True(t, Percent(dec("1"), dec("4")).Equal(dec("25")))
	assert.True(t, Percent(dec("1"), decimal.Zero).IsZero())
}
