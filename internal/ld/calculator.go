// Package ld computes liquidated damages from guarantee shortfalls.
// All amounts are decimal; float64 never touches currency.
package ld

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/ldwatch/internal/contracts"
)

// MoneyPlaces is the scale of every monetary amount
const MoneyPlaces = 2

// Cap sources
const (
	CapSourcePeriod = "period"
	CapSourceAnnual = "annual"
)

var hundred = decimal.NewFromInt(100)

// Input is one LD computation
type Input struct {
	Shortfall    decimal.Decimal  // points or kWh depending on the rule
	RatePerPoint decimal.Decimal  // currency per unit of shortfall
	CapPeriod    *decimal.Decimal // takes precedence over CapAnnual
	CapAnnual    *decimal.Decimal
}

// Outcome is the capped, rounded LD
type Outcome struct {
	Raw       decimal.Decimal  `json:"raw"`
	Amount    decimal.Decimal  `json:"amount"`
	Cap       *decimal.Decimal `json:"cap,omitempty"`
	CapSource string           `json:"cap_source,omitempty"`
	Capped    bool             `json:"capped"`
}

// Calculate returns shortfall × rate, clamped to the first configured cap
// (period, then annual) and rounded half-up to cents.
// A non-positive shortfall yields exactly 0.00.
func Calculate(in Input) Outcome {
	if !in.Shortfall.IsPositive() || !in.RatePerPoint.IsPositive() {
		return Outcome{Raw: Zero(), Amount: Zero()}
	}

	raw := in.Shortfall.Mul(in.RatePerPoint)
	out := Outcome{Raw: raw, Amount: raw}

	limit, source := selectCap(in.CapPeriod, in.CapAnnual)
	if limit != nil {
		c := *limit
		out.Cap = &c
		out.CapSource = source
		if raw.GreaterThan(c) {
			out.Amount = c
			out.Capped = true
		}
	}

	out.Amount = RoundMoney(out.Amount)
	return out
}

func selectCap(period, annual *decimal.Decimal) (*decimal.Decimal, string) {
	if period != nil && !period.IsNegative() {
		return period, CapSourcePeriod
	}
	if annual != nil && !annual.IsNegative() {
		return annual, CapSourceAnnual
	}
	return nil, ""
}

// RoundMoney rounds half-up to MoneyPlaces.
// Negative inputs are floored at zero before rounding.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero()
	}
	// Round is half away from zero, i.e. half-up for non-negative values
	return d.Round(MoneyPlaces)
}

// Zero is 0.00
func Zero() decimal.Decimal {
	return decimal.Zero.Round(MoneyPlaces)
}

// Format renders a monetary amount with exactly two decimals
func Format(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}

// Payment formulas for production shortfalls
const (
	FormulaPriceDifferential = "price_differential"
	FormulaFixedRatePerKWh   = "fixed_rate_per_kwh"
	FormulaNone              = "none"
)

// PaymentInput carries the prices a production payment formula may need
type PaymentInput struct {
	Formula        string
	ShortfallKWh   decimal.Decimal
	AlternatePrice decimal.Decimal // per kWh
	SolarPrice     decimal.Decimal // per kWh
	FixedRate      decimal.Decimal // per kWh
}

// ProductionPayment evaluates the selected shortfall payment formula.
// Unknown formulas fail with contracts.ErrConfiguration.
func ProductionPayment(in PaymentInput) (decimal.Decimal, error) {
	if !in.ShortfallKWh.IsPositive() {
		return Zero(), nil
	}

	switch strings.ToLower(strings.TrimSpace(in.Formula)) {
	case FormulaPriceDifferential:
		diff := in.AlternatePrice.Sub(in.SolarPrice)
		if diff.IsNegative() {
			diff = decimal.Zero
		}
		return RoundMoney(in.ShortfallKWh.Mul(diff)), nil
	case FormulaFixedRatePerKWh:
		return RoundMoney(in.ShortfallKWh.Mul(in.FixedRate)), nil
	case FormulaNone, "":
		return Zero(), nil
	default:
		return Zero(), fmt.Errorf("%w: unknown payment formula %q", contracts.ErrConfiguration, in.Formula)
	}
}

// Percent returns part/whole × 100, zero when whole is not positive
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}
