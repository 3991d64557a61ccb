package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/ld"
)

// Binding bounds of the effective rate
const (
	BoundDiscounted = "discounted"
	BoundFloor      = "floor"
	BoundCeiling    = "ceiling"
)

var defaultTolerance = decimal.NewFromInt(1)

// PricingRule is a variance check of invoiced amounts, not a performance guarantee.
//
//	effectiveRate = clamp(floor, (1 − discount) × reference, ceiling)
//	expected      = effectiveRate × energy_kWh
type PricingRule struct {
	clauseID   string
	reference  decimal.Decimal
	discount   decimal.Decimal
	floor      *decimal.Decimal
	ceiling    *decimal.Decimal
	escalation *decimal.Decimal
	baseYear   int
	invoiced   *decimal.Decimal
	tolerance  decimal.Decimal
	interval   time.Duration
}

// NewPricingRule builds the rule from clause parameters
func NewPricingRule(c contracts.Clause, env Env) (Rule, error) {
	p := c.NormalizedParameters
	reference, err := p.RequireDecimal(ParamReferencePrice)
	if err != nil {
		return nil, err
	}

	r := &PricingRule{
		clauseID:  c.ID,
		reference: reference,
		discount:  decimal.Zero,
		tolerance: defaultTolerance,
		interval:  env.DefaultInterval,
	}

	if d, err := p.OptionalDecimal(ParamDiscountRate); err != nil {
		return nil, err
	} else if d != nil {
		r.discount = *d
		// 15 → 0.15
		if r.discount.GreaterThan(decimal.NewFromInt(1)) {
			r.discount = r.discount.Div(hundred)
		}
	}
	if r.floor, err = p.OptionalDecimal(ParamFloorPrice); err != nil {
		return nil, err
	}
	if r.ceiling, err = p.OptionalDecimal(ParamCeilingPrice); err != nil {
		return nil, err
	}
	if r.floor != nil && r.ceiling != nil && r.floor.GreaterThan(*r.ceiling) {
		return nil, fmt.Errorf("%w: floor %s above ceiling %s", contracts.ErrConfiguration, r.floor, r.ceiling)
	}
	if r.escalation, err = p.OptionalDecimal(ParamEscalationRate); err != nil {
		return nil, err
	}
	if r.escalation != nil {
		year, ok := p.Int(ParamBaseYear)
		if !ok {
			return nil, fmt.Errorf("%w: %s requires %s", contracts.ErrConfiguration, ParamEscalationRate, ParamBaseYear)
		}
		r.baseYear = year
	}
	if r.invoiced, err = p.OptionalDecimal(ParamInvoicedAmount); err != nil {
		return nil, err
	}
	if tol, err := p.OptionalDecimal(ParamTolerancePercent); err != nil {
		return nil, err
	} else if tol != nil {
		r.tolerance = *tol
	}

	return r, nil
}

func (r *PricingRule) Kind() Kind       { return KindPricing }
func (r *PricingRule) ClauseID() string { return r.clauseID }

// EffectiveRate returns the rate for the given year and the binding bound
func (r *PricingRule) EffectiveRate(year int) (decimal.Decimal, string) {
	reference := r.reference
	if r.escalation != nil && year > r.baseYear {
		factor := decimal.NewFromInt(1).Add(*r.escalation)
		for i := 0; i < year-r.baseYear; i++ {
			reference = reference.Mul(factor)
		}
	}

	rate := decimal.NewFromInt(1).Sub(r.discount).Mul(reference)
	bound := BoundDiscounted
	if r.floor != nil && rate.LessThan(*r.floor) {
		rate, bound = *r.floor, BoundFloor
	}
	if r.ceiling != nil && rate.GreaterThan(*r.ceiling) {
		rate, bound = *r.ceiling, BoundCeiling
	}
	return rate, bound
}

// Evaluate compares the invoiced amount against the expected amount.
// Without an invoiced amount the expected figures are reported and nothing breaches.
func (r *PricingRule) Evaluate(readings []contracts.MeterReading, start, end time.Time, _ []contracts.OperationalEvent) (Result, error) {
	interval := samplingInterval(readings, r.interval)

	energyKWh := decimal.Zero
	for _, rd := range readings {
		energyKWh = energyKWh.Add(fromFloat(rd.EnergyMWh(interval.Hours()) * 1000))
	}
	energyKWh = energyKWh.Round(3)

	rate, bound := r.EffectiveRate(start.Year())
	expected := ld.RoundMoney(rate.Mul(energyKWh))

	detail := map[string]interface{}{
		"energy_kwh":        energyKWh.String(),
		"reference_price":   r.reference.String(),
		"discount_rate":     r.discount.String(),
		"effective_rate":    rate.String(),
		"binding_bound":     bound,
		"expected_amount":   ld.Format(expected),
		"tolerance_percent": r.tolerance.String(),
	}
	if r.escalation != nil {
		detail["escalation_rate"] = r.escalation.String()
		detail["base_year"] = r.baseYear
	}

	if r.invoiced == nil {
		detail["reason"] = "no invoiced amount supplied"
		return Result{CalculatedValue: expected, ThresholdValue: expected, Detail: detail}, nil
	}

	invoiced := *r.invoiced
	variance := invoiced.Sub(expected)
	variancePct := decimal.Zero
	if !expected.IsZero() {
		variancePct = roundPct(variance.Div(expected).Mul(hundred))
	} else if !invoiced.IsZero() {
		variancePct = roundPct(hundred)
	}
	detail["invoiced_amount"] = ld.Format(invoiced)
	detail["variance_amount"] = ld.Format(variance)
	detail["variance_percent"] = variancePct.String()

	if variancePct.Abs().LessThanOrEqual(r.tolerance) {
		return Result{CalculatedValue: invoiced, ThresholdValue: expected, Detail: detail}, nil
	}

	// 가격 불일치는 LD 대상이 아님
	return Result{
		Breach:          true,
		CalculatedValue: invoiced,
		ThresholdValue:  expected,
		Shortfall:       ptr(ld.RoundMoney(variance.Abs())),
		LDAmount:        ptr(ld.Zero()),
		Detail:          detail,
	}, nil
}
