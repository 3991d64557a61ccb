package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/ld"
)

// AvailabilityRule checks operating time against a guaranteed availability %.
//
//	availability% = operatingHours / (totalHours − excusedHours) × 100
type AvailabilityRule struct {
	clauseID  string
	threshold decimal.Decimal
	allow     []string
	terms     ldTerms
	interval  time.Duration
}

// NewAvailabilityRule builds the rule from clause parameters
func NewAvailabilityRule(c contracts.Clause, env Env) (Rule, error) {
	p := c.NormalizedParameters
	threshold, err := p.RequireDecimal(ParamThreshold)
	if err != nil {
		return nil, err
	}
	if threshold.IsNegative() || threshold.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: threshold %s out of range 0..100", contracts.ErrConfiguration, threshold)
	}
	terms, err := parseLDTerms(p)
	if err != nil {
		return nil, err
	}

	return &AvailabilityRule{
		clauseID:  c.ID,
		threshold: threshold,
		allow:     allowList(p, env),
		terms:     terms,
		interval:  env.DefaultInterval,
	}, nil
}

func (r *AvailabilityRule) Kind() Kind       { return KindAvailability }
func (r *AvailabilityRule) ClauseID() string { return r.clauseID }

// Evaluate computes availability for [start, end)
func (r *AvailabilityRule) Evaluate(readings []contracts.MeterReading, start, end time.Time, excused []contracts.OperationalEvent) (Result, error) {
	totalHours := contracts.PeriodHours(start, end)
	excusedHours := ExcusedHours(excused, r.allow, start, end)
	interval := samplingInterval(readings, r.interval)

	detail := map[string]interface{}{
		"total_hours":      totalHours,
		"excused_hours":    excusedHours,
		"interval_minutes": interval.Minutes(),
		"reading_count":    len(readings),
		"excused_types":    r.allow,
	}

	// 데이터 없음 → 0% 전체 위반 (fail-safe)
	if len(readings) == 0 {
		detail["data_available"] = false
		detail["operating_hours"] = 0.0
		return breachResult(decimal.Zero, r.threshold, r.terms, detail), nil
	}
	detail["data_available"] = true

	positive := 0
	for _, rd := range readings {
		if rd.Value > 0 {
			positive++
		}
	}
	operatingHours := float64(positive) * interval.Hours()
	detail["operating_hours"] = operatingHours

	denominator := totalHours - excusedHours
	detail["available_hours"] = denominator
	if denominator <= 0 {
		// 전 기간 면책
		detail["reason"] = "entire period excused"
		full := roundPct(hundred)
		return Result{CalculatedValue: full, ThresholdValue: r.threshold, Detail: detail}, nil
	}

	availability := fromFloat(operatingHours).Div(fromFloat(denominator)).Mul(hundred)
	if availability.GreaterThan(hundred) {
		detail["uncapped_availability"] = availability.Round(PercentPlaces).InexactFloat64()
		availability = hundred
	}
	availability = roundPct(availability)

	if availability.GreaterThanOrEqual(r.threshold) {
		return Result{CalculatedValue: availability, ThresholdValue: r.threshold, Detail: detail}, nil
	}
	return breachResult(availability, r.threshold, r.terms, detail), nil
}

// breachResult fills shortfall and LD for percentage guarantees
func breachResult(calculated, threshold decimal.Decimal, terms ldTerms, detail map[string]interface{}) Result {
	shortfall := threshold.Sub(calculated)
	if shortfall.IsNegative() {
		shortfall = decimal.Zero
	}
	shortfall = roundPct(shortfall)

	outcome := ld.Calculate(ld.Input{
		Shortfall:    shortfall,
		RatePerPoint: terms.perPoint,
		CapPeriod:    terms.capPeriod,
		CapAnnual:    terms.capAnnual,
	})
	detail["ld_raw"] = outcome.Raw.String()
	detail["ld_capped"] = outcome.Capped
	if outcome.Cap != nil {
		detail["ld_cap"] = outcome.Cap.String()
		detail["ld_cap_source"] = outcome.CapSource
	}
	detail["ld_per_point"] = terms.perPoint.String()

	return Result{
		Breach:          true,
		CalculatedValue: calculated,
		ThresholdValue:  threshold,
		Shortfall:       ptr(shortfall),
		LDAmount:        ptr(outcome.Amount),
		Detail:          detail,
	}
}
