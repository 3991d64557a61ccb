package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/ldwatch/internal/contracts"
)

// CapacityFactorRule checks delivered energy against nameplate capacity.
//
//	expected = nameplate_MW × (totalHours − excusedHours) × efficiency
//	CF%      = actual_MWh / expected × 100
type CapacityFactorRule struct {
	clauseID   string
	threshold  decimal.Decimal
	nameplate  decimal.Decimal
	efficiency decimal.Decimal
	allow      []string
	terms      ldTerms
	interval   time.Duration
}

// NewCapacityFactorRule builds the rule; nameplate ≤ 0 is a configuration error
func NewCapacityFactorRule(c contracts.Clause, env Env) (Rule, error) {
	p := c.NormalizedParameters
	threshold, err := p.RequireDecimal(ParamThreshold)
	if err != nil {
		return nil, err
	}
	nameplate, err := p.RequireDecimal(ParamNameplateMW)
	if err != nil {
		return nil, err
	}
	if !nameplate.IsPositive() {
		return nil, fmt.Errorf("%w: invalid nameplate capacity %s MW", contracts.ErrConfiguration, nameplate)
	}

	efficiency := decimal.NewFromInt(1)
	if eff, err := p.OptionalDecimal(ParamEfficiencyFactor); err != nil {
		return nil, err
	} else if eff != nil {
		if !eff.IsPositive() {
			return nil, fmt.Errorf("%w: invalid efficiency factor %s", contracts.ErrConfiguration, eff)
		}
		efficiency = *eff
	}

	terms, err := parseLDTerms(p)
	if err != nil {
		return nil, err
	}

	return &CapacityFactorRule{
		clauseID:   c.ID,
		threshold:  threshold,
		nameplate:  nameplate,
		efficiency: efficiency,
		allow:      allowList(p, env),
		terms:      terms,
		interval:   env.DefaultInterval,
	}, nil
}

func (r *CapacityFactorRule) Kind() Kind       { return KindCapacityFactor }
func (r *CapacityFactorRule) ClauseID() string { return r.clauseID }

// Evaluate computes the capacity factor for [start, end)
func (r *CapacityFactorRule) Evaluate(readings []contracts.MeterReading, start, end time.Time, excused []contracts.OperationalEvent) (Result, error) {
	totalHours := contracts.PeriodHours(start, end)
	excusedHours := ExcusedHours(excused, r.allow, start, end)
	interval := samplingInterval(readings, r.interval)

	actual := decimal.Zero
	for _, rd := range readings {
		actual = actual.Add(fromFloat(rd.EnergyMWh(interval.Hours())))
	}

	expected := r.nameplate.Mul(fromFloat(totalHours - excusedHours)).Mul(r.efficiency)

	detail := map[string]interface{}{
		"total_hours":           totalHours,
		"excused_hours":         excusedHours,
		"nameplate_capacity_mw": r.nameplate.String(),
		"efficiency_factor":     r.efficiency.String(),
		"expected_mwh":          expected.Round(3).String(),
		"actual_mwh":            actual.Round(3).String(),
		"reading_count":         len(readings),
		"data_available":        len(readings) > 0,
		"excused_types":         r.allow,
	}

	if !expected.IsPositive() {
		detail["reason"] = "no expected generation in period"
		return Result{CalculatedValue: roundPct(hundred), ThresholdValue: r.threshold, Detail: detail}, nil
	}

	cf := roundPct(actual.Div(expected).Mul(hundred))
	if cf.GreaterThanOrEqual(r.threshold) {
		return Result{CalculatedValue: cf, ThresholdValue: r.threshold, Detail: detail}, nil
	}
	return breachResult(cf, r.threshold, r.terms, detail), nil
}
