package rules

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/ld"
)

// hoursPerYear is the proration base for excused production
const hoursPerYear = 8760

// ProductionGuaranteeRule checks annual energy against a guaranteed kWh.
//
//	excusedKWh   = guaranteedKWh × excusedHours / 8760
//	shortfallKWh = max(0, guaranteed − excused − actual)
type ProductionGuaranteeRule struct {
	clauseID   string
	guaranteed decimal.Decimal
	payment    ld.PaymentInput
	capPeriod  *decimal.Decimal
	capAnnual  *decimal.Decimal
	allow      []string
	interval   time.Duration
}

// NewProductionGuaranteeRule builds the rule from clause parameters
func NewProductionGuaranteeRule(c contracts.Clause, env Env) (Rule, error) {
	p := c.NormalizedParameters
	guaranteed, err := p.RequireDecimal(ParamGuaranteedKWh)
	if err != nil {
		return nil, err
	}
	if !guaranteed.IsPositive() {
		return nil, fmt.Errorf("%w: guaranteed production must be positive, got %s", contracts.ErrConfiguration, guaranteed)
	}

	formula, _ := p.String(ParamPaymentFormula)
	if formula == "" {
		formula = ld.FormulaNone
	}
	payment := ld.PaymentInput{Formula: formula}
	switch formula {
	case ld.FormulaPriceDifferential:
		if payment.AlternatePrice, err = p.RequireDecimal(ParamAlternatePrice); err != nil {
			return nil, err
		}
		if payment.SolarPrice, err = p.RequireDecimal(ParamSolarPrice); err != nil {
			return nil, err
		}
	case ld.FormulaFixedRatePerKWh:
		if payment.FixedRate, err = p.RequireDecimal(ParamFixedRate); err != nil {
			return nil, err
		}
	case ld.FormulaNone:
	default:
		return nil, fmt.Errorf("%w: unknown payment formula %q", contracts.ErrConfiguration, formula)
	}

	terms, err := parseLDTerms(p)
	if err != nil {
		return nil, err
	}

	return &ProductionGuaranteeRule{
		clauseID:   c.ID,
		guaranteed: guaranteed,
		payment:    payment,
		capPeriod:  terms.capPeriod,
		capAnnual:  terms.capAnnual,
		allow:      allowList(p, env),
		interval:   env.DefaultInterval,
	}, nil
}

func (r *ProductionGuaranteeRule) Kind() Kind       { return KindProductionGuarantee }
func (r *ProductionGuaranteeRule) ClauseID() string { return r.clauseID }

// Evaluate checks production over an annual period.
// Periods shorter than a year are not evaluated and never breach.
func (r *ProductionGuaranteeRule) Evaluate(readings []contracts.MeterReading, start, end time.Time, excused []contracts.OperationalEvent) (Result, error) {
	totalHours := contracts.PeriodHours(start, end)
	interval := samplingInterval(readings, r.interval)

	actualKWh := decimal.Zero
	for _, rd := range readings {
		actualKWh = actualKWh.Add(fromFloat(rd.EnergyMWh(interval.Hours()) * 1000))
	}
	actualKWh = actualKWh.Round(3)

	detail := map[string]interface{}{
		"total_hours":     totalHours,
		"guaranteed_kwh":  r.guaranteed.String(),
		"actual_kwh":      actualKWh.String(),
		"payment_formula": r.payment.Formula,
		"reading_count":   len(readings),
		"data_available":  len(readings) > 0,
	}

	// 연간 평가만 지원
	if totalHours < hoursPerYear {
		detail["reason"] = "production guarantee is evaluated on annual periods only"
		detail["evaluated"] = false
		return Result{CalculatedValue: actualKWh, ThresholdValue: r.guaranteed, Detail: detail}, nil
	}
	detail["evaluated"] = true

	excusedHours := ExcusedHours(excused, r.allow, start, end)
	excusedKWh := r.guaranteed.Mul(fromFloat(excusedHours)).Div(decimal.NewFromInt(hoursPerYear)).Round(3)
	detail["excused_hours"] = excusedHours
	detail["excused_kwh"] = excusedKWh.String()

	shortfall := r.guaranteed.Sub(excusedKWh).Sub(actualKWh)
	if !shortfall.IsPositive() {
		return Result{CalculatedValue: actualKWh, ThresholdValue: r.guaranteed, Detail: detail}, nil
	}
	shortfall = shortfall.Round(3)

	payment := r.payment
	payment.ShortfallKWh = shortfall
	amount, err := ld.ProductionPayment(payment)
	if err != nil {
		return Result{}, err
	}

	limit := r.capPeriod
	if limit == nil {
		limit = r.capAnnual
	}
	if limit != nil && !limit.IsNegative() && amount.GreaterThan(*limit) {
		detail["ld_capped"] = true
		detail["ld_raw"] = amount.String()
		amount = ld.RoundMoney(*limit)
	}

	return Result{
		Breach:          true,
		CalculatedValue: actualKWh,
		ThresholdValue:  r.guaranteed,
		Shortfall:       ptr(shortfall),
		LDAmount:        ptr(amount),
		Detail:          detail,
	}, nil
}
