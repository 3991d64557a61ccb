package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/ld"
	"github.com/wonny/ldwatch/internal/rules"
)

// summarize converts a breaching evaluation into its summary
func (o *Orchestrator) summarize(ev clauseEval) contracts.BreachSummary {
	res := ev.result

	shortfall := decimal.Zero
	if res.Shortfall != nil {
		shortfall = *res.Shortfall
	}
	amount := ld.Zero()
	if res.LDAmount != nil {
		amount = ld.RoundMoney(*res.LDAmount)
	}

	severity := o.severity(shortfall, res.ThresholdValue)

	return contracts.BreachSummary{
		ClauseID:        ev.clause.ID,
		RuleType:        string(ev.kind),
		Severity:        severity,
		CalculatedValue: res.CalculatedValue,
		ThresholdValue:  res.ThresholdValue,
		Shortfall:       shortfall,
		LDAmount:        amount,
		Description:     describe(ev.kind, ev.clause, res, shortfall, amount),
		Detail:          res.Detail,
	}
}

// severity bands shortfall relative to threshold
func (o *Orchestrator) severity(shortfall, threshold decimal.Decimal) contracts.Severity {
	if !threshold.IsPositive() {
		if shortfall.IsPositive() {
			return contracts.SeverityHigh
		}
		return contracts.SeverityLow
	}
	ratio := ld.Percent(shortfall, threshold).InexactFloat64()
	return o.opts.Severity.Classify(ratio)
}

func describe(kind rules.Kind, c contracts.Clause, res rules.Result, shortfall, amount decimal.Decimal) string {
	switch kind {
	case rules.KindAvailability:
		return fmt.Sprintf("Availability %s%% below guaranteed %s%% (shortfall %s points, LD %s)",
			res.CalculatedValue.String(), res.ThresholdValue.String(), shortfall.String(), ld.Format(amount))
	case rules.KindCapacityFactor:
		return fmt.Sprintf("Capacity factor %s%% below guaranteed %s%% (shortfall %s points, LD %s)",
			res.CalculatedValue.String(), res.ThresholdValue.String(), shortfall.String(), ld.Format(amount))
	case rules.KindProductionGuarantee:
		return fmt.Sprintf("Annual production %s kWh below guaranteed %s kWh (shortfall %s kWh, payment %s)",
			res.CalculatedValue.String(), res.ThresholdValue.String(), shortfall.String(), ld.Format(amount))
	case rules.KindPricing:
		return fmt.Sprintf("Invoiced amount %s differs from expected %s by %s beyond tolerance",
			ld.Format(res.CalculatedValue), ld.Format(res.ThresholdValue), ld.Format(shortfall))
	default:
		return fmt.Sprintf("Clause %s (%s) breached", c.ID, c.CategoryCode)
	}
}

// buildBreach assembles the three records written as one unit
func (o *Orchestrator) buildBreach(ev clauseEval, s contracts.BreachSummary, result *contracts.EvaluationResult, operationalEventID string) *contracts.Breach {
	meta := map[string]interface{}{
		"run_id":        result.RunID,
		"clause_id":     ev.clause.ID,
		"category_code": ev.clause.CategoryCode,
		"rule_type":     s.RuleType,
		"severity":      string(s.Severity),
		"period_start":  result.PeriodStart.UTC().Format(time.RFC3339),
		"period_end":    result.PeriodEnd.UTC().Format(time.RFC3339),
		"shortfall":     s.Shortfall.String(),
		"ld_amount":     ld.Format(s.LDAmount),
	}
	if result.ConfigHash != "" {
		meta["config_hash"] = result.ConfigHash
	}

	return &contracts.Breach{
		DefaultEvent: contracts.DefaultEvent{
			ProjectID:          result.ProjectID,
			ContractID:         result.ContractID,
			OperationalEventID: operationalEventID,
			TimeStart:          result.PeriodStart,
			Status:             contracts.DefaultStatusOpen,
			Description:        s.Description,
			MetadataDetail:     meta,
		},
		RuleOutput: contracts.RuleOutput{
			ClauseID:        ev.clause.ID,
			RuleType:        s.RuleType,
			CalculatedValue: s.CalculatedValue,
			ThresholdValue:  s.ThresholdValue,
			Shortfall:       s.Shortfall,
			LDAmount:        s.LDAmount,
			Detail:          s.Detail,
		},
		Notification: contracts.Notification{
			ProjectID:   result.ProjectID,
			Description: s.Description,
			MetadataDetail: map[string]interface{}{
				"contract_id": result.ContractID,
				"clause_id":   ev.clause.ID,
				"rule_type":   s.RuleType,
				"severity":    string(s.Severity),
				"ld_amount":   ld.Format(s.LDAmount),
			},
		},
	}
}
