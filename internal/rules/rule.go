// Package rules implements one calculation strategy per guarantee kind.
// Rules are pure: they read the shared snapshot and never perform I/O.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/ldwatch/internal/contracts"
)

// Kind identifies a guarantee variant
type Kind string

const (
	KindAvailability        Kind = "availability"
	KindCapacityFactor      Kind = "capacity_factor"
	KindProductionGuarantee Kind = "production_guarantee"
	KindPricing             Kind = "pricing"
)

// Kinds lists every known variant
var Kinds = []Kind{KindAvailability, KindCapacityFactor, KindProductionGuarantee, KindPricing}

// ParseKind resolves a kind name
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown rule kind: %s", s)
}

// Rule evaluates one clause against the period snapshot
type Rule interface {
	Kind() Kind
	ClauseID() string
	Evaluate(readings []contracts.MeterReading, start, end time.Time, excused []contracts.OperationalEvent) (Result, error)
}

// Result is the outcome of one evaluation.
// Shortfall and LDAmount are nil unless Breach is set.
type Result struct {
	Breach          bool                   `json:"breach"`
	CalculatedValue decimal.Decimal        `json:"calculated_value"`
	ThresholdValue  decimal.Decimal        `json:"threshold_value"`
	Shortfall       *decimal.Decimal       `json:"shortfall,omitempty"`
	LDAmount        *decimal.Decimal       `json:"ld_amount,omitempty"`
	Detail          map[string]interface{} `json:"detail"`
}

// Env carries run-wide defaults into rule builders
type Env struct {
	DefaultInterval     time.Duration
	DefaultExcusedTypes []string
}

// DefaultEnv returns hourly sampling with force majeure, grid outage and scheduled maintenance excused
func DefaultEnv() Env {
	return Env{
		DefaultInterval: time.Hour,
		DefaultExcusedTypes: []string{
			contracts.EventTypeForceMajeure,
			contracts.EventTypeGridOutage,
			contracts.EventTypeScheduledMaint,
		},
	}
}

// Canonical parameter keys
const (
	ParamThreshold        = "threshold"
	ParamLDPerPoint       = "ld_per_point"
	ParamLDCapPeriod      = "ld_cap_period"
	ParamLDCapAnnual      = "ld_cap_annual"
	ParamExcusedEvents    = "excused_events"
	ParamNameplateMW      = "nameplate_capacity_mw"
	ParamEfficiencyFactor = "efficiency_factor"
	ParamGuaranteedKWh    = "guaranteed_kwh"
	ParamPaymentFormula   = "payment_formula"
	ParamAlternatePrice   = "alternate_price_per_kwh"
	ParamSolarPrice       = "solar_price_per_kwh"
	ParamFixedRate        = "fixed_rate_per_kwh"
	ParamReferencePrice   = "reference_price"
	ParamDiscountRate     = "discount_rate"
	ParamFloorPrice       = "floor_price"
	ParamCeilingPrice     = "ceiling_price"
	ParamEscalationRate   = "escalation_rate"
	ParamBaseYear         = "base_year"
	ParamInvoicedAmount   = "invoiced_amount"
	ParamTolerancePercent = "tolerance_percent"
)

// PercentPlaces is the scale of reported percentages
const PercentPlaces = 4

var hundred = decimal.NewFromInt(100)

// ldTerms are the remedy parameters shared by the percentage rules
type ldTerms struct {
	perPoint  decimal.Decimal
	capPeriod *decimal.Decimal
	capAnnual *decimal.Decimal
}

func parseLDTerms(p contracts.Params) (ldTerms, error) {
	var terms ldTerms
	perPoint, err := p.OptionalDecimal(ParamLDPerPoint)
	if err != nil {
		return terms, err
	}
	if perPoint != nil {
		terms.perPoint = *perPoint
	}
	if terms.capPeriod, err = p.OptionalDecimal(ParamLDCapPeriod); err != nil {
		return terms, err
	}
	if terms.capAnnual, err = p.OptionalDecimal(ParamLDCapAnnual); err != nil {
		return terms, err
	}
	return terms, nil
}

// allowList returns the clause's excused types; nil falls back to the run default
func allowList(p contracts.Params, env Env) []string {
	if !p.Has(ParamExcusedEvents) {
		return env.DefaultExcusedTypes
	}
	return p.StringList(ParamExcusedEvents)
}

// samplingInterval infers the reading interval, falling back to the configured one
func samplingInterval(readings []contracts.MeterReading, fallback time.Duration) time.Duration {
	if d := contracts.InferInterval(readings); d > 0 {
		return d
	}
	if fallback > 0 {
		return fallback
	}
	return time.Hour
}

func fromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func roundPct(d decimal.Decimal) decimal.Decimal {
	return d.Round(PercentPlaces)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
