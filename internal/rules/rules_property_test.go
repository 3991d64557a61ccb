package rules

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/wonny/ldwatch/internal/contracts"
)

func shortfallOf(r Result) decimal.Decimal {
	if r.Shortfall == nil {
		return decimal.Zero
	}
	return *r.Shortfall
}

func hourlyWithProducing(producing int) []contracts.MeterReading {
	return series(nov2024Start, time.Hour, 720, func(i int) float64 {
		if i < producing {
			return 1
		}
		return 0
	})
}

func TestAvailabilityProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	rule, err := NewAvailabilityRule(clause("p", "AVAILABILITY", contracts.Params{
		ParamThreshold:  95,
		ParamLDPerPoint: 1000,
	}), DefaultEnv())
	if err != nil {
		t.Fatal(err)
	}

	properties.Property("more operating hours never lower availability", prop.ForAll(
		func(producing, extra, excusedHours int) bool {
			more := producing + extra
			if more > 720 {
				more = 720
			}
			excused := []contracts.OperationalEvent{
				event(contracts.EventTypeForceMajeure, nov2024Start, time.Duration(excusedHours)*time.Hour),
			}
			a, err1 := rule.Evaluate(hourlyWithProducing(producing), nov2024Start, nov2024End, excused)
			b, err2 := rule.Evaluate(hourlyWithProducing(more), nov2024Start, nov2024End, excused)
			if err1 != nil || err2 != nil {
				return false
			}
			return b.CalculatedValue.GreaterThanOrEqual(a.CalculatedValue)
		},
		gen.IntRange(0, 720),
		gen.IntRange(0, 200),
		gen.IntRange(0, 100),
	))

	properties.Property("excused time never increases shortfall", prop.ForAll(
		func(producing, offset, length int) bool {
			readings := hourlyWithProducing(producing)
			excused := []contracts.OperationalEvent{
				event(contracts.EventTypeGridOutage, nov2024Start.Add(time.Duration(offset)*time.Hour), time.Duration(length)*time.Hour),
			}
			without, err1 := rule.Evaluate(readings, nov2024Start, nov2024End, nil)
			with, err2 := rule.Evaluate(readings, nov2024Start, nov2024End, excused)
			if err1 != nil || err2 != nil {
				return false
			}
			return shortfallOf(with).LessThanOrEqual(shortfallOf(without))
		},
		gen.IntRange(0, 720),
		gen.IntRange(-48, 720),
		gen.IntRange(1, 200),
	))

	properties.Property("events outside the allow list leave the result unchanged", prop.ForAll(
		func(producing, length int) bool {
			readings := hourlyWithProducing(producing)
			excused := []contracts.OperationalEvent{
				event(contracts.EventTypeEquipFail, nov2024Start, time.Duration(length)*time.Hour),
			}
			without, _ := rule.Evaluate(readings, nov2024Start, nov2024End, nil)
			with, _ := rule.Evaluate(readings, nov2024Start, nov2024End, excused)
			return shortfallOf(with).Equal(shortfallOf(without)) && with.CalculatedValue.Equal(without.CalculatedValue)
		},
		gen.IntRange(0, 720),
		gen.IntRange(1, 720),
	))

	properties.Property("no breach means no shortfall or LD", prop.ForAll(
		func(producing int) bool {
			res, err := rule.Evaluate(hourlyWithProducing(producing), nov2024Start, nov2024End, nil)
			if err != nil {
				return false
			}
			if res.CalculatedValue.GreaterThanOrEqual(res.ThresholdValue) {
				return !res.Breach && res.Shortfall == nil && res.LDAmount == nil
			}
			return res.Breach && res.Shortfall.IsPositive() && !res.LDAmount.IsNegative()
		},
		gen.IntRange(0, 720),
	))

	properties.TestingRun(t)
}
