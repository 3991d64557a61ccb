package rulesconfig

import (
	"fmt"
	"strings"

	"github.com/wonny/ldwatch/internal/rules"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.RulesetID == "" {
		return ValidationError{"meta.ruleset_id", "required"}
	}

	// === Engine ===
	if cfg.Engine.DefaultIntervalMinutes <= 0 {
		return ValidationError{"engine.default_interval_minutes", "must be > 0"}
	}
	for i, code := range cfg.Engine.DefaultExcusedEvents {
		if strings.TrimSpace(code) == "" {
			return ValidationError{fmt.Sprintf("engine.default_excused_events[%d]", i), "must not be empty"}
		}
	}

	// === Categories ===
	if len(cfg.Categories) == 0 {
		return ValidationError{"categories", "must map at least one category"}
	}
	for code, kind := range cfg.Categories {
		if strings.TrimSpace(code) == "" {
			return ValidationError{"categories", "empty category code"}
		}
		if _, err := rules.ParseKind(kind); err != nil {
			return ValidationError{"categories." + code, err.Error()}
		}
	}

	// === Detector ===
	d := cfg.Detector
	if d.MinOutageSamples < 1 {
		return ValidationError{"detector.min_outage_samples", "must be >= 1"}
	}
	if d.GridOutageMinHours <= 0 {
		return ValidationError{"detector.grid_outage_min_hours", "must be > 0"}
	}
	if d.ExtendedOutageHours < d.GridOutageMinHours {
		return ValidationError{"detector.extended_outage_hours", "must be >= grid_outage_min_hours"}
	}
	if d.DegradationRatio <= 0 || d.DegradationRatio >= 1 {
		return ValidationError{"detector.degradation_ratio", "must be in (0, 1)"}
	}
	if d.MinDegradationSamples < 1 {
		return ValidationError{"detector.min_degradation_samples", "must be >= 1"}
	}
	if d.ExpectedPercentile <= 0 || d.ExpectedPercentile > 100 {
		return ValidationError{"detector.expected_percentile", "must be in (0, 100]"}
	}
	if d.ExpectedOutputOverride < 0 {
		return ValidationError{"detector.expected_output_override", "must be >= 0"}
	}

	// === Completeness ===
	if cfg.Completeness.IntervalMinutes < 0 {
		return ValidationError{"completeness.interval_minutes", "must be >= 0"}
	}
	if cfg.Completeness.GapThresholdMinutes <= 0 {
		return ValidationError{"completeness.gap_threshold_minutes", "must be > 0"}
	}
	if err := validatePct(cfg.Completeness.MinCoveragePct, "completeness.min_coverage_pct"); err != nil {
		return err
	}

	// === Severity ===
	if err := validatePct(cfg.Severity.HighPct, "severity.high_pct"); err != nil {
		return err
	}
	if err := validatePct(cfg.Severity.MediumPct, "severity.medium_pct"); err != nil {
		return err
	}
	if cfg.Severity.MediumPct > cfg.Severity.HighPct {
		return ValidationError{"severity", "medium_pct must be <= high_pct"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 불가항력 미면책 경고
	excused := false
	for _, code := range cfg.Engine.DefaultExcusedEvents {
		if strings.EqualFold(code, "FORCE_MAJEURE") {
			excused = true
		}
	}
	if !excused {
		warnings = append(warnings, Warning{
			Code:    "FORCE_MAJEURE_NOT_EXCUSED",
			Message: "default_excused_events에 FORCE_MAJEURE 없음: 조항별 excused_events 필요",
		})
	}

	// 커버리지 기준 과도하게 낮음
	if cfg.Completeness.MinCoveragePct < 80 {
		warnings = append(warnings, Warning{
			Code:    "LOW_COVERAGE_THRESHOLD",
			Message: "min_coverage_pct < 80: 데이터 누락 구간이 위반으로 판정될 수 있음",
		})
	}

	// 고정 기대출력은 계절성 무시
	if cfg.Detector.ExpectedOutputOverride > 0 {
		warnings = append(warnings, Warning{
			Code:    "FIXED_EXPECTED_OUTPUT",
			Message: "expected_output_override 설정: 계절별 출력 변동이 반영되지 않음",
		})
	}

	// 기본 매핑에 있는 카테고리 누락
	for code := range rules.DefaultCategories() {
		if _, ok := cfg.Categories[code]; !ok {
			warnings = append(warnings, Warning{
				Code:    "UNMAPPED_CATEGORY",
				Message: fmt.Sprintf("%s 카테고리 미매핑: 해당 조항은 건너뜀", code),
			})
		}
	}

	return warnings
}

// validatePct는 퍼센트 값이 0~100 범위인지 검증
func validatePct(pct float64, field string) error {
	if pct < 0 || pct > 100 {
		return ValidationError{field, "must be in range [0, 100]"}
	}
	return nil
}
