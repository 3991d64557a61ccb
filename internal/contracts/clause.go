package contracts

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Clause is a contract clause with parameters already normalized by the
// extraction pipeline. Keys are canonical; aliases are not re-resolved here.
// ⭐ SSOT: 조항 타입은 여기서만 정의
type Clause struct {
	ID                   string `json:"id"`
	ContractID           string `json:"contract_id"`
	ProjectID            string `json:"project_id"`
	CategoryCode         string `json:"category_code"`
	NormalizedParameters Params `json:"normalized_parameters"`

	// ParamsErr 는 normalized_parameters 디코드 실패 (조항 단위 설정 오류)
	ParamsErr error `json:"-"`
}

// Evaluable reports whether the clause carries any parameters.
// A clause whose parameters failed to decode still counts so the engine can report it.
func (c Clause) Evaluable() bool {
	return c.ParamsErr != nil || len(c.NormalizedParameters) > 0
}

// Params is the flat key→value parameter map of a clause
type Params map[string]interface{}

// Has reports whether key is present and non-null
func (p Params) Has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// Decimal reads a numeric parameter.
// found is false when the key is absent; err is set when the value is not numeric.
func (p Params) Decimal(key string) (d decimal.Decimal, found bool, err error) {
	v, ok := p[key]
	if !ok || v == nil {
		return decimal.Zero, false, nil
	}

	switch n := v.(type) {
	case decimal.Decimal:
		return n, true, nil
	case float64:
		return decimal.NewFromFloat(n), true, nil
	case float32:
		return decimal.NewFromFloat32(n), true, nil
	case int:
		return decimal.NewFromInt(int64(n)), true, nil
	case int64:
		return decimal.NewFromInt(n), true, nil
	case int32:
		return decimal.NewFromInt(int64(n)), true, nil
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, true, fmt.Errorf("parameter %s: %w", key, err)
		}
		return d, true, nil
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		s = strings.ReplaceAll(s, ",", "")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, true, fmt.Errorf("parameter %s: not numeric: %q", key, n)
		}
		return d, true, nil
	default:
		return decimal.Zero, true, fmt.Errorf("parameter %s: unsupported type %T", key, v)
	}
}

// RequireDecimal reads a mandatory numeric parameter, failing with ErrConfiguration
func (p Params) RequireDecimal(key string) (decimal.Decimal, error) {
	d, found, err := p.Decimal(key)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !found {
		return decimal.Zero, fmt.Errorf("%w: missing parameter %s", ErrConfiguration, key)
	}
	return d, nil
}

// OptionalDecimal reads a numeric parameter, nil when absent
func (p Params) OptionalDecimal(key string) (*decimal.Decimal, error) {
	d, found, err := p.Decimal(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if !found {
		return nil, nil
	}
	return &d, nil
}

// String reads a string parameter
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Int reads an integer parameter
func (p Params) Int(key string) (int, bool) {
	d, found, err := p.Decimal(key)
	if !found || err != nil {
		return 0, false
	}
	return int(d.IntPart()), true
}

// StringList reads a list parameter.
// Accepts a JSON array or a comma separated string; nil when absent.
func (p Params) StringList(key string) []string {
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}

	var out []string
	switch list := v.(type) {
	case []string:
		out = append(out, list...)
	case []interface{}:
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
	case string:
		out = append(out, strings.Split(list, ",")...)
	default:
		out = append(out, fmt.Sprint(v))
	}

	cleaned := make([]string, 0, len(out))
	for _, s := range out {
		s = strings.TrimSpace(s)
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return cleaned
}

// Bool reads a boolean parameter; strings such as "true" are accepted
func (p Params) Bool(key string) (bool, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}
