package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wonny/ldwatch/internal/contracts"
)

// ErrUnsupportedCategory marks a clause whose category maps to no rule.
// Such clauses are skipped, never failed.
var ErrUnsupportedCategory = errors.New("unsupported clause category")

// Builder creates a rule for one clause
type Builder func(c contracts.Clause, env Env) (Rule, error)

// DefaultCategories maps clause category codes to rule kinds
func DefaultCategories() map[string]Kind {
	return map[string]Kind{
		"AVAILABILITY":            KindAvailability,
		"AVAILABILITY_GUARANTEE":  KindAvailability,
		"CAPACITY_FACTOR":         KindCapacityFactor,
		"PERFORMANCE_GUARANTEE":   KindCapacityFactor,
		"PRODUCTION_GUARANTEE":    KindProductionGuarantee,
		"ENERGY_OUTPUT_GUARANTEE": KindProductionGuarantee,
		"PRICING":                 KindPricing,
		"TARIFF":                  KindPricing,
	}
}

// Registry resolves clause categories to rule builders.
// Built once per engine from configuration; no process-wide instance.
type Registry struct {
	mu         sync.RWMutex
	builders   map[Kind]Builder
	categories map[string]Kind
	env        Env
}

// NewRegistry creates a registry with the built-in builders registered
func NewRegistry(categories map[string]Kind, env Env) *Registry {
	r := &Registry{
		builders:   make(map[Kind]Builder),
		categories: make(map[string]Kind, len(categories)),
		env:        env,
	}
	for code, kind := range categories {
		r.categories[normalizeCode(code)] = kind
	}

	r.Register(KindAvailability, NewAvailabilityRule)
	r.Register(KindCapacityFactor, NewCapacityFactorRule)
	r.Register(KindProductionGuarantee, NewProductionGuaranteeRule)
	r.Register(KindPricing, NewPricingRule)
	return r
}

// Register adds or overrides a builder
func (r *Registry) Register(kind Kind, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[kind] = builder
}

// Resolve maps a category code to a kind
func (r *Registry) Resolve(categoryCode string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.categories[normalizeCode(categoryCode)]
	return kind, ok
}

// Build instantiates the rule for a clause.
// Unmapped categories return ErrUnsupportedCategory; bad parameters wrap contracts.ErrConfiguration.
func (r *Registry) Build(c contracts.Clause) (Rule, error) {
	kind, ok := r.Resolve(c.CategoryCode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCategory, c.CategoryCode)
	}

	r.mu.RLock()
	builder, ok := r.builders[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no builder for kind %s", ErrUnsupportedCategory, kind)
	}

	rule, err := builder(c, r.env)
	if err != nil {
		return nil, fmt.Errorf("clause %s (%s): %w", c.ID, kind, err)
	}
	return rule, nil
}

// Categories returns the mapped category codes, sorted
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.categories))
	for code := range r.categories {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
