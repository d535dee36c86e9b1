package rules

import (
	"sort"
	"sync"
)

// Registry holds the ordered rule set for the engine. It is built explicitly
// at process start; after that it is read-only and safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	rules []Rule
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry returns a registry with the standard detector set.
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry()
	r.Register(NewSurplusIncomeRule(opts))
	r.Register(NewDriftRule())
	r.Register(NewOverspendingRule(opts))
	return r
}

// Register adds a rule, keeping the list in ascending priority order. Equal
// priorities keep registration order. Disabled rules are registered too; the
// engine checks Enabled before invoking.
func (r *Registry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule)
	sort.SliceStable(r.rules, func(i, j int) bool {
		return r.rules[i].Priority() < r.rules[j].Priority()
	})
}

// All returns the rules in execution order. The returned slice is a copy.
func (r *Registry) All() []Rule {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Options carries the tunables the concrete rules need. Zero values fall
// back to the package defaults.
type Options struct {
	// FallbackMonthlyCapacity is the baseline monthly income assumed when
	// neither the context nor the portfolio provides one.
	FallbackMonthlyCapacity float64
	// OverspendRatio is the fraction of the capacity baseline a single
	// debit must exceed to count as overspending.
	OverspendRatio float64
}
