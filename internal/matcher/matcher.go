// Package matcher resolves raw merchant strings and free-text descriptions
// to category codes via a tiered exact / keyword / fuzzy cascade, with a
// process-local cache in front of the expensive fuzzy path.
package matcher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/finpath/goalengine/internal/model"
)

// RuleSource is read access to the merchant-rule table. Sources must return
// rules in a stable order: keyword precedence is table order, first match
// wins.
type RuleSource interface {
	ListMerchantRules(ctx context.Context) ([]model.MerchantRule, error)
}

// DefaultMinSimilarity is the similarity a fuzzy candidate must reach to be
// accepted.
const DefaultMinSimilarity = 0.8

// Matcher is safe for concurrent use. The rule-table snapshot is loaded
// lazily on first lookup and kept until ClearCache.
type Matcher struct {
	source        RuleSource
	minSimilarity float64

	mu     sync.RWMutex
	rules  []model.MerchantRule
	byName map[string]model.MerchantRule
	loaded bool
	cache  map[string]model.Match
}

// Option customizes a Matcher.
type Option func(*Matcher)

// WithMinSimilarity overrides the fuzzy acceptance threshold.
func WithMinSimilarity(min float64) Option {
	return func(m *Matcher) {
		if min > 0 && min <= 1 {
			m.minSimilarity = min
		}
	}
}

// New builds a matcher over the given rule source.
func New(source RuleSource, opts ...Option) *Matcher {
	m := &Matcher{
		source:        source,
		minSimilarity: DefaultMinSimilarity,
		cache:         make(map[string]model.Match),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Normalize is the canonical form used for rule names and lookup keys.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Match resolves a merchant name and/or description to a category, caching
// hits and misses alike under the normalized input. A zero Match with nil
// error means "unclassified", a normal outcome for unknown merchants.
func (m *Matcher) Match(ctx context.Context, merchantName, description string) (model.Match, error) {
	name := Normalize(merchantName)
	desc := Normalize(description)
	key := name + "|" + desc

	m.mu.RLock()
	cached, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return cached, nil
	}

	match, err := m.MatchUncached(ctx, merchantName, description)
	if err != nil {
		return model.Match{}, err
	}

	m.mu.Lock()
	m.cache[key] = match
	m.mu.Unlock()
	return match, nil
}

// MatchUncached resolves without consulting or populating the result cache.
// Bulk re-classification should use this (or ClearCache first) so fresh
// rule-table state is observed.
func (m *Matcher) MatchUncached(ctx context.Context, merchantName, description string) (model.Match, error) {
	if err := m.ensureRules(ctx); err != nil {
		return model.Match{}, err
	}

	name := Normalize(merchantName)
	desc := Normalize(description)

	m.mu.RLock()
	defer m.mu.RUnlock()

	// Tier 1: exact lookup against normalized rule names.
	if name != "" {
		if rule, ok := m.byName[name]; ok {
			return model.Match{
				Category:    rule.Category,
				Subcategory: rule.Subcategory,
				Kind:        model.MatchExact,
				Confidence:  1.0,
			}, nil
		}
	}

	// Tier 2: keyword scan over the description, table order wins.
	if desc != "" {
		for _, rule := range m.rules {
			if rule.Keyword == "" {
				continue
			}
			if strings.Contains(desc, Normalize(rule.Keyword)) {
				return model.Match{
					Category:    rule.Category,
					Subcategory: rule.Subcategory,
					Kind:        model.MatchKeyword,
					Confidence:  0.9,
				}, nil
			}
		}
	}

	// Tier 3: fuzzy match of the input against all known names.
	input := name
	if input == "" {
		input = desc
	}
	if input != "" {
		if rule, score, ok := m.bestFuzzy(input); ok {
			return model.Match{
				Category:    rule.Category,
				Subcategory: rule.Subcategory,
				Kind:        model.MatchFuzzy,
				Confidence:  score,
			}, nil
		}
	}

	// Tier 4: explicit no match.
	return model.Match{}, nil
}

// ClearCache drops the result cache and the rule-table snapshot so the next
// lookup observes rule-table updates. Intended for use after the merchant
// rule table changes.
func (m *Matcher) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]model.Match)
	m.rules = nil
	m.byName = nil
	m.loaded = false
}

// ensureRules loads the rule-table snapshot on first use.
func (m *Matcher) ensureRules(ctx context.Context) error {
	m.mu.RLock()
	loaded := m.loaded
	m.mu.RUnlock()
	if loaded {
		return nil
	}

	rules, err := m.source.ListMerchantRules(ctx)
	if err != nil {
		return fmt.Errorf("matcher: loading merchant rules: %w", err)
	}

	byName := make(map[string]model.MerchantRule, len(rules))
	for _, r := range rules {
		norm := Normalize(r.Name)
		if norm == "" {
			continue
		}
		if _, exists := byName[norm]; !exists {
			byName[norm] = r
		}
	}

	m.mu.Lock()
	if !m.loaded {
		m.rules = rules
		m.byName = byName
		m.loaded = true
	}
	m.mu.Unlock()
	return nil
}

// bestFuzzy returns the closest rule name by similarity, if it clears the
// threshold. Caller holds at least a read lock.
func (m *Matcher) bestFuzzy(input string) (model.MerchantRule, float64, bool) {
	var (
		best      model.MerchantRule
		bestScore float64
	)
	for _, rule := range m.rules {
		norm := Normalize(rule.Name)
		if norm == "" {
			continue
		}
		score := Similarity(input, norm)
		if score > bestScore {
			best = rule
			bestScore = score
		}
	}
	if bestScore >= m.minSimilarity {
		return best, bestScore, true
	}
	return model.MerchantRule{}, 0, false
}
