// Package inmemory provides in-memory implementations of the engine's
// storage interfaces. They are safe for concurrent use and suitable for
// tests and single-instance deployments; data is lost on restart. For
// persistence, use the BigQuery-backed repositories.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/finpath/goalengine/internal/model"
)

// GoalStore is an in-memory goal repository keyed by user.
type GoalStore struct {
	mu    sync.RWMutex
	goals map[string][]model.Goal
}

// NewGoalStore creates an empty goal store.
func NewGoalStore() *GoalStore {
	return &GoalStore{goals: make(map[string][]model.Goal)}
}

// Put adds or replaces a goal for its user.
func (s *GoalStore) Put(goal model.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	list := s.goals[goal.UserID]
	for i, g := range list {
		if g.ID == goal.ID {
			list[i] = goal
			return
		}
	}
	s.goals[goal.UserID] = append(list, goal)
}

// ListGoals implements rules.GoalRepository.
func (s *GoalStore) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.goals[userID]
	out := make([]model.Goal, len(list))
	copy(out, list)
	return out, nil
}

// SignalStore is an in-memory, append-only signal sink. Inserts carrying a
// DedupKey already seen are dropped silently, so replayed evaluations cannot
// duplicate records.
type SignalStore struct {
	mu      sync.RWMutex
	signals []model.Signal
	seen    map[string]bool
}

// NewSignalStore creates an empty signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{seen: make(map[string]bool)}
}

// InsertSignal implements rules.SignalSink.
func (s *SignalStore) InsertSignal(ctx context.Context, signal *model.Signal) error {
	if signal == nil {
		return fmt.Errorf("signal is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if signal.DedupKey != "" {
		if s.seen[signal.DedupKey] {
			return nil
		}
		s.seen[signal.DedupKey] = true
	}
	s.signals = append(s.signals, *signal)
	return nil
}

// Signals returns a copy of everything inserted so far.
func (s *SignalStore) Signals() []model.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

// SuggestionStore is an in-memory, append-only suggestion sink with the
// same dedup behavior as SignalStore.
type SuggestionStore struct {
	mu          sync.RWMutex
	suggestions []model.Suggestion
	seen        map[string]bool
}

// NewSuggestionStore creates an empty suggestion store.
func NewSuggestionStore() *SuggestionStore {
	return &SuggestionStore{seen: make(map[string]bool)}
}

// InsertSuggestion implements rules.SuggestionSink.
func (s *SuggestionStore) InsertSuggestion(ctx context.Context, suggestion *model.Suggestion) error {
	if suggestion == nil {
		return fmt.Errorf("suggestion is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if suggestion.DedupKey != "" {
		if s.seen[suggestion.DedupKey] {
			return nil
		}
		s.seen[suggestion.DedupKey] = true
	}
	s.suggestions = append(s.suggestions, *suggestion)
	return nil
}

// Suggestions returns a copy of everything inserted so far.
func (s *SuggestionStore) Suggestions() []model.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Suggestion, len(s.suggestions))
	copy(out, s.suggestions)
	return out
}

// MerchantRuleStore is an in-memory merchant-rule source. Rules keep
// insertion order, which doubles as keyword precedence.
type MerchantRuleStore struct {
	mu    sync.RWMutex
	rules []model.MerchantRule
}

// NewMerchantRuleStore creates an empty rule store.
func NewMerchantRuleStore() *MerchantRuleStore {
	return &MerchantRuleStore{}
}

// Add appends one rule.
func (s *MerchantRuleStore) Add(rule model.MerchantRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule)
}

// Replace swaps the whole table, the bulk-seed path.
func (s *MerchantRuleStore) Replace(rules []model.MerchantRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make([]model.MerchantRule, len(rules))
	copy(s.rules, rules)
}

// ListMerchantRules implements matcher.RuleSource.
func (s *MerchantRuleStore) ListMerchantRules(ctx context.Context) ([]model.MerchantRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.MerchantRule, len(s.rules))
	copy(out, s.rules)
	return out, nil
}
