// Package rules defines the goal-rule contract and the concrete detectors
// that evaluate every incoming transaction against a user's goal portfolio.
package rules

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpath/goalengine/internal/model"
)

// GoalRepository loads a user's goal portfolio. Read-only from the engine's
// perspective.
type GoalRepository interface {
	ListGoals(ctx context.Context, userID string) ([]model.Goal, error)
}

// SignalSink persists engine-produced signals. Inserts are append-only.
type SignalSink interface {
	InsertSignal(ctx context.Context, signal *model.Signal) error
}

// SuggestionSink persists engine-produced suggestions. Inserts are
// append-only.
type SuggestionSink interface {
	InsertSuggestion(ctx context.Context, suggestion *model.Suggestion) error
}

// Services is the capability bundle handed to every rule invocation.
type Services struct {
	Goals       GoalRepository
	Signals     SignalSink
	Suggestions SuggestionSink
}

// Rule is the common contract for goal detectors. Implementations must not
// return or propagate errors from Apply: any internal failure is logged and
// the rule degrades to a no-op for that transaction. One rule's failure must
// never block later rules or the transaction pipeline.
type Rule interface {
	// Name is the stable identifier used in logs and dedup keys.
	Name() string
	// Description is a short human-readable summary.
	Description() string
	// Priority orders execution; lower runs earlier.
	Priority() int
	// Enabled rules are invoked by the engine; disabled ones are skipped
	// but stay registered.
	Enabled() bool
	// Apply evaluates one transaction. evalDate is injected so tests can
	// pin time.
	Apply(ctx context.Context, userID string, tx model.TransactionView, evalCtx *Context, svc Services, evalDate time.Time)
}

// KeyMonthlyInvestibleCapacity is the context key under which the engine
// publishes the portfolio's monthly investible capacity baseline.
const KeyMonthlyInvestibleCapacity = "monthly_investible_capacity"

// Context is pass-scoped key/value state shared across the rules of a single
// evaluation. Earlier rules write, later rules read; within one pass access
// is strictly sequential so no locking is needed.
type Context struct {
	values map[string]any
}

// NewContext returns an empty evaluation context.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Set stores an arbitrary value for later rules.
func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

// Get returns the raw value for key, if any.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// SetMonthlyInvestibleCapacity publishes the capacity baseline.
func (c *Context) SetMonthlyInvestibleCapacity(d decimal.Decimal) {
	c.Set(KeyMonthlyInvestibleCapacity, d)
}

// MonthlyInvestibleCapacity returns the capacity baseline if a previous
// writer published one.
func (c *Context) MonthlyInvestibleCapacity() (decimal.Decimal, bool) {
	v, ok := c.Get(KeyMonthlyInvestibleCapacity)
	if !ok {
		return decimal.Decimal{}, false
	}
	d, ok := v.(decimal.Decimal)
	return d, ok
}

// dedupKey builds the recommended de-duplication key for a rule firing.
// Signals and suggestions are harmless to duplicate, but stores that honor
// the key can drop replays of the same transaction.
func dedupKey(txID, ruleName, kind, goalID string) string {
	return txID + ":" + ruleName + ":" + kind + ":" + goalID
}
