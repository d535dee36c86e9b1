package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpath/goalengine/internal/model"
	"github.com/finpath/goalengine/internal/rules"
	"github.com/finpath/goalengine/internal/store/inmemory"
)

// recordingRule appends its name to a shared trace on every invocation.
type recordingRule struct {
	name     string
	priority int
	enabled  bool
	trace    *[]string
	onApply  func(evalCtx *rules.Context)
}

func (r *recordingRule) Name() string        { return r.name }
func (r *recordingRule) Description() string { return r.name }
func (r *recordingRule) Priority() int       { return r.priority }
func (r *recordingRule) Enabled() bool       { return r.enabled }
func (r *recordingRule) Apply(ctx context.Context, userID string, tx model.TransactionView, evalCtx *rules.Context, svc rules.Services, evalDate time.Time) {
	*r.trace = append(*r.trace, r.name)
	if r.onApply != nil {
		r.onApply(evalCtx)
	}
}

// panickingRule violates the no-throw contract on purpose.
type panickingRule struct {
	priority int
	trace    *[]string
}

func (r *panickingRule) Name() string        { return "panicker" }
func (r *panickingRule) Description() string { return "panics" }
func (r *panickingRule) Priority() int       { return r.priority }
func (r *panickingRule) Enabled() bool       { return true }
func (r *panickingRule) Apply(ctx context.Context, userID string, tx model.TransactionView, evalCtx *rules.Context, svc rules.Services, evalDate time.Time) {
	*r.trace = append(*r.trace, r.Name())
	panic("rule bug")
}

func newTestEngine(goals ...model.Goal) (*Engine, *rules.Registry, rules.Services) {
	goalStore := inmemory.NewGoalStore()
	for _, g := range goals {
		goalStore.Put(g)
	}
	svc := rules.Services{
		Goals:       goalStore,
		Signals:     inmemory.NewSignalStore(),
		Suggestions: inmemory.NewSuggestionStore(),
	}
	registry := rules.NewRegistry()
	return New(registry, svc), registry, svc
}

func testGoal(capacity float64) model.Goal {
	return model.Goal{
		ID:                        "g1",
		UserID:                    "user-1",
		Name:                      "Trip",
		MonthlyInvestibleCapacity: decimal.NewFromFloat(capacity),
	}
}

func engineTx() model.TransactionView {
	return model.TransactionView{
		ID:        "tx-9",
		UserID:    "user-1",
		Amount:    decimal.NewFromInt(100),
		Direction: model.DirectionDebit,
		Date:      time.Now(),
	}
}

func TestEngineRunsRulesInPriorityOrder(t *testing.T) {
	eng, registry, _ := newTestEngine(testGoal(0))

	var trace []string
	registry.Register(&recordingRule{name: "third", priority: 60, enabled: true, trace: &trace})
	registry.Register(&recordingRule{name: "first", priority: 20, enabled: true, trace: &trace})
	registry.Register(&recordingRule{name: "second", priority: 40, enabled: true, trace: &trace})

	err := eng.EvaluateTransaction(context.Background(), engineTx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, trace)
}

func TestEngineSkipsDisabledRules(t *testing.T) {
	eng, registry, _ := newTestEngine(testGoal(0))

	var trace []string
	registry.Register(&recordingRule{name: "off", priority: 10, enabled: false, trace: &trace})
	registry.Register(&recordingRule{name: "on", priority: 20, enabled: true, trace: &trace})

	err := eng.EvaluateTransaction(context.Background(), engineTx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, trace)
}

func TestEngineIsolatesPanickingRule(t *testing.T) {
	eng, registry, _ := newTestEngine(testGoal(0))

	var trace []string
	registry.Register(&recordingRule{name: "before", priority: 10, enabled: true, trace: &trace})
	registry.Register(&panickingRule{priority: 20, trace: &trace})
	registry.Register(&recordingRule{name: "after", priority: 30, enabled: true, trace: &trace})

	err := eng.EvaluateTransaction(context.Background(), engineTx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "panicker", "after"}, trace)
}

func TestEnginePublishesCapacityBaseline(t *testing.T) {
	eng, registry, _ := newTestEngine(testGoal(80000))

	var got decimal.Decimal
	var found bool
	var trace []string
	registry.Register(&recordingRule{
		name: "probe", priority: 10, enabled: true, trace: &trace,
		onApply: func(evalCtx *rules.Context) {
			got, found = evalCtx.MonthlyInvestibleCapacity()
		},
	})

	err := eng.EvaluateTransaction(context.Background(), engineTx(), time.Now())
	require.NoError(t, err)
	require.True(t, found, "expected capacity baseline in context")
	assert.True(t, got.Equal(decimal.NewFromInt(80000)), "got %s", got)
}

func TestEngineNoCapacityWhenPortfolioHasNone(t *testing.T) {
	eng, registry, _ := newTestEngine(testGoal(0))

	var found bool
	var trace []string
	registry.Register(&recordingRule{
		name: "probe", priority: 10, enabled: true, trace: &trace,
		onApply: func(evalCtx *rules.Context) {
			_, found = evalCtx.MonthlyInvestibleCapacity()
		},
	})

	err := eng.EvaluateTransaction(context.Background(), engineTx(), time.Now())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEngineContextFlowsBetweenRules(t *testing.T) {
	eng, registry, _ := newTestEngine()

	var got any
	var trace []string
	registry.Register(&recordingRule{
		name: "writer", priority: 10, enabled: true, trace: &trace,
		onApply: func(evalCtx *rules.Context) { evalCtx.Set("computed", 42) },
	})
	registry.Register(&recordingRule{
		name: "reader", priority: 20, enabled: true, trace: &trace,
		onApply: func(evalCtx *rules.Context) { got, _ = evalCtx.Get("computed") },
	})

	err := eng.EvaluateTransaction(context.Background(), engineTx(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

type failingGoalRepo struct{}

func (failingGoalRepo) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	return nil, assert.AnError
}

func TestEngineReturnsGoalLoadFailure(t *testing.T) {
	registry := rules.NewRegistry()
	var trace []string
	registry.Register(&recordingRule{name: "never", priority: 10, enabled: true, trace: &trace})

	eng := New(registry, rules.Services{
		Goals:       failingGoalRepo{},
		Signals:     inmemory.NewSignalStore(),
		Suggestions: inmemory.NewSuggestionStore(),
	})

	err := eng.EvaluateTransaction(context.Background(), engineTx(), time.Now())
	assert.Error(t, err)
	assert.Empty(t, trace, "rules must not run when the portfolio cannot be loaded")
}

func TestEngineEndToEndWithDefaultRules(t *testing.T) {
	goalStore := inmemory.NewGoalStore()
	goalStore.Put(model.Goal{
		ID:                        "g1",
		UserID:                    "user-1",
		Name:                      "House",
		EstimatedCost:             decimal.NewFromInt(1200000),
		CurrentSavings:            decimal.NewFromInt(300000),
		PriorityRank:              1,
		DriftPct:                  decimal.NewFromInt(12),
		DriftAmount:               decimal.NewFromInt(90000),
		MonthlyInvestibleCapacity: decimal.NewFromInt(40000),
	})
	signals := inmemory.NewSignalStore()
	suggestions := inmemory.NewSuggestionStore()
	svc := rules.Services{Goals: goalStore, Signals: signals, Suggestions: suggestions}

	eng := New(rules.NewDefaultRegistry(rules.Options{}), svc)

	// A credit salary payment well above the 40000 capacity baseline:
	// surplus rule and drift rule should both act on this pass.
	tx := model.TransactionView{
		ID:        "tx-e2e",
		UserID:    "user-1",
		Amount:    decimal.NewFromInt(90000),
		Direction: model.DirectionCredit,
		Date:      time.Now(),
		Category:  "salary",
	}
	err := eng.EvaluateTransaction(context.Background(), tx, time.Now())
	require.NoError(t, err)

	gotSignals := signals.Signals()
	require.Len(t, gotSignals, 1)
	assert.Equal(t, model.SignalDrift, gotSignals[0].Type)
	assert.Equal(t, model.SeverityCritical, gotSignals[0].Severity)

	gotSuggestions := suggestions.Suggestions()
	require.Len(t, gotSuggestions, 2)
	types := []model.SuggestionType{gotSuggestions[0].Type, gotSuggestions[1].Type}
	assert.Contains(t, types, model.SuggestionAllocateSurplus)
	assert.Contains(t, types, model.SuggestionIncreaseContribution)
}
