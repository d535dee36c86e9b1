package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finpath/goalengine/internal/model"
	"github.com/finpath/goalengine/internal/store/inmemory"
)

// errGoalRepo always fails, for exercising the no-error contract.
type errGoalRepo struct{}

func (errGoalRepo) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	return nil, errors.New("storage unavailable")
}

func newTestServices(goals ...model.Goal) (Services, *inmemory.SignalStore, *inmemory.SuggestionStore) {
	goalStore := inmemory.NewGoalStore()
	for _, g := range goals {
		goalStore.Put(g)
	}
	signals := inmemory.NewSignalStore()
	suggestions := inmemory.NewSuggestionStore()
	return Services{Goals: goalStore, Signals: signals, Suggestions: suggestions}, signals, suggestions
}

func testTx(direction model.Direction, amount float64, category string) model.TransactionView {
	return model.TransactionView{
		ID:        "tx-1",
		UserID:    "user-1",
		Amount:    decimal.NewFromFloat(amount),
		Direction: direction,
		Date:      time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Category:  category,
	}
}

func driftGoal(id string, driftPct, driftAmount, cost, savings float64) model.Goal {
	return model.Goal{
		ID:             id,
		UserID:         "user-1",
		Name:           "Emergency Fund",
		EstimatedCost:  decimal.NewFromFloat(cost),
		CurrentSavings: decimal.NewFromFloat(savings),
		DriftPct:       decimal.NewFromFloat(driftPct),
		DriftAmount:    decimal.NewFromFloat(driftAmount),
	}
}

func TestDriftRuleSeverityBands(t *testing.T) {
	evalDate := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		driftPct     float64
		wantSeverity model.Severity
	}{
		{name: "critical at 10", driftPct: 10, wantSeverity: model.SeverityCritical},
		{name: "critical above 10", driftPct: 15.5, wantSeverity: model.SeverityCritical},
		{name: "warning at 5", driftPct: 5, wantSeverity: model.SeverityWarning},
		{name: "warning below 10", driftPct: 9.9, wantSeverity: model.SeverityWarning},
		{name: "info below 5", driftPct: 2.5, wantSeverity: model.SeverityInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, signals, _ := newTestServices(driftGoal("g1", tt.driftPct, 12000, 120000, 60000))

			NewDriftRule().Apply(context.Background(), "user-1", testTx(model.DirectionDebit, 500, ""), NewContext(), svc, evalDate)

			got := signals.Signals()
			require.Len(t, got, 1)
			assert.Equal(t, model.SignalDrift, got[0].Type)
			assert.Equal(t, tt.wantSeverity, got[0].Severity)
			assert.Equal(t, "g1", got[0].GoalID)
		})
	}
}

func TestDriftRuleSuppressedWithoutDrift(t *testing.T) {
	for _, driftPct := range []float64{0, -3} {
		svc, signals, suggestions := newTestServices(driftGoal("g1", driftPct, 0, 120000, 60000))

		NewDriftRule().Apply(context.Background(), "user-1", testTx(model.DirectionDebit, 500, ""), NewContext(), svc, time.Now())

		assert.Empty(t, signals.Signals(), "drift_pct=%v must not fire", driftPct)
		assert.Empty(t, suggestions.Suggestions())
	}
}

func TestDriftRuleMessageFormat(t *testing.T) {
	svc, signals, _ := newTestServices(driftGoal("g1", 12.34, 4500.6, 120000, 60000))

	NewDriftRule().Apply(context.Background(), "user-1", testTx(model.DirectionDebit, 500, ""), NewContext(), svc, time.Now())

	got := signals.Signals()
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "12.3%")
	assert.Contains(t, got[0].Message, "₹4501")
}

func TestDriftRuleCatchUpSuggestion(t *testing.T) {
	svc, _, suggestions := newTestServices(driftGoal("g1", 8, 10000, 120000, 60000))

	NewDriftRule().Apply(context.Background(), "user-1", testTx(model.DirectionDebit, 500, ""), NewContext(), svc, time.Now())

	got := suggestions.Suggestions()
	require.Len(t, got, 1)
	assert.Equal(t, model.SuggestionIncreaseContribution, got[0].Type)
	// (120000 - 60000) / 12 = 5000.00
	assert.InDelta(t, 5000.00, got[0].Payload["monthly_increase"], 0.001)
	assert.InDelta(t, 60000, got[0].Payload["remaining"], 0.001)
}

func TestDriftRuleNoSuggestionWhenFunded(t *testing.T) {
	// Drifting but already fully funded: signal yes, suggestion no.
	svc, signals, suggestions := newTestServices(driftGoal("g1", 6, 2000, 100000, 100000))

	NewDriftRule().Apply(context.Background(), "user-1", testTx(model.DirectionDebit, 500, ""), NewContext(), svc, time.Now())

	assert.Len(t, signals.Signals(), 1)
	assert.Empty(t, suggestions.Suggestions())
}

func TestDriftRuleRoundsSuggestionToTwoDecimals(t *testing.T) {
	svc, _, suggestions := newTestServices(driftGoal("g1", 8, 10000, 100000, 0))

	NewDriftRule().Apply(context.Background(), "user-1", testTx(model.DirectionDebit, 500, ""), NewContext(), svc, time.Now())

	got := suggestions.Suggestions()
	require.Len(t, got, 1)
	// 100000 / 12 = 8333.3333... -> 8333.33
	assert.InDelta(t, 8333.33, got[0].Payload["monthly_increase"], 0.001)
}

func TestDriftRuleSwallowsRepositoryFailure(t *testing.T) {
	signals := inmemory.NewSignalStore()
	svc := Services{Goals: errGoalRepo{}, Signals: signals, Suggestions: inmemory.NewSuggestionStore()}

	assert.NotPanics(t, func() {
		NewDriftRule().Apply(context.Background(), "user-1", testTx(model.DirectionDebit, 500, ""), NewContext(), svc, time.Now())
	})
	assert.Empty(t, signals.Signals())
}

func TestDriftRuleDuplicateApplyDoesNotDuplicate(t *testing.T) {
	svc, signals, suggestions := newTestServices(driftGoal("g1", 8, 10000, 120000, 60000))
	tx := testTx(model.DirectionDebit, 500, "")

	rule := NewDriftRule()
	rule.Apply(context.Background(), "user-1", tx, NewContext(), svc, time.Now())
	rule.Apply(context.Background(), "user-1", tx, NewContext(), svc, time.Now())

	assert.Len(t, signals.Signals(), 1, "dedup key must collapse replayed evaluations")
	assert.Len(t, suggestions.Suggestions(), 1)
}
