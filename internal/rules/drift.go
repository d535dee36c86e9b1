package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finpath/goalengine/internal/logger"
	"github.com/finpath/goalengine/internal/model"
)

const driftRuleName = "goal_drift"

// Severity bands for drift percentage.
var (
	driftCriticalPct = decimal.NewFromInt(10)
	driftWarningPct  = decimal.NewFromInt(5)

	catchUpMonths = decimal.NewFromInt(12)
)

// DriftRule flags goals whose savings trail the plan and proposes a
// straight-line 12-month catch-up contribution.
type DriftRule struct {
	enabled bool
}

// NewDriftRule returns the drift detector, enabled.
func NewDriftRule() *DriftRule {
	return &DriftRule{enabled: true}
}

func (r *DriftRule) Name() string        { return driftRuleName }
func (r *DriftRule) Description() string { return "Detects goals drifting behind plan" }
func (r *DriftRule) Priority() int       { return 40 }
func (r *DriftRule) Enabled() bool       { return r.enabled }

// SetEnabled toggles the rule without removing it from the registry.
func (r *DriftRule) SetEnabled(enabled bool) { r.enabled = enabled }

// Apply emits one DRIFT signal per drifting goal and, when the goal still
// has a positive remainder, an INCREASE_CONTRIBUTION suggestion. Never
// returns an error: failures are logged and the rule no-ops.
func (r *DriftRule) Apply(ctx context.Context, userID string, tx model.TransactionView, evalCtx *Context, svc Services, evalDate time.Time) {
	log := logger.FromContext(ctx).With().Str("rule", r.Name()).Str("tx_id", tx.ID).Logger()

	goals, err := svc.Goals.ListGoals(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("listing goals failed, skipping rule")
		return
	}

	for _, g := range goals {
		if !g.DriftPct.IsPositive() {
			continue
		}

		severity := model.SeverityInfo
		switch {
		case g.DriftPct.GreaterThanOrEqual(driftCriticalPct):
			severity = model.SeverityCritical
		case g.DriftPct.GreaterThanOrEqual(driftWarningPct):
			severity = model.SeverityWarning
		}

		msg := fmt.Sprintf("Goal %q is %s%% behind plan (₹%s short)",
			g.Name, g.DriftPct.StringFixed(1), g.DriftAmount.StringFixed(0))

		signal := &model.Signal{
			ID:       uuid.NewString(),
			UserID:   userID,
			GoalID:   g.ID,
			Type:     model.SignalDrift,
			Severity: severity,
			Message:  msg,
			Meta: map[string]float64{
				"drift_pct":    g.DriftPct.InexactFloat64(),
				"drift_amount": g.DriftAmount.InexactFloat64(),
			},
			DedupKey:  dedupKey(tx.ID, r.Name(), "signal", g.ID),
			CreatedAt: evalDate,
		}
		if err := svc.Signals.InsertSignal(ctx, signal); err != nil {
			log.Error().Err(err).Str("goal_id", g.ID).Msg("inserting drift signal failed")
			continue
		}

		remaining := g.EstimatedCost.Sub(g.CurrentSavings)
		if !remaining.IsPositive() {
			continue
		}
		monthly := remaining.Div(catchUpMonths).Round(2)

		suggestion := &model.Suggestion{
			ID:     uuid.NewString(),
			UserID: userID,
			GoalID: g.ID,
			Type:   model.SuggestionIncreaseContribution,
			Title:  fmt.Sprintf("Increase contribution to %q", g.Name),
			Description: fmt.Sprintf("Adding ₹%s per month closes the remaining ₹%s in 12 months.",
				monthly.StringFixed(2), remaining.StringFixed(0)),
			Payload: map[string]float64{
				"monthly_increase": monthly.InexactFloat64(),
				"remaining":        remaining.InexactFloat64(),
			},
			DedupKey:  dedupKey(tx.ID, r.Name(), "suggestion", g.ID),
			CreatedAt: evalDate,
		}
		if err := svc.Suggestions.InsertSuggestion(ctx, suggestion); err != nil {
			log.Error().Err(err).Str("goal_id", g.ID).Msg("inserting drift suggestion failed")
		}
	}
}
