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

const overspendRuleName = "overspending"

// DefaultOverspendRatio is the fraction of the monthly capacity baseline a
// single debit must exceed to count as overspending.
const DefaultOverspendRatio = 0.5

var overspendCriticalMult = decimal.NewFromInt(2)

// OverspendingRule flags single debits large enough to crowd out the month's
// investible capacity and asks the user to review the spend.
type OverspendingRule struct {
	enabled          bool
	fallbackBaseline decimal.Decimal
	ratio            decimal.Decimal
}

// NewOverspendingRule returns the overspending detector, enabled.
func NewOverspendingRule(opts Options) *OverspendingRule {
	fallback := decimal.NewFromFloat(opts.FallbackMonthlyCapacity)
	if !fallback.IsPositive() {
		fallback = decimal.NewFromInt(DefaultMonthlyCapacity)
	}
	ratio := decimal.NewFromFloat(opts.OverspendRatio)
	if !ratio.IsPositive() {
		ratio = decimal.NewFromFloat(DefaultOverspendRatio)
	}
	return &OverspendingRule{enabled: true, fallbackBaseline: fallback, ratio: ratio}
}

func (r *OverspendingRule) Name() string { return overspendRuleName }
func (r *OverspendingRule) Description() string {
	return "Flags single debits large enough to crowd out goal contributions"
}
func (r *OverspendingRule) Priority() int { return 60 }
func (r *OverspendingRule) Enabled() bool { return r.enabled }

// SetEnabled toggles the rule without removing it from the registry.
func (r *OverspendingRule) SetEnabled(enabled bool) { r.enabled = enabled }

// Apply fires for debits above ratio x baseline, signalling against the
// user's top-ranked goal. Never returns an error.
func (r *OverspendingRule) Apply(ctx context.Context, userID string, tx model.TransactionView, evalCtx *Context, svc Services, evalDate time.Time) {
	if tx.Direction != model.DirectionDebit {
		return
	}

	log := logger.FromContext(ctx).With().Str("rule", r.Name()).Str("tx_id", tx.ID).Logger()

	baseline := r.fallbackBaseline
	if b, ok := evalCtx.MonthlyInvestibleCapacity(); ok && b.IsPositive() {
		baseline = b
	}
	threshold := baseline.Mul(r.ratio)
	if !tx.Amount.GreaterThan(threshold) {
		return
	}

	goals, err := svc.Goals.ListGoals(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("listing goals failed, skipping rule")
		return
	}
	target, ok := topRankedGoal(goals)
	if !ok {
		return
	}

	severity := model.SeverityWarning
	if tx.Amount.GreaterThanOrEqual(threshold.Mul(overspendCriticalMult)) {
		severity = model.SeverityCritical
	}

	signal := &model.Signal{
		ID:       uuid.NewString(),
		UserID:   userID,
		GoalID:   target.ID,
		Type:     model.SignalOverspend,
		Severity: severity,
		Message: fmt.Sprintf("A debit of ₹%s is large relative to your monthly investible capacity and may delay %q.",
			tx.Amount.StringFixed(0), target.Name),
		Meta: map[string]float64{
			"amount":    tx.Amount.InexactFloat64(),
			"threshold": threshold.InexactFloat64(),
		},
		DedupKey:  dedupKey(tx.ID, r.Name(), "signal", target.ID),
		CreatedAt: evalDate,
	}
	if err := svc.Signals.InsertSignal(ctx, signal); err != nil {
		log.Error().Err(err).Str("goal_id", target.ID).Msg("inserting overspend signal failed")
		return
	}

	suggestion := &model.Suggestion{
		ID:     uuid.NewString(),
		UserID: userID,
		GoalID: target.ID,
		Type:   model.SuggestionReviewSpending,
		Title:  "Review this spend",
		Description: fmt.Sprintf("₹%s in one debit is more than %s%% of your monthly investible capacity.",
			tx.Amount.StringFixed(0), r.ratio.Mul(decimal.NewFromInt(100)).StringFixed(0)),
		Payload: map[string]float64{
			"amount":    tx.Amount.InexactFloat64(),
			"threshold": threshold.InexactFloat64(),
		},
		DedupKey:  dedupKey(tx.ID, r.Name(), "suggestion", target.ID),
		CreatedAt: evalDate,
	}
	if err := svc.Suggestions.InsertSuggestion(ctx, suggestion); err != nil {
		log.Error().Err(err).Str("goal_id", target.ID).Msg("inserting overspend suggestion failed")
	}
}

// topRankedGoal returns the goal with the lowest effective priority rank.
func topRankedGoal(goals []model.Goal) (model.Goal, bool) {
	var (
		best  model.Goal
		found bool
	)
	for _, g := range goals {
		if !found || g.EffectiveRank() < best.EffectiveRank() {
			best = g
			found = true
		}
	}
	return best, found
}
