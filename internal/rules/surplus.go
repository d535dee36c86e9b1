package rules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finpath/goalengine/internal/logger"
	"github.com/finpath/goalengine/internal/model"
)

const surplusRuleName = "surplus_income"

// DefaultMonthlyCapacity is assumed when neither the evaluation context nor
// the configuration provides a baseline monthly income.
const DefaultMonthlyCapacity = 50000

var (
	surplusThresholdMult = decimal.NewFromFloat(1.2)
	surplusAllocateShare = decimal.NewFromFloat(0.3)
)

// SurplusIncomeRule watches credit transactions in income categories and,
// when one clearly exceeds the monthly baseline, proposes allocating part of
// the surplus to the goal that needs it most.
type SurplusIncomeRule struct {
	enabled          bool
	fallbackBaseline decimal.Decimal
}

// NewSurplusIncomeRule returns the surplus detector, enabled.
func NewSurplusIncomeRule(opts Options) *SurplusIncomeRule {
	fallback := decimal.NewFromFloat(opts.FallbackMonthlyCapacity)
	if !fallback.IsPositive() {
		fallback = decimal.NewFromInt(DefaultMonthlyCapacity)
	}
	return &SurplusIncomeRule{enabled: true, fallbackBaseline: fallback}
}

func (r *SurplusIncomeRule) Name() string { return surplusRuleName }
func (r *SurplusIncomeRule) Description() string {
	return "Detects surplus income and proposes allocating it to a goal"
}
func (r *SurplusIncomeRule) Priority() int { return 20 }
func (r *SurplusIncomeRule) Enabled() bool { return r.enabled }

// SetEnabled toggles the rule without removing it from the registry.
func (r *SurplusIncomeRule) SetEnabled(enabled bool) { r.enabled = enabled }

// incomeCategories are matched case-insensitively against the transaction
// category.
var incomeCategories = map[string]struct{}{
	"income": {},
	"salary": {},
	"bonus":  {},
}

// Apply fires only for credits in an income category whose amount exceeds
// 1.2x the baseline. Never returns an error.
func (r *SurplusIncomeRule) Apply(ctx context.Context, userID string, tx model.TransactionView, evalCtx *Context, svc Services, evalDate time.Time) {
	if tx.Direction != model.DirectionCredit {
		return
	}
	if _, ok := incomeCategories[strings.ToLower(strings.TrimSpace(tx.Category))]; !ok {
		return
	}

	log := logger.FromContext(ctx).With().Str("rule", r.Name()).Str("tx_id", tx.ID).Logger()

	baseline := r.fallbackBaseline
	if b, ok := evalCtx.MonthlyInvestibleCapacity(); ok && b.IsPositive() {
		baseline = b
	}

	if !tx.Amount.GreaterThan(baseline.Mul(surplusThresholdMult)) {
		return
	}
	surplus := tx.Amount.Sub(baseline)
	pool := surplus.Mul(surplusAllocateShare).Round(2)

	goals, err := svc.Goals.ListGoals(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("listing goals failed, skipping rule")
		return
	}
	target, ok := pickSurplusTarget(goals)
	if !ok {
		return
	}

	suggestion := &model.Suggestion{
		ID:     uuid.NewString(),
		UserID: userID,
		GoalID: target.ID,
		Type:   model.SuggestionAllocateSurplus,
		Title:  fmt.Sprintf("Allocate surplus to %q", target.Name),
		Description: fmt.Sprintf("This credit is ₹%s above your monthly baseline. Moving ₹%s to %q keeps it on track.",
			surplus.StringFixed(0), pool.StringFixed(2), target.Name),
		Payload: map[string]float64{
			"total_surplus": surplus.InexactFloat64(),
			"allocate_pool": pool.InexactFloat64(),
		},
		DedupKey:  dedupKey(tx.ID, r.Name(), "suggestion", target.ID),
		CreatedAt: evalDate,
	}
	if err := svc.Suggestions.InsertSuggestion(ctx, suggestion); err != nil {
		log.Error().Err(err).Str("goal_id", target.ID).Msg("inserting surplus suggestion failed")
	}
}

// pickSurplusTarget prefers the goal drifting hardest; when nothing drifts
// it falls back to the best-ranked goal (lowest rank, 999 for unranked).
func pickSurplusTarget(goals []model.Goal) (model.Goal, bool) {
	var (
		best  model.Goal
		found bool
	)
	for _, g := range goals {
		if !g.DriftPct.IsPositive() {
			continue
		}
		if !found || g.DriftPct.GreaterThan(best.DriftPct) {
			best = g
			found = true
		}
	}
	if found {
		return best, true
	}
	for _, g := range goals {
		if !found || g.EffectiveRank() < best.EffectiveRank() {
			best = g
			found = true
		}
	}
	return best, found
}
