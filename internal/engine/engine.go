// Package engine runs the goal rule set against incoming transactions.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpath/goalengine/internal/logger"
	"github.com/finpath/goalengine/internal/model"
	"github.com/finpath/goalengine/internal/rules"
)

// Engine is the per-transaction orchestrator. It builds the shared
// evaluation context once and drives every enabled rule in ascending
// priority order, strictly sequentially: later rules may depend on context
// written by earlier ones, so the ordering is a correctness contract.
type Engine struct {
	registry *rules.Registry
	services rules.Services
}

// New wires a rule registry to the storage capabilities the rules use.
func New(registry *rules.Registry, services rules.Services) *Engine {
	return &Engine{registry: registry, services: services}
}

// EvaluateTransaction evaluates one transaction against the user's goal
// portfolio. Rules persist their own signals and suggestions through the
// sinks; the engine aggregates nothing. An error is returned only when the
// goal portfolio itself cannot be loaded; individual rule failures never
// surface here.
func (e *Engine) EvaluateTransaction(ctx context.Context, tx model.TransactionView, evalDate time.Time) error {
	log := logger.FromContext(ctx).With().
		Str("tx_id", tx.ID).
		Str("user_id", tx.UserID).
		Logger()

	goals, err := e.services.Goals.ListGoals(ctx, tx.UserID)
	if err != nil {
		return fmt.Errorf("evaluate transaction %s: list goals: %w", tx.ID, err)
	}

	evalCtx := rules.NewContext()
	if capacity, ok := portfolioCapacity(goals); ok {
		evalCtx.SetMonthlyInvestibleCapacity(capacity)
	}

	for _, rule := range e.registry.All() {
		if !rule.Enabled() {
			continue
		}
		e.applyRule(ctx, rule, tx, evalCtx, evalDate)
	}

	log.Debug().Int("goals", len(goals)).Msg("evaluation pass complete")
	return nil
}

// applyRule invokes one rule behind a recover guard. Rules already promise
// not to fail, but a non-compliant implementation must still not take down
// the pass or the pipeline.
func (e *Engine) applyRule(ctx context.Context, rule rules.Rule, tx model.TransactionView, evalCtx *rules.Context, evalDate time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			log := logger.FromContext(ctx)
			log.Error().
				Str("rule", rule.Name()).
				Str("tx_id", tx.ID).
				Interface("panic", rec).
				Msg("rule panicked, continuing with next rule")
		}
	}()

	rule.Apply(ctx, tx.UserID, tx, evalCtx, e.services, evalDate)
}

// portfolioCapacity derives the context baseline: the largest positive
// monthly investible capacity across the portfolio.
func portfolioCapacity(goals []model.Goal) (decimal.Decimal, bool) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, g := range goals {
		if !g.MonthlyInvestibleCapacity.IsPositive() {
			continue
		}
		if !found || g.MonthlyInvestibleCapacity.GreaterThan(best) {
			best = g.MonthlyInvestibleCapacity
			found = true
		}
	}
	return best, found
}
