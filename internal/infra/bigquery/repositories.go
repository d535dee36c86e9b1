package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/finpath/goalengine/internal/model"
)

// Repositories bundles the BigQuery-backed implementations of the engine's
// storage interfaces behind one shared client.
type Repositories struct {
	client *bigquery.Client
	cfg    Config
}

// NewRepositories creates the repository bundle with a shared BigQuery
// client to avoid a new connection per operation.
func NewRepositories(ctx context.Context, cfg Config) (*Repositories, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepositories: creating client: %w", err)
	}
	return &Repositories{client: client, cfg: cfg}, nil
}

// Close releases the shared client. Call when the repositories are no
// longer needed.
func (r *Repositories) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListGoals implements rules.GoalRepository.
func (r *Repositories) ListGoals(ctx context.Context, userID string) ([]model.Goal, error) {
	return ListGoalsWithClient(ctx, r.client, r.cfg, userID)
}

// InsertSignal implements rules.SignalSink.
func (r *Repositories) InsertSignal(ctx context.Context, signal *model.Signal) error {
	return InsertSignalWithClient(ctx, r.client, r.cfg, signal)
}

// InsertSuggestion implements rules.SuggestionSink.
func (r *Repositories) InsertSuggestion(ctx context.Context, suggestion *model.Suggestion) error {
	return InsertSuggestionWithClient(ctx, r.client, r.cfg, suggestion)
}

// ListMerchantRules implements matcher.RuleSource.
func (r *Repositories) ListMerchantRules(ctx context.Context) ([]model.MerchantRule, error) {
	return ListMerchantRulesWithClient(ctx, r.client, r.cfg)
}

// InsertMerchantRules appends rules to the merchant_rules table.
func (r *Repositories) InsertMerchantRules(ctx context.Context, rules []model.MerchantRule) error {
	return InsertMerchantRulesWithClient(ctx, r.client, r.cfg, rules)
}
