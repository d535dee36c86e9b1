// Package bigquery implements the engine's storage interfaces against a
// BigQuery dataset: goals, signals, suggestions and merchant_rules tables.
package bigquery

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finpath/goalengine/internal/model"
)

// Config locates the dataset the repositories operate on.
type Config struct {
	ProjectID string
	Dataset   string
}

// DefaultDataset is used when no dataset is configured.
const DefaultDataset = "finance"

func (c Config) dataset() string {
	if c.Dataset == "" {
		return DefaultDataset
	}
	return c.Dataset
}

// GoalRow mirrors the finance.goals table schema.
type GoalRow struct {
	GoalID                    string  `bigquery:"goal_id"`
	UserID                    string  `bigquery:"user_id"`
	Name                      string  `bigquery:"name"`
	EstimatedCost             float64 `bigquery:"estimated_cost"`
	CurrentSavings            float64 `bigquery:"current_savings"`
	PriorityRank              int64   `bigquery:"priority_rank"`
	DriftPct                  float64 `bigquery:"drift_pct"`
	DriftAmount               float64 `bigquery:"drift_amount"`
	MonthlyInvestibleCapacity float64 `bigquery:"monthly_investible_capacity"`
}

// ToGoal converts a row into the domain type.
func (r *GoalRow) ToGoal() model.Goal {
	return model.Goal{
		ID:                        r.GoalID,
		UserID:                    r.UserID,
		Name:                      r.Name,
		EstimatedCost:             decimal.NewFromFloat(r.EstimatedCost),
		CurrentSavings:            decimal.NewFromFloat(r.CurrentSavings),
		PriorityRank:              int(r.PriorityRank),
		DriftPct:                  decimal.NewFromFloat(r.DriftPct),
		DriftAmount:               decimal.NewFromFloat(r.DriftAmount),
		MonthlyInvestibleCapacity: decimal.NewFromFloat(r.MonthlyInvestibleCapacity),
	}
}

// SignalRow mirrors the finance.signals table schema. Meta is stored as a
// JSON string column.
type SignalRow struct {
	SignalID   string    `bigquery:"signal_id"`
	UserID     string    `bigquery:"user_id"`
	GoalID     string    `bigquery:"goal_id"`
	SignalType string    `bigquery:"signal_type"`
	Severity   string    `bigquery:"severity"`
	Message    string    `bigquery:"message"`
	Meta       string    `bigquery:"meta"`
	DedupKey   string    `bigquery:"dedup_key"`
	CreatedTS  time.Time `bigquery:"created_ts"`
}

// NewSignalRow maps a domain signal into its row form.
func NewSignalRow(s *model.Signal) *SignalRow {
	meta, _ := json.Marshal(s.Meta)
	return &SignalRow{
		SignalID:   s.ID,
		UserID:     s.UserID,
		GoalID:     s.GoalID,
		SignalType: string(s.Type),
		Severity:   string(s.Severity),
		Message:    s.Message,
		Meta:       string(meta),
		DedupKey:   s.DedupKey,
		CreatedTS:  s.CreatedAt,
	}
}

// SuggestionRow mirrors the finance.suggestions table schema.
type SuggestionRow struct {
	SuggestionID   string    `bigquery:"suggestion_id"`
	UserID         string    `bigquery:"user_id"`
	GoalID         string    `bigquery:"goal_id"`
	SuggestionType string    `bigquery:"suggestion_type"`
	Title          string    `bigquery:"title"`
	Description    string    `bigquery:"description"`
	ActionPayload  string    `bigquery:"action_payload"`
	DedupKey       string    `bigquery:"dedup_key"`
	CreatedTS      time.Time `bigquery:"created_ts"`
}

// NewSuggestionRow maps a domain suggestion into its row form.
func NewSuggestionRow(s *model.Suggestion) *SuggestionRow {
	payload, _ := json.Marshal(s.Payload)
	return &SuggestionRow{
		SuggestionID:   s.ID,
		UserID:         s.UserID,
		GoalID:         s.GoalID,
		SuggestionType: string(s.Type),
		Title:          s.Title,
		Description:    s.Description,
		ActionPayload:  string(payload),
		DedupKey:       s.DedupKey,
		CreatedTS:      s.CreatedAt,
	}
}

// MerchantRuleRow mirrors the finance.merchant_rules table schema.
type MerchantRuleRow struct {
	MerchantName string `bigquery:"merchant_name"`
	Category     string `bigquery:"category"`
	Subcategory  string `bigquery:"subcategory"`
	Keyword      string `bigquery:"keyword"`
}

// ToMerchantRule converts a row into the domain type.
func (r *MerchantRuleRow) ToMerchantRule() model.MerchantRule {
	return model.MerchantRule{
		Name:        r.MerchantName,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Keyword:     r.Keyword,
	}
}
