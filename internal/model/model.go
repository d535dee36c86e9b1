// Package model defines the domain types shared by the goal rule engine and
// the merchant matcher.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether money left or entered the account.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// TransactionView is an immutable snapshot of one transaction as seen by the
// rule engine. Rules read it, never mutate it; the caller owns it for the
// duration of a single evaluation pass.
type TransactionView struct {
	ID          string
	UserID      string
	Amount      decimal.Decimal
	Direction   Direction
	Date        time.Time
	Category    string // assigned upstream by the matcher, may be empty
	Subcategory string
	Description string // raw merchant / free-text description
}

// UnrankedPriority is the sentinel rank for goals the user never ordered.
const UnrankedPriority = 999

// Goal is a user's savings goal as persisted by the goal-management flows.
// The engine reads it; drift fields are maintained by periodic recomputation
// jobs elsewhere.
type Goal struct {
	ID                        string
	UserID                    string
	Name                      string
	EstimatedCost             decimal.Decimal
	CurrentSavings            decimal.Decimal
	PriorityRank              int // UnrankedPriority when unset
	DriftPct                  decimal.Decimal
	DriftAmount               decimal.Decimal
	MonthlyInvestibleCapacity decimal.Decimal
}

// EffectiveRank normalizes a missing or non-positive rank to the sentinel so
// "lowest rank wins" comparisons stay well defined.
func (g Goal) EffectiveRank() int {
	if g.PriorityRank <= 0 {
		return UnrankedPriority
	}
	return g.PriorityRank
}

// SignalType identifies the condition a signal reports.
type SignalType string

const (
	SignalDrift     SignalType = "DRIFT"
	SignalOverspend SignalType = "OVERSPEND"
)

// Severity grades how urgent a signal is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Signal is an append-only record of a detected goal condition. Signals are
// never updated in place.
type Signal struct {
	ID        string
	UserID    string
	GoalID    string
	Type      SignalType
	Severity  Severity
	Message   string
	Meta      map[string]float64
	DedupKey  string
	CreatedAt time.Time
}

// SuggestionType identifies the action a suggestion proposes.
type SuggestionType string

const (
	SuggestionIncreaseContribution SuggestionType = "INCREASE_CONTRIBUTION"
	SuggestionAllocateSurplus      SuggestionType = "ALLOCATE_SURPLUS"
	SuggestionReviewSpending       SuggestionType = "REVIEW_SPENDING"
)

// Suggestion is an append-only actionable recommendation. The payload is
// consumed by a client; the engine only writes it.
type Suggestion struct {
	ID          string
	UserID      string
	GoalID      string
	Type        SuggestionType
	Title       string
	Description string
	Payload     map[string]float64
	DedupKey    string
	CreatedAt   time.Time
}

// MerchantRule maps a normalized merchant name (and optionally a keyword
// found in free text) to a category. The rule table is maintained outside
// the matcher and read-only to it.
type MerchantRule struct {
	Name        string // normalized: lowercase, trimmed
	Category    string
	Subcategory string
	Keyword     string // optional, matched case-insensitively against descriptions
}

// MatchKind is the matcher tier that produced a result.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchKeyword MatchKind = "keyword"
	MatchFuzzy   MatchKind = "fuzzy"
)

// Match is the transient result of a merchant lookup. The zero value means
// "no match", which is a normal outcome, not an error.
type Match struct {
	Category    string
	Subcategory string
	Kind        MatchKind
	Confidence  float64
}

// Matched reports whether any tier produced a result.
func (m Match) Matched() bool {
	return m.Kind != ""
}
