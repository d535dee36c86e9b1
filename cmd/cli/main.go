package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finpath/goalengine/internal/engine"
	"github.com/finpath/goalengine/internal/enrich"
	"github.com/finpath/goalengine/internal/gcs"
	infraBQ "github.com/finpath/goalengine/internal/infra/bigquery"
	"github.com/finpath/goalengine/internal/logger"
	"github.com/finpath/goalengine/internal/matcher"
	"github.com/finpath/goalengine/internal/model"
	"github.com/finpath/goalengine/internal/rules"
	"github.com/finpath/goalengine/internal/store/inmemory"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "classify":
		runClassify(log)
	case "evaluate":
		runEvaluate(log)
	case "seed-rules":
		runSeedRules(log)
	case "suggest-rule":
		runSuggestRule(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("goalengine CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  classify      Resolve a merchant name/description to a category")
	fmt.Println("  evaluate      Run the goal rules against one transaction")
	fmt.Println("  seed-rules    Load a merchant-rules JSON file into the rule table")
	fmt.Println("  suggest-rule  Ask Gemini to propose a rule for an unmatched description")
	fmt.Println("  help          Show this help")
}

func runClassify(log zerolog.Logger) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	name := fs.String("name", "", "merchant name")
	desc := fs.String("desc", "", "free-text description")
	rulesPath := fs.String("rules", "", "local merchant-rules JSON file")
	project := fs.String("project", "", "GCP project (reads rules from BigQuery)")
	dataset := fs.String("dataset", "finance", "BigQuery dataset")
	_ = fs.Parse(os.Args[2:])

	if *name == "" && *desc == "" {
		log.Fatal().Msg("classify: provide -name and/or -desc")
	}

	ctx := logger.WithContext(context.Background(), log)

	source, cleanup, err := ruleSourceFrom(ctx, *rulesPath, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("classify: building rule source")
	}
	defer cleanup()

	m := matcher.New(source)
	match, err := m.Match(ctx, *name, *desc)
	if err != nil {
		log.Fatal().Err(err).Msg("classify: match failed")
	}

	if !match.Matched() {
		fmt.Println("no match")
		return
	}
	printJSON(map[string]any{
		"category":    match.Category,
		"subcategory": match.Subcategory,
		"kind":        match.Kind,
		"confidence":  match.Confidence,
	})
}

func runEvaluate(log zerolog.Logger) {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	txID := fs.String("id", "", "transaction id (generated if empty)")
	user := fs.String("user", "", "user id")
	amount := fs.String("amount", "", "transaction amount, e.g. 2500.00")
	direction := fs.String("direction", "debit", "debit or credit")
	category := fs.String("category", "", "category, if already classified")
	desc := fs.String("desc", "", "raw description")
	goalsPath := fs.String("goals", "", "local goals JSON file (in-memory mode)")
	project := fs.String("project", "", "GCP project (BigQuery mode)")
	dataset := fs.String("dataset", "finance", "BigQuery dataset")
	_ = fs.Parse(os.Args[2:])

	if *user == "" || *amount == "" {
		log.Fatal().Msg("evaluate: -user and -amount are required")
	}
	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		log.Fatal().Err(err).Msg("evaluate: invalid -amount")
	}
	dir := model.Direction(strings.ToLower(*direction))
	if dir != model.DirectionDebit && dir != model.DirectionCredit {
		log.Fatal().Msg("evaluate: -direction must be debit or credit")
	}

	tx := model.TransactionView{
		ID:          *txID,
		UserID:      *user,
		Amount:      amt,
		Direction:   dir,
		Date:        time.Now(),
		Category:    *category,
		Description: *desc,
	}
	if tx.ID == "" {
		tx.ID = fmt.Sprintf("cli-%d", time.Now().UnixNano())
	}

	ctx := logger.WithContext(context.Background(), log)
	registry := rules.NewDefaultRegistry(rules.Options{})

	if *project != "" {
		repos, err := infraBQ.NewRepositories(ctx, infraBQ.Config{ProjectID: *project, Dataset: *dataset})
		if err != nil {
			log.Fatal().Err(err).Msg("evaluate: bigquery client")
		}
		defer repos.Close()

		eng := engine.New(registry, rules.Services{Goals: repos, Signals: repos, Suggestions: repos})
		if err := eng.EvaluateTransaction(ctx, tx, time.Now()); err != nil {
			log.Fatal().Err(err).Msg("evaluate: evaluation failed")
		}
		fmt.Println("evaluation complete; signals and suggestions persisted to BigQuery")
		return
	}

	goalStore := inmemory.NewGoalStore()
	if *goalsPath != "" {
		goals, err := loadGoalsFile(*goalsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("evaluate: loading goals file")
		}
		for _, g := range goals {
			goalStore.Put(g)
		}
	}
	signals := inmemory.NewSignalStore()
	suggestions := inmemory.NewSuggestionStore()

	eng := engine.New(registry, rules.Services{Goals: goalStore, Signals: signals, Suggestions: suggestions})
	if err := eng.EvaluateTransaction(ctx, tx, time.Now()); err != nil {
		log.Fatal().Err(err).Msg("evaluate: evaluation failed")
	}

	printJSON(map[string]any{
		"signals":     signals.Signals(),
		"suggestions": suggestions.Suggestions(),
	})
}

func runSeedRules(log zerolog.Logger) {
	fs := flag.NewFlagSet("seed-rules", flag.ExitOnError)
	file := fs.String("file", "", "local merchant-rules JSON file")
	bucket := fs.String("bucket", "", "GCS bucket holding the rules file")
	object := fs.String("object", "", "GCS object name")
	project := fs.String("project", "", "GCP project (writes rules to BigQuery)")
	dataset := fs.String("dataset", "finance", "BigQuery dataset")
	_ = fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	var (
		ruleSet []model.MerchantRule
		err     error
	)
	switch {
	case *file != "":
		data, readErr := os.ReadFile(*file)
		if readErr != nil {
			log.Fatal().Err(readErr).Msg("seed-rules: reading file")
		}
		ruleSet, err = gcs.DecodeMerchantRules(data)
	case *bucket != "" && *object != "":
		ruleSet, err = gcs.LoadMerchantRules(ctx, *bucket, *object)
	default:
		log.Fatal().Msg("seed-rules: provide -file, or -bucket and -object")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("seed-rules: decoding rules")
	}

	if *project == "" {
		fmt.Printf("validated %d merchant rules (no -project given, nothing written)\n", len(ruleSet))
		return
	}

	repos, err := infraBQ.NewRepositories(ctx, infraBQ.Config{ProjectID: *project, Dataset: *dataset})
	if err != nil {
		log.Fatal().Err(err).Msg("seed-rules: bigquery client")
	}
	defer repos.Close()

	if err := repos.InsertMerchantRules(ctx, ruleSet); err != nil {
		log.Fatal().Err(err).Msg("seed-rules: inserting rules")
	}
	fmt.Printf("inserted %d merchant rules; clear the matcher cache so they become observable\n", len(ruleSet))
}

func runSuggestRule(log zerolog.Logger) {
	fs := flag.NewFlagSet("suggest-rule", flag.ExitOnError)
	desc := fs.String("desc", "", "unmatched transaction description")
	categories := fs.String("categories", "", "comma-separated allowed categories")
	_ = fs.Parse(os.Args[2:])

	if *desc == "" {
		log.Fatal().Msg("suggest-rule: -desc is required")
	}

	var cats []string
	for _, c := range strings.Split(*categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}

	ctx := logger.WithContext(context.Background(), log)
	rule, err := enrich.NewRuleSuggester().Suggest(ctx, *desc, cats)
	if err != nil {
		log.Fatal().Err(err).Msg("suggest-rule: suggestion failed")
	}
	printJSON(map[string]any{
		"merchant_name": rule.Name,
		"category":      rule.Category,
		"subcategory":   rule.Subcategory,
		"keyword":       rule.Keyword,
	})
}

// ruleSourceFrom builds a matcher rule source from a local file or BigQuery.
func ruleSourceFrom(ctx context.Context, rulesPath, project, dataset string) (matcher.RuleSource, func(), error) {
	if rulesPath != "" {
		data, err := os.ReadFile(rulesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading rules file: %w", err)
		}
		ruleSet, err := gcs.DecodeMerchantRules(data)
		if err != nil {
			return nil, nil, err
		}
		store := inmemory.NewMerchantRuleStore()
		store.Replace(ruleSet)
		return store, func() {}, nil
	}
	if project != "" {
		repos, err := infraBQ.NewRepositories(ctx, infraBQ.Config{ProjectID: project, Dataset: dataset})
		if err != nil {
			return nil, nil, err
		}
		return repos, func() { _ = repos.Close() }, nil
	}
	return nil, nil, fmt.Errorf("provide -rules or -project")
}

// goalFile is the JSON shape of one goal in a local goals file.
type goalFile struct {
	ID                        string  `json:"id"`
	UserID                    string  `json:"user_id"`
	Name                      string  `json:"name"`
	EstimatedCost             float64 `json:"estimated_cost"`
	CurrentSavings            float64 `json:"current_savings"`
	PriorityRank              int     `json:"priority_rank"`
	DriftPct                  float64 `json:"drift_pct"`
	DriftAmount               float64 `json:"drift_amount"`
	MonthlyInvestibleCapacity float64 `json:"monthly_investible_capacity"`
}

func loadGoalsFile(path string) ([]model.Goal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading goals file: %w", err)
	}
	var raw []goalFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding goals file: %w", err)
	}
	goals := make([]model.Goal, 0, len(raw))
	for _, g := range raw {
		goals = append(goals, model.Goal{
			ID:                        g.ID,
			UserID:                    g.UserID,
			Name:                      g.Name,
			EstimatedCost:             decimal.NewFromFloat(g.EstimatedCost),
			CurrentSavings:            decimal.NewFromFloat(g.CurrentSavings),
			PriorityRank:              g.PriorityRank,
			DriftPct:                  decimal.NewFromFloat(g.DriftPct),
			DriftAmount:               decimal.NewFromFloat(g.DriftAmount),
			MonthlyInvestibleCapacity: decimal.NewFromFloat(g.MonthlyInvestibleCapacity),
		})
	}
	return goals, nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
