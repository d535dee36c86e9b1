package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/finpath/goalengine/internal/config"
	"github.com/finpath/goalengine/internal/engine"
	"github.com/finpath/goalengine/internal/gcs"
	infraBQ "github.com/finpath/goalengine/internal/infra/bigquery"
	"github.com/finpath/goalengine/internal/jobs"
	jobsinmem "github.com/finpath/goalengine/internal/jobs/inmemory"
	"github.com/finpath/goalengine/internal/logger"
	"github.com/finpath/goalengine/internal/matcher"
	"github.com/finpath/goalengine/internal/model"
	"github.com/finpath/goalengine/internal/rules"
	"github.com/finpath/goalengine/internal/store/inmemory"
)

func main() {
	configPath := flag.String("config", "", "path to goalengine.yaml (optional)")
	flag.Parse()

	log := logger.New()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load config")
		}
		cfg = loaded
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	svc, ruleSource, cleanup, err := buildStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer cleanup()

	match := matcher.New(ruleSource, matcher.WithMinSimilarity(cfg.Matcher.MinSimilarity))
	registry := rules.NewDefaultRegistry(rules.Options{
		FallbackMonthlyCapacity: cfg.Rules.FallbackMonthlyCapacity,
		OverspendRatio:          cfg.Rules.OverspendRatio,
	})
	eng := engine.New(registry, svc)

	jobStore := jobsinmem.NewStore()
	queue := jobsinmem.NewQueue(cfg.Worker.QueueBuffer, cfg.Worker.Workers, jobStore)

	log.Info().Msg("Starting evaluation worker")

	handler := func(ctx context.Context, job jobs.Job) error {
		evalJob, ok := job.(*jobs.EvaluateTransactionJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		tx := evalJob.Transaction
		if tx.Category == "" {
			m, err := match.Match(ctx, "", tx.Description)
			if err != nil {
				log.Warn().Err(err).Str("tx_id", tx.ID).Msg("Merchant match failed, evaluating unclassified")
			} else if m.Matched() {
				tx.Category = m.Category
				tx.Subcategory = m.Subcategory
			}
		}

		if err := eng.EvaluateTransaction(ctx, tx, time.Now()); err != nil {
			log.Error().Err(err).Str("tx_id", tx.ID).Msg("Evaluation failed")
			return err
		}

		log.Info().
			Str("job_id", evalJob.JobID).
			Str("tx_id", tx.ID).
			Str("category", tx.Category).
			Msg("Transaction evaluated")
		return nil
	}

	if err := queue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	go feedFromStdin(ctx, queue, log)

	log.Info().Msg("Worker started, reading transactions from stdin...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Queue shutdown timed out")
	}
	log.Info().Msg("Worker stopped")
}

// txLine is the JSON shape of one transaction on stdin, one object per line.
type txLine struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	Direction   string  `json:"direction"`
	Date        string  `json:"date,omitempty"` // RFC 3339, defaults to now
	Category    string  `json:"category,omitempty"`
	Subcategory string  `json:"subcategory,omitempty"`
	Description string  `json:"description,omitempty"`
}

// feedFromStdin publishes one evaluation job per JSON line on stdin. Blank
// lines are skipped, malformed lines are logged and skipped; EOF stops the
// feed but leaves the worker draining.
func feedFromStdin(ctx context.Context, pub jobs.Publisher, log zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw txLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			log.Warn().Err(err).Msg("Skipping malformed transaction line")
			continue
		}
		if raw.UserID == "" {
			log.Warn().Msg("Skipping transaction line without user_id")
			continue
		}

		tx := model.TransactionView{
			ID:          raw.ID,
			UserID:      raw.UserID,
			Amount:      decimal.NewFromFloat(raw.Amount),
			Direction:   model.Direction(strings.ToLower(raw.Direction)),
			Date:        time.Now(),
			Category:    raw.Category,
			Subcategory: raw.Subcategory,
			Description: raw.Description,
		}
		if raw.Date != "" {
			if parsed, err := time.Parse(time.RFC3339, raw.Date); err == nil {
				tx.Date = parsed
			}
		}
		if tx.ID == "" {
			tx.ID = uuid.NewString()
		}

		job := &jobs.EvaluateTransactionJob{Transaction: tx, MaxRetries: 3}
		if err := pub.PublishEvaluateTransaction(ctx, job); err != nil {
			log.Error().Err(err).Str("tx_id", tx.ID).Msg("Failed to enqueue transaction")
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Reading stdin failed")
	}
	log.Info().Msg("Stdin exhausted, no more transactions will be enqueued")
}

// buildStorage wires BigQuery-backed storage when a project is configured,
// otherwise in-memory stores for single-instance and local runs.
func buildStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (rules.Services, matcher.RuleSource, func(), error) {
	if cfg.GCP.ProjectID != "" {
		repos, err := infraBQ.NewRepositories(ctx, infraBQ.Config{
			ProjectID: cfg.GCP.ProjectID,
			Dataset:   cfg.GCP.Dataset,
		})
		if err != nil {
			return rules.Services{}, nil, nil, err
		}
		log.Info().Str("project", cfg.GCP.ProjectID).Str("dataset", cfg.GCP.Dataset).Msg("Using BigQuery storage")
		svc := rules.Services{Goals: repos, Signals: repos, Suggestions: repos}
		return svc, repos, func() { _ = repos.Close() }, nil
	}

	log.Info().Msg("No GCP project configured, using in-memory storage")
	ruleStore := inmemory.NewMerchantRuleStore()
	if cfg.GCP.RulesBucket != "" && cfg.GCP.RulesObject != "" {
		seeded, err := gcs.LoadMerchantRules(ctx, cfg.GCP.RulesBucket, cfg.GCP.RulesObject)
		if err != nil {
			return rules.Services{}, nil, nil, fmt.Errorf("loading merchant rules from GCS: %w", err)
		}
		ruleStore.Replace(seeded)
		log.Info().Int("rules", len(seeded)).Str("bucket", cfg.GCP.RulesBucket).Msg("Seeded merchant rules from GCS")
	}
	svc := rules.Services{
		Goals:       inmemory.NewGoalStore(),
		Signals:     inmemory.NewSignalStore(),
		Suggestions: inmemory.NewSuggestionStore(),
	}
	return svc, ruleStore, func() {}, nil
}
