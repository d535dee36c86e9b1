// Package config loads the engine's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level goalengine.yaml configuration.
type Config struct {
	GCP     GCPConfig     `yaml:"gcp"`
	Matcher MatcherConfig `yaml:"matcher"`
	Rules   RulesConfig   `yaml:"rules"`
	Worker  WorkerConfig  `yaml:"worker"`
}

// GCPConfig locates the BigQuery dataset and the GCS rule seed file.
type GCPConfig struct {
	ProjectID   string `yaml:"project_id"`
	Dataset     string `yaml:"dataset"`
	RulesBucket string `yaml:"rules_bucket"`
	RulesObject string `yaml:"rules_object"`
}

// MatcherConfig tunes the merchant matcher.
type MatcherConfig struct {
	// MinSimilarity is the fuzzy-match acceptance threshold in (0, 1].
	MinSimilarity float64 `yaml:"min_similarity"`
}

// RulesConfig tunes the goal rules.
type RulesConfig struct {
	// FallbackMonthlyCapacity is the baseline monthly income assumed when
	// the goal portfolio provides none.
	FallbackMonthlyCapacity float64 `yaml:"fallback_monthly_capacity"`
	// OverspendRatio is the fraction of the capacity baseline a single
	// debit must exceed to count as overspending.
	OverspendRatio float64 `yaml:"overspend_ratio"`
}

// WorkerConfig tunes the evaluation queue.
type WorkerConfig struct {
	QueueBuffer int `yaml:"queue_buffer"`
	Workers     int `yaml:"workers"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		GCP: GCPConfig{
			Dataset: "finance",
		},
		Matcher: MatcherConfig{
			MinSimilarity: 0.8,
		},
		Rules: RulesConfig{
			FallbackMonthlyCapacity: 50000,
			OverspendRatio:          0.5,
		},
		Worker: WorkerConfig{
			QueueBuffer: 100,
			Workers:     5,
		},
	}
}

// Load reads a goalengine.yaml file from disk, filling unset fields with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.GCP.Dataset == "" {
		c.GCP.Dataset = d.GCP.Dataset
	}
	if c.Matcher.MinSimilarity <= 0 || c.Matcher.MinSimilarity > 1 {
		c.Matcher.MinSimilarity = d.Matcher.MinSimilarity
	}
	if c.Rules.FallbackMonthlyCapacity <= 0 {
		c.Rules.FallbackMonthlyCapacity = d.Rules.FallbackMonthlyCapacity
	}
	if c.Rules.OverspendRatio <= 0 {
		c.Rules.OverspendRatio = d.Rules.OverspendRatio
	}
	if c.Worker.QueueBuffer <= 0 {
		c.Worker.QueueBuffer = d.Worker.QueueBuffer
	}
	if c.Worker.Workers <= 0 {
		c.Worker.Workers = d.Worker.Workers
	}
}
