package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type GraphConfig struct {
	URI        string `toml:"uri"`
	User       string `toml:"user"`
	Password   string `toml:"password"`
	DataDB     string `toml:"data_db"`
	OntologyDB string `toml:"ontology_db"`
}

type RedisConfig struct {
	URL string `toml:"url"`
}

type IndexConfig struct {
	BloomBits           uint    `toml:"bloom_bits"`
	BloomFPRate         float64 `toml:"bloom_fp_rate"`
	ValueSample         int     `toml:"value_sample"`
	RebuildIntervalMins int     `toml:"rebuild_interval_mins"`
}

type DiscoveryConfig struct {
	AcceptanceThreshold float64 `toml:"acceptance_threshold"`
	RejectionThreshold  float64 `toml:"rejection_threshold"`
	MinCountForEval     int64   `toml:"min_count_for_eval"`
	TopK                int     `toml:"top_k"`
	AllowSelfRefs       bool    `toml:"allow_self_refs"`
	SampleSize          int     `toml:"sample_size"`
	ScoreAlpha          float64 `toml:"score_alpha"`
	SyncInstanceLimit   int     `toml:"sync_instance_limit"`
	WorkerPoolSize      int     `toml:"worker_pool_size"`
	JudgeTimeoutSecs    int     `toml:"judge_timeout_secs"`
	RunIntervalMins     int     `toml:"run_interval_mins"`
}

type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Graph     GraphConfig     `toml:"graph"`
	Redis     RedisConfig     `toml:"redis"`
	Index     IndexConfig     `toml:"index"`
	Discovery DiscoveryConfig `toml:"discovery"`
}

// Default returns the tuning constants we ship with. Every value here is an
// operator knob, not a behavioral invariant.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			URI: "bolt://localhost:7687",
		},
		Redis: RedisConfig{
			URL: "redis://localhost:6379",
		},
		Index: IndexConfig{
			BloomBits:           10_000_000,
			BloomFPRate:         0.01,
			ValueSample:         20,
			RebuildIntervalMins: 60,
		},
		Discovery: DiscoveryConfig{
			AcceptanceThreshold: 0.8,
			RejectionThreshold:  0.2,
			MinCountForEval:     10,
			TopK:                3,
			SampleSize:          50,
			ScoreAlpha:          0.3,
			SyncInstanceLimit:   1000,
			WorkerPoolSize:      10,
			JudgeTimeoutSecs:    60,
			RunIntervalMins:     360,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	d := c.Discovery
	if d.RejectionThreshold >= d.AcceptanceThreshold {
		return fmt.Errorf("rejection_threshold (%v) must be below acceptance_threshold (%v)",
			d.RejectionThreshold, d.AcceptanceThreshold)
	}
	if d.WorkerPoolSize < 1 {
		return fmt.Errorf("worker_pool_size must be at least 1")
	}
	if d.ScoreAlpha <= 0 || d.ScoreAlpha > 1 {
		return fmt.Errorf("score_alpha must be in (0, 1]")
	}
	if c.Index.RebuildIntervalMins < 1 {
		return fmt.Errorf("rebuild_interval_mins must be at least 1")
	}
	return nil
}

func (c *Config) JudgeTimeout() time.Duration {
	return time.Duration(c.Discovery.JudgeTimeoutSecs) * time.Second
}

func (c *Config) RunInterval() time.Duration {
	return time.Duration(c.Discovery.RunIntervalMins) * time.Minute
}

func (c *Config) RebuildInterval() time.Duration {
	return time.Duration(c.Index.RebuildIntervalMins) * time.Minute
}
