// Package config loads and validates Milton's YAML configuration: selector
// weights and thresholds, the scheduler's trigger table, queue sizing, and
// infrastructure settings. It follows tarsy's config package: YAML parsed
// with gopkg.in/yaml.v3, merged over built-in defaults with dario.cat/mergo,
// environment variables expanded first.
package config

import "time"

// Config is the fully loaded, validated, ready-to-use configuration.
type Config struct {
	System    SystemConfig
	Selector  SelectorConfig
	Queue     QueueConfig
	Retention RetentionConfig
	Inference InferenceConfig
	Triggers  []TriggerConfig
	Notify    NotifyConfig
	Briefing  BriefingConfig
}

// SystemConfig groups system-wide infrastructure settings.
type SystemConfig struct {
	HTTPPort         string   `yaml:"http_port"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
	StateDir         string   `yaml:"state_dir"` // empty = stateroot.Resolve() default
}

// SelectorWeights are the default weights for C9's scoring function.
// Sum need not be 1.0; scores are comparable only within one selection run.
type SelectorWeights struct {
	Latency    float64 `yaml:"latency"`
	Throughput float64 `yaml:"throughput"`
	CoVe       float64 `yaml:"cove"`
	Retrieval  float64 `yaml:"retrieval"`
}

// SelectorConfig holds C9's thresholds and normalization parameters.
type SelectorConfig struct {
	Weights SelectorWeights `yaml:"weights"`

	// MinCoVePassRate rejects any candidate below this pass rate (spec default 0.90).
	MinCoVePassRate float64 `yaml:"min_cove_pass_rate"`
	// MinRetrievalF1 rejects any candidate below this F1 (spec default 0.50).
	MinRetrievalF1 float64 `yaml:"min_retrieval_f1"`

	// LatencyCapMS is the Open Question pinned in SPEC_FULL.md: the ceiling
	// used to invert latency into a [0,1] normalized score. 0ms normalizes
	// to 1 (best); latencies at or above this cap normalize to 0 (worst).
	LatencyCapMS float64 `yaml:"latency_cap_ms"`
}

// QueueConfig holds the job queue settings (C7).
type QueueConfig struct {
	// JobTimeout is loaded and defaulted (30m), but nothing outside the
	// config package reads it: the job queue runner applies no per-job
	// deadline of its own.
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// RetentionConfig mirrors tarsy/pkg/cleanup's retention policy, adapted to
// memory-tier pruning (C1 §4.11) instead of session/event retention.
type RetentionConfig struct {
	ShortTermTTL          time.Duration `yaml:"short_term_ttl"`           // spec: 48h
	WorkingPromotionAge   time.Duration `yaml:"working_promotion_age"`    // spec: 7 days
	WorkingPromotionScore float64       `yaml:"working_promotion_score"`  // spec: importance >= 0.5
	LongTermPruneScore    float64       `yaml:"long_term_prune_score"`    // spec: importance < 0.3
	CleanupInterval       time.Duration `yaml:"cleanup_interval"`
}

// InferenceConfig describes the OpenAI-compatible backend (C2).
type InferenceConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"` // spec: 120s
}

// TriggerConfig is one row of C12's cron-like trigger table (spec §4.10).
type TriggerConfig struct {
	Name        string        `yaml:"name"`
	CronExpr    string        `yaml:"cron_expr"`
	JitterS     int           `yaml:"jitter_s"`
	PostBootDelay time.Duration `yaml:"post_boot_delay"`
}

// NotifyConfig selects and configures the notification channel(s) used for
// reminder delivery and briefing publication.
type NotifyConfig struct {
	Slack *SlackConfig `yaml:"slack"`
	Push  *PushConfig  `yaml:"push"`
}

// SlackConfig configures the Slack-backed notify.Channel.
type SlackConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TokenEnv  string `yaml:"token_env"`
	ChannelID string `yaml:"channel_id"`
}

// PushConfig configures the opaque mobile-push notify.Channel (spec §6:
// "Mobile push channel: opaque publish/subscribe with message IDs").
type PushConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

// BriefingConfig names the fetch endpoints for the morning briefing's four
// sections. A blank URL (or blank ArxivQuery) means that section's fetcher
// is never built, so the section is left out of the briefing entirely
// rather than reported as skipped or as an error.
type BriefingConfig struct {
	WeatherPointsURL string `yaml:"weather_points_url"`
	NewsFeedURL      string `yaml:"news_feed_url"`
	NewsLimit        int    `yaml:"news_limit"`
	ArxivQuery       string `yaml:"arxiv_query"`
	ArxivMaxResults  int    `yaml:"arxiv_max_results"`
	CalendarICSURL   string `yaml:"calendar_ics_url"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout"`
}
