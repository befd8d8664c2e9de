package config

import "time"

// Defaults returns the built-in configuration merged under whatever the
// user supplies, the way tarsy/pkg/config/builtin.go provides a baseline
// agents/chains/mcp_servers set before user YAML is merged on top.
func Defaults() *Config {
	return &Config{
		System: SystemConfig{
			HTTPPort:         "8080",
			AllowedWSOrigins: []string{"*"},
		},
		Selector: SelectorConfig{
			Weights: SelectorWeights{
				Latency:    0.25,
				Throughput: 0.25,
				CoVe:       0.25,
				Retrieval:  0.25,
			},
			MinCoVePassRate: 0.90,
			MinRetrievalF1:  0.50,
			LatencyCapMS:    500,
		},
		Queue: QueueConfig{
			JobTimeout: 30 * time.Minute,
		},
		Retention: RetentionConfig{
			ShortTermTTL:          48 * time.Hour,
			WorkingPromotionAge:   7 * 24 * time.Hour,
			WorkingPromotionScore: 0.5,
			LongTermPruneScore:    0.3,
			CleanupInterval:       1 * time.Hour,
		},
		Inference: InferenceConfig{
			BaseURL:   "http://localhost:8000/v1",
			APIKeyEnv: "MILTON_INFERENCE_API_KEY",
			Model:     "local-default",
			Timeout:   120 * time.Second,
		},
		Triggers: []TriggerConfig{
			{Name: "autobench", CronExpr: "0 */6 * * *", JitterS: 1800, PostBootDelay: 300 * time.Second},
			{Name: "morning_briefing", CronExpr: "0 8 * * *", JitterS: 0},
			{Name: "job_queue", CronExpr: "0 22 * * *", JitterS: 0},
			{Name: "reminder_tick", CronExpr: "@every 5s", JitterS: 0},
		},
		Notify: NotifyConfig{
			Push: &PushConfig{Enabled: true, Topic: "milton.reminders"},
		},
		Briefing: BriefingConfig{
			ArxivQuery:      "cat:cs.AI",
			ArxivMaxResults: 5,
			NewsLimit:       5,
			FetchTimeout:    15 * time.Second,
		},
	}
}
