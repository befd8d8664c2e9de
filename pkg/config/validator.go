package config

import "fmt"

// Validate checks cross-field invariants that YAML unmarshalling alone
// can't, mirroring tarsy/pkg/config/validator.go's one-pass structural walk.
func Validate(cfg *Config) error {
	if cfg.Selector.MinCoVePassRate < 0 || cfg.Selector.MinCoVePassRate > 1 {
		return NewValidationError("selector.min_cove_pass_rate", fmt.Errorf("must be within [0,1], got %v", cfg.Selector.MinCoVePassRate))
	}
	if cfg.Selector.MinRetrievalF1 < 0 || cfg.Selector.MinRetrievalF1 > 1 {
		return NewValidationError("selector.min_retrieval_f1", fmt.Errorf("must be within [0,1], got %v", cfg.Selector.MinRetrievalF1))
	}
	if cfg.Selector.LatencyCapMS <= 0 {
		return NewValidationError("selector.latency_cap_ms", fmt.Errorf("must be positive, got %v", cfg.Selector.LatencyCapMS))
	}
	for _, t := range cfg.Triggers {
		if t.Name == "" {
			return NewValidationError("triggers[].name", fmt.Errorf("must not be empty"))
		}
		if t.CronExpr == "" {
			return NewValidationError("triggers[].cron_expr", fmt.Errorf("trigger %q: must not be empty", t.Name))
		}
		if t.JitterS < 0 {
			return NewValidationError("triggers[].jitter_s", fmt.Errorf("trigger %q: must be non-negative", t.Name))
		}
	}
	return nil
}
