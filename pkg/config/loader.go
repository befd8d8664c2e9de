package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// userYAML is the shape of milton.yaml on disk. Sections are pointers so an
// absent section leaves its defaults untouched; within a section,
// mergo.WithOverride copies only non-zero values, so a field set explicitly
// to zero keeps its default.
type userYAML struct {
	System    *SystemConfig    `yaml:"system"`
	Selector  *SelectorConfig  `yaml:"selector"`
	Queue     *QueueConfig     `yaml:"queue"`
	Retention *RetentionConfig `yaml:"retention"`
	Inference *InferenceConfig `yaml:"inference"`
	Triggers  []TriggerConfig  `yaml:"triggers"`
	Notify    *NotifyConfig    `yaml:"notify"`
	Briefing  *BriefingConfig  `yaml:"briefing"`
}

// Initialize loads milton.yaml from configDir, merges it over the built-in
// defaults, validates the result, and returns ready-to-use configuration.
// A missing milton.yaml is not an error: the built-in defaults apply as-is,
// the way tarsy's Initialize tolerates an absent user file for any
// individually-optional YAML document.
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg := Defaults()

	path := filepath.Join(configDir, "milton.yaml")
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		log.Info("no milton.yaml found, using built-in defaults")
	case err != nil:
		return nil, NewLoadError(path, err)
	default:
		expanded := ExpandEnv(raw)
		var user userYAML
		if err := yaml.Unmarshal(expanded, &user); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := mergeUser(cfg, &user); err != nil {
			return nil, NewLoadError(path, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	log.Info("configuration initialized",
		"triggers", len(cfg.Triggers),
		"state_dir", cfg.System.StateDir)
	return cfg, nil
}

func mergeUser(cfg *Config, user *userYAML) error {
	if user.System != nil {
		if err := mergo.Merge(&cfg.System, user.System, mergo.WithOverride); err != nil {
			return err
		}
	}
	if user.Selector != nil {
		if err := mergo.Merge(&cfg.Selector, user.Selector, mergo.WithOverride); err != nil {
			return err
		}
	}
	if user.Queue != nil {
		if err := mergo.Merge(&cfg.Queue, user.Queue, mergo.WithOverride); err != nil {
			return err
		}
	}
	if user.Retention != nil {
		if err := mergo.Merge(&cfg.Retention, user.Retention, mergo.WithOverride); err != nil {
			return err
		}
	}
	if user.Inference != nil {
		if err := mergo.Merge(&cfg.Inference, user.Inference, mergo.WithOverride); err != nil {
			return err
		}
	}
	if len(user.Triggers) > 0 {
		cfg.Triggers = user.Triggers
	}
	if user.Notify != nil {
		cfg.Notify = *user.Notify
	}
	if user.Briefing != nil {
		if err := mergo.Merge(&cfg.Briefing, user.Briefing, mergo.WithOverride); err != nil {
			return err
		}
	}
	return nil
}
