package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Decoder.Kind)) {
	case "greedy", "viterbi":
	default:
		return fmt.Errorf("decoder.kind must be greedy or viterbi, got %q", cfg.Decoder.Kind)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Decoder.Scheme)) {
	case "bio", "bioes", "bmes", "bioul":
	default:
		return fmt.Errorf("decoder.scheme must be bio or bioes, got %q", cfg.Decoder.Scheme)
	}

	if len(cfg.Decoder.Labels) == 0 && strings.TrimSpace(cfg.Decoder.LabelsPath) == "" {
		return errors.New("decoder needs labels or labels_path")
	}
	if len(cfg.Decoder.Labels) > 0 && strings.TrimSpace(cfg.Decoder.LabelsPath) != "" {
		return errors.New("decoder.labels and decoder.labels_path are mutually exclusive")
	}

	if cfg.Model.Path != "" {
		if cfg.Model.MaxLength <= 0 {
			return errors.New("model.max_length must be positive")
		}
		if cfg.Model.PoolSize <= 0 {
			return errors.New("model.pool_size must be positive")
		}
	}

	return nil
}
