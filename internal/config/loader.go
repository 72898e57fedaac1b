package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CREWSCORE_CONFIG is set
//  3. env (prefix CREWSCORE_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CREWSCORE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: CREWSCORE_HIRE_THRESHOLD -> hire_threshold.
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("CREWSCORE_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "crewscore_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var sum float64
	for _, w := range c.TemplateWeights {
		sum += w
	}
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("%w: template weights sum to %.4f, want 1.0", ErrInvalidConfig, sum)
	}
	if c.HireThreshold <= c.HoldLower {
		return fmt.Errorf("%w: hire threshold %.1f must exceed hold lower bound %.1f",
			ErrInvalidConfig, c.HireThreshold, c.HoldLower)
	}
	if c.VolatilityRatio <= 0 {
		return fmt.Errorf("%w: volatility ratio must be positive", ErrInvalidConfig)
	}
	if c.BalanceThreshold <= 0 || c.BalanceThreshold >= 1 {
		return fmt.Errorf("%w: balance threshold must be in (0,1)", ErrInvalidConfig)
	}
	switch c.WeightStore {
	case "memory", "badger":
	default:
		return fmt.Errorf("%w: unknown weight store %q", ErrInvalidConfig, c.WeightStore)
	}
	if c.WeightStore == "badger" && c.BadgerPath == "" {
		return fmt.Errorf("%w: badger weight store requires badger_path", ErrInvalidConfig)
	}
	return nil
}
