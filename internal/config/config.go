// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the Prometheus exposition listener, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// TemplateWeights maps competency codes to template weights.
	// Weights must sum to 1.0.
	TemplateWeights map[string]float64 `koanf:"template_weights"`

	// RoleCompetencyCode names the dimension the skill gate checks.
	RoleCompetencyCode string `koanf:"role_competency_code"`

	// MissingFraction is the missing-dimension fraction beyond which the
	// incomplete_interview meta penalty applies.
	MissingFraction float64 `koanf:"missing_fraction"`

	// SparseMinWords and SparseFraction tune sparse-answer detection.
	SparseMinWords int     `koanf:"sparse_min_words"`
	SparseFraction float64 `koanf:"sparse_fraction"`

	// LanguageMinimum is the language score needed for the language boost.
	LanguageMinimum float64 `koanf:"language_minimum"`

	// CalibrationMinPool is the smallest position pool calibration runs on.
	CalibrationMinPool int `koanf:"calibration_min_pool"`

	// HireThreshold and HoldLower define the decision bands on the
	// calibrated score.
	HireThreshold float64 `koanf:"hire_threshold"`
	HoldLower     float64 `koanf:"hold_lower"`

	// OutcomeQueueSize bounds the outcome intake queue.
	OutcomeQueueSize int `koanf:"outcome_queue_size"`

	// OutcomeWorkerCount sets the number of ingestion workers.
	OutcomeWorkerCount int `koanf:"outcome_worker_count"`

	// DedupeSize bounds the outcome idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// LearningLookbackDays is the default learning window.
	LearningLookbackDays int `koanf:"learning_lookback_days"`

	// LearningIntervalMinutes schedules the background learning cycle;
	// zero disables the scheduler.
	LearningIntervalMinutes int `koanf:"learning_interval_minutes"`

	// LearningMaxRunSeconds bounds one learning run so a stuck run cannot
	// hold the cycle lock forever.
	LearningMaxRunSeconds int `koanf:"learning_max_run_seconds"`

	// LearningMinSamples is the minimum joined sample count per cycle.
	LearningMinSamples int `koanf:"learning_min_samples"`

	// LearningMinObservations is how often a flag or channel must appear
	// before its weight moves.
	LearningMinObservations int `koanf:"learning_min_observations"`

	// AutoActivate promotes and activates improved weight versions without
	// operator action. Off by default: proposals stop at candidate.
	AutoActivate bool `koanf:"auto_activate"`

	// VolatilityRatio caps a single weight's per-batch movement relative
	// to the mean absolute weight.
	VolatilityRatio float64 `koanf:"volatility_ratio"`

	// BalanceThreshold and StabilityMinSamples tune the unstable-feature
	// detector.
	BalanceThreshold    float64 `koanf:"balance_threshold"`
	StabilityMinSamples int     `koanf:"stability_min_samples"`

	// WeightStore selects the backing store: "memory" or "badger".
	WeightStore string `koanf:"weight_store"`

	// BadgerPath is the on-disk location for the badger weight store.
	BadgerPath string `koanf:"badger_path"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		MetricsAddr: ":9090",
		TemplateWeights: map[string]float64{
			"communication":   0.20,
			"technical":       0.25,
			"problem_solving": 0.15,
			"teamwork":        0.15,
			"safety":          0.10,
			"role_competence": 0.15,
		},
		RoleCompetencyCode:      "role_competence",
		MissingFraction:         0.25,
		SparseMinWords:          5,
		SparseFraction:          0.5,
		LanguageMinimum:         75,
		CalibrationMinPool:      10,
		HireThreshold:           50,
		HoldLower:               35,
		OutcomeQueueSize:        10_000,
		OutcomeWorkerCount:      4,
		DedupeSize:              50_000,
		LearningLookbackDays:    30,
		LearningIntervalMinutes: 24 * 60,
		LearningMaxRunSeconds:   600,
		LearningMinSamples:      30,
		LearningMinObservations: 5,
		AutoActivate:            false,
		VolatilityRatio:         0.20,
		BalanceThreshold:        0.30,
		StabilityMinSamples:     10,
		WeightStore:             "memory",
		BadgerPath:              "data/weights",
	}
}
