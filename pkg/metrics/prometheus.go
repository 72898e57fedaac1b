// Package metrics provides Prometheus metrics for the crewscore service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds every Prometheus metric the service emits.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scoring pipeline
	interviewsScored   prometheus.Counter
	scoringFallbacks   prometheus.Counter
	decisionsByOutcome *prometheus.CounterVec
	riskFlagsRaised    *prometheus.CounterVec
	calibrationsDone   prometheus.Counter
	calibrationsSkip   prometheus.Counter
	scoringLatency     prometheus.Histogram

	// Learning loop
	learningRuns       *prometheus.CounterVec
	learningMAEOld     prometheus.Gauge
	learningMAENew     prometheus.Gauge
	learningImprove    prometheus.Gauge
	learningSkipped    prometheus.Counter
	weightActivations  prometheus.Counter
	stabilityBlocks    *prometheus.CounterVec
	activeWeightGauge  prometheus.Gauge
	unstableFeatureCnt prometheus.Gauge

	// Outcome ingestion
	outcomesEnqueued  prometheus.Counter
	outcomesStored    prometheus.Counter
	outcomesDuplicate prometheus.Counter
	outcomesDropped   *prometheus.CounterVec
	outcomeQueueDepth prometheus.Gauge
	outcomeWorkers    prometheus.Gauge
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry sets the registerer metrics attach to.
func WithRegistry(r prometheus.Registerer) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crewscore",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.interviewsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "interviews_scored_total",
		Help: "Total number of interviews run through the raw score engine",
	})
	m.scoringFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "scoring_default_weight_fallbacks_total",
		Help: "Scoring passes that used built-in default weights because no version was active",
	})
	m.decisionsByOutcome = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "decisions_total",
		Help: "Final decisions by outcome",
	}, []string{"outcome"})
	m.riskFlagsRaised = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "risk_flags_total",
		Help: "Risk flags raised by flag code",
	}, []string{"code"})
	m.calibrationsDone = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "calibrations_total",
		Help: "Raw scores calibrated against a position pool",
	})
	m.calibrationsSkip = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "calibrations_skipped_total",
		Help: "Calibrations skipped because the position pool was too small",
	})
	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "scoring_latency_milliseconds",
		Help:    "Latency of one full score-calibrate-decide pass",
		Buckets: m.histogramBuckets,
	})

	m.learningRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "learning_runs_total",
		Help: "Learning cycles by result status",
	}, []string{"status"})
	m.learningMAEOld = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "learning_mae_old",
		Help: "Mean absolute error of the previous weight set in the last run",
	})
	m.learningMAENew = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "learning_mae_new",
		Help: "Mean absolute error of the proposed weight set in the last run",
	})
	m.learningImprove = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "learning_mae_improvement_percent",
		Help: "MAE improvement of the last learning run",
	})
	m.learningSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "learning_records_skipped_total",
		Help: "Historical records skipped during batch evaluation",
	})
	m.weightActivations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "weight_activations_total",
		Help: "Weight version activations",
	})
	m.stabilityBlocks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "stability_blocks_total",
		Help: "Weight proposals blocked by the stability guard, by kind",
	}, []string{"kind"})
	m.activeWeightGauge = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "active_weight_version",
		Help: "Currently active weight version number",
	})
	m.unstableFeatureCnt = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "unstable_features",
		Help: "Features currently lacking a reliable directional signal",
	})

	m.outcomesEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "outcomes_enqueued_total",
		Help: "Outcome records accepted into the intake queue",
	})
	m.outcomesStored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "outcomes_stored_total",
		Help: "Outcome records persisted by the worker pool",
	})
	m.outcomesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "outcomes_duplicate_total",
		Help: "Duplicate outcome records rejected at ingestion",
	})
	m.outcomesDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "outcomes_dropped_total",
		Help: "Outcome records dropped, by reason",
	}, []string{"reason"})
	m.outcomeQueueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "outcome_queue_depth",
		Help: "Current depth of the outcome intake queue",
	})
	m.outcomeWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "outcome_worker_count",
		Help: "Workers draining the outcome intake queue",
	})
}

// Package-level helpers against the global manager.

func RecordInterviewScored()    { globalManager.interviewsScored.Inc() }
func RecordScoringFallback()    { globalManager.scoringFallbacks.Inc() }
func RecordCalibration()        { globalManager.calibrationsDone.Inc() }
func RecordCalibrationSkipped() { globalManager.calibrationsSkip.Inc() }

// RecordDecision counts a final decision by outcome.
func RecordDecision(outcome string) {
	globalManager.decisionsByOutcome.WithLabelValues(outcome).Inc()
}

// RecordRiskFlag counts a raised risk flag by code.
func RecordRiskFlag(code string) {
	globalManager.riskFlagsRaised.WithLabelValues(code).Inc()
}

// RecordScoringLatency observes one full pipeline pass in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordLearningRun counts a learning cycle by status.
func RecordLearningRun(status string) {
	globalManager.learningRuns.WithLabelValues(status).Inc()
}

// UpdateLearningMAE publishes the error of the last run's old and new sets.
func UpdateLearningMAE(oldMAE, newMAE, improvementPct float64) {
	globalManager.learningMAEOld.Set(oldMAE)
	globalManager.learningMAENew.Set(newMAE)
	globalManager.learningImprove.Set(improvementPct)
}

// RecordLearningSkipped counts records excluded from a batch.
func RecordLearningSkipped(n int) {
	globalManager.learningSkipped.Add(float64(n))
}

func RecordWeightActivation() { globalManager.weightActivations.Inc() }

// RecordStabilityBlock counts a guard veto by kind ("volatility" or
// "sudden_shift").
func RecordStabilityBlock(kind string) {
	globalManager.stabilityBlocks.WithLabelValues(kind).Inc()
}

// UpdateActiveWeightVersion publishes the active version number.
func UpdateActiveWeightVersion(version int64) {
	globalManager.activeWeightGauge.Set(float64(version))
}

// UpdateUnstableFeatureCount publishes the current unstable feature count.
func UpdateUnstableFeatureCount(n int) {
	globalManager.unstableFeatureCnt.Set(float64(n))
}

func RecordOutcomeEnqueued()  { globalManager.outcomesEnqueued.Inc() }
func RecordOutcomeStored()    { globalManager.outcomesStored.Inc() }
func RecordOutcomeDuplicate() { globalManager.outcomesDuplicate.Inc() }

// RecordOutcomeDropped counts a dropped outcome by reason.
func RecordOutcomeDropped(reason string) {
	globalManager.outcomesDropped.WithLabelValues(reason).Inc()
}

// UpdateOutcomeQueueDepth publishes the intake queue depth.
func UpdateOutcomeQueueDepth(depth int) {
	globalManager.outcomeQueueDepth.Set(float64(depth))
}

// UpdateOutcomeWorkerCount publishes the outcome worker count.
func UpdateOutcomeWorkerCount(count int) {
	globalManager.outcomeWorkers.Set(float64(count))
}

// GetRegistry returns the custom registry for exposition.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
