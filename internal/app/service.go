// Package service wires the scoring pipeline, the outcome intake and the
// learning loop behind one facade.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/crewscore/internal/adapters/mq/queue"
	"github.com/okian/crewscore/internal/adapters/mq/worker"
	"github.com/okian/crewscore/internal/adapters/repository"
	"github.com/okian/crewscore/internal/config"
	"github.com/okian/crewscore/internal/domain/calibration"
	"github.com/okian/crewscore/internal/domain/dedupe"
	"github.com/okian/crewscore/internal/domain/learning"
	"github.com/okian/crewscore/internal/domain/model"
	"github.com/okian/crewscore/internal/domain/policy"
	"github.com/okian/crewscore/internal/domain/riskflag"
	"github.com/okian/crewscore/internal/domain/scoring"
	"github.com/okian/crewscore/internal/domain/stability"
	"github.com/okian/crewscore/pkg/logger"
	"github.com/okian/crewscore/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize   = 10_000
	defaultWorkerCount = 4
	defaultDedupeSize  = 50_000
	defaultMaxRunTime  = 10 * time.Minute
	defaultLookback    = 30 // days
	hoursPerDay        = 24
)

// Assessment bundles the full synchronous pipeline output for one candidate.
type Assessment struct {
	Scored      model.ScoredInterview
	Calibration model.CalibrationResult
	Decision    model.Decision
}

// CycleReport describes one learning cycle, including what a dry run would
// have changed.
type CycleReport struct {
	RunID            string
	Status           string // "proposed", "no_improvement", "insufficient_samples", "blocked_volatility", "blocked_sudden_shift"
	DryRun           bool
	ProcessedCount   int
	ErrorsCount      int
	Skipped          []learning.SkippedRecord
	Deltas           map[string]float64
	OldMAE           float64
	NewMAE           float64
	ImprovementPct   float64
	NewWeightVersion int64 // zero when nothing was persisted
}

// Cycle statuses.
const (
	CycleProposed            = "proposed"
	CycleNoImprovement       = "no_improvement"
	CycleInsufficientSamples = "insufficient_samples"
	CycleBlockedVolatility   = "blocked_volatility"
	CycleBlockedSuddenShift  = "blocked_sudden_shift"
)

// Service implements the candidate screening core.
type Service struct {
	mu sync.RWMutex

	// Stores
	interviews repository.InterviewStore
	weights    repository.WeightStore
	outcomes   repository.OutcomeStore
	events     repository.LearningEventStore
	importance repository.ImportanceStore

	// Domain components
	engine     *scoring.Engine
	calibrator *calibration.Calibrator
	decider    *policy.Policy
	tuner      *learning.Tuner
	guard      *stability.Guard

	// Outcome intake
	outcomeQueue *queue.InMemoryQueue
	workerPool   *worker.Pool
	deduper      dedupe.Deduper

	// Learning run exclusivity and bounds
	learningMu   sync.Mutex
	maxRunTime   time.Duration
	lookbackDays int
	autoActivate bool

	// Stability counters for the health report
	volatilityBlocks  atomic.Int64
	suddenShiftBlocks atomic.Int64

	// Configuration applied at Start
	queueSize   int
	workerCount int
	dedupeSize  int
	engineOpts  []scoring.Option
	calOpts     []calibration.Option
	policyOpts  []policy.Option
	tunerOpts   []learning.Option
	guardOpts   []stability.Option

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWeightStore overrides the default in-memory weight store, e.g. with
// the badger-backed one.
func WithWeightStore(ws repository.WeightStore) Option {
	return func(s *Service) {
		if ws != nil {
			s.weights = ws
		}
	}
}

// WithQueueSize bounds the outcome intake queue.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithWorkerCount sets the number of outcome ingestion workers.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithDedupeSize bounds the outcome idempotency cache.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.dedupeSize = n
		}
	}
}

// WithMaxRunTime bounds one learning run so a stuck run cannot hold the
// cycle lock indefinitely.
func WithMaxRunTime(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxRunTime = d
		}
	}
}

// WithLookbackDays sets the default learning window.
func WithLookbackDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.lookbackDays = days
		}
	}
}

// WithAutoActivate lets improved, guard-approved weight versions go live
// without operator action.
func WithAutoActivate(enabled bool) Option {
	return func(s *Service) {
		s.autoActivate = enabled
	}
}

// WithEngineOptions forwards options to the scoring engine.
func WithEngineOptions(opts ...scoring.Option) Option {
	return func(s *Service) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithCalibrationOptions forwards options to the calibrator.
func WithCalibrationOptions(opts ...calibration.Option) Option {
	return func(s *Service) { s.calOpts = append(s.calOpts, opts...) }
}

// WithPolicyOptions forwards options to the decision policy.
func WithPolicyOptions(opts ...policy.Option) Option {
	return func(s *Service) { s.policyOpts = append(s.policyOpts, opts...) }
}

// WithTunerOptions forwards options to the tuner.
func WithTunerOptions(opts ...learning.Option) Option {
	return func(s *Service) { s.tunerOpts = append(s.tunerOpts, opts...) }
}

// WithGuardOptions forwards options to the stability guard.
func WithGuardOptions(opts ...stability.Option) Option {
	return func(s *Service) { s.guardOpts = append(s.guardOpts, opts...) }
}

// FromConfig expands a loaded Config into the matching options.
func FromConfig(cfg *config.Config) Option {
	return func(s *Service) {
		WithQueueSize(cfg.OutcomeQueueSize)(s)
		WithWorkerCount(cfg.OutcomeWorkerCount)(s)
		WithDedupeSize(cfg.DedupeSize)(s)
		WithLookbackDays(cfg.LearningLookbackDays)(s)
		WithMaxRunTime(time.Duration(cfg.LearningMaxRunSeconds) * time.Second)(s)
		WithAutoActivate(cfg.AutoActivate)(s)
		WithEngineOptions(
			scoring.WithTemplateWeights(cfg.TemplateWeights),
			scoring.WithRoleCompetencyCode(cfg.RoleCompetencyCode),
			scoring.WithMissingFraction(cfg.MissingFraction),
			scoring.WithSparseHeuristic(cfg.SparseMinWords, cfg.SparseFraction),
			scoring.WithLanguageMinimum(cfg.LanguageMinimum),
		)(s)
		WithCalibrationOptions(calibration.WithMinPoolSize(cfg.CalibrationMinPool))(s)
		WithPolicyOptions(policy.WithThresholds(cfg.HireThreshold, cfg.HoldLower))(s)
		WithTunerOptions(
			learning.WithMinSamples(cfg.LearningMinSamples),
			learning.WithMinObservations(cfg.LearningMinObservations),
		)(s)
		WithGuardOptions(
			stability.WithVolatilityRatio(cfg.VolatilityRatio),
			stability.WithBalanceThreshold(cfg.BalanceThreshold),
			stability.WithMinSamples(cfg.StabilityMinSamples),
		)(s)
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:    defaultQueueSize,
		workerCount:  defaultWorkerCount,
		dedupeSize:   defaultDedupeSize,
		maxRunTime:   defaultMaxRunTime,
		lookbackDays: defaultLookback,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("crewscore")
	}

	s.interviews = repository.NewMemoryInterviewStore()
	if s.weights == nil {
		s.weights = repository.NewMemoryWeightStore()
	}
	s.outcomes = repository.NewMemoryOutcomeStore()
	s.events = repository.NewMemoryLearningEventStore()
	s.importance = repository.NewMemoryImportanceStore()

	s.engine = scoring.NewEngine(append([]scoring.Option{
		scoring.WithDetector(riskflag.NewCatalogDetector()),
	}, s.engineOpts...)...)
	s.calibrator = calibration.NewCalibrator(s.calOpts...)
	s.decider = policy.NewPolicy(s.policyOpts...)
	s.tuner = learning.NewTuner(s.tunerOpts...)
	s.guard = stability.NewGuard(s.guardOpts...)

	s.deduper = dedupe.NewDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.outcomeQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.workerPool = worker.NewPool(s.workerCount, s.outcomeQueue, s.outcomes)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "crewscore service started",
		logger.Int("outcomeWorkers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Bool("autoActivate", s.autoActivate),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(ctx, "stopping crewscore service...")

	_ = s.outcomeQueue.Close()
	if s.workerPool != nil {
		if err := s.workerPool.Stop(ctx); err != nil {
			s.logger.Warn(ctx, "outcome workers did not stop cleanly", logger.Error(err))
		}
	}
	if closer, ok := s.weights.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "crewscore service stopped")
}

// activeWeights resolves the active weight set, falling back to built-in
// defaults so a scoring request never fails for lack of weights. The
// returned version is zero and usedDefaults true on fallback.
func (s *Service) activeWeights(ctx context.Context) (model.WeightSet, int64, bool) {
	mw, err := s.weights.Active(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNoActiveVersion) {
			s.logger.Error(ctx, "active weight lookup failed, using defaults", logger.Error(err))
		}
		metrics.RecordScoringFallback()
		return model.DefaultWeightSet(), 0, true
	}
	return mw.Weights, mw.Version, false
}

// Score runs the raw score engine for a completed interview and stores the
// result. Re-scoring before a decision exists is idempotent.
func (s *Service) Score(ctx context.Context, iv model.Interview) (model.ScoredInterview, error) {
	ws, version, usedDefaults := s.activeWeights(ctx)

	si, err := s.engine.Score(ctx, iv, ws)
	if err != nil {
		return model.ScoredInterview{}, fmt.Errorf("score interview %s: %w", iv.InterviewID, err)
	}
	si.ModelVersion = version
	si.UsedDefaults = usedDefaults

	if err := s.interviews.SaveScored(ctx, si); err != nil {
		return model.ScoredInterview{}, fmt.Errorf("save scored interview %s: %w", iv.InterviewID, err)
	}

	metrics.RecordInterviewScored()
	for _, f := range si.RiskFlags {
		metrics.RecordRiskFlag(f.Code)
	}
	return si, nil
}

// Calibrate normalizes a raw score against the position's historical pool.
func (s *Service) Calibrate(ctx context.Context, positionCode string, raw float64) (model.CalibrationResult, error) {
	pool, err := s.interviews.PositionPool(ctx, positionCode)
	if err != nil {
		return model.CalibrationResult{}, fmt.Errorf("position pool %s: %w", positionCode, err)
	}
	return s.calibrateAgainst(ctx, raw, pool), nil
}

func (s *Service) calibrateAgainst(ctx context.Context, raw float64, pool []float64) model.CalibrationResult {
	cal := s.calibrator.Calibrate(ctx, raw, pool)
	if cal.CalibrationVersion == calibration.VersionNone {
		metrics.RecordCalibrationSkipped()
	} else {
		metrics.RecordCalibration()
	}
	return cal
}

// Decide maps a calibrated score plus risk signals to a final decision.
// It does not persist; ScoreAndDecide does.
func (s *Service) Decide(ctx context.Context, interviewID string, calibrated float64, gate model.SkillGate, flags []model.RiskFlag) model.Decision {
	d := s.decider.Decide(ctx, interviewID, calibrated, gate, flags)
	metrics.RecordDecision(string(d.Outcome))
	return d
}

// ScoreAndDecide runs the full synchronous pipeline and records the
// decision. A second call for the same interview fails with
// ErrDecisionExists; corrections go through Redecide.
func (s *Service) ScoreAndDecide(ctx context.Context, iv model.Interview) (Assessment, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	}()

	// The pool snapshot precedes Score's save, so the candidate is
	// calibrated against the historical population only.
	pool, err := s.interviews.PositionPool(ctx, iv.PositionCode)
	if err != nil {
		return Assessment{}, fmt.Errorf("position pool %s: %w", iv.PositionCode, err)
	}

	si, err := s.Score(ctx, iv)
	if err != nil {
		return Assessment{}, err
	}

	cal := s.calibrateAgainst(ctx, si.RawFinalScore, pool)

	d := s.Decide(ctx, si.InterviewID, cal.CalibratedScore, si.SkillGate, si.RiskFlags)

	// Record the calibrated base (score minus tunable adjustments) so the
	// learning loop can re-predict under candidate weight sets.
	ws, _, _ := s.activeWeights(ctx)
	si.CalibratedBase = calibratedBase(cal.CalibratedScore, si, ws)
	if err := s.interviews.SaveScored(ctx, si); err != nil {
		return Assessment{}, fmt.Errorf("save calibrated base for %s: %w", si.InterviewID, err)
	}

	if err := s.interviews.SaveDecision(ctx, d); err != nil {
		return Assessment{}, fmt.Errorf("save decision for %s: %w", si.InterviewID, err)
	}

	return Assessment{Scored: si, Calibration: cal, Decision: d}, nil
}

// calibratedBase strips the tunable penalties and boosts back out of the
// calibrated score.
func calibratedBase(calibrated float64, si model.ScoredInterview, ws model.WeightSet) float64 {
	base := calibrated
	for _, f := range si.RiskFlags {
		base -= f.Penalty
	}
	for _, kind := range si.MetaFlags {
		base -= ws.MetaPenalties[kind]
	}
	if b, ok := ws.SourceBoosts[si.SourceChannel]; ok {
		base -= b
	}
	return math.Max(0, math.Min(100, base))
}

// Redecide appends an explicit correction to an interview's decision
// history. The original decision stays on record.
func (s *Service) Redecide(ctx context.Context, d model.Decision) error {
	if err := s.interviews.RecordRedecision(ctx, d); err != nil {
		return fmt.Errorf("record redecision for %s: %w", d.InterviewID, err)
	}
	metrics.RecordDecision(string(d.Outcome))
	return nil
}

// IngestOutcome accepts one ground-truth outcome for later learning runs.
// Ingestion is idempotent on the outcome id; duplicates report true
// without being enqueued again.
func (s *Service) IngestOutcome(ctx context.Context, o model.InterviewOutcome) bool {
	id := o.OutcomeID
	if id == "" {
		id = o.InterviewID + "@" + o.OutcomeSource
	}
	if s.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordOutcomeDuplicate()
		return true
	}
	if !s.outcomeQueue.Enqueue(ctx, o) {
		// Let the caller retry: the id was never stored.
		s.deduper.Unrecord(ctx, id)
		return false
	}
	return true
}

// ActivateWeightVersion flips the active pointer to the given version.
// Frozen versions always fail with repository.ErrVersionFrozen and leave
// the active pointer untouched.
func (s *Service) ActivateWeightVersion(ctx context.Context, version int64) error {
	if err := s.weights.Activate(ctx, version); err != nil {
		return fmt.Errorf("activate weight version %d: %w", version, err)
	}
	metrics.UpdateActiveWeightVersion(version)
	s.logger.Info(ctx, "weight version activated", logger.Int64("version", version))
	return nil
}

// FreezeWeightVersion permanently excludes a version from activation,
// e.g. pending human review after an anomaly.
func (s *Service) FreezeWeightVersion(ctx context.Context, version int64, notes string) error {
	if err := s.weights.Freeze(ctx, version, notes); err != nil {
		return fmt.Errorf("freeze weight version %d: %w", version, err)
	}
	s.logger.Warn(ctx, "weight version frozen",
		logger.Int64("version", version),
		logger.String("notes", notes),
	)
	return nil
}

// WeightHistory returns every weight version, oldest first.
func (s *Service) WeightHistory(ctx context.Context) ([]model.ModelWeight, error) {
	return s.weights.List(ctx)
}

// LearningEvents returns the audit rows one learning run appended, in
// append order.
func (s *Service) LearningEvents(ctx context.Context, runID string) ([]model.LearningEvent, error) {
	return s.events.ByRun(ctx, runID)
}

// RunLearningCycle batch-processes historical outcomes within the lookback
// window and, when the proposal improves MAE and clears the stability
// guard, persists a new weight version. Runs are mutually exclusive; a
// second concurrent call fails with ErrLearningInProgress. With dryRun the
// report shows what would change and nothing is persisted.
func (s *Service) RunLearningCycle(ctx context.Context, windowDays int, industryFilter string, dryRun bool) (CycleReport, error) {
	if !s.learningMu.TryLock() {
		return CycleReport{}, ErrLearningInProgress
	}
	defer s.learningMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.maxRunTime)
	defer cancel()

	if windowDays <= 0 {
		windowDays = s.lookbackDays
	}
	report := CycleReport{RunID: uuid.New().String(), DryRun: dryRun}

	samples, skipped, err := s.collectSamples(ctx, windowDays, industryFilter)
	if err != nil {
		return report, err
	}
	report.Skipped = skipped
	report.ProcessedCount = len(samples)
	report.ErrorsCount = len(skipped)

	prev, prevVersion, _ := s.activeWeights(ctx)

	proposal, err := s.tuner.Tune(ctx, prev, samples)
	report.Skipped = append(report.Skipped, proposal.Skipped...)
	report.ErrorsCount = len(report.Skipped)
	if err != nil {
		if errors.Is(err, learning.ErrInsufficientSamples) {
			report.Status = CycleInsufficientSamples
			metrics.RecordLearningRun(report.Status)
			s.logger.Info(ctx, "learning cycle skipped",
				logger.String("runID", report.RunID),
				logger.Int("samples", proposal.SampleCount),
			)
			return report, nil
		}
		metrics.RecordLearningRun("error")
		return report, fmt.Errorf("tuning failed: %w", err)
	}

	report.Deltas = proposal.Deltas
	report.OldMAE = proposal.OldMAE
	report.NewMAE = proposal.NewMAE
	report.ImprovementPct = proposal.ImprovementPct
	metrics.UpdateLearningMAE(proposal.OldMAE, proposal.NewMAE, proposal.ImprovementPct)
	metrics.RecordLearningSkipped(len(report.Skipped))

	increments := s.tuner.AccumulateImportance(samples, proposal.Weights)
	unstable := s.guard.UnstableFeatures(s.mergedImportance(ctx, increments, dryRun))
	metrics.UpdateUnstableFeatureCount(len(unstable))

	switch {
	case !proposal.Improved:
		// Expected outcome, not an error: the active version stays.
		report.Status = CycleNoImprovement
	case !s.guard.Check(prev, proposal.Weights).OK:
		report.Status = CycleBlockedVolatility
		s.volatilityBlocks.Add(1)
		metrics.RecordStabilityBlock("volatility")
	case touchesUnstable(proposal.Deltas, unstable):
		report.Status = CycleBlockedSuddenShift
		s.suddenShiftBlocks.Add(1)
		metrics.RecordStabilityBlock("sudden_shift")
	default:
		report.Status = CycleProposed
	}

	if !dryRun {
		s.appendEvents(ctx, report.RunID, samples, skipped, report.Status, proposal)
		if report.Status == CycleProposed {
			version, err := s.persistProposal(ctx, proposal, prevVersion)
			if err != nil {
				metrics.RecordLearningRun("error")
				return report, err
			}
			report.NewWeightVersion = version
		}
	}

	metrics.RecordLearningRun(report.Status)
	s.logger.Info(ctx, "learning cycle finished",
		logger.String("runID", report.RunID),
		logger.String("status", report.Status),
		logger.Int("samples", report.ProcessedCount),
		logger.Float64("improvementPct", report.ImprovementPct),
		logger.Int64("newVersion", report.NewWeightVersion),
		logger.Bool("dryRun", dryRun),
	)
	return report, nil
}

// collectSamples joins outcomes in the window with their scored interviews
// and decisions. Rows that cannot be joined are skipped with a reason, not
// fatal.
func (s *Service) collectSamples(ctx context.Context, windowDays int, industryFilter string) ([]model.OutcomeSample, []learning.SkippedRecord, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(windowDays) * hoursPerDay * time.Hour)
	outcomes, err := s.outcomes.Since(ctx, cutoff)
	if err != nil {
		return nil, nil, fmt.Errorf("load outcomes: %w", err)
	}

	var samples []model.OutcomeSample
	var skipped []learning.SkippedRecord
	for _, o := range outcomes {
		si, err := s.interviews.GetScored(ctx, o.InterviewID)
		if err != nil {
			skipped = append(skipped, learning.SkippedRecord{InterviewID: o.InterviewID, Reason: "no scored interview"})
			continue
		}
		if industryFilter != "" && si.IndustryCode != industryFilter {
			continue
		}
		decisions, err := s.interviews.Decisions(ctx, o.InterviewID)
		if err != nil || len(decisions) == 0 {
			skipped = append(skipped, learning.SkippedRecord{InterviewID: o.InterviewID, Reason: "no decision on record"})
			continue
		}
		latest := decisions[len(decisions)-1]
		samples = append(samples, model.OutcomeSample{
			InterviewID:    o.InterviewID,
			BaseScore:      si.CalibratedBase,
			PredictedScore: latest.FinalScore,
			ActualScore:    o.OutcomeScore,
			RiskFlagCodes:  flagCodes(si.RiskFlags),
			MetaFlagCodes:  si.MetaFlags,
			SourceChannel:  si.SourceChannel,
			IndustryCode:   si.IndustryCode,
			RecordedAt:     o.RecordedAt,
		})
	}
	return samples, skipped, nil
}

// mergedImportance folds the run's increments into the store (unless dry
// run) and returns the up-to-date rows for the unstable-feature check.
func (s *Service) mergedImportance(ctx context.Context, increments []model.FeatureImportance, dryRun bool) []model.FeatureImportance {
	if !dryRun {
		if err := s.importance.Merge(ctx, increments); err != nil {
			s.logger.Error(ctx, "feature importance merge failed", logger.Error(err))
		}
	}
	rows, err := s.importance.All(ctx)
	if err != nil {
		s.logger.Error(ctx, "feature importance read failed", logger.Error(err))
		return increments
	}
	if dryRun {
		// Evaluate against stored rows plus this run's would-be increments.
		rows = append(rows, increments...)
	}
	return rows
}

// appendEvents writes the audit trail of one learning run.
func (s *Service) appendEvents(ctx context.Context, runID string, samples []model.OutcomeSample, skipped []learning.SkippedRecord, status string, proposal learning.Proposal) {
	eventStatus := model.LearningProcessed
	if status != CycleProposed {
		eventStatus = model.LearningProcessedNoChange
	}
	now := time.Now().UTC()
	for _, sample := range samples {
		predicted := s.tuner.Predict(proposal.Weights, sample)
		e := model.LearningEvent{
			ID:             uuid.New().String(),
			RunID:          runID,
			InterviewID:    sample.InterviewID,
			PredictedScore: predicted,
			ActualScore:    sample.ActualScore,
			Error:          sample.ActualScore - predicted,
			IndustryCode:   sample.IndustryCode,
			Status:         eventStatus,
			CreatedAt:      now,
		}
		if err := s.events.Append(ctx, e); err != nil {
			s.logger.Error(ctx, "learning event append failed", logger.Error(err))
		}
	}
	for _, sk := range skipped {
		e := model.LearningEvent{
			ID:          uuid.New().String(),
			RunID:       runID,
			InterviewID: sk.InterviewID,
			Status:      model.LearningSkipped,
			CreatedAt:   now,
		}
		if err := s.events.Append(ctx, e); err != nil {
			s.logger.Error(ctx, "learning event append failed", logger.Error(err))
		}
	}
}

// persistProposal stores the improved weight set as a draft, promotes it to
// candidate, and optionally activates it.
func (s *Service) persistProposal(ctx context.Context, proposal learning.Proposal, prevVersion int64) (int64, error) {
	notes := fmt.Sprintf("tuned from version %d: MAE %.3f -> %.3f (%+.1f%%), %d samples",
		prevVersion, proposal.OldMAE, proposal.NewMAE, proposal.ImprovementPct, proposal.SampleCount)
	mw, err := s.weights.Create(ctx, proposal.Weights, notes)
	if err != nil {
		return 0, fmt.Errorf("create weight version: %w", err)
	}
	if err := s.weights.Promote(ctx, mw.Version); err != nil {
		return 0, fmt.Errorf("promote weight version %d: %w", mw.Version, err)
	}
	if s.autoActivate {
		if err := s.ActivateWeightVersion(ctx, mw.Version); err != nil {
			return mw.Version, err
		}
	}
	return mw.Version, nil
}

// StabilityReport returns the guard's health snapshot.
func (s *Service) StabilityReport(ctx context.Context) (stability.Report, error) {
	rows, err := s.importance.All(ctx)
	if err != nil {
		return stability.Report{}, fmt.Errorf("feature importance read: %w", err)
	}
	report := stability.Report{
		VolatilityBlocks:  s.volatilityBlocks.Load(),
		SuddenShiftBlocks: s.suddenShiftBlocks.Load(),
		UnstableFeatures:  s.guard.UnstableFeatures(rows),
	}

	mw, err := s.weights.Active(ctx)
	switch {
	case err == nil:
		report.ActiveVersion = mw.Version
		report.IsFrozen = mw.IsFrozen
	case errors.Is(err, repository.ErrNoActiveVersion):
		// No active version yet; scoring runs on defaults.
	default:
		return stability.Report{}, err
	}
	return report, nil
}

// OutcomeBacklog returns the current intake queue depth.
func (s *Service) OutcomeBacklog(ctx context.Context) int {
	return s.outcomeQueue.Len(ctx)
}

// touchesUnstable reports whether any proposed delta moves a feature the
// guard considers directionally unreliable.
func touchesUnstable(deltas map[string]float64, unstable []string) bool {
	for _, feature := range unstable {
		if _, ok := deltas[feature]; ok {
			return true
		}
	}
	return false
}

func flagCodes(flags []model.RiskFlag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = f.Code
	}
	return out
}
