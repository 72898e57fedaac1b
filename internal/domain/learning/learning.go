// Package learning derives adjusted scoring weights from observed outcomes.
//
// The tuner is correlation-based: for every risk flag, meta penalty and
// source channel seen often enough in the sample it compares the mean
// outcome of affected interviews against the population mean, scales the
// gap into a weight delta, and accepts the candidate weight set only when
// it lowers the mean absolute error against the same sample.
package learning

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/okian/crewscore/internal/domain/model"
)

// Tuning constants. The scale factors and clamp bounds are empirically
// chosen values carried over unchanged; see DESIGN.md before re-tuning.
const (
	defaultMinSamples      = 30
	defaultMinObservations = 5

	flagPenaltyScale = 5
	flagPenaltyMin   = -20
	flagPenaltyMax   = -1

	sparsePenaltyMin     = -15
	sparsePenaltyMax     = -1
	incompletePenaltyMin = -20
	incompletePenaltyMax = -1

	boostCorrelationGate = 0.1
	boostScale           = 10
	boostCap             = 5

	maxScore = 100
)

// Option applies a configuration option to the Tuner.
type Option func(*Tuner)

// WithMinSamples sets the minimum joined sample count for a tuning run.
func WithMinSamples(n int) Option {
	return func(t *Tuner) {
		if n > 0 {
			t.minSamples = n
		}
	}
}

// WithMinObservations sets how often a flag or channel must appear before
// its weight is adjusted.
func WithMinObservations(n int) Option {
	return func(t *Tuner) {
		if n > 0 {
			t.minObservations = n
		}
	}
}

// SkippedRecord identifies one historical row excluded from a batch and why.
type SkippedRecord struct {
	InterviewID string
	Reason      string
}

// Proposal is the result of one tuning pass.
type Proposal struct {
	Weights        model.WeightSet
	Deltas         map[string]float64 // feature -> new minus previous value
	OldMAE         float64
	NewMAE         float64
	ImprovementPct float64
	SampleCount    int
	Skipped        []SkippedRecord
	Improved       bool
}

// Tuner derives weight proposals from (prediction, outcome) samples.
type Tuner struct {
	minSamples      int
	minObservations int
}

// NewTuner creates a tuner with configuration options.
func NewTuner(opts ...Option) *Tuner {
	t := &Tuner{
		minSamples:      defaultMinSamples,
		minObservations: defaultMinObservations,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Tune computes a candidate weight set from prev and the sample batch.
// Insufficient samples return ErrInsufficientSamples; that is a normal
// early exit, not a failure. The returned proposal reports whether the
// candidate actually improved MAE; callers must not persist otherwise.
func (t *Tuner) Tune(ctx context.Context, prev model.WeightSet, samples []model.OutcomeSample) (Proposal, error) {
	select {
	case <-ctx.Done():
		return Proposal{}, fmt.Errorf("tuning cancelled: %w", ctx.Err())
	default:
	}

	valid, skipped := splitValid(samples)
	if len(valid) < t.minSamples {
		return Proposal{SampleCount: len(valid), Skipped: skipped},
			fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(valid), t.minSamples)
	}

	overallMean := meanActual(valid)
	next := prev.Clone()

	t.tuneRiskFlags(&next, valid, overallMean)
	t.tuneMetaPenalties(&next, valid, overallMean)
	t.tuneSourceBoosts(&next, valid, overallMean)

	oldMAE, oldSkipped := t.evaluateMAE(prev, valid)
	newMAE, newSkipped := t.evaluateMAE(next, valid)
	skipped = append(skipped, oldSkipped...)
	skipped = append(skipped, newSkipped...)

	improvement := (oldMAE - newMAE) / math.Max(1, oldMAE) * 100

	return Proposal{
		Weights:        next,
		Deltas:         deltas(prev, next),
		OldMAE:         oldMAE,
		NewMAE:         newMAE,
		ImprovementPct: improvement,
		SampleCount:    len(valid),
		Skipped:        skipped,
		Improved:       improvement > 0,
	}, nil
}

// tuneRiskFlags re-derives the penalty for every flag code observed often
// enough. The correlation proxy is the normalized gap between the mean
// outcome of flagged interviews and the population mean; flags that track
// worse outcomes get a more negative penalty.
func (t *Tuner) tuneRiskFlags(next *model.WeightSet, samples []model.OutcomeSample, overallMean float64) {
	byFlag := make(map[string][]float64)
	for _, s := range samples {
		for _, code := range s.RiskFlagCodes {
			byFlag[code] = append(byFlag[code], s.ActualScore)
		}
	}
	for code, scores := range byFlag {
		if len(scores) < t.minObservations {
			continue
		}
		corr := correlationProxy(mean(scores), overallMean)
		next.RiskFlagPenalties[code] = clamp(corr*flagPenaltyScale, flagPenaltyMin, flagPenaltyMax)
	}
}

// tuneMetaPenalties applies the same correlation method to the two fixed
// meta penalties, each with its own clamp bounds.
func (t *Tuner) tuneMetaPenalties(next *model.WeightSet, samples []model.OutcomeSample, overallMean float64) {
	bounds := map[model.MetaPenaltyKind][2]float64{
		model.MetaSparseAnswers:       {sparsePenaltyMin, sparsePenaltyMax},
		model.MetaIncompleteInterview: {incompletePenaltyMin, incompletePenaltyMax},
	}
	byKind := make(map[model.MetaPenaltyKind][]float64)
	for _, s := range samples {
		for _, kind := range s.MetaFlagCodes {
			byKind[kind] = append(byKind[kind], s.ActualScore)
		}
	}
	for kind, b := range bounds {
		scores := byKind[kind]
		if len(scores) < t.minObservations {
			continue
		}
		corr := correlationProxy(mean(scores), overallMean)
		next.MetaPenalties[kind] = clamp(corr*flagPenaltyScale, b[0], b[1])
	}
}

// tuneSourceBoosts rewards channels whose candidates reliably do better
// than the population: boost = min(5, correlation x 10), only when the
// correlation clears the 0.1 gate.
func (t *Tuner) tuneSourceBoosts(next *model.WeightSet, samples []model.OutcomeSample, overallMean float64) {
	byChannel := make(map[string][]float64)
	for _, s := range samples {
		if s.SourceChannel == "" {
			continue
		}
		byChannel[s.SourceChannel] = append(byChannel[s.SourceChannel], s.ActualScore)
	}
	for channel, scores := range byChannel {
		if len(scores) < t.minObservations {
			continue
		}
		corr := correlationProxy(mean(scores), overallMean)
		if corr > boostCorrelationGate {
			next.SourceBoosts[channel] = math.Min(boostCap, corr*boostScale)
		}
	}
}

// Predict computes the score a weight set implies for one sample: the base
// calibrated score plus penalties and boosts, clamped to [0,100].
func (t *Tuner) Predict(ws model.WeightSet, s model.OutcomeSample) float64 {
	score := s.BaseScore
	for _, code := range s.RiskFlagCodes {
		score += ws.RiskPenalty(code)
	}
	for _, kind := range s.MetaFlagCodes {
		score += ws.MetaPenalties[kind]
	}
	if b, ok := ws.SourceBoosts[s.SourceChannel]; ok {
		score += b
	}
	return clamp(score, 0, maxScore)
}

// evaluateMAE computes the mean absolute error of a weight set against the
// sample. A malformed record is skipped with a reason rather than aborting
// the whole batch.
func (t *Tuner) evaluateMAE(ws model.WeightSet, samples []model.OutcomeSample) (float64, []SkippedRecord) {
	var total float64
	var skipped []SkippedRecord
	n := 0
	for _, s := range samples {
		predicted := t.Predict(ws, s)
		if math.IsNaN(predicted) || math.IsInf(predicted, 0) {
			skipped = append(skipped, SkippedRecord{InterviewID: s.InterviewID, Reason: "prediction not finite"})
			continue
		}
		total += math.Abs(s.ActualScore - predicted)
		n++
	}
	if n == 0 {
		return 0, skipped
	}
	return total / float64(n), skipped
}

// AccumulateImportance counts, per feature and industry, how often the
// feature coincided with above-mean vs below-mean outcomes. The counts
// feed the unstable-feature detector and reporting.
func (t *Tuner) AccumulateImportance(samples []model.OutcomeSample, ws model.WeightSet) []model.FeatureImportance {
	flat := ws.Flatten()
	type key struct{ feature, industry string }
	acc := make(map[key]*model.FeatureImportance)

	touch := func(feature, industry string, aboveMean bool) {
		k := key{feature, industry}
		imp, ok := acc[k]
		if !ok {
			imp = &model.FeatureImportance{
				FeatureName:   feature,
				IndustryCode:  industry,
				CurrentWeight: flat[feature],
			}
			acc[k] = imp
		}
		imp.SampleCount++
		if aboveMean {
			imp.PositiveImpactCount++
		} else {
			imp.NegativeImpactCount++
		}
	}

	valid, _ := splitValid(samples)
	if len(valid) == 0 {
		return nil
	}
	overallMean := meanActual(valid)
	for _, s := range valid {
		above := s.ActualScore >= overallMean
		for _, code := range s.RiskFlagCodes {
			touch("risk_flag."+code, s.IndustryCode, above)
		}
		for _, kind := range s.MetaFlagCodes {
			touch("meta."+string(kind), s.IndustryCode, above)
		}
		if s.SourceChannel != "" {
			touch("source."+s.SourceChannel, s.IndustryCode, above)
		}
	}

	out := make([]model.FeatureImportance, 0, len(acc))
	for _, imp := range acc {
		out = append(out, *imp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FeatureName != out[j].FeatureName {
			return out[i].FeatureName < out[j].FeatureName
		}
		return out[i].IndustryCode < out[j].IndustryCode
	})
	return out
}

// correlationProxy normalizes the gap between a cohort mean and the
// population mean. Negative values mean the cohort does worse than the
// population. The max(1, mean) guard keeps flat populations finite.
func correlationProxy(cohortMean, overallMean float64) float64 {
	return (overallMean - cohortMean) / math.Max(1, overallMean) * -1
}

// splitValid separates usable samples from malformed ones.
func splitValid(samples []model.OutcomeSample) ([]model.OutcomeSample, []SkippedRecord) {
	valid := make([]model.OutcomeSample, 0, len(samples))
	var skipped []SkippedRecord
	for _, s := range samples {
		switch {
		case s.InterviewID == "":
			skipped = append(skipped, SkippedRecord{InterviewID: "(unknown)", Reason: "missing interview id"})
		case math.IsNaN(s.ActualScore) || s.ActualScore < 0 || s.ActualScore > maxScore:
			skipped = append(skipped, SkippedRecord{InterviewID: s.InterviewID, Reason: "actual score out of range"})
		case math.IsNaN(s.BaseScore) || s.BaseScore < 0 || s.BaseScore > maxScore:
			skipped = append(skipped, SkippedRecord{InterviewID: s.InterviewID, Reason: "base score out of range"})
		default:
			valid = append(valid, s)
		}
	}
	return valid, skipped
}

// deltas lists every feature whose value changed between two weight sets.
func deltas(prev, next model.WeightSet) map[string]float64 {
	prevFlat := prev.Flatten()
	out := make(map[string]float64)
	for feature, nextVal := range next.Flatten() {
		if d := nextVal - prevFlat[feature]; d != 0 {
			out[feature] = d
		}
	}
	return out
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanActual(samples []model.OutcomeSample) float64 {
	var sum float64
	for _, s := range samples {
		sum += s.ActualScore
	}
	return sum / float64(len(samples))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
