// Package stability guards weight updates against runaway model drift.
package stability

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/crewscore/internal/domain/model"
)

// Default guard constants. The balance threshold and minimum sample count
// are kept exactly as configured in production; see DESIGN.md.
const (
	defaultVolatilityRatio  = 0.20
	defaultBalanceThreshold = 0.30
	defaultMinSamples       = 10
)

// Option applies a configuration option to the Guard.
type Option func(*Guard)

// WithVolatilityRatio sets the maximum allowed per-weight delta, expressed
// as a fraction of the mean absolute weight across all features.
func WithVolatilityRatio(ratio float64) Option {
	return func(g *Guard) {
		if ratio > 0 {
			g.volatilityRatio = ratio
		}
	}
}

// WithBalanceThreshold sets the impact-balance ratio below which a feature
// counts as directionally unreliable.
func WithBalanceThreshold(t float64) Option {
	return func(g *Guard) {
		if t > 0 && t < 1 {
			g.balanceThreshold = t
		}
	}
}

// WithMinSamples sets the minimum observations before a feature can be
// judged unstable.
func WithMinSamples(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.minSamples = n
		}
	}
}

// Violation describes one weight whose proposed change breaks the
// volatility bound.
type Violation struct {
	Feature string
	Prev    float64
	Next    float64
	Delta   float64
	Limit   float64
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %.2f -> %.2f (|delta| %.2f exceeds %.2f)", v.Feature, v.Prev, v.Next, v.Delta, v.Limit)
}

// CheckResult is the outcome of a volatility check.
type CheckResult struct {
	OK         bool
	Violations []Violation
}

// Report is the stability/health snapshot exposed to operators.
type Report struct {
	VolatilityBlocks  int64
	SuddenShiftBlocks int64
	UnstableFeatures  []string
	ActiveVersion     int64
	IsFrozen          bool
}

// Guard vetoes weight proposals that move too far in one batch and flags
// features with no reliable directional signal.
type Guard struct {
	volatilityRatio  float64
	balanceThreshold float64
	minSamples       int
}

// NewGuard creates a guard with configuration options.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		volatilityRatio:  defaultVolatilityRatio,
		balanceThreshold: defaultBalanceThreshold,
		minSamples:       defaultMinSamples,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check compares a proposed weight set against its predecessor. A proposal
// fails when any single weight moves by more than the volatility ratio of
// the mean absolute weight across all prior features; this stops one noisy
// batch from swinging the model.
func (g *Guard) Check(prev, next model.WeightSet) CheckResult {
	prevFlat := prev.Flatten()
	nextFlat := next.Flatten()

	limit := g.volatilityRatio * meanAbs(prevFlat)
	if limit == 0 {
		// No prior weights to compare against; nothing to veto.
		return CheckResult{OK: true}
	}

	var violations []Violation
	for feature, nextVal := range nextFlat {
		prevVal, ok := prevFlat[feature]
		if !ok {
			continue // brand-new feature, no prior value to drift from
		}
		delta := math.Abs(nextVal - prevVal)
		if delta > limit {
			violations = append(violations, Violation{
				Feature: feature,
				Prev:    prevVal,
				Next:    nextVal,
				Delta:   delta,
				Limit:   limit,
			})
		}
	}
	sort.Slice(violations, func(i, j int) bool { return violations[i].Feature < violations[j].Feature })
	return CheckResult{OK: len(violations) == 0, Violations: violations}
}

// UnstableFeatures returns features whose positive and negative impact
// counts are both non-zero and nearly balanced: their effect has no
// reliable direction and they should not be aggressively re-weighted.
func (g *Guard) UnstableFeatures(importances []model.FeatureImportance) []string {
	var unstable []string
	for _, imp := range importances {
		pos, neg := imp.PositiveImpactCount, imp.NegativeImpactCount
		total := pos + neg
		if total < g.minSamples || pos == 0 || neg == 0 {
			continue
		}
		balance := math.Abs(float64(pos-neg)) / float64(total)
		if balance < g.balanceThreshold {
			unstable = append(unstable, imp.FeatureName)
		}
	}
	sort.Strings(unstable)
	return unstable
}

// meanAbs returns the mean absolute value across all weights.
func meanAbs(weights map[string]float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	var sum float64
	for _, v := range weights {
		sum += math.Abs(v)
	}
	return sum / float64(len(weights))
}
