// Package scoring computes raw interview scores from structured answers.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/crewscore/internal/domain/model"
	"github.com/okian/crewscore/internal/domain/riskflag"
)

// Default scoring configuration constants.
const (
	maxScoreValue        = 100
	ratingMax            = 5
	ratingStep           = 100 / ratingMax // 1..5 maps to 20..100
	weightSumTolerance   = 0.001
	defaultMissingFrac   = 0.25 // missing dimensions beyond this draw a meta penalty
	defaultSparseMinWord = 5    // free-text answers below this many words count as sparse
	defaultSparseFrac    = 0.5
	defaultLanguageMin   = 75
	defaultRoleCode      = "role_competence"
	textProxyBase        = 20
	textProxyPerWord     = 2.0
	textProxyCap         = 80
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithTemplateWeights sets the per-competency template weights.
// Weights must sum to 1.0; invalid sets are rejected at Score time.
func WithTemplateWeights(weights map[string]float64) Option {
	return func(e *Engine) {
		e.templateWeights = make(map[string]float64, len(weights))
		for code, w := range weights {
			if w > 0 {
				e.templateWeights[code] = w
			}
		}
	}
}

// WithDetector sets the risk flag detector.
func WithDetector(d riskflag.Detector) Option {
	return func(e *Engine) {
		if d != nil {
			e.detector = d
		}
	}
}

// WithRoleCompetencyCode sets the competency the skill gate checks.
func WithRoleCompetencyCode(code string) Option {
	return func(e *Engine) {
		if code != "" {
			e.roleCode = code
		}
	}
}

// WithMissingFraction sets the missing-dimension fraction beyond which the
// incomplete_interview meta penalty applies.
func WithMissingFraction(frac float64) Option {
	return func(e *Engine) {
		if frac > 0 && frac <= 1 {
			e.missingFrac = frac
		}
	}
}

// WithSparseHeuristic tunes sparse-answer detection: answers with fewer
// than minWords words are sparse; when more than frac of answered questions
// are sparse the sparse_answers meta penalty applies.
func WithSparseHeuristic(minWords int, frac float64) Option {
	return func(e *Engine) {
		if minWords > 0 {
			e.sparseMinWords = minWords
		}
		if frac > 0 && frac <= 1 {
			e.sparseFrac = frac
		}
	}
}

// WithLanguageMinimum sets the language score needed for the language boost.
func WithLanguageMinimum(minScore float64) Option {
	return func(e *Engine) {
		if minScore > 0 {
			e.languageMin = minScore
		}
	}
}

// Engine converts a completed interview plus a weight set into a raw score,
// a provisional decision, risk flags and a skill-gate verdict.
type Engine struct {
	templateWeights map[string]float64
	detector        riskflag.Detector
	roleCode        string
	missingFrac     float64
	sparseMinWords  int
	sparseFrac      float64
	languageMin     float64
}

// NewEngine creates a scoring engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		templateWeights: defaultTemplateWeights(),
		detector:        riskflag.NewCatalogDetector(),
		roleCode:        defaultRoleCode,
		missingFrac:     defaultMissingFrac,
		sparseMinWords:  defaultSparseMinWord,
		sparseFrac:      defaultSparseFrac,
		languageMin:     defaultLanguageMin,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// defaultTemplateWeights is the standard seafarer interview template.
func defaultTemplateWeights() map[string]float64 {
	return map[string]float64{
		"communication":   0.20,
		"technical":       0.25,
		"problem_solving": 0.15,
		"teamwork":        0.15,
		"safety":          0.10,
		defaultRoleCode:   0.15,
	}
}

// RatingToPercent converts a 1..5 rating to a 0..100 percentage.
// Out-of-range ratings are clamped into the valid band first.
func RatingToPercent(rating int) float64 {
	if rating < 1 {
		rating = 1
	}
	if rating > ratingMax {
		rating = ratingMax
	}
	return float64(rating * ratingStep)
}

// TextToPercent derives a rough percentage from a free-text answer.
// Longer answers score higher, capped well below the maximum a structured
// rating can reach.
func TextToPercent(text string) float64 {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	p := textProxyBase + textProxyPerWord*float64(words)
	return math.Min(textProxyCap, p)
}

// Score computes the raw score for a completed interview. It is idempotent
// for a given (interview, weight set) pair.
func (e *Engine) Score(ctx context.Context, iv model.Interview, ws model.WeightSet) (model.ScoredInterview, error) {
	if err := e.validateTemplate(); err != nil {
		return model.ScoredInterview{}, err
	}
	select {
	case <-ctx.Done():
		return model.ScoredInterview{}, fmt.Errorf("scoring cancelled: %w", ctx.Err())
	default:
	}

	scores := e.competencyScores(iv)

	// Weighted sum over the template; a missing dimension contributes zero.
	var weighted float64
	missing := 0
	for code, weight := range e.templateWeights {
		cs, ok := scores[code]
		if !ok {
			missing++
			continue
		}
		weighted += cs.Percent * weight
	}

	var metaFlags []model.MetaPenaltyKind
	if frac := float64(missing) / float64(len(e.templateWeights)); frac > e.missingFrac {
		metaFlags = append(metaFlags, model.MetaIncompleteInterview)
	}
	if e.answersAreSparse(iv.Answers) {
		metaFlags = append(metaFlags, model.MetaSparseAnswers)
	}

	flags := e.detector.Detect(ctx, iv)
	for i := range flags {
		flags[i].Penalty = ws.RiskPenalty(flags[i].Code)
	}

	score := weighted
	for _, f := range flags {
		score += f.Penalty
	}
	for _, kind := range metaFlags {
		score += ws.MetaPenalties[kind]
	}
	score += e.boosts(iv, ws)

	score = math.Round(clamp(score, 0, maxScoreValue))

	return model.ScoredInterview{
		InterviewID:      iv.InterviewID,
		PositionCode:     iv.PositionCode,
		IndustryCode:     iv.IndustryCode,
		CompetencyScores: scores,
		BaseScore:        weighted,
		RawFinalScore:    score,
		RawDecision:      e.rawDecision(score, flags, ws),
		RiskFlags:        flags,
		MetaFlags:        metaFlags,
		SkillGate:        e.skillGate(scores, ws),
		SourceChannel:    iv.SourceChannel,
		ScoredAt:         time.Now().UTC(),
	}, nil
}

// competencyScores folds answers into one 0..100 score per template
// dimension, averaging when a dimension has several answers.
func (e *Engine) competencyScores(iv model.Interview) map[string]model.CompetencyScore {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, a := range iv.Answers {
		if _, ok := e.templateWeights[a.CompetencyCode]; !ok {
			continue // answer outside the template carries no weight
		}
		var p float64
		switch {
		case a.Rating > 0:
			p = RatingToPercent(a.Rating)
		case a.Text != "":
			p = TextToPercent(a.Text)
		default:
			continue // unanswered
		}
		sums[a.CompetencyCode] += p
		counts[a.CompetencyCode]++
	}

	out := make(map[string]model.CompetencyScore, len(sums))
	for code, sum := range sums {
		out[code] = model.CompetencyScore{
			CompetencyCode: code,
			Percent:        sum / float64(counts[code]),
			Weight:         e.templateWeights[code],
		}
	}
	return out
}

// answersAreSparse reports whether too many answered questions are thin.
func (e *Engine) answersAreSparse(answers []model.Answer) bool {
	answered, sparse := 0, 0
	for _, a := range answers {
		if a.Rating == 0 && a.Text == "" {
			continue
		}
		answered++
		if a.Rating == 0 && len(strings.Fields(a.Text)) < e.sparseMinWords {
			sparse++
		}
	}
	if answered == 0 {
		return true
	}
	return float64(sparse)/float64(answered) > e.sparseFrac
}

// boosts sums the configured boosts that apply to this interview.
func (e *Engine) boosts(iv model.Interview, ws model.WeightSet) float64 {
	var total float64
	if iv.PositionIndustry != "" && iv.IndustryCode == iv.PositionIndustry {
		total += ws.Boosts[model.BoostIndustryMatch]
	}
	if iv.LanguageScore >= e.languageMin {
		total += ws.Boosts[model.BoostLanguageLevel]
	}
	if b, ok := ws.SourceBoosts[iv.SourceChannel]; ok {
		total += b
	}
	return total
}

// skillGate checks the role-competence dimension against the gate
// threshold. A failed gate never rejects on its own; the decision policy
// treats it as a blocking signal.
func (e *Engine) skillGate(scores map[string]model.CompetencyScore, ws model.WeightSet) model.SkillGate {
	role := scores[e.roleCode]
	return model.SkillGate{
		RoleCompetenceScore: role.Percent,
		GateThreshold:       ws.Thresholds.SkillGate,
		Passed:              role.Percent >= ws.Thresholds.SkillGate,
	}
}

// rawDecision maps the raw score to a provisional verdict before
// calibration. Auto-reject flags short-circuit.
func (e *Engine) rawDecision(score float64, flags []model.RiskFlag, ws model.WeightSet) model.Outcome {
	if _, ok := model.AutoRejectFlag(flags); ok {
		return model.OutcomeReject
	}
	switch {
	case score >= ws.Thresholds.Hire:
		return model.OutcomeHire
	case score >= ws.Thresholds.HoldLower:
		return model.OutcomeHold
	default:
		return model.OutcomeReject
	}
}

func (e *Engine) validateTemplate() error {
	var sum float64
	for _, w := range e.templateWeights {
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("%w: template weights sum to %.4f", ErrInvalidTemplate, sum)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
