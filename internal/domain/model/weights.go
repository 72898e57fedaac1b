package model

import (
	"fmt"
	"math"
	"time"
)

// MetaPenaltyKind is the closed set of answer-completeness penalties.
type MetaPenaltyKind string

// Meta penalty kinds.
const (
	MetaSparseAnswers       MetaPenaltyKind = "sparse_answers"
	MetaIncompleteInterview MetaPenaltyKind = "incomplete_interview"
)

// BoostKind is the closed set of fixed score boosts.
type BoostKind string

// Boost kinds.
const (
	BoostIndustryMatch BoostKind = "industry_match"
	BoostLanguageLevel BoostKind = "language_level"
)

// WeightState is the lifecycle state of a weight version.
type WeightState string

// Weight version lifecycle states.
const (
	WeightDraft      WeightState = "draft"
	WeightCandidate  WeightState = "candidate"
	WeightActive     WeightState = "active"
	WeightSuperseded WeightState = "superseded"
)

// WeightSet holds every tunable scoring parameter.
//
// Risk flag penalties are keyed by flag code with a default bucket for
// codes without an explicit entry. Meta penalties and boosts are keyed by
// fixed enums; source boosts are keyed by channel name and are learned by
// the tuning service.
type WeightSet struct {
	RiskFlagPenalties  map[string]float64          `json:"risk_flag_penalties"`
	DefaultRiskPenalty float64                     `json:"default_risk_penalty"`
	MetaPenalties      map[MetaPenaltyKind]float64 `json:"meta_penalties"`
	Boosts             map[BoostKind]float64       `json:"boosts"`
	SourceBoosts       map[string]float64          `json:"source_boosts"`
	Thresholds         Thresholds                  `json:"thresholds"`
}

// Thresholds groups the decision cut lines of a weight set.
type Thresholds struct {
	SkillGate float64 `json:"skill_gate"`
	Hire      float64 `json:"hire"`
	HoldLower float64 `json:"hold_lower"`
}

// RiskPenalty returns the penalty for a flag code, falling back to the
// default bucket for unknown codes.
func (w WeightSet) RiskPenalty(code string) float64 {
	if p, ok := w.RiskFlagPenalties[code]; ok {
		return p
	}
	return w.DefaultRiskPenalty
}

// Clone deep-copies the weight set so callers can mutate freely.
func (w WeightSet) Clone() WeightSet {
	out := w
	out.RiskFlagPenalties = make(map[string]float64, len(w.RiskFlagPenalties))
	for k, v := range w.RiskFlagPenalties {
		out.RiskFlagPenalties[k] = v
	}
	out.MetaPenalties = make(map[MetaPenaltyKind]float64, len(w.MetaPenalties))
	for k, v := range w.MetaPenalties {
		out.MetaPenalties[k] = v
	}
	out.Boosts = make(map[BoostKind]float64, len(w.Boosts))
	for k, v := range w.Boosts {
		out.Boosts[k] = v
	}
	out.SourceBoosts = make(map[string]float64, len(w.SourceBoosts))
	for k, v := range w.SourceBoosts {
		out.SourceBoosts[k] = v
	}
	return out
}

// Flatten returns every tunable weight keyed by a stable feature name, for
// volatility comparison between versions.
func (w WeightSet) Flatten() map[string]float64 {
	out := make(map[string]float64)
	for code, v := range w.RiskFlagPenalties {
		out["risk_flag."+code] = v
	}
	out["risk_flag.default"] = w.DefaultRiskPenalty
	for kind, v := range w.MetaPenalties {
		out["meta."+string(kind)] = v
	}
	for kind, v := range w.Boosts {
		out["boost."+string(kind)] = v
	}
	for channel, v := range w.SourceBoosts {
		out["source."+channel] = v
	}
	return out
}

// Validate checks the closed-set structure of the weight set.
func (w WeightSet) Validate() error {
	for kind := range w.MetaPenalties {
		if kind != MetaSparseAnswers && kind != MetaIncompleteInterview {
			return fmt.Errorf("unknown meta penalty kind %q", kind)
		}
	}
	for kind := range w.Boosts {
		if kind != BoostIndustryMatch && kind != BoostLanguageLevel {
			return fmt.Errorf("unknown boost kind %q", kind)
		}
	}
	for code, p := range w.RiskFlagPenalties {
		if p > 0 {
			return fmt.Errorf("risk flag penalty %q must not be positive, got %f", code, p)
		}
	}
	if w.DefaultRiskPenalty > 0 {
		return fmt.Errorf("default risk penalty must not be positive, got %f", w.DefaultRiskPenalty)
	}
	if math.IsNaN(w.Thresholds.Hire) || w.Thresholds.Hire < 0 || w.Thresholds.Hire > 100 {
		return fmt.Errorf("hire threshold out of range: %f", w.Thresholds.Hire)
	}
	return nil
}

// DefaultWeightSet is the hard-coded fallback used when no weight version
// has ever been activated. Scoring must never fail for lack of weights.
func DefaultWeightSet() WeightSet {
	return WeightSet{
		RiskFlagPenalties: map[string]float64{
			"RF_AGGRESSION":       -20,
			"RF_SAFETY_DISREGARD": -12,
			"RF_BLAME_SHIFTING":   -6,
			"RF_EVASIVE_ANSWERS":  -4,
		},
		DefaultRiskPenalty: -5,
		MetaPenalties: map[MetaPenaltyKind]float64{
			MetaSparseAnswers:       -5,
			MetaIncompleteInterview: -8,
		},
		Boosts: map[BoostKind]float64{
			BoostIndustryMatch: 3,
			BoostLanguageLevel: 2,
		},
		SourceBoosts: map[string]float64{
			"referral": 3,
		},
		Thresholds: Thresholds{
			SkillGate: 50,
			Hire:      50,
			HoldLower: 35,
		},
	}
}

// ModelWeight is one immutable, versioned weight snapshot.
// Exactly one version is active at a time; a frozen version can never
// become active again.
type ModelWeight struct {
	Version     int64       `json:"version"`
	Weights     WeightSet   `json:"weights"`
	State       WeightState `json:"state"`
	IsActive    bool        `json:"is_active"`
	IsFrozen    bool        `json:"is_frozen"`
	FrozenAt    *time.Time  `json:"frozen_at,omitempty"`
	FrozenNotes string      `json:"frozen_notes,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Notes       string      `json:"notes,omitempty"`
}
