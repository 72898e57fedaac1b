// Package model contains domain models passed between layers.
package model

import "time"

// Severity classifies how serious a risk flag is.
type Severity string

// Risk flag severities, ordered from least to most serious.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns a comparable ordering for severities. Unknown severities rank
// below low so they never win a tie-break.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Outcome is the final verdict for a candidate.
type Outcome string

// Decision outcomes.
const (
	OutcomeHire   Outcome = "HIRE"
	OutcomeHold   Outcome = "HOLD"
	OutcomeReject Outcome = "REJECT"
)

// Answer is a single structured interview answer.
// Rating is 1..5; zero means the question was answered in free text only
// (or not at all, when Text is also empty).
type Answer struct {
	Slot           int
	CompetencyCode string
	Rating         int
	Text           string
}

// Interview is a completed interview ready for scoring.
type Interview struct {
	InterviewID      string
	PositionCode     string
	PositionIndustry string // industry the position belongs to
	IndustryCode     string // industry the candidate comes from
	SourceChannel    string // e.g. "referral", "job_board", "crewing_agent"
	LanguageScore    float64
	Answers          []Answer
	CompletedAt      time.Time
}

// CompetencyScore is one scored interview dimension.
type CompetencyScore struct {
	CompetencyCode string
	Percent        float64 // 0..100
	Weight         float64 // template weight, all weights sum to 1.0
}

// RiskFlag is a tagged, evidenced signal detected in interview answers.
// Produced fresh on every scoring pass and never mutated afterwards.
type RiskFlag struct {
	Code             string
	Name             string
	Severity         Severity
	Penalty          float64 // negative points applied to the raw score
	Evidence         []string
	CausesAutoReject bool
}

// SkillGate is the minimum-threshold check on the role-competence dimension.
type SkillGate struct {
	RoleCompetenceScore float64
	GateThreshold       float64
	Passed              bool
}

// ScoredInterview is the output of the raw scoring engine for one interview.
type ScoredInterview struct {
	InterviewID      string
	PositionCode     string
	IndustryCode     string
	CompetencyScores map[string]CompetencyScore
	BaseScore        float64 // weighted competency sum before penalties and boosts
	RawFinalScore    float64 // clamped to [0,100], rounded to an integer value
	RawDecision      Outcome
	RiskFlags        []RiskFlag
	MetaFlags        []MetaPenaltyKind // completeness flags that drew a meta penalty
	SkillGate        SkillGate
	SourceChannel    string
	CalibratedBase   float64 // calibrated score minus tunable penalties and boosts
	ModelVersion     int64   // weight version used; 0 means built-in defaults
	UsedDefaults     bool    // true when no active weight version existed
	ScoredAt         time.Time
}

// CalibrationResult normalizes a raw score against its position pool.
type CalibrationResult struct {
	PositionMean       float64
	PositionStdDev     float64
	ZScore             float64
	CalibratedScore    float64
	CalibrationVersion string // "none" when the pool was too small
	SampleSize         int
}

// Decision is the final, policy-produced verdict.
// Written once an interview completes; corrections are new events, never
// in-place overwrites.
type Decision struct {
	InterviewID   string
	FinalScore    float64
	Outcome       Outcome
	PolicyCode    string
	PolicyVersion string
	Reason        string
	DecidedAt     time.Time
}

// AutoRejectFlag returns the first flag that forces rejection, if any.
func AutoRejectFlag(flags []RiskFlag) (RiskFlag, bool) {
	for _, f := range flags {
		if f.CausesAutoReject {
			return f, true
		}
	}
	return RiskFlag{}, false
}

// HighestSeverity returns the most severe flag in the list.
func HighestSeverity(flags []RiskFlag) (RiskFlag, bool) {
	if len(flags) == 0 {
		return RiskFlag{}, false
	}
	best := flags[0]
	for _, f := range flags[1:] {
		if f.Severity.Rank() > best.Severity.Rank() {
			best = f
		}
	}
	return best, true
}
