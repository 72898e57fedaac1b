package model

import "time"

// Learning event statuses.
const (
	LearningProcessed         = "processed"
	LearningProcessedNoChange = "processed_no_change"
	LearningSkipped           = "skipped"
)

// LearningEvent is the append-only audit record of one outcome processed
// by the learning loop.
type LearningEvent struct {
	ID             string
	RunID          string
	InterviewID    string
	PredictedScore float64
	ActualScore    float64
	Error          float64 // actual - predicted
	IndustryCode   string
	Status         string
	CreatedAt      time.Time
}

// FeatureImportance tracks the observed directional impact of one feature
// within one industry. Updated incrementally by the learning loop.
type FeatureImportance struct {
	FeatureName         string
	IndustryCode        string
	CurrentWeight       float64
	SampleCount         int
	PositiveImpactCount int
	NegativeImpactCount int
}

// InterviewOutcome is externally recorded ground truth for a candidate.
// Consumed read-only by the learning loop.
type InterviewOutcome struct {
	OutcomeID        string // idempotency key for ingestion
	InterviewID      string
	Hired            bool
	Started          bool
	StillEmployed30D bool
	OutcomeScore     float64 // 0..100
	OutcomeSource    string
	RecordedAt       time.Time
}

// OutcomeSample is the joined (scored interview, prediction, outcome) row
// the tuning service works on.
type OutcomeSample struct {
	InterviewID    string
	BaseScore      float64 // calibrated score before penalties and boosts
	PredictedScore float64
	ActualScore    float64
	RiskFlagCodes  []string
	MetaFlagCodes  []MetaPenaltyKind
	SourceChannel  string
	IndustryCode   string
	RecordedAt     time.Time
}
