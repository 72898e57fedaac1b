// Package repository defines the persistence contracts the core depends on
// and provides in-memory and badger-backed implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/crewscore/internal/domain/model"
)

// InterviewStore holds scored interviews, their calibrations and decisions.
type InterviewStore interface {
	// SaveScored stores (or idempotently replaces, pre-finalization) a
	// scored interview.
	SaveScored(ctx context.Context, si model.ScoredInterview) error

	// GetScored returns a scored interview by id.
	// Returns ErrNotFound for unknown interviews.
	GetScored(ctx context.Context, interviewID string) (model.ScoredInterview, error)

	// SaveDecision records the first decision for an interview.
	// Returns ErrDecisionExists when one is already recorded; corrections
	// must go through RecordRedecision.
	SaveDecision(ctx context.Context, d model.Decision) error

	// RecordRedecision appends an explicit correction event. The prior
	// decision history is preserved, never overwritten.
	RecordRedecision(ctx context.Context, d model.Decision) error

	// Decisions returns the full decision history for an interview, oldest
	// first.
	Decisions(ctx context.Context, interviewID string) ([]model.Decision, error)

	// PositionPool returns the historical raw scores for a position.
	PositionPool(ctx context.Context, positionCode string) ([]float64, error)

	// Count returns the number of scored interviews tracked.
	Count(ctx context.Context) int
}

// WeightStore holds versioned weight sets with a single-active invariant.
type WeightStore interface {
	// Create inserts a new draft version and returns it with its assigned,
	// monotonically increasing version number.
	Create(ctx context.Context, ws model.WeightSet, notes string) (model.ModelWeight, error)

	// Get returns one version. Returns ErrVersionNotFound when absent.
	Get(ctx context.Context, version int64) (model.ModelWeight, error)

	// Active returns the currently active version, or ErrNoActiveVersion.
	// Detecting more than one active row returns ErrMultipleActive; that
	// is an invariant breach surfaced loudly, never repaired silently.
	Active(ctx context.Context) (model.ModelWeight, error)

	// Promote moves a draft to candidate. Frozen versions refuse.
	Promote(ctx context.Context, version int64) error

	// Activate atomically makes version the single active one, marking the
	// previously active version superseded in the same operation. Frozen
	// versions always return ErrVersionFrozen and leave the active pointer
	// untouched.
	Activate(ctx context.Context, version int64) error

	// Freeze permanently excludes a version from activation.
	Freeze(ctx context.Context, version int64, notes string) error

	// List returns every version, oldest first.
	List(ctx context.Context) ([]model.ModelWeight, error)
}

// OutcomeStore holds externally recorded ground truth, read-only for the
// learning loop.
type OutcomeStore interface {
	// Record appends one outcome.
	Record(ctx context.Context, o model.InterviewOutcome) error

	// Since returns outcomes recorded at or after the cutoff.
	Since(ctx context.Context, cutoff time.Time) ([]model.InterviewOutcome, error)

	// Count returns the number of outcomes stored.
	Count(ctx context.Context) int
}

// LearningEventStore is the append-only audit of the learning loop.
type LearningEventStore interface {
	// Append stores one learning event.
	Append(ctx context.Context, e model.LearningEvent) error

	// ByRun returns all events for one learning run, in append order.
	ByRun(ctx context.Context, runID string) ([]model.LearningEvent, error)

	// Count returns the total number of events recorded.
	Count(ctx context.Context) int
}

// ImportanceStore tracks per-feature impact statistics incrementally.
type ImportanceStore interface {
	// Merge folds the given increments into the stored counters.
	Merge(ctx context.Context, increments []model.FeatureImportance) error

	// All returns every tracked feature importance row.
	All(ctx context.Context) ([]model.FeatureImportance, error)
}
