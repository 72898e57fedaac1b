package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/okian/crewscore/internal/domain/model"
	"github.com/okian/crewscore/pkg/metrics"
)

// MemoryInterviewStore implements InterviewStore with in-process maps.
type MemoryInterviewStore struct {
	mu        sync.RWMutex
	scored    map[string]model.ScoredInterview
	decisions map[string][]model.Decision
	pools     map[string][]float64 // position code -> raw scores
}

// NewMemoryInterviewStore creates an empty in-memory interview store.
func NewMemoryInterviewStore() *MemoryInterviewStore {
	return &MemoryInterviewStore{
		scored:    make(map[string]model.ScoredInterview),
		decisions: make(map[string][]model.Decision),
		pools:     make(map[string][]float64),
	}
}

// SaveScored stores a scored interview. Re-saving before a decision exists
// replaces the previous pass (rescoring is idempotent pre-finalization);
// once a decision is recorded the scored row is locked.
func (s *MemoryInterviewStore) SaveScored(_ context.Context, si model.ScoredInterview) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.decisions[si.InterviewID]) > 0 {
		return ErrDecisionExists
	}
	if prev, ok := s.scored[si.InterviewID]; ok {
		// Replace the prior contribution in the position pool.
		s.removeFromPool(prev.PositionCode, prev.RawFinalScore)
	}
	s.scored[si.InterviewID] = si
	s.pools[si.PositionCode] = append(s.pools[si.PositionCode], si.RawFinalScore)
	return nil
}

// GetScored returns a scored interview by id.
func (s *MemoryInterviewStore) GetScored(_ context.Context, interviewID string) (model.ScoredInterview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	si, ok := s.scored[interviewID]
	if !ok {
		return model.ScoredInterview{}, ErrNotFound
	}
	return si, nil
}

// SaveDecision records the first decision for an interview.
func (s *MemoryInterviewStore) SaveDecision(_ context.Context, d model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.decisions[d.InterviewID]) > 0 {
		return ErrDecisionExists
	}
	s.decisions[d.InterviewID] = []model.Decision{d}
	return nil
}

// RecordRedecision appends a correction event to the decision history.
func (s *MemoryInterviewStore) RecordRedecision(_ context.Context, d model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.decisions[d.InterviewID]) == 0 {
		return ErrNotFound
	}
	s.decisions[d.InterviewID] = append(s.decisions[d.InterviewID], d)
	return nil
}

// Decisions returns the decision history for an interview, oldest first.
func (s *MemoryInterviewStore) Decisions(_ context.Context, interviewID string) ([]model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.decisions[interviewID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]model.Decision, len(history))
	copy(out, history)
	return out, nil
}

// PositionPool returns a copy of the raw-score population for a position.
func (s *MemoryInterviewStore) PositionPool(_ context.Context, positionCode string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool := s.pools[positionCode]
	out := make([]float64, len(pool))
	copy(out, pool)
	return out, nil
}

// Count returns the number of scored interviews tracked.
func (s *MemoryInterviewStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scored)
}

func (s *MemoryInterviewStore) removeFromPool(positionCode string, score float64) {
	pool := s.pools[positionCode]
	for i, v := range pool {
		if v == score {
			s.pools[positionCode] = append(pool[:i], pool[i+1:]...)
			return
		}
	}
}

// MemoryWeightStore implements WeightStore with in-process state.
type MemoryWeightStore struct {
	mu          sync.RWMutex
	versions    map[int64]model.ModelWeight
	nextVersion int64
}

// NewMemoryWeightStore creates an empty in-memory weight store.
func NewMemoryWeightStore() *MemoryWeightStore {
	return &MemoryWeightStore{
		versions:    make(map[int64]model.ModelWeight),
		nextVersion: 1,
	}
}

// Create inserts a new draft version.
func (s *MemoryWeightStore) Create(_ context.Context, ws model.WeightSet, notes string) (model.ModelWeight, error) {
	if err := ws.Validate(); err != nil {
		return model.ModelWeight{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mw := model.ModelWeight{
		Version:   s.nextVersion,
		Weights:   ws.Clone(),
		State:     model.WeightDraft,
		CreatedAt: time.Now().UTC(),
		Notes:     notes,
	}
	s.versions[mw.Version] = mw
	s.nextVersion++
	return mw, nil
}

// Get returns one version.
func (s *MemoryWeightStore) Get(_ context.Context, version int64) (model.ModelWeight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mw, ok := s.versions[version]
	if !ok {
		return model.ModelWeight{}, ErrVersionNotFound
	}
	return mw, nil
}

// Active returns the single active version. Finding more than one active
// row is a fatal invariant breach and is surfaced, not repaired.
func (s *MemoryWeightStore) Active(_ context.Context) (model.ModelWeight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked()
}

func (s *MemoryWeightStore) activeLocked() (model.ModelWeight, error) {
	var found []model.ModelWeight
	for _, mw := range s.versions {
		if mw.IsActive {
			found = append(found, mw)
		}
	}
	switch len(found) {
	case 0:
		return model.ModelWeight{}, ErrNoActiveVersion
	case 1:
		return found[0], nil
	default:
		return model.ModelWeight{}, ErrMultipleActive
	}
}

// Promote moves a draft to candidate.
func (s *MemoryWeightStore) Promote(_ context.Context, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mw, ok := s.versions[version]
	if !ok {
		return ErrVersionNotFound
	}
	if mw.IsFrozen {
		return ErrVersionFrozen
	}
	if mw.State != model.WeightDraft {
		return ErrNotPromotable
	}
	mw.State = model.WeightCandidate
	s.versions[version] = mw
	return nil
}

// Activate atomically swaps the active pointer: the previously active
// version is superseded under the same lock that activates the new one,
// so no observer ever sees zero or two active versions.
func (s *MemoryWeightStore) Activate(_ context.Context, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.versions[version]
	if !ok {
		return ErrVersionNotFound
	}
	if next.IsFrozen {
		return ErrVersionFrozen
	}
	if next.IsActive {
		return nil // already active, nothing to do
	}

	prev, err := s.activeLocked()
	if err != nil && !errors.Is(err, ErrNoActiveVersion) {
		return err
	}
	if err == nil {
		prev.IsActive = false
		prev.State = model.WeightSuperseded
		s.versions[prev.Version] = prev
	}

	next.IsActive = true
	next.State = model.WeightActive
	s.versions[version] = next
	metrics.RecordWeightActivation()
	return nil
}

// Freeze permanently excludes a version from activation.
func (s *MemoryWeightStore) Freeze(_ context.Context, version int64, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mw, ok := s.versions[version]
	if !ok {
		return ErrVersionNotFound
	}
	if mw.IsFrozen {
		return nil // freezing twice is harmless
	}
	now := time.Now().UTC()
	mw.IsFrozen = true
	mw.FrozenAt = &now
	mw.FrozenNotes = notes
	s.versions[version] = mw
	return nil
}

// List returns every version, oldest first.
func (s *MemoryWeightStore) List(_ context.Context) ([]model.ModelWeight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ModelWeight, 0, len(s.versions))
	for _, mw := range s.versions {
		out = append(out, mw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// MemoryOutcomeStore implements OutcomeStore with an in-process slice.
type MemoryOutcomeStore struct {
	mu       sync.RWMutex
	outcomes []model.InterviewOutcome
}

// NewMemoryOutcomeStore creates an empty in-memory outcome store.
func NewMemoryOutcomeStore() *MemoryOutcomeStore {
	return &MemoryOutcomeStore{}
}

// Record appends one outcome.
func (s *MemoryOutcomeStore) Record(_ context.Context, o model.InterviewOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}

// Since returns outcomes recorded at or after the cutoff.
func (s *MemoryOutcomeStore) Since(_ context.Context, cutoff time.Time) ([]model.InterviewOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.InterviewOutcome
	for _, o := range s.outcomes {
		if !o.RecordedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Count returns the number of outcomes stored.
func (s *MemoryOutcomeStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outcomes)
}

// MemoryLearningEventStore implements LearningEventStore in process.
type MemoryLearningEventStore struct {
	mu     sync.RWMutex
	events []model.LearningEvent
}

// NewMemoryLearningEventStore creates an empty in-memory event store.
func NewMemoryLearningEventStore() *MemoryLearningEventStore {
	return &MemoryLearningEventStore{}
}

// Append stores one learning event.
func (s *MemoryLearningEventStore) Append(_ context.Context, e model.LearningEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// ByRun returns all events for one learning run, in append order.
func (s *MemoryLearningEventStore) ByRun(_ context.Context, runID string) ([]model.LearningEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.LearningEvent
	for _, e := range s.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Count returns the total number of events recorded.
func (s *MemoryLearningEventStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// MemoryImportanceStore implements ImportanceStore in process.
type MemoryImportanceStore struct {
	mu   sync.RWMutex
	rows map[string]model.FeatureImportance // feature|industry -> row
}

// NewMemoryImportanceStore creates an empty in-memory importance store.
func NewMemoryImportanceStore() *MemoryImportanceStore {
	return &MemoryImportanceStore{rows: make(map[string]model.FeatureImportance)}
}

// Merge folds increments into the stored counters. CurrentWeight takes the
// incoming value since it reflects the latest proposal.
func (s *MemoryImportanceStore) Merge(_ context.Context, increments []model.FeatureImportance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inc := range increments {
		key := inc.FeatureName + "|" + inc.IndustryCode
		row := s.rows[key]
		row.FeatureName = inc.FeatureName
		row.IndustryCode = inc.IndustryCode
		row.CurrentWeight = inc.CurrentWeight
		row.SampleCount += inc.SampleCount
		row.PositiveImpactCount += inc.PositiveImpactCount
		row.NegativeImpactCount += inc.NegativeImpactCount
		s.rows[key] = row
	}
	return nil
}

// All returns every tracked feature importance row.
func (s *MemoryImportanceStore) All(_ context.Context) ([]model.FeatureImportance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.FeatureImportance, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FeatureName != out[j].FeatureName {
			return out[i].FeatureName < out[j].FeatureName
		}
		return out[i].IndustryCode < out[j].IndustryCode
	})
	return out, nil
}
