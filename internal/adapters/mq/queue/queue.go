// Package queue provides the bounded intake queue for interview outcomes.
//
// Collaborators push ground-truth outcomes here; the worker pool drains
// them into the outcome store so learning runs read a stable snapshot.
package queue

import (
	"context"
	"sync"

	"github.com/okian/crewscore/internal/domain/model"
	"github.com/okian/crewscore/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 10_000
)

// Outcome is the payload flowing through the queue.
type Outcome = model.InterviewOutcome

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an outcome to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, o Outcome) bool

	// Dequeue returns a channel receiving outcomes as they arrive.
	// The channel closes when the queue closes.
	Dequeue(ctx context.Context) <-chan Outcome

	// Len returns the current number of queued outcomes.
	Len(ctx context.Context) int

	// Close stops the queue; pending outcomes are still delivered.
	Close() error
}

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum number of buffered outcomes.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	outcomes chan Outcome
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.outcomes = make(chan Outcome, q.capacity)
	metrics.UpdateOutcomeQueueDepth(0)
	return q
}

// Enqueue adds an outcome without blocking; a full or closed queue drops
// the outcome and reports false so the caller can retry later.
func (q *InMemoryQueue) Enqueue(ctx context.Context, o Outcome) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordOutcomeDropped("queue_closed")
		return false
	}

	select {
	case q.outcomes <- o:
		metrics.RecordOutcomeEnqueued()
		metrics.UpdateOutcomeQueueDepth(len(q.outcomes))
		return true
	case <-ctx.Done():
		metrics.RecordOutcomeDropped("context_cancelled")
		return false
	default:
		metrics.RecordOutcomeDropped("queue_full")
		return false
	}
}

// Dequeue returns a channel receiving outcomes as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome)
	go func() {
		defer close(out)
		for o := range q.outcomes {
			select {
			case out <- o:
				metrics.UpdateOutcomeQueueDepth(len(q.outcomes))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued outcomes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.outcomes)
}

// Close stops the queue. Closing twice is harmless.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.outcomes)
	q.closed = true
	return nil
}
