// Package worker drains the outcome intake queue into durable storage.
package worker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/okian/crewscore/internal/adapters/mq/queue"
	"github.com/okian/crewscore/internal/domain/model"
	"github.com/okian/crewscore/pkg/logger"
	"github.com/okian/crewscore/pkg/metrics"
)

// Recorder persists one outcome.
type Recorder interface {
	Record(ctx context.Context, o model.InterviewOutcome) error
}

// Source is how workers receive outcomes.
type Source interface {
	Dequeue(ctx context.Context) <-chan queue.Outcome
}

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// Worker consumes outcomes from the queue and records them.
type Worker struct {
	source   Source
	recorder Recorder
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker(source Source, recorder Recorder, opts ...Option) *Worker {
	w := &Worker{
		source:   source,
		recorder: recorder,
		name:     "outcome-worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("outcome-worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run consumes outcomes until the context is cancelled, the queue closes,
// or Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	outcomes := w.source.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case o, ok := <-outcomes:
			if !ok {
				return
			}
			if err := w.recorder.Record(ctx, o); err != nil {
				metrics.RecordOutcomeDropped("record_failed")
				w.logger.Error(ctx, "failed to record outcome",
					logger.String("interviewID", o.InterviewID),
					logger.Error(err),
				)
				continue
			}
			metrics.RecordOutcomeStored()
		}
	}
}

// Shutdown stops the worker, waiting for the current outcome to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown timed out: %w", ctx.Err())
	}
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*Worker
	logger  logger.Logger
}

// NewPool creates workerCount workers sharing the queue and recorder.
func NewPool(workerCount int, source Source, recorder Recorder) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*Worker, workerCount),
		logger:  logger.Get().Named("outcome-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewWorker(source, recorder, WithName("outcome-worker-"+strconv.Itoa(i)))
	}
	metrics.UpdateOutcomeWorkerCount(workerCount)
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "outcome workers started", logger.Int("count", len(p.workers)))
}

// Stop shuts every worker down, honoring ctx as the deadline.
func (p *Pool) Stop(ctx context.Context) error {
	var firstErr error
	for _, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	metrics.UpdateOutcomeWorkerCount(0)
	return firstErr
}
