// Package dedupe tracks outcome ids so ingestion stays idempotent.
package dedupe

import (
	"context"
	"sync"
)

// Default deduper configuration constants.
const (
	defaultMaxSize = 50_000
)

// Deduper records seen outcome ids to ensure at-most-once ingestion.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an id from the seen set so a failed ingestion can
	// be retried.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of ids currently tracked.
	Size() int64
}

// Option applies a configuration option to the deduper.
type Option func(*ringDeduper)

// WithMaxSize bounds how many ids are remembered; the oldest ids are
// evicted first once the bound is reached. Zero or negative means
// unbounded.
func WithMaxSize(n int) Option {
	return func(d *ringDeduper) {
		d.maxSize = n
	}
}

// ringDeduper implements Deduper with a map plus a ring of insertion order
// for FIFO eviction in bounded mode.
type ringDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // ring buffer of ids in insertion order (bounded mode)
	head    int      // next eviction slot
	maxSize int
}

// NewDeduper creates a deduper with configuration options.
func NewDeduper(opts ...Option) Deduper {
	d := &ringDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	if d.maxSize > 0 {
		d.order = make([]string, 0, d.maxSize)
	}
	return d
}

// SeenAndRecord atomically checks and records an id.
func (d *ringDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if d.maxSize > 0 {
		if len(d.order) < d.maxSize {
			d.order = append(d.order, id)
		} else {
			// Evict the oldest id and reuse its slot.
			delete(d.seen, d.order[d.head])
			d.order[d.head] = id
			d.head = (d.head + 1) % d.maxSize
		}
	}
	d.seen[id] = struct{}{}
	return false
}

// Unrecord removes an id from the seen set. The ring slot is left in place;
// a stale slot only causes a harmless no-op delete on eviction.
func (d *ringDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

// Size returns the number of ids currently tracked.
func (d *ringDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
