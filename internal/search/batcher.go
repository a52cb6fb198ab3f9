package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/index"
	"github.com/your-org/mediavault/internal/observability"
)

// Clock abstracts timer creation so the debounce window can be driven
// manually in tests.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type pendingVec struct {
	ownerID uuid.UUID
	vec     []float32
}

// Batcher coalesces index writes behind a debounce window. Every queued
// event restarts the timer, so the flush runs once a full window has
// passed with no new events, applying everything queued so far. Events
// arriving while a flush is running are deferred to the next window
// rather than lost. A queued remove cancels a pending upsert for the
// same key and vice versa, last write wins.
type Batcher struct {
	idx    index.Index
	window time.Duration
	clock  Clock

	mu       sync.Mutex
	upserts  map[uuid.UUID]pendingVec
	removes  map[uuid.UUID]struct{}
	timer    Timer
	flushing bool
}

func NewBatcher(idx index.Index, window time.Duration) *Batcher {
	return NewBatcherWithClock(idx, window, realClock{})
}

func NewBatcherWithClock(idx index.Index, window time.Duration, clock Clock) *Batcher {
	return &Batcher{
		idx:     idx,
		window:  window,
		clock:   clock,
		upserts: make(map[uuid.UUID]pendingVec),
		removes: make(map[uuid.UUID]struct{}),
	}
}

func (b *Batcher) QueueUpsert(key, ownerID uuid.UUID, vec []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.removes, key)
	b.upserts[key] = pendingVec{ownerID: ownerID, vec: vec}
	b.arm()
}

func (b *Batcher) QueueRemove(key uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.upserts, key)
	b.removes[key] = struct{}{}
	b.arm()
}

// arm starts or restarts the debounce timer; a pending flush is pushed
// out by a full window. While a flush runs nothing is armed, Flush
// re-arms for writes that landed during it. Callers hold b.mu.
func (b *Batcher) arm() {
	if b.flushing {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = b.clock.AfterFunc(b.window, func() {
		if err := b.Flush(context.Background()); err != nil {
			slog.Error("search index batch flush", "error", err)
		}
	})
}

// Pending returns the number of queued, not yet flushed entities.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.upserts) + len(b.removes)
}

// Flush applies every queued write now. It is single-flight: a concurrent
// call returns immediately and the overlapping writes are picked up by the
// rearmed timer.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	if b.flushing {
		b.mu.Unlock()
		return nil
	}
	b.flushing = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	upserts := b.upserts
	removes := b.removes
	b.upserts = make(map[uuid.UUID]pendingVec)
	b.removes = make(map[uuid.UUID]struct{})
	b.mu.Unlock()

	var firstErr error
	if len(removes) > 0 {
		keys := make([]uuid.UUID, 0, len(removes))
		for k := range removes {
			keys = append(keys, k)
		}
		if err := b.idx.Remove(ctx, keys...); err != nil {
			firstErr = err
			slog.Error("batch remove", "count", len(keys), "error", err)
		}
	}
	for key, p := range upserts {
		if err := b.idx.Upsert(ctx, key, p.ownerID, p.vec); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			slog.Error("batch upsert", "key", key, "error", err)
		}
	}

	observability.IndexBatchFlushes.Inc()
	observability.IndexBatchSize.Observe(float64(len(upserts) + len(removes)))

	b.mu.Lock()
	b.flushing = false
	if len(b.upserts)+len(b.removes) > 0 {
		b.arm()
	}
	b.mu.Unlock()

	return firstErr
}
