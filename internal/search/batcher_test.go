package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/config"
	"github.com/your-org/mediavault/internal/index"
)

type fakeTimer struct {
	clock *fakeClock
	id    int
}

func (t fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.clock.stopped[t.id] {
		return false
	}
	t.clock.stopped[t.id] = true
	return true
}

// fakeClock collects scheduled callbacks and fires the live ones on
// demand. Stopped timers never fire, mirroring time.AfterFunc.
type fakeClock struct {
	mu      sync.Mutex
	fns     []func()
	stopped map[int]bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{stopped: make(map[int]bool)}
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fns = append(c.fns, f)
	return fakeTimer{clock: c, id: len(c.fns) - 1}
}

// armed counts timers that are scheduled and not stopped.
func (c *fakeClock) armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id := range c.fns {
		if !c.stopped[id] {
			n++
		}
	}
	return n
}

// scheduled counts every timer ever created, stopped or not.
func (c *fakeClock) scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

func (c *fakeClock) fire() {
	c.mu.Lock()
	var live []func()
	for id, f := range c.fns {
		if !c.stopped[id] {
			live = append(live, f)
			c.stopped[id] = true
		}
	}
	c.mu.Unlock()
	for _, f := range live {
		f()
	}
}

func testIndex() *index.MemoryIndex {
	return index.NewMemoryIndex(config.IndexConfig{
		Driver: "memory", Dimensions: 4, M: 16, EfConstruction: 200, EfSearch: 100,
	})
}

func TestBatcher_CoalescesWritesIntoOneFlush(t *testing.T) {
	idx := testIndex()
	clock := newFakeClock()
	b := NewBatcherWithClock(idx, 5*time.Second, clock)

	owner := uuid.New()
	for i := 0; i < 50; i++ {
		b.QueueUpsert(uuid.New(), owner, []float32{1, 0, 0, float32(i)})
	}

	if clock.armed() != 1 {
		t.Fatalf("expected a single armed timer for the burst, got %d", clock.armed())
	}
	if b.Pending() != 50 {
		t.Fatalf("expected 50 pending writes, got %d", b.Pending())
	}

	clock.fire()

	if idx.Count() != 50 {
		t.Errorf("expected 50 indexed vectors after flush, got %d", idx.Count())
	}
	if b.Pending() != 0 {
		t.Errorf("expected empty batch after flush, got %d", b.Pending())
	}
}

func TestBatcher_SameKeyLastWriteWins(t *testing.T) {
	idx := testIndex()
	clock := newFakeClock()
	b := NewBatcherWithClock(idx, time.Second, clock)

	key := uuid.New()
	owner := uuid.New()
	b.QueueUpsert(key, owner, []float32{1, 0, 0, 0})
	b.QueueUpsert(key, owner, []float32{0, 1, 0, 0})

	if b.Pending() != 1 {
		t.Errorf("expected repeated upserts to coalesce, got %d pending", b.Pending())
	}

	clock.fire()
	if idx.Count() != 1 {
		t.Errorf("expected 1 indexed vector, got %d", idx.Count())
	}
}

func TestBatcher_RemoveSupersedesPendingUpsert(t *testing.T) {
	idx := testIndex()
	clock := newFakeClock()
	b := NewBatcherWithClock(idx, time.Second, clock)

	key := uuid.New()
	b.QueueUpsert(key, uuid.New(), []float32{1, 0, 0, 0})
	b.QueueRemove(key)

	clock.fire()

	if idx.Count() != 0 {
		t.Errorf("expected the removed key never indexed, got %d vectors", idx.Count())
	}
}

func TestBatcher_UpsertSupersedesPendingRemove(t *testing.T) {
	idx := testIndex()
	clock := newFakeClock()
	b := NewBatcherWithClock(idx, time.Second, clock)

	key := uuid.New()
	b.QueueRemove(key)
	b.QueueUpsert(key, uuid.New(), []float32{1, 0, 0, 0})

	clock.fire()

	if idx.Count() != 1 {
		t.Errorf("expected the re-upserted key indexed, got %d vectors", idx.Count())
	}
}

func TestBatcher_FlushReportsFirstError(t *testing.T) {
	idx := testIndex()
	b := NewBatcherWithClock(idx, time.Second, newFakeClock())

	b.QueueUpsert(uuid.New(), uuid.New(), []float32{1, 0}) // wrong width

	err := b.Flush(context.Background())

	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error from flush, got %v", err)
	}
}

func TestBatcher_BadVectorDoesNotBlockOthers(t *testing.T) {
	idx := testIndex()
	b := NewBatcherWithClock(idx, time.Second, newFakeClock())

	b.QueueUpsert(uuid.New(), uuid.New(), []float32{1, 0})
	good := uuid.New()
	b.QueueUpsert(good, uuid.New(), []float32{1, 0, 0, 0})

	if err := b.Flush(context.Background()); err == nil {
		t.Fatal("expected flush to report the bad vector")
	}
	if idx.Count() != 1 {
		t.Errorf("expected the good vector applied despite the bad one, got %d", idx.Count())
	}
}

func TestBatcher_NewEventPostponesFlush(t *testing.T) {
	idx := testIndex()
	clock := newFakeClock()
	b := NewBatcherWithClock(idx, time.Second, clock)

	b.QueueUpsert(uuid.New(), uuid.New(), []float32{1, 0, 0, 0})
	b.QueueUpsert(uuid.New(), uuid.New(), []float32{0, 1, 0, 0})

	// The second event must stop the first timer and start a fresh window.
	if clock.scheduled() != 2 {
		t.Fatalf("expected the second event to restart the timer, got %d scheduled", clock.scheduled())
	}
	if clock.armed() != 1 {
		t.Fatalf("expected exactly one live timer, got %d", clock.armed())
	}

	clock.fire()

	if idx.Count() != 2 {
		t.Errorf("expected one flush applying both writes, got %d vectors", idx.Count())
	}
}

func TestBatcher_NewEventsRearmAfterFlush(t *testing.T) {
	idx := testIndex()
	clock := newFakeClock()
	b := NewBatcherWithClock(idx, time.Second, clock)

	b.QueueUpsert(uuid.New(), uuid.New(), []float32{1, 0, 0, 0})
	clock.fire()

	b.QueueUpsert(uuid.New(), uuid.New(), []float32{0, 1, 0, 0})
	if clock.armed() != 1 {
		t.Fatalf("expected the next event to arm a fresh timer, got %d", clock.armed())
	}
	clock.fire()

	if idx.Count() != 2 {
		t.Errorf("expected both windows flushed, got %d vectors", idx.Count())
	}
}
