package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/observability"
)

const memoryQueueDepth = 256

// MemoryQueue is an in-process orchestrator with the same semantics as the
// NATS-backed one: per-type bounded worker pools, at-least-once handling,
// retry policy, permanent-failure recording. Used by tests and by the
// embedded single-binary deployment mode.
type MemoryQueue struct {
	reg            *Registry
	policy         RetryPolicy
	workers        map[Name]int
	defaultWorkers int
	sink           FailureSink

	mu      sync.Mutex
	chans   map[Name]chan Job
	started bool
	ctx     context.Context
	cancel  context.CancelFunc

	// pending counts jobs from first enqueue to terminal disposition, so
	// Wait observes retries and chained jobs too.
	pending sync.WaitGroup
}

func NewMemoryQueue(reg *Registry, policy RetryPolicy, workers map[Name]int, defaultWorkers int, sink FailureSink) *MemoryQueue {
	if defaultWorkers <= 0 {
		defaultWorkers = 1
	}
	return &MemoryQueue{
		reg:            reg,
		policy:         policy,
		workers:        workers,
		defaultWorkers: defaultWorkers,
		sink:           sink,
		chans:          make(map[Name]chan Job),
	}
}

// Start spawns the worker pools. Must be called before Enqueue.
func (q *MemoryQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for _, name := range q.reg.Names() {
		ch := make(chan Job, memoryQueueDepth)
		q.chans[name] = ch
		n := q.workers[name]
		if n <= 0 {
			n = q.defaultWorkers
		}
		for i := 0; i < n; i++ {
			go q.worker(ch)
		}
	}
	q.started = true
}

// Stop cancels all workers. In-flight handlers observe context cancellation.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		q.cancel()
	}
}

// Wait blocks until every enqueued job has reached a terminal state
// (success or permanent failure), including retries and chained jobs.
func (q *MemoryQueue) Wait() {
	q.pending.Wait()
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if !validName(job.Name) {
		return apperr.New(apperr.KindValidation, "unknown job name %q", job.Name)
	}
	q.mu.Lock()
	ch, ok := q.chans[job.Name]
	q.mu.Unlock()
	if !ok {
		return apperr.New(apperr.KindValidation, "no worker pool for job %q", job.Name)
	}
	q.pending.Add(1)
	select {
	case ch <- job:
		return nil
	case <-ctx.Done():
		q.pending.Done()
		return ctx.Err()
	}
}

// requeue puts a retried job back without touching the pending counter.
func (q *MemoryQueue) requeue(job Job) {
	q.mu.Lock()
	ch := q.chans[job.Name]
	q.mu.Unlock()
	select {
	case ch <- job:
	case <-q.ctx.Done():
		q.pending.Done()
	}
}

func (q *MemoryQueue) worker(ch chan Job) {
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-ch:
			q.process(job)
		}
	}
}

func (q *MemoryQueue) process(job Job) {
	err := q.reg.Handle(q.ctx, job)
	job.Attempts++

	if err == nil {
		observability.JobsProcessed.WithLabelValues(string(job.Name), "ok").Inc()
		q.pending.Done()
		return
	}

	if apperr.Retryable(err) && job.Attempts < q.policy.MaxAttempts {
		observability.JobsProcessed.WithLabelValues(string(job.Name), "retry").Inc()
		slog.Warn("job failed, retrying",
			"job", job.Name, "id", job.ID, "attempt", job.Attempts, "error", err)
		delay := time.Duration(0)
		if q.policy.Backoff != nil {
			delay = q.policy.Backoff(job.Attempts)
		}
		if delay <= 0 {
			go q.requeue(job)
		} else {
			time.AfterFunc(delay, func() { q.requeue(job) })
		}
		return
	}

	observability.JobsProcessed.WithLabelValues(string(job.Name), "failed").Inc()
	slog.Error("job permanently failed",
		"job", job.Name, "id", job.ID, "attempts", job.Attempts, "error", err)
	if q.sink != nil {
		if sinkErr := q.sink.RecordJobFailure(q.ctx, job, err); sinkErr != nil {
			slog.Error("record job failure", "job", job.Name, "id", job.ID, "error", sinkErr)
		}
	}
	q.pending.Done()
}
