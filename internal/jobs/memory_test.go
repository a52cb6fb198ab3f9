package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/apperr"
)

type recordingSink struct {
	mu       sync.Mutex
	failures []Job
}

func (s *recordingSink) RecordJobFailure(_ context.Context, job Job, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, job)
	return nil
}

func (s *recordingSink) Failures() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.failures))
	copy(out, s.failures)
	return out
}

func TestMemoryQueue_RetryUntilExhaustedRecordsOneFailure(t *testing.T) {
	var attempts atomic.Int32
	reg := NewRegistry()
	reg.Register(MetadataExtraction, func(context.Context, Job) error {
		attempts.Add(1)
		return apperr.New(apperr.KindTransient, "downstream unavailable")
	})

	sink := &recordingSink{}
	q := NewMemoryQueue(reg, RetryPolicy{MaxAttempts: 3}, nil, 1, sink)
	q.Start(context.Background())
	defer q.Stop()

	job, _ := NewJob(MetadataExtraction, EntityPayload{ID: uuid.New()})
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Wait()

	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	failures := sink.Failures()
	if len(failures) != 1 {
		t.Fatalf("expected exactly 1 recorded failure, got %d", len(failures))
	}
	if failures[0].Attempts != 3 {
		t.Errorf("expected recorded attempts 3, got %d", failures[0].Attempts)
	}
}

func TestMemoryQueue_ValidationErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	reg := NewRegistry()
	reg.Register(FaceDetection, func(context.Context, Job) error {
		attempts.Add(1)
		return apperr.New(apperr.KindValidation, "bad payload")
	})

	sink := &recordingSink{}
	q := NewMemoryQueue(reg, RetryPolicy{MaxAttempts: 3}, nil, 1, sink)
	q.Start(context.Background())
	defer q.Stop()

	job, _ := NewJob(FaceDetection, EntityPayload{ID: uuid.New()})
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Wait()

	if got := attempts.Load(); got != 1 {
		t.Errorf("expected a single attempt for a terminal error, got %d", got)
	}
	if len(sink.Failures()) != 1 {
		t.Errorf("expected the terminal failure to be recorded")
	}
}

func TestMemoryQueue_HandlersChainJobs(t *testing.T) {
	var chained atomic.Int32
	reg := NewRegistry()

	var q *MemoryQueue
	reg.Register(MetadataExtraction, func(ctx context.Context, job Job) error {
		next, err := NewJob(ThumbnailGeneration, EntityPayload{ID: uuid.New()})
		if err != nil {
			return err
		}
		return q.Enqueue(ctx, next)
	})
	reg.Register(ThumbnailGeneration, func(context.Context, Job) error {
		chained.Add(1)
		return nil
	})

	q = NewMemoryQueue(reg, RetryPolicy{MaxAttempts: 3}, nil, 2, nil)
	q.Start(context.Background())
	defer q.Stop()

	job, _ := NewJob(MetadataExtraction, EntityPayload{ID: uuid.New()})
	if err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Wait()

	if got := chained.Load(); got != 1 {
		t.Errorf("expected chained job to run once, got %d", got)
	}
}

func TestMemoryQueue_RejectsUnknownJobName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(MetadataExtraction, func(context.Context, Job) error { return nil })

	q := NewMemoryQueue(reg, RetryPolicy{MaxAttempts: 1}, nil, 1, nil)
	q.Start(context.Background())
	defer q.Stop()

	err := q.Enqueue(context.Background(), Job{Name: "bogus"})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
