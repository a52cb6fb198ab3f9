package jobs

import (
	"context"
	"sync"
)

// CaptureQueue records enqueued jobs without running them. Tests assert on
// the captured sequence to verify pipeline fan-out and chaining.
type CaptureQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func NewCaptureQueue() *CaptureQueue {
	return &CaptureQueue{}
}

func (q *CaptureQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// Jobs returns a copy of everything enqueued so far.
func (q *CaptureQueue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// ByName filters captured jobs by type.
func (q *CaptureQueue) ByName(name Name) []Job {
	var out []Job
	for _, j := range q.Jobs() {
		if j.Name == name {
			out = append(out, j)
		}
	}
	return out
}

// Reset drops everything captured so far.
func (q *CaptureQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
}
