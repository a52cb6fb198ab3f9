package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/observability"
)

const (
	jobsStreamName  = "JOBS"
	jobsSubjectBase = "jobs"

	// dedupWindow is the JetStream msg-ID duplicate window. Identical job
	// IDs enqueued within it collapse to a single delivery.
	dedupWindow = 30 * time.Second
)

// NatsQueue is the production orchestrator: one JetStream work-queue stream,
// one durable consumer per job type, explicit acks, Nak-with-delay backoff.
type NatsQueue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewNatsQueue(natsURL string) (*NatsQueue, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &NatsQueue{nc: nc, js: js}, nil
}

// EnsureStream creates the JOBS stream if it doesn't exist. Retries to
// handle NATS startup delay.
func (q *NatsQueue) EnsureStream(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        jobsStreamName,
		Subjects:    []string{jobsSubjectBase + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		MaxMsgs:     1_000_000,
		Duplicates:  dedupWindow,
		Description: "Asset derived-data pipeline jobs",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := q.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", jobsStreamName)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

func (q *NatsQueue) Enqueue(ctx context.Context, job Job) error {
	if !validName(job.Name) {
		return apperr.New(apperr.KindValidation, "unknown job name %q", job.Name)
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "marshal job")
	}
	subject := fmt.Sprintf("%s.%s", jobsSubjectBase, job.Name)
	_, err = q.js.Publish(ctx, subject, payload, jetstream.WithMsgID(job.ID))
	if err != nil {
		return fmt.Errorf("publish job %s: %w", job.Name, err)
	}
	return nil
}

// Dispatch starts one durable consumer per registered job type, each with
// its own bounded worker pool. MaxDeliver is derived from the retry policy;
// a delivery that exhausts it is recorded through sink and terminated.
func (q *NatsQueue) Dispatch(ctx context.Context, reg *Registry, policy RetryPolicy, workers map[Name]int, defaultWorkers int, sink FailureSink) error {
	stream, err := q.js.Stream(ctx, jobsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", jobsStreamName, err)
	}

	for _, name := range reg.Names() {
		n := workers[name]
		if n <= 0 {
			n = defaultWorkers
		}
		if n <= 0 {
			n = 1
		}
		if err := q.consume(ctx, stream, reg, policy, name, n, sink); err != nil {
			return err
		}
	}
	return nil
}

func (q *NatsQueue) consume(ctx context.Context, stream jetstream.Stream, reg *Registry, policy RetryPolicy, name Name, workerCount int, sink FailureSink) error {
	consumerName := "pipeline-" + string(name)
	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       2 * time.Minute,
		MaxDeliver:    policy.MaxAttempts,
		FilterSubject: fmt.Sprintf("%s.%s", jobsSubjectBase, name),
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	go func() {
		for {
			select {
			case <-ctx.Done():
				close(msgCh)
				return
			default:
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					close(msgCh)
					return
				}
				slog.Warn("fetch jobs error", "job", name, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					close(msgCh)
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func() {
			for msg := range msgCh {
				q.processMsg(ctx, reg, policy, msg, sink)
			}
		}()
	}

	slog.Info("job consumer started", "job", name, "workers", workerCount)
	return nil
}

func (q *NatsQueue) processMsg(ctx context.Context, reg *Registry, policy RetryPolicy, msg jetstream.Msg, sink FailureSink) {
	var job Job
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		// A payload that never unmarshals can never succeed.
		slog.Error("unmarshal job", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}

	attempt := 1
	if meta, err := msg.Metadata(); err == nil {
		attempt = int(meta.NumDelivered)
	}
	job.Attempts = attempt

	err := reg.Handle(ctx, job)
	if err == nil {
		observability.JobsProcessed.WithLabelValues(string(job.Name), "ok").Inc()
		_ = msg.Ack()
		return
	}

	if apperr.Retryable(err) && attempt < policy.MaxAttempts {
		observability.JobsProcessed.WithLabelValues(string(job.Name), "retry").Inc()
		slog.Warn("job failed, redelivering",
			"job", job.Name, "id", job.ID, "attempt", attempt, "error", err)
		delay := time.Duration(0)
		if policy.Backoff != nil {
			delay = policy.Backoff(attempt)
		}
		_ = msg.NakWithDelay(delay)
		return
	}

	observability.JobsProcessed.WithLabelValues(string(job.Name), "failed").Inc()
	slog.Error("job permanently failed",
		"job", job.Name, "id", job.ID, "attempts", attempt, "error", err)
	if sink != nil {
		if sinkErr := sink.RecordJobFailure(ctx, job, err); sinkErr != nil {
			slog.Error("record job failure", "job", job.Name, "id", job.ID, "error", sinkErr)
		}
	}
	_ = msg.Term()
}

// QueueDepth returns the number of pending jobs in the stream.
func (q *NatsQueue) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := q.js.Stream(ctx, jobsStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (q *NatsQueue) Ping() error {
	if !q.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (q *NatsQueue) Close() {
	q.nc.Close()
}
