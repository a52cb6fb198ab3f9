// Package jobs is the durable queue abstraction behind the derived-data
// pipeline: enqueue, dispatch-by-type, bounded per-type concurrency and a
// declarative retry policy. Delivery is at least once; handlers must be
// idempotent.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/models"
)

type Name string

const (
	MetadataExtraction  Name = "metadata-extraction"
	ThumbnailGeneration Name = "thumbnail-generation"
	FaceDetection       Name = "face-detection"
	SmartSearchIndex    Name = "smart-search-index"
	FaceThumbnailCrop   Name = "face-thumbnail-crop"
	AssetDeletion       Name = "asset-deletion"
	SearchRemoveAsset   Name = "search-remove-asset"
	SearchRemoveFace    Name = "search-remove-face"
	DeleteFiles         Name = "delete-files"
)

// AllNames lists every job type the dispatcher may see. Worker pools are
// sized per entry; an enqueue with a name outside this set is rejected.
var AllNames = []Name{
	MetadataExtraction,
	ThumbnailGeneration,
	FaceDetection,
	SmartSearchIndex,
	FaceThumbnailCrop,
	AssetDeletion,
	SearchRemoveAsset,
	SearchRemoveFace,
	DeleteFiles,
}

func validName(name Name) bool {
	for _, n := range AllNames {
		if n == name {
			return true
		}
	}
	return false
}

// Job is the envelope put on the queue. ID is the idempotency/dedup key and
// defaults to the target entity id, so re-enqueueing the same stage for the
// same entity inside the dedup window collapses to one delivery.
type Job struct {
	Name     Name            `json:"name"`
	ID       string          `json:"id"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// EntityPayload targets one asset (or album) by id.
type EntityPayload struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source,omitempty"`
	DeleteOld bool      `json:"delete_old,omitempty"`
}

// BulkEntityPayload targets a batch of entities.
type BulkEntityPayload struct {
	IDs []uuid.UUID `json:"ids"`
}

// FaceThumbnailPayload carries the expanded, clamped bounding box for the
// asynchronous person-thumbnail crop.
type FaceThumbnailPayload struct {
	AssetID     uuid.UUID          `json:"asset_id"`
	PersonID    uuid.UUID          `json:"person_id"`
	BoundingBox models.BoundingBox `json:"bounding_box"`
	ImageWidth  int                `json:"image_width"`
	ImageHeight int                `json:"image_height"`
}

// DeleteFilesPayload lists every derived path known for a deleted asset.
// Entries may be empty for artifacts that were never produced.
type DeleteFilesPayload struct {
	Files []string `json:"files"`
}

// NewJob marshals payload and derives the dedup key from it when it is an
// entity-shaped payload.
func NewJob(name Name, payload any) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, apperr.Wrap(apperr.KindValidation, err, "marshal job payload")
	}
	job := Job{Name: name, Payload: data}
	switch p := payload.(type) {
	case EntityPayload:
		job.ID = string(name) + ":" + p.ID.String()
	case FaceThumbnailPayload:
		job.ID = string(name) + ":" + p.AssetID.String() + ":" + p.PersonID.String()
	default:
		job.ID = string(name) + ":" + uuid.NewString()
	}
	return job, nil
}

// Decode unmarshals the payload into out, mapping malformed payloads to a
// validation error so they fail fast instead of being retried.
func (j Job) Decode(out any) error {
	if err := json.Unmarshal(j.Payload, out); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, fmt.Sprintf("decode %s payload", j.Name))
	}
	return nil
}

// Handler processes one delivery of one job.
type Handler func(ctx context.Context, job Job) error

// Queue is the enqueue side, the only dependency handlers need to chain
// further work.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// RetryPolicy is a declarative retry value passed into dispatch, instead of
// queue-infrastructure annotations. After MaxAttempts the job is marked
// permanently failed, never silently dropped.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// ExponentialBackoff doubles base per prior attempt: base, 2*base, 4*base...
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

// FailureSink receives jobs that exhausted their retry policy or failed a
// terminal (validation/invariant) error. Implementations persist them for
// operator inspection.
type FailureSink interface {
	RecordJobFailure(ctx context.Context, job Job, jobErr error) error
}

// Registry is the explicit dispatch table: one handler per job type.
type Registry struct {
	handlers map[Name]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Name]Handler)}
}

// Register binds name to handler. Binding a name twice is a programming
// error and panics at startup.
func (r *Registry) Register(name Name, handler Handler) {
	if !validName(name) {
		panic(fmt.Sprintf("jobs: unknown job name %q", name))
	}
	if _, dup := r.handlers[name]; dup {
		panic(fmt.Sprintf("jobs: duplicate handler for %q", name))
	}
	r.handlers[name] = handler
}

// Handle dispatches one delivery to the registered handler.
func (r *Registry) Handle(ctx context.Context, job Job) error {
	handler, ok := r.handlers[job.Name]
	if !ok {
		return apperr.New(apperr.KindValidation, "no handler registered for job %q", job.Name)
	}
	return handler(ctx, job)
}

// Names returns the registered job types, used to size worker pools.
func (r *Registry) Names() []Name {
	names := make([]Name, 0, len(r.handlers))
	for _, n := range AllNames {
		if _, ok := r.handlers[n]; ok {
			names = append(names, n)
		}
	}
	return names
}
