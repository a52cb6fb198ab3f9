// Package pipeline holds the job handlers that turn a freshly ingested
// asset into derived data: exif row, preview and thumbnail, face
// identities, and a search embedding. Handlers are idempotent and chain
// further stages by enqueuing jobs, never by calling each other.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/config"
	"github.com/your-org/mediavault/internal/index"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/ml"
	"github.com/your-org/mediavault/internal/models"
	"github.com/your-org/mediavault/internal/search"
	"github.com/your-org/mediavault/internal/storage"
)

// Store is the slice of the relational store the handlers use.
type Store interface {
	GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error)
	UpdateAssetPaths(ctx context.Context, id uuid.UUID, previewPath, thumbnailPath, encodedVideoPath string) error
	UpsertExif(ctx context.Context, e *models.Exif) error
	UpdateExifTags(ctx context.Context, assetID uuid.UUID, tags []string) error
	DeleteAsset(ctx context.Context, id uuid.UUID) error
	CreateFace(ctx context.Context, f *models.Face) error
	ListFacesByAsset(ctx context.Context, assetID uuid.UUID) ([]models.Face, error)
	DeleteFacesByAsset(ctx context.Context, assetID uuid.UUID) ([]uuid.UUID, error)
	GetFacePerson(ctx context.Context, faceID uuid.UUID) (*uuid.UUID, error)
	CreatePerson(ctx context.Context, p *models.Person) error
	UpdatePersonThumbnail(ctx context.Context, id uuid.UUID, thumbnailPath string) error
}

// Inference is the slice of the ML sidecar client the handlers use.
type Inference interface {
	DetectFaces(ctx context.Context, image []byte) ([]ml.DetectedFace, error)
	EncodeImage(ctx context.Context, image []byte) ([]float32, error)
	ClassifyImage(ctx context.Context, image []byte) ([]string, error)
}

// Notifier pushes asset lifecycle events to connected clients. May be nil.
type Notifier interface {
	NotifyAsset(event string, assetID uuid.UUID)
}

type Pipeline struct {
	store  Store
	blobs  storage.ObjectStore
	infer  Inference
	queue  jobs.Queue
	faces  index.Index
	batch  *search.Batcher
	cfg    config.FaceMatchConfig
	notify Notifier
}

func New(store Store, blobs storage.ObjectStore, infer Inference, queue jobs.Queue,
	faces index.Index, batch *search.Batcher, cfg config.FaceMatchConfig, notify Notifier) *Pipeline {
	return &Pipeline{
		store:  store,
		blobs:  blobs,
		infer:  infer,
		queue:  queue,
		faces:  faces,
		batch:  batch,
		cfg:    cfg,
		notify: notify,
	}
}

// RegisterAll binds every pipeline stage to its job type.
func (p *Pipeline) RegisterAll(reg *jobs.Registry) {
	reg.Register(jobs.MetadataExtraction, p.HandleMetadataExtraction)
	reg.Register(jobs.ThumbnailGeneration, p.HandleThumbnailGeneration)
	reg.Register(jobs.FaceDetection, p.HandleFaceDetection)
	reg.Register(jobs.SmartSearchIndex, p.HandleSmartSearchIndex)
	reg.Register(jobs.FaceThumbnailCrop, p.HandleFaceThumbnailCrop)
	reg.Register(jobs.AssetDeletion, p.HandleAssetDeletion)
	reg.Register(jobs.SearchRemoveAsset, p.HandleSearchRemoveAsset)
	reg.Register(jobs.SearchRemoveFace, p.HandleSearchRemoveFace)
	reg.Register(jobs.DeleteFiles, p.HandleDeleteFiles)
}

func (p *Pipeline) notifyAsset(event string, assetID uuid.UUID) {
	if p.notify != nil {
		p.notify.NotifyAsset(event, assetID)
	}
}

func (p *Pipeline) enqueue(ctx context.Context, name jobs.Name, payload any) error {
	job, err := jobs.NewJob(name, payload)
	if err != nil {
		return err
	}
	return p.queue.Enqueue(ctx, job)
}
