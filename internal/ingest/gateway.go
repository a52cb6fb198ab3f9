// Package ingest is the single write path for new assets. Everything
// entering the system passes through the gateway: checksum, dedup,
// blob write, row insert, then the first pipeline job.
package ingest

import (
	"context"
	"crypto/sha1"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/models"
	"github.com/your-org/mediavault/internal/observability"
	"github.com/your-org/mediavault/internal/storage"
)

// Upload describes one incoming file.
type Upload struct {
	FileName       string
	ContentType    string
	Data           []byte
	IsFavorite     bool
	FileCreatedAt  *time.Time
	FileModifiedAt *time.Time
	SidecarData    []byte
}

// Result reports where the upload landed. Duplicate means the bytes were
// already known and AssetID points at the surviving asset.
type Result struct {
	AssetID   uuid.UUID
	Duplicate bool
}

// AssetStore is the slice of the relational store the gateway uses.
type AssetStore interface {
	CreateAsset(ctx context.Context, a *models.Asset) error
	GetAssetByChecksum(ctx context.Context, ownerID, libraryID uuid.UUID, checksum []byte) (*models.Asset, error)
	DeleteAsset(ctx context.Context, id uuid.UUID) error
}

type Gateway struct {
	store AssetStore
	blobs storage.ObjectStore
	queue jobs.Queue
}

func NewGateway(store AssetStore, blobs storage.ObjectStore, queue jobs.Queue) *Gateway {
	return &Gateway{store: store, blobs: blobs, queue: queue}
}

// Create ingests one upload for an owner and library. The blob is written
// before the row so a crash leaves at worst an orphan object, never a row
// pointing at missing bytes. A checksum conflict resolves to the existing
// asset instead of an error.
func (g *Gateway) Create(ctx context.Context, ownerID, libraryID uuid.UUID, up Upload) (*Result, error) {
	assetType, err := classify(up.ContentType)
	if err != nil {
		observability.AssetsIngested.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if len(up.Data) == 0 {
		observability.AssetsIngested.WithLabelValues("rejected").Inc()
		return nil, apperr.New(apperr.KindValidation, "empty upload %q", up.FileName)
	}

	sum := sha1.Sum(up.Data)
	checksum := sum[:]

	asset := &models.Asset{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		LibraryID:        libraryID,
		Type:             assetType,
		Checksum:         checksum,
		OriginalFileName: path.Base(up.FileName),
		IsFavorite:       up.IsFavorite,
		IsVisible:        true,
		FileCreatedAt:    timeOrNow(up.FileCreatedAt),
		FileModifiedAt:   timeOrNow(up.FileModifiedAt),
	}
	asset.OriginalPath = originalKey(ownerID, asset.ID, asset.OriginalFileName)

	if err := g.blobs.PutObject(ctx, asset.OriginalPath, up.Data, up.ContentType); err != nil {
		observability.AssetsIngested.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store original: %w", err)
	}

	if len(up.SidecarData) > 0 {
		asset.SidecarPath = asset.OriginalPath + ".xmp"
		if err := g.blobs.PutObject(ctx, asset.SidecarPath, up.SidecarData, "application/xml"); err != nil {
			g.cleanupBlob(ctx, asset.OriginalPath)
			observability.AssetsIngested.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("store sidecar: %w", err)
		}
	}

	if err := g.store.CreateAsset(ctx, asset); err != nil {
		g.cleanupBlob(ctx, asset.OriginalPath)
		if asset.SidecarPath != "" {
			g.cleanupBlob(ctx, asset.SidecarPath)
		}
		if apperr.IsConflict(err) {
			existing, lookupErr := g.store.GetAssetByChecksum(ctx, ownerID, libraryID, checksum)
			if lookupErr != nil {
				// The winning row vanished between insert and lookup.
				return nil, fmt.Errorf("resolve duplicate: %w", lookupErr)
			}
			observability.AssetsIngested.WithLabelValues("duplicate").Inc()
			slog.Info("duplicate upload resolved",
				"owner_id", ownerID, "asset_id", existing.ID, "file", up.FileName)
			return &Result{AssetID: existing.ID, Duplicate: true}, nil
		}
		observability.AssetsIngested.WithLabelValues("error").Inc()
		return nil, err
	}

	// Enqueue before reporting success so the caller never sees an asset
	// the pipeline will not process.
	job, err := jobs.NewJob(jobs.MetadataExtraction, jobs.EntityPayload{ID: asset.ID, Source: "upload"})
	if err == nil {
		err = g.queue.Enqueue(ctx, job)
	}
	if err != nil {
		_ = g.store.DeleteAsset(ctx, asset.ID)
		g.cleanupBlob(ctx, asset.OriginalPath)
		if asset.SidecarPath != "" {
			g.cleanupBlob(ctx, asset.SidecarPath)
		}
		observability.AssetsIngested.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("enqueue metadata extraction: %w", err)
	}

	observability.AssetsIngested.WithLabelValues("created").Inc()
	return &Result{AssetID: asset.ID, Duplicate: false}, nil
}

func (g *Gateway) cleanupBlob(ctx context.Context, key string) {
	if err := g.blobs.DeleteObject(ctx, key); err != nil {
		slog.Warn("orphan blob left behind", "key", key, "error", err)
	}
}

func classify(contentType string) (models.AssetType, error) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.AssetTypeImage, nil
	case strings.HasPrefix(contentType, "video/"):
		return models.AssetTypeVideo, nil
	default:
		return "", apperr.New(apperr.KindValidation, "unsupported content type %q", contentType)
	}
}

func originalKey(ownerID, assetID uuid.UUID, fileName string) string {
	return path.Join("originals", ownerID.String(), assetID.String(), fileName)
}

func timeOrNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now().UTC()
}
