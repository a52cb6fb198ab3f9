package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/models"
)

const (
	previewMaxSize   = 1440
	thumbnailMaxSize = 250
)

// HandleThumbnailGeneration produces the large preview and the small grid
// thumbnail for an image asset. Output keys are deterministic per asset,
// so a re-delivered job overwrites the same objects.
func (p *Pipeline) HandleThumbnailGeneration(ctx context.Context, job jobs.Job) error {
	var payload jobs.EntityPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	asset, err := p.store.GetAsset(ctx, payload.ID)
	if err != nil {
		return err
	}
	if asset.Type != models.AssetTypeImage {
		// Video previews need a frame extractor this process does not run.
		slog.Debug("skipping thumbnails for non-image asset", "asset_id", asset.ID, "type", asset.Type)
		return nil
	}

	data, err := p.blobs.GetObject(ctx, asset.OriginalPath)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	preview, err := resizeJPEG(data, previewMaxSize)
	if err != nil {
		return err
	}
	thumb, err := resizeJPEG(data, thumbnailMaxSize)
	if err != nil {
		return err
	}

	previewKey := derivedKey(asset.OwnerID, asset.ID, "preview.jpg")
	thumbKey := derivedKey(asset.OwnerID, asset.ID, "thumbnail.jpg")
	if err := p.blobs.PutObject(ctx, previewKey, preview, "image/jpeg"); err != nil {
		return fmt.Errorf("store preview: %w", err)
	}
	if err := p.blobs.PutObject(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}

	if err := p.store.UpdateAssetPaths(ctx, asset.ID, previewKey, thumbKey, ""); err != nil {
		return err
	}

	p.notifyAsset("asset.thumbnails", asset.ID)
	return nil
}

func derivedKey(ownerID, assetID uuid.UUID, name string) string {
	return path.Join("derived", ownerID.String(), assetID.String(), name)
}
