package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/your-org/mediavault/internal/index"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/models"
)

// HandleSmartSearchIndex embeds the asset image, stores its classification
// tags, and queues the vector for the debounced index batcher. The write
// becomes visible to searches at the next batch flush, not immediately.
func (p *Pipeline) HandleSmartSearchIndex(ctx context.Context, job jobs.Job) error {
	var payload jobs.EntityPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	asset, err := p.store.GetAsset(ctx, payload.ID)
	if err != nil {
		return err
	}
	if asset.Type != models.AssetTypeImage {
		slog.Debug("skipping smart indexing for non-image asset", "asset_id", asset.ID, "type", asset.Type)
		return nil
	}

	data, err := p.blobs.GetObject(ctx, asset.OriginalPath)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	vec, err := p.infer.EncodeImage(ctx, data)
	if err != nil {
		return err
	}

	tags, err := p.infer.ClassifyImage(ctx, data)
	if err != nil {
		return err
	}
	if err := p.store.UpdateExifTags(ctx, asset.ID, tags); err != nil {
		return err
	}

	p.batch.QueueUpsert(asset.ID, asset.OwnerID, index.Normalize(vec))
	return nil
}
