package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/models"
)

// HandleMetadataExtraction writes the exif row for an asset and fans out
// the remaining pipeline stages. The row is overwritten on re-delivery,
// and the fan-out jobs dedup on their entity id, so at-least-once
// delivery converges to the same state.
func (p *Pipeline) HandleMetadataExtraction(ctx context.Context, job jobs.Job) error {
	var payload jobs.EntityPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	asset, err := p.store.GetAsset(ctx, payload.ID)
	if err != nil {
		return err
	}

	data, err := p.blobs.GetObject(ctx, asset.OriginalPath)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	e := extractMetadata(asset, data)
	if err := p.store.UpsertExif(ctx, e); err != nil {
		return err
	}

	for _, next := range []jobs.Name{jobs.ThumbnailGeneration, jobs.FaceDetection, jobs.SmartSearchIndex} {
		if err := p.enqueue(ctx, next, jobs.EntityPayload{ID: asset.ID, Source: payload.Source}); err != nil {
			return fmt.Errorf("enqueue %s: %w", next, err)
		}
	}

	p.notifyAsset("asset.metadata", asset.ID)
	return nil
}

// extractMetadata parses what it can out of the original bytes. A file
// with no exif block, or a corrupt one, still yields a row with the
// dimensions and file size; tags are best effort.
func extractMetadata(asset *models.Asset, data []byte) *models.Exif {
	e := &models.Exif{
		AssetID:         asset.ID,
		FileSizeInBytes: int64(len(data)),
	}

	if asset.Type == models.AssetTypeImage {
		if w, h, err := imageSize(data); err == nil {
			e.ImageWidth = w
			e.ImageHeight = h
		}
	}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Debug("no exif block", "asset_id", asset.ID, "error", err)
		return e
	}

	e.Make = stringTag(x, exif.Make)
	e.Model = stringTag(x, exif.Model)
	e.Description = stringTag(x, exif.ImageDescription)
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			e.Orientation = strconv.Itoa(v)
		}
	}
	if dt, err := x.DateTime(); err == nil {
		utc := dt.UTC()
		e.DateTimeOriginal = &utc
	}
	if lat, lon, err := x.LatLong(); err == nil {
		e.Latitude = &lat
		e.Longitude = &lon
		// City, state and country need a reverse geocoder, which this
		// deployment does not ship. They stay empty unless set elsewhere.
	}
	return e
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	v, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return v
}
