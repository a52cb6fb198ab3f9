package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/index"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/ml"
	"github.com/your-org/mediavault/internal/models"
	"github.com/your-org/mediavault/internal/observability"
)

// HandleFaceDetection runs the facial model once per asset and resolves
// each detected face to an identity: nearest indexed face within the
// configured cosine distance joins that person, anything further away
// founds a new one. Re-delivery replaces the asset's faces wholesale, so
// the handler is idempotent without tracking per-face state.
func (p *Pipeline) HandleFaceDetection(ctx context.Context, job jobs.Job) error {
	var payload jobs.EntityPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	asset, err := p.store.GetAsset(ctx, payload.ID)
	if err != nil {
		return err
	}
	if asset.Type != models.AssetTypeImage {
		slog.Debug("skipping face detection for non-image asset", "asset_id", asset.ID, "type", asset.Type)
		return nil
	}

	data, err := p.blobs.GetObject(ctx, asset.OriginalPath)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	detected, err := p.infer.DetectFaces(ctx, data)
	if err != nil {
		return err
	}

	// Drop any faces from a previous delivery before re-creating them.
	staleIDs, err := p.store.DeleteFacesByAsset(ctx, asset.ID)
	if err != nil {
		return err
	}
	if len(staleIDs) > 0 {
		if err := p.faces.Remove(ctx, staleIDs...); err != nil {
			return err
		}
	}

	for _, d := range detected {
		if err := p.resolveFace(ctx, asset, d); err != nil {
			return err
		}
		observability.FacesDetected.Inc()
	}

	if len(detected) > 0 {
		p.notifyAsset("asset.faces", asset.ID)
	}
	return nil
}

func (p *Pipeline) resolveFace(ctx context.Context, asset *models.Asset, d ml.DetectedFace) error {
	emb := index.Normalize(d.Embedding)

	scope := index.Scope{OwnerIDs: []uuid.UUID{asset.OwnerID}, WithArchived: true}
	matches, err := p.faces.Search(ctx, emb, scope, 1)
	if err != nil {
		return err
	}

	var personID *uuid.UUID
	if len(matches) > 0 && matches[0].Distance <= p.cfg.MaxDistance {
		personID, err = p.store.GetFacePerson(ctx, matches[0].Key)
		if err != nil {
			return err
		}
	}

	face := &models.Face{
		ID:          uuid.New(),
		AssetID:     asset.ID,
		BoundingBox: d.BoundingBox,
		ImageWidth:  d.ImageWidth,
		ImageHeight: d.ImageHeight,
	}

	if personID != nil {
		face.PersonID = personID
		observability.FacesMatched.WithLabelValues("matched").Inc()
	} else {
		person := &models.Person{ID: uuid.New(), OwnerID: asset.OwnerID}
		if err := p.store.CreatePerson(ctx, person); err != nil {
			return err
		}
		face.PersonID = &person.ID
		observability.FacesMatched.WithLabelValues("new_person").Inc()

		crop := jobs.FaceThumbnailPayload{
			AssetID:     asset.ID,
			PersonID:    person.ID,
			BoundingBox: d.BoundingBox.Expand(p.cfg.ThumbnailMargin, d.ImageWidth, d.ImageHeight),
			ImageWidth:  d.ImageWidth,
			ImageHeight: d.ImageHeight,
		}
		// A missing person thumbnail is cosmetic; never fail the whole
		// asset's detection over it.
		if err := p.enqueue(ctx, jobs.FaceThumbnailCrop, crop); err != nil {
			slog.Error("enqueue face thumbnail crop", "person_id", person.ID, "error", err)
		}
	}

	if err := p.store.CreateFace(ctx, face); err != nil {
		return err
	}
	return p.faces.Upsert(ctx, face.ID, asset.OwnerID, emb)
}

// HandleFaceThumbnailCrop cuts the expanded face region out of the
// original image and stores it as the person's thumbnail.
func (p *Pipeline) HandleFaceThumbnailCrop(ctx context.Context, job jobs.Job) error {
	var payload jobs.FaceThumbnailPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	asset, err := p.store.GetAsset(ctx, payload.AssetID)
	if err != nil {
		return err
	}

	data, err := p.blobs.GetObject(ctx, asset.OriginalPath)
	if err != nil {
		return fmt.Errorf("fetch original: %w", err)
	}

	crop, err := cropJPEG(data, payload.BoundingBox)
	if err != nil {
		return err
	}

	key := derivedKey(asset.OwnerID, asset.ID, "people/"+payload.PersonID.String()+".jpg")
	if err := p.blobs.PutObject(ctx, key, crop, "image/jpeg"); err != nil {
		return fmt.Errorf("store person thumbnail: %w", err)
	}
	return p.store.UpdatePersonThumbnail(ctx, payload.PersonID, key)
}
