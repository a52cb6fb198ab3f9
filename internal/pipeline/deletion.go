package pipeline

import (
	"context"
	"log/slog"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/jobs"
)

// HandleAssetDeletion removes the asset row and fans out the cleanup: one
// search removal per face, one for the asset embedding, and one
// file-deletion job listing every path known for the asset. The row goes
// first; the async cleanup jobs then work from the snapshot captured
// here, so a crash between steps re-runs against a row that is already
// gone and converges via the not-found short circuit.
func (p *Pipeline) HandleAssetDeletion(ctx context.Context, job jobs.Job) error {
	var payload jobs.EntityPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	asset, err := p.store.GetAsset(ctx, payload.ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Re-delivered after the row was deleted; nothing left to do.
			return nil
		}
		return err
	}

	faces, err := p.store.ListFacesByAsset(ctx, asset.ID)
	if err != nil {
		return err
	}
	files := asset.DerivedFiles()

	if err := p.store.DeleteAsset(ctx, asset.ID); err != nil && !apperr.IsNotFound(err) {
		return err
	}

	for _, face := range faces {
		if err := p.enqueue(ctx, jobs.SearchRemoveFace, jobs.EntityPayload{ID: face.ID}); err != nil {
			return err
		}
	}
	if err := p.enqueue(ctx, jobs.SearchRemoveAsset, jobs.EntityPayload{ID: asset.ID}); err != nil {
		return err
	}
	if err := p.enqueue(ctx, jobs.DeleteFiles, jobs.DeleteFilesPayload{Files: files}); err != nil {
		return err
	}

	p.notifyAsset("asset.deleted", asset.ID)
	return nil
}

// HandleSearchRemoveAsset queues removal of the asset embedding; it is
// applied at the next batch flush.
func (p *Pipeline) HandleSearchRemoveAsset(ctx context.Context, job jobs.Job) error {
	var payload jobs.EntityPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	p.batch.QueueRemove(payload.ID)
	return nil
}

// HandleSearchRemoveFace drops one face embedding from the face index.
func (p *Pipeline) HandleSearchRemoveFace(ctx context.Context, job jobs.Job) error {
	var payload jobs.EntityPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	return p.faces.Remove(ctx, payload.ID)
}

// HandleDeleteFiles removes the listed blobs. Entries for artifacts that
// were never produced arrive empty and are skipped.
func (p *Pipeline) HandleDeleteFiles(ctx context.Context, job jobs.Job) error {
	var payload jobs.DeleteFilesPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	keys := make([]string, 0, len(payload.Files))
	for _, f := range payload.Files {
		if f != "" {
			keys = append(keys, f)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := p.blobs.DeleteObjects(ctx, keys); err != nil {
		return err
	}
	slog.Info("deleted asset files", "count", len(keys))
	return nil
}
