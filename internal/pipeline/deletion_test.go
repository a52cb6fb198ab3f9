package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/models"
)

func TestAssetDeletion_FansOutCleanup(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := uuid.New()

	asset := env.addImageAsset(owner, []byte("image"))
	asset.PreviewPath = "derived/preview.jpg"
	asset.ThumbnailPath = "derived/thumbnail.jpg"
	for i := 0; i < 2; i++ {
		face := &models.Face{ID: uuid.New(), AssetID: asset.ID}
		if err := env.store.CreateFace(ctx, face); err != nil {
			t.Fatalf("seed face: %v", err)
		}
	}

	if err := env.p.HandleAssetDeletion(ctx, entityJob(t, jobs.AssetDeletion, asset.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if _, err := env.store.GetAsset(ctx, asset.ID); err == nil {
		t.Error("expected asset row to be gone")
	}
	if got := env.queue.ByName(jobs.SearchRemoveFace); len(got) != 2 {
		t.Errorf("expected 2 face removal jobs, got %d", len(got))
	}
	if got := env.queue.ByName(jobs.SearchRemoveAsset); len(got) != 1 {
		t.Errorf("expected 1 asset removal job, got %d", len(got))
	}

	deletes := env.queue.ByName(jobs.DeleteFiles)
	if len(deletes) != 1 {
		t.Fatalf("expected 1 delete-files job, got %d", len(deletes))
	}
	var payload jobs.DeleteFilesPayload
	if err := deletes[0].Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	// Thumbnail, preview, encoded video, sidecar, original: all five slots,
	// including the ones never produced.
	if len(payload.Files) != 5 {
		t.Errorf("expected 5 file entries, got %d", len(payload.Files))
	}
	if payload.Files[4] != asset.OriginalPath {
		t.Errorf("expected original path last, got %q", payload.Files[4])
	}
}

func TestAssetDeletion_MissingAssetIsNoop(t *testing.T) {
	env := newTestEnv()

	err := env.p.HandleAssetDeletion(context.Background(), entityJob(t, jobs.AssetDeletion, uuid.New()))

	if err != nil {
		t.Fatalf("expected redelivery after deletion to succeed, got %v", err)
	}
	if len(env.queue.Jobs()) != 0 {
		t.Errorf("expected no cleanup jobs for a missing asset, got %d", len(env.queue.Jobs()))
	}
}

func TestSearchRemoveAsset_QueuesBatchedRemoval(t *testing.T) {
	env := newTestEnv()

	err := env.p.HandleSearchRemoveAsset(context.Background(), entityJob(t, jobs.SearchRemoveAsset, uuid.New()))

	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if env.batch.Pending() != 1 {
		t.Errorf("expected 1 pending batch entry, got %d", env.batch.Pending())
	}
}

func TestSearchRemoveFace_DropsEmbedding(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	faceID := uuid.New()

	if err := env.faceIdx.Upsert(ctx, faceID, uuid.New(), []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	if err := env.p.HandleSearchRemoveFace(ctx, entityJob(t, jobs.SearchRemoveFace, faceID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if env.faceIdx.Count() != 0 {
		t.Errorf("expected face embedding removed, got %d entries", env.faceIdx.Count())
	}
}

func TestDeleteFiles_SkipsEmptyEntries(t *testing.T) {
	env := newTestEnv()

	job, err := jobs.NewJob(jobs.DeleteFiles, jobs.DeleteFilesPayload{
		Files: []string{"", "derived/thumbnail.jpg", "", "originals/a.jpg"},
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := env.p.HandleDeleteFiles(context.Background(), job); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(env.blobs.deleted) != 1 {
		t.Fatalf("expected one delete call, got %d", len(env.blobs.deleted))
	}
	if got := env.blobs.deleted[0]; len(got) != 2 {
		t.Errorf("expected 2 keys after filtering empties, got %v", got)
	}
}

func TestDeleteFiles_AllEmptySkipsStore(t *testing.T) {
	env := newTestEnv()

	job, err := jobs.NewJob(jobs.DeleteFiles, jobs.DeleteFilesPayload{Files: []string{"", ""}})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := env.p.HandleDeleteFiles(context.Background(), job); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(env.blobs.deleted) != 0 {
		t.Errorf("expected no delete calls, got %d", len(env.blobs.deleted))
	}
}
