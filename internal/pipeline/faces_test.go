package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/ml"
	"github.com/your-org/mediavault/internal/models"
)

func TestFaceDetection_AttachesToExistingPerson(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := uuid.New()

	// An older asset already contributed a face for this person.
	person := &models.Person{ID: uuid.New(), OwnerID: owner}
	if err := env.store.CreatePerson(ctx, person); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	known := &models.Face{ID: uuid.New(), AssetID: uuid.New(), PersonID: &person.ID}
	if err := env.store.CreateFace(ctx, known); err != nil {
		t.Fatalf("seed face: %v", err)
	}
	if err := env.faceIdx.Upsert(ctx, known.ID, owner, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	asset := env.addImageAsset(owner, []byte("image"))
	env.infer.faces = []ml.DetectedFace{{
		BoundingBox: models.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50},
		Embedding:   []float32{1, 0, 0, 0},
		ImageWidth:  100,
		ImageHeight: 80,
	}}

	if err := env.p.HandleFaceDetection(ctx, entityJob(t, jobs.FaceDetection, asset.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	faces, _ := env.store.ListFacesByAsset(ctx, asset.ID)
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	if faces[0].PersonID == nil || *faces[0].PersonID != person.ID {
		t.Error("expected the face to join the existing person")
	}
	if env.store.personCount() != 1 {
		t.Errorf("expected no new person, got %d persons", env.store.personCount())
	}
	if got := env.queue.ByName(jobs.FaceThumbnailCrop); len(got) != 0 {
		t.Errorf("expected no thumbnail crop for a matched face, got %d jobs", len(got))
	}
}

func TestFaceDetection_FoundsNewPersonBeyondThreshold(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := uuid.New()

	// Orthogonal to the known face: cosine distance 1, over the 0.6 cutoff.
	known := &models.Face{ID: uuid.New(), AssetID: uuid.New()}
	otherPerson := &models.Person{ID: uuid.New(), OwnerID: owner}
	known.PersonID = &otherPerson.ID
	if err := env.store.CreatePerson(ctx, otherPerson); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	if err := env.store.CreateFace(ctx, known); err != nil {
		t.Fatalf("seed face: %v", err)
	}
	if err := env.faceIdx.Upsert(ctx, known.ID, owner, []float32{1, 0, 0, 0}); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	asset := env.addImageAsset(owner, []byte("image"))
	env.infer.faces = []ml.DetectedFace{{
		BoundingBox: models.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50},
		Embedding:   []float32{0, 1, 0, 0},
		ImageWidth:  100,
		ImageHeight: 80,
	}}

	if err := env.p.HandleFaceDetection(ctx, entityJob(t, jobs.FaceDetection, asset.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if env.store.personCount() != 2 {
		t.Fatalf("expected a second person, got %d", env.store.personCount())
	}
	faces, _ := env.store.ListFacesByAsset(ctx, asset.ID)
	if len(faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(faces))
	}
	if faces[0].PersonID == nil || *faces[0].PersonID == otherPerson.ID {
		t.Error("expected the face to found a new person, not join the distant one")
	}

	crops := env.queue.ByName(jobs.FaceThumbnailCrop)
	if len(crops) != 1 {
		t.Fatalf("expected 1 thumbnail crop job, got %d", len(crops))
	}
	var payload jobs.FaceThumbnailPayload
	if err := crops[0].Decode(&payload); err != nil {
		t.Fatalf("decode crop payload: %v", err)
	}
	// Margin 30 around (10,10,50,50) clamped to a 100x80 image.
	want := models.BoundingBox{X1: 0, Y1: 0, X2: 80, Y2: 80}
	if payload.BoundingBox != want {
		t.Errorf("expected expanded box %+v, got %+v", want, payload.BoundingBox)
	}
}

func TestFaceDetection_RedeliveryReplacesFaces(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := uuid.New()

	asset := env.addImageAsset(owner, []byte("image"))
	env.infer.faces = []ml.DetectedFace{{
		BoundingBox: models.BoundingBox{X1: 1, Y1: 1, X2: 5, Y2: 5},
		Embedding:   []float32{1, 0, 0, 0},
		ImageWidth:  100,
		ImageHeight: 80,
	}}

	job := entityJob(t, jobs.FaceDetection, asset.ID)
	if err := env.p.HandleFaceDetection(ctx, job); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := env.p.HandleFaceDetection(ctx, job); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	faces, _ := env.store.ListFacesByAsset(ctx, asset.ID)
	if len(faces) != 1 {
		t.Errorf("expected redelivery to replace faces, got %d rows", len(faces))
	}
	if env.faceIdx.Count() != 1 {
		t.Errorf("expected 1 indexed embedding after redelivery, got %d", env.faceIdx.Count())
	}
}

func TestFaceDetection_SkipsNonImageAssets(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := uuid.New()

	asset := env.addImageAsset(owner, []byte("video"))
	asset.Type = models.AssetTypeVideo

	if err := env.p.HandleFaceDetection(ctx, entityJob(t, jobs.FaceDetection, asset.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if env.infer.detectCalls != 0 {
		t.Errorf("expected no inference for a video asset, got %d calls", env.infer.detectCalls)
	}
}

func TestFaceThumbnailCrop_StoresPersonThumbnail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	owner := uuid.New()

	person := &models.Person{ID: uuid.New(), OwnerID: owner}
	if err := env.store.CreatePerson(ctx, person); err != nil {
		t.Fatalf("seed person: %v", err)
	}
	asset := env.addImageAsset(owner, jpegBytes(t, 100, 80))

	job, err := jobs.NewJob(jobs.FaceThumbnailCrop, jobs.FaceThumbnailPayload{
		AssetID:     asset.ID,
		PersonID:    person.ID,
		BoundingBox: models.BoundingBox{X1: 0, Y1: 0, X2: 40, Y2: 40},
		ImageWidth:  100,
		ImageHeight: 80,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := env.p.HandleFaceThumbnailCrop(ctx, job); err != nil {
		t.Fatalf("handle: %v", err)
	}

	stored := env.store.persons[person.ID].ThumbnailPath
	if stored == "" {
		t.Fatal("expected person thumbnail path to be set")
	}
	if _, err := env.blobs.GetObject(ctx, stored); err != nil {
		t.Errorf("expected crop blob at %s: %v", stored, err)
	}
}
