package ingest

import (
	"bytes"
	"context"
	"crypto/sha1"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/models"
)

type memAssetStore struct {
	mu     sync.Mutex
	assets map[uuid.UUID]*models.Asset
}

func newMemAssetStore() *memAssetStore {
	return &memAssetStore{assets: make(map[uuid.UUID]*models.Asset)}
}

func (s *memAssetStore) CreateAsset(_ context.Context, a *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.assets {
		if existing.OwnerID == a.OwnerID && existing.LibraryID == a.LibraryID &&
			bytes.Equal(existing.Checksum, a.Checksum) {
			return apperr.New(apperr.KindConflict, "duplicate checksum")
		}
	}
	cp := *a
	s.assets[a.ID] = &cp
	return nil
}

func (s *memAssetStore) GetAssetByChecksum(_ context.Context, ownerID, libraryID uuid.UUID, checksum []byte) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assets {
		if a.OwnerID == ownerID && a.LibraryID == libraryID && bytes.Equal(a.Checksum, checksum) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "asset with checksum not found")
}

func (s *memAssetStore) DeleteAsset(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, id)
	return nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) PutObject(_ context.Context, key string, data []byte, _ string) error {
	if b.putErr != nil {
		return b.putErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBlobs) GetObject(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "object %s not found", key)
	}
	return data, nil
}

func (b *memBlobs) DeleteObject(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) DeleteObjects(_ context.Context, keys []string) error {
	for _, k := range keys {
		_ = b.DeleteObject(context.Background(), k)
	}
	return nil
}

func TestGateway_CreateNewAsset(t *testing.T) {
	store := newMemAssetStore()
	blobs := newMemBlobs()
	queue := jobs.NewCaptureQueue()
	g := NewGateway(store, blobs, queue)
	owner := uuid.New()

	result, err := g.Create(context.Background(), owner, owner, Upload{
		FileName:    "IMG_0001.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("jpeg bytes"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if result.Duplicate {
		t.Error("expected a fresh asset, got duplicate")
	}

	asset := store.assets[result.AssetID]
	if asset == nil {
		t.Fatal("expected asset row to exist")
	}
	want := sha1.Sum([]byte("jpeg bytes"))
	if !bytes.Equal(asset.Checksum, want[:]) {
		t.Error("expected checksum to be the SHA-1 of the upload")
	}
	if _, err := blobs.GetObject(context.Background(), asset.OriginalPath); err != nil {
		t.Errorf("expected original blob stored at %s: %v", asset.OriginalPath, err)
	}

	queued := queue.ByName(jobs.MetadataExtraction)
	if len(queued) != 1 {
		t.Fatalf("expected exactly 1 metadata-extraction job, got %d", len(queued))
	}
	var payload jobs.EntityPayload
	if err := queued[0].Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != result.AssetID {
		t.Errorf("expected job to target %s, got %s", result.AssetID, payload.ID)
	}
}

func TestGateway_DuplicateResolvesToExistingAsset(t *testing.T) {
	store := newMemAssetStore()
	blobs := newMemBlobs()
	queue := jobs.NewCaptureQueue()
	g := NewGateway(store, blobs, queue)
	owner := uuid.New()

	up := Upload{FileName: "a.jpg", ContentType: "image/jpeg", Data: []byte("same bytes")}
	first, err := g.Create(context.Background(), owner, owner, up)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	queue.Reset()

	second, err := g.Create(context.Background(), owner, owner, Upload{
		FileName: "b.jpg", ContentType: "image/jpeg", Data: []byte("same bytes"),
	})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}

	if !second.Duplicate {
		t.Error("expected duplicate upload to be flagged")
	}
	if second.AssetID != first.AssetID {
		t.Errorf("expected the surviving asset id %s, got %s", first.AssetID, second.AssetID)
	}
	if len(store.assets) != 1 {
		t.Errorf("expected a single asset row, got %d", len(store.assets))
	}
	if len(queue.Jobs()) != 0 {
		t.Errorf("expected no pipeline jobs for a duplicate, got %d", len(queue.Jobs()))
	}
}

func TestGateway_DifferentOwnersKeepSeparateCopies(t *testing.T) {
	store := newMemAssetStore()
	g := NewGateway(store, newMemBlobs(), jobs.NewCaptureQueue())

	data := []byte("shared bytes")
	alice := uuid.New()
	bob := uuid.New()

	a, err := g.Create(context.Background(), alice, alice, Upload{FileName: "x.jpg", ContentType: "image/jpeg", Data: data})
	if err != nil {
		t.Fatalf("create for first owner: %v", err)
	}
	b, err := g.Create(context.Background(), bob, bob, Upload{FileName: "x.jpg", ContentType: "image/jpeg", Data: data})
	if err != nil {
		t.Fatalf("create for second owner: %v", err)
	}

	if a.Duplicate || b.Duplicate {
		t.Error("dedup must be scoped per owner and library")
	}
	if a.AssetID == b.AssetID {
		t.Error("expected distinct assets per owner")
	}
}

func TestGateway_RejectsUnsupportedContentType(t *testing.T) {
	g := NewGateway(newMemAssetStore(), newMemBlobs(), jobs.NewCaptureQueue())

	_, err := g.Create(context.Background(), uuid.New(), uuid.New(), Upload{
		FileName:    "notes.txt",
		ContentType: "text/plain",
		Data:        []byte("hello"),
	})

	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGateway_RejectsEmptyUpload(t *testing.T) {
	g := NewGateway(newMemAssetStore(), newMemBlobs(), jobs.NewCaptureQueue())

	_, err := g.Create(context.Background(), uuid.New(), uuid.New(), Upload{
		FileName:    "empty.jpg",
		ContentType: "image/jpeg",
	})

	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGateway_BlobFailureLeavesNoRow(t *testing.T) {
	store := newMemAssetStore()
	blobs := newMemBlobs()
	blobs.putErr = apperr.New(apperr.KindTransient, "minio down")
	g := NewGateway(store, blobs, jobs.NewCaptureQueue())

	_, err := g.Create(context.Background(), uuid.New(), uuid.New(), Upload{
		FileName: "x.jpg", ContentType: "image/jpeg", Data: []byte("bytes"),
	})

	if err == nil {
		t.Fatal("expected error when blob store is down")
	}
	if len(store.assets) != 0 {
		t.Errorf("expected no asset row after failed blob write, got %d", len(store.assets))
	}
}
