package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/config"
	"github.com/your-org/mediavault/internal/index"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/ml"
	"github.com/your-org/mediavault/internal/models"
	"github.com/your-org/mediavault/internal/search"
)

type fakeStore struct {
	mu      sync.Mutex
	assets  map[uuid.UUID]*models.Asset
	faces   map[uuid.UUID]models.Face
	persons map[uuid.UUID]*models.Person
	exif    map[uuid.UUID]*models.Exif
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assets:  make(map[uuid.UUID]*models.Asset),
		faces:   make(map[uuid.UUID]models.Face),
		persons: make(map[uuid.UUID]*models.Person),
		exif:    make(map[uuid.UUID]*models.Exif),
	}
}

func (s *fakeStore) GetAsset(_ context.Context, id uuid.UUID) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "asset %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) UpdateAssetPaths(_ context.Context, id uuid.UUID, previewPath, thumbnailPath, encodedVideoPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assets[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "asset %s not found", id)
	}
	if previewPath != "" {
		a.PreviewPath = previewPath
	}
	if thumbnailPath != "" {
		a.ThumbnailPath = thumbnailPath
	}
	if encodedVideoPath != "" {
		a.EncodedVideoPath = encodedVideoPath
	}
	return nil
}

func (s *fakeStore) UpsertExif(_ context.Context, e *models.Exif) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if prev, ok := s.exif[e.AssetID]; ok {
		cp.Tags = prev.Tags
	}
	s.exif[e.AssetID] = &cp
	return nil
}

func (s *fakeStore) UpdateExifTags(_ context.Context, assetID uuid.UUID, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exif[assetID]
	if !ok {
		e = &models.Exif{AssetID: assetID}
		s.exif[assetID] = e
	}
	e.Tags = tags
	return nil
}

func (s *fakeStore) DeleteAsset(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[id]; !ok {
		return apperr.New(apperr.KindNotFound, "asset %s not found", id)
	}
	delete(s.assets, id)
	return nil
}

func (s *fakeStore) CreateFace(_ context.Context, f *models.Face) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faces[f.ID] = *f
	return nil
}

func (s *fakeStore) ListFacesByAsset(_ context.Context, assetID uuid.UUID) ([]models.Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Face
	for _, f := range s.faces {
		if f.AssetID == assetID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteFacesByAsset(_ context.Context, assetID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, f := range s.faces {
		if f.AssetID == assetID {
			ids = append(ids, id)
			delete(s.faces, id)
		}
	}
	return ids, nil
}

func (s *fakeStore) GetFacePerson(_ context.Context, faceID uuid.UUID) (*uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faces[faceID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "face %s not found", faceID)
	}
	return f.PersonID, nil
}

func (s *fakeStore) CreatePerson(_ context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.persons[p.ID] = &cp
	return nil
}

func (s *fakeStore) UpdatePersonThumbnail(_ context.Context, id uuid.UUID, thumbnailPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.persons[id]
	if !ok {
		return apperr.New(apperr.KindNotFound, "person %s not found", id)
	}
	p.ThumbnailPath = thumbnailPath
	return nil
}

func (s *fakeStore) personCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.persons)
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted [][]string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) PutObject(_ context.Context, key string, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *fakeBlobs) GetObject(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "object %s not found", key)
	}
	return data, nil
}

func (b *fakeBlobs) DeleteObject(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *fakeBlobs) DeleteObjects(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, keys)
	for _, k := range keys {
		delete(b.objects, k)
	}
	return nil
}

type fakeInference struct {
	faces         []ml.DetectedFace
	vec           []float32
	tags          []string
	detectCalls   int
	encodeCalls   int
	classifyCalls int
}

func (f *fakeInference) DetectFaces(context.Context, []byte) ([]ml.DetectedFace, error) {
	f.detectCalls++
	return f.faces, nil
}

func (f *fakeInference) EncodeImage(context.Context, []byte) ([]float32, error) {
	f.encodeCalls++
	return f.vec, nil
}

func (f *fakeInference) ClassifyImage(context.Context, []byte) ([]string, error) {
	f.classifyCalls++
	return f.tags, nil
}

type testEnv struct {
	p       *Pipeline
	store   *fakeStore
	blobs   *fakeBlobs
	infer   *fakeInference
	queue   *jobs.CaptureQueue
	faceIdx *index.MemoryIndex
	batch   *search.Batcher
}

func newTestEnv() *testEnv {
	cfg := config.IndexConfig{Driver: "memory", Dimensions: 4, M: 16, EfConstruction: 200, EfSearch: 100}
	env := &testEnv{
		store:   newFakeStore(),
		blobs:   newFakeBlobs(),
		infer:   &fakeInference{},
		queue:   jobs.NewCaptureQueue(),
		faceIdx: index.NewMemoryIndex(cfg),
	}
	env.batch = search.NewBatcher(index.NewMemoryIndex(cfg), time.Hour)
	env.p = New(env.store, env.blobs, env.infer, env.queue, env.faceIdx, env.batch,
		config.FaceMatchConfig{MaxDistance: 0.6, ThumbnailMargin: 30}, nil)
	return env
}

func (e *testEnv) addImageAsset(owner uuid.UUID, data []byte) *models.Asset {
	asset := &models.Asset{
		ID:           uuid.New(),
		OwnerID:      owner,
		LibraryID:    owner,
		Type:         models.AssetTypeImage,
		OriginalPath: "originals/" + owner.String() + "/a.jpg",
		IsVisible:    true,
	}
	e.store.assets[asset.ID] = asset
	e.blobs.objects[asset.OriginalPath] = data
	return asset
}

func entityJob(t *testing.T, name jobs.Name, id uuid.UUID) jobs.Job {
	t.Helper()
	job, err := jobs.NewJob(name, jobs.EntityPayload{ID: id})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return job
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}
