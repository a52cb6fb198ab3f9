// Package index stores and searches fixed-width embedding vectors keyed by
// asset or face id, and owns the dimension-migration procedure. Two drivers
// exist: a pgvector-backed one and an in-memory HNSW graph.
package index

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// Match is one search result. Distance is raw cosine distance in [0, 2];
// equal distances order by key ascending so results are reproducible.
type Match struct {
	Key      uuid.UUID `json:"key"`
	Distance float64   `json:"distance"`
}

// Scope restricts a search to the caller's visible rows.
type Scope struct {
	OwnerIDs     []uuid.UUID
	WithArchived bool
}

type Index interface {
	// Upsert stores or replaces the vector for key. Vectors whose width
	// differs from the declared dimension are rejected, never truncated
	// or padded.
	Upsert(ctx context.Context, key, ownerID uuid.UUID, vec []float32) error

	// Remove deletes the vectors for the given keys. Missing keys are
	// ignored so removal is idempotent.
	Remove(ctx context.Context, keys ...uuid.UUID) error

	// Search returns the k nearest keys within scope, closest first.
	Search(ctx context.Context, query []float32, scope Scope, k int) ([]Match, error)

	// MigrateDimension switches the declared vector width. When newDims
	// differs from the current width the entire store is dropped and
	// recreated; callers are responsible for triggering a re-embedding
	// sweep afterward. Same width is a no-op.
	MigrateDimension(ctx context.Context, newDims int) error

	// Dimensions returns the currently declared vector width.
	Dimensions() int
}

// CosineDistance computes 1 - cosine similarity, in [0, 2]. Invalid or
// zero-norm input maps to the maximum distance.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}

	return 1 - sim
}

// Normalize returns the L2-normalized copy of vec. Zero vectors are
// returned unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
