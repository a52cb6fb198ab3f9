package index

import (
	"context"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/config"
)

// searchOverfetch asks the graph for more candidates than requested so
// owner/tombstone filtering still leaves k results.
const searchOverfetch = 3

type memEntry struct {
	owner uuid.UUID
	vec   []float32
}

// MemoryIndex is the in-process driver: a coder/hnsw graph for candidate
// generation plus a metadata map that is the source of truth. The graph
// cannot truly delete nodes, so removed keys are dropped from the map and
// filtered out of results.
type MemoryIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	meta  map[string]memEntry
	dims  int
	cfg   config.IndexConfig
}

func NewMemoryIndex(cfg config.IndexConfig) *MemoryIndex {
	i := &MemoryIndex{
		meta: make(map[string]memEntry),
		dims: cfg.Dimensions,
		cfg:  cfg,
	}
	i.graph = i.newGraph()
	return i
}

func (i *MemoryIndex) newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = i.cfg.M
	g.Ml = 1.0 / float64(i.cfg.M)
	g.EfSearch = i.cfg.EfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

func (i *MemoryIndex) Dimensions() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.dims
}

func (i *MemoryIndex) Upsert(_ context.Context, key, ownerID uuid.UUID, vec []float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(vec) != i.dims {
		return apperr.New(apperr.KindValidation,
			"vector width %d does not match index width %d", len(vec), i.dims)
	}
	k := key.String()
	i.graph.Add(hnsw.MakeNode(k, vec))
	i.meta[k] = memEntry{owner: ownerID, vec: vec}
	return nil
}

func (i *MemoryIndex) Remove(_ context.Context, keys ...uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, key := range keys {
		delete(i.meta, key.String())
	}
	return nil
}

func (i *MemoryIndex) Search(_ context.Context, query []float32, scope Scope, k int) ([]Match, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if len(query) != i.dims {
		return nil, apperr.New(apperr.KindValidation,
			"query width %d does not match index width %d", len(query), i.dims)
	}
	if k <= 0 {
		k = 10
	}
	if len(i.meta) == 0 {
		return nil, nil
	}

	owners := make(map[uuid.UUID]bool, len(scope.OwnerIDs))
	for _, o := range scope.OwnerIDs {
		owners[o] = true
	}

	searchK := k * searchOverfetch
	if searchK < i.cfg.EfSearch {
		searchK = i.cfg.EfSearch
	}
	neighbors := i.graph.Search(query, searchK)

	matches := make([]Match, 0, k)
	for _, n := range neighbors {
		entry, live := i.meta[n.Key]
		if !live {
			continue
		}
		if len(owners) > 0 && !owners[entry.owner] {
			continue
		}
		key, err := uuid.Parse(n.Key)
		if err != nil {
			continue
		}
		// Exact distance from the stored vector, not the graph estimate.
		matches = append(matches, Match{Key: key, Distance: CosineDistance(query, entry.vec)})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Distance != matches[b].Distance {
			return matches[a].Distance < matches[b].Distance
		}
		return matches[a].Key.String() < matches[b].Key.String()
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (i *MemoryIndex) MigrateDimension(_ context.Context, newDims int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if newDims <= 0 || newDims > 1<<16 {
		return apperr.New(apperr.KindInvariant, "invalid vector width %d", newDims)
	}
	if newDims == i.dims {
		return nil
	}
	i.dims = newDims
	i.meta = make(map[string]memEntry)
	i.graph = i.newGraph()
	return nil
}

// Count returns the number of live vectors.
func (i *MemoryIndex) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.meta)
}
