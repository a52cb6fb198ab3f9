// Package search answers metadata and smart (embedding) queries and keeps
// the embedding index consistent with asset writes through a debounced
// batcher and a versioned bootstrap rebuild.
package search

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/config"
	"github.com/your-org/mediavault/internal/index"
	"github.com/your-org/mediavault/internal/models"
	"github.com/your-org/mediavault/internal/observability"
	"github.com/your-org/mediavault/internal/storage"
)

// Store is the slice of the relational store the engine reads from.
type Store interface {
	SearchAssets(ctx context.Context, f storage.SearchFilters) ([]models.Asset, error)
	ListAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Asset, error)
	GetSearchSuggestions(ctx context.Context, ownerIDs []uuid.UUID) (*storage.Suggestions, error)
	GetTimelinePartnerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// TextEncoder turns a free-text query into an embedding.
type TextEncoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
}

// Engine serves search queries. Configuration is an immutable snapshot
// swapped atomically by Reload, so a running query never observes a
// half-applied config change.
type Engine struct {
	store   Store
	assets  index.Index
	encoder TextEncoder

	mu  sync.RWMutex
	cfg config.SearchConfig
}

func NewEngine(store Store, assets index.Index, encoder TextEncoder, cfg config.SearchConfig) *Engine {
	return &Engine{store: store, assets: assets, encoder: encoder, cfg: cfg}
}

// Reload swaps in a new search configuration.
func (e *Engine) Reload(cfg config.SearchConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Engine) snapshot() config.SearchConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SearchMetadata runs a filtered relational search over the caller's own
// assets plus timeline partners.
func (e *Engine) SearchMetadata(ctx context.Context, userID uuid.UUID, f storage.SearchFilters) ([]models.Asset, error) {
	start := time.Now()
	defer func() {
		observability.SearchDuration.WithLabelValues("metadata").Observe(time.Since(start).Seconds())
	}()

	owners, err := e.visibleOwners(ctx, userID)
	if err != nil {
		return nil, err
	}
	f.OwnerIDs = owners

	cfg := e.snapshot()
	if f.Limit <= 0 || f.Limit > cfg.MaxResults {
		f.Limit = cfg.MaxResults
	}
	return e.store.SearchAssets(ctx, f)
}

// SearchSmart embeds the query text and returns the nearest assets,
// closest first. Archived assets are excluded unless withArchived is set.
// Disabled deployments get a validation error, not an empty result, so
// clients can distinguish "off" from "no matches".
func (e *Engine) SearchSmart(ctx context.Context, userID uuid.UUID, query string, k int, withArchived bool) ([]models.Asset, error) {
	start := time.Now()
	defer func() {
		observability.SearchDuration.WithLabelValues("smart").Observe(time.Since(start).Seconds())
	}()

	cfg := e.snapshot()
	if !cfg.SmartEnabled {
		return nil, apperr.New(apperr.KindValidation, "smart search is disabled")
	}
	if query == "" {
		return nil, apperr.New(apperr.KindValidation, "empty search query")
	}
	if k <= 0 || k > cfg.MaxResults {
		k = cfg.MaxResults
	}

	vec, err := e.encoder.EncodeText(ctx, query)
	if err != nil {
		return nil, err
	}
	vec = index.Normalize(vec)

	owners, err := e.visibleOwners(ctx, userID)
	if err != nil {
		return nil, err
	}

	matches, err := e.assets.Search(ctx, vec, index.Scope{OwnerIDs: owners, WithArchived: withArchived}, k)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(matches))
	for i, m := range matches {
		ids[i] = m.Key
	}
	assets, err := e.store.ListAssetsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Reorder to match distance and drop rows the index may not have seen
	// removed yet (hidden, trashed, archived, or deleted entirely).
	byID := make(map[uuid.UUID]models.Asset, len(assets))
	for _, a := range assets {
		if !a.IsVisible || a.TrashedAt != nil || (a.IsArchived && !withArchived) {
			continue
		}
		byID[a.ID] = a
	}
	out := make([]models.Asset, 0, len(matches))
	for _, m := range matches {
		if a, ok := byID[m.Key]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Suggestions returns the distinct filter values available to the caller.
func (e *Engine) Suggestions(ctx context.Context, userID uuid.UUID) (*storage.Suggestions, error) {
	owners, err := e.visibleOwners(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.store.GetSearchSuggestions(ctx, owners)
}

func (e *Engine) visibleOwners(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	partners, err := e.store.GetTimelinePartnerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append([]uuid.UUID{userID}, partners...), nil
}
