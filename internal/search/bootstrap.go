package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/index"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/models"
)

// SmartIndexName is the version record key for the asset embedding index.
const SmartIndexName = "smart_search"

// BootstrapStore is what the rebuild needs from the relational store.
type BootstrapStore interface {
	GetIndexVersion(ctx context.Context, name string) (int, error)
	SetIndexVersion(ctx context.Context, name string, version int) error
	ListAssetsPage(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Asset, error)
}

// RebuildIfNeeded compares the recorded embedding width against the
// configured one. On mismatch (a model change, or a fresh deployment) it
// migrates the index to the new width and enqueues a re-embedding job for
// every asset, page by page, so the bootstrap never holds the whole asset
// table in memory. The version is recorded only after the full sweep has
// been enqueued; a crash mid-sweep repeats the sweep, which is safe
// because indexing jobs are idempotent.
func RebuildIfNeeded(ctx context.Context, store BootstrapStore, idx index.Index, queue jobs.Queue, dims, pageSize int) (bool, error) {
	stored, err := store.GetIndexVersion(ctx, SmartIndexName)
	if err != nil {
		return false, err
	}
	if stored == dims {
		return false, nil
	}

	slog.Info("rebuilding smart search index", "stored_dims", stored, "new_dims", dims)
	if err := idx.MigrateDimension(ctx, dims); err != nil {
		return false, fmt.Errorf("migrate index dimension: %w", err)
	}

	if pageSize <= 0 {
		pageSize = 1000
	}
	var afterID uuid.UUID
	total := 0
	for {
		assets, err := store.ListAssetsPage(ctx, afterID, pageSize)
		if err != nil {
			return false, fmt.Errorf("list assets page: %w", err)
		}
		if len(assets) == 0 {
			break
		}
		for _, a := range assets {
			job, err := jobs.NewJob(jobs.SmartSearchIndex, jobs.EntityPayload{ID: a.ID, Source: "bootstrap"})
			if err != nil {
				return false, err
			}
			if err := queue.Enqueue(ctx, job); err != nil {
				return false, fmt.Errorf("enqueue reindex for %s: %w", a.ID, err)
			}
			total++
		}
		afterID = assets[len(assets)-1].ID
		if len(assets) < pageSize {
			break
		}
	}

	if err := store.SetIndexVersion(ctx, SmartIndexName, dims); err != nil {
		return false, err
	}
	slog.Info("smart search rebuild enqueued", "assets", total, "dims", dims)
	return true, nil
}
