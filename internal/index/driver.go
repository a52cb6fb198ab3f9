package index

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/config"
)

// Open builds the index backend selected by cfg.Driver. The postgres
// driver persists vectors in the given table and is the default; the
// memory driver keeps everything in process and ignores pool and table.
func Open(ctx context.Context, pool *pgxpool.Pool, table string, cfg config.IndexConfig, joinAssets bool) (Index, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryIndex(cfg), nil
	case "", "postgres":
		idx := NewPgIndex(pool, table, cfg, joinAssets)
		if err := idx.Init(ctx); err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, apperr.New(apperr.KindValidation, "unknown index driver %q", cfg.Driver)
	}
}
