package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/config"
)

// PgIndex is the pgvector driver. Each instance owns one table of shape
// (key uuid PK, owner_id uuid, embedding vector(D)) plus an HNSW index with
// the construction parameters from config.
type PgIndex struct {
	pool  *pgxpool.Pool
	table string
	dims  int
	cfg   config.IndexConfig

	// joinAssets enables the visibility pre-filter for the asset-keyed
	// table, where key references assets(id).
	joinAssets bool
}

func NewPgIndex(pool *pgxpool.Pool, table string, cfg config.IndexConfig, joinAssets bool) *PgIndex {
	return &PgIndex{
		pool:       pool,
		table:      table,
		dims:       cfg.Dimensions,
		cfg:        cfg,
		joinAssets: joinAssets,
	}
}

// Init reconciles the stored vector width with the configured one. A fresh
// database gets the table created; a width change triggers the drop-and-
// recreate migration.
func (i *PgIndex) Init(ctx context.Context) error {
	stored, err := i.storedDims(ctx)
	if err != nil {
		return err
	}
	if stored == 0 {
		return i.recreate(ctx, i.cfg.Dimensions)
	}
	if stored != i.cfg.Dimensions {
		slog.Info("embedding width changed, migrating index",
			"table", i.table, "stored", stored, "configured", i.cfg.Dimensions)
		return i.MigrateDimension(ctx, i.cfg.Dimensions)
	}
	i.dims = stored
	return nil
}

// storedDims reads the declared vector width from the catalog; 0 means the
// table does not exist yet.
func (i *PgIndex) storedDims(ctx context.Context) (int, error) {
	var dims int
	err := i.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(a.atttypmod), 0)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		WHERE c.relkind = 'r'
		  AND a.attnum > 0
		  AND c.relname = $1
		  AND a.attname = 'embedding'`, i.table,
	).Scan(&dims)
	if err != nil {
		return 0, fmt.Errorf("read %s vector width: %w", i.table, err)
	}
	return dims, nil
}

func (i *PgIndex) Dimensions() int { return i.dims }

func (i *PgIndex) Upsert(ctx context.Context, key, ownerID uuid.UUID, vec []float32) error {
	if len(vec) != i.dims {
		return apperr.New(apperr.KindValidation,
			"vector width %d does not match index width %d", len(vec), i.dims)
	}
	_, err := i.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (key, owner_id, embedding) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET owner_id = $2, embedding = $3`, i.table),
		key, ownerID, pgvector.NewVector(vec))
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, err, "upsert embedding")
	}
	return nil
}

func (i *PgIndex) Remove(ctx context.Context, keys ...uuid.UUID) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := i.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ANY($1)`, i.table), keys)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, err, "remove embeddings")
	}
	return nil
}

func (i *PgIndex) Search(ctx context.Context, query []float32, scope Scope, k int) ([]Match, error) {
	if len(query) != i.dims {
		return nil, apperr.New(apperr.KindValidation,
			"query width %d does not match index width %d", len(query), i.dims)
	}
	if k <= 0 {
		k = 10
	}

	// ef_search is tuned per query inside the transaction so the setting
	// never leaks into concurrent searches.
	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err, "begin search tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ef := i.cfg.EfSearch
	if ef < k {
		ef = k
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`SET LOCAL hnsw.ef_search = %d`, ef)); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err, "set ef_search")
	}

	vec := pgvector.NewVector(query)
	var sql string
	if i.joinAssets {
		sql = fmt.Sprintf(`
			SELECT s.key, s.embedding <=> $1 AS distance
			FROM %s s
			JOIN assets a ON a.id = s.key
			WHERE s.owner_id = ANY($2)
			  AND a.is_visible = true
			  AND a.trashed_at IS NULL`, i.table)
		if !scope.WithArchived {
			sql += ` AND a.is_archived = false`
		}
	} else {
		sql = fmt.Sprintf(`
			SELECT s.key, s.embedding <=> $1 AS distance
			FROM %s s
			WHERE s.owner_id = ANY($2)`, i.table)
	}
	sql += ` ORDER BY s.embedding <=> $1, s.key LIMIT $3`

	rows, err := tx.Query(ctx, sql, vec, scope.OwnerIDs, k)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err, "search embeddings")
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.Key, &m.Distance); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err, "iterate matches")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, err, "commit search tx")
	}
	return matches, nil
}

func (i *PgIndex) MigrateDimension(ctx context.Context, newDims int) error {
	if newDims <= 0 || newDims > 1<<16 {
		return apperr.New(apperr.KindInvariant, "invalid vector width %d", newDims)
	}
	if newDims == i.dims {
		return nil
	}
	slog.Info("migrating embedding index",
		"table", i.table, "from", i.dims, "to", newDims)
	return i.recreate(ctx, newDims)
}

// recreate drops and rebuilds the vector table and its ANN index. All
// previously stored embeddings are lost; the caller triggers re-embedding.
func (i *PgIndex) recreate(ctx context.Context, dims int) error {
	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, err, "begin migration tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, i.table)); err != nil {
		return fmt.Errorf("drop %s: %w", i.table, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE %s (
			key       uuid PRIMARY KEY,
			owner_id  uuid NOT NULL,
			embedding vector(%d) NOT NULL
		)`, i.table, dims)); err != nil {
		return fmt.Errorf("create %s: %w", i.table, err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX %s_owner_idx ON %s (owner_id)`, i.table, i.table)); err != nil {
		return fmt.Errorf("create owner index: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
		CREATE INDEX %s_embedding_idx ON %s
		USING hnsw (embedding vector_cosine_ops)
		WITH (m = %d, ef_construction = %d)`,
		i.table, i.table, i.cfg.M, i.cfg.EfConstruction)); err != nil {
		return fmt.Errorf("create hnsw index: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindTransient, err, "commit migration tx")
	}
	i.dims = dims
	return nil
}
