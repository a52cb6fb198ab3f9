package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/mediavault/internal/config"
	"github.com/your-org/mediavault/internal/jobs"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying pool for components that own their own
// tables, such as the pgvector embedding index.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// EnsureSchema creates the relational tables. The embedding index tables
// are owned by internal/index and created by its Init.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS assets (
			id                 uuid PRIMARY KEY,
			owner_id           uuid NOT NULL,
			library_id         uuid NOT NULL,
			type               text NOT NULL,
			checksum           bytea NOT NULL,
			original_path      text NOT NULL,
			original_file_name text NOT NULL DEFAULT '',
			is_favorite        boolean NOT NULL DEFAULT false,
			is_archived        boolean NOT NULL DEFAULT false,
			is_visible         boolean NOT NULL DEFAULT true,
			is_read_only       boolean NOT NULL DEFAULT false,
			preview_path       text NOT NULL DEFAULT '',
			thumbnail_path     text NOT NULL DEFAULT '',
			encoded_video_path text NOT NULL DEFAULT '',
			sidecar_path       text NOT NULL DEFAULT '',
			duration           text NOT NULL DEFAULT '',
			file_created_at    timestamptz NOT NULL DEFAULT now(),
			file_modified_at   timestamptz NOT NULL DEFAULT now(),
			created_at         timestamptz NOT NULL DEFAULT now(),
			updated_at         timestamptz NOT NULL DEFAULT now(),
			trashed_at         timestamptz
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS assets_owner_library_checksum_uq
			ON assets (owner_id, library_id, checksum) WHERE is_read_only = false`,
		`CREATE UNIQUE INDEX IF NOT EXISTS assets_owner_library_path_uq
			ON assets (owner_id, library_id, original_path)`,
		`CREATE INDEX IF NOT EXISTS assets_owner_created_idx
			ON assets (owner_id, file_created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS exif (
			asset_id           uuid PRIMARY KEY REFERENCES assets(id) ON DELETE CASCADE,
			make               text NOT NULL DEFAULT '',
			model              text NOT NULL DEFAULT '',
			image_width        integer NOT NULL DEFAULT 0,
			image_height       integer NOT NULL DEFAULT 0,
			file_size_in_bytes bigint NOT NULL DEFAULT 0,
			orientation        text NOT NULL DEFAULT '',
			date_time_original timestamptz,
			latitude           double precision,
			longitude          double precision,
			city               text NOT NULL DEFAULT '',
			state              text NOT NULL DEFAULT '',
			country            text NOT NULL DEFAULT '',
			description        text NOT NULL DEFAULT '',
			tags               text[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS persons (
			id             uuid PRIMARY KEY,
			owner_id       uuid NOT NULL,
			name           text NOT NULL DEFAULT '',
			thumbnail_path text NOT NULL DEFAULT '',
			created_at     timestamptz NOT NULL DEFAULT now(),
			updated_at     timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS faces (
			id           uuid PRIMARY KEY,
			asset_id     uuid NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
			person_id    uuid REFERENCES persons(id),
			bbox_x1      integer NOT NULL,
			bbox_y1      integer NOT NULL,
			bbox_x2      integer NOT NULL,
			bbox_y2      integer NOT NULL,
			image_width  integer NOT NULL DEFAULT 0,
			image_height integer NOT NULL DEFAULT 0,
			created_at   timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS faces_asset_idx ON faces (asset_id)`,
		`CREATE INDEX IF NOT EXISTS faces_person_idx ON faces (person_id)`,
		`CREATE TABLE IF NOT EXISTS partners (
			shared_by_id   uuid NOT NULL,
			shared_with_id uuid NOT NULL,
			in_timeline    boolean NOT NULL DEFAULT false,
			created_at     timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (shared_by_id, shared_with_id)
		)`,
		`CREATE TABLE IF NOT EXISTS job_failures (
			id         uuid PRIMARY KEY,
			name       text NOT NULL,
			job_id     text NOT NULL,
			payload    jsonb NOT NULL,
			error      text NOT NULL,
			attempts   integer NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS search_index_meta (
			name       text PRIMARY KEY,
			version    integer NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// RecordJobFailure persists a permanently failed job for operator
// inspection. Implements jobs.FailureSink.
func (s *PostgresStore) RecordJobFailure(ctx context.Context, job jobs.Job, jobErr error) error {
	payload := job.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_failures (id, name, job_id, payload, error, attempts)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), string(job.Name), job.ID, payload, jobErr.Error(), job.Attempts)
	if err != nil {
		return fmt.Errorf("record job failure: %w", err)
	}
	return nil
}

// ListJobFailures returns recent permanently failed jobs, newest first.
func (s *PostgresStore) ListJobFailures(ctx context.Context, limit int) ([]JobFailure, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, job_id, payload, error, attempts, created_at
		 FROM job_failures ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list job failures: %w", err)
	}
	defer rows.Close()

	var failures []JobFailure
	for rows.Next() {
		var f JobFailure
		if err := rows.Scan(&f.ID, &f.Name, &f.JobID, &f.Payload, &f.Error, &f.Attempts, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

type JobFailure struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	JobID     string          `json:"job_id"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
}

// GetIndexVersion returns the stored search index schema version, 0 when
// none has been recorded yet.
func (s *PostgresStore) GetIndexVersion(ctx context.Context, name string) (int, error) {
	var version int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM search_index_meta WHERE name = $1`, name,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get index version: %w", err)
	}
	return version, nil
}

func (s *PostgresStore) SetIndexVersion(ctx context.Context, name string, version int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO search_index_meta (name, version, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET version = $2, updated_at = now()`,
		name, version)
	if err != nil {
		return fmt.Errorf("set index version: %w", err)
	}
	return nil
}
