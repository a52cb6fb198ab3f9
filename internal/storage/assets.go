package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/models"
)

const assetColumns = `id, owner_id, library_id, type, checksum, original_path, original_file_name,
	is_favorite, is_archived, is_visible, is_read_only,
	preview_path, thumbnail_path, encoded_video_path, sidecar_path, duration,
	file_created_at, file_modified_at, created_at, updated_at, trashed_at`

func scanAsset(row pgx.Row) (*models.Asset, error) {
	a := &models.Asset{}
	err := row.Scan(&a.ID, &a.OwnerID, &a.LibraryID, &a.Type, &a.Checksum,
		&a.OriginalPath, &a.OriginalFileName,
		&a.IsFavorite, &a.IsArchived, &a.IsVisible, &a.IsReadOnly,
		&a.PreviewPath, &a.ThumbnailPath, &a.EncodedVideoPath, &a.SidecarPath, &a.Duration,
		&a.FileCreatedAt, &a.FileModifiedAt, &a.CreatedAt, &a.UpdatedAt, &a.TrashedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateAsset inserts the row directly and maps a unique-constraint
// violation to a conflict error. There is deliberately no check-then-act:
// concurrent identical uploads race on the constraint, not on a lock.
func (s *PostgresStore) CreateAsset(ctx context.Context, a *models.Asset) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO assets (id, owner_id, library_id, type, checksum, original_path, original_file_name,
			is_favorite, is_archived, is_visible, is_read_only, duration, file_created_at, file_modified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING created_at, updated_at`,
		a.ID, a.OwnerID, a.LibraryID, a.Type, a.Checksum, a.OriginalPath, a.OriginalFileName,
		a.IsFavorite, a.IsArchived, a.IsVisible, a.IsReadOnly, a.Duration,
		a.FileCreatedAt, a.FileModifiedAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "checksum") {
				return apperr.Wrap(apperr.KindConflict, err, "duplicate checksum")
			}
			return apperr.Wrap(apperr.KindConflict, err, "duplicate original path")
		}
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	a, err := scanAsset(s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "asset %s not found", id)
		}
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return a, nil
}

// GetAssetByChecksum resolves the surviving row after a duplicate-checksum
// conflict.
func (s *PostgresStore) GetAssetByChecksum(ctx context.Context, ownerID, libraryID uuid.UUID, checksum []byte) (*models.Asset, error) {
	a, err := scanAsset(s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets
		 WHERE owner_id = $1 AND library_id = $2 AND checksum = $3 AND is_read_only = false`,
		ownerID, libraryID, checksum))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "asset with checksum not found")
		}
		return nil, fmt.Errorf("get asset by checksum: %w", err)
	}
	return a, nil
}

// UpdateAssetPaths overwrites the derived artifact paths. Re-running a
// pipeline stage replaces its outputs, it never appends.
func (s *PostgresStore) UpdateAssetPaths(ctx context.Context, id uuid.UUID, previewPath, thumbnailPath, encodedVideoPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE assets SET
			preview_path = COALESCE(NULLIF($2, ''), preview_path),
			thumbnail_path = COALESCE(NULLIF($3, ''), thumbnail_path),
			encoded_video_path = COALESCE(NULLIF($4, ''), encoded_video_path),
			updated_at = now()
		 WHERE id = $1`,
		id, previewPath, thumbnailPath, encodedVideoPath)
	if err != nil {
		return fmt.Errorf("update asset paths: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "asset %s not found", id)
	}
	return nil
}

// UpsertExif overwrites the metadata row for an asset, keeping
// metadata-extraction idempotent.
func (s *PostgresStore) UpsertExif(ctx context.Context, e *models.Exif) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO exif (asset_id, make, model, image_width, image_height, file_size_in_bytes,
			orientation, date_time_original, latitude, longitude, city, state, country, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (asset_id) DO UPDATE SET
			make = $2, model = $3, image_width = $4, image_height = $5,
			file_size_in_bytes = $6, orientation = $7, date_time_original = $8,
			latitude = $9, longitude = $10, city = $11, state = $12, country = $13, description = $14`,
		e.AssetID, e.Make, e.Model, e.ImageWidth, e.ImageHeight, e.FileSizeInBytes,
		e.Orientation, e.DateTimeOriginal, e.Latitude, e.Longitude,
		e.City, e.State, e.Country, e.Description)
	if err != nil {
		return fmt.Errorf("upsert exif: %w", err)
	}
	return nil
}

// UpdateExifTags stores the classification tags for an asset. Tags live
// apart from UpsertExif so a metadata re-run never wipes them.
func (s *PostgresStore) UpdateExifTags(ctx context.Context, assetID uuid.UUID, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO exif (asset_id, tags) VALUES ($1, $2)
		 ON CONFLICT (asset_id) DO UPDATE SET tags = $2`, assetID, tags)
	if err != nil {
		return fmt.Errorf("update exif tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetExif(ctx context.Context, assetID uuid.UUID) (*models.Exif, error) {
	e := &models.Exif{}
	err := s.pool.QueryRow(ctx,
		`SELECT asset_id, make, model, image_width, image_height, file_size_in_bytes,
			orientation, date_time_original, latitude, longitude, city, state, country, description, tags
		 FROM exif WHERE asset_id = $1`, assetID,
	).Scan(&e.AssetID, &e.Make, &e.Model, &e.ImageWidth, &e.ImageHeight, &e.FileSizeInBytes,
		&e.Orientation, &e.DateTimeOriginal, &e.Latitude, &e.Longitude,
		&e.City, &e.State, &e.Country, &e.Description, &e.Tags)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "exif for asset %s not found", assetID)
		}
		return nil, fmt.Errorf("get exif: %w", err)
	}
	return e, nil
}

// DeleteAsset hard-deletes the row; exif and faces cascade.
func (s *PostgresStore) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "asset %s not found", id)
	}
	return nil
}

// ListAssetsByIDs fetches a batch of assets in no particular order.
// Missing ids are silently skipped.
func (s *PostgresStore) ListAssetsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list assets by ids: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// ListAssetsPage returns up to limit assets with id greater than afterID,
// ordered by id. Used by the bootstrap rebuild to walk the table in
// bounded pages.
func (s *PostgresStore) ListAssetsPage(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Asset, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id > $1 ORDER BY id LIMIT $2`,
		afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list assets page: %w", err)
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}
