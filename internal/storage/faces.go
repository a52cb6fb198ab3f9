package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/models"
)

func (s *PostgresStore) CreatePerson(ctx context.Context, p *models.Person) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO persons (id, owner_id, name, thumbnail_path)
		 VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		p.ID, p.OwnerID, p.Name, p.ThumbnailPath,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error) {
	p := &models.Person{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, thumbnail_path, created_at, updated_at
		 FROM persons WHERE id = $1`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Name, &p.ThumbnailPath, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "person %s not found", id)
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPersons(ctx context.Context, ownerID uuid.UUID) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, thumbnail_path, created_at, updated_at
		 FROM persons WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.ThumbnailPath, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

func (s *PostgresStore) UpdatePersonName(ctx context.Context, id uuid.UUID, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	if err != nil {
		return fmt.Errorf("update person name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "person %s not found", id)
	}
	return nil
}

func (s *PostgresStore) UpdatePersonThumbnail(ctx context.Context, id uuid.UUID, thumbnailPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET thumbnail_path = $2, updated_at = now() WHERE id = $1`, id, thumbnailPath)
	if err != nil {
		return fmt.Errorf("update person thumbnail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.KindNotFound, "person %s not found", id)
	}
	return nil
}

func (s *PostgresStore) CreateFace(ctx context.Context, f *models.Face) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO faces (id, asset_id, person_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, image_width, image_height)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`,
		f.ID, f.AssetID, f.PersonID,
		f.BoundingBox.X1, f.BoundingBox.Y1, f.BoundingBox.X2, f.BoundingBox.Y2,
		f.ImageWidth, f.ImageHeight,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("create face: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListFacesByAsset(ctx context.Context, assetID uuid.UUID) ([]models.Face, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, asset_id, person_id, bbox_x1, bbox_y1, bbox_x2, bbox_y2, image_width, image_height, created_at
		 FROM faces WHERE asset_id = $1 ORDER BY created_at`, assetID)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		var f models.Face
		if err := rows.Scan(&f.ID, &f.AssetID, &f.PersonID,
			&f.BoundingBox.X1, &f.BoundingBox.Y1, &f.BoundingBox.X2, &f.BoundingBox.Y2,
			&f.ImageWidth, &f.ImageHeight, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// DeleteFacesByAsset removes all faces for an asset and returns their ids
// so the embedding index can be cleaned up.
func (s *PostgresStore) DeleteFacesByAsset(ctx context.Context, assetID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`DELETE FROM faces WHERE asset_id = $1 RETURNING id`, assetID)
	if err != nil {
		return nil, fmt.Errorf("delete faces: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan face id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetFacePerson returns the person a face is attached to, nil when the
// face exists but has no person yet.
func (s *PostgresStore) GetFacePerson(ctx context.Context, faceID uuid.UUID) (*uuid.UUID, error) {
	var personID *uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT person_id FROM faces WHERE id = $1`, faceID,
	).Scan(&personID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "face %s not found", faceID)
		}
		return nil, fmt.Errorf("get face person: %w", err)
	}
	return personID, nil
}

// GetFaceOwner resolves the owner of the asset a face belongs to.
func (s *PostgresStore) GetFaceOwner(ctx context.Context, faceID uuid.UUID) (uuid.UUID, error) {
	var ownerID uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT a.owner_id FROM faces f JOIN assets a ON a.id = f.asset_id WHERE f.id = $1`,
		faceID,
	).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperr.New(apperr.KindNotFound, "face %s not found", faceID)
		}
		return uuid.Nil, fmt.Errorf("get face owner: %w", err)
	}
	return ownerID, nil
}
