package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/models"
)

// SearchFilters narrows a metadata search. Zero values mean "not filtered".
type SearchFilters struct {
	OwnerIDs         []uuid.UUID
	Type             models.AssetType
	IsFavorite       *bool
	IsArchived       *bool
	Checksum         []byte
	City             string
	State            string
	Country          string
	Make             string
	Model            string
	TakenAfter       *time.Time
	TakenBefore      *time.Time
	OriginalPath     string
	OriginalFileName string
	Limit            int
	Offset           int
}

// SearchAssets runs a filtered metadata search over assets joined with
// their exif rows, newest capture first. The id tie-break keeps paging
// stable when timestamps collide.
func (s *PostgresStore) SearchAssets(ctx context.Context, f SearchFilters) ([]models.Asset, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, "a.is_visible = true", "a.trashed_at IS NULL")
	if len(f.OwnerIDs) > 0 {
		conds = append(conds, "a.owner_id = ANY("+arg(f.OwnerIDs)+")")
	}
	if f.Type != "" {
		conds = append(conds, "a.type = "+arg(f.Type))
	}
	if f.IsFavorite != nil {
		conds = append(conds, "a.is_favorite = "+arg(*f.IsFavorite))
	}
	if f.IsArchived != nil {
		conds = append(conds, "a.is_archived = "+arg(*f.IsArchived))
	} else {
		conds = append(conds, "a.is_archived = false")
	}
	if len(f.Checksum) > 0 {
		conds = append(conds, "a.checksum = "+arg(f.Checksum))
	}
	if f.City != "" {
		conds = append(conds, "e.city = "+arg(f.City))
	}
	if f.State != "" {
		conds = append(conds, "e.state = "+arg(f.State))
	}
	if f.Country != "" {
		conds = append(conds, "e.country = "+arg(f.Country))
	}
	if f.Make != "" {
		conds = append(conds, "e.make = "+arg(f.Make))
	}
	if f.Model != "" {
		conds = append(conds, "e.model = "+arg(f.Model))
	}
	if f.TakenAfter != nil {
		conds = append(conds, "a.file_created_at >= "+arg(*f.TakenAfter))
	}
	if f.TakenBefore != nil {
		conds = append(conds, "a.file_created_at <= "+arg(*f.TakenBefore))
	}
	if f.OriginalPath != "" {
		conds = append(conds, "a.original_path ILIKE "+arg("%"+f.OriginalPath+"%"))
	}
	if f.OriginalFileName != "" {
		conds = append(conds, "a.original_file_name ILIKE "+arg("%"+f.OriginalFileName+"%"))
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 250
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + prefixColumns("a", assetColumns) + `
		FROM assets a
		LEFT JOIN exif e ON e.asset_id = a.id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY a.file_created_at DESC, a.id DESC
		LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search assets: %w", err)
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

func prefixColumns(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// Suggestions holds the distinct exif values available to a set of
// owners, for populating search filter dropdowns.
type Suggestions struct {
	Countries    []string `json:"countries"`
	States       []string `json:"states"`
	Cities       []string `json:"cities"`
	CameraMakes  []string `json:"cameraMakes"`
	CameraModels []string `json:"cameraModels"`
}

func (s *PostgresStore) GetSearchSuggestions(ctx context.Context, ownerIDs []uuid.UUID) (*Suggestions, error) {
	out := &Suggestions{}
	for col, dst := range map[string]*[]string{
		"country": &out.Countries,
		"state":   &out.States,
		"city":    &out.Cities,
		"make":    &out.CameraMakes,
		"model":   &out.CameraModels,
	} {
		vals, err := s.distinctExifValues(ctx, col, ownerIDs)
		if err != nil {
			return nil, err
		}
		*dst = vals
	}
	return out, nil
}

func (s *PostgresStore) distinctExifValues(ctx context.Context, column string, ownerIDs []uuid.UUID) ([]string, error) {
	// column comes from a fixed set above, never from user input.
	query := fmt.Sprintf(
		`SELECT DISTINCT e.%s FROM exif e
		 JOIN assets a ON a.id = e.asset_id
		 WHERE a.owner_id = ANY($1) AND a.is_visible = true AND a.trashed_at IS NULL AND e.%s <> ''
		 ORDER BY e.%s`, column, column, column)

	rows, err := s.pool.Query(ctx, query, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	defer rows.Close()

	var vals []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		vals = append(vals, v)
	}
	return vals, rows.Err()
}

// GetTimelinePartnerIDs returns the users who share their timeline with
// the given user. Their assets are searchable alongside the user's own.
func (s *PostgresStore) GetTimelinePartnerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT shared_by_id FROM partners WHERE shared_with_id = $1 AND in_timeline = true`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("get timeline partners: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan partner id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
