package models

import (
	"time"

	"github.com/google/uuid"
)

type AssetType string

const (
	AssetTypeImage AssetType = "image"
	AssetTypeVideo AssetType = "video"
	AssetTypeOther AssetType = "other"
)

type Asset struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OwnerID   uuid.UUID `json:"owner_id" db:"owner_id"`
	LibraryID uuid.UUID `json:"library_id" db:"library_id"`
	Type      AssetType `json:"type" db:"type"`

	// Checksum is the SHA-1 of the original file; (owner_id, library_id,
	// checksum) is unique among non-read-only assets.
	Checksum []byte `json:"-" db:"checksum"`

	OriginalPath     string `json:"original_path" db:"original_path"`
	OriginalFileName string `json:"original_file_name" db:"original_file_name"`

	IsFavorite bool `json:"is_favorite" db:"is_favorite"`
	IsArchived bool `json:"is_archived" db:"is_archived"`
	IsVisible  bool `json:"is_visible" db:"is_visible"`
	IsReadOnly bool `json:"is_read_only" db:"is_read_only"`

	// Derived artifact paths, written by pipeline stages. Empty until the
	// corresponding stage has run; overwritten (never appended) on re-run.
	PreviewPath      string `json:"preview_path,omitempty" db:"preview_path"`
	ThumbnailPath    string `json:"thumbnail_path,omitempty" db:"thumbnail_path"`
	EncodedVideoPath string `json:"encoded_video_path,omitempty" db:"encoded_video_path"`
	SidecarPath      string `json:"sidecar_path,omitempty" db:"sidecar_path"`

	Duration       string     `json:"duration,omitempty" db:"duration"`
	FileCreatedAt  time.Time  `json:"file_created_at" db:"file_created_at"`
	FileModifiedAt time.Time  `json:"file_modified_at" db:"file_modified_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
	TrashedAt      *time.Time `json:"trashed_at,omitempty" db:"trashed_at"`
}

// DerivedFiles lists every on-disk artifact the deletion job must remove.
// Empty entries are kept so the delete-files payload mirrors what is known
// for the asset, including artifacts that were never produced.
func (a *Asset) DerivedFiles() []string {
	return []string{
		a.ThumbnailPath,
		a.PreviewPath,
		a.EncodedVideoPath,
		a.SidecarPath,
		a.OriginalPath,
	}
}

// Exif is the denormalized metadata row written by the metadata-extraction
// stage and queried by metadata search and suggestions.
type Exif struct {
	AssetID          uuid.UUID  `json:"asset_id" db:"asset_id"`
	Make             string     `json:"make,omitempty" db:"make"`
	Model            string     `json:"model,omitempty" db:"model"`
	ImageWidth       int        `json:"image_width,omitempty" db:"image_width"`
	ImageHeight      int        `json:"image_height,omitempty" db:"image_height"`
	FileSizeInBytes  int64      `json:"file_size_in_bytes,omitempty" db:"file_size_in_bytes"`
	Orientation      string     `json:"orientation,omitempty" db:"orientation"`
	DateTimeOriginal *time.Time `json:"date_time_original,omitempty" db:"date_time_original"`
	Latitude         *float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude        *float64   `json:"longitude,omitempty" db:"longitude"`
	City             string     `json:"city,omitempty" db:"city"`
	State            string     `json:"state,omitempty" db:"state"`
	Country          string     `json:"country,omitempty" db:"country"`
	Description      string     `json:"description,omitempty" db:"description"`
	Tags             []string   `json:"tags,omitempty" db:"tags"`
}
