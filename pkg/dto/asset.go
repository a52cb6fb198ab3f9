// Package dto holds the wire types of the public API.
package dto

import (
	"time"

	"github.com/google/uuid"
)

// UploadResponse reports where an upload landed. Duplicate is true when
// the bytes were already known; ID then points at the surviving asset.
type UploadResponse struct {
	ID        uuid.UUID `json:"id"`
	Duplicate bool      `json:"duplicate"`
}

type AssetResponse struct {
	ID               uuid.UUID  `json:"id"`
	OwnerID          uuid.UUID  `json:"ownerId"`
	LibraryID        uuid.UUID  `json:"libraryId"`
	Type             string     `json:"type"`
	OriginalFileName string     `json:"originalFileName"`
	PreviewPath      string     `json:"previewPath,omitempty"`
	ThumbnailPath    string     `json:"thumbnailPath,omitempty"`
	IsFavorite       bool       `json:"isFavorite"`
	IsArchived       bool       `json:"isArchived"`
	FileCreatedAt    time.Time  `json:"fileCreatedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	TrashedAt        *time.Time `json:"trashedAt,omitempty"`
}
