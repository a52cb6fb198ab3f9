package models

import (
	"time"

	"github.com/google/uuid"
)

// BoundingBox is a face location in resize-image pixel coordinates.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Expand grows the box by margin pixels on every side, clamped to the
// image bounds.
func (b BoundingBox) Expand(margin, imageWidth, imageHeight int) BoundingBox {
	out := BoundingBox{
		X1: b.X1 - margin,
		Y1: b.Y1 - margin,
		X2: b.X2 + margin,
		Y2: b.Y2 + margin,
	}
	if out.X1 < 0 {
		out.X1 = 0
	}
	if out.Y1 < 0 {
		out.Y1 = 0
	}
	if imageWidth > 0 && out.X2 > imageWidth {
		out.X2 = imageWidth
	}
	if imageHeight > 0 && out.Y2 > imageHeight {
		out.Y2 = imageHeight
	}
	return out
}

// Face is one detected occurrence of a face in one asset. PersonID is nil
// until identity resolution has attached it to a person.
type Face struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	AssetID     uuid.UUID   `json:"asset_id" db:"asset_id"`
	PersonID    *uuid.UUID  `json:"person_id,omitempty" db:"person_id"`
	BoundingBox BoundingBox `json:"bounding_box"`
	ImageWidth  int         `json:"image_width" db:"image_width"`
	ImageHeight int         `json:"image_height" db:"image_height"`
	Embedding   []float32   `json:"-" db:"embedding"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// Person is the resolved identity faces are assigned to. Persons are never
// auto-deleted; merging can leave them with zero faces.
type Person struct {
	ID            uuid.UUID `json:"id" db:"id"`
	OwnerID       uuid.UUID `json:"owner_id" db:"owner_id"`
	Name          string    `json:"name" db:"name"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty" db:"thumbnail_path"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
