package dto

import (
	"time"

	"github.com/google/uuid"
)

type PersonResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	ThumbnailPath string    `json:"thumbnailPath,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type UpdatePersonRequest struct {
	Name string `json:"name" binding:"required"`
}
