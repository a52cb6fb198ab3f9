package dto

import (
	"time"

	"github.com/google/uuid"
)

// WSEvent is one asset lifecycle notification pushed over the WebSocket,
// e.g. "asset.metadata", "asset.thumbnails", "asset.faces",
// "asset.deleted".
type WSEvent struct {
	Event     string    `json:"event"`
	AssetID   uuid.UUID `json:"assetId"`
	Timestamp time.Time `json:"timestamp"`
}
