package dto

import "time"

// MetadataSearchRequest filters a relational search. Empty fields are not
// filtered on.
type MetadataSearchRequest struct {
	Type             string     `json:"type,omitempty"`
	IsFavorite       *bool      `json:"isFavorite,omitempty"`
	IsArchived       *bool      `json:"isArchived,omitempty"`
	Checksum         string     `json:"checksum,omitempty"` // hex encoded
	City             string     `json:"city,omitempty"`
	State            string     `json:"state,omitempty"`
	Country          string     `json:"country,omitempty"`
	Make             string     `json:"make,omitempty"`
	Model            string     `json:"model,omitempty"`
	TakenAfter       *time.Time `json:"takenAfter,omitempty"`
	TakenBefore      *time.Time `json:"takenBefore,omitempty"`
	OriginalPath     string     `json:"originalPath,omitempty"`
	OriginalFileName string     `json:"originalFileName,omitempty"`
	Limit            int        `json:"limit,omitempty"`
	Offset           int        `json:"offset,omitempty"`
}

// SmartSearchRequest is a free-text embedding search. WithArchived opts
// archived assets into the result set.
type SmartSearchRequest struct {
	Query        string `json:"query" binding:"required"`
	WithArchived bool   `json:"withArchived,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

type SearchResponse struct {
	Assets []AssetResponse `json:"assets"`
	Total  int             `json:"total"`
}
