package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/mediavault/internal/apperr"
	"github.com/your-org/mediavault/internal/models"
	"github.com/your-org/mediavault/pkg/dto"
)

// writeError maps error kinds onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindTransient:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func toAssetResponse(a models.Asset) dto.AssetResponse {
	return dto.AssetResponse{
		ID:               a.ID,
		OwnerID:          a.OwnerID,
		LibraryID:        a.LibraryID,
		Type:             string(a.Type),
		OriginalFileName: a.OriginalFileName,
		PreviewPath:      a.PreviewPath,
		ThumbnailPath:    a.ThumbnailPath,
		IsFavorite:       a.IsFavorite,
		IsArchived:       a.IsArchived,
		FileCreatedAt:    a.FileCreatedAt,
		CreatedAt:        a.CreatedAt,
		TrashedAt:        a.TrashedAt,
	}
}

func toSearchResponse(assets []models.Asset) dto.SearchResponse {
	resp := dto.SearchResponse{Assets: make([]dto.AssetResponse, 0, len(assets))}
	for _, a := range assets {
		resp.Assets = append(resp.Assets, toAssetResponse(a))
	}
	resp.Total = len(resp.Assets)
	return resp
}
