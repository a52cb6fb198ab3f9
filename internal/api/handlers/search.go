package handlers

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/mediavault/internal/auth"
	"github.com/your-org/mediavault/internal/models"
	"github.com/your-org/mediavault/internal/search"
	"github.com/your-org/mediavault/internal/storage"
	"github.com/your-org/mediavault/pkg/dto"
)

type SearchHandler struct {
	engine *search.Engine
}

func NewSearchHandler(engine *search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Metadata runs a filtered relational search.
func (h *SearchHandler) Metadata(c *gin.Context) {
	var req dto.MetadataSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filters := storage.SearchFilters{
		Type:             models.AssetType(req.Type),
		IsFavorite:       req.IsFavorite,
		IsArchived:       req.IsArchived,
		City:             req.City,
		State:            req.State,
		Country:          req.Country,
		Make:             req.Make,
		Model:            req.Model,
		TakenAfter:       req.TakenAfter,
		TakenBefore:      req.TakenBefore,
		OriginalPath:     req.OriginalPath,
		OriginalFileName: req.OriginalFileName,
		Limit:            req.Limit,
		Offset:           req.Offset,
	}
	if req.Checksum != "" {
		sum, err := hex.DecodeString(req.Checksum)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "checksum must be hex encoded"})
			return
		}
		filters.Checksum = sum
	}

	assets, err := h.engine.SearchMetadata(c.Request.Context(), auth.UserID(c), filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSearchResponse(assets))
}

// Smart runs a free-text embedding search.
func (h *SearchHandler) Smart(c *gin.Context) {
	var req dto.SmartSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assets, err := h.engine.SearchSmart(c.Request.Context(), auth.UserID(c), req.Query, req.Limit, req.WithArchived)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSearchResponse(assets))
}

// Suggestions returns the distinct filter values visible to the caller.
func (h *SearchHandler) Suggestions(c *gin.Context) {
	s, err := h.engine.Suggestions(c.Request.Context(), auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
