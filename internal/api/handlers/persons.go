package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/auth"
	"github.com/your-org/mediavault/internal/storage"
	"github.com/your-org/mediavault/pkg/dto"
)

type PersonHandler struct {
	db *storage.PostgresStore
}

func NewPersonHandler(db *storage.PostgresStore) *PersonHandler {
	return &PersonHandler{db: db}
}

func (h *PersonHandler) List(c *gin.Context) {
	persons, err := h.db.ListPersons(c.Request.Context(), auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.PersonResponse, 0, len(persons))
	for _, p := range persons {
		resp = append(resp, dto.PersonResponse{
			ID:            p.ID,
			Name:          p.Name,
			ThumbnailPath: p.ThumbnailPath,
			CreatedAt:     p.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"persons": resp, "total": len(resp)})
}

func (h *PersonHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	person, err := h.db.GetPerson(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if person.OwnerID != auth.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	c.JSON(http.StatusOK, dto.PersonResponse{
		ID:            person.ID,
		Name:          person.Name,
		ThumbnailPath: person.ThumbnailPath,
		CreatedAt:     person.CreatedAt,
	})
}

// Update renames a person; identities start unnamed.
func (h *PersonHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	var req dto.UpdatePersonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	person, err := h.db.GetPerson(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if person.OwnerID != auth.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	if err := h.db.UpdatePersonName(c.Request.Context(), id, req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
