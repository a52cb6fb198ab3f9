package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/mediavault/internal/auth"
	"github.com/your-org/mediavault/internal/ingest"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/models"
	"github.com/your-org/mediavault/internal/storage"
	"github.com/your-org/mediavault/pkg/dto"
)

type AssetHandler struct {
	db      *storage.PostgresStore
	gateway *ingest.Gateway
	queue   jobs.Queue
}

func NewAssetHandler(db *storage.PostgresStore, gateway *ingest.Gateway, queue jobs.Queue) *AssetHandler {
	return &AssetHandler{db: db, gateway: gateway, queue: queue}
}

// Upload accepts a multipart upload and runs it through the ingest
// gateway. A duplicate responds 200 with the existing asset id; a new
// asset responds 201.
func (h *AssetHandler) Upload(c *gin.Context) {
	ownerID := auth.UserID(c)

	file, header, err := c.Request.FormFile("assetData")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assetData file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read upload failed"})
		return
	}

	libraryID := ownerID
	if v := c.PostForm("libraryId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid libraryId"})
			return
		}
		libraryID = id
	}

	up := ingest.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		IsFavorite:  c.PostForm("isFavorite") == "true",
	}
	if v := c.PostForm("fileCreatedAt"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			up.FileCreatedAt = &t
		}
	}
	if v := c.PostForm("fileModifiedAt"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			up.FileModifiedAt = &t
		}
	}
	if sidecar, _, err := c.Request.FormFile("sidecarData"); err == nil {
		up.SidecarData, _ = io.ReadAll(sidecar)
		sidecar.Close()
	}

	result, err := h.gateway.Create(c.Request.Context(), ownerID, libraryID, up)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, dto.UploadResponse{ID: result.AssetID, Duplicate: result.Duplicate})
}

func (h *AssetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}

	asset, err := h.db.GetAsset(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if asset.OwnerID != auth.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}
	c.JSON(http.StatusOK, toAssetResponse(*asset))
}

// Delete enqueues the deletion cascade and returns immediately; the row,
// search entries and files disappear asynchronously.
func (h *AssetHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}

	asset, err := h.db.GetAsset(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if asset.OwnerID != auth.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}

	job, err := jobs.NewJob(jobs.AssetDeletion, jobs.EntityPayload{ID: id, Source: "api"})
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.queue.Enqueue(c.Request.Context(), job); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "deletion queued"})
}

// Faces lists the detected faces of an asset.
func (h *AssetHandler) Faces(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}

	asset, err := h.db.GetAsset(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if asset.OwnerID != auth.UserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}

	faces, err := h.db.ListFacesByAsset(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if faces == nil {
		faces = []models.Face{}
	}
	c.JSON(http.StatusOK, gin.H{"faces": faces, "total": len(faces)})
}
