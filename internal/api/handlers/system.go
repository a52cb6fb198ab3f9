package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/mediavault/internal/storage"
)

// QueuePinger reports queue connectivity. Nil when running in embedded
// mode without a broker.
type QueuePinger interface {
	Ping() error
}

type SystemHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
	queue QueuePinger
}

func NewSystemHandler(db *storage.PostgresStore, minio *storage.MinIOStore, queue QueuePinger) *SystemHandler {
	return &SystemHandler{db: db, minio: minio, queue: queue}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := h.minio.Ping(ctx); err != nil {
		checks["minio"] = err.Error()
		healthy = false
	} else {
		checks["minio"] = "ok"
	}

	if h.queue != nil {
		if err := h.queue.Ping(); err != nil {
			checks["nats"] = err.Error()
			healthy = false
		} else {
			checks["nats"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}

// JobFailures lists recently dead-lettered jobs for operators.
func (h *SystemHandler) JobFailures(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	failures, err := h.db.ListJobFailures(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if failures == nil {
		failures = []storage.JobFailure{}
	}
	c.JSON(http.StatusOK, gin.H{"failures": failures, "total": len(failures)})
}
