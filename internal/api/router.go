package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/mediavault/internal/api/handlers"
	"github.com/your-org/mediavault/internal/api/ws"
	"github.com/your-org/mediavault/internal/auth"
	"github.com/your-org/mediavault/internal/ingest"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/search"
	"github.com/your-org/mediavault/internal/storage"
)

type RouterConfig struct {
	APIKey  string
	DB      *storage.PostgresStore
	MinIO   *storage.MinIOStore
	Gateway *ingest.Gateway
	Queue   jobs.Queue
	Pinger  handlers.QueuePinger
	Engine  *search.Engine
	Hub     *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Pinger)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))
	v1.Use(auth.UserMiddleware())

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Assets
	assetH := handlers.NewAssetHandler(cfg.DB, cfg.Gateway, cfg.Queue)
	v1.POST("/assets", assetH.Upload)
	v1.GET("/assets/:id", assetH.Get)
	v1.DELETE("/assets/:id", assetH.Delete)
	v1.GET("/assets/:id/faces", assetH.Faces)

	// Search
	searchH := handlers.NewSearchHandler(cfg.Engine)
	v1.POST("/search/metadata", searchH.Metadata)
	v1.POST("/search/smart", searchH.Smart)
	v1.GET("/search/suggestions", searchH.Suggestions)

	// Persons
	personH := handlers.NewPersonHandler(cfg.DB)
	v1.GET("/persons", personH.List)
	v1.GET("/persons/:id", personH.Get)
	v1.PUT("/persons/:id", personH.Update)

	// Operations
	v1.GET("/jobs/failures", systemH.JobFailures)

	return r
}
