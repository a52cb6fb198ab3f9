package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/your-org/mediavault/internal/api"
	"github.com/your-org/mediavault/internal/api/ws"
	"github.com/your-org/mediavault/internal/config"
	"github.com/your-org/mediavault/internal/index"
	"github.com/your-org/mediavault/internal/ingest"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/ml"
	"github.com/your-org/mediavault/internal/observability"
	"github.com/your-org/mediavault/internal/search"
	"github.com/your-org/mediavault/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting mediavault API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	natsQueue, err := jobs.NewNatsQueue(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer natsQueue.Close()

	if err := natsQueue.EnsureStream(context.Background()); err != nil {
		slog.Warn("ensure nats stream", "error", err)
	}

	// Asset embedding index for smart search reads
	assetIndex, err := index.Open(context.Background(), db.Pool(), "smart_search", cfg.Index, true)
	if err != nil {
		slog.Error("open smart search index", "error", err)
		os.Exit(1)
	}

	inference := ml.NewClient(cfg.Inference)
	engine := search.NewEngine(db, assetIndex, inference, cfg.Search)
	gateway := ingest.NewGateway(db, minioStore, natsQueue)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	router := api.NewRouter(api.RouterConfig{
		APIKey:  cfg.Server.APIKey,
		DB:      db,
		MinIO:   minioStore,
		Gateway: gateway,
		Queue:   natsQueue,
		Pinger:  natsQueue,
		Engine:  engine,
		Hub:     hub,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
