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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/mediavault/internal/config"
	"github.com/your-org/mediavault/internal/index"
	"github.com/your-org/mediavault/internal/jobs"
	"github.com/your-org/mediavault/internal/ml"
	"github.com/your-org/mediavault/internal/observability"
	"github.com/your-org/mediavault/internal/pipeline"
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

	slog.Info("starting mediavault pipeline worker",
		"default_workers", cfg.Jobs.DefaultWorkers,
		"max_attempts", cfg.Jobs.MaxAttempts,
	)

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

	// Connect to NATS
	natsQueue, err := jobs.NewNatsQueue(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer natsQueue.Close()

	if err := natsQueue.EnsureStream(context.Background()); err != nil {
		slog.Error("ensure nats stream", "error", err)
		os.Exit(1)
	}

	// Embedding indexes. The asset index joins the assets table on reads;
	// the face index is queried by the resolver directly.
	assetIndex, err := index.Open(context.Background(), db.Pool(), "smart_search", cfg.Index, true)
	if err != nil {
		slog.Error("open smart search index", "error", err)
		os.Exit(1)
	}
	faceIndex, err := index.Open(context.Background(), db.Pool(), "face_search", cfg.Index, false)
	if err != nil {
		slog.Error("open face search index", "error", err)
		os.Exit(1)
	}

	inference := ml.NewClient(cfg.Inference)
	batcher := search.NewBatcher(assetIndex, cfg.Search.DebounceWindow)

	p := pipeline.New(db, minioStore, inference, natsQueue, faceIndex, batcher, cfg.FaceMatch, nil)

	reg := jobs.NewRegistry()
	p.RegisterAll(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy := jobs.RetryPolicy{
		MaxAttempts: cfg.Jobs.MaxAttempts,
		Backoff:     jobs.ExponentialBackoff(cfg.Jobs.BackoffBase),
	}
	workers := make(map[jobs.Name]int, len(cfg.Jobs.Workers))
	for name, n := range cfg.Jobs.Workers {
		workers[jobs.Name(name)] = n
	}

	if err := natsQueue.Dispatch(ctx, reg, policy, workers, cfg.Jobs.DefaultWorkers, db); err != nil {
		slog.Error("start job dispatch", "error", err)
		os.Exit(1)
	}

	// Rebuild the smart index if the embedding width changed since last run.
	if _, err := search.RebuildIfNeeded(ctx, db, assetIndex, natsQueue, cfg.Index.Dimensions, cfg.Search.PageSize); err != nil {
		slog.Error("smart index bootstrap", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := natsQueue.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := batcher.Flush(flushCtx); err != nil {
		slog.Error("final index flush", "error", err)
	}

	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
