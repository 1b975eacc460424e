package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-rag-chatbot/internal/ai"
	"pdf-rag-chatbot/internal/config"
	"pdf-rag-chatbot/internal/logger"
	"pdf-rag-chatbot/internal/scheduler"
	"pdf-rag-chatbot/internal/telemetry"
	"pdf-rag-chatbot/internal/workerpool"
	"pdf-rag-chatbot/middleware"
	"pdf-rag-chatbot/routes"
	"pdf-rag-chatbot/services"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	metrics, err := telemetry.InitMetrics(cfg.ServiceName)
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
		metrics = nil
	}

	// Storage backend: Mongo when configured and reachable, otherwise memory.
	memory := services.NewMemoryStore()
	var (
		mongoClient *mongo.Client
		backend     *services.StorageBackend
	)
	if cfg.DurableStoreConfigured() {
		mongoClient, err = config.ConnectMongoDB(cfg)
		if err != nil {
			logger.Warn("MongoDB unavailable, using in-memory storage", "error", err)
		}
	}
	if mongoClient != nil {
		coll := mongoClient.Database(cfg.DBName).Collection(cfg.MongoCollection)
		backend = services.NewPrimaryBackend(
			services.NewMongoStore(coll, cfg.DeleteBatchSize, cfg.CompressThreshold),
			memory,
			metrics,
		)
		logger.Info("Using MongoDB document store", "db", cfg.DBName, "collection", cfg.MongoCollection)
	} else {
		backend = services.NewFallbackBackend(memory, metrics)
		logger.Info("Using in-memory document store")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
			rdb = nil
		}
	}

	pool, err := workerpool.New("rag", &workerpool.Config{
		Capacity:       cfg.WorkerPoolSize,
		ExpiryDuration: 30 * time.Second,
	})
	if err != nil {
		logger.Error("Failed to create worker pool", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	generator, err := ai.NewGeminiClient(ctx, cfg, metrics)
	if err != nil {
		logger.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	embedder, err := ai.NewGeminiEmbedder(ctx, cfg, metrics)
	if err != nil {
		logger.Error("Failed to initialize embedding model", "error", err)
		os.Exit(1)
	}
	logger.Info("AI components ready", "model", generator.Model(), "pool", pool.Name(), "workers", pool.Cap())

	chunker := services.NewChunker(
		services.WithChunkSize(cfg.ChunkSize),
		services.WithChunkOverlap(cfg.ChunkOverlap),
	)
	cache := services.NewCorpusCache(backend, chunker, cfg.CorpusCacheTTL, metrics)
	engine := services.NewRAGEngine(cache, embedder, generator, pool, services.RAGEngineConfig{
		RetrievalK:        cfg.RetrievalK,
		SimilarityK:       cfg.SimilarityK,
		GenerationTimeout: cfg.GenerationTimeout,
		IndexBuildTimeout: cfg.IndexBuildTimeout,
	}, metrics)
	ingestor := services.NewIngestor(backend, services.NewPDFExtractor(), chunker, engine, pool, services.IngestorConfig{
		UploadDir:         cfg.UploadDir,
		ExtractionTimeout: cfg.ExtractionTimeout,
	}, metrics)

	jobs := scheduler.New()
	err = jobs.Every("upload-janitor", cfg.UploadSweepInterval, func() error {
		_, err := services.SweepStaleUploads(cfg.UploadDir, cfg.UploadMaxAge, time.Now())
		return err
	})
	if err != nil {
		logger.Error("Failed to schedule upload janitor", "error", err)
		os.Exit(1)
	}
	jobs.Start()
	logger.Info("Scheduler started", "jobs", jobs.Jobs())

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware(cfg.ServiceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	var mongoConnected func() bool
	if mongoClient != nil {
		mongoConnected = func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return mongoClient.Ping(ctx, nil) == nil
		}
	}

	routes.SetupRAGRoutes(router, routes.RAGDependencies{
		Engine:         engine,
		Ingestor:       ingestor,
		MongoConnected: mongoConnected,
		MaxFileSize:    cfg.MaxFileSize,
		SimilarityK:    cfg.SimilarityK,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "storage", backend.Kind())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	jobs.Stop()
	stats := pool.Stats()
	if err := pool.Release(10 * time.Second); err != nil {
		logger.Warn("Worker pool release timed out", "error", err)
	}
	logger.Info("Worker pool released",
		"pool", pool.Name(),
		"completed", stats.Completed,
		"failed", stats.Failed,
		"panics", stats.Panics,
	)
	if err := generator.Close(); err != nil {
		logger.Warn("Failed to close Gemini client", "error", err)
	}
	if err := embedder.Close(); err != nil {
		logger.Warn("Failed to close embedding client", "error", err)
	}
	if mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Warn("Failed to disconnect MongoDB", "error", err)
		}
		cancel()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	shutdownTracer(shutdownCtx)

	logger.Info("Server exited")
}
