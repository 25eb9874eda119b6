package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"islamic-qa-platform/internal/ai"
	"islamic-qa-platform/internal/cache"
	"islamic-qa-platform/internal/config"
	"islamic-qa-platform/internal/index"
	"islamic-qa-platform/internal/logger"
	"islamic-qa-platform/internal/queue"
	"islamic-qa-platform/internal/retrieval"
	"islamic-qa-platform/internal/store"
	"islamic-qa-platform/internal/telemetry"
	"islamic-qa-platform/middleware"
	"islamic-qa-platform/routes"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Telemetry
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}
	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer("islamic-qa-platform", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer shutdownTracer()
		}
	}

	// Embedding backend
	embedder, err := newEmbedder(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embeddings backend:", err)
	}
	if closer, ok := embedder.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// Retrieval engine and collaborators
	docs := store.NewMongoStore(mongoClient, cfg.DBName)
	vectorIndex := index.New(embedder.Dimension())
	respCache := cache.NewResponseCache(rdb, time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.CacheMaxEntries)
	engine := retrieval.New(embedder, vectorIndex, docs, respCache, retrieval.OptionsFromConfig(cfg), metrics)

	// Build the index at startup. Queries served before completion see a
	// smaller index, not an error.
	go func() {
		start := time.Now()
		if err := engine.RebuildIndex(context.Background()); err != nil {
			logger.Error("initial index build failed", "error", err)
			return
		}
		logger.Info("initial index build complete", "duration", time.Since(start).String())
	}()

	// Task queue. The consumer runs in this process: the vector index
	// lives in process memory, so index mutations cannot be handed to a
	// separate worker binary.
	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration for task queue:", err)
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	asynqServer := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.MaxConcurrentEmbeddings,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(engine, docs)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexDocument, processor.ProcessIndexDocument)
	mux.HandleFunc(queue.TaskRebuildIndex, processor.ProcessRebuildIndex)

	go func() {
		if err := asynqServer.Run(mux); err != nil {
			logger.Error("task server stopped", "error", err)
		}
	}()
	defer asynqServer.Shutdown()

	// Periodic incremental reindex sweep picks up documents ingested out
	// of band (bulk loaders writing straight to the store) and re-embeds
	// anything stale.
	scheduler := gocron.NewScheduler(time.UTC)
	_, err = scheduler.Cron(cfg.ReindexCron).Do(func() {
		since := time.Now().Add(-time.Duration(cfg.ReindexLookbackMins) * time.Minute)
		touched, err := engine.IncrementalReindex(context.Background(), since)
		if err != nil {
			logger.Error("incremental reindex failed", "error", err)
			return
		}
		if touched > 0 {
			logger.Info("incremental reindex complete", "documents", touched)
		}
	})
	if err != nil {
		log.Fatal("Failed to schedule incremental reindex:", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	router.Use(middleware.MetricsMiddleware(metrics))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}

	// Setup routes
	routes.SetupHealthRoutes(router, engine, mongoClient, rdb)
	routes.SetupSearchRoutes(router, engine)
	routes.SetupDocumentRoutes(router, engine, docs, asynqClient)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port, "embeddings", embedder.Version())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}

func newEmbedder(cfg *config.Config) (ai.Embedder, error) {
	if cfg.EmbeddingsProvider == "local" {
		return ai.NewLocalEmbedder(cfg.VectorDimensions), nil
	}
	return ai.NewGeminiEmbedder(
		cfg.GeminiAPIKey,
		cfg.GoogleEmbeddingsModel,
		cfg.VectorDimensions,
		cfg.MaxConcurrentEmbeddings,
		time.Duration(cfg.EmbedQueueWaitSeconds)*time.Second,
	)
}
