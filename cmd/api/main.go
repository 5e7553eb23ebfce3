package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"creator-coach/config"
	adviceapi "creator-coach/internal/api/advice"
	"creator-coach/internal/api/documents"
	"creator-coach/internal/api/healthcheck"
	queryapi "creator-coach/internal/api/query"
	retrieverapi "creator-coach/internal/api/retriever"
	coreingest "creator-coach/internal/core/ingest"
	"creator-coach/internal/core/query"
	"creator-coach/internal/core/retriever"
	"creator-coach/internal/database"
	"creator-coach/internal/middleware"
	"creator-coach/internal/repository"
	"creator-coach/internal/services/archive"
	"creator-coach/internal/services/ingest"
	"creator-coach/pkg/logger"
	s3client "creator-coach/pkg/s3"

	"github.com/gofiber/fiber/v3"
	malvus "github.com/milvus-io/milvus-sdk-go/v2/client"
)

// connectMilvusWithRetry waits for Milvus, which can take tens of seconds to boot.
func connectMilvusWithRetry(ctx context.Context, address string, attempts int, perAttemptTimeout, delay time.Duration) (malvus.Client, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, perAttemptTimeout)
		cli, err := malvus.NewClient(attemptCtx, malvus.Config{Address: address})
		cancel()
		if err == nil {
			return cli, nil
		}
		lastErr = err
		logger.Warn("milvus connect attempt %d/%d failed: %v", i+1, attempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// multipartOverhead covers the form fields and part headers sent next to the file.
const multipartOverhead = 64 << 10

// bodyLimit lets a file of ingest.max_file_bytes through, so the upload handler
// rather than the body reader decides what is too large.
func bodyLimit() int {
	return max(config.Cfg.Server.BodyLimit, int(config.Cfg.Ingest.MaxFileBytes)+multipartOverhead)
}

func openStore() (repository.Store, healthcheck.Pinger, error) {
	if config.Cfg.Database.Driver == config.DriverMemory {
		logger.Warn("database: using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil, nil
	}
	db, err := database.GetDB()
	if err != nil {
		return nil, nil, err
	}
	if config.Cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return repository.NewGormStore(db), database.Ping, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, dbPing, err := openStore()
	if err != nil {
		logger.Fatal(err, "database: setup failed")
	}

	embedder, err := coreingest.NewOpenAIEmbedder(coreingest.OpenAIConfigFromSettings())
	if err != nil {
		logger.Fatal(err, "openai: embedder setup failed")
	}

	var (
		milvusCli      malvus.Client
		vectorIndex    ingest.VectorIndex
		vectorSearcher retriever.VectorSearcher
	)
	opts := []ingest.Option{}
	if config.Cfg.Milvus.Enabled {
		milvusCli, err = connectMilvusWithRetry(ctx, config.Cfg.Milvus.Address, 20, 5*time.Second, 2*time.Second)
		if err != nil {
			logger.Fatal(err, "milvus connect error")
		}
		defer milvusCli.Close()

		idx, err := coreingest.NewMilvusIndex(ctx, milvusCli, config.Cfg.Milvus.Collection, config.Cfg.OpenAI.EmbeddingDim)
		if err != nil {
			logger.Fatal(err, "milvus: collection setup failed")
		}
		vectorIndex = idx
		vectorSearcher = retriever.NewMilvusSearcher(milvusCli)
		opts = append(opts, ingest.WithVectorIndex(idx))
		logger.Info("milvus ok")
	}

	if config.Cfg.S3.Enabled {
		client, err := s3client.GetClient(ctx)
		if err != nil {
			logger.Fatal(err, "s3: client setup failed")
		}
		opts = append(opts, ingest.WithArchiver(archive.NewS3Archiver(client, config.Cfg.S3.Bucket)))
	}

	pipeline := ingest.NewPipeline(store, embedder, ingest.LimitsFromConfig(), opts...)
	selector := retriever.NewSelectorFromConfig(store)
	searcher := retriever.NewSearcher(store, embedder, vectorSearcher)
	answerer, err := query.NewService(searcher, query.ConfigFromSettings())
	if err != nil {
		logger.Fatal(err, "openai: chat setup failed")
	}

	app := fiber.New(fiber.Config{
		AppName:      config.Cfg.Server.AppName,
		BodyLimit:    bodyLimit(),
		ErrorHandler: middleware.ErrorHandler,
	})
	app.Use(
		middleware.PanicRecovery(),
		middleware.RequestID(),
		middleware.ConnectionLimit(middleware.NewConnectionLimiter(config.Cfg.Server.Concurrency)),
		middleware.Timeout(time.Duration(config.Cfg.Server.RequestTimeout)*time.Second),
	)

	// routes
	healthcheck.RegisterRoutes(app, healthcheck.NewHandler(dbPing, milvusCli, config.Cfg.Milvus.Collection))
	api := app.Group("/api")
	documents.RegisterRoutes(api, documents.NewHandler(pipeline, store, vectorIndex, documents.ConfigFromSettings()))
	adviceapi.RegisterRoutes(api, adviceapi.NewHandler(selector))
	retrieverapi.RegisterRoutes(api, retrieverapi.NewHandler(searcher))
	queryapi.RegisterRoutes(api, queryapi.NewHandler(answerer))

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error(err, "server shutdown error")
		}
	}()

	addr := fmt.Sprintf(":%d", config.Cfg.Server.Port)
	if err := app.Listen(addr); err != nil {
		logger.Error(err, "server error")
	}
}
