// mlservice is the document processing and retrieval microservice: it
// ingests uploaded documents (extraction, OCR, chunking, embedding), serves
// retrieval-augmented chat over them, and manages the search index.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/background"
	"github.com/letha11/backend-chatbot/internal/chunker"
	"github.com/letha11/backend-chatbot/internal/config"
	"github.com/letha11/backend-chatbot/internal/conversation"
	"github.com/letha11/backend-chatbot/internal/database"
	"github.com/letha11/backend-chatbot/internal/embedding"
	"github.com/letha11/backend-chatbot/internal/extractor"
	"github.com/letha11/backend-chatbot/internal/handlers"
	"github.com/letha11/backend-chatbot/internal/llm"
	"github.com/letha11/backend-chatbot/internal/notify"
	"github.com/letha11/backend-chatbot/internal/observability/metrics"
	"github.com/letha11/backend-chatbot/internal/ocr"
	"github.com/letha11/backend-chatbot/internal/rag"
	"github.com/letha11/backend-chatbot/internal/search/opensearch"
	miniostorage "github.com/letha11/backend-chatbot/internal/storage/minio"
	"github.com/letha11/backend-chatbot/internal/textclean"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Service failed")
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Database.
	repo, err := database.Connect(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	// Object storage.
	storageClient, err := miniostorage.NewClient(&miniostorage.Config{
		Endpoint:       cfg.Storage.Endpoint,
		AccessKey:      cfg.Storage.AccessKey,
		SecretKey:      cfg.Storage.SecretKey,
		UseSSL:         cfg.Storage.UseSSL,
		Bucket:         cfg.Storage.Bucket,
		RequestTimeout: cfg.Storage.RequestTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("invalid storage configuration: %w", err)
	}
	if err := storageClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to object storage: %w", err)
	}
	defer storageClient.Close()

	// Search index.
	searchCfg, err := opensearchConfig(cfg)
	if err != nil {
		return err
	}
	index, err := opensearch.NewClient(searchCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create search client: %w", err)
	}
	if err := index.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("failed to ensure search index: %w", err)
	}

	// Embedding and generation.
	embedder, err := embedding.NewOpenAIProvider(embedding.Config{
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
		Timeout:   cfg.Embedding.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	llmClient, err := llm.NewOpenAIClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	// Text processing.
	cleaner, err := textclean.New(logger)
	if err != nil {
		return fmt.Errorf("failed to load text cleaning profiles: %w", err)
	}
	splitter := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)

	engine := ocr.NewTesseractEngine(ocr.Config{
		BinaryPath: cfg.OCR.BinaryPath,
		Languages:  cfg.OCR.Languages,
		Timeout:    cfg.OCR.Timeout,
	}, logger)
	preprocessor := ocr.NewPreprocessor(cfg.OCR.MinEdgePixels, engine, logger)
	extract := extractor.New(engine, preprocessor, logger)

	// Upstream integration.
	notifier := notify.NewNotifier(&notify.Config{
		WebhookURL: cfg.Upstream.BaseURL + "/api/v1/events/webhook/document-processing",
		WebhookKey: cfg.Upstream.InternalAPIKey,
		Timeout:    cfg.Upstream.Timeout,
	}, logger)

	conversations := conversation.NewClient(&conversation.Config{
		BaseURL:        cfg.Upstream.BaseURL + "/api/v1",
		InternalAPIKey: cfg.Upstream.InternalAPIKey,
		HistoryLimit:   cfg.Upstream.HistoryLimit,
		Timeout:        cfg.Upstream.Timeout,
	}, logger)

	collector := metrics.NewCollector(nil)

	// Ingestion pipeline and worker pool.
	pipeline := rag.NewPipeline(repo, extract, cleaner, splitter, embedder, index, notifier, collector, logger)
	pool := background.NewPool(&background.Config{
		Workers:              cfg.Ingest.Workers,
		QueueSize:            cfg.Ingest.QueueSize,
		GracefulShutdownTime: 30 * time.Second,
	}, pipeline, collector.QueueDepth, logger)
	if err := pool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	// Retrieval and chat.
	hybrid := rag.NewHybridRetriever(index,
		cfg.Retrieval.VectorWeight, cfg.Retrieval.BM25Weight, cfg.Retrieval.ResultThreshold, logger)
	chatService := rag.NewService(cleaner, embedder, hybrid, llmClient, conversations, repo,
		cfg.LLM.Model, cfg.Retrieval.TopK, logger)

	// HTTP server.
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())

	handlers.RegisterRoutes(router,
		handlers.NewDocumentHandler(repo, storageClient, pool, index, logger),
		handlers.NewChatHandler(chatService, collector, logger),
		handlers.NewVectorHandler(index, logger),
		handlers.NewHealthHandler(repo, index, storageClient, version, cfg.Environment, logger),
		collector.Handler(),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"host": cfg.Server.Host,
			"port": cfg.Server.Port,
		}).Info("Starting document processing service")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		pool.Stop()
		return fmt.Errorf("server failed to start: %w", err)
	case <-quit:
	}

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// Let queued documents finish before exiting.
	pool.Stop()

	logger.Info("Server shutdown complete")
	return nil
}

// opensearchConfig translates the OPENSEARCH_URL environment setting into
// host, port, and TLS fields.
func opensearchConfig(cfg *config.Config) (*opensearch.Config, error) {
	parsed, err := url.Parse(cfg.Search.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid OpenSearch URL: %w", err)
	}

	port := 9200
	if parsed.Port() != "" {
		port, err = strconv.Atoi(parsed.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid OpenSearch port: %w", err)
		}
	}

	return &opensearch.Config{
		Host:      parsed.Hostname(),
		Port:      port,
		Username:  cfg.Search.Username,
		Password:  cfg.Search.Password,
		UseTLS:    parsed.Scheme == "https",
		IndexName: cfg.Search.IndexName,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.Search.Timeout,
	}, nil
}
