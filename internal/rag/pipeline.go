package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/models"
	"github.com/letha11/backend-chatbot/internal/observability/metrics"
	"github.com/letha11/backend-chatbot/internal/search"
)

// statusStore persists document status transitions.
type statusStore interface {
	UpdateStatus(ctx context.Context, documentID uuid.UUID, status models.DocumentStatus) error
}

// textExtractor extracts plain text from raw file bytes.
type textExtractor interface {
	Extract(ctx context.Context, content []byte, fileType, filename string) (string, error)
}

// documentCleaner normalizes extracted text before chunking.
type documentCleaner interface {
	CleanDocument(text string) string
}

// chunkSplitter splits cleaned text into overlapping chunks.
type chunkSplitter interface {
	Split(text string) []models.Chunk
}

// embedder generates embedding vectors for chunk texts.
type embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// stageNotifier emits processing-stage webhooks. All methods are
// best-effort and must not fail the pipeline.
type stageNotifier interface {
	ParsingStarted(ctx context.Context, documentID, filename, fileType string)
	ParsingCompleted(ctx context.Context, documentID, filename string, chunkCount int)
	EmbeddingStarted(ctx context.Context, documentID, filename string)
	EmbeddingCompleted(ctx context.Context, documentID, filename string, embeddingCount int)
	ProcessingFailed(ctx context.Context, documentID, filename, stage string, err error)
}

// Pipeline drives a document through its processing states:
// parsing -> parsed -> embedding -> embedded, with a *_failed absorbing
// state reachable from any active stage. Every transition persists the new
// status and notifies the main application.
type Pipeline struct {
	store     statusStore
	extractor textExtractor
	cleaner   documentCleaner
	chunker   chunkSplitter
	embedder  embedder
	index     search.Index
	notifier  stageNotifier
	metrics   *metrics.Collector
	logger    *logrus.Logger
}

// NewPipeline wires the processing stages together. A nil collector disables
// instrumentation.
func NewPipeline(
	store statusStore,
	extractor textExtractor,
	cleaner documentCleaner,
	chunker chunkSplitter,
	embedder embedder,
	index search.Index,
	notifier stageNotifier,
	collector *metrics.Collector,
	logger *logrus.Logger,
) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		cleaner:   cleaner,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		notifier:  notifier,
		metrics:   collector,
		logger:    logger,
	}
}

// Process runs the full ingestion pipeline for one document. It never
// returns an error to its caller: failures are terminal states recorded in
// the database and announced via webhook, and re-submission is the caller's
// retry mechanism.
func (p *Pipeline) Process(ctx context.Context, doc *models.Document, content []byte) {
	documentID := doc.ID.String()
	log := p.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"filename":    doc.OriginalFilename,
	})
	log.Info("Starting document processing")

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Document processing panicked")
			p.setStatus(ctx, doc.ID, models.StatusProcessingFailed)
			p.countDocument(models.StatusProcessingFailed)
			p.notifier.ProcessingFailed(ctx, documentID, doc.OriginalFilename,
				"processing", fmt.Errorf("%v", r))
		}
	}()

	// Parsing stage.
	parseStart := time.Now()
	p.setStatus(ctx, doc.ID, models.StatusParsing)
	p.notifier.ParsingStarted(ctx, documentID, doc.OriginalFilename, doc.FileType)

	text, err := p.extractor.Extract(ctx, content, doc.FileType, doc.OriginalFilename)
	if err != nil {
		log.WithError(err).Error("Document parsing failed")
		p.setStatus(ctx, doc.ID, models.StatusParsingFailed)
		p.countDocument(models.StatusParsingFailed)
		p.notifier.ProcessingFailed(ctx, documentID, doc.OriginalFilename, "parsing", err)
		return
	}

	chunks := p.chunker.Split(p.cleaner.CleanDocument(text))
	if len(chunks) == 0 {
		log.Error("Document produced no chunks")
		p.setStatus(ctx, doc.ID, models.StatusParsingFailed)
		p.countDocument(models.StatusParsingFailed)
		p.notifier.ProcessingFailed(ctx, documentID, doc.OriginalFilename, "parsing",
			fmt.Errorf("no text chunks extracted"))
		return
	}

	p.setStatus(ctx, doc.ID, models.StatusParsed)
	p.observeStage("parsing", parseStart)
	log.WithField("chunks", len(chunks)).Info("Document parsed")
	p.notifier.ParsingCompleted(ctx, documentID, doc.OriginalFilename, len(chunks))

	// Embedding stage.
	embedStart := time.Now()
	p.setStatus(ctx, doc.ID, models.StatusEmbedding)
	p.notifier.EmbeddingStarted(ctx, documentID, doc.OriginalFilename)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embedCall := time.Now()
	vectors, err := p.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) != len(chunks) {
		err = fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors))
	}
	if err != nil {
		log.WithError(err).Error("Embedding generation failed")
		p.setStatus(ctx, doc.ID, models.StatusEmbeddingFailed)
		p.countDocument(models.StatusEmbeddingFailed)
		p.notifier.ProcessingFailed(ctx, documentID, doc.OriginalFilename, "embedding", err)
		return
	}
	if p.metrics != nil {
		p.metrics.EmbeddingLatency.Observe(time.Since(embedCall).Seconds())
		p.metrics.EmbeddingsCreated.Add(float64(len(vectors)))
	}

	records := make([]search.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = search.Record{
			DocumentID: documentID,
			DivisionID: doc.DivisionID.String(),
			ChunkText:  chunk.Text,
			ChunkIndex: chunk.Index,
			Filename:   doc.OriginalFilename,
			IsActive:   doc.IsActive,
			Embedding:  vectors[i],
		}
	}

	if err := p.index.Store(ctx, records); err != nil {
		log.WithError(err).Error("Failed to store embeddings")
		p.setStatus(ctx, doc.ID, models.StatusEmbeddingFailed)
		p.countDocument(models.StatusEmbeddingFailed)
		p.notifier.ProcessingFailed(ctx, documentID, doc.OriginalFilename, "embedding", err)
		return
	}

	p.setStatus(ctx, doc.ID, models.StatusEmbedded)
	p.observeStage("embedding", embedStart)
	p.countDocument(models.StatusEmbedded)
	log.WithField("embeddings", len(records)).Info("Document processing completed")
	p.notifier.EmbeddingCompleted(ctx, documentID, doc.OriginalFilename, len(records))
}

// observeStage records how long a completed pipeline stage took.
func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ProcessingDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// countDocument counts a document reaching a terminal status.
func (p *Pipeline) countDocument(status models.DocumentStatus) {
	if p.metrics != nil {
		p.metrics.DocumentsProcessed.WithLabelValues(string(status)).Inc()
	}
}

// setStatus persists a transition. Persistence failures are logged but never
// stop the pipeline: the webhook stream still reflects actual progress.
func (p *Pipeline) setStatus(ctx context.Context, documentID uuid.UUID, status models.DocumentStatus) {
	if err := p.store.UpdateStatus(ctx, documentID, status); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"document_id": documentID,
			"status":      status,
		}).Error("Failed to persist document status")
	}
}

// joinSources builds the comma-separated unique filename list attached to an
// assistant message.
func joinSources(results []models.SimilarityResult) string {
	seen := make(map[string]struct{})
	var names []string
	for _, res := range results {
		if _, ok := seen[res.Filename]; ok {
			continue
		}
		seen[res.Filename] = struct{}{}
		names = append(names, res.Filename)
	}
	return strings.Join(names, ",")
}
