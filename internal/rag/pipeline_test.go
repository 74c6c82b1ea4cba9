package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letha11/backend-chatbot/internal/models"
	"github.com/letha11/backend-chatbot/internal/observability/metrics"
	"github.com/letha11/backend-chatbot/internal/search"
)

type stubStore struct {
	statuses  []models.DocumentStatus
	updateErr error
}

func (s *stubStore) UpdateStatus(_ context.Context, _ uuid.UUID, status models.DocumentStatus) error {
	s.statuses = append(s.statuses, status)
	return s.updateErr
}

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte, _, _ string) (string, error) {
	return s.text, s.err
}

type passthroughCleaner struct{}

func (passthroughCleaner) CleanDocument(text string) string { return text }

type stubChunker struct {
	chunks []models.Chunk
}

func (s *stubChunker) Split(string) []models.Chunk { return s.chunks }

type stubEmbedder struct {
	vectors [][]float32
	err     error
	texts   []string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.texts = texts
	return s.vectors, s.err
}

type storeIndex struct {
	search.Index
	records  []search.Record
	storeErr error
}

func (s *storeIndex) Store(_ context.Context, records []search.Record) error {
	s.records = records
	return s.storeErr
}

type notification struct {
	kind  string
	stage string
	count int
}

type recordingNotifier struct {
	events []notification
}

func (n *recordingNotifier) ParsingStarted(_ context.Context, _, _, _ string) {
	n.events = append(n.events, notification{kind: "parsing_started"})
}

func (n *recordingNotifier) ParsingCompleted(_ context.Context, _, _ string, chunkCount int) {
	n.events = append(n.events, notification{kind: "parsing_completed", count: chunkCount})
}

func (n *recordingNotifier) EmbeddingStarted(_ context.Context, _, _ string) {
	n.events = append(n.events, notification{kind: "embedding_started"})
}

func (n *recordingNotifier) EmbeddingCompleted(_ context.Context, _, _ string, embeddingCount int) {
	n.events = append(n.events, notification{kind: "embedding_completed", count: embeddingCount})
}

func (n *recordingNotifier) ProcessingFailed(_ context.Context, _, _, stage string, _ error) {
	n.events = append(n.events, notification{kind: "processing_failed", stage: stage})
}

func (n *recordingNotifier) kinds() []string {
	kinds := make([]string, len(n.events))
	for i, ev := range n.events {
		kinds[i] = ev.kind
	}
	return kinds
}

func testDocument() *models.Document {
	return &models.Document{
		ID:               uuid.New(),
		DivisionID:       uuid.New(),
		OriginalFilename: "report.pdf",
		FileType:         "pdf",
		Status:           models.StatusUploaded,
		IsActive:         true,
	}
}

func twoChunks() []models.Chunk {
	return []models.Chunk{
		{Text: "first chunk", Index: 0},
		{Text: "second chunk", Index: 1},
	}
}

func TestProcessHappyPath(t *testing.T) {
	store := &stubStore{}
	embedder := &stubEmbedder{vectors: [][]float32{{0.1}, {0.2}}}
	idx := &storeIndex{}
	notifier := &recordingNotifier{}
	doc := testDocument()

	p := NewPipeline(store, &stubExtractor{text: "some text"}, passthroughCleaner{},
		&stubChunker{chunks: twoChunks()}, embedder, idx, notifier, nil, nil)
	p.Process(context.Background(), doc, []byte("raw"))

	assert.Equal(t, []models.DocumentStatus{
		models.StatusParsing,
		models.StatusParsed,
		models.StatusEmbedding,
		models.StatusEmbedded,
	}, store.statuses)
	assert.Equal(t, []string{
		"parsing_started",
		"parsing_completed",
		"embedding_started",
		"embedding_completed",
	}, notifier.kinds())
	assert.Equal(t, 2, notifier.events[1].count)
	assert.Equal(t, 2, notifier.events[3].count)

	assert.Equal(t, []string{"first chunk", "second chunk"}, embedder.texts)
	require.Len(t, idx.records, 2)
	assert.Equal(t, doc.ID.String(), idx.records[0].DocumentID)
	assert.Equal(t, doc.DivisionID.String(), idx.records[0].DivisionID)
	assert.Equal(t, "report.pdf", idx.records[0].Filename)
	assert.Equal(t, 1, idx.records[1].ChunkIndex)
	assert.True(t, idx.records[0].IsActive)
	assert.Equal(t, []float32{0.2}, idx.records[1].Embedding)
}

func TestProcessExtractionFailure(t *testing.T) {
	store := &stubStore{}
	notifier := &recordingNotifier{}

	p := NewPipeline(store, &stubExtractor{err: errors.New("corrupt file")}, passthroughCleaner{},
		&stubChunker{}, &stubEmbedder{}, &storeIndex{}, notifier, nil, nil)
	p.Process(context.Background(), testDocument(), nil)

	assert.Equal(t, []models.DocumentStatus{
		models.StatusParsing,
		models.StatusParsingFailed,
	}, store.statuses)
	assert.Equal(t, []string{"parsing_started", "processing_failed"}, notifier.kinds())
	assert.Equal(t, "parsing", notifier.events[1].stage)
}

func TestProcessNoChunksIsParsingFailure(t *testing.T) {
	store := &stubStore{}
	notifier := &recordingNotifier{}

	p := NewPipeline(store, &stubExtractor{text: "   "}, passthroughCleaner{},
		&stubChunker{chunks: nil}, &stubEmbedder{}, &storeIndex{}, notifier, nil, nil)
	p.Process(context.Background(), testDocument(), nil)

	assert.Equal(t, models.StatusParsingFailed, store.statuses[len(store.statuses)-1])
	assert.Equal(t, "processing_failed", notifier.events[len(notifier.events)-1].kind)
	assert.Equal(t, "parsing", notifier.events[len(notifier.events)-1].stage)
}

func TestProcessEmbeddingFailure(t *testing.T) {
	store := &stubStore{}
	notifier := &recordingNotifier{}

	p := NewPipeline(store, &stubExtractor{text: "text"}, passthroughCleaner{},
		&stubChunker{chunks: twoChunks()}, &stubEmbedder{err: errors.New("rate limited")},
		&storeIndex{}, notifier, nil, nil)
	p.Process(context.Background(), testDocument(), nil)

	assert.Equal(t, models.StatusEmbeddingFailed, store.statuses[len(store.statuses)-1])
	last := notifier.events[len(notifier.events)-1]
	assert.Equal(t, "processing_failed", last.kind)
	assert.Equal(t, "embedding", last.stage)
}

func TestProcessVectorCountMismatchFails(t *testing.T) {
	store := &stubStore{}
	notifier := &recordingNotifier{}

	p := NewPipeline(store, &stubExtractor{text: "text"}, passthroughCleaner{},
		&stubChunker{chunks: twoChunks()}, &stubEmbedder{vectors: [][]float32{{0.1}}},
		&storeIndex{}, notifier, nil, nil)
	p.Process(context.Background(), testDocument(), nil)

	assert.Equal(t, models.StatusEmbeddingFailed, store.statuses[len(store.statuses)-1])
}

func TestProcessStoreFailure(t *testing.T) {
	store := &stubStore{}
	notifier := &recordingNotifier{}

	p := NewPipeline(store, &stubExtractor{text: "text"}, passthroughCleaner{},
		&stubChunker{chunks: twoChunks()}, &stubEmbedder{vectors: [][]float32{{0.1}, {0.2}}},
		&storeIndex{storeErr: errors.New("index unavailable")}, notifier, nil, nil)
	p.Process(context.Background(), testDocument(), nil)

	assert.Equal(t, models.StatusEmbeddingFailed, store.statuses[len(store.statuses)-1])
	last := notifier.events[len(notifier.events)-1]
	assert.Equal(t, "embedding", last.stage)
}

func TestProcessStatusPersistenceFailureDoesNotStopPipeline(t *testing.T) {
	store := &stubStore{updateErr: errors.New("db down")}
	notifier := &recordingNotifier{}
	idx := &storeIndex{}

	p := NewPipeline(store, &stubExtractor{text: "text"}, passthroughCleaner{},
		&stubChunker{chunks: twoChunks()}, &stubEmbedder{vectors: [][]float32{{0.1}, {0.2}}},
		idx, notifier, nil, nil)
	p.Process(context.Background(), testDocument(), nil)

	// All stages still ran and were announced.
	assert.Equal(t, "embedding_completed", notifier.events[len(notifier.events)-1].kind)
	assert.Len(t, idx.records, 2)
}

func TestProcessPanicBecomesProcessingFailed(t *testing.T) {
	store := &stubStore{}
	notifier := &recordingNotifier{}

	p := NewPipeline(store, &panickingExtractor{}, passthroughCleaner{},
		&stubChunker{}, &stubEmbedder{}, &storeIndex{}, notifier, nil, nil)
	p.Process(context.Background(), testDocument(), nil)

	assert.Equal(t, models.StatusProcessingFailed, store.statuses[len(store.statuses)-1])
	last := notifier.events[len(notifier.events)-1]
	assert.Equal(t, "processing_failed", last.kind)
	assert.Equal(t, "processing", last.stage)
}

type panickingExtractor struct{}

func (panickingExtractor) Extract(context.Context, []byte, string, string) (string, error) {
	panic("library bug")
}

func TestProcessRecordsIngestionMetrics(t *testing.T) {
	collector := metrics.NewCollector(prometheus.NewRegistry())
	store := &stubStore{}
	notifier := &recordingNotifier{}

	p := NewPipeline(store, &stubExtractor{text: "some text"}, passthroughCleaner{},
		&stubChunker{chunks: twoChunks()}, &stubEmbedder{vectors: [][]float32{{0.1}, {0.2}}},
		&storeIndex{}, notifier, collector, nil)
	p.Process(context.Background(), testDocument(), []byte("raw"))

	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.DocumentsProcessed.WithLabelValues(string(models.StatusEmbedded))))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.EmbeddingsCreated))
	// One observation per completed stage: parsing and embedding.
	assert.Equal(t, 2, testutil.CollectAndCount(collector.ProcessingDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.EmbeddingLatency))
}

func TestProcessFailureCountsTerminalStatus(t *testing.T) {
	collector := metrics.NewCollector(prometheus.NewRegistry())
	store := &stubStore{}
	notifier := &recordingNotifier{}

	p := NewPipeline(store, &stubExtractor{err: errors.New("corrupt file")}, passthroughCleaner{},
		&stubChunker{}, &stubEmbedder{}, &storeIndex{}, notifier, collector, nil)
	p.Process(context.Background(), testDocument(), nil)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(collector.DocumentsProcessed.WithLabelValues(string(models.StatusParsingFailed))))
	assert.Equal(t, float64(0), testutil.ToFloat64(collector.EmbeddingsCreated))
}

func TestJoinSources(t *testing.T) {
	results := []models.SimilarityResult{
		{Filename: "a.pdf"},
		{Filename: "b.txt"},
		{Filename: "a.pdf"},
	}
	assert.Equal(t, "a.pdf,b.txt", joinSources(results))
	assert.Equal(t, "", joinSources(nil))
}
