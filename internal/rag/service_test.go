package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letha11/backend-chatbot/internal/conversation"
	"github.com/letha11/backend-chatbot/internal/database"
	"github.com/letha11/backend-chatbot/internal/llm"
	"github.com/letha11/backend-chatbot/internal/models"
)

type stubCleaner struct{}

func (stubCleaner) CleanQuery(query string) string { return strings.ToLower(query) }

func (stubCleaner) ExtractKeyTerms(text string, maxTerms int) []string {
	return []string{"revenue"}
}

func (stubCleaner) EnhanceQuery(query string, keyTerms []string) string {
	return query + " " + strings.Join(keyTerms, " ")
}

type stubQueryEmbedder struct {
	embedding []float32
	err       error
	query     string
}

func (s *stubQueryEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	s.query = query
	return s.embedding, s.err
}

type stubRetriever struct {
	hybridResults []models.SimilarityResult
	hybridErr     error
	vectorResults []models.SimilarityResult
	vectorErr     error

	hybridQuery string
	vectorUsed  bool
	topK        int
}

func (s *stubRetriever) Search(_ context.Context, query string, _ []float32, _ string, topK int) ([]models.SimilarityResult, error) {
	s.hybridQuery = query
	s.topK = topK
	return s.hybridResults, s.hybridErr
}

func (s *stubRetriever) VectorOnly(_ context.Context, _ []float32, _ string, _ int) ([]models.SimilarityResult, error) {
	s.vectorUsed = true
	return s.vectorResults, s.vectorErr
}

type stubLLM struct {
	answer   string
	title    string
	err      error
	requests []struct {
		system string
		prompt string
		opts   llm.Options
	}
}

func (s *stubLLM) Complete(_ context.Context, system string, messages []llm.Message, opts llm.Options) (string, error) {
	s.requests = append(s.requests, struct {
		system string
		prompt string
		opts   llm.Options
	}{system, messages[len(messages)-1].Content, opts})
	if s.err != nil {
		return "", s.err
	}
	if system == titleSystemPrompt {
		return s.title, nil
	}
	return s.answer, nil
}

type stubConversations struct {
	enabled    bool
	history    []models.ConversationMessage
	historyErr error
	newConvID  *uuid.UUID
	ingestErr  error
	ingested   *conversation.IngestRequest
}

func (s *stubConversations) Enabled() bool { return s.enabled }

func (s *stubConversations) FetchHistory(_ context.Context, _ uuid.UUID) ([]models.ConversationMessage, error) {
	return s.history, s.historyErr
}

func (s *stubConversations) Ingest(_ context.Context, req conversation.IngestRequest) (*uuid.UUID, error) {
	s.ingested = &req
	if s.ingestErr != nil {
		return nil, s.ingestErr
	}
	if s.newConvID != nil {
		return s.newConvID, nil
	}
	return req.ConversationID, nil
}

type stubDivisionStore struct {
	docs    []database.DivisionDocument
	listErr error
	logErr  error

	loggedQuery  string
	loggedAnswer string
}

func (s *stubDivisionStore) ListDivisionDocuments(_ context.Context, _ uuid.UUID) ([]database.DivisionDocument, error) {
	return s.docs, s.listErr
}

func (s *stubDivisionStore) LogQuery(_ context.Context, _ *uuid.UUID, queryText, responseText string, _ *uuid.UUID) error {
	s.loggedQuery = queryText
	s.loggedAnswer = responseText
	return s.logErr
}

func newTestService(embedder *stubQueryEmbedder, ret *stubRetriever, model *stubLLM, conv *stubConversations, store *stubDivisionStore) *Service {
	return NewService(stubCleaner{}, embedder, ret, model, conv, store, "gpt-test", 5, nil)
}

func TestChatHappyPath(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1, 0.2}}
	ret := &stubRetriever{hybridResults: []models.SimilarityResult{
		{ChunkText: "revenue was 5M", Filename: "report.pdf", Distance: 0.4},
	}}
	model := &stubLLM{answer: "Pendapatan adalah 5M.", title: "Pendapatan Q3"}
	conv := &stubConversations{enabled: true}
	store := &stubDivisionStore{docs: []database.DivisionDocument{{Filename: "report.pdf", FileType: "pdf"}}}

	svc := newTestService(embedder, ret, model, conv, store)
	divisionID := uuid.New()
	result, err := svc.Chat(context.Background(), ChatParams{Query: "What is the Revenue?", DivisionID: divisionID})
	require.NoError(t, err)

	assert.Equal(t, "What is the Revenue?", result.Query)
	assert.Equal(t, "Pendapatan adalah 5M.", result.Answer)
	assert.Equal(t, "gpt-test", result.ModelUsed)
	assert.Equal(t, divisionID, result.DivisionID)
	require.Len(t, result.Sources, 1)

	// Query is cleaned and enhanced before embedding, but hybrid search and
	// the prompt use the original text.
	assert.Equal(t, "what is the revenue? revenue", embedder.query)
	assert.Equal(t, "What is the Revenue?", ret.hybridQuery)
	assert.Equal(t, 5, ret.topK)
	assert.False(t, ret.vectorUsed)

	prompt := model.requests[0].prompt
	assert.Contains(t, prompt, "Context 1 (from report.pdf):\nrevenue was 5M")
	assert.Contains(t, prompt, "- report.pdf (pdf)")
	assert.Contains(t, prompt, "New Question: What is the Revenue?")
	assert.Equal(t, answerSystemPrompt, model.requests[0].system)

	assert.Equal(t, "What is the Revenue?", store.loggedQuery)
	assert.Equal(t, "Pendapatan adalah 5M.", store.loggedAnswer)
}

func TestChatEmbeddingFailureIsFatal(t *testing.T) {
	embedder := &stubQueryEmbedder{err: errors.New("api down")}
	svc := newTestService(embedder, &stubRetriever{}, &stubLLM{}, &stubConversations{}, &stubDivisionStore{})

	_, err := svc.Chat(context.Background(), ChatParams{Query: "q", DivisionID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestChatGenerationFailureIsFatal(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	model := &stubLLM{err: errors.New("model overloaded")}
	svc := newTestService(embedder, &stubRetriever{}, model, &stubConversations{}, &stubDivisionStore{})

	_, err := svc.Chat(context.Background(), ChatParams{Query: "q", DivisionID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate answer")
}

func TestChatHybridFailureFallsBackToVector(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	ret := &stubRetriever{
		hybridErr:     errors.New("index down"),
		vectorResults: []models.SimilarityResult{{ChunkText: "fallback", Filename: "doc.txt"}},
	}
	model := &stubLLM{answer: "jawaban"}
	svc := newTestService(embedder, ret, model, &stubConversations{}, &stubDivisionStore{})

	result, err := svc.Chat(context.Background(), ChatParams{Query: "q", DivisionID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, ret.vectorUsed)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "fallback", result.Sources[0].ChunkText)
}

func TestChatBothRetrievalPathsFailingYieldsEmptyContext(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	ret := &stubRetriever{hybridErr: errors.New("down"), vectorErr: errors.New("also down")}
	model := &stubLLM{answer: "jawaban"}
	store := &stubDivisionStore{}
	svc := newTestService(embedder, ret, model, &stubConversations{}, store)

	result, err := svc.Chat(context.Background(), ChatParams{Query: "q", DivisionID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, result.Sources)
	assert.Contains(t, model.requests[0].prompt, "No documents are currently available in this division.")
}

func TestChatFirstTurnGeneratesTitleAndIngests(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	ret := &stubRetriever{hybridResults: []models.SimilarityResult{
		{ChunkText: "snippet", Filename: "a.pdf"},
		{ChunkText: "snippet2", Filename: "a.pdf"},
	}}
	model := &stubLLM{answer: "jawaban", title: "Judul Singkat"}
	newID := uuid.New()
	conv := &stubConversations{enabled: true, newConvID: &newID}
	userID := uuid.New()
	svc := newTestService(embedder, ret, model, conv, &stubDivisionStore{})

	result, err := svc.Chat(context.Background(), ChatParams{
		Query:      "pertanyaan",
		DivisionID: uuid.New(),
		UserID:     &userID,
	})
	require.NoError(t, err)

	require.NotNil(t, conv.ingested)
	assert.Nil(t, conv.ingested.ConversationID)
	assert.Equal(t, "Judul Singkat", conv.ingested.Title)
	assert.Equal(t, &userID, conv.ingested.UserID)
	require.Len(t, conv.ingested.Messages, 2)
	assert.Equal(t, "user", conv.ingested.Messages[0].Role)
	assert.Equal(t, "pertanyaan", conv.ingested.Messages[0].Content)
	assert.Equal(t, "assistant", conv.ingested.Messages[1].Role)
	assert.Equal(t, "a.pdf", conv.ingested.Messages[1].Sources)

	assert.Equal(t, &newID, result.ConversationID)

	// The title request runs at a lower temperature.
	require.Len(t, model.requests, 2)
	assert.Equal(t, titleSystemPrompt, model.requests[1].system)
	assert.InDelta(t, 0.3, model.requests[1].opts.Temperature, 1e-9)
}

func TestChatTitleFallsBackToQueryPrefix(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	model := &stubLLM{answer: "jawaban", title: ""}
	conv := &stubConversations{enabled: true}
	svc := newTestService(embedder, &stubRetriever{}, model, conv, &stubDivisionStore{})

	long := strings.Repeat("pertanyaan panjang ", 10)
	_, err := svc.Chat(context.Background(), ChatParams{Query: long, DivisionID: uuid.New()})
	require.NoError(t, err)

	require.NotNil(t, conv.ingested)
	assert.Equal(t, long[:60], conv.ingested.Title)
}

func TestChatExistingConversationFetchesHistory(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	model := &stubLLM{answer: "jawaban"}
	conv := &stubConversations{
		enabled: true,
		history: []models.ConversationMessage{
			{Role: "user", Content: "halo"},
			{Role: "assistant", Content: "hai"},
		},
	}
	svc := newTestService(embedder, &stubRetriever{}, model, conv, &stubDivisionStore{})

	convID := uuid.New()
	result, err := svc.Chat(context.Background(), ChatParams{
		Query:          "lanjutan",
		DivisionID:     uuid.New(),
		ConversationID: &convID,
	})
	require.NoError(t, err)

	assert.Contains(t, model.requests[0].prompt, "user: halo\nassistant: hai")
	// No title generation on follow-up turns.
	require.Len(t, model.requests, 1)
	require.NotNil(t, conv.ingested)
	assert.Equal(t, &convID, conv.ingested.ConversationID)
	assert.Empty(t, conv.ingested.Title)
	assert.Equal(t, &convID, result.ConversationID)
}

func TestChatHistoryFetchFailureIsTolerated(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	model := &stubLLM{answer: "jawaban"}
	conv := &stubConversations{enabled: true, historyErr: errors.New("timeout")}
	svc := newTestService(embedder, &stubRetriever{}, model, conv, &stubDivisionStore{})

	convID := uuid.New()
	_, err := svc.Chat(context.Background(), ChatParams{
		Query:          "q",
		DivisionID:     uuid.New(),
		ConversationID: &convID,
	})
	require.NoError(t, err)
}

func TestChatIngestFailureIsTolerated(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	model := &stubLLM{answer: "jawaban", title: "judul"}
	conv := &stubConversations{enabled: true, ingestErr: errors.New("upstream 500")}
	svc := newTestService(embedder, &stubRetriever{}, model, conv, &stubDivisionStore{})

	result, err := svc.Chat(context.Background(), ChatParams{Query: "q", DivisionID: uuid.New()})
	require.NoError(t, err)
	assert.Nil(t, result.ConversationID)
}

func TestChatDisabledConversationsSkipsSync(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	model := &stubLLM{answer: "jawaban"}
	conv := &stubConversations{enabled: false}
	svc := newTestService(embedder, &stubRetriever{}, model, conv, &stubDivisionStore{})

	_, err := svc.Chat(context.Background(), ChatParams{Query: "q", DivisionID: uuid.New()})
	require.NoError(t, err)
	assert.Nil(t, conv.ingested)
	// Only the answer request hit the LLM.
	require.Len(t, model.requests, 1)
}

func TestChatLogFailureIsTolerated(t *testing.T) {
	embedder := &stubQueryEmbedder{embedding: []float32{0.1}}
	model := &stubLLM{answer: "jawaban"}
	store := &stubDivisionStore{logErr: errors.New("db down")}
	svc := newTestService(embedder, &stubRetriever{}, model, &stubConversations{}, store)

	_, err := svc.Chat(context.Background(), ChatParams{Query: "q", DivisionID: uuid.New()})
	require.NoError(t, err)
}
