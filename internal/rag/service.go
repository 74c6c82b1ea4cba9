package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/conversation"
	"github.com/letha11/backend-chatbot/internal/database"
	"github.com/letha11/backend-chatbot/internal/llm"
	"github.com/letha11/backend-chatbot/internal/models"
)

const answerSystemPrompt = "You are a helpful assistant that answers questions based on the provided context. " +
	"Answer or state with bahasa Indonesia. " +
	"If you cannot find the answer in the context, say so clearly. " +
	"If task given is not related to the available documents or context, say " +
	"'Maaf, saya tidak dapat menjawab pertanyaan Anda dikarenakan tidak ada informasi yang relevan dalam pemahaman saya.' " +
	"in the respective language. " +
	"Response with rich Markdown as valid GitHub-flavored Markdown format, do separate each sentence with 2 new line " +
	"(USE '\\n\\n') instead of one and make sure when implementing bold, italic, underline, etc, use the correct syntax " +
	"and make sure when implementing table-like structure, use the correct syntax."

const titleSystemPrompt = "Create a short, descriptive title (max 8 words) for this conversation. " +
	"Query and answer are provided. " +
	"Return only the title, no quotes, no reason, no explanation, no nothing. " +
	"Use bahasa Indonesia."

// queryCleaner covers the query-side text normalization used before retrieval.
type queryCleaner interface {
	CleanQuery(query string) string
	ExtractKeyTerms(text string, maxTerms int) []string
	EnhanceQuery(query string, keyTerms []string) string
}

// queryEmbedder embeds a single query string.
type queryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// retriever is the hybrid search surface the service depends on.
type retriever interface {
	Search(ctx context.Context, query string, embedding []float32, divisionID string, topK int) ([]models.SimilarityResult, error)
	VectorOnly(ctx context.Context, embedding []float32, divisionID string, topK int) ([]models.SimilarityResult, error)
}

// conversationStore is the upstream conversation API surface.
type conversationStore interface {
	Enabled() bool
	FetchHistory(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMessage, error)
	Ingest(ctx context.Context, request conversation.IngestRequest) (*uuid.UUID, error)
}

// divisionStore is the relational metadata the service reads and writes.
type divisionStore interface {
	ListDivisionDocuments(ctx context.Context, divisionID uuid.UUID) ([]database.DivisionDocument, error)
	LogQuery(ctx context.Context, divisionID *uuid.UUID, queryText, responseText string, userID *uuid.UUID) error
}

// ChatParams is one incoming chat request.
type ChatParams struct {
	Query          string
	DivisionID     uuid.UUID
	ConversationID *uuid.UUID
	UserID         *uuid.UUID
	Title          string
}

// Service answers chat queries with retrieval-augmented generation: it
// cleans and enhances the query, retrieves division-scoped context, asks the
// LLM, and syncs the exchange back to the conversation store.
type Service struct {
	cleaner       queryCleaner
	embedder      queryEmbedder
	retriever     retriever
	llm           llm.Client
	conversations conversationStore
	store         divisionStore
	model         string
	topK          int
	logger        *logrus.Logger
}

// NewService wires the chat query flow together. model is reported back to
// callers as the generator used; topK bounds the context passed to the LLM.
func NewService(
	cleaner queryCleaner,
	embedder queryEmbedder,
	retriever retriever,
	llmClient llm.Client,
	conversations conversationStore,
	store divisionStore,
	model string,
	topK int,
	logger *logrus.Logger,
) *Service {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		cleaner:       cleaner,
		embedder:      embedder,
		retriever:     retriever,
		llm:           llmClient,
		conversations: conversations,
		store:         store,
		model:         model,
		topK:          topK,
		logger:        logger,
	}
}

// Chat processes one query end to end and returns the generated answer with
// its sources. Retrieval degradation (hybrid down, history unavailable,
// ingest failing) is tolerated; only embedding and generation failures are
// fatal.
func (s *Service) Chat(ctx context.Context, params ChatParams) (*models.ChatResult, error) {
	log := s.logger.WithField("division_id", params.DivisionID)
	log.WithField("query", truncate(params.Query, 100)).Info("Processing chat query")

	cleaned := s.cleaner.CleanQuery(params.Query)
	enhanced := cleaned
	if keyTerms := s.cleaner.ExtractKeyTerms(params.Query, 5); len(keyTerms) > 0 {
		enhanced = s.cleaner.EnhanceQuery(cleaned, keyTerms)
	}

	embedding, err := s.embedder.EmbedQuery(ctx, enhanced)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sources := s.retrieve(ctx, params.Query, embedding, params.DivisionID)

	var history []models.ConversationMessage
	if params.ConversationID != nil {
		history, err = s.conversations.FetchHistory(ctx, *params.ConversationID)
		if err != nil {
			log.WithError(err).Warn("Failed to fetch conversation history")
			history = nil
		}
	}

	prompt := s.buildPrompt(ctx, params.Query, sources, history, params.DivisionID)
	answer, err := s.llm.Complete(ctx, answerSystemPrompt,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	result := &models.ChatResult{
		Query:          params.Query,
		Answer:         answer,
		Sources:        sources,
		DivisionID:     params.DivisionID,
		ModelUsed:      s.model,
		ConversationID: params.ConversationID,
	}

	s.syncConversation(ctx, params, result)

	if err := s.store.LogQuery(ctx, &params.DivisionID, params.Query, answer, params.UserID); err != nil {
		log.WithError(err).Warn("Failed to log chat interaction")
	}

	return result, nil
}

// retrieve runs hybrid search, falling back to vector-only when hybrid is
// unavailable. Retrieval never fails the chat: an empty context produces a
// refusal answer instead.
func (s *Service) retrieve(ctx context.Context, query string, embedding []float32, divisionID uuid.UUID) []models.SimilarityResult {
	results, err := s.retriever.Search(ctx, query, embedding, divisionID.String(), s.topK)
	if err == nil {
		return results
	}
	s.logger.WithError(err).Warn("Hybrid search failed, falling back to vector search")

	results, err = s.retriever.VectorOnly(ctx, embedding, divisionID.String(), s.topK)
	if err != nil {
		s.logger.WithError(err).Error("Fallback vector search failed")
		return nil
	}
	return results
}

// buildPrompt assembles the user message: conversation history, the
// division's document inventory, the retrieved context blocks, and the new
// question.
func (s *Service) buildPrompt(ctx context.Context, query string, sources []models.SimilarityResult, history []models.ConversationMessage, divisionID uuid.UUID) string {
	var contextParts []string
	for i, src := range sources {
		contextParts = append(contextParts,
			fmt.Sprintf("Context %d (from %s):\n%s\n", i+1, src.Filename, src.ChunkText))
	}

	var historyParts []string
	for _, m := range history {
		historyParts = append(historyParts, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}

	var docsParts []string
	docs, err := s.store.ListDivisionDocuments(ctx, divisionID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to list division documents for prompt")
	}
	if len(docs) > 0 {
		docsParts = append(docsParts, "Available documents in this division:")
		for _, doc := range docs {
			docsParts = append(docsParts, fmt.Sprintf("- %s (%s)", doc.Filename, doc.FileType))
		}
	} else {
		docsParts = append(docsParts, "No documents are currently available in this division.")
	}

	return "You are a helpful assistant. Answer in bahasa Indonesia.\n\n" +
		"Conversation history (most recent last):\n" +
		strings.Join(historyParts, "\n") + "\n\n" +
		"Available documents: " + strings.Join(docsParts, "\n") + "\n\n" +
		"Use the following retrieved document context to answer the new user question.\n" +
		"If the answer is not in the context, say you don't have enough information.\n\n" +
		"Context:\n" + strings.Join(contextParts, "\n") + "\n\n" +
		"New Question: " + query + "\n\n" +
		"Answer:"
}

// syncConversation persists both turns to the conversation store. On the
// first turn it also generates a title. Every failure here is logged and
// swallowed: the answer has already been produced.
func (s *Service) syncConversation(ctx context.Context, params ChatParams, result *models.ChatResult) {
	if !s.conversations.Enabled() {
		return
	}

	title := ""
	if params.ConversationID == nil {
		title = s.generateTitle(ctx, params.Query, result.Answer)
		if title == "" {
			title = params.Title
		}
		if title == "" {
			title = truncate(params.Query, 60)
		}
	}

	convID, err := s.conversations.Ingest(ctx, conversation.IngestRequest{
		ConversationID: params.ConversationID,
		DivisionID:     params.DivisionID,
		UserID:         params.UserID,
		Title:          title,
		Messages: []models.ConversationMessage{
			{Role: "user", Content: params.Query},
			{Role: "assistant", Content: result.Answer, Sources: joinSources(result.Sources)},
		},
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to ingest conversation messages")
		return
	}
	if convID != nil {
		result.ConversationID = convID
	}
}

// generateTitle asks the LLM for a short conversation title. Empty on any
// failure.
func (s *Service) generateTitle(ctx context.Context, query, answer string) string {
	user := fmt.Sprintf("Query: %s\nAnswer: %s", query, answer)
	title, err := s.llm.Complete(ctx, titleSystemPrompt,
		[]llm.Message{{Role: llm.RoleUser, Content: user}}, llm.Options{Temperature: 0.3})
	if err != nil {
		s.logger.WithError(err).Warn("Title generation failed")
		return ""
	}
	return truncate(strings.TrimSpace(title), 80)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
