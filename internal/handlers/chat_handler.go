package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/models"
	"github.com/letha11/backend-chatbot/internal/observability/metrics"
	"github.com/letha11/backend-chatbot/internal/rag"
)

// chatService answers RAG queries.
type chatService interface {
	Chat(ctx context.Context, params rag.ChatParams) (*models.ChatResult, error)
}

// ChatHandler handles chat HTTP requests.
type ChatHandler struct {
	service chatService
	metrics *metrics.Collector
	logger  *logrus.Logger
}

// NewChatHandler creates a new chat handler. metrics may be nil.
func NewChatHandler(service chatService, collector *metrics.Collector, logger *logrus.Logger) *ChatHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &ChatHandler{
		service: service,
		metrics: collector,
		logger:  logger,
	}
}

// ChatRequest is one incoming chat query.
type ChatRequest struct {
	Query          string     `json:"query" binding:"required"`
	DivisionID     uuid.UUID  `json:"division_id" binding:"required"`
	ConversationID *uuid.UUID `json:"conversation_id"`
	UserID         *uuid.UUID `json:"user_id"`
	Title          string     `json:"title"`
}

// Chat godoc
// @Summary Answer a question with retrieval-augmented generation
// @Description Retrieves division-scoped context and generates an answer
// @Tags chat
// @Accept json
// @Produce json
// @Param request body ChatRequest true "Chat query"
// @Success 200 {object} APIResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request body", err))
		return
	}

	h.logger.WithField("division_id", req.DivisionID).Info("Received chat request")
	start := time.Now()

	result, err := h.service.Chat(c.Request.Context(), rag.ChatParams{
		Query:          req.Query,
		DivisionID:     req.DivisionID,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Title:          req.Title,
	})
	if err != nil {
		h.observe("error", start)
		h.logger.WithError(err).Error("Failed to process chat query")
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to process chat query", err))
		return
	}
	h.observe("success", start)

	var conversationID *string
	if result.ConversationID != nil {
		id := result.ConversationID.String()
		conversationID = &id
	}

	var sources []string
	seen := make(map[string]struct{})
	for _, src := range result.Sources {
		if _, ok := seen[src.Filename]; ok {
			continue
		}
		seen[src.Filename] = struct{}{}
		sources = append(sources, src.Filename)
	}

	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Message: "Chat query processed successfully",
		Data: gin.H{
			"query":           result.Query,
			"answer":          result.Answer,
			"sources":         strings.Join(sources, ","),
			"division_id":     result.DivisionID.String(),
			"model_used":      result.ModelUsed,
			"total_sources":   len(result.Sources),
			"conversation_id": conversationID,
		},
	})
}

func (h *ChatHandler) observe(status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.ChatRequests.WithLabelValues(status).Inc()
	h.metrics.SearchLatency.WithLabelValues("chat").Observe(time.Since(start).Seconds())
}
