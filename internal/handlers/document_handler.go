package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/background"
	"github.com/letha11/backend-chatbot/internal/database"
	"github.com/letha11/backend-chatbot/internal/models"
)

// documentStore is the document metadata access the handler needs.
type documentStore interface {
	GetDocument(ctx context.Context, documentID uuid.UUID) (*models.Document, error)
	UpdateStatus(ctx context.Context, documentID uuid.UUID, status models.DocumentStatus) error
}

// objectStorage downloads uploaded files.
type objectStorage interface {
	Download(ctx context.Context, storagePath string) ([]byte, error)
}

// ingestQueue accepts documents for background processing.
type ingestQueue interface {
	Submit(job background.Job) error
}

// vectorStore is the subset of index operations document deletion needs.
type vectorStore interface {
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
}

// DocumentHandler handles document ingestion HTTP requests.
type DocumentHandler struct {
	store   documentStore
	storage objectStorage
	queue   ingestQueue
	index   vectorStore
	logger  *logrus.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(store documentStore, storage objectStorage, queue ingestQueue, index vectorStore, logger *logrus.Logger) *DocumentHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &DocumentHandler{
		store:   store,
		storage: storage,
		queue:   queue,
		index:   index,
		logger:  logger,
	}
}

// ParseDocumentRequest is the ingestion trigger sent by the main application
// after a document upload.
type ParseDocumentRequest struct {
	DocumentID  uuid.UUID `json:"document_id" binding:"required"`
	StoragePath string    `json:"storage_path" binding:"required"`
	FileType    string    `json:"file_type" binding:"required"`
}

// ParseDocument godoc
// @Summary Start document parsing and embedding
// @Description Downloads the uploaded file and processes it in the background
// @Tags documents
// @Accept json
// @Produce json
// @Param request body ParseDocumentRequest true "Document to process"
// @Success 200 {object} APIResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /parse-document [post]
func (h *DocumentHandler) ParseDocument(c *gin.Context) {
	var req ParseDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request body", err))
		return
	}

	log := h.logger.WithField("document_id", req.DocumentID)
	log.Info("Received parse request")

	doc, err := h.store.GetDocument(c.Request.Context(), req.DocumentID)
	if err != nil {
		if errors.Is(err, database.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("Document not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to load document", err))
		return
	}

	content, err := h.storage.Download(c.Request.Context(), req.StoragePath)
	if err != nil {
		log.WithError(err).Error("Failed to download file from storage")
		if updateErr := h.store.UpdateStatus(c.Request.Context(), req.DocumentID, models.StatusParsingFailed); updateErr != nil {
			log.WithError(updateErr).Error("Failed to mark document as parsing_failed")
		}
		c.JSON(http.StatusNotFound, errorResponse("File not found in storage", err))
		return
	}

	if err := h.queue.Submit(background.Job{Document: doc, Content: content}); err != nil {
		if errors.Is(err, background.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, errorResponse("Ingestion queue is full, try again later", err))
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to schedule document processing", err))
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Message: "Document parsing started",
		Data: gin.H{
			"document_id": req.DocumentID.String(),
			"status":      "processing",
			"file_type":   doc.FileType,
			"filename":    doc.OriginalFilename,
		},
	})
}

// DeleteDocument godoc
// @Summary Delete a document's vectors
// @Description Removes all chunks of the document from the search index
// @Tags documents
// @Produce json
// @Param document_id path string true "Document ID"
// @Success 200 {object} APIResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /delete-document/{document_id} [delete]
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid document ID format", err))
		return
	}

	deleted, err := h.index.DeleteByDocument(c.Request.Context(), documentID.String())
	if err != nil {
		h.logger.WithError(err).WithField("document_id", documentID).Error("Failed to delete document vectors")
		c.JSON(http.StatusInternalServerError, errorResponse("Internal server error during document deletion", err))
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Message: "Document deleted successfully",
		Data: gin.H{
			"document_id":    documentID.String(),
			"chunks_deleted": deleted,
		},
	})
}
