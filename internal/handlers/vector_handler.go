package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/search"
)

// VectorHandler exposes management operations on the search index.
type VectorHandler struct {
	index  search.Index
	logger *logrus.Logger
}

// NewVectorHandler creates a new vector management handler.
func NewVectorHandler(index search.Index, logger *logrus.Logger) *VectorHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &VectorHandler{index: index, logger: logger}
}

// VectorResponse is the envelope for vector management operations.
type VectorResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Health godoc
// @Summary Check search index health
// @Tags vector
// @Produce json
// @Success 200 {object} VectorResponse
// @Failure 500 {object} ErrorResponse
// @Router /vector/health [get]
func (h *VectorHandler) Health(c *gin.Context) {
	stats, err := h.index.Stats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Search index health check failed")
		c.JSON(http.StatusInternalServerError, errorResponse("Search index health check failed", err))
		return
	}

	c.JSON(http.StatusOK, VectorResponse{
		Success: true,
		Message: "Search index health check completed",
		Data:    stats,
	})
}

// Stats godoc
// @Summary Get search index statistics
// @Tags vector
// @Produce json
// @Success 200 {object} VectorResponse
// @Failure 500 {object} ErrorResponse
// @Router /vector/stats [get]
func (h *VectorHandler) Stats(c *gin.Context) {
	stats, err := h.index.Stats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get search index stats")
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to get search index statistics", err))
		return
	}

	c.JSON(http.StatusOK, VectorResponse{
		Success: true,
		Message: "Search index statistics retrieved successfully",
		Data:    stats,
	})
}

// Cleanup godoc
// @Summary Recreate the search index
// @Description Drops and recreates the index, removing all stored vectors
// @Tags vector
// @Produce json
// @Success 200 {object} VectorResponse
// @Failure 500 {object} ErrorResponse
// @Router /vector/cleanup [post]
func (h *VectorHandler) Cleanup(c *gin.Context) {
	if err := h.index.Reset(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Failed to clean up search index")
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to clean up search index", err))
		return
	}

	c.JSON(http.StatusOK, VectorResponse{
		Success: true,
		Message: "Successfully cleaned up search index data",
	})
}

// DeleteDocument godoc
// @Summary Delete all vectors of a document
// @Tags vector
// @Produce json
// @Param document_id path string true "Document ID"
// @Success 200 {object} VectorResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /vector/document/{document_id} [delete]
func (h *VectorHandler) DeleteDocument(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid document ID format", err))
		return
	}

	deleted, err := h.index.DeleteByDocument(c.Request.Context(), documentID.String())
	if err != nil {
		h.logger.WithError(err).WithField("document_id", documentID).Error("Failed to delete document vectors")
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to delete document vectors", err))
		return
	}

	c.JSON(http.StatusOK, VectorResponse{
		Success: true,
		Message: "Successfully deleted document vectors",
		Data: gin.H{
			"document_id":    documentID.String(),
			"chunks_deleted": deleted,
		},
	})
}

// DeleteDivision godoc
// @Summary Delete all vectors of a division
// @Tags vector
// @Produce json
// @Param division_id path string true "Division ID"
// @Success 200 {object} VectorResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /vector/division/{division_id} [delete]
func (h *VectorHandler) DeleteDivision(c *gin.Context) {
	divisionID, err := uuid.Parse(c.Param("division_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid division ID format", err))
		return
	}

	deleted, err := h.index.DeleteByDivision(c.Request.Context(), divisionID.String())
	if err != nil {
		h.logger.WithError(err).WithField("division_id", divisionID).Error("Failed to delete division vectors")
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to delete division vectors", err))
		return
	}

	c.JSON(http.StatusOK, VectorResponse{
		Success: true,
		Message: "Successfully deleted division vectors",
		Data: gin.H{
			"division_id":    divisionID.String(),
			"chunks_deleted": deleted,
		},
	})
}

// UpdateActive godoc
// @Summary Update a document's active flag in the index
// @Description Inactive documents are excluded from retrieval
// @Tags vector
// @Produce json
// @Param document_id path string true "Document ID"
// @Param is_active query bool true "New active status"
// @Success 200 {object} VectorResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /vector/document/{document_id}/active [patch]
func (h *VectorHandler) UpdateActive(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid document ID format", err))
		return
	}

	isActive, err := strconv.ParseBool(c.Query("is_active"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("is_active query parameter is required", err))
		return
	}

	if err := h.index.UpdateActive(c.Request.Context(), documentID.String(), isActive); err != nil {
		h.logger.WithError(err).WithField("document_id", documentID).Error("Failed to update document active status")
		c.JSON(http.StatusInternalServerError, errorResponse("Failed to update document active status", err))
		return
	}

	statusText := "deactivated"
	if isActive {
		statusText = "activated"
	}

	c.JSON(http.StatusOK, VectorResponse{
		Success: true,
		Message: "Successfully " + statusText + " document",
		Data: gin.H{
			"document_id": documentID.String(),
			"is_active":   isActive,
		},
	})
}
