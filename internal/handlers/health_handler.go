package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// healthChecker reports whether a dependency is reachable.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	database healthChecker
	index    healthChecker
	storage  healthChecker
	version  string
	env      string
	logger   *logrus.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(database, index, storage healthChecker, version, env string, logger *logrus.Logger) *HealthHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &HealthHandler{
		database: database,
		index:    index,
		storage:  storage,
		version:  version,
		env:      env,
		logger:   logger,
	}
}

// Health godoc
// @Summary Service health check
// @Description Reports connectivity of the database, search index, and object storage
// @Tags health
// @Produce json
// @Success 200 {object} APIResponse
// @Failure 503 {object} ErrorResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	dbStatus := h.check(ctx, h.database)
	indexStatus := h.check(ctx, h.index)
	storageStatus := h.check(ctx, h.storage)

	data := gin.H{
		"service":         "document-processing-service",
		"version":         h.version,
		"environment":     h.env,
		"database_status": dbStatus,
		"search_status":   indexStatus,
		"storage_status":  storageStatus,
	}

	if dbStatus != "connected" {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Status:  "error",
			Message: "Service unhealthy",
			Error:   "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Message: "Service is healthy",
		Data:    data,
	})
}

func (h *HealthHandler) check(ctx context.Context, dep healthChecker) string {
	if dep == nil {
		return "disabled"
	}
	if err := dep.HealthCheck(ctx); err != nil {
		h.logger.WithError(err).Warn("Dependency health check failed")
		return "disconnected"
	}
	return "connected"
}
