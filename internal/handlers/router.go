package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires all HTTP endpoints onto the router. metricsHandler
// may be nil to disable the metrics endpoint.
func RegisterRoutes(
	r *gin.Engine,
	documents *DocumentHandler,
	chat *ChatHandler,
	vector *VectorHandler,
	health *HealthHandler,
	metricsHandler http.Handler,
) {
	r.GET("/health", health.Health)
	r.POST("/parse-document", documents.ParseDocument)
	r.DELETE("/delete-document/:document_id", documents.DeleteDocument)
	r.POST("/chat", chat.Chat)

	v := r.Group("/vector")
	{
		v.GET("/health", vector.Health)
		v.GET("/stats", vector.Stats)
		v.POST("/cleanup", vector.Cleanup)
		v.DELETE("/document/:document_id", vector.DeleteDocument)
		v.DELETE("/division/:division_id", vector.DeleteDivision)
		v.PATCH("/document/:document_id/active", vector.UpdateActive)
	}

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}
}
