// Package handlers exposes the service's HTTP API: document ingestion,
// chat, vector index management, and health.
package handlers

// APIResponse is the common success envelope.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the common error envelope.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func errorResponse(message string, err error) ErrorResponse {
	resp := ErrorResponse{Status: "error", Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
