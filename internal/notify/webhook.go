// Package notify sends document-processing webhook notifications to the
// main application. Notifications are best-effort: a delivery failure is
// logged but never fails the pipeline stage that emitted it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds webhook delivery settings.
type Config struct {
	// WebhookURL is the full endpoint receiving processing events.
	WebhookURL string
	// WebhookKey authenticates deliveries via the X-Webhook-Key header.
	WebhookKey string
	Timeout    time.Duration
}

// DefaultConfig returns sensible webhook defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}

// Notifier delivers processing-stage webhooks.
type Notifier struct {
	config     *Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewNotifier creates a webhook notifier.
func NewNotifier(config *Config, logger *logrus.Logger) *Notifier {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Notifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Send delivers one processing notification. The returned error is for the
// caller's logging only; pipeline stages must not abort on it.
func (n *Notifier) Send(ctx context.Context, documentID, status, message string, metadata map[string]interface{}) error {
	if n.config.WebhookURL == "" {
		return nil
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	payload := map[string]interface{}{
		"documentId": documentID,
		"status":     status,
		"message":    message,
		"metadata":   metadata,
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.WebhookURL, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	key := n.config.WebhookKey
	if key == "" {
		key = "default-key"
	}
	req.Header.Set("X-Webhook-Key", key)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	n.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"status":      status,
	}).Info("Webhook notification sent")
	return nil
}

// ParsingStarted notifies that text extraction has begun.
func (n *Notifier) ParsingStarted(ctx context.Context, documentID, filename, fileType string) {
	n.deliver(ctx, documentID, "parsing",
		fmt.Sprintf("Started parsing document: %s", filename),
		map[string]interface{}{
			"filename": filename,
			"fileType": fileType,
			"stage":    "parsing",
		})
}

// ParsingCompleted notifies that extraction and chunking finished.
func (n *Notifier) ParsingCompleted(ctx context.Context, documentID, filename string, chunkCount int) {
	n.deliver(ctx, documentID, "parsed",
		fmt.Sprintf("Successfully parsed document: %s into %d chunks", filename, chunkCount),
		map[string]interface{}{
			"filename":   filename,
			"chunkCount": chunkCount,
			"stage":      "parsing_complete",
		})
}

// EmbeddingStarted notifies that embedding generation has begun.
func (n *Notifier) EmbeddingStarted(ctx context.Context, documentID, filename string) {
	n.deliver(ctx, documentID, "embedding",
		fmt.Sprintf("Started generating embeddings for: %s", filename),
		map[string]interface{}{
			"filename": filename,
			"stage":    "embedding",
		})
}

// EmbeddingCompleted notifies that embeddings are stored and searchable.
func (n *Notifier) EmbeddingCompleted(ctx context.Context, documentID, filename string, embeddingCount int) {
	n.deliver(ctx, documentID, "embedded",
		fmt.Sprintf("Successfully generated %d embeddings for: %s", embeddingCount, filename),
		map[string]interface{}{
			"filename":       filename,
			"embeddingCount": embeddingCount,
			"stage":          "embedding_complete",
		})
}

// ProcessingFailed notifies that the pipeline stopped at the given stage.
func (n *Notifier) ProcessingFailed(ctx context.Context, documentID, filename, stage string, processErr error) {
	errText := ""
	if processErr != nil {
		errText = processErr.Error()
	}
	n.deliver(ctx, documentID, "failed",
		fmt.Sprintf("Failed to process document: %s at stage: %s", filename, stage),
		map[string]interface{}{
			"filename": filename,
			"error":    errText,
			"stage":    stage,
			"failed":   true,
		})
}

func (n *Notifier) deliver(ctx context.Context, documentID, status, message string, metadata map[string]interface{}) {
	if err := n.Send(ctx, documentID, status, message, metadata); err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"document_id": documentID,
			"status":      status,
		}).Error("Failed to send webhook notification")
	}
}
