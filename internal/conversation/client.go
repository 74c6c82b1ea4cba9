// Package conversation integrates with the main application's conversation
// store over its internal HTTP API. All calls are optional for the chat
// flow: history and persistence failures degrade gracefully.
package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/models"
)

// Config holds settings for the upstream conversation API.
type Config struct {
	// BaseURL is the main application's API root, e.g.
	// http://app:3000/api/v1.
	BaseURL string
	// InternalAPIKey authenticates service-to-service calls. Empty
	// disables the integration entirely.
	InternalAPIKey string
	HistoryLimit   int
	Timeout        time.Duration
}

// DefaultConfig returns sensible conversation defaults.
func DefaultConfig() *Config {
	return &Config{
		HistoryLimit: 6,
		Timeout:      10 * time.Second,
	}
}

// IngestRequest persists a user/assistant exchange upstream. ConversationID
// is empty for the first turn; Title and UserID apply only then.
type IngestRequest struct {
	ConversationID *uuid.UUID
	DivisionID     uuid.UUID
	UserID         *uuid.UUID
	Title          string
	Messages       []models.ConversationMessage
}

// Client calls the upstream conversation API.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a conversation API client.
func NewClient(config *Config, logger *logrus.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 6
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Enabled reports whether the integration is configured.
func (c *Client) Enabled() bool {
	return c.config.InternalAPIKey != "" && c.config.BaseURL != ""
}

// FetchHistory returns up to the configured limit of prior turns for a
// conversation, oldest first.
func (c *Client) FetchHistory(ctx context.Context, conversationID uuid.UUID) ([]models.ConversationMessage, error) {
	if !c.Enabled() {
		return nil, nil
	}

	url := fmt.Sprintf("%s/conversations/%s/history-internal?limit=%d",
		c.config.BaseURL, conversationID, c.config.HistoryLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-internal-api-key", c.config.InternalAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("history request returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse history response: %w", err)
	}

	messages := make([]models.ConversationMessage, 0, len(payload.Data.Messages))
	for _, m := range payload.Data.Messages {
		messages = append(messages, models.ConversationMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return messages, nil
}

// Ingest persists both turns of an exchange and returns the conversation id,
// which the upstream allocates on the first turn.
func (c *Client) Ingest(ctx context.Context, request IngestRequest) (*uuid.UUID, error) {
	if !c.Enabled() {
		return request.ConversationID, nil
	}

	messages := make([]map[string]interface{}, 0, len(request.Messages))
	for _, m := range request.Messages {
		msg := map[string]interface{}{
			"role":    m.Role,
			"content": m.Content,
		}
		if m.Sources != "" {
			msg["sources"] = m.Sources
		}
		messages = append(messages, msg)
	}

	body := map[string]interface{}{
		"messages":    messages,
		"division_id": request.DivisionID.String(),
	}
	if request.ConversationID != nil {
		body["conversation_id"] = request.ConversationID.String()
	} else {
		body["title"] = request.Title
		if request.UserID != nil {
			body["user_id"] = request.UserID.String()
		}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingest body: %w", err)
	}

	url := c.config.BaseURL + "/conversations/ingest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-internal-api-key", c.config.InternalAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ingest request returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var payload struct {
		Data struct {
			ConversationID string `json:"conversation_id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		// The exchange was persisted; a malformed id is not fatal.
		c.logger.WithError(err).Warning("Failed to parse ingest response")
		return request.ConversationID, nil
	}
	if payload.Data.ConversationID != "" {
		if id, err := uuid.Parse(payload.Data.ConversationID); err == nil {
			return &id, nil
		}
	}
	return request.ConversationID, nil
}
