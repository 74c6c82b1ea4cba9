package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T, handler http.HandlerFunc) *Notifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewNotifier(&Config{
		WebhookURL: server.URL + "/api/v1/events/webhook/document-processing",
		WebhookKey: "hook-key",
		Timeout:    5 * time.Second,
	}, nil)
}

func TestSendPayloadAndHeader(t *testing.T) {
	var payload map[string]interface{}
	var key string
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("X-Webhook-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	})

	err := n.Send(context.Background(), "doc-1", "parsing", "Started parsing document: a.pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, "hook-key", key)
	assert.Equal(t, "doc-1", payload["documentId"])
	assert.Equal(t, "parsing", payload["status"])
	assert.Equal(t, "Started parsing document: a.pdf", payload["message"])
	// Metadata is always present, even when empty.
	assert.Equal(t, map[string]interface{}{}, payload["metadata"])
}

func TestSendNon200IsError(t *testing.T) {
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := n.Send(context.Background(), "doc-1", "parsed", "done", nil)
	assert.Error(t, err)
}

func TestSendNoURLConfigured(t *testing.T) {
	n := NewNotifier(nil, nil)
	assert.NoError(t, n.Send(context.Background(), "doc-1", "parsing", "msg", nil))
}

func TestStageHelpers(t *testing.T) {
	var payloads []map[string]interface{}
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		var p map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		payloads = append(payloads, p)
	})

	ctx := context.Background()
	n.ParsingStarted(ctx, "doc-1", "a.pdf", "pdf")
	n.ParsingCompleted(ctx, "doc-1", "a.pdf", 12)
	n.EmbeddingStarted(ctx, "doc-1", "a.pdf")
	n.EmbeddingCompleted(ctx, "doc-1", "a.pdf", 12)
	n.ProcessingFailed(ctx, "doc-1", "a.pdf", "embedding", errors.New("boom"))

	require.Len(t, payloads, 5)
	assert.Equal(t, "parsing", payloads[0]["status"])
	assert.Equal(t, "parsed", payloads[1]["status"])
	assert.Equal(t, "embedding", payloads[2]["status"])
	assert.Equal(t, "embedded", payloads[3]["status"])
	assert.Equal(t, "failed", payloads[4]["status"])

	parsed := payloads[1]["metadata"].(map[string]interface{})
	assert.Equal(t, float64(12), parsed["chunkCount"])

	failed := payloads[4]["metadata"].(map[string]interface{})
	assert.Equal(t, "boom", failed["error"])
	assert.Equal(t, "embedding", failed["stage"])
	assert.Equal(t, true, failed["failed"])
}

func TestStageHelpersSwallowDeliveryFailure(t *testing.T) {
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	// Must not panic or propagate anything.
	n.ParsingStarted(context.Background(), "doc-1", "a.pdf", "pdf")
}
