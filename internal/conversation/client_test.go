package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letha11/backend-chatbot/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&Config{
		BaseURL:        server.URL + "/api/v1",
		InternalAPIKey: "internal-key",
		HistoryLimit:   6,
		Timeout:        5 * time.Second,
	}, nil)
}

func TestEnabled(t *testing.T) {
	assert.False(t, NewClient(nil, nil).Enabled())
	assert.False(t, NewClient(&Config{BaseURL: "http://app"}, nil).Enabled())
	assert.True(t, NewClient(&Config{BaseURL: "http://app", InternalAPIKey: "k"}, nil).Enabled())
}

func TestFetchHistory(t *testing.T) {
	convID := uuid.New()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/api/v1/conversations/%s/history-internal", convID), r.URL.Path)
		assert.Equal(t, "6", r.URL.Query().Get("limit"))
		assert.Equal(t, "internal-key", r.Header.Get("x-internal-api-key"))
		fmt.Fprint(w, `{"data":{"messages":[
			{"role":"user","content":"halo"},
			{"role":"assistant","content":"halo juga"}
		]}}`)
	})

	messages, err := client.FetchHistory(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "halo juga", messages[1].Content)
}

func TestFetchHistoryNon200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.FetchHistory(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestFetchHistoryDisabled(t *testing.T) {
	client := NewClient(nil, nil)

	messages, err := client.FetchHistory(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, messages)
}

func TestIngestFirstTurnSendsTitle(t *testing.T) {
	divisionID := uuid.New()
	userID := uuid.New()
	newConvID := uuid.New()

	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/conversations/ingest", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"data":{"conversation_id":%q}}`, newConvID)
	})

	got, err := client.Ingest(context.Background(), IngestRequest{
		DivisionID: divisionID,
		UserID:     &userID,
		Title:      "Ringkasan laporan",
		Messages: []models.ConversationMessage{
			{Role: "user", Content: "pertanyaan"},
			{Role: "assistant", Content: "jawaban", Sources: "a.pdf,b.txt"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newConvID, *got)

	assert.Equal(t, "Ringkasan laporan", body["title"])
	assert.Equal(t, userID.String(), body["user_id"])
	assert.Equal(t, divisionID.String(), body["division_id"])
	assert.NotContains(t, body, "conversation_id")

	messages := body["messages"].([]interface{})
	require.Len(t, messages, 2)
	assistant := messages[1].(map[string]interface{})
	assert.Equal(t, "a.pdf,b.txt", assistant["sources"])
}

func TestIngestExistingConversation(t *testing.T) {
	convID := uuid.New()

	var body map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"data":{}}`)
	})

	got, err := client.Ingest(context.Background(), IngestRequest{
		ConversationID: &convID,
		DivisionID:     uuid.New(),
		Messages:       []models.ConversationMessage{{Role: "user", Content: "x"}},
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, convID, *got)

	assert.Equal(t, convID.String(), body["conversation_id"])
	assert.NotContains(t, body, "title")
}

func TestIngestNon2xx(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Ingest(context.Background(), IngestRequest{DivisionID: uuid.New()})
	assert.Error(t, err)
}
