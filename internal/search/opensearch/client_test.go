package opensearch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letha11/backend-chatbot/internal/search"
)

// newMockServer starts a stub OpenSearch server and returns a client wired
// to it.
func newMockServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	urlParts := strings.TrimPrefix(server.URL, "http://")
	parts := strings.Split(urlParts, ":")
	port := 80
	if len(parts) > 1 {
		fmt.Sscanf(parts[1], "%d", &port)
	}

	config := &Config{
		Host:      parts[0],
		Port:      port,
		IndexName: "documents",
		Dimension: 4,
		Timeout:   5 * time.Second,
	}
	client, err := NewClient(config, nil)
	require.NoError(t, err)
	return client, server
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(&Config{}, nil)
	assert.Error(t, err)

	client, err := NewClient(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "documents", client.config.IndexName)
}

func TestEnsureIndexSkipsExisting(t *testing.T) {
	var created bool
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		created = true
	})

	require.NoError(t, client.EnsureIndex(context.Background()))
	assert.False(t, created)
}

func TestEnsureIndexCreatesMapping(t *testing.T) {
	var mapping map[string]interface{}
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&mapping))
			fmt.Fprint(w, `{"acknowledged":true}`)
		}
	})

	require.NoError(t, client.EnsureIndex(context.Background()))
	require.NotNil(t, mapping)

	properties := mapping["mappings"].(map[string]interface{})["properties"].(map[string]interface{})
	embedding := properties["embedding"].(map[string]interface{})
	assert.Equal(t, "knn_vector", embedding["type"])
	assert.Equal(t, float64(4), embedding["dimension"])

	settings := mapping["settings"].(map[string]interface{})["index"].(map[string]interface{})
	assert.Equal(t, true, settings["knn"])
}

func TestStoreBulkIDs(t *testing.T) {
	var lines []string
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Content-Type"))
		scanner := bufio.NewScanner(r.Body)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		fmt.Fprint(w, `{"errors":false,"items":[]}`)
	})

	records := []search.Record{
		{DocumentID: "doc-1", DivisionID: "div-1", ChunkText: "alpha", ChunkIndex: 0, IsActive: true, Embedding: []float32{1, 2, 3, 4}},
		{DocumentID: "doc-1", DivisionID: "div-1", ChunkText: "beta", ChunkIndex: 1, IsActive: true, Embedding: []float32{4, 3, 2, 1}},
	}
	require.NoError(t, client.Store(context.Background(), records))

	// Two action lines plus two document lines.
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"_id":"doc-1_0"`)
	assert.Contains(t, lines[2], `"_id":"doc-1_1"`)
}

func TestStoreReportsItemErrors(t *testing.T) {
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		fmt.Fprint(w, `{"errors":true,"items":[{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad vector"}}}]}`)
	})

	err := client.Store(context.Background(), []search.Record{{DocumentID: "doc-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestSearchTextFiltersAndParsesHits(t *testing.T) {
	var body map[string]interface{}
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/_search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"hits":{"hits":[
			{"_score":2.5,"_source":{"document_id":"doc-1","division_id":"div-1","chunk_text":"alpha","chunk_index":0,"filename":"a.txt","is_active":true}},
			{"_score":1.2,"_source":{"document_id":"doc-2","division_id":"div-1","chunk_text":"beta","chunk_index":3,"filename":"b.txt","is_active":true}}
		]}}`)
	})

	hits, err := client.SearchText(context.Background(), "alpha", "div-1", 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc-1", hits[0].DocumentID)
	assert.Equal(t, 2.5, hits[0].Score)
	assert.Equal(t, 3, hits[1].ChunkIndex)

	// The query must carry both tenancy filters.
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"division_id":"div-1"`)
	assert.Contains(t, string(raw), `"is_active":true`)
}

func TestSearchVectorBuildsKNNQuery(t *testing.T) {
	var body map[string]interface{}
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"hits":{"hits":[]}}`)
	})

	_, err := client.SearchVector(context.Background(), []float32{1, 0, 0, 0}, "div-1", 7)
	require.NoError(t, err)

	raw, _ := json.Marshal(body)
	assert.Contains(t, string(raw), `"knn"`)
	assert.Contains(t, string(raw), `"k":7`)
	assert.Equal(t, float64(7), body["size"])
}

func TestDeleteByDocument(t *testing.T) {
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/_delete_by_query", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), `"document_id":"doc-1"`)
		fmt.Fprint(w, `{"deleted":12}`)
	})

	deleted, err := client.DeleteByDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
}

func TestUpdateActiveScript(t *testing.T) {
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/_update_by_query", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), "ctx._source.is_active = params.status")
		assert.Contains(t, string(raw), `"status":false`)
		fmt.Fprint(w, `{"updated":3}`)
	})

	require.NoError(t, client.UpdateActive(context.Background(), "doc-1", false))
}

func TestStats(t *testing.T) {
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"_all":{"primaries":{"docs":{"count":42},"store":{"size_in_bytes":2048}}}}`)
	})

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.DocumentCount)
	assert.Equal(t, int64(2048), stats.SizeBytes)
	assert.Equal(t, "documents", stats.IndexName)
}

func TestHealthCheckFailure(t *testing.T) {
	client, _ := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	assert.Error(t, client.HealthCheck(context.Background()))
}

func TestBasicAuthHeader(t *testing.T) {
	var gotUser, gotPass string
	var hasAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, hasAuth = r.BasicAuth()
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	urlParts := strings.Split(strings.TrimPrefix(server.URL, "http://"), ":")
	port := 80
	fmt.Sscanf(urlParts[1], "%d", &port)

	client, err := NewClient(&Config{
		Host: urlParts[0], Port: port,
		Username: "admin", Password: "secret",
		IndexName: "documents", Dimension: 4, Timeout: time.Second,
	}, nil)
	require.NoError(t, err)

	require.NoError(t, client.HealthCheck(context.Background()))
	assert.True(t, hasAuth)
	assert.Equal(t, "admin", gotUser)
	assert.Equal(t, "secret", gotPass)
}
