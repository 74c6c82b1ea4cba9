// Package opensearch implements the document index on OpenSearch, using one
// index for both BM25 text search and kNN vector search.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/search"
)

var _ search.Index = (*Client)(nil)

// Client talks to the OpenSearch HTTP API.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new OpenSearch client.
func NewClient(config *Config, logger *logrus.Logger) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
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
	}, nil
}

// HealthCheck verifies the cluster responds.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/_cluster/health", nil)
	if err != nil {
		return fmt.Errorf("opensearch unhealthy: %w", err)
	}
	return nil
}

// EnsureIndex creates the documents index with its text and kNN mapping if
// it does not exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodHead, "/"+c.config.IndexName, nil)
	if err == nil {
		return nil
	}

	body := map[string]interface{}{
		"settings": map[string]interface{}{
			"index": map[string]interface{}{
				"number_of_shards":   1,
				"number_of_replicas": 0,
				"knn":                true,
			},
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"document_id": map[string]interface{}{"type": "keyword"},
				"chunk_index": map[string]interface{}{"type": "long"},
				"chunk_text":  map[string]interface{}{"type": "text"},
				"division_id": map[string]interface{}{"type": "keyword"},
				"filename":    map[string]interface{}{"type": "keyword"},
				"is_active":   map[string]interface{}{"type": "boolean"},
				"embedding": map[string]interface{}{
					"type":      "knn_vector",
					"dimension": c.config.Dimension,
					"method": map[string]interface{}{
						"name":       "hnsw",
						"space_type": "l2",
						"engine":     "faiss",
					},
				},
			},
		},
	}

	if _, err := c.doRequest(ctx, http.MethodPut, "/"+c.config.IndexName, body); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	c.logger.WithField("index", c.config.IndexName).Info("Index created")
	return nil
}

// Store bulk-indexes the records; each document id is document_id plus chunk
// index so re-ingesting a document overwrites its chunks in place.
func (c *Client) Store(ctx context.Context, records []search.Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, record := range records {
		action := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": c.config.IndexName,
				"_id":    fmt.Sprintf("%s_%d", record.DocumentID, record.ChunkIndex),
			},
		}
		doc := map[string]interface{}{
			"document_id": record.DocumentID,
			"chunk_index": record.ChunkIndex,
			"chunk_text":  record.ChunkText,
			"division_id": record.DivisionID,
			"filename":    record.Filename,
			"is_active":   record.IsActive,
			"embedding":   record.Embedding,
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}

	respBody, err := c.doRawRequest(ctx, http.MethodPost, "/_bulk", buf.Bytes(), "application/x-ndjson")
	if err != nil {
		return fmt.Errorf("bulk index failed: %w", err)
	}

	var response struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return fmt.Errorf("failed to parse bulk response: %w", err)
	}
	if response.Errors {
		for _, item := range response.Items {
			for _, result := range item {
				if result.Status >= 400 {
					return fmt.Errorf("bulk index item failed: %s: %s",
						result.Error.Type, result.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk index reported errors")
	}

	c.logger.WithField("chunks", len(records)).Info("Chunks indexed")
	return nil
}

// SearchVector runs filtered kNN search over the embedding field.
func (c *Client) SearchVector(ctx context.Context, embedding []float32, divisionID string, topK int) ([]search.Hit, error) {
	body := map[string]interface{}{
		"size": topK,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"is_active": true}},
					map[string]interface{}{"term": map[string]interface{}{"division_id": divisionID}},
				},
				"must": map[string]interface{}{
					"knn": map[string]interface{}{
						"embedding": map[string]interface{}{
							"vector": embedding,
							"k":      topK,
						},
					},
				},
			},
		},
	}
	return c.search(ctx, body)
}

// SearchText runs filtered BM25 match search over chunk text.
func (c *Client) SearchText(ctx context.Context, query, divisionID string, topK int) ([]search.Hit, error) {
	body := map[string]interface{}{
		"from": 0,
		"size": topK,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{"match": map[string]interface{}{"chunk_text": query}},
				},
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"is_active": true}},
					map[string]interface{}{"term": map[string]interface{}{"division_id": divisionID}},
				},
			},
		},
	}
	return c.search(ctx, body)
}

func (c *Client) search(ctx context.Context, body map[string]interface{}) ([]search.Hit, error) {
	path := fmt.Sprintf("/%s/_search", c.config.IndexName)
	respBody, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					DocumentID string `json:"document_id"`
					DivisionID string `json:"division_id"`
					ChunkText  string `json:"chunk_text"`
					ChunkIndex int    `json:"chunk_index"`
					Filename   string `json:"filename"`
					IsActive   bool   `json:"is_active"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	hits := make([]search.Hit, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		hits = append(hits, search.Hit{
			DocumentID: hit.Source.DocumentID,
			DivisionID: hit.Source.DivisionID,
			ChunkText:  hit.Source.ChunkText,
			ChunkIndex: hit.Source.ChunkIndex,
			Filename:   hit.Source.Filename,
			IsActive:   hit.Source.IsActive,
			Score:      hit.Score,
		})
	}
	return hits, nil
}

// DeleteByDocument removes every chunk of a document.
func (c *Client) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	return c.deleteByTerm(ctx, "document_id", documentID)
}

// DeleteByDivision removes every chunk belonging to a division.
func (c *Client) DeleteByDivision(ctx context.Context, divisionID string) (int64, error) {
	return c.deleteByTerm(ctx, "division_id", divisionID)
}

func (c *Client) deleteByTerm(ctx context.Context, field, value string) (int64, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{field: value},
		},
	}

	path := fmt.Sprintf("/%s/_delete_by_query", c.config.IndexName)
	respBody, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return 0, fmt.Errorf("delete by %s failed: %w", field, err)
	}

	var response struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return 0, fmt.Errorf("failed to parse delete response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{field: value, "deleted": response.Deleted}).Info("Chunks deleted")
	return response.Deleted, nil
}

// UpdateActive flips is_active on all chunks of a document via a scripted
// update-by-query.
func (c *Client) UpdateActive(ctx context.Context, documentID string, active bool) error {
	body := map[string]interface{}{
		"script": map[string]interface{}{
			"source": "ctx._source.is_active = params.status",
			"params": map[string]interface{}{"status": active},
		},
		"query": map[string]interface{}{
			"term": map[string]interface{}{"document_id": documentID},
		},
	}

	path := fmt.Sprintf("/%s/_update_by_query", c.config.IndexName)
	if _, err := c.doRequest(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("update active status failed: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"is_active":   active,
	}).Info("Document active status updated")
	return nil
}

// Stats reports chunk count and store size for the index.
func (c *Client) Stats(ctx context.Context) (search.Stats, error) {
	path := fmt.Sprintf("/%s/_stats/docs,store", c.config.IndexName)
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return search.Stats{}, fmt.Errorf("stats failed: %w", err)
	}

	var response struct {
		All struct {
			Primaries struct {
				Docs struct {
					Count int64 `json:"count"`
				} `json:"docs"`
				Store struct {
					SizeInBytes int64 `json:"size_in_bytes"`
				} `json:"store"`
			} `json:"primaries"`
		} `json:"_all"`
	}
	if err := json.Unmarshal(respBody, &response); err != nil {
		return search.Stats{}, fmt.Errorf("failed to parse stats response: %w", err)
	}

	return search.Stats{
		IndexName:     c.config.IndexName,
		DocumentCount: response.All.Primaries.Docs.Count,
		SizeBytes:     response.All.Primaries.Store.SizeInBytes,
	}, nil
}

// Reset drops and recreates the index. Destructive.
func (c *Client) Reset(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, "/"+c.config.IndexName, nil); err != nil {
		// Missing index is fine, anything else is not.
		if !strings.Contains(err.Error(), "404") {
			return fmt.Errorf("failed to drop index: %w", err)
		}
	}
	return c.EnsureIndex(ctx)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		payload = jsonBody
	}
	return c.doRawRequest(ctx, method, path, payload, "application/json")
}

func (c *Client) doRawRequest(ctx context.Context, method, path string, payload []byte, contentType string) ([]byte, error) {
	url := fmt.Sprintf("%s%s", c.config.GetHTTPURL(), path)

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
