// Package search defines the document index abstraction: a single backend
// serving both k-nearest-neighbor vector search and BM25 lexical search over
// chunk text, scoped per division.
package search

import "context"

// Hit is one scored chunk returned by either search mode.
type Hit struct {
	DocumentID string
	DivisionID string
	ChunkText  string
	ChunkIndex int
	Filename   string
	IsActive   bool
	Score      float64
}

// Stats summarizes index state for the management API.
type Stats struct {
	IndexName     string `json:"index_name"`
	DocumentCount int64  `json:"document_count"`
	SizeBytes     int64  `json:"size_bytes"`
}

// Record is one chunk ready for indexing, with its embedding vector.
type Record struct {
	DocumentID string
	DivisionID string
	ChunkText  string
	ChunkIndex int
	Filename   string
	IsActive   bool
	Embedding  []float32
}

// Index stores and searches embedded document chunks. Implementations must
// be safe for concurrent use.
type Index interface {
	// EnsureIndex creates the backing index with its mapping if missing.
	EnsureIndex(ctx context.Context) error

	// Store bulk-indexes the records. Existing records with the same
	// document id and chunk index are overwritten.
	Store(ctx context.Context, records []Record) error

	// SearchVector runs k-nearest-neighbor search over embeddings,
	// restricted to active chunks of the given division.
	SearchVector(ctx context.Context, embedding []float32, divisionID string, topK int) ([]Hit, error)

	// SearchText runs BM25 term-match search over chunk text, restricted
	// to active chunks of the given division.
	SearchText(ctx context.Context, query, divisionID string, topK int) ([]Hit, error)

	// DeleteByDocument removes all chunks of a document and reports how
	// many were deleted.
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)

	// DeleteByDivision removes all chunks belonging to a division.
	DeleteByDivision(ctx context.Context, divisionID string) (int64, error)

	// UpdateActive flips the is_active flag on all chunks of a document.
	UpdateActive(ctx context.Context, documentID string, active bool) error

	// Stats reports index name, stored chunk count and size on disk.
	Stats(ctx context.Context) (Stats, error)

	// Reset drops and recreates the index. Destructive.
	Reset(ctx context.Context) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}
