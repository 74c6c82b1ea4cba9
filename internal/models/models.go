// Package models defines the core entities shared across the document
// processing and retrieval pipeline.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentStatus tracks a document through the ingestion state machine.
type DocumentStatus string

const (
	StatusUploaded         DocumentStatus = "uploaded"
	StatusParsing          DocumentStatus = "parsing"
	StatusParsed           DocumentStatus = "parsed"
	StatusParsingFailed    DocumentStatus = "parsing_failed"
	StatusEmbedding        DocumentStatus = "embedding"
	StatusEmbedded         DocumentStatus = "embedded"
	StatusEmbeddingFailed  DocumentStatus = "embedding_failed"
	StatusProcessingFailed DocumentStatus = "processing_failed"
)

// Document is the metadata-store view of an uploaded file. The upstream
// application creates it on upload; this service mutates its status as the
// ingestion pipeline advances.
type Document struct {
	ID               uuid.UUID      `json:"id"`
	DivisionID       uuid.UUID      `json:"division_id"`
	OriginalFilename string         `json:"original_filename"`
	StoragePath      string         `json:"storage_path"`
	FileType         string         `json:"file_type"`
	Status           DocumentStatus `json:"status"`
	IsActive         bool           `json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Chunk is a bounded text span extracted from a document. Chunks are
// immutable once created and live only as long as the latest ingestion run
// of their parent document.
type Chunk struct {
	Text      string `json:"text"`
	Index     int    `json:"index"`
	StartChar int    `json:"start_char"`
	EndChar   int    `json:"end_char"`
}

// SimilarityResult is the canonical retrieval contract: one chunk with a
// single scalar distance where lower means more similar, regardless of
// which retrieval method produced it.
type SimilarityResult struct {
	ChunkText  string  `json:"chunk_text"`
	ChunkIndex int     `json:"chunk_index"`
	Filename   string  `json:"filename"`
	Distance   float64 `json:"distance"`
}

// ConversationMessage is one turn fetched from or persisted to the external
// conversation store.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Sources string `json:"sources,omitempty"`
}

// ChatResult is the outcome of one RAG query.
type ChatResult struct {
	Query          string             `json:"query"`
	Answer         string             `json:"answer"`
	Sources        []SimilarityResult `json:"sources"`
	DivisionID     uuid.UUID          `json:"division_id"`
	ModelUsed      string             `json:"model_used"`
	ConversationID *uuid.UUID         `json:"conversation_id,omitempty"`
}
