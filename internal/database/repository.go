// Package database provides PostgreSQL access to document metadata and the
// user query audit log. Document rows are owned by the main application;
// this service only reads them and advances their processing status.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/letha11/backend-chatbot/internal/models"
)

// ErrDocumentNotFound is returned when a document id has no row.
var ErrDocumentNotFound = errors.New("document not found")

// Repository wraps a pgx connection pool with the queries this service needs.
type Repository struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// Connect creates a pooled connection and verifies it with a ping.
func Connect(ctx context.Context, dsn string, logger *logrus.Logger) (*Repository, error) {
	if logger == nil {
		logger = logrus.New()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to PostgreSQL")
	return &Repository{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// HealthCheck verifies the database is reachable.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// GetDocument loads a document's metadata by id.
func (r *Repository) GetDocument(ctx context.Context, documentID uuid.UUID) (*models.Document, error) {
	const query = `
		SELECT id, division_id, original_filename, storage_path, file_type, status, is_active, created_at, updated_at
		FROM documents
		WHERE id = $1`

	var doc models.Document
	err := r.pool.QueryRow(ctx, query, documentID).Scan(
		&doc.ID, &doc.DivisionID, &doc.OriginalFilename, &doc.StoragePath,
		&doc.FileType, &doc.Status, &doc.IsActive, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

// UpdateStatus advances a document's processing status.
func (r *Repository) UpdateStatus(ctx context.Context, documentID uuid.UUID, status models.DocumentStatus) error {
	const query = `UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, string(status), documentID)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}

	r.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"status":      status,
	}).Info("Document status updated")
	return nil
}

// DivisionDocument is a document visible in a division, as listed in the
// answer prompt.
type DivisionDocument struct {
	Filename string
	FileType string
}

// ListDivisionDocuments returns the active documents visible in a division,
// ordered by upload time.
func (r *Repository) ListDivisionDocuments(ctx context.Context, divisionID uuid.UUID) ([]DivisionDocument, error) {
	const query = `
		SELECT original_filename, file_type
		FROM documents
		WHERE division_id = $1 AND is_active = true
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list division documents: %w", err)
	}
	defer rows.Close()

	var docs []DivisionDocument
	for rows.Next() {
		var doc DivisionDocument
		if err := rows.Scan(&doc.Filename, &doc.FileType); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// LogQuery records a chat interaction in the audit log. Logging failures are
// reported but must not abort the chat flow, so callers typically only warn.
func (r *Repository) LogQuery(ctx context.Context, divisionID *uuid.UUID, queryText, responseText string, userID *uuid.UUID) error {
	const query = `
		INSERT INTO user_queries (id, division_id, query_text, response_text, user_id, query_time)
		VALUES ($1, $2, $3, $4, $5, NOW())`

	_, err := r.pool.Exec(ctx, query, uuid.New(), divisionID, queryText, responseText, userID)
	if err != nil {
		return fmt.Errorf("failed to log user query: %w", err)
	}
	return nil
}
