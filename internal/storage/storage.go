// Package storage defines the persistence interface for documents,
// knowledge-base chunks, and extracted snippets.
package storage

import (
	"context"

	"github.com/emendo/emendo/internal/models"
)

// Storage defines persistence operations for the knowledge base.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetDocumentByFilename(ctx context.Context, filename string) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Knowledge-base chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.KBChunk) error
	AllChunks(ctx context.Context) ([]models.KBChunk, error)
	HasChunks(ctx context.Context, docID string) (bool, error)
	DeleteChunksByDocumentID(ctx context.Context, docID string) error

	// Snippet operations
	CreateSnippet(ctx context.Context, snippet *models.Snippet) error
	ListSnippets(ctx context.Context, offset, limit int) ([]*models.Snippet, error)
	GetSnippet(ctx context.Context, id int64) (*models.Snippet, error)
	DeleteSnippet(ctx context.Context, id int64) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	CountSnippets(ctx context.Context) (int64, error)

	Close() error
}
