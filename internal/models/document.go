package models

import "time"

// Document is a stored text document, either a corrected OCR output or a
// knowledge-base source.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KBChunk is a chunk of a knowledge-base document with its embedding,
// eligible for ranked retrieval against a query vector.
type KBChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Snippet is a saved knowledge snippet extracted from a document.
type Snippet struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	Query      string    `json:"query"`
	Content    string    `json:"content"`
	SourcePage *int      `json:"source_page,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
