// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/emendo/emendo/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content TEXT NOT NULL,
		model TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_filename ON documents(filename);
	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS kb_chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_kb_chunks_document_id ON kb_chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_kb_chunks_document_chunk ON kb_chunks(document_id, chunk_index);

	CREATE TABLE IF NOT EXISTS snippets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		query TEXT NOT NULL,
		content TEXT NOT NULL,
		source_page INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_snippets_filename ON snippets(filename);
	`
	_, err := db.Exec(schema)
	return err
}

// encodeEmbedding packs a float32 vector into a little-endian byte blob.
func encodeEmbedding(emb []float32) []byte {
	if len(emb) == 0 {
		return nil
	}
	buf := make([]byte, len(emb)*4)
	for i, v := range emb {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks a little-endian byte blob into a float32 vector.
func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	emb := make([]float32, len(buf)/4)
	for i := range emb {
		emb[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return emb
}

// CreateDocument inserts a document.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, content, model, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.Content, doc.Model, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, content, model, created_at, updated_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Filename, &doc.Content, &doc.Model, &doc.CreatedAt, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocumentByFilename returns the most recent document with the given filename,
// or nil if none exists.
func (s *SQLiteStorage) GetDocumentByFilename(ctx context.Context, filename string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, content, model, created_at, updated_at
		 FROM documents WHERE filename = ? ORDER BY created_at DESC LIMIT 1`, filename,
	).Scan(&doc.ID, &doc.Filename, &doc.Content, &doc.Model, &doc.CreatedAt, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document and its chunks.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_chunks WHERE document_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, content, model, created_at, updated_at
		 FROM documents ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.Content, &doc.Model, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// BatchCreateChunks inserts multiple knowledge-base chunks in a transaction.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.KBChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO kb_chunks (id, document_id, filename, chunk_index, content, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Filename,
			chunk.ChunkIndex, chunk.Content, encodeEmbedding(chunk.Embedding), chunk.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AllChunks returns every knowledge-base chunk with its embedding decoded.
func (s *SQLiteStorage) AllChunks(ctx context.Context) ([]models.KBChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, filename, chunk_index, content, embedding, created_at
		 FROM kb_chunks ORDER BY document_id, chunk_index`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.KBChunk
	for rows.Next() {
		var chunk models.KBChunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Filename,
			&chunk.ChunkIndex, &chunk.Content, &blob, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunk.Embedding = decodeEmbedding(blob)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// HasChunks reports whether any knowledge-base chunks exist for the document.
func (s *SQLiteStorage) HasChunks(ctx context.Context, docID string) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kb_chunks WHERE document_id = ?`, docID,
	).Scan(&count)
	return count > 0, err
}

// DeleteChunksByDocumentID removes all chunks for a document.
func (s *SQLiteStorage) DeleteChunksByDocumentID(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kb_chunks WHERE document_id = ?`, docID)
	return err
}

// CreateSnippet inserts a snippet and fills in its assigned ID.
func (s *SQLiteStorage) CreateSnippet(ctx context.Context, snippet *models.Snippet) error {
	snippet.CreatedAt = time.Now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO snippets (filename, query, content, source_page, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		snippet.Filename, snippet.Query, snippet.Content, snippet.SourcePage, snippet.CreatedAt,
	)
	if err != nil {
		return err
	}
	snippet.ID, err = result.LastInsertId()
	return err
}

// ListSnippets returns snippets with offset and limit, newest first.
func (s *SQLiteStorage) ListSnippets(ctx context.Context, offset, limit int) ([]*models.Snippet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, query, content, source_page, created_at
		 FROM snippets ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snippets []*models.Snippet
	for rows.Next() {
		var sn models.Snippet
		if err := rows.Scan(&sn.ID, &sn.Filename, &sn.Query, &sn.Content, &sn.SourcePage, &sn.CreatedAt); err != nil {
			return nil, err
		}
		snippets = append(snippets, &sn)
	}
	return snippets, rows.Err()
}

// GetSnippet returns a snippet by ID.
func (s *SQLiteStorage) GetSnippet(ctx context.Context, id int64) (*models.Snippet, error) {
	var sn models.Snippet
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, query, content, source_page, created_at
		 FROM snippets WHERE id = ?`, id,
	).Scan(&sn.ID, &sn.Filename, &sn.Query, &sn.Content, &sn.SourcePage, &sn.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snippet not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &sn, nil
}

// DeleteSnippet removes a snippet by ID.
func (s *SQLiteStorage) DeleteSnippet(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("snippet not found: %d", id)
	}
	return nil
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of knowledge-base chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kb_chunks`).Scan(&count)
	return count, err
}

// CountSnippets returns the total number of snippets.
func (s *SQLiteStorage) CountSnippets(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snippets`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
