package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emendo/emendo/internal/embedding"
	"github.com/emendo/emendo/internal/models"
	"github.com/emendo/emendo/internal/storage"
)

// DocumentID derives a stable document id from the filename and content size,
// so re-uploading the same file reuses the existing knowledge-base entries.
func DocumentID(filename string, size int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", filename, size)))
	return hex.EncodeToString(sum[:])[:16]
}

// Ingestor feeds document text into the knowledge base: overlapping
// word-window chunks, embedded in batch and persisted with their vectors.
type Ingestor struct {
	chunkSize    int
	chunkOverlap int
	embedder     embedding.Embedder
	store        storage.Storage
	logger       *zap.Logger
}

// NewIngestor creates an ingestor. chunkSize and chunkOverlap are in words.
func NewIngestor(chunkSize, chunkOverlap int, embedder embedding.Embedder, store storage.Storage, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		embedder:     embedder,
		store:        store,
		logger:       logger,
	}
}

// IsProcessed reports whether the document already has knowledge-base chunks.
func (g *Ingestor) IsProcessed(ctx context.Context, docID string) bool {
	has, err := g.store.HasChunks(ctx, docID)
	if err != nil {
		g.logger.Warn("chunk existence check failed", zap.String("document_id", docID), zap.Error(err))
		return false
	}
	return has
}

// ProcessDocument splits content into overlapping word windows, embeds every
// window, and persists the chunks. Safe to call again for the same document:
// previous chunks are replaced.
func (g *Ingestor) ProcessDocument(ctx context.Context, docID, filename, content string) error {
	windows := g.split(content)
	if len(windows) == 0 {
		return nil
	}

	embeddings, err := g.embedder.EmbedBatch(ctx, windows)
	if err != nil {
		return fmt.Errorf("embed document chunks: %w", err)
	}
	if len(embeddings) != len(windows) {
		return fmt.Errorf("embed document chunks: got %d embeddings for %d chunks", len(embeddings), len(windows))
	}

	chunks := make([]*models.KBChunk, len(windows))
	for i, w := range windows {
		chunks[i] = &models.KBChunk{
			ID:         fmt.Sprintf("%s_%s", docID, uuid.New().String()[:8]),
			DocumentID: docID,
			Filename:   filename,
			ChunkIndex: i,
			Content:    w,
			Embedding:  embeddings[i],
		}
	}

	if err := g.store.DeleteChunksByDocumentID(ctx, docID); err != nil {
		return fmt.Errorf("clear previous chunks: %w", err)
	}
	if err := g.store.BatchCreateChunks(ctx, chunks); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	g.logger.Info("document ingested into knowledge base",
		zap.String("document_id", docID),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)))
	return nil
}

// split produces overlapping word windows over the content.
func (g *Ingestor) split(content string) []string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}
	step := g.chunkSize - g.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var windows []string
	for i := 0; i < len(words); i += step {
		end := i + g.chunkSize
		if end > len(words) {
			end = len(words)
		}
		windows = append(windows, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	return windows
}
