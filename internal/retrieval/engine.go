package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/emendo/emendo/internal/embedding"
	"github.com/emendo/emendo/internal/models"
)

// ChunkSource supplies knowledge-base chunks to score against a query.
type ChunkSource interface {
	AllChunks(ctx context.Context) ([]models.KBChunk, error)
}

// Engine embeds queries and retrieves the most similar knowledge-base chunks.
type Engine struct {
	embedder embedding.Embedder
	source   ChunkSource
	minScore float64
	logger   *zap.Logger
}

// NewEngine creates a retrieval engine. minScore is the similarity threshold
// below which chunks are not considered relevant.
func NewEngine(embedder embedding.Embedder, source ChunkSource, minScore float64, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		embedder: embedder,
		source:   source,
		minScore: minScore,
		logger:   logger,
	}
}

// Search returns up to limit chunks similar to query, best first.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	queryEmb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := e.source.AllChunks(ctx)
	if err != nil {
		return nil, err
	}

	matches, skipped := FindSimilar(queryEmb, candidates, limit, e.minScore)
	if skipped > 0 {
		e.logger.Warn("skipped chunks with mismatched embedding dimension, re-ingest to refresh them",
			zap.Int("skipped", skipped), zap.Int("query_dim", len(queryEmb)))
	}
	return matches, nil
}

// RetrieveContext returns the contents of up to maxChunks similar chunks
// joined into a single context string. Failures degrade to an empty context
// so callers can proceed without retrieval augmentation.
func (e *Engine) RetrieveContext(ctx context.Context, query string, maxChunks int) string {
	matches, err := e.Search(ctx, query, maxChunks)
	if err != nil {
		e.logger.Warn("context retrieval failed, proceeding without context",
			zap.Error(err))
		return ""
	}
	if len(matches) == 0 {
		return ""
	}

	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Chunk.Content
	}
	return strings.Join(parts, "\n\n")
}
