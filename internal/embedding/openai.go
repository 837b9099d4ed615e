package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/emendo/emendo/pkg/utils"
)

// RemoteEmbedder produces embeddings through an OpenAI-compatible embeddings
// endpoint. It caches results so repeated texts do not trigger remote calls.
type RemoteEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	cache      *EmbeddingCache
	logger     *zap.Logger
}

// RemoteConfig configures a RemoteEmbedder.
type RemoteConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	CacheSize  int
}

// NewRemoteEmbedder creates an embedder backed by an OpenAI-compatible API.
func NewRemoteEmbedder(cfg RemoteConfig, logger *zap.Logger) *RemoteEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	return &RemoteEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		cache:      NewEmbeddingCache(cfg.CacheSize),
		logger:     logger,
	}
}

// Embed returns the embedding for text, consulting the cache first.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("create embedding: empty response")
	}

	emb := resp.Data[0].Embedding
	utils.NormalizeL2(emb)
	e.cache.Set(text, emb)
	return emb, nil
}

// EmbedBatch embeds all texts, issuing a single request for the uncached ones.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if cached, ok := e.cache.Get(text); ok {
			embeddings[i] = cached
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return embeddings, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: missing,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(missing) {
		return nil, fmt.Errorf("create embeddings: got %d results for %d inputs", len(resp.Data), len(missing))
	}

	for j, d := range resp.Data {
		emb := d.Embedding
		utils.NormalizeL2(emb)
		e.cache.Set(missing[j], emb)
		embeddings[missingIdx[j]] = emb
	}
	return embeddings, nil
}

// Dimensions returns the configured embedding dimension.
func (e *RemoteEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases resources held by the embedder.
func (e *RemoteEmbedder) Close() error {
	return nil
}
