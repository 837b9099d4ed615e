// Package retrieval finds knowledge-base chunks similar to a query text
// and assembles them into context for extraction prompts.
package retrieval

import (
	"math"
	"sort"

	"github.com/emendo/emendo/internal/models"
)

// Match pairs a knowledge-base chunk with its similarity score.
type Match struct {
	Chunk models.KBChunk
	Score float64
}

// Cosine returns the cosine similarity of two vectors.
// Vectors of different lengths, empty vectors, and zero-norm vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FindSimilar scores every candidate against the query embedding and returns
// the top matches with score >= minScore, best first, plus the number of
// candidates skipped because their embedding dimension does not match the
// query (stale rows from an earlier embedding model).
func FindSimilar(query []float32, candidates []models.KBChunk, limit int, minScore float64) ([]Match, int) {
	if len(query) == 0 || len(candidates) == 0 || limit <= 0 {
		return nil, 0
	}

	skipped := 0
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			skipped++
			continue
		}
		score := Cosine(query, c.Embedding)
		if score >= minScore {
			matches = append(matches, Match{Chunk: c, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, skipped
}
