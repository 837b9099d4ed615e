// Package keyword provides full-text search over saved snippets.
package keyword

import (
	"context"

	"github.com/emendo/emendo/internal/models"
)

// SearchOptions optional parameters for snippet search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	// When true, searches will match terms within the specified edit distance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true. Higher values are more lenient.
	Fuzziness int
}

// SnippetIndex defines full-text operations over saved snippets.
type SnippetIndex interface {
	Index(ctx context.Context, snippet *models.Snippet) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*SnippetResult, error)
	Delete(ctx context.Context, id int64) error
	Close() error
	// DocCount returns the total number of snippets in the index.
	DocCount() (uint64, error)
}

// SnippetResult is a single snippet search hit.
type SnippetResult struct {
	ID    int64
	Score float64
}
