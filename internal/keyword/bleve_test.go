package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/emendo/emendo/internal/models"
)

func newTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	sn := &models.Snippet{
		ID:       42,
		Filename: "monthly-report.pdf",
		Query:    "findings",
		Content:  "This report mentions Omnisyan and other findings. The Bayes method is also referenced.",
	}
	if err := idx.Index(ctx, sn); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "Omnisyan", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result for \"Omnisyan\" in snippet content")
	}
	if results[0].ID != 42 {
		t.Errorf("first result ID = %d, want 42", results[0].ID)
	}

	// Standard analyzer (no stemming) so "bayes" matches "Bayes" in content
	results2, err := idx.Search(ctx, "bayes", 10, nil)
	if err != nil {
		t.Fatalf("Search bayes: %v", err)
	}
	if len(results2) == 0 {
		t.Fatal("expected at least one result for \"bayes\" (standard analyzer, no stop/stem)")
	}
}

func TestBleveIndex_SearchFindsFilename(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	sn := &models.Snippet{
		ID:       7,
		Filename: "contract-2023.pdf",
		Query:    "terms",
		Content:  "Some body text.",
	}
	if err := idx.Index(ctx, sn); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "contract", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result for \"contract\" in filename")
	}
	if results[0].ID != 7 {
		t.Errorf("first result ID = %d, want 7", results[0].ID)
	}
}

func TestBleveIndex_FuzzySearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	sn := &models.Snippet{ID: 1, Filename: "f", Query: "q", Content: "payment schedule details"}
	if err := idx.Index(ctx, sn); err != nil {
		t.Fatalf("Index: %v", err)
	}

	// One-character typo resolved by fuzzy matching
	results, err := idx.Search(ctx, "paymant", 10, &SearchOptions{FuzzyEnabled: true, Fuzziness: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected fuzzy match for \"paymant\"")
	}
}

func TestBleveIndex_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bleve")

	idx1, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	ctx := context.Background()
	if err := idx1.Index(ctx, &models.Snippet{ID: 1, Filename: "f", Query: "q", Content: "uniqueword"}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex (open existing): %v", err)
	}
	defer func() {
		_ = idx2.Close()
	}()

	results, err := idx2.Search(ctx, "uniqueword", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result after reopen, got %d", len(results))
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	sn := &models.Snippet{ID: 5, Filename: "f", Query: "q", Content: "onlyinsnippet5"}
	if err := idx.Index(ctx, sn); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if err := idx.Delete(ctx, 5); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := idx.Search(ctx, "onlyinsnippet5", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(results))
	}
}

func TestBleveIndex_DocCount(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	_ = idx.Index(ctx, &models.Snippet{ID: 1, Filename: "f", Query: "q", Content: "a"})
	_ = idx.Index(ctx, &models.Snippet{ID: 2, Filename: "f", Query: "q", Content: "b"})

	n, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if n != 2 {
		t.Errorf("DocCount = %d, want 2", n)
	}
}

func TestNewBleveIndex_createsDir(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "sub", "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	_ = idx.Close()

	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}
