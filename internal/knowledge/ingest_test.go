package knowledge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emendo/emendo/internal/embedding"
	"github.com/emendo/emendo/internal/storage"
)

func newTestStorage(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "kb.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDocumentID_Stable(t *testing.T) {
	a := DocumentID("report.pdf", 1234)
	b := DocumentID("report.pdf", 1234)
	if a != b {
		t.Errorf("same inputs should give same id: %q vs %q", a, b)
	}
	if a == DocumentID("report.pdf", 1235) {
		t.Error("different sizes should give different ids")
	}
	if len(a) != 16 {
		t.Errorf("id length = %d, want 16", len(a))
	}
}

func TestIngestor_Split(t *testing.T) {
	g := NewIngestor(5, 2, nil, nil, nil)
	words := make([]string, 12)
	for i := range words {
		words[i] = "w"
	}
	windows := g.split(strings.Join(words, " "))
	// step = 3: windows start at 0, 3, 6, 9
	if len(windows) != 4 {
		t.Fatalf("got %d windows, want 4", len(windows))
	}
	if len(strings.Fields(windows[0])) != 5 {
		t.Errorf("first window has %d words, want 5", len(strings.Fields(windows[0])))
	}
	if len(strings.Fields(windows[3])) != 3 {
		t.Errorf("last window has %d words, want 3", len(strings.Fields(windows[3])))
	}
}

func TestIngestor_SplitEmpty(t *testing.T) {
	g := NewIngestor(5, 2, nil, nil, nil)
	if got := g.split("   "); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestIngestor_ProcessDocument(t *testing.T) {
	store := newTestStorage(t)
	embedder := embedding.NewMockEmbedder(8)
	g := NewIngestor(4, 1, embedder, store, nil)
	ctx := context.Background()

	docID := DocumentID("notes.txt", 100)
	if g.IsProcessed(ctx, docID) {
		t.Error("new document should not be processed")
	}

	content := "alpha beta gamma delta epsilon zeta eta theta"
	if err := g.ProcessDocument(ctx, docID, "notes.txt", content); err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}

	if !g.IsProcessed(ctx, docID) {
		t.Error("document should be processed after ingestion")
	}

	chunks, err := store.AllChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected persisted chunks")
	}
	for _, c := range chunks {
		if c.DocumentID != docID {
			t.Errorf("chunk document id = %q, want %q", c.DocumentID, docID)
		}
		if len(c.Embedding) != 8 {
			t.Errorf("chunk embedding dimension = %d, want 8", len(c.Embedding))
		}
	}
}

func TestIngestor_ReprocessReplaces(t *testing.T) {
	store := newTestStorage(t)
	embedder := embedding.NewMockEmbedder(8)
	g := NewIngestor(3, 0, embedder, store, nil)
	ctx := context.Background()

	docID := DocumentID("notes.txt", 50)
	if err := g.ProcessDocument(ctx, docID, "notes.txt", "one two three four five six"); err != nil {
		t.Fatal(err)
	}
	first, _ := store.AllChunks(ctx)

	if err := g.ProcessDocument(ctx, docID, "notes.txt", "one two three"); err != nil {
		t.Fatal(err)
	}
	second, _ := store.AllChunks(ctx)

	if len(second) >= len(first) {
		t.Errorf("reprocessing should replace chunks: first %d, second %d", len(first), len(second))
	}
}

func TestIngestor_EmptyContentNoop(t *testing.T) {
	store := newTestStorage(t)
	g := NewIngestor(3, 0, embedding.NewMockEmbedder(8), store, nil)
	if err := g.ProcessDocument(context.Background(), "d1", "f", ""); err != nil {
		t.Fatalf("ProcessDocument empty: %v", err)
	}
}
