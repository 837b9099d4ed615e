package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func TestChunker_ShortInputSingleChunk(t *testing.T) {
	c := New(5000, 1000, true)
	text := "A short paragraph that fits easily."
	chunks := c.Chunk(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text mismatch: %q", chunks[0].Text)
	}
	if got := c.Merge([]string{chunks[0].Text}, false); got != text {
		t.Errorf("merge of single chunk should be identity, got %q", got)
	}
}

func TestChunker_Empty(t *testing.T) {
	c := New(5000, 1000, true)
	if chunks := c.Chunk(""); chunks != nil {
		t.Errorf("empty input should return no chunks, got %v", chunks)
	}
}

func TestChunker_Disabled(t *testing.T) {
	c := New(100, 10, false)
	text := strings.Repeat("word ", 200)
	if c.ShouldChunk(text) {
		t.Error("disabled chunker should never report ShouldChunk")
	}
	if chunks := c.Chunk(text); len(chunks) != 1 {
		t.Errorf("disabled chunker should return single chunk, got %d", len(chunks))
	}
}

func TestChunker_HardCutScenario(t *testing.T) {
	c := New(5000, 1000, true)
	text := strings.Repeat("A", 50000)
	chunks := c.Chunk(text)
	if len(chunks) != 10 {
		t.Fatalf("expected exactly 10 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch.Text) > 5000 {
			t.Errorf("chunk %d exceeds max size: %d", i, len(ch.Text))
		}
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	merged := c.Merge(texts, false)
	if got := stripSpace(merged); got != text {
		t.Errorf("merge should reproduce all 50000 characters, got %d", len(got))
	}
}

func TestChunker_ParagraphSplit(t *testing.T) {
	c := New(100, 20, true)
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "Paragraph number %d with some filler text inside it.\n\n", i)
	}
	text := strings.TrimSuffix(sb.String(), "\n\n")
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if len(ch.Text) > 100 {
			t.Errorf("chunk %d exceeds max size: %d chars", i, len(ch.Text))
		}
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	merged := c.Merge(texts, false)
	if stripSpace(merged) != stripSpace(text) {
		t.Error("round-trip lost content")
	}
}

func TestChunker_PageMarkers(t *testing.T) {
	c := New(200, 20, true)
	text := "--- Page 1 ---\n" + strings.Repeat("first page text. ", 5) +
		"\n--- Page 2 ---\n" + strings.Repeat("second page text. ", 5)
	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !chunks[0].IsPageBoundary || chunks[0].PageNumber != 1 {
		t.Errorf("first chunk should start page 1, got %+v", chunks[0])
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	preserved := c.Merge(texts, true)
	if !strings.Contains(preserved, "--- Page 2 ---") {
		t.Error("preserving merge should keep page markers")
	}
	stripped := c.Merge(texts, false)
	if strings.Contains(stripped, "--- Page") {
		t.Error("non-preserving merge should strip page markers")
	}
	if !strings.Contains(stripped, "second page text") {
		t.Error("non-preserving merge must keep page content")
	}
}

func TestChunker_PreambleBeforeFirstMarker(t *testing.T) {
	c := New(200, 10, true)
	text := strings.Repeat("cover sheet text. ", 12) + "\n--- Page 1 ---\n" + strings.Repeat("page one. ", 10)
	chunks := c.Chunk(text)
	var all strings.Builder
	for _, ch := range chunks {
		all.WriteString(ch.Text)
	}
	if !strings.Contains(all.String(), "cover sheet text") {
		t.Error("content before the first page marker must not be dropped")
	}
}

func TestChunker_SentenceSplit(t *testing.T) {
	c := New(80, 10, true)
	// One long paragraph with clear sentence boundaries.
	text := strings.TrimSpace(strings.Repeat("This is a sentence about nothing in particular. ", 10))
	chunks := c.Chunk(text)
	for i, ch := range chunks {
		if len(ch.Text) > 80 {
			t.Errorf("chunk %d exceeds max size: %d", i, len(ch.Text))
		}
		if strings.Contains(ch.Text, "particular. This is a sentence about nothing in particular. This is a sentence about nothing") {
			t.Errorf("chunk %d was not split at sentence boundaries", i)
		}
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	if stripSpace(c.Merge(texts, false)) != stripSpace(text) {
		t.Error("round-trip lost content")
	}
}

func TestChunker_OptimizeMergesSmallChunks(t *testing.T) {
	c := New(1000, 400, true)
	// Paragraphs of ~120 chars each; raw paragraph split would produce many
	// tiny chunks, optimization should coalesce them.
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "%s\n\n", strings.Repeat("x", 120))
	}
	chunks := c.Chunk(strings.TrimSpace(sb.String()))
	for i, ch := range chunks {
		if i < len(chunks)-1 && len(ch.Text) < 120 {
			t.Errorf("chunk %d is suspiciously small after optimization: %d", i, len(ch.Text))
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("First sentence. Second one! Third? Fourth.")
	if len(got) != 4 {
		t.Fatalf("expected 4 sentences, got %d: %q", len(got), got)
	}
	if got[0] != "First sentence." || got[3] != "Fourth." {
		t.Errorf("unexpected sentence split: %q", got)
	}
}

func TestSplitSentences_PeriodNewline(t *testing.T) {
	got := splitSentences("end of line.\nlowercase continuation")
	if len(got) != 2 {
		t.Fatalf("expected split at period+newline, got %q", got)
	}
}

func TestMerge_Empty(t *testing.T) {
	c := New(100, 10, true)
	if got := c.Merge(nil, false); got != "" {
		t.Errorf("merging nothing should give empty string, got %q", got)
	}
}
