// Package chunker splits oversized text into semantically coherent chunks
// and merges processed chunks back into a single document.
package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/emendo/emendo/internal/models"
)

// spaceLookback is how far back from a hard cut point we search for a space
// before giving up and cutting mid-word.
const spaceLookback = 100

var (
	pageMarkerRe       = regexp.MustCompile(`--- Page (\d+) ---\s*`)
	pageMarkerPrefixRe = regexp.MustCompile(`^--- Page (\d+) ---\s*`)
	paragraphBreakRe   = regexp.MustCompile(`\n\s*\n`)
)

// Chunker splits text at page, paragraph, and sentence boundaries, falling
// back to hard character cuts, so that no chunk exceeds MaxSize. Adjacent
// chunks smaller than MinSize are merged back together where possible.
type Chunker struct {
	maxSize int
	minSize int
	enabled bool
}

// New creates a chunker. maxSize bounds chunk length in characters; chunks
// smaller than minSize are candidates for re-merging during optimization.
func New(maxSize, minSize int, enabled bool) *Chunker {
	return &Chunker{maxSize: maxSize, minSize: minSize, enabled: enabled}
}

// MaxSize returns the configured chunk size bound.
func (c *Chunker) MaxSize() int { return c.maxSize }

// ShouldChunk reports whether text is long enough to require chunking.
func (c *Chunker) ShouldChunk(text string) bool {
	if !c.enabled {
		return false
	}
	return len(text) > c.maxSize
}

// Chunk splits text into ordered chunks. Empty input yields no chunks; input
// within the size bound yields a single chunk without any splitting.
func (c *Chunker) Chunk(text string) []models.Chunk {
	if text == "" {
		return nil
	}
	if !c.ShouldChunk(text) {
		return c.toChunks([]string{text})
	}

	var parts []string
	if strings.Contains(text, "--- Page ") {
		parts = c.splitByPages(text)
	} else {
		parts = c.splitByParagraphs(text)
	}
	return c.toChunks(parts)
}

// toChunks wraps raw chunk texts with their index and page metadata.
func (c *Chunker) toChunks(parts []string) []models.Chunk {
	chunks := make([]models.Chunk, 0, len(parts))
	for i, part := range parts {
		chunk := models.Chunk{Index: i, Text: part}
		if m := pageMarkerPrefixRe.FindStringSubmatch(part); m != nil {
			chunk.IsPageBoundary = true
			if n, err := strconv.Atoi(m[1]); err == nil {
				chunk.PageNumber = n
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitByPages splits at page-boundary markers, recursing into paragraph
// splitting for any page segment that is still oversized.
func (c *Chunker) splitByPages(text string) []string {
	marks := pageMarkerRe.FindAllStringIndex(text, -1)
	if len(marks) == 0 {
		return c.splitByParagraphs(text)
	}

	var pages []string
	// Content before the first marker belongs to no page but must not be dropped.
	if marks[0][0] > 0 {
		pages = append(pages, text[:marks[0][0]])
	}
	for i, mark := range marks {
		end := len(text)
		if i < len(marks)-1 {
			end = marks[i+1][0]
		}
		page := text[mark[0]:end]
		if len(page) > c.maxSize {
			pages = append(pages, c.splitByParagraphs(page)...)
		} else {
			pages = append(pages, page)
		}
	}
	return c.optimize(pages)
}

// splitByParagraphs accumulates blank-line-separated paragraphs into chunks,
// splitting oversized paragraphs at sentence boundaries.
func (c *Chunker) splitByParagraphs(text string) []string {
	paragraphs := paragraphBreakRe.Split(text, -1)

	var chunks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
	}

	for _, paragraph := range paragraphs {
		if buf.Len() > 0 && buf.Len()+len(paragraph) > c.maxSize {
			flush()
		}
		if len(paragraph) > c.maxSize {
			for _, sentenceChunk := range c.splitBySentences(paragraph) {
				if buf.Len()+len(sentenceChunk) > c.maxSize {
					flush()
					if len(sentenceChunk) > c.maxSize {
						chunks = append(chunks, c.hardSplit(sentenceChunk)...)
					} else {
						buf.WriteString(sentenceChunk)
					}
				} else {
					buf.WriteString(sentenceChunk)
				}
			}
		} else {
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(paragraph)
		}
	}
	flush()

	return c.optimize(chunks)
}

// splitBySentences groups sentences into chunks no larger than maxSize.
func (c *Chunker) splitBySentences(text string) []string {
	sentences := splitSentences(text)

	var chunks []string
	var buf strings.Builder

	for _, sentence := range sentences {
		if buf.Len() > 0 && buf.Len()+len(sentence) > c.maxSize {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
		if len(sentence) > c.maxSize {
			if buf.Len() > 0 {
				chunks = append(chunks, buf.String())
				buf.Reset()
			}
			chunks = append(chunks, c.hardSplit(sentence)...)
		} else {
			if buf.Len() > 0 && !strings.HasSuffix(buf.String(), " ") {
				buf.WriteString(" ")
			}
			buf.WriteString(sentence)
		}
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// splitSentences cuts text at sentence boundaries: terminal punctuation
// followed by whitespace and a capital or digit, or a period followed by a
// line break. The separating whitespace is consumed.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		j := i + 1
		for j < len(text) && isSpace(text[j]) {
			j++
		}
		if j == i+1 || j >= len(text) {
			continue
		}
		next := text[j]
		boundary := (next >= 'A' && next <= 'Z') || (next >= '0' && next <= '9')
		if !boundary && ch == '.' && strings.Contains(text[i+1:j], "\n") {
			boundary = true
		}
		if boundary {
			sentences = append(sentences, text[start:i+1])
			start = j
			i = j - 1
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// hardSplit cuts at fixed character offsets, preferring the nearest
// preceding space within the lookback window so words stay intact.
func (c *Chunker) hardSplit(text string) []string {
	var chunks []string
	for start := 0; start < len(text); {
		end := start + c.maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			if sp := strings.LastIndexByte(text[:end], ' '); sp > start && sp > end-spaceLookback {
				end = sp + 1
			}
		}
		chunks = append(chunks, text[start:end])
		start = end
	}
	return chunks
}

// optimize merges adjacent chunks when either side is smaller than minSize
// and the combination stays within maxSize, reducing fragmentation.
func (c *Chunker) optimize(chunks []string) []string {
	if len(chunks) <= 1 {
		return chunks
	}

	var out []string
	current := chunks[0]
	for _, next := range chunks[1:] {
		fits := len(current)+len(next) <= c.maxSize
		if fits && (len(current) < c.minSize || len(next) < c.minSize) {
			if !strings.HasSuffix(current, "\n") {
				current += "\n\n"
			}
			current += next
		} else {
			out = append(out, current)
			current = next
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// Merge reassembles processed chunk texts in order. Page-marker prefixes are
// kept or stripped per preservePageMarkers; a blank line separates chunks
// that do not already end or begin with one. Merge never reorders or drops
// chunk content.
func (c *Chunker) Merge(texts []string, preservePageMarkers bool) string {
	if len(texts) == 0 {
		return ""
	}
	if len(texts) == 1 {
		return texts[0]
	}

	var merged strings.Builder
	for i, text := range texts {
		if loc := pageMarkerPrefixRe.FindStringIndex(text); loc != nil {
			if preservePageMarkers {
				merged.WriteString(text)
			} else {
				merged.WriteString(text[loc[1]:])
			}
			continue
		}
		if i > 0 && !strings.HasSuffix(merged.String(), "\n") && !strings.HasPrefix(text, "\n") {
			merged.WriteString("\n\n")
		}
		merged.WriteString(text)
	}
	return merged.String()
}
