// Package knowledge runs the staged extraction and correction pipelines and
// manages the snippet archive and knowledge-base ingestion.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emendo/emendo/internal/chunker"
	"github.com/emendo/emendo/internal/enhance"
	"github.com/emendo/emendo/internal/keyword"
	"github.com/emendo/emendo/internal/llm"
	"github.com/emendo/emendo/internal/models"
	"github.com/emendo/emendo/internal/progress"
	"github.com/emendo/emendo/internal/retrieval"
	"github.com/emendo/emendo/internal/storage"
	"github.com/emendo/emendo/pkg/utils"
)

var (
	// ErrEmptyText is returned when no document text is provided.
	ErrEmptyText = errors.New("empty document text")
	// ErrEmptyQuery is returned when no extraction query is provided.
	ErrEmptyQuery = errors.New("empty query")
	// ErrNoModel is returned when no model name is given.
	ErrNoModel = errors.New("no model specified")
)

var pageMarkerRe = regexp.MustCompile(`--- Page \d+ ---`)

// Config tunes the extraction pipeline.
type Config struct {
	// MaxSegmentSize is the per-LLM-call segment length in bytes.
	MaxSegmentSize int
	// MaxContextChunks bounds the retrieval context per query.
	MaxContextChunks int
	// MaxWorkers bounds per-chunk parallelism during correction.
	MaxWorkers int
}

// Deps wires the collaborators of the Extractor. Retrieval, Ingestor, and
// Index are optional; nil disables the corresponding behavior.
type Deps struct {
	Client    llm.Client
	Chunker   *chunker.Chunker
	Store     storage.Storage
	Tasks     *progress.Store
	Retrieval *retrieval.Engine
	Ingestor  *Ingestor
	Index     keyword.SnippetIndex
	Logger    *zap.Logger
}

// Extractor drives the asynchronous knowledge-extraction and OCR-correction
// pipelines, reporting progress through the task store.
type Extractor struct {
	client    llm.Client
	chunker   *chunker.Chunker
	store     storage.Storage
	tasks     *progress.Store
	retrieval *retrieval.Engine
	ingestor  *Ingestor
	index     keyword.SnippetIndex
	cfg       Config
	logger    *zap.Logger
}

// NewExtractor creates an extractor. Zero config fields get defaults.
func NewExtractor(deps Deps, cfg Config) *Extractor {
	if cfg.MaxSegmentSize <= 0 {
		cfg.MaxSegmentSize = 15000
	}
	if cfg.MaxContextChunks <= 0 {
		cfg.MaxContextChunks = 5
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		client:    deps.Client,
		chunker:   deps.Chunker,
		store:     deps.Store,
		tasks:     deps.Tasks,
		retrieval: deps.Retrieval,
		ingestor:  deps.Ingestor,
		index:     deps.Index,
		cfg:       cfg,
		logger:    logger,
	}
}

// ExtractionInput describes one knowledge-extraction request.
type ExtractionInput struct {
	Filename string
	Text     string
	Query    string
	Model    string
}

// CorrectionInput describes one asynchronous correction request.
type CorrectionInput struct {
	Filename     string
	Text         string
	Model        string
	Prompt       string
	DocumentType string
	Language     string
	Chunking     *bool
}

// StartExtraction validates the input, registers a task, and runs the
// extraction pipeline in the background. Returns the task id for polling.
func (e *Extractor) StartExtraction(input ExtractionInput) (string, error) {
	if strings.TrimSpace(input.Text) == "" {
		return "", ErrEmptyText
	}
	if strings.TrimSpace(input.Query) == "" {
		return "", ErrEmptyQuery
	}
	if strings.TrimSpace(input.Model) == "" {
		return "", ErrNoModel
	}

	taskID := e.tasks.CreateExtractionTask(input.Filename, input.Query, input.Model)
	go e.runExtraction(context.Background(), taskID, input)
	return taskID, nil
}

func (e *Extractor) runExtraction(ctx context.Context, taskID string, input ExtractionInput) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction pipeline panicked",
				zap.String("task_id", taskID), zap.Any("panic", r))
			e.tasks.Complete(taskID, false, fmt.Sprintf("Error during extraction: %v", r))
		}
	}()

	e.tasks.UpdateStage(taskID, "Text Preparation", 10, "Preparing document text...")

	docID := DocumentID(input.Filename, len(input.Text))
	if e.ingestor != nil && !e.ingestor.IsProcessed(ctx, docID) {
		e.tasks.UpdateStage(taskID, "Document Processing", 20, "Indexing document for semantic search...")
		if err := e.ingestor.ProcessDocument(ctx, docID, input.Filename, input.Text); err != nil {
			e.logger.Warn("knowledge-base ingestion failed, extraction continues without it",
				zap.String("task_id", taskID), zap.Error(err))
		}
	}

	e.tasks.UpdateStage(taskID, "LLM Processing", 30, "Document ready. Querying model...")

	contextText := ""
	if e.retrieval != nil {
		contextText = e.retrieval.RetrieveContext(ctx, input.Query, e.cfg.MaxContextChunks)
	}

	segments := splitSegments(input.Text, e.cfg.MaxSegmentSize)
	var snippets []string
	for i, segment := range segments {
		percent := 30 + int(float64(i+1)/float64(len(segments))*60)
		e.tasks.UpdateStage(taskID, "LLM Processing", percent,
			fmt.Sprintf("Processing segment %d of %d with LLM...", i+1, len(segments)))

		prompt := buildExtractionPrompt(input.Query, contextText, segment)
		response, err := e.client.Complete(ctx, input.Model, prompt)
		if err != nil {
			e.logger.Warn("segment extraction failed, skipping",
				zap.String("task_id", taskID), zap.Int("segment", i+1), zap.Error(err))
			continue
		}
		if strings.TrimSpace(response) == "" || strings.Contains(response, NoSnippetsSentinel) {
			continue
		}
		parsed := ParseSnippets(response)
		for _, sn := range parsed {
			e.logger.Debug("extracted snippet",
				zap.String("task_id", taskID), zap.String("preview", utils.Truncate(sn, 120)))
		}
		snippets = append(snippets, parsed...)
	}

	e.tasks.UpdateStage(taskID, "Finalizing", 95, "Aggregating results.")
	message := "No relevant snippets found in the document."
	if len(snippets) > 0 {
		message = fmt.Sprintf("%d snippet(s) extracted.", len(snippets))
	}
	e.tasks.CompleteExtraction(taskID, true, snippets, message)
}

// StartCorrection validates the input, registers a task, and runs chunked
// correction in the background. The corrected document is persisted and the
// task result message carries the corrected text.
func (e *Extractor) StartCorrection(input CorrectionInput) (string, error) {
	if strings.TrimSpace(input.Text) == "" {
		return "", ErrEmptyText
	}
	if strings.TrimSpace(input.Model) == "" {
		return "", ErrNoModel
	}

	totalPages := len(pageMarkerRe.FindAllString(input.Text, -1))
	taskID := e.tasks.CreateOCRTask(input.Filename, totalPages, input.Language)
	go e.runCorrection(context.Background(), taskID, input)
	return taskID, nil
}

func (e *Extractor) runCorrection(ctx context.Context, taskID string, input CorrectionInput) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("correction pipeline panicked",
				zap.String("task_id", taskID), zap.Any("panic", r))
			e.tasks.Complete(taskID, false, fmt.Sprintf("Error during correction: %v", r))
		}
	}()

	e.tasks.UpdateStage(taskID, "Correction", 5, "Starting text correction...")

	enh := enhance.NewEnhancer(e.client, e.chunker, e.cfg.MaxWorkers, e.logger)
	enh.OnProgress = func(done, total int) {
		percent := 5 + int(float64(done)/float64(total)*90)
		e.tasks.UpdateStage(taskID, "Correction", percent,
			fmt.Sprintf("Corrected chunk %d of %d", done, total))
	}

	result, err := enh.Enhance(ctx, enhance.Request{
		Text:         input.Text,
		Model:        input.Model,
		Prompt:       input.Prompt,
		DocumentType: input.DocumentType,
		Chunking:     input.Chunking,
	})
	if err != nil {
		e.tasks.Complete(taskID, false, "Correction failed: "+err.Error())
		return
	}

	if e.store != nil {
		doc := &models.Document{
			ID:       uuid.New().String(),
			Filename: input.Filename,
			Content:  result.Text,
			Model:    input.Model,
		}
		if err := e.store.CreateDocument(ctx, doc); err != nil {
			e.logger.Warn("failed to persist corrected document",
				zap.String("task_id", taskID), zap.Error(err))
		}
	}

	e.tasks.Complete(taskID, true, result.Text)
}

// SaveSnippets persists non-empty snippets and indexes them for search.
func (e *Extractor) SaveSnippets(ctx context.Context, filename, query string, texts []string) ([]*models.Snippet, error) {
	var saved []*models.Snippet
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sn := &models.Snippet{
			Filename: filename,
			Query:    query,
			Content:  text,
		}
		if err := e.store.CreateSnippet(ctx, sn); err != nil {
			return saved, fmt.Errorf("save snippet: %w", err)
		}
		if e.index != nil {
			if err := e.index.Index(ctx, sn); err != nil {
				e.logger.Warn("failed to index snippet",
					zap.Int64("snippet_id", sn.ID), zap.Error(err))
			}
		}
		saved = append(saved, sn)
	}
	return saved, nil
}

// DeleteSnippet removes a snippet from storage and the search index.
func (e *Extractor) DeleteSnippet(ctx context.Context, id int64) error {
	if err := e.store.DeleteSnippet(ctx, id); err != nil {
		return err
	}
	if e.index != nil {
		if err := e.index.Delete(ctx, id); err != nil {
			e.logger.Warn("failed to remove snippet from index",
				zap.Int64("snippet_id", id), zap.Error(err))
		}
	}
	return nil
}

// splitSegments cuts text into fixed-size segments for per-call LLM limits.
func splitSegments(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	var segments []string
	for i := 0; i < len(text); i += maxLen {
		end := i + maxLen
		if end > len(text) {
			end = len(text)
		}
		segments = append(segments, text[i:end])
	}
	return segments
}

// buildExtractionPrompt assembles the per-segment extraction prompt:
// retrieval context first, then the instructions, then the segment.
func buildExtractionPrompt(query, contextText, segment string) string {
	var b strings.Builder
	if contextText != "" {
		b.WriteString(contextText)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "From the following document text segment, please extract distinct text segments or snippets "+
		"that are directly relevant to the query: %q. "+
		"If direct verbatim snippets are appropriate, each extracted snippet should be a contiguous block of text from the document. "+
		"Present each snippet clearly separated. For example, you can use '---SNIPPET---' as a separator between snippets, "+
		"or enclose each snippet in its own markdown code block like ```snippet\n[SNIPPET_TEXT]\n```. "+
		"If a summary is more appropriate than verbatim snippets for answering the query, provide a concise summary. "+
		"If no relevant information (neither snippets nor summary) can be found in this segment, respond with %q.\n\n"+
		"DOCUMENT TEXT SEGMENT:\n%s",
		query, NoSnippetsSentinel, segment)
	return b.String()
}
