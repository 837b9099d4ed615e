// Package enhance orchestrates LLM calls over chunked text and polices
// responses against the single-task contract.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/emendo/emendo/internal/chunker"
	"github.com/emendo/emendo/internal/llm"
	"github.com/emendo/emendo/internal/models"
)

// ErrEmptyText is returned when there is nothing to enhance.
var ErrEmptyText = errors.New("empty text")

// ErrNoModel is returned when no model name is given.
var ErrNoModel = errors.New("no model specified")

// Request describes one enhancement operation.
type Request struct {
	// Text is the unit of text to correct or query.
	Text string
	// Model is the LLM model name.
	Model string
	// Prompt, when non-empty, overrides the built-in templates. A %s
	// placeholder is substituted with the text; without one the text is
	// appended after a blank line.
	Prompt string
	// DocumentType selects a specialized built-in template when Prompt is
	// empty (generic, business, academic, technical, legal, literary,
	// italian-literary).
	DocumentType string
	// Chunking overrides the configured chunking default when non-nil.
	Chunking *bool
}

// Enhancer drives per-chunk LLM calls, corrective retries, and merge.
type Enhancer struct {
	client     llm.Client
	chunker    *chunker.Chunker
	checker    *Checker
	maxWorkers int
	logger     *zap.Logger

	// OnProgress, when set, is invoked after each processed chunk with the
	// number done and the total. Used by async pipelines to report progress.
	OnProgress func(done, total int)
}

// NewEnhancer creates an enhancer. maxWorkers bounds per-chunk parallelism;
// values below 2 force sequential processing.
func NewEnhancer(client llm.Client, ch *chunker.Chunker, maxWorkers int, logger *zap.Logger) *Enhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{
		client:     client,
		chunker:    ch,
		checker:    NewChecker(),
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// Enhance runs one enhancement operation. Input validation failures are the
// only returned errors; LLM failures degrade to the best available text.
func (e *Enhancer) Enhance(ctx context.Context, req Request) (models.EnhancementResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return models.EnhancementResult{}, ErrEmptyText
	}
	if strings.TrimSpace(req.Model) == "" {
		return models.EnhancementResult{}, ErrNoModel
	}

	chunkingWanted := true
	if req.Chunking != nil {
		chunkingWanted = *req.Chunking
	}
	if chunkingWanted && e.chunker.ShouldChunk(req.Text) {
		e.logger.Info("text exceeds chunk size, processing chunked",
			zap.String("model", req.Model), zap.Int("text_len", len(req.Text)))
		return e.processChunked(ctx, req), nil
	}
	e.logger.Debug("processing single unit", zap.String("model", req.Model))
	result := e.processOne(ctx, req.Text, req.Model, req.Prompt, req.DocumentType)
	if e.OnProgress != nil {
		e.OnProgress(1, 1)
	}
	return result, nil
}

// processChunked splits, processes each chunk, and merges in chunk order.
func (e *Enhancer) processChunked(ctx context.Context, req Request) (result models.EnhancementResult) {
	chunks := e.chunker.Chunk(req.Text)
	e.logger.Info("split text into chunks", zap.Int("chunks", len(chunks)), zap.String("model", req.Model))

	rawTexts := make([]string, len(chunks))
	for i, c := range chunks {
		rawTexts[i] = c.Text
	}

	// A failure in splitting, sequential processing, or assembly must not
	// lose the caller's text: degrade to the unprocessed chunks joined with
	// a plain separator. Pool workers carry their own recovery in
	// recoverProcessOne.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("chunk processing failed, returning unprocessed chunks", zap.Any("panic", r))
			result = models.EnhancementResult{Text: strings.Join(rawTexts, "\n\n")}
		}
	}()

	workers := e.maxWorkers
	if workers > len(chunks) {
		workers = len(chunks)
	}

	var results []models.EnhancementResult
	if len(chunks) > 1 && workers > 1 {
		results = e.processParallel(ctx, chunks, req, workers)
	} else {
		results = e.processSequential(ctx, chunks, req)
	}

	enhanced := make([]string, len(results))
	anyCorrected := false
	for i, r := range results {
		enhanced[i] = r.Text
		if r.WasCorrected {
			anyCorrected = true
		}
	}

	preserveMarkers := len(chunks) > 0 && chunks[0].IsPageBoundary
	merged := e.chunker.Merge(enhanced, preserveMarkers)
	e.logger.Info("recombined chunks", zap.Int("chunks", len(chunks)), zap.Bool("any_corrected", anyCorrected))
	return models.EnhancementResult{Text: merged, WasCorrected: anyCorrected}
}

func (e *Enhancer) processSequential(ctx context.Context, chunks []models.Chunk, req Request) []models.EnhancementResult {
	results := make([]models.EnhancementResult, len(chunks))
	for i, c := range chunks {
		e.logger.Debug("processing chunk",
			zap.Int("chunk", i+1), zap.Int("total", len(chunks)), zap.Int("size", len(c.Text)))
		results[i] = e.processOne(ctx, c.Text, req.Model, req.Prompt, req.DocumentType)
		if e.OnProgress != nil {
			e.OnProgress(i+1, len(chunks))
		}
	}
	return results
}

// processParallel fans chunks out to a bounded worker pool. Results land in
// a pre-sized slice indexed by chunk position, so completion order never
// affects assembly order.
func (e *Enhancer) processParallel(ctx context.Context, chunks []models.Chunk, req Request, workers int) []models.EnhancementResult {
	e.logger.Info("processing chunks in parallel", zap.Int("chunks", len(chunks)), zap.Int("workers", workers))

	results := make([]models.EnhancementResult, len(chunks))
	jobs := make(chan models.Chunk)

	var done int
	var doneMu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				results[c.Index] = e.recoverProcessOne(ctx, c, req)
				if e.OnProgress != nil {
					doneMu.Lock()
					done++
					n := done
					doneMu.Unlock()
					e.OnProgress(n, len(chunks))
				}
			}
		}()
	}
	for _, c := range chunks {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
	return results
}

// recoverProcessOne shields the pool from a panicking chunk. A panic in a
// worker goroutine would otherwise crash the process; instead the chunk
// degrades to its raw text and the remaining workers keep going.
func (e *Enhancer) recoverProcessOne(ctx context.Context, c models.Chunk, req Request) (result models.EnhancementResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("chunk processing panicked, keeping raw chunk",
				zap.Int("chunk", c.Index), zap.Any("panic", r))
			result = models.EnhancementResult{Text: c.Text}
		}
	}()
	return e.processOne(ctx, c.Text, req.Model, req.Prompt, req.DocumentType)
}

// processOne runs a single LLM round for one unit of text: prompt assembly,
// the call, integrity inspection, and at most one corrective retry. LLM
// failure falls back to the unmodified unit.
func (e *Enhancer) processOne(ctx context.Context, text, model, customPrompt, documentType string) models.EnhancementResult {
	prompt := buildPrompt(text, customPrompt, documentType)

	response, err := e.client.Complete(ctx, model, prompt)
	if err != nil {
		e.logger.Error("llm call failed, keeping original text",
			zap.String("model", model), zap.Error(err))
		return models.EnhancementResult{Text: text}
	}

	verdict := e.checker.Inspect(text, response)
	if !verdict.Violation {
		return models.EnhancementResult{
			Text:         CleanResponse(verdict.Cleaned),
			WasCorrected: verdict.EchoStripped,
		}
	}

	e.logger.Warn("contract-violating llm response, issuing corrective retry",
		zap.String("model", model),
		zap.Bool("translated", verdict.Translated),
		zap.Bool("echo_stripped", verdict.EchoStripped))

	var fixPrompt string
	if verdict.Translated {
		fixPrompt = correctiveTranslationPrompt(text)
	} else {
		fixPrompt = correctiveGenericPrompt(text)
	}

	fixed, err := e.client.Complete(ctx, model, fixPrompt)
	if err != nil {
		e.logger.Error("corrective retry failed, keeping best previous text",
			zap.String("model", model), zap.Error(err))
		return models.EnhancementResult{
			Text:         CleanResponse(verdict.Cleaned),
			WasCorrected: verdict.EchoStripped,
		}
	}
	return models.EnhancementResult{Text: CleanResponse(fixed), WasCorrected: true}
}

// buildPrompt assembles the final prompt for one unit of text.
func buildPrompt(text, customPrompt, documentType string) string {
	if strings.TrimSpace(customPrompt) != "" {
		if strings.Contains(customPrompt, "%s") {
			return fmt.Sprintf(customPrompt, text)
		}
		return customPrompt + "\n\n" + text
	}
	if documentType == "" {
		documentType = "generic"
	}
	return SpecializedPrompt(documentType, text)
}
