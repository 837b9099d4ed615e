// Package models defines core data structures for tasks, chunks, and snippets.
package models

import "time"

// TaskKind identifies the type of a long-running task.
type TaskKind string

const (
	// KindOCR is an OCR text-correction task.
	KindOCR TaskKind = "ocr"
	// KindKnowledgeExtraction is a knowledge-extraction task.
	KindKnowledgeExtraction TaskKind = "knowledge_extraction"
)

// Task is a snapshot of a long-running operation tracked by the progress store.
// Exactly one of OCR or Extraction is set, selected by Kind.
type Task struct {
	ID        string    `json:"id"`
	Kind      TaskKind  `json:"kind"`
	Filename  string    `json:"filename,omitempty"`
	Stage     string    `json:"stage"`
	Percent   int       `json:"progress_percent"`
	Message   string    `json:"message"`
	Completed bool      `json:"completed"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OCR        *OCRInfo        `json:"ocr,omitempty"`
	Extraction *ExtractionInfo `json:"extraction,omitempty"`
}

// OCRInfo holds the OCR-specific progress fields.
type OCRInfo struct {
	TotalPages  int    `json:"total_pages"`
	CurrentPage int    `json:"current_page"`
	Language    string `json:"language,omitempty"`
}

// ExtractionInfo holds the knowledge-extraction-specific fields.
// Snippets is populated once the task completes successfully.
type ExtractionInfo struct {
	Query    string   `json:"query"`
	Model    string   `json:"model"`
	Snippets []string `json:"extracted_snippets,omitempty"`
}
