// Package progress provides the process-wide store tracking long-running tasks.
package progress

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emendo/emendo/internal/models"
)

const sweepInterval = time.Minute

// Store is a concurrent task-progress store keyed by task id. Tasks move
// from created through stage updates to completed; completion is terminal.
// All mutators are no-ops for unknown ids. Completed tasks older than the
// configured TTL are evicted by the sweeper.
type Store struct {
	mu     sync.RWMutex
	tasks  map[string]*models.Task
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a store. ttl bounds how long completed tasks are kept;
// zero disables eviction.
func NewStore(ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		tasks:  make(map[string]*models.Task),
		ttl:    ttl,
		logger: logger,
	}
}

// CreateOCRTask registers a new OCR correction task and returns its id.
func (s *Store) CreateOCRTask(filename string, totalPages int, language string) string {
	id := newTaskID("ocr")
	now := time.Now()
	task := &models.Task{
		ID:        id,
		Kind:      models.KindOCR,
		Filename:  filename,
		Stage:     "Initializing",
		Message:   "Initializing correction for " + filename + "...",
		CreatedAt: now,
		UpdatedAt: now,
		OCR: &models.OCRInfo{
			TotalPages: totalPages,
			Language:   language,
		},
	}
	s.mu.Lock()
	s.tasks[id] = task
	s.mu.Unlock()
	return id
}

// CreateExtractionTask registers a new knowledge-extraction task and returns its id.
func (s *Store) CreateExtractionTask(filename, query, model string) string {
	id := newTaskID("ke")
	now := time.Now()
	task := &models.Task{
		ID:        id,
		Kind:      models.KindKnowledgeExtraction,
		Filename:  filename,
		Stage:     "Starting",
		Message:   "Initializing knowledge extraction...",
		CreatedAt: now,
		UpdatedAt: now,
		Extraction: &models.ExtractionInfo{
			Query: query,
			Model: model,
		},
	}
	s.mu.Lock()
	s.tasks[id] = task
	s.mu.Unlock()
	return id
}

// UpdateStage records the current stage, percent, and message for a task.
// Percent never decreases and is clamped to [0,100]. No-op once completed.
func (s *Store) UpdateStage(id, stage string, percent int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Completed {
		return
	}
	task.Stage = stage
	task.Message = message
	setPercent(task, percent)
}

// UpdateOCRProgress records page-level progress for an OCR task. Percent is
// recomputed from the page counts. No-op for non-OCR tasks.
func (s *Store) UpdateOCRProgress(id string, currentPage int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Completed || task.OCR == nil {
		return
	}
	task.OCR.CurrentPage = currentPage
	task.Message = message
	setPercent(task, ocrPercent(currentPage, task.OCR.TotalPages))
}

// SetOCRTotalPages corrects the page count once the real total is known.
func (s *Store) SetOCRTotalPages(id string, totalPages int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Completed || task.OCR == nil {
		return
	}
	task.OCR.TotalPages = totalPages
	setPercent(task, ocrPercent(task.OCR.CurrentPage, totalPages))
}

// Complete marks a task terminal. Percent is forced to 100 and the message
// carries the result or the failure cause. Later mutations are ignored.
func (s *Store) Complete(id string, success bool, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Completed {
		return
	}
	task.Completed = true
	task.Success = success
	task.Message = result
	task.Percent = 100
	task.UpdatedAt = time.Now()
}

// CompleteExtraction is Complete plus the extracted snippet list for
// knowledge-extraction tasks.
func (s *Store) CompleteExtraction(id string, success bool, snippets []string, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Completed {
		return
	}
	if task.Extraction != nil {
		task.Extraction.Snippets = snippets
	}
	task.Completed = true
	task.Success = success
	task.Message = result
	task.Percent = 100
	task.UpdatedAt = time.Now()
}

// Get returns a snapshot copy of a task, or false when the id is unknown.
func (s *Store) Get(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return models.Task{}, false
	}
	return snapshot(task), true
}

// Remove deletes a task from tracking, reporting whether it was present.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// Count returns the number of tracked tasks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// StartSweeper runs periodic eviction of completed tasks older than the TTL
// until ctx is cancelled. Does nothing when the TTL is zero.
func (s *Store) StartSweeper(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(time.Now())
			}
		}
	}()
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, task := range s.tasks {
		if task.Completed && now.Sub(task.UpdatedAt) > s.ttl {
			delete(s.tasks, id)
			if s.logger != nil {
				s.logger.Debug("evicted completed task", zap.String("task_id", id))
			}
		}
	}
}

// setPercent applies the monotonic non-decreasing percent rule.
func setPercent(task *models.Task, percent int) {
	if percent > 100 {
		percent = 100
	}
	if percent > task.Percent {
		task.Percent = percent
	}
	task.UpdatedAt = time.Now()
}

func ocrPercent(currentPage, totalPages int) int {
	if totalPages <= 0 {
		return 0
	}
	p := int(float64(currentPage) / float64(totalPages) * 100)
	if p > 100 {
		return 100
	}
	return p
}

// snapshot deep-copies a task so pollers never observe torn writes.
func snapshot(task *models.Task) models.Task {
	out := *task
	if task.OCR != nil {
		ocr := *task.OCR
		out.OCR = &ocr
	}
	if task.Extraction != nil {
		ext := *task.Extraction
		if ext.Snippets != nil {
			ext.Snippets = append([]string(nil), ext.Snippets...)
		}
		out.Extraction = &ext
	}
	return out
}

// newTaskID builds a process-unique id like "ocr-1a2b3c4d5e6f".
func newTaskID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
