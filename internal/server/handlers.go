package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/emendo/emendo/internal/enhance"
	"github.com/emendo/emendo/internal/keyword"
	"github.com/emendo/emendo/internal/knowledge"
	"github.com/emendo/emendo/internal/llm"
	"github.com/emendo/emendo/internal/models"
	"github.com/emendo/emendo/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	snippetCount, err := s.storage.CountSnippets(ctx)
	if err != nil {
		s.logger.Error("status: count snippets failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"documents":    docCount,
		"chunks":       chunkCount,
		"snippets":     snippetCount,
		"active_tasks": s.tasks.Count(),
	}

	configInfo := map[string]interface{}{
		"default_model":        s.config.LLM.DefaultModel,
		"llm_base_url":         s.config.LLM.BaseURL,
		"chunking_enabled":     s.config.Chunking.EnabledOrDefault(),
		"max_chunk_size":       s.config.Chunking.MaxChunkSize,
		"retrieval_enabled":    s.config.Retrieval.EnabledOrDefault(),
		"similarity_threshold": s.config.Retrieval.SimilarityThreshold,
		"embedding_model":      s.config.Embedding.Model,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"database_path":        s.config.Storage.DatabasePath,
		"snippet_index_path":   s.config.Storage.SnippetIndexPath,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.SnippetIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"models":  llm.AvailableModels(),
		"default": s.config.LLM.DefaultModel,
	})
}

type correctRequest struct {
	Text         string `json:"text"`
	Model        string `json:"model,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	Chunking     *bool  `json:"chunking,omitempty"`
	Filename     string `json:"filename,omitempty"`
	Language     string `json:"language,omitempty"`
}

func (s *Server) handleCorrect(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	model := req.Model
	if model == "" {
		model = s.config.LLM.DefaultModel
	}
	s.logger.Debug("correct request",
		zap.String("model", model),
		zap.Int("text_len", len(req.Text)))
	result, err := s.enhancer.Enhance(r.Context(), enhance.Request{
		Text:         req.Text,
		Model:        model,
		Prompt:       req.Prompt,
		DocumentType: req.DocumentType,
		Chunking:     req.Chunking,
	})
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"text":          result.Text,
		"was_corrected": result.WasCorrected,
		"model":         model,
	})
}

func (s *Server) handleCorrectAsync(w http.ResponseWriter, r *http.Request) {
	var req correctRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	model := req.Model
	if model == "" {
		model = s.config.LLM.DefaultModel
	}
	taskID, err := s.extractor.StartCorrection(knowledge.CorrectionInput{
		Filename:     req.Filename,
		Text:         req.Text,
		Model:        model,
		Prompt:       req.Prompt,
		DocumentType: req.DocumentType,
		Language:     req.Language,
		Chunking:     req.Chunking,
	})
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

type extractRequest struct {
	Filename string `json:"filename,omitempty"`
	Text     string `json:"text"`
	Query    string `json:"query"`
	Model    string `json:"model,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	model := req.Model
	if model == "" {
		model = s.config.LLM.DefaultModel
	}
	taskID, err := s.extractor.StartExtraction(knowledge.ExtractionInput{
		Filename: req.Filename,
		Text:     req.Text,
		Query:    req.Query,
		Model:    model,
	})
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	task, ok := s.tasks.Get(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	s.respondJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if !s.tasks.Remove(id) {
		s.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type documentRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Model    string `json:"model,omitempty"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		s.respondError(w, http.StatusBadRequest, "filename is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.respondError(w, http.StatusBadRequest, "content is required")
		return
	}
	doc := &models.Document{
		ID:       knowledge.DocumentID(req.Filename, len(req.Content)),
		Filename: req.Filename,
		Content:  req.Content,
		Model:    req.Model,
	}
	if err := s.storage.CreateDocument(r.Context(), doc); err != nil {
		s.logger.Error("create document failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r, 50)
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.storage.GetDocument(r.Context(), id); err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	if err := s.storage.DeleteDocument(r.Context(), id); err != nil {
		s.logger.Error("delete document failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type saveSnippetsRequest struct {
	Filename string   `json:"filename"`
	Query    string   `json:"query"`
	Snippets []string `json:"snippets"`
}

func (s *Server) handleSaveSnippets(w http.ResponseWriter, r *http.Request) {
	var req saveSnippetsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Snippets) == 0 {
		s.respondError(w, http.StatusBadRequest, "snippets are required")
		return
	}
	saved, err := s.extractor.SaveSnippets(r.Context(), req.Filename, req.Query, req.Snippets)
	if err != nil {
		s.logger.Error("save snippets failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"snippets": saved})
}

func (s *Server) handleListSnippets(w http.ResponseWriter, r *http.Request) {
	offset, limit := paginationParams(r, 50)
	snippets, err := s.storage.ListSnippets(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list snippets failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snippets == nil {
		snippets = []*models.Snippet{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"snippets": snippets})
}

type snippetHit struct {
	*models.Snippet
	Score float64 `json:"score"`
}

func (s *Server) handleSearchSnippets(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	fuzzy := r.URL.Query().Get("fuzzy") != "false"
	results, err := s.index.Search(r.Context(), query, limit, &keyword.SearchOptions{
		FuzzyEnabled: fuzzy,
	})
	if err != nil {
		s.logger.Error("snippet search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	hits := make([]snippetHit, 0, len(results))
	for _, res := range results {
		snippet, err := s.storage.GetSnippet(r.Context(), res.ID)
		if err != nil {
			// Index entry with no backing row; skip it.
			continue
		}
		hits = append(hits, snippetHit{Snippet: snippet, Score: res.Score})
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"snippets": hits, "total": len(hits)})
}

func (s *Server) handleDeleteSnippet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid snippet id")
		return
	}
	if err := s.extractor.DeleteSnippet(r.Context(), id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			s.respondError(w, http.StatusNotFound, "snippet not found")
			return
		}
		s.logger.Error("delete snippet failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func paginationParams(r *http.Request, defaultLimit int) (offset, limit int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return offset, limit
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
