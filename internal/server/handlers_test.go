package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/emendo/emendo/internal/chunker"
	"github.com/emendo/emendo/internal/config"
	"github.com/emendo/emendo/internal/enhance"
	"github.com/emendo/emendo/internal/keyword"
	"github.com/emendo/emendo/internal/knowledge"
	"github.com/emendo/emendo/internal/llm"
	"github.com/emendo/emendo/internal/models"
	"github.com/emendo/emendo/internal/progress"
	"github.com/emendo/emendo/internal/storage"
)

func newTestServer(t *testing.T, client llm.Client) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	kwIdx, err := keyword.NewBleveIndex(filepath.Join(dir, "snippets.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kwIdx.Close() })

	if client == nil {
		client = &llm.MockClient{}
	}
	ch := chunker.New(5000, 1000, true)
	tasks := progress.NewStore(time.Hour, nil)
	enhancer := enhance.NewEnhancer(client, ch, 1, nil)
	extractor := knowledge.NewExtractor(knowledge.Deps{
		Client:  client,
		Chunker: ch,
		Store:   store,
		Tasks:   tasks,
		Index:   kwIdx,
	}, knowledge.Config{})

	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:     filepath.Join(dir, "db.sqlite"),
			SnippetIndexPath: filepath.Join(dir, "snippets.bleve"),
		},
	}
	config.ApplyDefaults(cfg)

	srv := NewServer(enhancer, extractor, store, tasks, kwIdx, cfg, zap.NewNop())
	return srv, srv.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]string
	decodeBody(t, w, &out)
	if out["status"] != "ok" {
		t.Errorf("health body: %v", out)
	}
}

func TestHandleStatus(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	decodeBody(t, w, &out)
	if out["documents"] != float64(0) || out["chunks"] != float64(0) || out["snippets"] != float64(0) {
		t.Errorf("counts: %v", out)
	}
	cfgInfo, ok := out["config"].(map[string]interface{})
	if !ok {
		t.Fatal("config section missing")
	}
	if cfgInfo["default_model"] != "llama3" {
		t.Errorf("default_model: %v", cfgInfo["default_model"])
	}
}

func TestHandleModels(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodGet, "/api/v1/models", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Models  []string `json:"models"`
		Default string   `json:"default"`
	}
	decodeBody(t, w, &out)
	if len(out.Models) == 0 {
		t.Error("models list should not be empty")
	}
	if out.Default != "llama3" {
		t.Errorf("default model: got %s", out.Default)
	}
}

func TestHandleCorrect(t *testing.T) {
	client := &llm.MockClient{Respond: func(model, prompt string) (string, error) {
		return "Hello world.", nil
	}}
	_, router := newTestServer(t, client)

	w := doJSON(t, router, http.MethodPost, "/api/v1/correct", map[string]interface{}{
		"text": "Helo wrld.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Text  string `json:"text"`
		Model string `json:"model"`
	}
	decodeBody(t, w, &out)
	if out.Text != "Hello world." {
		t.Errorf("corrected text: got %q", out.Text)
	}
	if out.Model != "llama3" {
		t.Errorf("model should fall back to default, got %q", out.Model)
	}
}

func TestHandleCorrect_EmptyText(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodPost, "/api/v1/correct", map[string]interface{}{
		"text": "   ",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleCorrect_InvalidBody(t *testing.T) {
	_, router := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/correct", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleCorrectAsync_CompletesTask(t *testing.T) {
	client := &llm.MockClient{Respond: func(model, prompt string) (string, error) {
		return "Hello world.", nil
	}}
	srv, router := newTestServer(t, client)

	w := doJSON(t, router, http.MethodPost, "/api/v1/correct/async", map[string]interface{}{
		"text":     "Helo wrld.",
		"filename": "scan.pdf",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		TaskID string `json:"task_id"`
	}
	decodeBody(t, w, &out)
	if out.TaskID == "" {
		t.Fatal("task_id missing")
	}

	task := waitForTask(t, srv.tasks, out.TaskID)
	if !task.Success {
		t.Errorf("task failed: %+v", task)
	}
	if task.Message != "Hello world." {
		t.Errorf("task result: got %q", task.Message)
	}
}

func TestHandleExtract_AndProgress(t *testing.T) {
	client := &llm.MockClient{Respond: func(model, prompt string) (string, error) {
		return "```snippet\nPayment due in 30 days.\n```", nil
	}}
	srv, router := newTestServer(t, client)

	w := doJSON(t, router, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"filename": "contract.pdf",
		"text":     "The parties agree that payment is due in 30 days.",
		"query":    "payment terms",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		TaskID string `json:"task_id"`
	}
	decodeBody(t, w, &out)

	task := waitForTask(t, srv.tasks, out.TaskID)
	if !task.Success {
		t.Fatalf("task failed: %+v", task)
	}
	if task.Extraction == nil || len(task.Extraction.Snippets) != 1 {
		t.Fatalf("extraction info: %+v", task.Extraction)
	}
	if task.Extraction.Snippets[0] != "Payment due in 30 days." {
		t.Errorf("snippet: got %q", task.Extraction.Snippets[0])
	}

	// Completed task is visible through the progress endpoint.
	pw := doJSON(t, router, http.MethodGet, "/api/v1/progress/"+out.TaskID, nil)
	if pw.Code != http.StatusOK {
		t.Errorf("progress status: got %d", pw.Code)
	}
	var fetched models.Task
	decodeBody(t, pw, &fetched)
	if fetched.ID != out.TaskID || !fetched.Completed {
		t.Errorf("fetched task: %+v", fetched)
	}

	// And removable.
	dw := doJSON(t, router, http.MethodDelete, "/api/v1/progress/"+out.TaskID, nil)
	if dw.Code != http.StatusOK {
		t.Errorf("delete status: got %d", dw.Code)
	}
	gw := doJSON(t, router, http.MethodGet, "/api/v1/progress/"+out.TaskID, nil)
	if gw.Code != http.StatusNotFound {
		t.Errorf("after delete: got %d, want 404", gw.Code)
	}
}

func TestHandleExtract_MissingQuery(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodPost, "/api/v1/extract", map[string]interface{}{
		"text": "some document",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleGetProgress_UnknownTask(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodGet, "/api/v1/progress/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
	var out map[string]string
	decodeBody(t, w, &out)
	if out["error"] == "" {
		t.Error("error body missing")
	}
}

func TestHandleDeleteProgress_UnknownTask(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodDelete, "/api/v1/progress/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/documents", map[string]interface{}{
		"filename": "scan.pdf",
		"content":  "Corrected text.",
		"model":    "llama3",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: got %d, body %s", w.Code, w.Body.String())
	}
	var doc models.Document
	decodeBody(t, w, &doc)
	if doc.ID == "" || doc.Filename != "scan.pdf" {
		t.Fatalf("created doc: %+v", doc)
	}

	lw := doJSON(t, router, http.MethodGet, "/api/v1/documents", nil)
	if lw.Code != http.StatusOK {
		t.Fatalf("list status: got %d", lw.Code)
	}
	var listed struct {
		Documents []models.Document `json:"documents"`
	}
	decodeBody(t, lw, &listed)
	if len(listed.Documents) != 1 {
		t.Fatalf("listed: %d documents", len(listed.Documents))
	}

	gw := doJSON(t, router, http.MethodGet, "/api/v1/documents/"+doc.ID, nil)
	if gw.Code != http.StatusOK {
		t.Errorf("get status: got %d", gw.Code)
	}

	dw := doJSON(t, router, http.MethodDelete, "/api/v1/documents/"+doc.ID, nil)
	if dw.Code != http.StatusOK {
		t.Errorf("delete status: got %d", dw.Code)
	}
	gw2 := doJSON(t, router, http.MethodGet, "/api/v1/documents/"+doc.ID, nil)
	if gw2.Code != http.StatusNotFound {
		t.Errorf("after delete: got %d, want 404", gw2.Code)
	}
}

func TestHandleCreateDocument_Validation(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodPost, "/api/v1/documents", map[string]interface{}{
		"content": "text without filename",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleDeleteDocument_NotFound(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodDelete, "/api/v1/documents/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestSnippetLifecycle(t *testing.T) {
	_, router := newTestServer(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/snippets", map[string]interface{}{
		"filename": "contract.pdf",
		"query":    "payment terms",
		"snippets": []string{"Payment due in 30 days.", "Late fees apply after 60 days."},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("save status: got %d, body %s", w.Code, w.Body.String())
	}
	var saved struct {
		Snippets []models.Snippet `json:"snippets"`
	}
	decodeBody(t, w, &saved)
	if len(saved.Snippets) != 2 {
		t.Fatalf("saved: %d snippets", len(saved.Snippets))
	}

	lw := doJSON(t, router, http.MethodGet, "/api/v1/snippets", nil)
	if lw.Code != http.StatusOK {
		t.Fatalf("list status: got %d", lw.Code)
	}
	var listed struct {
		Snippets []models.Snippet `json:"snippets"`
	}
	decodeBody(t, lw, &listed)
	if len(listed.Snippets) != 2 {
		t.Errorf("listed: %d snippets", len(listed.Snippets))
	}

	sw := doJSON(t, router, http.MethodGet, "/api/v1/snippets/search?q=payment", nil)
	if sw.Code != http.StatusOK {
		t.Fatalf("search status: got %d", sw.Code)
	}
	var found struct {
		Snippets []struct {
			ID      int64   `json:"id"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"snippets"`
	}
	decodeBody(t, sw, &found)
	if len(found.Snippets) == 0 {
		t.Fatal("search should find at least one snippet")
	}

	id := saved.Snippets[0].ID
	dw := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/snippets/%d", id), nil)
	if dw.Code != http.StatusOK {
		t.Errorf("delete status: got %d", dw.Code)
	}
	dw2 := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/snippets/%d", id), nil)
	if dw2.Code != http.StatusNotFound {
		t.Errorf("double delete: got %d, want 404", dw2.Code)
	}
}

func TestHandleSearchSnippets_MissingQuery(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodGet, "/api/v1/snippets/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleDeleteSnippet_InvalidID(t *testing.T) {
	_, router := newTestServer(t, nil)
	w := doJSON(t, router, http.MethodDelete, "/api/v1/snippets/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func waitForTask(t *testing.T, tasks *progress.Store, taskID string) models.Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, ok := tasks.Get(taskID)
		if !ok {
			t.Fatalf("task %s disappeared", taskID)
		}
		if task.Completed {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s did not complete in time", taskID)
	return models.Task{}
}
