package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/emendo/emendo/internal/models"
)

func TestStore_LifecycleScenario(t *testing.T) {
	s := NewStore(0, nil)
	id := s.CreateOCRTask("scan.pdf", 3, "eng")

	s.UpdateStage(id, "OCR", 10, "starting")
	s.UpdateStage(id, "LLM", 50, "midway")
	s.Complete(id, true, "done")

	task, ok := s.Get(id)
	if !ok {
		t.Fatal("task should exist")
	}
	if task.Percent != 100 || !task.Completed || !task.Success {
		t.Errorf("final snapshot wrong: percent=%d completed=%v success=%v",
			task.Percent, task.Completed, task.Success)
	}
	if task.Message != "done" {
		t.Errorf("message should carry result, got %q", task.Message)
	}
}

func TestStore_MonotonicPercent(t *testing.T) {
	s := NewStore(0, nil)
	id := s.CreateExtractionTask("doc.pdf", "what is it about", "llama3")

	s.UpdateStage(id, "LLM Processing", 60, "chunk 2")
	s.UpdateStage(id, "LLM Processing", 30, "late update for chunk 1")

	task, _ := s.Get(id)
	if task.Percent != 60 {
		t.Errorf("percent must never decrease, got %d", task.Percent)
	}

	s.UpdateStage(id, "Finalizing", 300, "overshoot")
	task, _ = s.Get(id)
	if task.Percent != 100 {
		t.Errorf("percent should clamp to 100, got %d", task.Percent)
	}
}

func TestStore_CompletionIsTerminal(t *testing.T) {
	s := NewStore(0, nil)
	id := s.CreateOCRTask("scan.pdf", 10, "ita")
	s.Complete(id, false, "llm unavailable")

	// Late worker updates must not resurrect the task.
	s.UpdateStage(id, "LLM", 50, "straggler")
	s.UpdateOCRProgress(id, 9, "straggler page")
	s.Complete(id, true, "second completion ignored")

	task, _ := s.Get(id)
	if task.Success || task.Message != "llm unavailable" || task.Percent != 100 {
		t.Errorf("completed task was mutated: %+v", task)
	}
}

func TestStore_UnknownIDNoOps(t *testing.T) {
	s := NewStore(0, nil)
	s.UpdateStage("nope", "x", 10, "msg")
	s.Complete("nope", true, "msg")
	if s.Remove("nope") {
		t.Error("removing an unknown id should report false")
	}
	if _, ok := s.Get("nope"); ok {
		t.Error("unknown id should report not found")
	}
}

func TestStore_RemoveReportsPresence(t *testing.T) {
	s := NewStore(0, nil)
	id := s.CreateExtractionTask("doc.pdf", "query", "llama3")
	if !s.Remove(id) {
		t.Error("first removal should report true")
	}
	if s.Remove(id) {
		t.Error("second removal should report false")
	}
}

func TestStore_OCRProgressPercent(t *testing.T) {
	s := NewStore(0, nil)
	id := s.CreateOCRTask("scan.pdf", 4, "eng")
	s.UpdateOCRProgress(id, 1, "page 1")
	task, _ := s.Get(id)
	if task.Percent != 25 {
		t.Errorf("expected 25%%, got %d", task.Percent)
	}
	if task.OCR == nil || task.OCR.CurrentPage != 1 {
		t.Errorf("OCR info not updated: %+v", task.OCR)
	}

	// Zero total pages means no meaningful percent.
	id2 := s.CreateOCRTask("other.pdf", 0, "eng")
	s.UpdateOCRProgress(id2, 3, "page 3")
	task2, _ := s.Get(id2)
	if task2.Percent != 0 {
		t.Errorf("expected 0%% with unknown total, got %d", task2.Percent)
	}

	s.SetOCRTotalPages(id2, 6)
	task2, _ = s.Get(id2)
	if task2.Percent != 50 {
		t.Errorf("expected 50%% after total correction, got %d", task2.Percent)
	}
}

func TestStore_UniqueIDsAndKinds(t *testing.T) {
	s := NewStore(0, nil)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := s.CreateOCRTask("f.pdf", 1, "eng")
		if seen[id] {
			t.Fatalf("duplicate task id %s", id)
		}
		seen[id] = true
	}
	ke := s.CreateExtractionTask("f.pdf", "q", "m")
	task, _ := s.Get(ke)
	if task.Kind != models.KindKnowledgeExtraction || task.Extraction == nil || task.OCR != nil {
		t.Errorf("extraction task payload wrong: %+v", task)
	}
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore(0, nil)
	id := s.CreateExtractionTask("f.pdf", "q", "m")
	s.CompleteExtraction(id, true, []string{"one"}, "1 snippet(s) extracted.")

	task, _ := s.Get(id)
	task.Extraction.Snippets[0] = "mutated"
	again, _ := s.Get(id)
	if again.Extraction.Snippets[0] != "one" {
		t.Error("Get must return an isolated copy")
	}
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := NewStore(0, nil)
	id := s.CreateOCRTask("scan.pdf", 100, "eng")

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.UpdateStage(id, "LLM", i%100, "update")
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for i := 0; i < 200; i++ {
				task, ok := s.Get(id)
				if !ok {
					t.Error("task disappeared")
					return
				}
				if task.Percent < last {
					t.Errorf("observed decreasing percent: %d -> %d", last, task.Percent)
					return
				}
				last = task.Percent
			}
		}()
	}
	wg.Wait()
}

func TestStore_SweepEvictsCompleted(t *testing.T) {
	s := NewStore(10*time.Millisecond, nil)
	done := s.CreateOCRTask("a.pdf", 1, "eng")
	s.Complete(done, true, "ok")
	running := s.CreateOCRTask("b.pdf", 1, "eng")

	time.Sleep(20 * time.Millisecond)
	s.sweep(time.Now())

	if _, ok := s.Get(done); ok {
		t.Error("completed task past TTL should be evicted")
	}
	if _, ok := s.Get(running); !ok {
		t.Error("running task must survive sweeps")
	}
}
