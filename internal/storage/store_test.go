package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/yuanwm/soulnote/internal/apperr"
	"github.com/yuanwm/soulnote/internal/record"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", dir, err)
	}
	return s, dir
}

func testRecord(text string) record.Record {
	return record.Record{
		InputType:    record.InputText,
		OriginalText: text,
		Parsed:       record.EmptyPayload(),
	}
}

func TestSaveRecord_AssignsIDAndTimestamp(t *testing.T) {
	s, _ := openTestStore(t)

	id, err := s.SaveRecord(testRecord("第一条"))
	if err != nil {
		t.Fatalf("SaveRecord() failed: %v", err)
	}
	if id == "" {
		t.Fatal("SaveRecord() returned empty id")
	}

	records, err := s.Records()
	if err != nil {
		t.Fatalf("Records() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].ID != id {
		t.Errorf("persisted id = %q, want %q", records[0].ID, id)
	}
	if records[0].Timestamp.IsZero() {
		t.Error("persisted timestamp is zero")
	}
}

func TestCollectionBootstrap(t *testing.T) {
	s, dir := openTestStore(t)

	// Reads of never-written collections yield empty lists, no files created.
	moods, err := s.Moods()
	if err != nil {
		t.Fatalf("Moods() failed: %v", err)
	}
	if len(moods) != 0 {
		t.Errorf("len(moods) = %d, want 0", len(moods))
	}

	// First write creates exactly one well-formed file.
	if err := s.AppendMood(record.Mood{Type: "平静", Intensity: 3, Keywords: []string{"安宁"}}, "rec-1", time.Now().UTC()); err != nil {
		t.Fatalf("AppendMood() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "moods.json"))
	if err != nil {
		t.Fatalf("reading moods.json: %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("moods.json is not a valid JSON array: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("len(moods.json) = %d, want 1", len(raw))
	}
	if raw[0]["record_id"] != "rec-1" {
		t.Errorf("record_id = %v, want rec-1", raw[0]["record_id"])
	}

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "moods.json" {
			t.Errorf("unexpected file in data dir: %s", e.Name())
		}
	}
}

func TestSaveRecord_ConcurrentIDsUnique(t *testing.T) {
	s, _ := openTestStore(t)

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.SaveRecord(testRecord("并发写入"))
			if err != nil {
				t.Errorf("SaveRecord() failed: %v", err)
				ids <- ""
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if id == "" {
			continue
		}
		if seen[id] {
			t.Errorf("duplicate record id %q", id)
		}
		seen[id] = true
	}

	records, err := s.Records()
	if err != nil {
		t.Fatalf("Records() failed: %v", err)
	}
	if len(records) != n {
		t.Errorf("len(records) = %d, want %d: concurrent appends must not overwrite each other", len(records), n)
	}
}

func TestAppendDimensions_BackReference(t *testing.T) {
	s, _ := openTestStore(t)
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	if err := s.AppendInspirations([]record.Inspiration{
		{CoreIdea: "做一个治愈系应用", Tags: []string{"产品"}, Category: "创意"},
		{CoreIdea: "晚霞可以缓解压力", Tags: []string{"自然"}, Category: "生活"},
	}, "rec-9", ts); err != nil {
		t.Fatalf("AppendInspirations() failed: %v", err)
	}
	if err := s.AppendTodos([]record.Todo{
		{Task: "整理项目文档", Time: "明天", Status: record.StatusPending},
	}, "rec-9", ts); err != nil {
		t.Fatalf("AppendTodos() failed: %v", err)
	}

	inspirations, err := s.Inspirations()
	if err != nil {
		t.Fatalf("Inspirations() failed: %v", err)
	}
	if len(inspirations) != 2 {
		t.Fatalf("len(inspirations) = %d, want 2", len(inspirations))
	}
	for _, e := range inspirations {
		if e.RecordID != "rec-9" || !e.Timestamp.Equal(ts) {
			t.Errorf("entry = %+v, want back-reference to rec-9 @ %v", e, ts)
		}
	}

	todos, err := s.Todos()
	if err != nil {
		t.Fatalf("Todos() failed: %v", err)
	}
	if len(todos) != 1 {
		t.Fatalf("len(todos) = %d, want 1", len(todos))
	}
	if todos[0].ID == "" {
		t.Error("todo entry has no id of its own")
	}
	if todos[0].RecordID != "rec-9" {
		t.Errorf("RecordID = %q, want rec-9", todos[0].RecordID)
	}
}

func TestAppendEmptySlicesAreNoOps(t *testing.T) {
	s, dir := openTestStore(t)

	if err := s.AppendInspirations(nil, "rec-1", time.Now()); err != nil {
		t.Fatalf("AppendInspirations(nil) failed: %v", err)
	}
	if err := s.AppendTodos([]record.Todo{}, "rec-1", time.Now()); err != nil {
		t.Fatalf("AppendTodos(empty) failed: %v", err)
	}

	for _, name := range []string{"inspirations.json", "todos.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s exists after no-op append", name)
		}
	}
}

func TestUpdateTodoStatus(t *testing.T) {
	s, _ := openTestStore(t)
	ts := time.Now().UTC()

	if err := s.AppendTodos([]record.Todo{
		{Task: "买书", Status: record.StatusPending},
		{Task: "跑步", Status: record.StatusPending},
	}, "rec-1", ts); err != nil {
		t.Fatalf("AppendTodos() failed: %v", err)
	}

	todos, err := s.Todos()
	if err != nil {
		t.Fatalf("Todos() failed: %v", err)
	}

	ok, err := s.UpdateTodoStatus(todos[0].ID, record.StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateTodoStatus() failed: %v", err)
	}
	if !ok {
		t.Fatal("UpdateTodoStatus() = false, want true for existing id")
	}

	after, err := s.Todos()
	if err != nil {
		t.Fatalf("Todos() failed: %v", err)
	}
	if after[0].Status != record.StatusCompleted {
		t.Errorf("first todo status = %q, want completed", after[0].Status)
	}
	if after[1].Status != record.StatusPending {
		t.Errorf("second todo status = %q, want untouched pending", after[1].Status)
	}
}

func TestUpdateTodoStatus_UnknownID(t *testing.T) {
	s, _ := openTestStore(t)

	if err := s.AppendTodos([]record.Todo{{Task: "买书", Status: record.StatusPending}}, "rec-1", time.Now()); err != nil {
		t.Fatalf("AppendTodos() failed: %v", err)
	}

	ok, err := s.UpdateTodoStatus("not-a-real-id", record.StatusCompleted)
	if err != nil {
		t.Fatalf("UpdateTodoStatus() returned error for unknown id: %v", err)
	}
	if ok {
		t.Error("UpdateTodoStatus() = true, want false for unknown id")
	}

	todos, err := s.Todos()
	if err != nil {
		t.Fatalf("Todos() failed: %v", err)
	}
	if todos[0].Status != record.StatusPending {
		t.Errorf("existing entry mutated: status = %q", todos[0].Status)
	}
}

func TestUpdateTodoStatus_InvalidStatus(t *testing.T) {
	s, _ := openTestStore(t)
	if _, err := s.UpdateTodoStatus("any", "in_progress"); err == nil {
		t.Fatal("UpdateTodoStatus() accepted invalid status, want error")
	}
}

func TestRecentRecords_Window(t *testing.T) {
	s, _ := openTestStore(t)

	for i := 0; i < 15; i++ {
		if _, err := s.SaveRecord(testRecord("记录")); err != nil {
			t.Fatalf("SaveRecord() failed: %v", err)
		}
	}

	recent, err := s.RecentRecords(10)
	if err != nil {
		t.Fatalf("RecentRecords() failed: %v", err)
	}
	if len(recent) != 10 {
		t.Errorf("len(recent) = %d, want 10", len(recent))
	}

	all, _ := s.Records()
	if recent[len(recent)-1].ID != all[len(all)-1].ID {
		t.Error("recent window does not end with the newest record")
	}
}

func TestReadError_IsPersistenceFailure(t *testing.T) {
	s, dir := openTestStore(t)

	if err := os.WriteFile(filepath.Join(dir, "records.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seeding corrupt file: %v", err)
	}

	_, err := s.Records()
	var pe *apperr.Persistence
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v (%T), want *apperr.Persistence", err, err)
	}
}

func TestRoundTrip_ChineseContent(t *testing.T) {
	s, _ := openTestStore(t)

	rec := testRecord("今天工作很累，但看到晚霞很美。")
	rec.Parsed.Mood = &record.Mood{Type: "疲惫", Intensity: 6, Keywords: []string{"劳累"}}
	id, err := s.SaveRecord(rec)
	if err != nil {
		t.Fatalf("SaveRecord() failed: %v", err)
	}

	records, err := s.Records()
	if err != nil {
		t.Fatalf("Records() failed: %v", err)
	}
	got := records[len(records)-1]
	if got.ID != id || got.OriginalText != "今天工作很累，但看到晚霞很美。" {
		t.Errorf("round-tripped record = %+v", got)
	}
	if got.Parsed.Mood == nil || got.Parsed.Mood.Type != "疲惫" {
		t.Errorf("round-tripped mood = %+v", got.Parsed.Mood)
	}
}
