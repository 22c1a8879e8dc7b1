// Package storage persists records and their extracted dimensions as four
// independent append-only JSON collections on disk.
//
// Every write takes the owning collection's lock, reads the current state,
// appends, and atomically replaces the file (write-new-then-rename), so a
// crash mid-write can never corrupt prior entries or expose a partial
// append. Collections bootstrap lazily: the first read of a missing file
// yields an empty list.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yuanwm/soulnote/internal/apperr"
	"github.com/yuanwm/soulnote/internal/record"
)

// Collection file names inside the data directory.
const (
	recordsFile      = "records.json"
	moodsFile        = "moods.json"
	inspirationsFile = "inspirations.json"
	todosFile        = "todos.json"
)

// collection is one named append-only store with its own mutual-exclusion
// scope around the read-append-write cycle.
type collection struct {
	path string
	mu   sync.Mutex
}

// Store owns the four collections and the identity/timestamp policy.
type Store struct {
	records      collection
	moods        collection
	inspirations collection
	todos        collection
}

// Open prepares a Store rooted at dataDir, creating the directory if needed.
// Collection files themselves are created on first write.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, &apperr.Persistence{Op: "init", Err: fmt.Errorf("creating data directory: %w", err)}
	}
	return &Store{
		records:      collection{path: filepath.Join(dataDir, recordsFile)},
		moods:        collection{path: filepath.Join(dataDir, moodsFile)},
		inspirations: collection{path: filepath.Join(dataDir, inspirationsFile)},
		todos:        collection{path: filepath.Join(dataDir, todosFile)},
	}, nil
}

// SaveRecord appends the record to the records collection, assigning its id
// and timestamp if unset, and returns the id. Ids are random 128-bit UUIDs:
// unique across restarts and concurrent writers.
func (s *Store) SaveRecord(rec record.Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	err := appendEntries(&s.records, []record.Record{rec})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// AppendMood appends one mood entry keyed by the owning record.
func (s *Store) AppendMood(m record.Mood, recordID string, ts time.Time) error {
	entry := MoodEntry{RecordID: recordID, Timestamp: ts, Mood: m}
	return appendEntries(&s.moods, []MoodEntry{entry})
}

// AppendInspirations appends inspiration entries keyed by the owning record.
// A nil or empty slice is a no-op.
func (s *Store) AppendInspirations(items []record.Inspiration, recordID string, ts time.Time) error {
	if len(items) == 0 {
		return nil
	}
	entries := make([]InspirationEntry, len(items))
	for i, insp := range items {
		entries[i] = InspirationEntry{RecordID: recordID, Timestamp: ts, Inspiration: insp}
	}
	return appendEntries(&s.inspirations, entries)
}

// AppendTodos appends todo entries keyed by the owning record. Each entry
// gets its own id so its status can be updated later.
func (s *Store) AppendTodos(items []record.Todo, recordID string, ts time.Time) error {
	if len(items) == 0 {
		return nil
	}
	entries := make([]TodoEntry, len(items))
	for i, todo := range items {
		entries[i] = TodoEntry{ID: uuid.New().String(), RecordID: recordID, Timestamp: ts, Todo: todo}
	}
	return appendEntries(&s.todos, entries)
}

// Records returns every persisted record in append order.
func (s *Store) Records() ([]record.Record, error) {
	s.records.mu.Lock()
	defer s.records.mu.Unlock()
	return readCollection[record.Record](&s.records)
}

// RecentRecords returns the n most recent records, oldest first.
func (s *Store) RecentRecords(n int) ([]record.Record, error) {
	all, err := s.Records()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// Moods returns every persisted mood entry in append order.
func (s *Store) Moods() ([]MoodEntry, error) {
	s.moods.mu.Lock()
	defer s.moods.mu.Unlock()
	return readCollection[MoodEntry](&s.moods)
}

// Inspirations returns every persisted inspiration entry in append order.
func (s *Store) Inspirations() ([]InspirationEntry, error) {
	s.inspirations.mu.Lock()
	defer s.inspirations.mu.Unlock()
	return readCollection[InspirationEntry](&s.inspirations)
}

// Todos returns every persisted todo entry in append order.
func (s *Store) Todos() ([]TodoEntry, error) {
	s.todos.mu.Lock()
	defer s.todos.mu.Unlock()
	return readCollection[TodoEntry](&s.todos)
}

// UpdateTodoStatus sets the status of the todo entry with the given id.
// It returns false, without error, when no entry matches: a missing id is a
// client-observable not-found, not a storage malfunction.
func (s *Store) UpdateTodoStatus(id, status string) (bool, error) {
	if status != record.StatusPending && status != record.StatusCompleted {
		return false, fmt.Errorf("invalid todo status %q", status)
	}

	s.todos.mu.Lock()
	defer s.todos.mu.Unlock()

	entries, err := readCollection[TodoEntry](&s.todos)
	if err != nil {
		return false, err
	}

	found := false
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Status = status
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}

	if err := writeCollection(&s.todos, entries); err != nil {
		return false, err
	}
	return true, nil
}

// appendEntries runs one locked read-append-write cycle on the collection.
func appendEntries[T any](c *collection, items []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := readCollection[T](c)
	if err != nil {
		return err
	}
	entries = append(entries, items...)
	return writeCollection(c, entries)
}

// readCollection loads the collection, treating a missing file as the empty
// list. Callers must hold the collection lock.
func readCollection[T any](c *collection) ([]T, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return []T{}, nil
	}
	if err != nil {
		return nil, &apperr.Persistence{Op: "read " + filepath.Base(c.path), Err: err}
	}

	var entries []T
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &apperr.Persistence{Op: "read " + filepath.Base(c.path), Err: fmt.Errorf("corrupt collection: %w", err)}
	}
	if entries == nil {
		entries = []T{}
	}
	return entries, nil
}

// writeCollection marshals the full new state and atomically replaces the
// persisted file via a same-directory temp file and rename. Callers must
// hold the collection lock.
func writeCollection[T any](c *collection, entries []T) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return &apperr.Persistence{Op: "write " + filepath.Base(c.path), Err: err}
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return &apperr.Persistence{Op: "write " + filepath.Base(c.path), Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &apperr.Persistence{Op: "write " + filepath.Base(c.path), Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &apperr.Persistence{Op: "write " + filepath.Base(c.path), Err: err}
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return &apperr.Persistence{Op: "write " + filepath.Base(c.path), Err: err}
	}
	return nil
}
