package storage

import (
	"time"

	"github.com/yuanwm/soulnote/internal/record"
)

// Dimension entries are denormalized projections of a Record: they carry the
// originating record's id and timestamp as a back-reference, never an
// ownership pointer, and survive independently of the record collection.

// MoodEntry is one persisted mood.
type MoodEntry struct {
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
	record.Mood
}

// InspirationEntry is one persisted inspiration.
type InspirationEntry struct {
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
	record.Inspiration
}

// TodoEntry is one persisted todo. It carries its own id so its status can
// be addressed directly; Status is the only field ever mutated after
// creation.
type TodoEntry struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"record_id"`
	Timestamp time.Time `json:"timestamp"`
	record.Todo
}
