// Package record defines the domain types shared across the ingestion
// pipeline: a Record is one user submission, and Mood, Inspiration, and Todo
// are the three dimensions extracted from it.
package record

import "time"

// Input types for a Record.
const (
	InputAudio = "audio"
	InputText  = "text"
)

// Todo statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Mood intensity bounds.
const (
	IntensityMin = 1
	IntensityMax = 10
)

// Inspiration constraints.
const (
	CoreIdeaMaxRunes = 20
	MaxTags          = 5
)

// Categories is the fixed set of inspiration categories.
var Categories = []string{"工作", "生活", "学习", "创意"}

// DefaultCategory is used when the provider returns an unknown category.
const DefaultCategory = "生活"

// Mood is the emotional state extracted from a submission. A wholly absent
// mood is represented as a nil *Mood, never a zeroed value.
type Mood struct {
	Type      string   `json:"type,omitempty"`
	Intensity int      `json:"intensity,omitempty"`
	Keywords  []string `json:"keywords"`
}

// Inspiration is one captured idea.
type Inspiration struct {
	CoreIdea string   `json:"core_idea"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

// Todo is one extracted action item. Time keeps the user's original phrasing
// ("明天", "下周五") and is never normalized to a calendar date.
type Todo struct {
	Task     string `json:"task"`
	Time     string `json:"time,omitempty"`
	Location string `json:"location,omitempty"`
	Status   string `json:"status"`
}

// Payload is the full extraction result for one submission. Inspirations and
// Todos are always non-nil; an absent dimension is a nil Mood or an empty
// slice, never a missing key.
type Payload struct {
	Mood         *Mood         `json:"mood"`
	Inspirations []Inspiration `json:"inspirations"`
	Todos        []Todo        `json:"todos"`
}

// EmptyPayload returns a Payload with every dimension in its documented
// empty representation.
func EmptyPayload() Payload {
	return Payload{
		Inspirations: []Inspiration{},
		Todos:        []Todo{},
	}
}

// Record is one user submission together with its extraction result. ID and
// Timestamp are assigned once at persistence time and never change.
type Record struct {
	ID           string    `json:"record_id"`
	Timestamp    time.Time `json:"timestamp"`
	InputType    string    `json:"input_type"`
	OriginalText string    `json:"original_text"`
	Parsed       Payload   `json:"parsed_data"`
}

// ValidCategory reports whether c is one of the four fixed categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}
