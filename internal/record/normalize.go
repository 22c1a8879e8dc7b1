package record

import "strings"

// Normalization implements the per-field leniency policy for provider output:
// out-of-range values are clamped or dropped field by field so that one bad
// field never discards an otherwise useful extraction. Entries that lose
// their required field (a todo without a task) are dropped whole.

// Normalize returns a copy of the payload with every constraint from the data
// model enforced. The result always has non-nil Inspirations and Todos.
func (p Payload) Normalize() Payload {
	out := EmptyPayload()
	out.Mood = normalizeMood(p.Mood)

	for _, insp := range p.Inspirations {
		if n, ok := normalizeInspiration(insp); ok {
			out.Inspirations = append(out.Inspirations, n)
		}
	}
	for _, todo := range p.Todos {
		if n, ok := normalizeTodo(todo); ok {
			out.Todos = append(out.Todos, n)
		}
	}
	return out
}

func normalizeMood(m *Mood) *Mood {
	if m == nil {
		return nil
	}
	n := Mood{
		Type:      strings.TrimSpace(m.Type),
		Intensity: clampIntensity(m.Intensity),
		Keywords:  cloneStrings(m.Keywords),
	}
	if n.Type == "" && n.Intensity == 0 && len(n.Keywords) == 0 {
		return nil
	}
	return &n
}

// clampIntensity clamps a present intensity into [IntensityMin, IntensityMax].
// Zero and negative values mean "absent" and stay dropped.
func clampIntensity(v int) int {
	if v <= 0 {
		return 0
	}
	if v < IntensityMin {
		return IntensityMin
	}
	if v > IntensityMax {
		return IntensityMax
	}
	return v
}

func normalizeInspiration(i Inspiration) (Inspiration, bool) {
	idea := strings.TrimSpace(i.CoreIdea)
	if idea == "" {
		return Inspiration{}, false
	}
	if r := []rune(idea); len(r) > CoreIdeaMaxRunes {
		idea = string(r[:CoreIdeaMaxRunes])
	}

	tags := cloneStrings(i.Tags)
	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}

	category := strings.TrimSpace(i.Category)
	if !ValidCategory(category) {
		category = DefaultCategory
	}

	return Inspiration{CoreIdea: idea, Tags: tags, Category: category}, true
}

func normalizeTodo(t Todo) (Todo, bool) {
	task := strings.TrimSpace(t.Task)
	if task == "" {
		return Todo{}, false
	}

	status := t.Status
	if status != StatusPending && status != StatusCompleted {
		status = StatusPending
	}

	return Todo{
		Task:     task,
		Time:     strings.TrimSpace(t.Time),
		Location: strings.TrimSpace(t.Location),
		Status:   status,
	}, true
}

// cloneStrings copies the non-empty entries of src, preserving order.
func cloneStrings(src []string) []string {
	out := make([]string, 0, len(src))
	for _, s := range src {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
