// Package parser is the semantic extraction adapter: it sends user text to
// the inference provider under a fixed extraction contract and turns the
// response into a validated record.Payload.
//
// The provider's output is never trusted as schema-valid. The payload is
// isolated from any surrounding prose, each dimension is decoded separately
// so one malformed dimension cannot discard the others, and out-of-range
// fields are clamped or dropped per the record normalization policy.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuanwm/soulnote/internal/apperr"
	"github.com/yuanwm/soulnote/internal/record"
	"github.com/yuanwm/soulnote/internal/zhipu"
)

// Chatter is the provider contract for chat completions.
type Chatter interface {
	ChatCompletion(ctx context.Context, messages []zhipu.Message, opts zhipu.Options) (string, error)
}

// Service extracts mood, inspirations, and todos from free-form text.
type Service struct {
	client Chatter
}

// New creates a Service using the given provider client.
func New(client Chatter) *Service {
	return &Service{client: client}
}

// rawPayload splits the provider response into per-dimension raw JSON so
// each dimension can fail decoding independently.
type rawPayload struct {
	Mood         json.RawMessage `json:"mood"`
	Inspirations json.RawMessage `json:"inspirations"`
	Todos        json.RawMessage `json:"todos"`
}

// Parse extracts the three dimensions from text. A provider failure or a
// response with no parseable JSON at all is a semantic_parsing upstream
// error; anything less (a bad field, a malformed dimension) degrades
// gracefully to the documented empty representation for that part.
func (s *Service) Parse(ctx context.Context, text string) (record.Payload, error) {
	content, err := s.client.ChatCompletion(ctx, []zhipu.Message{
		{Role: "system", Content: extractionContract},
		{Role: "user", Content: text},
	}, zhipu.Options{Temperature: 0.7, TopP: 0.9})
	if err != nil {
		return record.Payload{}, &apperr.Upstream{Service: apperr.ServiceSemantic, Err: err}
	}

	isolated := isolateJSON(content)

	var raw rawPayload
	if err := json.Unmarshal([]byte(isolated), &raw); err != nil {
		return record.Payload{}, &apperr.Upstream{
			Service: apperr.ServiceSemantic,
			Err:     fmt.Errorf("response is not valid JSON: %w", err),
		}
	}

	payload := record.Payload{}

	if len(raw.Mood) > 0 && !isNull(raw.Mood) {
		var mood record.Mood
		if err := json.Unmarshal(raw.Mood, &mood); err != nil {
			slog.Warn("discarding malformed mood dimension", "error", err)
		} else {
			payload.Mood = &mood
		}
	}

	if len(raw.Inspirations) > 0 && !isNull(raw.Inspirations) {
		if err := json.Unmarshal(raw.Inspirations, &payload.Inspirations); err != nil {
			slog.Warn("discarding malformed inspirations dimension", "error", err)
			payload.Inspirations = nil
		}
	}

	if len(raw.Todos) > 0 && !isNull(raw.Todos) {
		if err := json.Unmarshal(raw.Todos, &payload.Todos); err != nil {
			slog.Warn("discarding malformed todos dimension", "error", err)
			payload.Todos = nil
		}
	}

	normalized := payload.Normalize()
	slog.Info("semantic extraction complete",
		"contract", ContractVersion,
		"mood_present", normalized.Mood != nil,
		"inspirations", len(normalized.Inspirations),
		"todos", len(normalized.Todos),
	)
	return normalized, nil
}

// isolateJSON strips markdown code fences and surrounding prose, returning
// the innermost {...} span. Providers occasionally wrap the payload despite
// the contract telling them not to.
func isolateJSON(content string) string {
	content = strings.TrimSpace(content)

	if i := strings.Index(content, "```json"); i >= 0 {
		content = content[i+len("```json"):]
		if j := strings.Index(content, "```"); j >= 0 {
			content = content[:j]
		}
	} else if i := strings.Index(content, "```"); i >= 0 {
		content = content[i+len("```"):]
		if j := strings.Index(content, "```"); j >= 0 {
			content = content[:j]
		}
	}

	content = strings.TrimSpace(content)

	// Trim leading/trailing prose around the object.
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
