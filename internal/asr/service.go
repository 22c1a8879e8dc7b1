// Package asr adapts the Zhipu transcription endpoint for the ingestion
// pipeline.
package asr

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yuanwm/soulnote/internal/apperr"
)

// Transcriber is the provider contract the service wraps.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Service converts audio bytes to text. A single attempt, fail-fast: retry
// policy, if any, belongs to the caller.
type Service struct {
	client Transcriber
}

// New creates a Service wrapping the given provider client.
func New(client Transcriber) *Service {
	return &Service{client: client}
}

// Transcribe returns the transcribed text for the audio payload. An empty
// result means the provider recognized no speech; it is logged and returned
// as-is, not treated as a failure. Provider failures are tagged as
// transcription upstream errors.
func (s *Service) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	text, err := s.client.Transcribe(ctx, audio, filename)
	if err != nil {
		return "", &apperr.Upstream{Service: apperr.ServiceTranscription, Err: err}
	}

	if strings.TrimSpace(text) == "" {
		slog.Warn("transcription returned empty text, audio may be unrecognizable", "filename", filename)
		return "", nil
	}

	slog.Info("transcription successful", "filename", filename, "text_length", len(text))
	return text, nil
}
