// Package pipeline sequences one ingestion request end to end:
// validate → (transcribe) → extract → persist. Any stage's failure aborts
// the rest; a failed request is resubmitted whole by the caller, there is
// no retry loop and no resumable partial state.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/yuanwm/soulnote/internal/record"
)

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Extractor turns free-form text into a validated payload.
type Extractor interface {
	Parse(ctx context.Context, text string) (record.Payload, error)
}

// Recorder is the persistence surface the ingestion path writes to.
type Recorder interface {
	SaveRecord(rec record.Record) (string, error)
	AppendMood(m record.Mood, recordID string, ts time.Time) error
	AppendInspirations(items []record.Inspiration, recordID string, ts time.Time) error
	AppendTodos(items []record.Todo, recordID string, ts time.Time) error
}

// Result is the outcome of a successful ingestion.
type Result struct {
	RecordID     string
	Timestamp    time.Time
	InputType    string
	OriginalText string
	Payload      record.Payload

	// EmptyTranscription flags audio that produced no recognizable speech.
	// The request still succeeds; downstream callers may want to tell the
	// user nothing was heard.
	EmptyTranscription bool
}

// Ingestor orchestrates the ingestion path.
type Ingestor struct {
	asr           Transcriber
	extractor     Extractor
	store         Recorder
	maxAudioBytes int64
}

// NewIngestor wires the ingestion pipeline.
func NewIngestor(asr Transcriber, extractor Extractor, store Recorder, maxAudioBytes int64) *Ingestor {
	return &Ingestor{asr: asr, extractor: extractor, store: store, maxAudioBytes: maxAudioBytes}
}

// Process runs one submission through the pipeline. Errors are the taxonomy
// types from apperr; the caller maps them to response codes. If persistence
// of the master record succeeds but a dimension append fails, the whole call
// reports failure — dimension writes are never silently dropped.
func (ing *Ingestor) Process(ctx context.Context, in Input) (Result, error) {
	if err := in.Validate(ing.maxAudioBytes); err != nil {
		return Result{}, err
	}

	res := Result{InputType: record.InputText, OriginalText: in.Text}

	if in.hasAudio() {
		res.InputType = record.InputAudio
		text, err := ing.asr.Transcribe(ctx, in.Audio, in.Filename)
		if err != nil {
			return Result{}, err
		}
		res.OriginalText = text
		res.EmptyTranscription = text == ""
	}

	payload, err := ing.extractor.Parse(ctx, res.OriginalText)
	if err != nil {
		return Result{}, err
	}
	res.Payload = payload

	res.Timestamp = time.Now().UTC()
	id, err := ing.store.SaveRecord(record.Record{
		Timestamp:    res.Timestamp,
		InputType:    res.InputType,
		OriginalText: res.OriginalText,
		Parsed:       payload,
	})
	if err != nil {
		return Result{}, err
	}
	res.RecordID = id

	if payload.Mood != nil {
		if err := ing.store.AppendMood(*payload.Mood, id, res.Timestamp); err != nil {
			return Result{}, err
		}
	}
	if err := ing.store.AppendInspirations(payload.Inspirations, id, res.Timestamp); err != nil {
		return Result{}, err
	}
	if err := ing.store.AppendTodos(payload.Todos, id, res.Timestamp); err != nil {
		return Result{}, err
	}

	slog.Info("record ingested",
		"record_id", id,
		"input_type", res.InputType,
		"mood_present", payload.Mood != nil,
		"inspirations", len(payload.Inspirations),
		"todos", len(payload.Todos),
		"empty_transcription", res.EmptyTranscription,
	)
	return res, nil
}
