// Package api is the HTTP surface: one ingest endpoint, one conversational
// endpoint, read endpoints for every collection, and a todo status mutation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yuanwm/soulnote/internal/apperr"
	"github.com/yuanwm/soulnote/internal/pipeline"
	"github.com/yuanwm/soulnote/internal/record"
	"github.com/yuanwm/soulnote/internal/storage"
)

// formOverhead is slack on top of the audio cap for multipart framing and
// the text field.
const formOverhead = 1 << 20

// Processor runs one submission through the ingestion pipeline.
type Processor interface {
	Process(ctx context.Context, in pipeline.Input) (pipeline.Result, error)
}

// Replier answers a conversational message; it never fails.
type Replier interface {
	Reply(ctx context.Context, message string) string
}

// Collections is the read/mutate surface of the persistence layer.
type Collections interface {
	Records() ([]record.Record, error)
	Moods() ([]storage.MoodEntry, error)
	Inspirations() ([]storage.InspirationEntry, error)
	Todos() ([]storage.TodoEntry, error)
	UpdateTodoStatus(id, status string) (bool, error)
}

// Deps holds everything the HTTP layer needs.
type Deps struct {
	Ingestor      Processor
	Responder     Replier
	Store         Collections
	MaxAudioBytes int64
	Version       string
	DataDir       string
}

// ProcessResponse is the body of a successful ingest.
type ProcessResponse struct {
	RecordID     string               `json:"record_id"`
	Timestamp    time.Time            `json:"timestamp"`
	InputType    string               `json:"input_type"`
	OriginalText string               `json:"original_text"`
	Mood         *record.Mood         `json:"mood"`
	Inspirations []record.Inspiration `json:"inspirations"`
	Todos        []record.Todo        `json:"todos"`
}

// NewHandler builds the service router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", handleRoot(deps))
	r.Get("/health", handleHealth(deps))

	r.Route("/api", func(r chi.Router) {
		r.Post("/process", handleProcess(deps))
		r.Post("/chat", handleChat(deps))
		r.Get("/records", listHandler(deps.Store.Records))
		r.Get("/moods", listHandler(deps.Store.Moods))
		r.Get("/inspirations", listHandler(deps.Store.Inspirations))
		r.Get("/todos", listHandler(deps.Store.Todos))
		r.Patch("/todos/{id}/status", handleUpdateTodoStatus(deps))
	})

	return r
}

func handleRoot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "soulnote",
			"status":  "running",
			"version": deps.Version,
		})
	}
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":         "healthy",
			"data_dir":       deps.DataDir,
			"max_audio_size": deps.MaxAudioBytes,
		})
	}
}

// handleProcess accepts multipart or urlencoded form data with either an
// "audio" file part or a "text" field. Classification and the audio
// format/size checks live in the pipeline; this handler only extracts the
// form and maps the outcome.
func handleProcess(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxAudioBytes+formOverhead)
		defer r.Body.Close()

		in, err := extractInput(r)
		if err != nil {
			httpError(w, r, http.StatusBadRequest, "无法解析请求: %v", err)
			return
		}

		res, err := deps.Ingestor.Process(r.Context(), in)
		if err != nil {
			mapPipelineError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, ProcessResponse{
			RecordID:     res.RecordID,
			Timestamp:    res.Timestamp,
			InputType:    res.InputType,
			OriginalText: res.OriginalText,
			Mood:         res.Payload.Mood,
			Inspirations: res.Payload.Inspirations,
			Todos:        res.Payload.Todos,
		})
	}
}

// extractInput pulls the audio part or text field out of the request form.
// An oversized part is not a decode failure here: the pipeline owns the size
// verdict, so the whole part is read and passed through.
func extractInput(r *http.Request) (pipeline.Input, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return pipeline.Input{}, err
		}
		in := pipeline.Input{Text: r.FormValue("text")}
		file, header, err := r.FormFile("audio")
		if err == nil {
			defer file.Close()
			audio, readErr := io.ReadAll(file)
			if readErr != nil {
				return pipeline.Input{}, readErr
			}
			in.Audio = audio
			in.Filename = header.Filename
		} else if !errors.Is(err, http.ErrMissingFile) {
			return pipeline.Input{}, err
		}
		return in, nil
	}

	if err := r.ParseForm(); err != nil {
		return pipeline.Input{}, err
	}
	return pipeline.Input{Text: r.FormValue("text")}, nil
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		defer r.Body.Close()

		message := r.FormValue("text")
		if message == "" {
			httpError(w, r, http.StatusBadRequest, "请提供对话内容")
			return
		}

		reply := deps.Responder.Reply(r.Context(), message)
		writeJSON(w, http.StatusOK, map[string]string{"response": reply})
	}
}

// listHandler serves one collection read. Empty collections encode as [],
// never null.
func listHandler[T any](read func() ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := read()
		if err != nil {
			mapPipelineError(w, r, err)
			return
		}
		if entries == nil {
			entries = []T{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleUpdateTodoStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		defer r.Body.Close()

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, r, http.StatusBadRequest, "无法解析请求: %v", err)
			return
		}
		if req.Status != record.StatusPending && req.Status != record.StatusCompleted {
			httpError(w, r, http.StatusBadRequest, "无效的待办状态: %q", req.Status)
			return
		}

		id := chi.URLParam(r, "id")
		ok, err := deps.Store.UpdateTodoStatus(id, req.Status)
		if err != nil {
			mapPipelineError(w, r, err)
			return
		}
		if !ok {
			httpError(w, r, http.StatusNotFound, "待办事项不存在: %s", id)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id, "status": req.Status})
	}
}

// mapPipelineError translates the error taxonomy into a status code and a
// safe message. Upstream and persistence details never reach the client.
func mapPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *apperr.Validation
	if errors.As(err, &ve) {
		httpError(w, r, http.StatusBadRequest, "%s", ve.Reason)
		return
	}

	var ue *apperr.Upstream
	if errors.As(err, &ue) {
		slog.Error("upstream service failed",
			"request_id", middleware.GetReqID(r.Context()),
			"service", ue.Service,
			"error", ue.Err,
		)
		httpError(w, r, http.StatusBadGateway, "%s", ue.Message())
		return
	}

	var pe *apperr.Persistence
	if errors.As(err, &pe) {
		slog.Error("persistence failed",
			"request_id", middleware.GetReqID(r.Context()),
			"op", pe.Op,
			"error", pe.Err,
		)
		httpError(w, r, http.StatusInternalServerError, "数据存储失败")
		return
	}

	slog.Error("request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)
	httpError(w, r, http.StatusInternalServerError, "服务器内部错误")
}

func httpError(w http.ResponseWriter, r *http.Request, code int, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error":     fmt.Sprintf(format, args...),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
