// Package apperr defines the failure taxonomy shared by the ingestion
// pipeline and the API boundary: caller-fixable validation failures,
// upstream provider failures, and storage failures.
package apperr

import "fmt"

// Upstream service tags.
const (
	ServiceTranscription = "transcription"
	ServiceSemantic      = "semantic_parsing"
)

// Validation is a caller-fixable input failure. Reason is safe to show to
// the end user.
type Validation struct {
	Reason string
}

func (e *Validation) Error() string {
	return e.Reason
}

// NewValidation builds a Validation failure with a formatted reason.
func NewValidation(format string, args ...any) *Validation {
	return &Validation{Reason: fmt.Sprintf(format, args...)}
}

// Upstream is a provider failure (transcription or semantic inference).
// Err carries the internal detail for logging; user-facing messages come
// from Message and never include provider error text.
type Upstream struct {
	Service string // ServiceTranscription or ServiceSemantic
	Err     error
}

func (e *Upstream) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *Upstream) Unwrap() error {
	return e.Err
}

// Message returns the generic safe message for this service.
func (e *Upstream) Message() string {
	switch e.Service {
	case ServiceTranscription:
		return "语音识别服务不可用"
	case ServiceSemantic:
		return "语义解析服务不可用"
	default:
		return "上游服务不可用"
	}
}

// Persistence is a storage I/O failure. The caller must not assume any part
// of the write succeeded.
type Persistence struct {
	Op  string
	Err error
}

func (e *Persistence) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *Persistence) Unwrap() error {
	return e.Err
}
