package asr

import (
	"context"
	"errors"
	"testing"

	"github.com/yuanwm/soulnote/internal/apperr"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	return f.text, f.err
}

func TestTranscribe_Success(t *testing.T) {
	s := New(&fakeTranscriber{text: "今天天气很好"})

	got, err := s.Transcribe(context.Background(), []byte("audio"), "a.mp3")
	if err != nil {
		t.Fatalf("Transcribe() failed: %v", err)
	}
	if got != "今天天气很好" {
		t.Errorf("text = %q, want 今天天气很好", got)
	}
}

func TestTranscribe_EmptyResultIsNotFailure(t *testing.T) {
	s := New(&fakeTranscriber{text: "   "})

	got, err := s.Transcribe(context.Background(), []byte("audio"), "quiet.wav")
	if err != nil {
		t.Fatalf("Transcribe() failed on empty result: %v", err)
	}
	if got != "" {
		t.Errorf("text = %q, want empty string", got)
	}
}

func TestTranscribe_ProviderFailureTagged(t *testing.T) {
	cause := errors.New("transcription: unexpected status 503")
	s := New(&fakeTranscriber{err: cause})

	_, err := s.Transcribe(context.Background(), []byte("audio"), "a.mp3")
	if err == nil {
		t.Fatal("Transcribe() succeeded, want error")
	}

	var up *apperr.Upstream
	if !errors.As(err, &up) {
		t.Fatalf("error = %T, want *apperr.Upstream", err)
	}
	if up.Service != apperr.ServiceTranscription {
		t.Errorf("Service = %q, want %q", up.Service, apperr.ServiceTranscription)
	}
	if up.Message() != "语音识别服务不可用" {
		t.Errorf("Message() = %q, want generic safe message", up.Message())
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
}
