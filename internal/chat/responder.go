// Package chat answers free-form user messages grounded in the user's own
// recent records. Replies are conversational output only: they are never
// persisted and never feed back into future context windows.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuanwm/soulnote/internal/record"
	"github.com/yuanwm/soulnote/internal/zhipu"
)

// contextWindow is the number of most recent records rendered into the
// grounding prompt.
const contextWindow = 10

// fallbackReply is returned whenever the provider cannot produce an answer.
// The conversational surface degrades warmly instead of surfacing an error.
const fallbackReply = "抱歉，我现在有点走神了。不过我一直在这里陪着你，想聊什么都可以跟我说。"

const groundingPrompt = "你是一个温暖、治愈的陪伴助手。用户会向你倾诉心情、分享灵感、安排待办。\n" +
	"请结合下面用户最近的记录来回答，回复要自然、温和、简洁，像一位了解对方近况的朋友。\n" +
	"如果记录与问题无关，就正常聊天，不要编造记录里没有的内容。"

// Chatter is the completion surface the responder talks to.
type Chatter interface {
	ChatCompletion(ctx context.Context, messages []zhipu.Message, opts zhipu.Options) (string, error)
}

// RecordReader supplies the recency window.
type RecordReader interface {
	RecentRecords(n int) ([]record.Record, error)
}

// Responder generates grounded conversational replies.
type Responder struct {
	llm   Chatter
	store RecordReader
}

// NewResponder wires the conversational path.
func NewResponder(llm Chatter, store RecordReader) *Responder {
	return &Responder{llm: llm, store: store}
}

// Reply answers the user's message. It never returns an error: a store or
// provider failure yields the fixed fallback reply, logged with fallback=true.
func (r *Responder) Reply(ctx context.Context, message string) string {
	records, err := r.store.RecentRecords(contextWindow)
	if err != nil {
		slog.Error("chat context read failed", "error", err, "fallback", true)
		return fallbackReply
	}

	messages := []zhipu.Message{
		{Role: "system", Content: buildContext(records)},
		{Role: "user", Content: message},
	}

	reply, err := r.llm.ChatCompletion(ctx, messages, zhipu.Options{Temperature: 0.8, TopP: 0.9})
	if err != nil {
		slog.Error("chat completion failed", "error", err, "fallback", true)
		return fallbackReply
	}
	if strings.TrimSpace(reply) == "" {
		slog.Warn("chat completion returned empty reply", "fallback", true)
		return fallbackReply
	}

	slog.Info("chat reply generated", "context_records", len(records), "fallback", false)
	return reply
}

// buildContext renders the grounding instruction plus one compact line per
// record, oldest first so the newest entry sits closest to the query turn.
func buildContext(records []record.Record) string {
	var b strings.Builder
	b.WriteString(groundingPrompt)

	if len(records) == 0 {
		b.WriteString("\n\n用户还没有任何记录。")
		return b.String()
	}

	b.WriteString("\n\n用户最近的记录：\n")
	for _, rec := range records {
		b.WriteString(renderRecord(rec))
		b.WriteByte('\n')
	}
	return b.String()
}

func renderRecord(rec record.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- [%s] %s", rec.Timestamp.Local().Format(time.DateOnly), rec.OriginalText)

	if m := rec.Parsed.Mood; m != nil {
		fmt.Fprintf(&b, "（情绪：%s，强度%d）", m.Type, m.Intensity)
	}
	for _, insp := range rec.Parsed.Inspirations {
		fmt.Fprintf(&b, "（灵感：%s）", insp.CoreIdea)
	}
	for _, todo := range rec.Parsed.Todos {
		fmt.Fprintf(&b, "（待办：%s", todo.Task)
		if todo.Time != "" {
			fmt.Fprintf(&b, "，%s", todo.Time)
		}
		b.WriteString("）")
	}
	return b.String()
}
