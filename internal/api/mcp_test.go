package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/yuanwm/soulnote/internal/pipeline"
	"github.com/yuanwm/soulnote/internal/record"
	"github.com/yuanwm/soulnote/internal/storage"
)

func newTestMCPDeps(t *testing.T, proc *mockProcessor, rep *mockReplier) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return MCPDeps{
		Ingestor:  proc,
		Responder: rep,
		Store:     store,
		Recent:    store,
	}, store
}

func callToolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestMCPCapture(t *testing.T) {
	proc := &mockProcessor{result: pipelineResult("rec-1")}
	deps, _ := newTestMCPDeps(t, proc, &mockReplier{})

	handler := mcpCapture(deps)
	res, err := handler(context.Background(), callToolRequest(map[string]any{
		"text": "明天要整理项目文档",
	}))
	if err != nil {
		t.Fatalf("capture handler failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("capture returned tool error: %s", resultText(t, res))
	}

	if proc.lastIn.Text != "明天要整理项目文档" {
		t.Errorf("pipeline received %q", proc.lastIn.Text)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("capture result is not JSON: %v", err)
	}
	if body["record_id"] != "rec-1" {
		t.Errorf("record_id = %v, want rec-1", body["record_id"])
	}
}

func TestMCPCapture_MissingText(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &mockProcessor{}, &mockReplier{})

	res, err := mcpCapture(deps)(context.Background(), callToolRequest(nil))
	if err != nil {
		t.Fatalf("capture handler failed: %v", err)
	}
	if !res.IsError {
		t.Error("capture without text did not report a tool error")
	}
}

func TestMCPListTodos_StatusFilter(t *testing.T) {
	deps, store := newTestMCPDeps(t, &mockProcessor{}, &mockReplier{})

	ts := time.Now().UTC()
	if err := store.AppendTodos([]record.Todo{
		{Task: "买书", Status: record.StatusPending},
		{Task: "跑步", Status: record.StatusCompleted},
	}, "rec-1", ts); err != nil {
		t.Fatalf("AppendTodos() failed: %v", err)
	}

	res, err := mcpListTodos(deps)(context.Background(), callToolRequest(map[string]any{
		"status": "pending",
	}))
	if err != nil {
		t.Fatalf("list_todos handler failed: %v", err)
	}

	var entries []storage.TodoEntry
	if err := json.Unmarshal([]byte(resultText(t, res)), &entries); err != nil {
		t.Fatalf("list_todos result is not JSON: %v", err)
	}
	if len(entries) != 1 || entries[0].Task != "买书" {
		t.Errorf("entries = %+v, want only the pending todo", entries)
	}
}

func TestMCPListTodos_UnknownStatus(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &mockProcessor{}, &mockReplier{})

	res, err := mcpListTodos(deps)(context.Background(), callToolRequest(map[string]any{
		"status": "in_progress",
	}))
	if err != nil {
		t.Fatalf("list_todos handler failed: %v", err)
	}
	if !res.IsError {
		t.Error("unknown status filter did not report a tool error")
	}
}

func TestMCPCompleteTodo(t *testing.T) {
	deps, store := newTestMCPDeps(t, &mockProcessor{}, &mockReplier{})

	if err := store.AppendTodos([]record.Todo{
		{Task: "买书", Status: record.StatusPending},
	}, "rec-1", time.Now().UTC()); err != nil {
		t.Fatalf("AppendTodos() failed: %v", err)
	}
	todos, _ := store.Todos()

	res, err := mcpCompleteTodo(deps)(context.Background(), callToolRequest(map[string]any{
		"id": todos[0].ID,
	}))
	if err != nil {
		t.Fatalf("complete_todo handler failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("complete_todo returned tool error: %s", resultText(t, res))
	}

	after, _ := store.Todos()
	if after[0].Status != record.StatusCompleted {
		t.Errorf("status = %q, want completed", after[0].Status)
	}
}

func TestMCPCompleteTodo_UnknownID(t *testing.T) {
	deps, _ := newTestMCPDeps(t, &mockProcessor{}, &mockReplier{})

	res, err := mcpCompleteTodo(deps)(context.Background(), callToolRequest(map[string]any{
		"id": "no-such-id",
	}))
	if err != nil {
		t.Fatalf("complete_todo handler failed: %v", err)
	}
	if !res.IsError {
		t.Error("unknown id did not report a tool error")
	}
}

func TestMCPChat(t *testing.T) {
	rep := &mockReplier{reply: "你最近很努力呀"}
	deps, _ := newTestMCPDeps(t, &mockProcessor{}, rep)

	res, err := mcpChat(deps)(context.Background(), callToolRequest(map[string]any{
		"message": "我最近怎么样？",
	}))
	if err != nil {
		t.Fatalf("chat handler failed: %v", err)
	}
	if got := resultText(t, res); got != rep.reply {
		t.Errorf("chat result = %q, want responder reply", got)
	}
	if rep.lastMsg != "我最近怎么样？" {
		t.Errorf("responder received %q", rep.lastMsg)
	}
}

func TestMCPResourceRecent(t *testing.T) {
	deps, store := newTestMCPDeps(t, &mockProcessor{}, &mockReplier{})

	long := strings.Repeat("长", 250)
	for _, text := range []string{"第一条记录", long} {
		if _, err := store.SaveRecord(record.Record{
			InputType:    record.InputText,
			OriginalText: text,
			Parsed:       record.EmptyPayload(),
		}); err != nil {
			t.Fatalf("SaveRecord() failed: %v", err)
		}
	}

	req := mcp.ReadResourceRequest{}
	req.Params.URI = "records://recent"
	contents, err := mcpResourceRecent(deps)(context.Background(), req)
	if err != nil {
		t.Fatalf("recent resource failed: %v", err)
	}

	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents[0] is %T, want TextResourceContents", contents[0])
	}

	var summaries []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &summaries); err != nil {
		t.Fatalf("resource payload is not JSON: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
	if got := summaries[1].Text; len([]rune(got)) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("long text not truncated to 200 runes + ellipsis: %d runes", len([]rune(got)))
	}
}

func pipelineResult(id string) pipeline.Result {
	return pipeline.Result{
		RecordID:  id,
		InputType: record.InputText,
		Payload:   record.EmptyPayload(),
	}
}
