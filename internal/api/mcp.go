package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/yuanwm/soulnote/internal/pipeline"
	"github.com/yuanwm/soulnote/internal/record"
	"github.com/yuanwm/soulnote/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Ingestor  Processor
	Responder Replier
	Store     Collections
	Recent    RecentReader
}

// RecentReader supplies the recency window for the records resource.
type RecentReader interface {
	RecentRecords(n int) ([]record.Record, error)
}

// NewMCPServer creates an MCP server exposing the capture and recall surface
// to agent clients over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"soulnote",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("soulnote — 记录心情、捕捉灵感、管理待办的陪伴助手。"),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("capture",
			mcp.WithDescription("Capture a free-form note. Extracts mood, inspirations and todos and persists them."),
			mcp.WithString("text", mcp.Description("The note text, in natural language"), mcp.Required()),
		),
		mcpCapture(deps),
	)

	s.AddTool(
		mcp.NewTool("list_todos",
			mcp.WithDescription("List captured todo items, optionally filtered by status."),
			mcp.WithString("status", mcp.Description("Filter: pending or completed (default all)")),
		),
		mcpListTodos(deps),
	)

	s.AddTool(
		mcp.NewTool("complete_todo",
			mcp.WithDescription("Mark a todo item as completed."),
			mcp.WithString("id", mcp.Description("Todo entry id"), mcp.Required()),
		),
		mcpCompleteTodo(deps),
	)

	s.AddTool(
		mcp.NewTool("chat",
			mcp.WithDescription("Chat with the companion, grounded in recently captured records."),
			mcp.WithString("message", mcp.Description("The user message"), mcp.Required()),
		),
		mcpChat(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"records://recent",
			"Recent Records",
			mcp.WithResourceDescription("Last 10 captured records (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpCapture(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		res, err := deps.Ingestor.Process(ctx, pipeline.Input{Text: text})
		if err != nil {
			return mcpError(fmt.Sprintf("capture failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"record_id":    res.RecordID,
			"mood":         res.Payload.Mood,
			"inspirations": res.Payload.Inspirations,
			"todos":        res.Payload.Todos,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListTodos(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := req.GetString("status", "")
		if status != "" && status != record.StatusPending && status != record.StatusCompleted {
			return mcpError(fmt.Sprintf("unknown status %q", status)), nil
		}

		entries, err := deps.Store.Todos()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list todos: %v", err)), nil
		}

		filtered := make([]storage.TodoEntry, 0, len(entries))
		for _, e := range entries {
			if status == "" || e.Status == status {
				filtered = append(filtered, e)
			}
		}

		b, err := json.Marshal(filtered)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal todos: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCompleteTodo(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		ok, err := deps.Store.UpdateTodoStatus(id, record.StatusCompleted)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to update todo: %v", err)), nil
		}
		if !ok {
			return mcpError(fmt.Sprintf("no todo with id %s", id)), nil
		}
		return mcpText(fmt.Sprintf("Todo %s marked completed", id)), nil
	}
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}
		return mcpText(deps.Responder.Reply(ctx, message)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Recent.RecentRecords(10)
		if err != nil {
			return nil, fmt.Errorf("failed to read recent records: %w", err)
		}

		type recordSummary struct {
			ID        string `json:"id"`
			Timestamp string `json:"timestamp"`
			InputType string `json:"input_type"`
			Text      string `json:"text"`
		}

		summaries := make([]recordSummary, len(records))
		for i, rec := range records {
			text := rec.OriginalText
			if utf8.RuneCountInString(text) > 200 {
				runes := []rune(text)
				text = string(runes[:200]) + "..."
			}
			summaries[i] = recordSummary{
				ID:        rec.ID,
				Timestamp: rec.Timestamp.Format(time.RFC3339),
				InputType: rec.InputType,
				Text:      text,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal records: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
