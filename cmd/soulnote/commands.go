package main

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuanwm/soulnote/internal/config"
	"github.com/yuanwm/soulnote/internal/record"
	"github.com/yuanwm/soulnote/internal/storage"
)

// --- capture ---

var captureCmd = &cobra.Command{
	Use:   "capture [text]",
	Short: "Capture a note and extract moods, inspirations and todos",
	Long: `Capture a note and extract moods, inspirations and todos.

Examples:
  soulnote capture "今天工作很累，但看到晚霞很美。明天要整理项目文档。"
  soulnote capture --audio ./memo.mp3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		audioPath, _ := cmd.Flags().GetString("audio")
		text := strings.Join(args, " ")

		if text == "" && audioPath == "" {
			return fmt.Errorf("provide note text or --audio")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var resp *http.Response
		if audioPath != "" {
			resp, err = postAudio(cmd, client, audioPath)
		} else {
			resp, err = client.postForm(cmd.Context(), "/api/process", url.Values{"text": {text}})
		}
		if err != nil {
			return err
		}

		var result struct {
			RecordID     string               `json:"record_id"`
			OriginalText string               `json:"original_text"`
			Mood         *record.Mood         `json:"mood"`
			Inspirations []record.Inspiration `json:"inspirations"`
			Todos        []record.Todo        `json:"todos"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Captured record %s", result.RecordID)
		if audioPath != "" {
			printStatus("Heard", "%s", result.OriginalText)
		}
		if result.Mood != nil {
			printStatus("Mood", "%s (%d/10)", result.Mood.Type, result.Mood.Intensity)
		}
		for _, insp := range result.Inspirations {
			printStatus("Inspiration", "%s [%s]", insp.CoreIdea, insp.Category)
		}
		for _, todo := range result.Todos {
			label := todo.Task
			if todo.Time != "" {
				label += " (" + todo.Time + ")"
			}
			printStatus("Todo", "%s", label)
		}
		return nil
	},
}

func postAudio(cmd *cobra.Command, client *apiClient, path string) (*http.Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	return client.do(cmd.Context(), http.MethodPost, "/api/process", &buf, mw.FormDataContentType())
}

func init() {
	captureCmd.Flags().String("audio", "", "path to an audio file (mp3, wav or m4a)")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Chat with the companion, grounded in your recent records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		message := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postForm(cmd.Context(), "/api/chat", url.Values{"text": {message}})
		if err != nil {
			return err
		}

		var result struct {
			Response string `json:"response"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Response)
		return nil
	},
}

// --- todos ---

var todosCmd = &cobra.Command{
	Use:   "todos",
	Short: "Manage captured todo items",
}

var todosListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured todo items",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/todos")
		if err != nil {
			return err
		}

		var todos []storage.TodoEntry
		if err := decodeJSON(resp, &todos); err != nil {
			return err
		}

		shown := 0
		for _, todo := range todos {
			if !all && todo.Status == record.StatusCompleted {
				continue
			}
			shown++
			mark := "[ ]"
			if todo.Status == record.StatusCompleted {
				mark = "[x]"
			}
			line := fmt.Sprintf("%s %s  %s", mark, colorize(colorCyan, todo.ID[:8]), todo.Task)
			if todo.Time != "" {
				line += "  (" + todo.Time + ")"
			}
			fmt.Println(line)
		}
		if shown == 0 {
			fmt.Println("No todos found.")
		}
		return nil
	},
}

var todosDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a todo item as completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		id, err := resolveTodoID(cmd, client, args[0])
		if err != nil {
			return err
		}

		resp, err := client.patchJSON(cmd.Context(), "/api/todos/"+id+"/status",
			map[string]string{"status": record.StatusCompleted})
		if err != nil {
			return err
		}

		var result struct {
			Success bool `json:"success"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Todo %s completed", id)
		return nil
	},
}

// resolveTodoID accepts a full entry id or an unambiguous prefix.
func resolveTodoID(cmd *cobra.Command, client *apiClient, idOrPrefix string) (string, error) {
	resp, err := client.get(cmd.Context(), "/api/todos")
	if err != nil {
		return "", err
	}

	var todos []storage.TodoEntry
	if err := decodeJSON(resp, &todos); err != nil {
		return "", err
	}

	var matches []string
	for _, todo := range todos {
		if todo.ID == idOrPrefix {
			return todo.ID, nil
		}
		if strings.HasPrefix(todo.ID, idOrPrefix) {
			matches = append(matches, todo.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no todo matches %q", idOrPrefix)
	default:
		return "", fmt.Errorf("%q matches %d todos, be more specific", idOrPrefix, len(matches))
	}
}

func init() {
	todosListCmd.Flags().Bool("all", false, "include completed todos")
	todosCmd.AddCommand(todosListCmd)
	todosCmd.AddCommand(todosDoneCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show soulnote system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			printError("config error: %v", err)
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/health")
		if err != nil {
			printStatus("Server", "stopped")
			printStatus("Data dir", "%s", cfg.Storage.DataDir)
			return nil
		}

		var health struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(resp, &health); err != nil {
			printStatus("Server", "error: %v", err)
			return nil
		}
		printStatus("Server", "%s on port %d", health.Status, cfg.Server.Port)
		printStatus("Chat model", "%s", cfg.Zhipu.Model)
		printStatus("ASR model", "%s", cfg.Zhipu.ASRModel)
		printStatus("Data dir", "%s", cfg.Storage.DataDir)

		for _, col := range []struct {
			label string
			path  string
		}{
			{"Records", "/api/records"},
			{"Moods", "/api/moods"},
			{"Inspirations", "/api/inspirations"},
			{"Todos", "/api/todos"},
		} {
			listResp, err := client.get(cmd.Context(), col.path)
			if err != nil {
				continue
			}
			var entries []any
			if decodeJSON(listResp, &entries) == nil {
				printStatus(col.label, "%d", len(entries))
			}
		}
		return nil
	},
}
