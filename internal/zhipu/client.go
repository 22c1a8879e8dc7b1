// Package zhipu is a minimal HTTP client for the Zhipu AI platform: chat
// completions (GLM) and audio transcription (GLM-ASR). Error values carry
// the HTTP status but never the response body, so provider error text and
// credentials cannot leak into logs or API responses.
package zhipu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 30 * time.Second

// Message represents a chat message in the Zhipu API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single chat completion call.
type Options struct {
	Temperature float64
	TopP        float64
}

// Client communicates with the Zhipu AI HTTP API.
type Client struct {
	chatURL    string
	asrURL     string
	apiKey     string
	chatModel  string
	asrModel   string
	httpClient *http.Client
}

// Config holds the endpoints and credentials for a Client.
type Config struct {
	ChatURL  string
	ASRURL   string
	APIKey   string
	Model    string
	ASRModel string
}

// New creates a Client for the given endpoints and API key.
func New(cfg Config) *Client {
	return &Client{
		chatURL:   strings.TrimRight(cfg.ChatURL, "/"),
		asrURL:    strings.TrimRight(cfg.ASRURL, "/"),
		apiKey:    cfg.APIKey,
		chatModel: cfg.Model,
		asrModel:  cfg.ASRModel,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// chatRequest is the JSON body for the chat completions endpoint.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

// chatResponse mirrors the OpenAI-style completion envelope Zhipu returns.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ChatCompletion sends messages to the chat model and returns the
// assistant's response content.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts Options) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: unexpected status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat: response has no choices")
	}

	return result.Choices[0].Message.Content, nil
}

// asrResponse is the JSON returned by the transcription endpoint.
type asrResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads audio bytes and returns the transcribed text. An empty
// result is not an error: the provider may fail to recognize any speech.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio payload: %w", err)
	}
	if err := mw.WriteField("model", c.asrModel); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	if err := mw.WriteField("stream", "false"); err != nil {
		return "", fmt.Errorf("writing stream field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.asrURL, &buf)
	if err != nil {
		return "", fmt.Errorf("creating transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription: unexpected status %d", resp.StatusCode)
	}

	var result asrResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription response: %w", err)
	}

	return result.Text, nil
}
