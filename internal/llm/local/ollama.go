// Package local implements the local-first LLM provider: Ollama's
// NDJSON streaming chat API plus its embeddings endpoint.
package local

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aigent-dev/aigent/internal/llm"
)

// Config configures the Ollama client.
type Config struct {
	BaseURL        string
	DefaultModel   string
	EmbeddingModel string
	Timeout        time.Duration
}

// Client implements llm.Client against a local Ollama daemon.
type Client struct {
	http           *http.Client
	baseURL        string
	defaultModel   string
	embeddingModel string
}

var _ llm.Client = (*Client)(nil)

// New creates an Ollama-backed client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		http:           &http.Client{Timeout: timeout},
		baseURL:        baseURL,
		defaultModel:   strings.TrimSpace(cfg.DefaultModel),
		embeddingModel: strings.TrimSpace(cfg.EmbeddingModel),
	}
}

// Name returns "ollama".
func (c *Client) Name() string { return "ollama" }

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message *ollamaChatMessage `json:"message"`
	Done    bool               `json:"done"`
	Error   string             `json:"error"`
}

// ChatStream streams tokens from Ollama's /api/chat endpoint.
func (c *Client) ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.Chunk, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = c.defaultModel
	}
	if model == "" {
		return nil, fmt.Errorf("ollama: %w: no model configured", llm.ErrNoProvider)
	}

	payload := ollamaChatRequest{Model: model, Stream: true}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, ollamaChatMessage{Role: m.Role, Content: m.Content})
	}
	if opts.MaxTokens > 0 {
		payload.Options = map[string]any{"num_predict": opts.MaxTokens}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: request failed: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("ollama: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	out := make(chan llm.Chunk)
	go streamOllama(resp.Body, out)
	return out, nil
}

func streamOllama(body io.ReadCloser, out chan llm.Chunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var resp ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			out <- llm.Chunk{Err: fmt.Errorf("ollama: decode response: %w", err), Done: true}
			return
		}
		if resp.Error != "" {
			out <- llm.Chunk{Err: fmt.Errorf("ollama: %s", resp.Error), Done: true}
			return
		}
		if resp.Message != nil && resp.Message.Content != "" {
			out <- llm.Chunk{Token: resp.Message.Content}
		}
		if resp.Done {
			out <- llm.Chunk{Done: true}
			return
		}
	}
	if err := scanner.Err(); err != nil {
		out <- llm.Chunk{Err: fmt.Errorf("ollama: scan response: %w", err), Done: true}
	}
}

// Complete drains ChatStream and concatenates its tokens.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	chunks, err := c.ChatStream(ctx, messages, opts)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		b.WriteString(chunk.Token)
	}
	return b.String(), nil
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed calls Ollama's /api/embed endpoint. Returns (nil, nil) if no
// embedding model is configured.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embeddingModel == "" {
		return nil, nil
	}
	payload := ollamaEmbedRequest{Model: c.embeddingModel, Input: text}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: embed request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("ollama: embed status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ollama: decode embed response: %w", err)
	}
	if len(parsed.Embeddings) == 0 {
		return nil, nil
	}
	return parsed.Embeddings[0], nil
}
