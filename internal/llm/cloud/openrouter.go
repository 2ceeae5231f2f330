// Package cloud implements the cloud-fallback LLM provider: an
// OpenAI-compatible client pointed at OpenRouter, which fronts many
// upstream model families behind a single API.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aigent-dev/aigent/internal/llm"
)

// Config configures the OpenRouter client.
type Config struct {
	APIKey         string
	DefaultModel   string
	EmbeddingModel string
	AppName        string
	SiteURL        string
}

// Client implements llm.Client against OpenRouter's OpenAI-compatible API.
type Client struct {
	client         *openai.Client
	defaultModel   string
	embeddingModel string
}

var _ llm.Client = (*Client)(nil)

const openrouterBaseURL = "https://openrouter.ai/api/v1"

// New creates an OpenRouter-backed client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("cloud: OpenRouter API key is required")
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "openai/gpt-4o"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = openrouterBaseURL

	return &Client{
		client:         openai.NewClientWithConfig(clientCfg),
		defaultModel:   defaultModel,
		embeddingModel: cfg.EmbeddingModel,
	}, nil
}

// Name returns "openrouter".
func (c *Client) Name() string { return "openrouter" }

func toOpenAIMessages(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// ChatStream streams tokens from OpenRouter's chat completion endpoint.
func (c *Client) ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.Chunk, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create stream: %w", err)
	}

	out := make(chan llm.Chunk)
	go streamOpenAI(stream, out)
	return out, nil
}

func streamOpenAI(stream *openai.ChatCompletionStream, out chan llm.Chunk) {
	defer close(out)
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			out <- llm.Chunk{Done: true}
			return
		}
		if err != nil {
			out <- llm.Chunk{Err: fmt.Errorf("openrouter: stream recv: %w", err), Done: true}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta != "" {
			out <- llm.Chunk{Token: delta}
		}
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

// Embed calls OpenRouter's embeddings endpoint. Returns (nil, nil) if no
// embedding model is configured for this client.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embeddingModel == "" {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter: create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	return resp.Data[0].Embedding, nil
}
