package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/aigent-dev/aigent/internal/llm"
)

// AnthropicConfig configures the alternate Anthropic cloud client.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// AnthropicClient implements llm.Client directly against the Anthropic
// Messages API, for deployments that prefer a direct Claude backend
// over OpenRouter's pass-through.
type AnthropicClient struct {
	client       anthropic.Client
	defaultModel string
}

var _ llm.Client = (*AnthropicClient)(nil)

// NewAnthropic creates an Anthropic-backed cloud client.
func NewAnthropic(cfg AnthropicConfig) (*AnthropicClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("cloud: Anthropic API key is required")
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "claude-sonnet-4-20250514"
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(opts...),
		defaultModel: defaultModel,
	}, nil
}

// Name returns "anthropic".
func (c *AnthropicClient) Name() string { return "anthropic" }

// ChatStream streams text deltas from Anthropic's Messages API. Tool use
// and thinking blocks are not surfaced here: C9 tool dispatch is a
// direct call, not a model-issued function call, so only plain text
// completion is needed.
func (c *AnthropicClient) ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.Chunk, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var system string
	var msgs []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case "assistant":
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  msgs,
		MaxTokens: int64(maxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	out := make(chan llm.Chunk)
	go streamAnthropic(stream, out)
	return out, nil
}

func streamAnthropic(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan llm.Chunk) {
	defer close(out)
	for stream.Next() {
		event := stream.Current()
		if event.Type != "content_block_delta" {
			continue
		}
		delta := event.AsContentBlockDelta().Delta
		if delta.Type == "text_delta" && delta.Text != "" {
			out <- llm.Chunk{Token: delta.Text}
		}
	}
	if err := stream.Err(); err != nil {
		out <- llm.Chunk{Err: fmt.Errorf("anthropic: stream: %w", err), Done: true}
		return
	}
	out <- llm.Chunk{Done: true}
}

// Complete drains ChatStream and concatenates its tokens.
func (c *AnthropicClient) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
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

// Embed is unsupported: Anthropic's API offers no embeddings endpoint.
func (c *AnthropicClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, nil
}
