// Package llm defines the uniform LLM client surface used by reflection,
// the sleep pipeline, the proactive task, and retrieval's embedding
// path: chat_stream, complete, and embed. Concrete providers live in
// internal/llm/local (Ollama, local-first default) and internal/llm/cloud
// (an OpenAI-compatible provider over OpenRouter).
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrNoProvider is returned when a client is asked to operate with no
// provider configured for the requested role.
var ErrNoProvider = errors.New("llm: no provider configured")

// Message is one entry of a chat-style conversation.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Chunk is one streamed token (or the terminal chunk) of a chat_stream
// response.
type Chunk struct {
	Token string
	Done  bool
	Err   error
}

// Options controls a single completion or embedding call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client is the uniform surface every provider implements.
type Client interface {
	// Name identifies the provider ("ollama", "openrouter", ...).
	Name() string

	// ChatStream streams tokens for a chat completion.
	ChatStream(ctx context.Context, messages []Message, opts Options) (<-chan Chunk, error)

	// Complete is a non-streaming convenience wrapper that drains
	// ChatStream and concatenates its tokens.
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)

	// Embed returns a dense embedding for text, or (nil, nil) if the
	// provider offers no embedding endpoint.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FallbackDirective is the per-turn user-message prefix that forces
// cloud provider selection for that single turn.
const FallbackDirective = "/fallback"

// StripFallbackDirective reports whether message begins with the
// /fallback directive and returns the message with it removed. The
// directive must stand alone as a full word; "/fallbacking" does not
// match it.
func StripFallbackDirective(message string) (stripped string, forced bool) {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, FallbackDirective) {
		return message, false
	}
	rest := trimmed[len(FallbackDirective):]
	if rest != "" && !strings.HasPrefix(rest, " ") && !strings.HasPrefix(rest, "\t") {
		return message, false
	}
	return strings.TrimSpace(rest), true
}

// Router selects between a local-first client and a cloud client,
// honoring the per-turn /fallback override. Model identifiers are never
// forwarded across providers: each provider applies its own default
// when Options.Model is empty.
type Router struct {
	Local Client
	Cloud Client
}

// ForTurn resolves which client to use for one turn's message, after
// stripping any /fallback directive. If forced is true the caller
// should use the returned message (directive removed).
func (r Router) ForTurn(message string) (client Client, text string) {
	stripped, forced := StripFallbackDirective(message)
	if forced && r.Cloud != nil {
		return r.Cloud, stripped
	}
	if r.Local != nil {
		return r.Local, stripped
	}
	return r.Cloud, stripped
}

// Default returns the router's ordinary (non-forced) client: local if
// configured, else cloud.
func (r Router) Default() Client {
	if r.Local != nil {
		return r.Local
	}
	return r.Cloud
}
