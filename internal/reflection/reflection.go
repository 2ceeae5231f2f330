// Package reflection implements per-turn inline reflection (C6): a
// non-streaming, schema-constrained LLM call that extracts a small,
// bounded set of beliefs and free-form reflections from the just
// completed user/assistant exchange.
package reflection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aigent-dev/aigent/internal/llm"
	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

// Bounds from the spec: at most 3 beliefs and 2 reflections per turn.
const (
	MaxBeliefs     = 3
	MaxReflections = 2
)

// Broadcaster publishes daemon events; satisfied by the daemon server.
type Broadcaster interface {
	Broadcast(models.Event)
}

// Reflector runs inline reflection over completed turns.
type Reflector struct {
	client      llm.Client
	manager     *memory.Manager
	broadcaster Broadcaster
	logger      *slog.Logger
}

// New creates a Reflector. broadcaster may be nil (events are simply
// not published, e.g. in tests).
func New(client llm.Client, manager *memory.Manager, broadcaster Broadcaster, logger *slog.Logger) *Reflector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reflector{client: client, manager: manager, broadcaster: broadcaster, logger: logger}
}

type extractedBelief struct {
	Claim      string  `json:"claim"`
	Confidence float64 `json:"confidence"`
}

type extraction struct {
	Beliefs     []extractedBelief `json:"beliefs"`
	Reflections []string          `json:"reflections"`
}

const systemPrompt = `You extract durable memory from one conversation turn.
Respond with ONLY a JSON object of the form:
{"beliefs": [{"claim": "...", "confidence": 0.0}], "reflections": ["..."]}
Return at most 3 beliefs and 2 reflections. Omit anything not clearly
supported by the turn. Never include commentary outside the JSON object.`

// Reflect runs one reflection pass over the original (not
// tool-augmented) user/assistant exchange, persisting up to 3 beliefs
// as Core entries and up to 2 reflections as Reflective entries, and
// broadcasting a BeliefAdded/ReflectionInsight event for each.
//
// Reflect never returns an error to abort a turn: LLM failures here are
// logged and swallowed, since reflection is a fire-and-forget
// side-effect of a turn, not part of its response path.
func (r *Reflector) Reflect(ctx context.Context, userText, assistantText string) {
	if r.client == nil || r.manager == nil {
		return
	}

	prompt := fmt.Sprintf("User: %s\nAssistant: %s", userText, assistantText)
	raw, err := r.client.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, llm.Options{})
	if err != nil {
		r.logger.Warn("inline reflection LLM call failed", "error", err)
		return
	}

	var ex extraction
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &ex); err != nil {
		r.logger.Warn("inline reflection returned unparseable output", "error", err)
		return
	}

	r.persistBeliefs(ex.Beliefs)
	r.persistReflections(ex.Reflections)
}

func (r *Reflector) persistBeliefs(beliefs []extractedBelief) {
	if len(beliefs) > MaxBeliefs {
		beliefs = beliefs[:MaxBeliefs]
	}
	for _, b := range beliefs {
		claim := strings.TrimSpace(b.Claim)
		if claim == "" {
			continue
		}
		entry, err := r.manager.Record(&models.MemoryEntry{
			Tier:       models.TierCore,
			Content:    claim,
			Source:     "belief",
			Confidence: b.Confidence,
			Tags:       []string{"belief"},
		})
		if err != nil {
			r.logger.Warn("failed to persist reflected belief", "error", err)
			continue
		}
		r.broadcast(models.EvtBeliefAdded, entry)
	}
}

func (r *Reflector) persistReflections(reflections []string) {
	if len(reflections) > MaxReflections {
		reflections = reflections[:MaxReflections]
	}
	for _, text := range reflections {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		entry, err := r.manager.Record(&models.MemoryEntry{
			Tier:       models.TierReflective,
			Content:    text,
			Source:     "reflection",
			Confidence: 0.6,
		})
		if err != nil {
			r.logger.Warn("failed to persist reflection insight", "error", err)
			continue
		}
		r.broadcast(models.EvtReflectionInsight, entry)
	}
}

func (r *Reflector) broadcast(kind models.EventKind, entry *models.MemoryEntry) {
	if r.broadcaster == nil {
		return
	}
	body, err := json.Marshal(entry)
	if err != nil {
		r.logger.Warn("failed to marshal reflection event body", "error", err)
		return
	}
	r.broadcaster.Broadcast(models.Event{Kind: kind, Body: body, At: time.Now().UTC()})
}
