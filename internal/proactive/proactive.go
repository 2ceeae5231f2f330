// Package proactive implements the proactive task (C11): a
// periodically firing pass that asks the LLM whether it has anything
// genuinely worth sharing unprompted, subject to a do-not-disturb
// window, a firing interval, and a cooldown between actual messages.
package proactive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aigent-dev/aigent/internal/llm"
	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

// Broadcaster publishes daemon events; satisfied by the daemon server.
type Broadcaster interface {
	Broadcast(models.Event)
}

// IdentityBlock supplies the pinned identity + Core prompt prefix.
type IdentityBlock interface {
	Block() string
}

// Result is the outcome of one firing, reported to GetProactiveStats.
type Result struct {
	Fired        bool      `json:"fired"`
	MessageSent  bool      `json:"message_sent"`
	Message      string    `json:"message,omitempty"`
	Urgency      string    `json:"urgency,omitempty"`
	SkippedWhy   string    `json:"skipped_why,omitempty"`
	At           time.Time `json:"at"`
}

// Stats is the cumulative state returned by GetProactiveStats.
type Stats struct {
	TotalFirings   int       `json:"total_firings"`
	MessagesSent   int       `json:"messages_sent"`
	LastFiredAt    time.Time `json:"last_fired_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
}

// Config controls cooldown behavior; the interval and DND window are
// owned by the scheduler, which decides *when* to call Fire at all.
type Config struct {
	Cooldown time.Duration // minimum gap between two actual messages
}

// Task runs one proactive firing at a time via Fire.
type Task struct {
	client      llm.Client
	manager     *memory.Manager
	identity    IdentityBlock
	broadcaster Broadcaster
	logger      *slog.Logger
	cfg         Config

	mu    sync.Mutex
	stats Stats
}

// New creates a Task. broadcaster may be nil (events are dropped).
func New(client llm.Client, manager *memory.Manager, identity IdentityBlock, broadcaster Broadcaster, logger *slog.Logger, cfg Config) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{client: client, manager: manager, identity: identity, broadcaster: broadcaster, logger: logger.With("component", "proactive"), cfg: cfg}
}

type llmDecision struct {
	Action  string `json:"action"`
	Message string `json:"message"`
	Urgency string `json:"urgency"`
}

// Fire runs one firing: asks the LLM whether anything is worth sharing,
// and if so and the cooldown permits, broadcasts ProactiveMessage and
// records an Episodic entry with source="proactive". TriggerProactive
// calls Fire directly and so skips the scheduler's DND/interval gates;
// the cooldown check here applies to every call.
func (t *Task) Fire(ctx context.Context) (Result, error) {
	now := time.Now()
	t.mu.Lock()
	t.stats.TotalFirings++
	t.stats.LastFiredAt = now
	t.mu.Unlock()

	prompt := t.buildPrompt()
	raw, err := t.client.Complete(ctx, []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: "Do you have something genuinely worth sharing right now? Respond with the JSON object described above."},
	}, llm.Options{})
	if err != nil {
		return Result{Fired: true, At: now}, fmt.Errorf("proactive completion: %w", err)
	}

	decision, err := parseDecision(raw)
	if err != nil {
		t.logger.Warn("failed to parse proactive decision", "error", err)
		return Result{Fired: true, At: now, SkippedWhy: "unparseable response"}, nil
	}

	if decision.Action != "share" || strings.TrimSpace(decision.Message) == "" {
		return Result{Fired: true, At: now, SkippedWhy: "nothing worth sharing"}, nil
	}

	t.mu.Lock()
	sinceLast := now.Sub(t.stats.LastMessageAt)
	cooldownActive := !t.stats.LastMessageAt.IsZero() && t.cfg.Cooldown > 0 && sinceLast < t.cfg.Cooldown
	t.mu.Unlock()
	if cooldownActive {
		return Result{Fired: true, At: now, SkippedWhy: "cooldown active"}, nil
	}

	if _, err := t.manager.Record(&models.MemoryEntry{
		Tier:    models.TierEpisodic,
		Content: decision.Message,
		Source:  "proactive",
	}); err != nil {
		t.logger.Warn("failed to persist proactive message", "error", err)
	}

	if t.broadcaster != nil {
		body, _ := json.Marshal(decision)
		t.broadcaster.Broadcast(models.Event{Kind: models.EvtProactiveMessage, Body: body, At: now})
	}

	t.mu.Lock()
	t.stats.MessagesSent++
	t.stats.LastMessageAt = now
	t.mu.Unlock()

	return Result{Fired: true, MessageSent: true, Message: decision.Message, Urgency: decision.Urgency, At: now}, nil
}

// Stats returns a snapshot of cumulative firing/message counts.
func (t *Task) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Task) buildPrompt() string {
	var identityBlock string
	if t.identity != nil {
		identityBlock = t.identity.Block()
	}
	return identityBlock + "\n" + proactiveSystemPrompt
}

const proactiveSystemPrompt = `You may send one unprompted message to the user if, and only if,
you have something genuinely worth sharing right now (not filler, not a check-in
for its own sake). Respond with ONLY a JSON object:
{"action": "share"|"skip", "message": "...", "urgency": "low"|"normal"|"high"}`

func parseDecision(raw string) (llmDecision, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start == -1 || end == -1 || end < start {
		return llmDecision{}, fmt.Errorf("no JSON object found in response")
	}
	var d llmDecision
	if err := json.Unmarshal([]byte(raw[start:end+1]), &d); err != nil {
		return llmDecision{}, fmt.Errorf("unmarshal proactive decision: %w", err)
	}
	return d, nil
}
