// Package sleep implements the three consolidation modes the daemon
// runs over memory: a no-LLM passive heuristic pass, a single-agent
// agentic pass, and a nightly multi-agent batched pass with
// deliberation. All three only ever append tombstone/rewrite entries
// to the log; nothing is ever edited or deleted in place.
package sleep

import (
	"log/slog"
	"time"

	"github.com/aigent-dev/aigent/internal/llm"
	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

// Broadcaster publishes daemon events; satisfied by the daemon server.
type Broadcaster interface {
	Broadcast(models.Event)
}

// Config controls thresholds shared across sleep modes.
type Config struct {
	// ForgetEpisodicAfterDays enables the passive forgetting pass when
	// positive; 0 disables it.
	ForgetEpisodicAfterDays int
	// ForgetMinConfidence is the confidence ceiling below which an
	// old Episodic entry is eligible for forgetting. Default 0.30.
	ForgetMinConfidence float64
	// MultiAgentBatchSize is the candidate-entry batch size for the
	// multi-agent pipeline. Default 60.
	MultiAgentBatchSize int
	// IdentitySummary is a short prose rendering of the identity
	// kernel, injected into agentic prompts so sleep decisions stay
	// grounded in who the agent is. May be empty.
	IdentitySummary string
}

func (c Config) withDefaults() Config {
	if c.ForgetMinConfidence == 0 {
		c.ForgetMinConfidence = 0.30
	}
	if c.MultiAgentBatchSize == 0 {
		c.MultiAgentBatchSize = 60
	}
	return c
}

// Pipeline owns the memory manager and (optional) LLM client that the
// agentic and multi-agent modes need; the passive mode needs neither
// the client.
type Pipeline struct {
	manager     *memory.Manager
	client      llm.Client
	broadcaster Broadcaster
	logger      *slog.Logger
	cfg         Config
}

// New creates a Pipeline. client may be nil: RunPassive needs none,
// RunSingleAgent then uses its heuristic fallback, and RunMultiAgent
// does nothing. broadcaster may be nil.
func New(manager *memory.Manager, client llm.Client, broadcaster Broadcaster, logger *slog.Logger, cfg Config) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		manager:     manager,
		client:      client,
		broadcaster: broadcaster,
		logger:      logger,
		cfg:         cfg.withDefaults(),
	}
}

func (p *Pipeline) notify(entry *models.MemoryEntry) {
	if p.broadcaster == nil || entry == nil {
		return
	}
	p.broadcaster.Broadcast(models.Event{Kind: models.EvtMemoryUpdated, At: time.Now().UTC()})
}

func ageDays(t time.Time, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
