package sleep

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/aigent-dev/aigent/internal/llm"
	"github.com/aigent-dev/aigent/pkg/models"
)

// partialFailLLM fails Complete only for calls whose system prompt
// contains failSubstr, so exactly one of the four specialists in a
// batch can be made to fail while the other three succeed.
type partialFailLLM struct {
	failSubstr string
}

func (f *partialFailLLM) Name() string { return "partial" }
func (f *partialFailLLM) ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.Chunk, error) {
	return nil, nil
}
func (f *partialFailLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	for _, msg := range messages {
		if strings.Contains(msg.Content, f.failSubstr) {
			return "", fmt.Errorf("specialist unavailable")
		}
	}
	return "[]", nil
}
func (f *partialFailLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }

func TestRunMultiAgentAppliesAcrossBatches(t *testing.T) {
	m := newTestManager(t)
	m.Record(&models.MemoryEntry{Tier: models.TierCore, Content: "identity fact", Source: "belief"})
	for i := 0; i < 5; i++ {
		m.Record(&models.MemoryEntry{Tier: models.TierEpisodic, Content: "episode"})
	}

	client := &fakeLLM{response: `[]`}
	p := New(m, client, nil, nil, Config{MultiAgentBatchSize: 3})

	result, err := p.RunMultiAgent(context.Background())
	if err != nil {
		t.Fatalf("RunMultiAgent() error = %v", err)
	}
	if result.BatchesRun != 2 {
		t.Fatalf("BatchesRun = %d, want 2 (5 entries / batch size 3)", result.BatchesRun)
	}
	if result.TotalFallback {
		t.Error("TotalFallback = true, want false (specialists returned empty, not failed)")
	}
}

func TestRunMultiAgentFallsBackOnSingleSpecialistFailure(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 3; i++ {
		m.Record(&models.MemoryEntry{Tier: models.TierEpisodic, Content: "episode"})
	}

	// Only the "relationships" specialist's prompt contains this phrase,
	// so three of the four specialists in the batch succeed and one fails.
	client := &partialFailLLM{failSubstr: "relationship facts"}
	p := New(m, client, nil, nil, Config{MultiAgentBatchSize: 10})

	result, err := p.RunMultiAgent(context.Background())
	if err != nil {
		t.Fatalf("RunMultiAgent() error = %v", err)
	}
	if result.BatchesRun != 1 {
		t.Fatalf("BatchesRun = %d, want 1", result.BatchesRun)
	}
	if result.FallbackBatches != 1 {
		t.Errorf("FallbackBatches = %d, want 1 (one failing specialist should fall the whole batch back, not just reduce the synthesis)", result.FallbackBatches)
	}
	if !result.TotalFallback {
		t.Error("TotalFallback = false, want true: the batch's only specialists run fell back")
	}
}

func TestRunMultiAgentNoopWithoutClient(t *testing.T) {
	m := newTestManager(t)
	m.Record(&models.MemoryEntry{Tier: models.TierEpisodic, Content: "x"})
	p := New(m, nil, nil, nil, Config{})
	result, err := p.RunMultiAgent(context.Background())
	if err != nil {
		t.Fatalf("RunMultiAgent() error = %v", err)
	}
	if result.BatchesRun != 0 {
		t.Errorf("BatchesRun = %d, want 0 without a client", result.BatchesRun)
	}
}

func TestPartitionBatchesReplicatesPinnedTiers(t *testing.T) {
	m := newTestManager(t)
	m.Record(&models.MemoryEntry{Tier: models.TierCore, Content: "core fact", Source: "belief"})
	m.Record(&models.MemoryEntry{Tier: models.TierUserProfile, Content: "profile fact"})
	for i := 0; i < 4; i++ {
		m.Record(&models.MemoryEntry{Tier: models.TierEpisodic, Content: "episode"})
	}

	p := New(m, &fakeLLM{}, nil, nil, Config{MultiAgentBatchSize: 2})
	batches := p.partitionBatches()
	if len(batches) != 2 {
		t.Fatalf("len(batches) = %d, want 2", len(batches))
	}
	for _, batch := range batches {
		var core, profile int
		for _, e := range batch {
			switch e.Tier {
			case models.TierCore:
				core++
			case models.TierUserProfile:
				profile++
			}
		}
		if core != 1 || profile != 1 {
			t.Errorf("batch pinned counts core=%d profile=%d, want 1/1 in every batch", core, profile)
		}
	}
}
