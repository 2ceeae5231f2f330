package sleep

import (
	"testing"
	"time"

	"github.com/aigent-dev/aigent/pkg/models"
)

func TestRunPassivePromotesOnRepetition(t *testing.T) {
	m := newTestManager(t)
	now := time.Now().UTC()
	recordAt(t, m, &models.MemoryEntry{Tier: models.TierEpisodic, Content: "user likes tea", Confidence: 0.5}, now)
	recordAt(t, m, &models.MemoryEntry{Tier: models.TierEpisodic, Content: "user likes tea", Confidence: 0.5}, now)

	p := New(m, nil, nil, nil, Config{})
	result, err := p.RunPassive()
	if err != nil {
		t.Fatalf("RunPassive() error = %v", err)
	}
	if result.Promoted != 2 {
		t.Fatalf("Promoted = %d, want 2 (both repeated entries promote)", result.Promoted)
	}
	semantic := m.ActiveByTier(models.TierSemantic)
	if len(semantic) != 2 {
		t.Fatalf("ActiveByTier(semantic) len = %d, want 2", len(semantic))
	}
	// Originals remain active; promotion never deletes the episodic source.
	if got := len(m.ActiveByTier(models.TierEpisodic)); got != 2 {
		t.Errorf("ActiveByTier(episodic) len = %d, want 2 (originals preserved)", got)
	}
}

func TestRunPassivePromotesOnSalienceAndAge(t *testing.T) {
	m := newTestManager(t)
	now := time.Now().UTC()
	recordAt(t, m, &models.MemoryEntry{Tier: models.TierEpisodic, Content: "scary event", Confidence: 0.5, Valence: -0.9}, now)
	recordAt(t, m, &models.MemoryEntry{Tier: models.TierEpisodic, Content: "old fact", Confidence: 0.5}, now.Add(-40*24*time.Hour))
	recordAt(t, m, &models.MemoryEntry{Tier: models.TierEpisodic, Content: "unremarkable", Confidence: 0.5}, now)

	p := New(m, nil, nil, nil, Config{})
	result, err := p.RunPassive()
	if err != nil {
		t.Fatalf("RunPassive() error = %v", err)
	}
	if result.Promoted != 2 {
		t.Fatalf("Promoted = %d, want 2 (salient + aged entries only)", result.Promoted)
	}
}

func TestRunPassivePrunesStaleSemantic(t *testing.T) {
	m := newTestManager(t)
	now := time.Now().UTC()
	stale := recordAt(t, m, &models.MemoryEntry{Tier: models.TierSemantic, Content: "stale fact", Confidence: 0.3}, now.Add(-100*24*time.Hour))
	recordAt(t, m, &models.MemoryEntry{Tier: models.TierSemantic, Content: "fresh fact", Confidence: 0.3}, now)

	p := New(m, nil, nil, nil, Config{})
	result, err := p.RunPassive()
	if err != nil {
		t.Fatalf("RunPassive() error = %v", err)
	}
	if result.Pruned != 1 {
		t.Fatalf("Pruned = %d, want 1", result.Pruned)
	}
	active := m.ActiveByTier(models.TierSemantic)
	for _, e := range active {
		if e.ID == stale.ID {
			t.Errorf("pruned entry %s still active", stale.ID)
		}
	}
}

func TestRunPassiveForgetsOldLowConfidenceEpisodic(t *testing.T) {
	m := newTestManager(t)
	now := time.Now().UTC()
	forgettable := recordAt(t, m, &models.MemoryEntry{Tier: models.TierEpisodic, Content: "trivial old note", Confidence: 0.1}, now.Add(-10*24*time.Hour))

	p := New(m, nil, nil, nil, Config{ForgetEpisodicAfterDays: 5, ForgetMinConfidence: 0.3})
	result, err := p.RunPassive()
	if err != nil {
		t.Fatalf("RunPassive() error = %v", err)
	}
	if result.Forgotten != 1 {
		t.Fatalf("Forgotten = %d, want 1", result.Forgotten)
	}
	active := m.ActiveByTier(models.TierEpisodic)
	for _, e := range active {
		if e.ID == forgettable.ID {
			t.Errorf("forgotten entry %s still active", forgettable.ID)
		}
	}
}

func TestRunPassiveNoopWithoutLLM(t *testing.T) {
	m := newTestManager(t)
	p := New(m, nil, nil, nil, Config{})
	if _, err := p.RunPassive(); err != nil {
		t.Fatalf("RunPassive() error = %v, want nil (passive mode needs no LLM)", err)
	}
}
