package memory

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aigent-dev/aigent/pkg/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "events.jsonl"), Config{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return m
}

// TestBeliefLifecycle exercises record_belief -> all_beliefs ->
// retract_belief -> all_beliefs, and checks that the original entry
// survives retraction unmodified on disk.
func TestBeliefLifecycle(t *testing.T) {
	m := newTestManager(t)

	b1, err := m.RecordBelief("user prefers dark mode", 0.85)
	if err != nil {
		t.Fatalf("RecordBelief() error = %v", err)
	}

	beliefs := m.AllBeliefs()
	if len(beliefs) != 1 || beliefs[0].ID != b1.ID {
		t.Fatalf("AllBeliefs() before retraction = %+v, want [%s]", beliefs, b1.ID)
	}

	if _, err := m.RetractBelief(b1.ID); err != nil {
		t.Fatalf("RetractBelief() error = %v", err)
	}

	beliefs = m.AllBeliefs()
	for _, b := range beliefs {
		if b.ID == b1.ID {
			t.Errorf("AllBeliefs() after retraction still contains %s", b1.ID)
		}
	}

	original, ok := m.Find(b1.ID)
	if !ok {
		t.Fatalf("Find(%s) ok = false, want true (original must survive retraction)", b1.ID)
	}
	if original.Content != "user prefers dark mode" {
		t.Errorf("original.Content = %q, want unchanged", original.Content)
	}
	if original.Source != "belief" {
		t.Errorf("original.Source = %q, want %q (must not be rewritten)", original.Source, "belief")
	}
}

func TestRetractUnknownBelief(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.RetractBelief("nope"); err == nil {
		t.Fatal("RetractBelief() error = nil, want error for unknown id")
	}
}

func TestRecordAssignsIDAndConfidence(t *testing.T) {
	m := newTestManager(t)
	e, err := m.Record(&models.MemoryEntry{Tier: models.TierEpisodic, Content: "hello"})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.ID == "" {
		t.Error("ID not assigned")
	}
	if e.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want default 0.5", e.Confidence)
	}
	if e.ContentHash == "" {
		t.Error("ContentHash not computed")
	}
}

func TestByTierAndCount(t *testing.T) {
	m := newTestManager(t)
	m.Record(&models.MemoryEntry{Tier: models.TierEpisodic, Content: "a"})
	m.Record(&models.MemoryEntry{Tier: models.TierSemantic, Content: "b"})
	m.Record(&models.MemoryEntry{Tier: models.TierEpisodic, Content: "c"})

	if got := len(m.ByTier(models.TierEpisodic)); got != 2 {
		t.Errorf("ByTier(episodic) len = %d, want 2", got)
	}
	if got := m.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}
}

func TestActiveExcludesTombstonesAndTheirTargets(t *testing.T) {
	m := newTestManager(t)
	e, err := m.Record(&models.MemoryEntry{Tier: models.TierEpisodic, Content: "old episode"})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := m.Record(&models.MemoryEntry{
		Tier:    models.TierEpisodic,
		Content: "forgotten",
		Source:  fmt.Sprintf("sleep:forgotten:%s", e.ID),
	}); err != nil {
		t.Fatalf("Record(tombstone) error = %v", err)
	}

	active := m.Active()
	for _, a := range active {
		if a.ID == e.ID {
			t.Errorf("Active() still contains forgotten entry %s", e.ID)
		}
	}
	if got := m.Count(); got != 2 {
		t.Fatalf("Count() = %d, want 2 (tombstone kept in log)", got)
	}
	if got := len(m.ActiveByTier(models.TierEpisodic)); got != 0 {
		t.Errorf("ActiveByTier(episodic) len = %d, want 0", got)
	}
}

func TestWipeLayer(t *testing.T) {
	m := newTestManager(t)
	m.Record(&models.MemoryEntry{Tier: models.TierEpisodic, Content: "a"})
	m.Record(&models.MemoryEntry{Tier: models.TierSemantic, Content: "b"})

	if err := m.Wipe(models.TierEpisodic); err != nil {
		t.Fatalf("Wipe() error = %v", err)
	}
	if got := m.Count(); got != 1 {
		t.Fatalf("Count() after wipe = %d, want 1", got)
	}
	if got := m.ByTier(models.TierSemantic); len(got) != 1 {
		t.Errorf("semantic tier entry lost during wipe of episodic")
	}
}
