package vault

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := memory.Open(filepath.Join(dir, "events.jsonl"), memory.Config{})
	if err != nil {
		t.Fatalf("memory.Open() error = %v", err)
	}
	return m
}

func TestProjectWritesRootArtefacts(t *testing.T) {
	m := newTestManager(t)
	m.Record(&models.MemoryEntry{Tier: models.TierCore, Content: "I am Aigent", Confidence: 0.9})
	m.Record(&models.MemoryEntry{Tier: models.TierUserProfile, Content: "user likes tea", Confidence: 0.8})

	dir := t.TempDir()
	p := NewProjector(dir, m)

	result, err := p.Project()
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if len(result.Written) != 3 {
		t.Errorf("Written = %v, want 3 files written on first projection", result.Written)
	}

	for _, f := range []string{ArtefactCore, ArtefactUserProfile, ArtefactReflective, ArtefactIndex} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("expected %s to exist: %v", f, err)
		}
	}
	for _, sub := range []string{"notes", "tiers", "daily", "topics"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("expected sub-artefact dir %s to exist", sub)
		}
	}
}

func TestProjectIsChecksumGated(t *testing.T) {
	m := newTestManager(t)
	m.Record(&models.MemoryEntry{Tier: models.TierCore, Content: "stable belief", Confidence: 0.9})

	dir := t.TempDir()
	p := NewProjector(dir, m)

	if _, err := p.Project(); err != nil {
		t.Fatalf("first Project() error = %v", err)
	}
	result, err := p.Project()
	if err != nil {
		t.Fatalf("second Project() error = %v", err)
	}
	if len(result.Written) != 0 {
		t.Errorf("second Project() Written = %v, want none (unchanged content)", result.Written)
	}
	if len(result.Unchanged) != 3 {
		t.Errorf("second Project() Unchanged = %v, want 3", result.Unchanged)
	}
}

func TestProjectTierLimitTruncates(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < 20; i++ {
		m.Record(&models.MemoryEntry{Tier: models.TierCore, Content: "belief", Confidence: 0.5})
	}

	dir := t.TempDir()
	p := NewProjector(dir, m, WithTierLimit(5))
	if _, err := p.Project(); err != nil {
		t.Fatalf("Project() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ArtefactCore))
	if err != nil {
		t.Fatalf("read core artefact: %v", err)
	}
	var doc artefactDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal core artefact: %v", err)
	}
	if len(doc.Entries) != 5 {
		t.Errorf("len(Entries) = %d, want 5", len(doc.Entries))
	}
}
