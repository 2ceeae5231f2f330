package identity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	m, err := memory.Open(filepath.Join(t.TempDir(), "events.jsonl"), memory.Config{})
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	return m
}

func TestLoadMissingFileYieldsZeroValue(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "" {
		t.Errorf("expected zero-value Pinned, got %+v", p)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".identity.json")
	if err := os.WriteFile(path, []byte(`{"name":"Aigent","persona":"helpful","values":["honesty"]}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "Aigent" || len(p.Values) != 1 {
		t.Errorf("p = %+v, want parsed identity", p)
	}
}

func TestKernelBlockIncludesPinnedAndCore(t *testing.T) {
	m := newTestManager(t)
	m.Record(&models.MemoryEntry{Tier: models.TierCore, Content: "prefers concise answers"})

	k := New(Pinned{Name: "Aigent", Persona: "a helpful assistant"}, m)
	block := k.Block()
	if !strings.Contains(block, "Aigent") || !strings.Contains(block, "prefers concise answers") {
		t.Errorf("block = %q, want it to include name and core content", block)
	}
}

func TestKernelBlockIsCachedUntilCoreChanges(t *testing.T) {
	m := newTestManager(t)
	k := New(Pinned{Name: "Aigent"}, m)
	first := k.Block()
	second := k.Block()
	if first != second {
		t.Error("expected cached block to be stable across calls with no Core change")
	}
	m.Record(&models.MemoryEntry{Tier: models.TierCore, Content: "new fact"})
	third := k.Block()
	if third == first {
		t.Error("expected block to recompose after a Core change")
	}
}
