package sleep

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aigent-dev/aigent/internal/llm"
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

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) ChatStream(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.Chunk, error) {
	return nil, nil
}
func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return f.response, f.err
}
func (f *fakeLLM) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }

func recordAt(t *testing.T, m *memory.Manager, entry *models.MemoryEntry, createdAt time.Time) *models.MemoryEntry {
	t.Helper()
	entry.CreatedAt = createdAt
	e, err := m.Record(entry)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	return e
}
