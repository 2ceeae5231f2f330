package reflection

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aigent-dev/aigent/internal/llm"
	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

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

type recordingBroadcaster struct {
	events []models.Event
}

func (b *recordingBroadcaster) Broadcast(e models.Event) {
	b.events = append(b.events, e)
}

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := memory.Open(filepath.Join(dir, "events.jsonl"), memory.Config{})
	if err != nil {
		t.Fatalf("memory.Open() error = %v", err)
	}
	return m
}

func TestReflectPersistsBeliefsAndReflections(t *testing.T) {
	m := newTestManager(t)
	bc := &recordingBroadcaster{}
	client := &fakeLLM{response: `{"beliefs":[{"claim":"user prefers dark mode","confidence":0.8}],"reflections":["the user seems tired today"]}`}
	r := New(client, m, bc, nil)

	r.Reflect(context.Background(), "I like dark mode", "Noted, I'll remember that.")

	beliefs := m.AllBeliefs()
	if len(beliefs) != 1 {
		t.Fatalf("AllBeliefs() len = %d, want 1", len(beliefs))
	}
	reflective := m.ByTier(models.TierReflective)
	if len(reflective) != 1 {
		t.Fatalf("ByTier(reflective) len = %d, want 1", len(reflective))
	}
	if len(bc.events) != 2 {
		t.Fatalf("broadcast events = %d, want 2 (BeliefAdded + ReflectionInsight)", len(bc.events))
	}
}

func TestReflectCapsBeliefsAndReflections(t *testing.T) {
	m := newTestManager(t)
	client := &fakeLLM{response: `{"beliefs":[
		{"claim":"b1","confidence":0.5},{"claim":"b2","confidence":0.5},
		{"claim":"b3","confidence":0.5},{"claim":"b4","confidence":0.5}
	],"reflections":["r1","r2","r3"]}`}
	r := New(client, m, nil, nil)

	r.Reflect(context.Background(), "x", "y")

	if got := len(m.AllBeliefs()); got != MaxBeliefs {
		t.Errorf("persisted beliefs = %d, want capped at %d", got, MaxBeliefs)
	}
	if got := len(m.ByTier(models.TierReflective)); got != MaxReflections {
		t.Errorf("persisted reflections = %d, want capped at %d", got, MaxReflections)
	}
}

func TestReflectSwallowsLLMError(t *testing.T) {
	m := newTestManager(t)
	client := &fakeLLM{err: context.DeadlineExceeded}
	r := New(client, m, nil, nil)

	// Must not panic or propagate; reflection is fire-and-forget.
	r.Reflect(context.Background(), "x", "y")

	if got := m.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0 after failed reflection", got)
	}
}

func TestReflectSwallowsUnparseableOutput(t *testing.T) {
	m := newTestManager(t)
	client := &fakeLLM{response: "not json at all"}
	r := New(client, m, nil, nil)

	r.Reflect(context.Background(), "x", "y")

	if got := m.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0 after unparseable reflection output", got)
	}
}
