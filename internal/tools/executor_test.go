package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

type fakeTool struct {
	name     string
	readOnly bool
	output   string
	err      error
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake" }
func (f *fakeTool) ReadOnly() bool       { return f.readOnly }
func (f *fakeTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	return f.output, f.err
}

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	m, err := memory.Open(t.TempDir()+"/events.jsonl", memory.Config{})
	if err != nil {
		t.Fatalf("open manager: %v", err)
	}
	return m
}

func TestExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry()
	e := NewExecutor(reg, nil, nil, Config{}, nil)
	result := e.Execute(context.Background(), models.ToolCall{Name: "nope"})
	if result.Success || result.Error == "" {
		t.Errorf("expected failure for unknown tool, got %+v", result)
	}
}

func TestExecuteDenylisted(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterNative(&fakeTool{name: "read_file", readOnly: true, output: "ok"})
	e := NewExecutor(reg, nil, nil, Config{Policy: models.ExecutionPolicy{ToolDenylist: []string{"read_file"}}}, nil)
	result := e.Execute(context.Background(), models.ToolCall{Name: "read_file"})
	if result.Success {
		t.Error("expected denylisted tool to fail")
	}
}

func TestExecuteNotAllowlisted(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterNative(&fakeTool{name: "read_file", readOnly: true, output: "ok"})
	e := NewExecutor(reg, nil, nil, Config{Policy: models.ExecutionPolicy{ToolAllowlist: []string{"write_file"}}}, nil)
	result := e.Execute(context.Background(), models.ToolCall{Name: "read_file"})
	if result.Success {
		t.Error("expected non-allowlisted tool to fail")
	}
}

func TestExecuteBalancedAutoApprovesReadOnly(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterNative(&fakeTool{name: "read_file", readOnly: true, output: "content"})
	e := NewExecutor(reg, nil, nil, Config{Policy: models.ExecutionPolicy{ApprovalMode: models.ApprovalBalanced}}, nil)
	result := e.Execute(context.Background(), models.ToolCall{Name: "read_file"})
	if !result.Success || result.Output != "content" {
		t.Errorf("result = %+v, want success with content", result)
	}
}

func TestExecuteBalancedRequiresApprovalForWrite(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterNative(&fakeTool{name: "write_file", readOnly: false, output: "wrote"})
	e := NewExecutor(reg, AutoGate(false), nil, Config{Policy: models.ExecutionPolicy{ApprovalMode: models.ApprovalBalanced}}, nil)
	result := e.Execute(context.Background(), models.ToolCall{Name: "write_file"})
	if result.Success {
		t.Error("expected rejection when gate denies")
	}

	e2 := NewExecutor(reg, AutoGate(true), nil, Config{Policy: models.ExecutionPolicy{ApprovalMode: models.ApprovalBalanced}}, nil)
	result2 := e2.Execute(context.Background(), models.ToolCall{Name: "write_file"})
	if !result2.Success {
		t.Errorf("expected approval to allow execution, got %+v", result2)
	}
}

func TestExecuteSaferRequiresApprovalEvenForReadOnly(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterNative(&fakeTool{name: "read_file", readOnly: true, output: "content"})
	e := NewExecutor(reg, AutoGate(false), nil, Config{Policy: models.ExecutionPolicy{ApprovalMode: models.ApprovalSafer}}, nil)
	result := e.Execute(context.Background(), models.ToolCall{Name: "read_file"})
	if result.Success {
		t.Error("expected Safer mode to gate even read-only tools")
	}
}

func TestExecuteAutonomousNeverGates(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterNative(&fakeTool{name: "write_file", readOnly: false, output: "wrote"})
	e := NewExecutor(reg, nil, nil, Config{Policy: models.ExecutionPolicy{ApprovalMode: models.ApprovalAutonomous}}, nil)
	result := e.Execute(context.Background(), models.ToolCall{Name: "write_file"})
	if !result.Success {
		t.Errorf("expected Autonomous mode to auto-approve without a gate, got %+v", result)
	}
}

func TestExecuteExemptBypassesApproval(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterNative(&fakeTool{name: "write_file", readOnly: false, output: "wrote"})
	e := NewExecutor(reg, nil, nil, Config{Policy: models.ExecutionPolicy{
		ApprovalMode:        models.ApprovalSafer,
		ApprovalExemptTools: []string{"write_file"},
	}}, nil)
	result := e.Execute(context.Background(), models.ToolCall{Name: "write_file"})
	if !result.Success {
		t.Errorf("expected exempt tool to bypass gate, got %+v", result)
	}
}

func TestExecutePersistsProceduralMemory(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterNative(&fakeTool{name: "read_file", readOnly: true, output: "hello world"})
	m := newTestManager(t)
	e := NewExecutor(reg, nil, m, Config{Policy: models.ExecutionPolicy{ApprovalMode: models.ApprovalAutonomous}}, nil)

	e.Execute(context.Background(), models.ToolCall{Name: "read_file"})

	found := false
	for _, entry := range m.ActiveByTier(models.TierProcedural) {
		if entry.Source == "tool-use:read_file" && entry.Content == "hello world" {
			found = true
		}
	}
	if !found {
		t.Error("expected a Procedural memory entry recording the tool result")
	}
}

func TestExecuteDoesNotPersistFailures(t *testing.T) {
	reg := NewRegistry()
	m := newTestManager(t)
	e := NewExecutor(reg, nil, m, Config{}, nil)
	e.Execute(context.Background(), models.ToolCall{Name: "nonexistent"})
	if got := len(m.ActiveByTier(models.TierProcedural)); got != 0 {
		t.Errorf("expected no Procedural entries for a failed call, got %d", got)
	}
}
