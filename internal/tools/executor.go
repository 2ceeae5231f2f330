package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/internal/vcs"
	"github.com/aigent-dev/aigent/pkg/models"
)

// autoCommitTools are the tools whose successful execution can trigger a
// git auto-commit, per the spec's step 8.
var autoCommitTools = map[string]bool{"write_file": true, "run_shell": true}

// Config controls Executor construction.
type Config struct {
	Workspace     string
	Policy        models.ExecutionPolicy
	DefaultTimeout time.Duration // bounds every tool call, including tools with a timeout of their own
}

// Executor runs the 9-step tool execution pipeline described by the
// spec: lookup, denylist/allowlist, approval gating, run_shell
// sandboxing, path/size confinement (handled inside the native
// file tools themselves), timeout+output capping, git auto-commit,
// and Procedural memory persistence.
type Executor struct {
	registry *Registry
	gate     ApprovalGate
	manager  *memory.Manager
	cfg      Config
	logger   *slog.Logger
}

// NewExecutor creates an Executor. gate and manager may be nil in
// tests that don't exercise approval-gated or persisted paths.
func NewExecutor(registry *Registry, gate ApprovalGate, manager *memory.Manager, cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	return &Executor{registry: registry, gate: gate, manager: manager, cfg: cfg, logger: logger.With("component", "tools.executor")}
}

// Execute runs call through the full pipeline and always returns a
// ToolResult (never an error for expected rejection paths); callers
// inspect ToolResult.Success/Error.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	result := e.execute(ctx, call)
	if result.Success {
		e.persist(call, result)
	}
	return result
}

func (e *Executor) execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	tool, ok := e.registry.Get(call.Name)
	if !ok {
		return errResult(ErrUnknownTool)
	}

	policy := NewPolicy(e.cfg.Policy)
	if err := policy.checkLists(call.Name); err != nil {
		return errResult(err)
	}

	decision := policy.decideApproval(call.Name, tool.ReadOnly())
	if decision == models.DecisionRequired {
		if e.gate == nil {
			return errResult(fmt.Errorf("%w: no approval gate configured", ErrRejected))
		}
		argsJSON, _ := json.Marshal(call.Args)
		approved, err := e.gate.RequestApproval(ctx, models.ApprovalRequest{
			ToolName: call.Name,
			Args:     string(argsJSON),
		})
		if err != nil {
			return errResult(fmt.Errorf("approval: %w", err))
		}
		if !approved {
			return errResult(ErrRejected)
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if e.cfg.DefaultTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.DefaultTimeout)
		defer cancel()
	}

	output, err := tool.Execute(runCtx, call.Args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
			return models.ToolResult{Success: false, Error: "timeout"}
		}
		return errResult(err)
	}
	if len(output) > maxToolOutputBytes {
		output = output[:maxToolOutputBytes]
	}

	if e.cfg.Policy.GitAutoCommit && autoCommitTools[call.Name] && e.cfg.Workspace != "" {
		e.autoCommit(call.Name, output)
	}

	return models.ToolResult{Success: true, Output: output}
}

func (e *Executor) autoCommit(toolName, output string) {
	repo, err := vcs.Open(e.cfg.Workspace)
	if err != nil {
		if !errors.Is(err, vcs.ErrNotRepo) {
			e.logger.Warn("git auto-commit: open repo failed", "error", err)
		}
		return
	}
	detail := output
	if len(detail) > 80 {
		detail = detail[:80]
	}
	message := fmt.Sprintf("Aigent tool: %s — %s", toolName, detail)
	if err := repo.AutoCommit(message); err != nil {
		e.logger.Warn("git auto-commit failed", "tool", toolName, "error", err)
	}
}

// persist records a successful tool result as Procedural memory (step
// 9). Rejected/denied/failed calls never reach here: the pipeline
// returns early at whichever step stopped them.
func (e *Executor) persist(call models.ToolCall, result models.ToolResult) {
	if e.manager == nil {
		return
	}
	_, err := e.manager.Record(&models.MemoryEntry{
		Tier:       models.TierProcedural,
		Content:    result.Output,
		Source:     "tool-use:" + call.Name,
		Confidence: 0.6,
	})
	if err != nil {
		e.logger.Warn("failed to persist tool-use memory entry", "tool", call.Name, "error", err)
	}
}

func errResult(err error) models.ToolResult {
	return models.ToolResult{Success: false, Error: err.Error()}
}
