// Package tools implements the tool registry and executor (C9): a
// first-match-wins registry of native and WASM guest tools, a
// denylist/allowlist/approval-mode execution pipeline, run_shell
// sandboxing, workspace path confinement, git auto-commit, and
// Procedural memory persistence of every successful tool result.
package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aigent-dev/aigent/pkg/models"
)

// Sentinel errors behind Execute's failed results. Execute reports a
// timeout as the ToolResult error string "timeout" and every other
// failure by its error message; no other mapping is applied.
var (
	ErrUnknownTool   = errors.New("tools: unknown tool")
	ErrToolDenied    = errors.New("tools: denied by tool_denylist")
	ErrToolNotAllowed = errors.New("tools: not present in tool_allowlist")
	ErrRejected      = errors.New("tools: rejected by approval gate")
	ErrTimeout       = errors.New("tools: execution timed out")
)

// Tool is a single callable capability, implemented either natively in
// Go or by a WASM guest module.
type Tool interface {
	Name() string
	Description() string
	// ReadOnly classifies the tool for approval-mode purposes; it must
	// match the tool's actual side effects.
	ReadOnly() bool
	Execute(ctx context.Context, args map[string]json.RawMessage) (string, error)
}

// Spec returns the ToolSpec advertised to the LLM and to `aigent tool
// list`.
func Spec(t Tool, params []models.ToolParam) models.ToolSpec {
	return models.ToolSpec{
		Name:        t.Name(),
		Description: t.Description(),
		Params:      params,
		ReadOnly:    t.ReadOnly(),
	}
}
