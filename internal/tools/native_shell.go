package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/aigent-dev/aigent/internal/tools/sandbox"
)

// RunShellTool implements run_shell: a timed, output-capped shell
// command execution, optionally routed through the platform sandbox.
type RunShellTool struct {
	workspace      string
	timeout        time.Duration
	sandboxEnabled bool
}

// NewRunShellTool creates run_shell scoped to workspace. timeout
// defaults to 30s when <= 0.
func NewRunShellTool(workspace string, timeout time.Duration, sandboxEnabled bool) *RunShellTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RunShellTool{workspace: workspace, timeout: timeout, sandboxEnabled: sandboxEnabled}
}

func (t *RunShellTool) Name() string        { return "run_shell" }
func (t *RunShellTool) Description() string { return "Run a shell command in the workspace." }
func (t *RunShellTool) ReadOnly() bool       { return false }

func (t *RunShellTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	var command string
	if err := unmarshalArg(args, "command", &command); err != nil {
		return "", err
	}
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("command is required")
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = t.workspace

	if t.sandboxEnabled && sandbox.Supported() {
		if err := sandbox.Apply(cmd); err != nil {
			return "", fmt.Errorf("apply sandbox: %w", err)
		}
	}

	out := newLimitedBuffer(maxToolOutputBytes)
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	output := out.String()
	if runCtx.Err() == context.DeadlineExceeded {
		return output, ErrTimeout
	}
	if err != nil {
		if output != "" {
			return "", fmt.Errorf("command failed: %w: %s", err, output)
		}
		return "", fmt.Errorf("command failed: %w", err)
	}
	return output, nil
}
