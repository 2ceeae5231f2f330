// Package wasmguest hosts WASM-compiled tool guests under wazero,
// implementing the stdin/stdout JSON protocol: arguments as a single
// JSON object on stdin, a {success, output} result object on stdout.
// Every invocation gets a fresh module instance; guests are stateless.
package wasmguest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const maxGuestOutputBytes = 256 << 10

// Guest is a single WASM tool module, registered into the tool
// registry via RegisterWASM alongside the native tools.
type Guest struct {
	name      string
	path      string
	workspace string
}

// NewGuest wraps a compiled .wasm file at path as a tool named name,
// with workspace pre-opened as the guest's sole filesystem mount.
func NewGuest(name, path, workspace string) *Guest {
	return &Guest{name: name, path: path, workspace: workspace}
}

func (g *Guest) Name() string        { return g.name }
func (g *Guest) Description() string { return fmt.Sprintf("WASM guest tool (%s)", filepath.Base(g.path)) }

// ReadOnly reports false for every guest: guest code is untrusted and
// unaudited, so it is always treated as capable of mutation for the
// purposes of approval-mode gating.
func (g *Guest) ReadOnly() bool { return false }

func (g *Guest) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	stdin, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal guest args: %w", err)
	}

	runtime := wazero.NewRuntime(ctx)
	defer runtime.Close(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return "", fmt.Errorf("instantiate wasi: %w", err)
	}

	wasmBytes, err := os.ReadFile(g.path)
	if err != nil {
		return "", fmt.Errorf("read guest module %s: %w", g.path, err)
	}
	code, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return "", fmt.Errorf("compile guest module %s: %w", g.path, err)
	}
	defer code.Close(ctx)

	var stdout, stderr bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithName(g.name).
		WithStdin(bytes.NewReader(stdin)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithFSConfig(wazero.NewFSConfig().WithDirMount(g.workspace, "/workspace"))

	mod, instErr := runtime.InstantiateModule(ctx, code, cfg)
	if mod != nil {
		defer mod.Close(ctx)
	}
	out := stdout.Bytes()
	if len(out) > maxGuestOutputBytes {
		out = out[:maxGuestOutputBytes]
	}
	if instErr != nil && len(out) == 0 {
		return "", fmt.Errorf("guest execution failed: %w: %s", instErr, stderr.String())
	}

	var result struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		return "", fmt.Errorf("parse guest result: %w (raw: %s)", err, out)
	}
	if !result.Success {
		return "", fmt.Errorf("guest %s reported failure: %s", g.name, result.Output)
	}
	return result.Output, nil
}
