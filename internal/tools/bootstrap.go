package tools

import (
	"log/slog"
	"time"

	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/internal/tools/wasmguest"
	"github.com/aigent-dev/aigent/pkg/models"
)

// BootstrapConfig gathers everything needed to build a fully wired
// Registry + Executor at daemon startup.
type BootstrapConfig struct {
	Workspace      string
	ExtensionsDir  string // directory searched for WASM guest modules
	Policy         models.ExecutionPolicy
	DefaultTimeout time.Duration
	ShellTimeout   time.Duration
	Gate           ApprovalGate
	Manager        *memory.Manager
	Logger         *slog.Logger
}

// Bootstrap discovers WASM guests under cfg.ExtensionsDir (registered
// first, per the first-match-wins rule), registers the native tool
// baseline for every name not already claimed by a guest, and returns
// a Registry paired with an Executor ready to run calls.
func Bootstrap(cfg BootstrapConfig) (*Registry, *Executor, error) {
	registry := NewRegistry()

	if cfg.Policy.AllowWASM && cfg.ExtensionsDir != "" {
		guests, err := wasmguest.Discover(cfg.ExtensionsDir, cfg.Workspace)
		if err != nil {
			return nil, nil, err
		}
		for _, g := range guests {
			registry.RegisterWASM(g)
		}
	}

	registry.RegisterNative(NewReadFileTool(cfg.Workspace, 0))
	registry.RegisterNative(NewWriteFileTool(cfg.Workspace, 0))
	registry.RegisterNative(NewCalendarAddEventTool())
	registry.RegisterNative(NewDraftEmailTool())
	registry.RegisterNative(NewRemindMeTool())
	registry.RegisterNative(NewWebSearchTool(cfg.Policy.BraveAPIKey))
	registry.RegisterNative(NewGitRollbackTool(cfg.Workspace))
	if cfg.Policy.AllowShell {
		registry.RegisterNative(NewRunShellTool(cfg.Workspace, cfg.ShellTimeout, cfg.Policy.SandboxEnabled))
	}

	executor := NewExecutor(registry, cfg.Gate, cfg.Manager, Config{
		Workspace:      cfg.Workspace,
		Policy:         cfg.Policy,
		DefaultTimeout: cfg.DefaultTimeout,
	}, cfg.Logger)

	return registry, executor, nil
}
