package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aigent-dev/aigent/pkg/models"
)

func writeStubGuest(dir, filename string) error {
	return os.WriteFile(filepath.Join(dir, filename), []byte("\x00asm"), 0o644)
}

func TestBootstrapRegistersNativeBaseline(t *testing.T) {
	registry, executor, err := Bootstrap(BootstrapConfig{
		Workspace: t.TempDir(),
		Policy:    models.ExecutionPolicy{AllowShell: true},
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if executor == nil {
		t.Fatal("expected a non-nil executor")
	}
	for _, name := range []string{"read_file", "write_file", "calendar_add_event", "draft_email", "remind_me", "web_search", "git_rollback", "run_shell"} {
		if _, ok := registry.Get(name); !ok {
			t.Errorf("expected %s to be registered", name)
		}
	}
}

func TestBootstrapOmitsShellWhenDisallowed(t *testing.T) {
	registry, _, err := Bootstrap(BootstrapConfig{
		Workspace: t.TempDir(),
		Policy:    models.ExecutionPolicy{AllowShell: false},
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if _, ok := registry.Get("run_shell"); ok {
		t.Error("expected run_shell to be absent when AllowShell is false")
	}
}

func TestBootstrapDiscoversWASMGuestsWhenAllowed(t *testing.T) {
	extDir := t.TempDir()
	if err := writeStubGuest(extDir, "read_file.wasm"); err != nil {
		t.Fatalf("write stub guest: %v", err)
	}
	registry, _, err := Bootstrap(BootstrapConfig{
		Workspace:     t.TempDir(),
		ExtensionsDir: extDir,
		Policy:        models.ExecutionPolicy{AllowWASM: true},
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if !registry.IsWASM("read_file") {
		t.Error("expected read_file to be shadowed by the discovered WASM guest")
	}
}
