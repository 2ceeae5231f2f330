package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireLockAndRelease(t *testing.T) {
	dir := t.TempDir()
	h, err := AcquireLock(dir, time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "daemon.pid")); err != nil {
		t.Fatalf("expected lock file to exist: %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "daemon.pid")); !os.IsNotExist(err) {
		t.Error("expected lock file to be removed after Release")
	}
}

func TestAcquireLockRejectsSecondHolder(t *testing.T) {
	dir := t.TempDir()
	h1, err := AcquireLock(dir, time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer h1.Release()

	if _, err := AcquireLock(dir, time.Minute); err == nil {
		t.Error("expected a second AcquireLock against a live holder to fail")
	}
}

func TestAcquireLockReclaimsStaleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.pid")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"pid":999999999,"created_at":"2020-01-01T00:00:00Z"}`), 0o644); err != nil {
		t.Fatalf("write stale lock: %v", err)
	}

	h, err := AcquireLock(dir, time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock expected to reclaim stale lock: %v", err)
	}
	defer h.Release()
}
