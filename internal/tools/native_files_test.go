package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func rawArgs(t *testing.T, m map[string]interface{}) map[string]json.RawMessage {
	t.Helper()
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %q: %v", k, err)
		}
		out[k] = b
	}
	return out
}

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tool := NewReadFileTool(dir, 0)
	out, err := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": "note.txt"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hello" {
		t.Errorf("out = %q, want hello", out)
	}
}

func TestReadFileToolRejectsEscape(t *testing.T) {
	tool := NewReadFileTool(t.TempDir(), 0)
	if _, err := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": "../escape.txt"})); err == nil {
		t.Error("expected an error for a path escaping the workspace")
	}
}

func TestReadFileToolRejectsOversized(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), make([]byte, 100), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tool := NewReadFileTool(dir, 10)
	if _, err := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{"path": "big.txt"})); err == nil {
		t.Error("expected an error for a file exceeding max read size")
	}
}

func TestWriteFileTool(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(dir, 0)
	_, err := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{
		"path": "sub/dir/out.txt", "content": "payload",
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "sub", "dir", "out.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("got %q, want payload", got)
	}
}

func TestWriteFileToolAppend(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(dir, 0)
	ctx := context.Background()
	if _, err := tool.Execute(ctx, rawArgs(t, map[string]interface{}{"path": "log.txt", "content": "a"})); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, err := tool.Execute(ctx, rawArgs(t, map[string]interface{}{"path": "log.txt", "content": "b", "append": true})); err != nil {
		t.Fatalf("Execute append: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "ab" {
		t.Errorf("got %q, want ab", got)
	}
}

func TestWriteFileToolRejectsEscape(t *testing.T) {
	tool := NewWriteFileTool(t.TempDir(), 0)
	if _, err := tool.Execute(context.Background(), rawArgs(t, map[string]interface{}{
		"path": "/etc/passwd", "content": "pwned",
	})); err == nil {
		t.Error("expected an error for a path escaping the workspace")
	}
}
