package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aigent-dev/aigent/internal/tools/files"
)

const defaultMaxReadBytes = 200_000

// ReadFileTool implements read_file: a confined, size-capped file read.
type ReadFileTool struct {
	resolver files.Resolver
	maxBytes int
}

// NewReadFileTool creates read_file scoped to workspace, applying
// maxBytes as the hard read cap (defaults to 200000 when <= 0).
func NewReadFileTool(workspace string, maxBytes int) *ReadFileTool {
	if maxBytes <= 0 {
		maxBytes = defaultMaxReadBytes
	}
	return &ReadFileTool{resolver: files.Resolver{Root: workspace}, maxBytes: maxBytes}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read a file from the workspace." }
func (t *ReadFileTool) ReadOnly() bool       { return true }

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	var path string
	if err := unmarshalArg(args, "path", &path); err != nil {
		return "", err
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	resolved, err := t.resolver.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > int64(t.maxBytes) {
		return "", fmt.Errorf("file exceeds max read size of %d bytes", t.maxBytes)
	}
	f, err := os.Open(resolved)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	buf, err := io.ReadAll(io.LimitReader(f, int64(t.maxBytes)))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(buf), nil
}

// WriteFileTool implements write_file: a confined, size-capped file write.
type WriteFileTool struct {
	resolver files.Resolver
	maxBytes int
}

// NewWriteFileTool creates write_file scoped to workspace.
func NewWriteFileTool(workspace string, maxBytes int) *WriteFileTool {
	if maxBytes <= 0 {
		maxBytes = defaultMaxReadBytes
	}
	return &WriteFileTool{resolver: files.Resolver{Root: workspace}, maxBytes: maxBytes}
}

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Write content to a file in the workspace." }
func (t *WriteFileTool) ReadOnly() bool       { return false }

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
		Append  bool   `json:"append"`
	}
	if err := unmarshalArg(args, "path", &input.Path); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.Path) == "" {
		return "", fmt.Errorf("path is required")
	}
	_ = unmarshalArg(args, "content", &input.Content)
	_ = unmarshalArg(args, "append", &input.Append)
	if len(input.Content) > t.maxBytes {
		return "", fmt.Errorf("content exceeds max write size of %d bytes", t.maxBytes)
	}

	resolved, err := t.resolver.Resolve(input.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if input.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	n, err := f.WriteString(input.Content)
	if err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", n, input.Path), nil
}

// unmarshalArg decodes args[key] into dst if present, leaving dst
// untouched (and returning nil) when the key is absent.
func unmarshalArg(args map[string]json.RawMessage, key string, dst interface{}) error {
	raw, ok := args[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid %q argument: %w", key, err)
	}
	return nil
}
