// Package eventlog implements the crash-safe append-only JSONL store of
// memory events that underlies Aigent's memory engine.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aigent-dev/aigent/pkg/models"
)

// Log is the canonical append-only event store. Append and Overwrite
// are the only mutating operations; Load streams the current content.
type Log struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// New opens (without reading) the log file at path, creating parent
// directories as needed.
func New(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &Log{path: path, logger: logger}, nil
}

// Append serializes one entry as a single newline-delimited record,
// writes it with one unbuffered write, then fsyncs before returning. A
// failure at any step is returned as a wrapped error — the caller must
// treat it as a durability failure and abort the turn.
func (l *Log) Append(entry *models.MemoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log for append: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write log entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("fsync log entry: %w", err)
	}
	return nil
}

// Overwrite replaces the entire log content atomically: it serializes
// all entries into a sibling temp file, fsyncs it, then renames it over
// the canonical path. A crash at any point leaves either the old or the
// new file fully intact.
func (l *Log) Overwrite(entries []*models.MemoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tmpPath := l.path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp log: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("marshal entry: %w", err)
		}
		if _, err := w.Write(line); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("write temp log: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("write temp log: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush temp log: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsync temp log: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp log: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp log: %w", err)
	}
	return nil
}

// Load streams lines from the canonical log, parsing each as a
// MemoryEntry. A parse error does not abort: the offending line is
// appended verbatim to a "<log>.corrupt" sidecar, a warning is logged
// with the line number and error, and iteration continues.
func (l *Log) Load() ([]*models.MemoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var entries []*models.MemoryEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry models.MemoryEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			l.logger.Warn("corrupt memory log line quarantined",
				"line", lineNo, "error", err)
			if qerr := l.quarantine(line); qerr != nil {
				l.logger.Warn("failed to write corrupt sidecar", "error", qerr)
			}
			continue
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scan log: %w", err)
	}
	return entries, nil
}

func (l *Log) quarantine(line []byte) error {
	f, err := os.OpenFile(l.path+".corrupt", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return err
	}
	_, err = f.Write([]byte("\n"))
	return err
}

// Path returns the canonical log file path.
func (l *Log) Path() string {
	return l.path
}
