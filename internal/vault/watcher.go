package vault

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

// selfTriggerWindow is how long after a projector write a matching
// fsnotify event on the same file is assumed to be an echo of that
// write rather than a human edit.
const selfTriggerWindow = 2 * time.Second

// Watcher observes the vault's watched root artefacts for human edits
// and records them as high-confidence memory entries.
type Watcher struct {
	dir     string
	manager *memory.Manager
	logger  *slog.Logger
	sums    *checksums

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher sharing the projector's checksum table so
// that the projector's own writes are never re-ingested as human edits.
func NewWatcher(dir string, m *memory.Manager, p *Projector, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:     dir,
		manager: m,
		logger:  logger,
		sums:    p.sums,
	}
}

// Start begins watching the root artefacts. It is a no-op if already
// running.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create fs watcher: %w", err)
	}
	for _, name := range WatchedArtefacts {
		path := filepath.Join(w.dir, name)
		// fsnotify requires the file to exist before it can be watched;
		// an empty placeholder is replaced by the first projection.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if werr := writeFileAtomic(path, []byte{}); werr != nil {
				w.logger.Warn("failed to create placeholder for watch", "file", name, "error", werr)
				continue
			}
		}
		if err := fw.Add(path); err != nil {
			w.logger.Warn("failed to watch vault artefact", "file", name, "error", err)
		}
	}
	w.watcher = fw
	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx)
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if fw != nil {
		_ = fw.Close()
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	if fw == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.handleEvent(event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("vault watch error", "error", err)
		}
	}
}

// handleEvent reads the changed file, suppresses self-writes, and
// records a human-edit memory entry for anything else.
func (w *Watcher) handleEvent(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("failed to read watched artefact", "path", path, "error", err)
		return
	}
	file := filepath.Base(path)
	sum := Checksum(data)

	if w.sums.selfWrite(file, sum, selfTriggerWindow) {
		return
	}

	content := clampPreview(string(data))
	tier := models.Tier(tierForFilename(file))
	entry, err := w.manager.Record(&models.MemoryEntry{
		Tier:       tier,
		Content:    content,
		Source:     "human-edit",
		Confidence: 0.9,
	})
	if err != nil {
		w.logger.Warn("failed to record human-edit entry", "file", file, "error", err)
		return
	}
	w.sums.record(file, sum)
	w.logger.Info("recorded human edit from vault artefact", "file", file, "entry_id", entry.ID)
}
