// Package memory coordinates the event log (C1), optional secondary
// index (C2), and in-memory view used by retrieval, sleep, and the
// identity kernel. It is the single point through which memory entries
// are recorded, retracted, and enumerated.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aigent-dev/aigent/internal/eventlog"
	"github.com/aigent-dev/aigent/internal/memindex"
	"github.com/aigent-dev/aigent/pkg/models"
)

// Embedder generates a dense vector for a piece of text. It is the
// memory package's view of the LLM client abstraction's embed surface;
// nil means no embedding backend is configured.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

// Manager owns the canonical event log and serves reads from an
// in-memory cache of every loaded entry, optionally fronted by a
// secondary index.
type Manager struct {
	mu      sync.RWMutex
	log     *eventlog.Log
	index   *memindex.Index // optional
	entries []*models.MemoryEntry
	byID    map[string]*models.MemoryEntry
	embed   Embedder
	logger  *slog.Logger
}

// Config controls Manager construction.
type Config struct {
	Logger   *slog.Logger
	Index    *memindex.Index // nil disables the secondary index
	Embedder Embedder        // nil disables embedding capture
}

// Open loads the log at path and returns a ready Manager.
func Open(logPath string, cfg Config) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	log, err := eventlog.New(logPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	m := &Manager{
		log:    log,
		index:  cfg.Index,
		byID:   make(map[string]*models.MemoryEntry),
		embed:  cfg.Embedder,
		logger: logger,
	}
	if err := m.reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) reload() error {
	entries, err := m.log.Load()
	if err != nil {
		return fmt.Errorf("load event log: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	m.byID = make(map[string]*models.MemoryEntry, len(entries))
	for _, e := range entries {
		m.byID[e.ID] = e
	}
	return nil
}

// ContentHash computes the stable dedup/index hash for content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

// Record appends a new entry to the log and the in-memory view,
// assigning an id, a content hash, a seed confidence if unset, and
// (when an embedder is configured) an embedding.
func (m *Manager) Record(entry *models.MemoryEntry) (*models.MemoryEntry, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry is nil")
	}
	clone := *entry
	if clone.ID == "" {
		clone.ID = uuid.New().String()
	}
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = time.Now().UTC()
	}
	if clone.Confidence == 0 {
		clone.Confidence = 0.5
	}
	clone.ContentHash = ContentHash(clone.Content)
	if m.embed != nil && len(clone.Embedding) == 0 {
		if vec, err := m.embed.Embed(clone.Content); err != nil {
			m.logger.Warn("embedding backend unavailable; continuing without embedding", "error", err)
		} else {
			clone.Embedding = vec
		}
	}

	if err := m.log.Append(&clone); err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}

	m.mu.Lock()
	m.entries = append(m.entries, &clone)
	m.byID[clone.ID] = &clone
	m.mu.Unlock()

	if m.index != nil {
		if err := m.index.Insert(memindex.EntryMeta{
			ID:         clone.ID,
			Tier:       clone.Tier,
			Confidence: clone.Confidence,
			CreatedAt:  clone.CreatedAt.Unix(),
		}); err != nil {
			m.logger.Warn("secondary index insert failed", "error", err)
		}
	}

	return &clone, nil
}

// RecordBelief is a convenience wrapper that records a Core entry with
// source="belief".
func (m *Manager) RecordBelief(claim string, confidence float64) (*models.MemoryEntry, error) {
	return m.Record(&models.MemoryEntry{
		Tier:       models.TierCore,
		Content:    claim,
		Source:     "belief",
		Confidence: confidence,
		Tags:       []string{"belief"},
	})
}

// RetractBelief records a tombstone entry referencing id. The original
// entry is never rewritten or removed; AllBeliefs excludes retracted ids.
func (m *Manager) RetractBelief(id string) (*models.MemoryEntry, error) {
	m.mu.RLock()
	original, ok := m.byID[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown belief id %q", id)
	}
	return m.Record(&models.MemoryEntry{
		Tier:       models.TierCore,
		Content:    fmt.Sprintf("retraction of %s", original.Content),
		Source:     fmt.Sprintf("belief:retracted:%s", id),
		Confidence: 1,
	})
}

// AllBeliefs returns every active belief: a Core entry with
// source="belief" that has no sibling retraction entry.
func (m *Manager) AllBeliefs() []*models.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	retracted := make(map[string]bool)
	for _, e := range m.entries {
		if id := e.RetractedID(); id != "" {
			retracted[id] = true
		}
	}
	var out []*models.MemoryEntry
	for _, e := range m.entries {
		if e.IsBelief() && !retracted[e.ID] {
			out = append(out, e)
		}
	}
	return out
}

// Active returns every loaded entry that is neither a tombstone marker
// nor an entry a tombstone targets. Retrieval and the sleep pipeline
// both read through Active/ActiveByTier so that retired or forgotten
// memory never resurfaces, while the event log itself keeps every
// tombstone for audit.
func (m *Manager) Active() []*models.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked("")
}

// ActiveByTier is Active scoped to a single tier.
func (m *Manager) ActiveByTier(tier models.Tier) []*models.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked(tier)
}

func (m *Manager) activeLocked(tier models.Tier) []*models.MemoryEntry {
	retired := make(map[string]bool)
	for _, e := range m.entries {
		if id, ok := e.TombstoneTarget(); ok {
			retired[id] = true
		}
	}
	var out []*models.MemoryEntry
	for _, e := range m.entries {
		if tier != "" && e.Tier != tier {
			continue
		}
		if _, isTombstone := e.TombstoneTarget(); isTombstone {
			continue
		}
		if retired[e.ID] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// All returns every loaded entry (including retraction tombstones).
func (m *Manager) All() []*models.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.MemoryEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// ByTier returns every entry in the given tier.
func (m *Manager) ByTier(tier models.Tier) []*models.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.MemoryEntry
	for _, e := range m.entries {
		if e.Tier == tier {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the entry with the given id, if loaded.
func (m *Manager) Find(id string) (*models.MemoryEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[id]
	return e, ok
}

// Count returns the number of loaded entries.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Compact rewrites the log with only the given entries, e.g. after
// sleep-pipeline pruning decides to drop tombstoned/expired entries
// from the active set. It does not mutate already-returned slices.
func (m *Manager) Compact(keep []*models.MemoryEntry) error {
	if err := m.log.Overwrite(keep); err != nil {
		return fmt.Errorf("compact log: %w", err)
	}
	return m.reload()
}

// Wipe removes every entry for the given tier (used by `aigent memory
// wipe --layer`). Passing "" wipes everything.
func (m *Manager) Wipe(tier models.Tier) error {
	m.mu.RLock()
	var keep []*models.MemoryEntry
	for _, e := range m.entries {
		if tier != "" && e.Tier != tier {
			keep = append(keep, e)
		}
	}
	m.mu.RUnlock()
	if tier == "" {
		keep = nil
	}
	return m.Compact(keep)
}

// LogPath returns the canonical event log path.
func (m *Manager) LogPath() string {
	return m.log.Path()
}
