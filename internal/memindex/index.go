// Package memindex implements the optional secondary index over memory
// entries (C2): a sqlite-backed id/tier lookup fronted by a
// fixed-capacity LRU read cache. RebuildFromLog repopulates the index
// from the event log and Reset removes its file; Open does neither, so
// a missing, corrupt or stale index file is not rebuilt automatically.
package memindex

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aigent-dev/aigent/internal/eventlog"
	"github.com/aigent-dev/aigent/pkg/models"
)

// EntryMeta is the subset of a MemoryEntry the index tracks.
type EntryMeta struct {
	ID         string
	Tier       models.Tier
	Confidence float64
	CreatedAt  int64 // unix seconds
}

// Index is the secondary store at <data>/memory/index.<ext>.
type Index struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *slog.Logger
	cache  *lru

	hits   int64
	misses int64
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id TEXT PRIMARY KEY,
	tier TEXT NOT NULL,
	confidence REAL NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_tier ON entries(tier);
`

// Open opens (creating if absent) the sqlite index at path. cacheCap
// defaults to 256 when <= 0.
func Open(path string, cacheCap int, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheCap <= 0 {
		cacheCap = 256
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply index schema: %w", err)
	}
	return &Index{
		db:     db,
		path:   path,
		logger: logger,
		cache:  newLRU(cacheCap),
	}, nil
}

// Insert upserts an entry's metadata.
func (idx *Index) Insert(meta EntryMeta) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	_, err := idx.db.Exec(`
		INSERT INTO entries (id, tier, confidence, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET tier=excluded.tier, confidence=excluded.confidence, created_at=excluded.created_at
	`, meta.ID, string(meta.Tier), meta.Confidence, meta.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert index entry: %w", err)
	}
	idx.cache.set(meta.ID, meta)
	return nil
}

// Remove deletes an entry from the index.
func (idx *Index) Remove(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, err := idx.db.Exec(`DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove index entry: %w", err)
	}
	idx.cache.remove(id)
	return nil
}

// Get returns cached metadata for id, tracking hit/miss statistics.
func (idx *Index) Get(id string) (EntryMeta, bool) {
	idx.mu.Lock()
	if meta, ok := idx.cache.get(id); ok {
		idx.hits++
		idx.mu.Unlock()
		return meta, true
	}
	idx.misses++
	idx.mu.Unlock()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	row := idx.db.QueryRow(`SELECT id, tier, confidence, created_at FROM entries WHERE id = ?`, id)
	var meta EntryMeta
	var tier string
	if err := row.Scan(&meta.ID, &tier, &meta.Confidence, &meta.CreatedAt); err != nil {
		return EntryMeta{}, false
	}
	meta.Tier = models.Tier(tier)
	idx.cache.set(id, meta)
	return meta, true
}

// IDsForTier returns every entry id currently indexed under tier.
func (idx *Index) IDsForTier(tier models.Tier) ([]string, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rows, err := idx.db.Query(`SELECT id FROM entries WHERE tier = ?`, string(tier))
	if err != nil {
		return nil, fmt.Errorf("query tier ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats reports cumulative hit/miss counters and the derived hit rate.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

// Stats returns the cache's cumulative read statistics.
func (idx *Index) Stats() Stats {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	total := idx.hits + idx.misses
	rate := 0.0
	if total > 0 {
		rate = float64(idx.hits) / float64(total)
	}
	return Stats{Hits: idx.hits, Misses: idx.misses, HitRate: rate}
}

// Reset removes the index file on disk; a missing file is not an
// error. A later Open creates a fresh, empty index at path.
func Reset(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove index file: %w", err)
	}
	return nil
}

// RebuildFromLog clears the index and repopulates it by scanning log.
// Used both for initial population and for recovery from a corrupt or
// schema-mismatched index file.
func (idx *Index) RebuildFromLog(log *eventlog.Log) error {
	idx.mu.Lock()
	if _, err := idx.db.Exec(`DELETE FROM entries`); err != nil {
		idx.mu.Unlock()
		return fmt.Errorf("clear index: %w", err)
	}
	idx.cache = newLRU(idx.cache.capacity)
	idx.mu.Unlock()

	entries, err := log.Load()
	if err != nil {
		return fmt.Errorf("load log for rebuild: %w", err)
	}
	for _, e := range entries {
		if err := idx.Insert(EntryMeta{
			ID:         e.ID,
			Tier:       e.Tier,
			Confidence: e.Confidence,
			CreatedAt:  e.CreatedAt.Unix(),
		}); err != nil {
			idx.logger.Warn("rebuild: failed to insert entry", "id", e.ID, "error", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}
