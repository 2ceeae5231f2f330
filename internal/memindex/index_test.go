package memindex

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aigent-dev/aigent/internal/eventlog"
	"github.com/aigent-dev/aigent/pkg/models"
)

func TestInsertGetRemove(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "index.sqlite"), 4, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer idx.Close()

	if err := idx.Insert(EntryMeta{ID: "a", Tier: models.TierCore, Confidence: 0.9, CreatedAt: 1}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	meta, ok := idx.Get("a")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if meta.Tier != models.TierCore {
		t.Errorf("Tier = %v, want core", meta.Tier)
	}

	if err := idx.Remove("a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := idx.Get("a"); ok {
		t.Error("Get() after Remove() ok = true, want false")
	}
}

func TestIDsForTier(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "index.sqlite"), 16, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer idx.Close()

	idx.Insert(EntryMeta{ID: "e1", Tier: models.TierEpisodic, CreatedAt: 1})
	idx.Insert(EntryMeta{ID: "e2", Tier: models.TierEpisodic, CreatedAt: 2})
	idx.Insert(EntryMeta{ID: "c1", Tier: models.TierCore, CreatedAt: 3})

	ids, err := idx.IDsForTier(models.TierEpisodic)
	if err != nil {
		t.Fatalf("IDsForTier() error = %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("len(ids) = %d, want 2", len(ids))
	}
}

func TestRebuildFromLog(t *testing.T) {
	dir := t.TempDir()
	log, err := eventlog.New(filepath.Join(dir, "events.jsonl"), nil)
	if err != nil {
		t.Fatalf("eventlog.New() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		log.Append(&models.MemoryEntry{ID: string(rune('a' + i)), Tier: models.TierSemantic, CreatedAt: time.Now()})
	}

	idx, err := Open(filepath.Join(dir, "index.sqlite"), 16, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer idx.Close()

	if err := idx.RebuildFromLog(log); err != nil {
		t.Fatalf("RebuildFromLog() error = %v", err)
	}
	ids, err := idx.IDsForTier(models.TierSemantic)
	if err != nil {
		t.Fatalf("IDsForTier() error = %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("len(ids) = %d, want 3", len(ids))
	}
}

func TestStatsHitRate(t *testing.T) {
	dir := t.TempDir()
	idx, err := Open(filepath.Join(dir, "index.sqlite"), 16, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer idx.Close()

	idx.Insert(EntryMeta{ID: "a", Tier: models.TierCore, CreatedAt: 1})
	idx.Get("a")
	idx.Get("missing")

	stats := idx.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
}
