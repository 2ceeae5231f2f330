package vault

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

// defaultTierLimit is the number of entries kept per tier artefact
// ("kv_tier_limit" in the spec).
const defaultTierLimit = 15

// artefactEntry is one memory entry as rendered into a root YAML file.
type artefactEntry struct {
	ID         string   `yaml:"id"`
	Content    string   `yaml:"content"`
	Source     string   `yaml:"source"`
	Confidence float64  `yaml:"confidence"`
	Valence    float64  `yaml:"valence"`
	CreatedAt  string   `yaml:"created_at"`
	Tags       []string `yaml:"tags,omitempty"`
}

// artefactDoc is the root document shape shared by the three tier YAML
// files. Checksum is left empty (and thus omitted by yaml's omitempty)
// while hashing the body, then set before the final marshal.
type artefactDoc struct {
	LastUpdated string          `yaml:"last_updated"`
	Checksum    string          `yaml:"checksum,omitempty"`
	Entries     []artefactEntry `yaml:"entries"`
}

// Projector writes the vault's root artefacts and Obsidian-style
// sub-artefacts from the current memory state.
type Projector struct {
	dir       string
	manager   *memory.Manager
	logger    *slog.Logger
	tierLimit int
	sums      *checksums
}

// Option configures a Projector.
type Option func(*Projector)

// WithLogger sets the projector's logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) { p.logger = l }
}

// WithTierLimit overrides the default per-tier entry cap (15).
func WithTierLimit(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.tierLimit = n
		}
	}
}

// NewProjector creates a projector writing under dir.
func NewProjector(dir string, m *memory.Manager, opts ...Option) *Projector {
	p := &Projector{
		dir:       dir,
		manager:   m,
		logger:    slog.Default(),
		tierLimit: defaultTierLimit,
		sums:      newChecksums(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProjectResult reports which root artefacts actually changed on disk.
type ProjectResult struct {
	Written   []string
	Unchanged []string
}

// KVBlock reads the core_summary.yaml and user_profile.yaml artefacts
// and concatenates their raw bytes, for injection as retrieval's
// opaque pinned KV block. A missing artefact (nothing projected yet)
// is treated as empty rather than an error.
func (p *Projector) KVBlock() string {
	var b strings.Builder
	for _, file := range []string{ArtefactCore, ArtefactUserProfile} {
		data, err := os.ReadFile(filepath.Join(p.dir, file))
		if err != nil {
			continue
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String()
}

// Project runs one full vault projection: the three tier YAML files,
// MEMORY.md, and the Obsidian sub-artefact tree.
func (p *Projector) Project() (ProjectResult, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return ProjectResult{}, fmt.Errorf("create vault dir: %w", err)
	}

	var result ProjectResult
	tierFiles := map[string]models.Tier{
		ArtefactCore:        models.TierCore,
		ArtefactUserProfile: models.TierUserProfile,
		ArtefactReflective:  models.TierReflective,
	}
	// Stable order for deterministic logging/tests.
	for _, file := range []string{ArtefactCore, ArtefactUserProfile, ArtefactReflective} {
		tier := tierFiles[file]
		changed, err := p.projectTier(file, tier)
		if err != nil {
			return result, fmt.Errorf("project %s: %w", file, err)
		}
		if changed {
			result.Written = append(result.Written, file)
		} else {
			result.Unchanged = append(result.Unchanged, file)
		}
	}

	if err := p.composeIndex(); err != nil {
		return result, fmt.Errorf("compose MEMORY.md: %w", err)
	}

	if err := p.regenerateSubArtefacts(); err != nil {
		return result, fmt.Errorf("regenerate sub-artefacts: %w", err)
	}

	return result, nil
}

func (p *Projector) topEntries(tier models.Tier) []*models.MemoryEntry {
	entries := p.manager.ByTier(tier)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Valence > b.Valence
	})
	if len(entries) > p.tierLimit {
		entries = entries[:p.tierLimit]
	}
	return entries
}

// projectTier writes one root tier artefact, returning true if its
// content changed on disk.
func (p *Projector) projectTier(file string, tier models.Tier) (bool, error) {
	entries := p.topEntries(tier)
	doc := artefactDoc{
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
		Entries:     make([]artefactEntry, 0, len(entries)),
	}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, artefactEntry{
			ID:         e.ID,
			Content:    e.Content,
			Source:     e.Source,
			Confidence: e.Confidence,
			Valence:    e.Valence,
			CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
			Tags:       e.Tags,
		})
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("marshal body: %w", err)
	}
	sum := Checksum(body)

	path := filepath.Join(p.dir, file)
	if existingSum, ok := readChecksumField(path); ok && existingSum == sum {
		p.sums.record(file, sum)
		return false, nil
	}

	doc.Checksum = sum
	final, err := yaml.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("marshal final: %w", err)
	}
	if err := writeFileAtomic(path, final); err != nil {
		return false, err
	}
	p.sums.record(file, sum)
	return true, nil
}

// readChecksumField extracts the checksum field from an existing
// artefact file on disk, if any.
func readChecksumField(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	var doc artefactDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", false
	}
	sum := doc.Checksum
	if sum == "" {
		return "", false
	}
	return sum, true
}

// composeIndex writes MEMORY.md, a prose artefact cross-referencing the
// three tier YAML files. MEMORY.md is not checksum-gated; it is cheap
// to regenerate and is never watched for human edits.
func (p *Projector) composeIndex() error {
	core := p.topEntries(models.TierCore)
	profile := p.topEntries(models.TierUserProfile)
	reflective := p.topEntries(models.TierReflective)

	var b fileBuilder
	b.line("# Memory")
	b.line("")
	b.line(fmt.Sprintf("_Last updated %s._", time.Now().UTC().Format(time.RFC3339)))
	b.line("")
	b.line(fmt.Sprintf("This file is generated from [%s](%s), [%s](%s), and [%s](%s). Edit those, not this one.",
		ArtefactCore, ArtefactCore, ArtefactUserProfile, ArtefactUserProfile, ArtefactReflective, ArtefactReflective))
	b.line("")
	b.section("Core", core)
	b.section("User profile", profile)
	b.section("Reflective opinions", reflective)

	return writeFileAtomic(filepath.Join(p.dir, ArtefactIndex), []byte(b.String()))
}

// regenerateSubArtefacts clears and rebuilds the Obsidian-style
// sub-artefact tree (notes/, tiers/, daily/, topics/) without touching
// the four root artefacts.
func (p *Projector) regenerateSubArtefacts() error {
	for _, sub := range []string{"notes", "tiers", "daily", "topics"} {
		dir := filepath.Join(p.dir, sub)
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clean %s: %w", sub, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}

	all := p.manager.All()

	if err := p.writeTierIndexes(all); err != nil {
		return err
	}
	if err := p.writeDailyNotes(all); err != nil {
		return err
	}
	if err := p.writeTopicPages(all); err != nil {
		return err
	}
	return nil
}

func (p *Projector) writeTierIndexes(all []*models.MemoryEntry) error {
	byTier := make(map[models.Tier][]*models.MemoryEntry)
	for _, e := range all {
		byTier[e.Tier] = append(byTier[e.Tier], e)
	}
	for _, tier := range models.AllTiers {
		entries := byTier[tier]
		var b fileBuilder
		b.line(fmt.Sprintf("# %s", tier))
		b.line("")
		for _, e := range entries {
			b.line(fmt.Sprintf("- [%s] %s", e.ID, clampPreview(e.Content)))
		}
		path := filepath.Join(p.dir, "tiers", string(tier)+".md")
		if err := writeFileAtomic(path, []byte(b.String())); err != nil {
			return fmt.Errorf("write tier index %s: %w", tier, err)
		}
	}
	return nil
}

func (p *Projector) writeDailyNotes(all []*models.MemoryEntry) error {
	byDay := make(map[string][]*models.MemoryEntry)
	for _, e := range all {
		day := e.CreatedAt.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], e)
	}
	for day, entries := range byDay {
		var b fileBuilder
		b.line(fmt.Sprintf("# %s", day))
		b.line("")
		for _, e := range entries {
			b.line(fmt.Sprintf("- (%s) %s", e.Tier, clampPreview(e.Content)))
		}
		path := filepath.Join(p.dir, "daily", day+".md")
		if err := writeFileAtomic(path, []byte(b.String())); err != nil {
			return fmt.Errorf("write daily note %s: %w", day, err)
		}
	}
	return nil
}

func (p *Projector) writeTopicPages(all []*models.MemoryEntry) error {
	byTag := make(map[string][]*models.MemoryEntry)
	for _, e := range all {
		for _, tag := range e.Tags {
			byTag[tag] = append(byTag[tag], e)
		}
	}
	for tag, entries := range byTag {
		var b fileBuilder
		b.line(fmt.Sprintf("# %s", tag))
		b.line("")
		for _, e := range entries {
			b.line(fmt.Sprintf("- [%s] %s", e.ID, clampPreview(e.Content)))
		}
		path := filepath.Join(p.dir, "topics", tag+".md")
		if err := writeFileAtomic(path, []byte(b.String())); err != nil {
			return fmt.Errorf("write topic page %s: %w", tag, err)
		}
	}
	return nil
}

// writeFileAtomic is the tmp-file-then-rename pattern used throughout
// the daemon's durability-sensitive writers.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

type fileBuilder struct {
	s string
}

func (b *fileBuilder) line(s string) {
	b.s += s + "\n"
}

func (b *fileBuilder) section(title string, entries []*models.MemoryEntry) {
	b.line(fmt.Sprintf("## %s", title))
	b.line("")
	if len(entries) == 0 {
		b.line("_none yet_")
		b.line("")
		return
	}
	for _, e := range entries {
		b.line(fmt.Sprintf("- %s", clampPreview(e.Content)))
	}
	b.line("")
}

func (b *fileBuilder) String() string {
	return b.s
}
