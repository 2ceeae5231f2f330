// Package models defines the core data types shared across Aigent's
// memory engine, tool executor, and daemon.
package models

import (
	"strings"
	"time"
)

// Tier is the semantic class of a MemoryEntry. It governs prompt
// injection priority and sleep-pipeline behavior.
type Tier string

const (
	TierCore         Tier = "core"
	TierUserProfile  Tier = "user_profile"
	TierReflective   Tier = "reflective"
	TierSemantic     Tier = "semantic"
	TierProcedural   Tier = "procedural"
	TierEpisodic     Tier = "episodic"
)

// AllTiers lists every tier in priority order (highest first), used by
// the vault projector and retrieval scorer.
var AllTiers = []Tier{TierCore, TierUserProfile, TierReflective, TierSemantic, TierProcedural, TierEpisodic}

// MemoryEntry is the primary record of the event log.
type MemoryEntry struct {
	ID           string    `json:"id"`
	Tier         Tier      `json:"tier"`
	Content      string    `json:"content"`
	Source       string    `json:"source"`
	Confidence   float64   `json:"confidence"`
	Valence      float64   `json:"valence"`
	CreatedAt    time.Time `json:"created_at"`
	Tags         []string  `json:"tags,omitempty"`
	Embedding    []float32 `json:"embedding,omitempty"`
	ContentHash  string    `json:"content_hash"`
}

// IsRetraction reports whether this entry is a belief-retraction tombstone.
func (e *MemoryEntry) IsRetraction() bool {
	return e != nil && len(e.Source) > len("belief:retracted:") && e.Source[:len("belief:retracted:")] == "belief:retracted:"
}

// RetractedID returns the id a retraction entry refers to, or "".
func (e *MemoryEntry) RetractedID() string {
	const prefix = "belief:retracted:"
	if e == nil || len(e.Source) <= len(prefix) || e.Source[:len(prefix)] != prefix {
		return ""
	}
	return e.Source[len(prefix):]
}

// IsBelief reports whether the entry is a (not necessarily active) belief.
func (e *MemoryEntry) IsBelief() bool {
	return e != nil && e.Tier == TierCore && e.Source == "belief"
}

// tombstonePrefixes are the source prefixes that mark an entry as a
// provenance record retiring some other entry, rather than live memory
// content. New tombstone kinds (e.g. from the sleep pipeline) are added
// here rather than introducing a separate "deleted" flag, keeping the
// event log itself append-only and the tombstone fully auditable.
var tombstonePrefixes = []string{"belief:retracted:", "sleep:retired:", "sleep:forgotten:"}

// TombstoneTarget reports whether this entry is a tombstone and, if so,
// the id of the entry it retires.
func (e *MemoryEntry) TombstoneTarget() (string, bool) {
	if e == nil {
		return "", false
	}
	for _, prefix := range tombstonePrefixes {
		if strings.HasPrefix(e.Source, prefix) {
			return strings.TrimPrefix(e.Source, prefix), true
		}
	}
	return "", false
}

// HasTag reports whether the entry carries the given tag.
func (e *MemoryEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
