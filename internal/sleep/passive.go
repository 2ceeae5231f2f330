package sleep

import (
	"time"

	"github.com/aigent-dev/aigent/pkg/models"
)

// PassiveResult reports the counts of actions the passive pass took.
type PassiveResult struct {
	Promoted  int
	Pruned    int
	Forgotten int
}

// RunPassive runs the no-LLM heuristic consolidation pass: promotes
// Episodic entries to Semantic on repetition/salience/age/confirmation,
// prunes stale low-confidence Semantic entries, and optionally forgets
// stale low-confidence Episodic entries.
func (p *Pipeline) RunPassive() (PassiveResult, error) {
	now := time.Now().UTC()
	var result PassiveResult

	episodic := p.manager.ActiveByTier(models.TierEpisodic)
	hashCounts := make(map[string]int, len(episodic))
	for _, e := range episodic {
		hashCounts[e.ContentHash]++
	}

	for _, e := range episodic {
		if !shouldPromote(e, hashCounts[e.ContentHash], now) {
			continue
		}
		if err := p.applyPromote(e.ID); err != nil {
			p.logger.Warn("passive sleep: promote failed", "id", e.ID, "error", err)
			continue
		}
		result.Promoted++
	}

	for _, s := range p.manager.ActiveByTier(models.TierSemantic) {
		if ageDays(s.CreatedAt, now) > 90 && s.Confidence < 0.5 {
			if err := p.applyRetire(s.ID); err != nil {
				p.logger.Warn("passive sleep: prune failed", "id", s.ID, "error", err)
				continue
			}
			result.Pruned++
		}
	}

	if p.cfg.ForgetEpisodicAfterDays > 0 {
		for _, e := range p.manager.ActiveByTier(models.TierEpisodic) {
			if ageDays(e.CreatedAt, now) > float64(p.cfg.ForgetEpisodicAfterDays) && e.Confidence < p.cfg.ForgetMinConfidence {
				entry, err := p.manager.Record(&models.MemoryEntry{
					Tier:    models.TierEpisodic,
					Content: "forgotten: stale low-confidence episode",
					Source:  "sleep:forgotten:" + e.ID,
				})
				if err != nil {
					p.logger.Warn("passive sleep: forget failed", "id", e.ID, "error", err)
					continue
				}
				p.notify(entry)
				result.Forgotten++
			}
		}
	}

	return result, nil
}

func shouldPromote(e *models.MemoryEntry, repetitions int, now time.Time) bool {
	if repetitions >= 2 {
		return true
	}
	if abs(e.Valence) > 0.3 {
		return true
	}
	if ageDays(e.CreatedAt, now) > 30 {
		return true
	}
	if e.Source == "user-confirmed" {
		return true
	}
	return false
}
