package sleep

import (
	"context"
	"sync"

	"github.com/aigent-dev/aigent/pkg/models"
)

// specialists are the four parallel lenses the nightly multi-agent
// pass runs per batch; each sees the same batch but is prompted to
// focus on a different facet of memory.
var specialists = []struct {
	name   string
	prompt string
}{
	{"identity", "Focus on communication style and long-term goals. Prefer STYLE_UPDATE and GOAL_ADD."},
	{"relationships", "Focus on relationship facts and their emotional charge. Prefer MERGE and VALENCE."},
	{"knowledge", "Focus on factual/semantic durability. Prefer PROMOTE and RETIRE of stale facts."},
	{"reflections", "Focus on the assistant's own reflective insights. Prefer VALENCE and RETIRE of shallow reflections."},
}

// MultiAgentResult reports what the nightly pass did, including any
// batches that fell back to single-agent mode.
type MultiAgentResult struct {
	BatchesRun      int
	Applied         []Instruction
	FallbackBatches int
	TotalFallback   bool
}

// RunMultiAgent partitions active Episodic/Reflective/Semantic entries
// into batches of cfg.MultiAgentBatchSize, replicates Core/UserProfile
// into every batch, runs the four specialists in parallel per batch,
// synthesizes their insights with "retire loses to rewrite" conflict
// resolution, and applies the merged action list. A batch where any one
// specialist fails falls back to a single-agent pass over that whole
// batch (heuristic if the LLM call fails too); if every batch fails,
// every candidate has been through that fallback and TotalFallback is
// set.
func (p *Pipeline) RunMultiAgent(ctx context.Context) (MultiAgentResult, error) {
	if p.client == nil {
		return MultiAgentResult{}, nil
	}

	batches := p.partitionBatches()
	if len(batches) == 0 {
		return MultiAgentResult{}, nil
	}

	var result MultiAgentResult
	for _, batch := range batches {
		result.BatchesRun++
		insights, failed := p.runSpecialists(ctx, batch)
		if failed > 0 {
			// At least one specialist failed for this batch: the
			// partial synthesis it would produce is unreliable, so the
			// whole batch falls back to single-agent mode.
			instr, err := p.requestInstructions(ctx, agenticSystemPrompt, batch)
			if err != nil {
				p.logger.Warn("sleep: batch single-agent fallback failed; using heuristic fallback", "error", err)
				instr = p.heuristicFallback(batch)
			}
			result.FallbackBatches++
			result.Applied = append(result.Applied, p.applyAll(instr)...)
			continue
		}
		var merged []Instruction
		for _, insight := range insights {
			merged = append(merged, insight.Instructions...)
		}
		result.Applied = append(result.Applied, p.applyAll(merged)...)
	}

	if result.BatchesRun > 0 && result.FallbackBatches == result.BatchesRun {
		result.TotalFallback = true
	}
	return result, nil
}

// partitionBatches groups active Episodic/Reflective/Semantic entries
// into fixed-size batches, with Core and UserProfile entries
// replicated into every batch so each specialist always sees full
// identity context.
func (p *Pipeline) partitionBatches() [][]*models.MemoryEntry {
	pinned := append(p.manager.ActiveByTier(models.TierCore), p.manager.ActiveByTier(models.TierUserProfile)...)
	rest := append(p.manager.ActiveByTier(models.TierEpisodic), p.manager.ActiveByTier(models.TierReflective)...)
	rest = append(rest, p.manager.ActiveByTier(models.TierSemantic)...)
	if len(rest) == 0 {
		return nil
	}

	size := p.cfg.MultiAgentBatchSize
	var batches [][]*models.MemoryEntry
	for start := 0; start < len(rest); start += size {
		end := start + size
		if end > len(rest) {
			end = len(rest)
		}
		batch := make([]*models.MemoryEntry, 0, len(pinned)+(end-start))
		batch = append(batch, pinned...)
		batch = append(batch, rest[start:end]...)
		batches = append(batches, batch)
	}
	return batches
}

// runSpecialists fans the four specialists out in parallel over one
// batch and reports how many of them failed (LLM call or parse error)
// alongside the insights the rest produced, so the caller can tell a
// clean full house apart from a partial result — spec §4.7 treats any
// single specialist failure in a batch as grounds to fall back to
// single-agent mode for the whole batch, not just a total wipeout.
func (p *Pipeline) runSpecialists(ctx context.Context, batch []*models.MemoryEntry) (insights []AgenticSleepInsights, failed int) {
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, spec := range specialists {
		spec := spec
		wg.Add(1)
		go func() {
			defer wg.Done()
			systemPrompt := agenticSystemPrompt + "\n\n" + spec.prompt
			instructions, err := p.requestInstructions(ctx, systemPrompt, batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Warn("sleep: specialist failed", "specialist", spec.name, "error", err)
				failed++
				return
			}
			insights = append(insights, AgenticSleepInsights{Specialist: spec.name, Instructions: instructions})
		}()
	}
	wg.Wait()
	return insights, failed
}
