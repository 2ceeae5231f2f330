package sleep

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aigent-dev/aigent/internal/llm"
	"github.com/aigent-dev/aigent/pkg/models"
)

const agenticSystemPrompt = `You are the sleep-phase consolidation pass for a long-running
personal assistant's memory. You will be shown the assistant's identity and a
sample of recent memory entries, each with an id. Decide what should happen to
them. Respond with ONLY a JSON array of instructions of the form:
[{"kind": "PROMOTE", "target_id": "..."},
 {"kind": "RETIRE", "target_id": "..."},
 {"kind": "MERGE", "merge_ids": ["...", "..."], "content": "..."},
 {"kind": "STYLE_UPDATE", "content": "..."},
 {"kind": "GOAL_ADD", "content": "..."},
 {"kind": "VALENCE", "target_id": "...", "score": 0.0}]
Only act on entries you were shown. Never invent ids. Prefer leaving an entry
untouched over guessing. Return an empty array if nothing should change.`

const maxSampleEntries = 40

// RunSingleAgent asks one LLM call to issue structured sleep
// instructions over a sample of recent Episodic/Reflective entries,
// then applies each instruction as an append-only log write. With no
// LLM client configured, or when the call fails, it falls back to a
// heuristic summarizer rather than stalling the sleep cycle.
func (p *Pipeline) RunSingleAgent(ctx context.Context) ([]Instruction, error) {
	candidates := p.sampleCandidates()
	if len(candidates) == 0 {
		return nil, nil
	}
	if p.client == nil {
		p.logger.Warn("sleep: no LLM client configured; using heuristic fallback for agentic sleep")
		return p.applyAll(p.heuristicFallback(candidates)), nil
	}
	instructions, err := p.requestInstructions(ctx, agenticSystemPrompt, candidates)
	if err != nil {
		p.logger.Warn("sleep: agentic LLM call failed; using heuristic fallback", "error", err)
		return p.applyAll(p.heuristicFallback(candidates)), nil
	}
	return p.applyAll(instructions), nil
}

// heuristicFallback derives the same bullet-point judgments RunPassive
// would make — promote on repetition/salience/age/confirmation, retire
// stale low-confidence Semantic entries — but scoped to the candidates
// it is given (the agentic sample, or one multi-agent batch) rather
// than the full active set, so a down LLM still lets one
// sleep cycle make progress instead of producing nothing.
func (p *Pipeline) heuristicFallback(candidates []*models.MemoryEntry) []Instruction {
	now := time.Now()
	hashCounts := make(map[string]int, len(candidates))
	for _, e := range candidates {
		hashCounts[e.ContentHash]++
	}
	var instructions []Instruction
	for _, e := range candidates {
		switch {
		case e.Tier == models.TierEpisodic && shouldPromote(e, hashCounts[e.ContentHash], now):
			instructions = append(instructions, Instruction{Kind: InstructionPromote, TargetID: e.ID})
		case e.Tier == models.TierSemantic && ageDays(e.CreatedAt, now) > 90 && e.Confidence < 0.5:
			instructions = append(instructions, Instruction{Kind: InstructionRetire, TargetID: e.ID})
		}
	}
	return instructions
}

// sampleCandidates returns the most recent Episodic and Reflective
// entries, most recent first, capped at maxSampleEntries.
func (p *Pipeline) sampleCandidates() []*models.MemoryEntry {
	candidates := append(p.manager.ActiveByTier(models.TierEpisodic), p.manager.ActiveByTier(models.TierReflective)...)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.After(candidates[j].CreatedAt) })
	if len(candidates) > maxSampleEntries {
		candidates = candidates[:maxSampleEntries]
	}
	return candidates
}

func (p *Pipeline) requestInstructions(ctx context.Context, systemPrompt string, candidates []*models.MemoryEntry) ([]Instruction, error) {
	prompt := buildAgenticPrompt(p.cfg.IdentitySummary, candidates)
	raw, err := p.client.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}, llm.Options{})
	if err != nil {
		return nil, fmt.Errorf("sleep: agentic LLM call failed: %w", err)
	}
	var instructions []Instruction
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &instructions); err != nil {
		return nil, fmt.Errorf("sleep: agentic output unparseable: %w", err)
	}
	return instructions, nil
}

func buildAgenticPrompt(identity string, candidates []*models.MemoryEntry) string {
	var b strings.Builder
	if identity != "" {
		b.WriteString("Identity:\n")
		b.WriteString(identity)
		b.WriteString("\n\n")
	}
	b.WriteString("Candidate entries:\n")
	for _, e := range candidates {
		fmt.Fprintf(&b, "- id=%s tier=%s confidence=%.2f valence=%.2f content=%q\n",
			e.ID, e.Tier, e.Confidence, e.Valence, e.Content)
	}
	return b.String()
}

// applyAll applies every instruction, logging and skipping any that
// fail (an unknown id, an invalid merge, etc.) without aborting the
// rest of the batch.
func (p *Pipeline) applyAll(instructions []Instruction) []Instruction {
	applied := make([]Instruction, 0, len(instructions))
	for _, instr := range resolveConflicts(instructions) {
		if err := p.applyInstruction(instr); err != nil {
			p.logger.Warn("sleep: instruction failed", "kind", instr.Kind, "error", err)
			continue
		}
		applied = append(applied, instr)
	}
	return applied
}
