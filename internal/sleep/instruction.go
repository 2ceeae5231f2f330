package sleep

import (
	"fmt"
	"strings"

	"github.com/aigent-dev/aigent/pkg/models"
)

// InstructionKind is the vocabulary an agentic sleep pass may act in.
type InstructionKind string

const (
	InstructionPromote     InstructionKind = "PROMOTE"
	InstructionRetire      InstructionKind = "RETIRE"
	InstructionMerge       InstructionKind = "MERGE"
	InstructionStyleUpdate InstructionKind = "STYLE_UPDATE"
	InstructionGoalAdd     InstructionKind = "GOAL_ADD"
	InstructionValence     InstructionKind = "VALENCE"
)

// Instruction is one structured action an agentic sleep pass requested.
type Instruction struct {
	Kind     InstructionKind `json:"kind"`
	TargetID string          `json:"target_id,omitempty"`
	MergeIDs []string        `json:"merge_ids,omitempty"`
	Content  string          `json:"content,omitempty"`
	Score    float64         `json:"score,omitempty"`
}

// AgenticSleepInsights is the structured output of one specialist pass
// over a batch of candidate entries.
type AgenticSleepInsights struct {
	Specialist   string        `json:"specialist"`
	Instructions []Instruction `json:"instructions"`
}

// rewrittenTargets returns the set of entry ids that some instruction
// rewrites rather than merely retires: MERGE source ids and VALENCE
// targets. Used to implement "retire loses to rewrite" conflict
// resolution across specialists.
func rewrittenTargets(instructions []Instruction) map[string]bool {
	out := make(map[string]bool)
	for _, instr := range instructions {
		switch instr.Kind {
		case InstructionValence:
			if instr.TargetID != "" {
				out[instr.TargetID] = true
			}
		case InstructionMerge:
			for _, id := range instr.MergeIDs {
				out[id] = true
			}
		}
	}
	return out
}

// resolveConflicts drops any RETIRE instruction whose target is also
// rewritten (merged or revalenced) by another instruction in the same
// set, per the multi-agent synthesis rule: retire loses to rewrite.
func resolveConflicts(instructions []Instruction) []Instruction {
	rewritten := rewrittenTargets(instructions)
	out := make([]Instruction, 0, len(instructions))
	for _, instr := range instructions {
		if instr.Kind == InstructionRetire && rewritten[instr.TargetID] {
			continue
		}
		out = append(out, instr)
	}
	return out
}

// applyInstruction executes one instruction against the memory
// manager, always via Record/RetractBelief-style append-only writes.
func (p *Pipeline) applyInstruction(instr Instruction) error {
	switch instr.Kind {
	case InstructionPromote:
		return p.applyPromote(instr.TargetID)
	case InstructionRetire:
		return p.applyRetire(instr.TargetID)
	case InstructionMerge:
		return p.applyMerge(instr.MergeIDs, instr.Content)
	case InstructionStyleUpdate:
		return p.applyStyleUpdate(instr.Content)
	case InstructionGoalAdd:
		return p.applyGoalAdd(instr.Content)
	case InstructionValence:
		return p.applyValence(instr.TargetID, instr.Score)
	default:
		return fmt.Errorf("sleep: unknown instruction kind %q", instr.Kind)
	}
}

func (p *Pipeline) applyPromote(id string) error {
	original, ok := p.manager.Find(id)
	if !ok {
		return fmt.Errorf("sleep: promote target %q not found", id)
	}
	entry, err := p.manager.Record(&models.MemoryEntry{
		Tier:       models.TierSemantic,
		Content:    original.Content,
		Source:     fmt.Sprintf("sleep:promoted:%s", id),
		Confidence: original.Confidence,
		Valence:    original.Valence,
		Tags:       original.Tags,
	})
	if err != nil {
		return err
	}
	p.notify(entry)
	return nil
}

func (p *Pipeline) applyRetire(id string) error {
	original, ok := p.manager.Find(id)
	if !ok {
		return fmt.Errorf("sleep: retire target %q not found", id)
	}
	if original.Tier == models.TierCore || original.Tier == models.TierUserProfile {
		return fmt.Errorf("sleep: refusing to retire %s entry %q", original.Tier, id)
	}
	entry, err := p.manager.Record(&models.MemoryEntry{
		Tier:       original.Tier,
		Content:    fmt.Sprintf("retired: %s", original.Content),
		Source:     fmt.Sprintf("sleep:retired:%s", id),
		Confidence: 1,
	})
	if err != nil {
		return err
	}
	p.notify(entry)
	return nil
}

func (p *Pipeline) applyMerge(ids []string, content string) error {
	if len(ids) < 2 {
		return fmt.Errorf("sleep: merge requires at least two ids, got %d", len(ids))
	}
	var highest *models.MemoryEntry
	for _, id := range ids {
		e, ok := p.manager.Find(id)
		if !ok {
			return fmt.Errorf("sleep: merge source %q not found", id)
		}
		if highest == nil || tierRank(e.Tier) > tierRank(highest.Tier) {
			highest = e
		}
	}
	if strings.TrimSpace(content) == "" {
		var parts []string
		for _, id := range ids {
			e, _ := p.manager.Find(id)
			parts = append(parts, e.Content)
		}
		content = strings.Join(parts, " / ")
	}
	merged, err := p.manager.Record(&models.MemoryEntry{
		Tier:       highest.Tier,
		Content:    content,
		Source:     fmt.Sprintf("sleep:merged:%s", strings.Join(ids, ",")),
		Confidence: highest.Confidence,
	})
	if err != nil {
		return err
	}
	p.notify(merged)
	for _, id := range ids {
		if e, ok := p.manager.Find(id); ok && (e.Tier == models.TierCore || e.Tier == models.TierUserProfile) {
			continue
		}
		if _, err := p.manager.Record(&models.MemoryEntry{
			Tier:    highest.Tier,
			Content: fmt.Sprintf("merged into %s", merged.ID),
			Source:  fmt.Sprintf("sleep:retired:%s", id),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) applyStyleUpdate(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("sleep: style update has no content")
	}
	entry, err := p.manager.Record(&models.MemoryEntry{
		Tier:       models.TierCore,
		Content:    content,
		Source:     "sleep:style_update",
		Confidence: 0.7,
		Tags:       []string{"style"},
	})
	if err != nil {
		return err
	}
	p.notify(entry)
	return nil
}

func (p *Pipeline) applyGoalAdd(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("sleep: goal add has no content")
	}
	entry, err := p.manager.Record(&models.MemoryEntry{
		Tier:       models.TierCore,
		Content:    content,
		Source:     "sleep:goal_added",
		Confidence: 0.7,
		Tags:       []string{"goal"},
	})
	if err != nil {
		return err
	}
	p.notify(entry)
	return nil
}

func (p *Pipeline) applyValence(id string, score float64) error {
	original, ok := p.manager.Find(id)
	if !ok {
		return fmt.Errorf("sleep: valence target %q not found", id)
	}
	entry, err := p.manager.Record(&models.MemoryEntry{
		Tier:       original.Tier,
		Content:    original.Content,
		Source:     fmt.Sprintf("sleep:valence_update:%s", id),
		Confidence: original.Confidence,
		Valence:    score,
		Tags:       original.Tags,
	})
	if err != nil {
		return err
	}
	p.notify(entry)
	if original.Tier == models.TierCore || original.Tier == models.TierUserProfile {
		return nil
	}
	_, err = p.manager.Record(&models.MemoryEntry{
		Tier:    original.Tier,
		Content: fmt.Sprintf("superseded by valence update %s", entry.ID),
		Source:  fmt.Sprintf("sleep:retired:%s", id),
	})
	return err
}

func tierRank(t models.Tier) int {
	for i, candidate := range models.AllTiers {
		if candidate == t {
			return len(models.AllTiers) - i
		}
	}
	return 0
}
