package retrieval

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aigent-dev/aigent/pkg/models"
)

// maxBeliefsInPromptDefault is the spec's max_beliefs_in_prompt default.
const maxBeliefsInPromptDefault = 5

// ComposeInput gathers everything the prompt composer needs. KVBlock is
// the pre-rendered contents of core_summary.yaml + user_profile.yaml
// (the vault's own YAML bytes, concatenated by the caller); it is
// treated as an opaque pinned block at nominal score 2.0.
type ComposeInput struct {
	KVBlock        string
	Identity       *models.IdentityKernel
	Beliefs        []*models.MemoryEntry // active beliefs (AllBeliefs())
	MaxBeliefs     int                    // defaults to 5
	RelationalRows []RelationalRow
	Ranked         []Scored
	RecentTurns    []models.ConversationTurn
	CurrentMessage string
	Now            time.Time
}

// RelationalRow is one line of the compact cross-tier association
// table: a topic/tag and the distinct tiers that co-occur under it.
type RelationalRow struct {
	Topic string
	Tiers []string
}

// Compose assembles the final prompt in the spec's fixed pinned order:
// KV injection, identity, beliefs, relational matrix, ranked context,
// recent turns, current message.
func Compose(in ComposeInput) string {
	var b strings.Builder

	if strings.TrimSpace(in.KVBlock) != "" {
		b.WriteString("KV:\n")
		b.WriteString(in.KVBlock)
		b.WriteString("\n\n")
	}

	if in.Identity != nil {
		writeIdentityBlock(&b, in.Identity)
	}

	maxBeliefs := in.MaxBeliefs
	if maxBeliefs <= 0 {
		maxBeliefs = maxBeliefsInPromptDefault
	}
	writeBeliefsBlock(&b, in.Beliefs, maxBeliefs, in.Now)

	if len(in.RelationalRows) > 0 {
		writeRelationalBlock(&b, in.RelationalRows)
	}

	if len(in.Ranked) > 0 {
		b.WriteString("CONTEXT:\n")
		for _, s := range in.Ranked {
			fmt.Fprintf(&b, "- (%s, score=%.3f) %s\n", s.Entry.Tier, s.Score, s.Entry.Content)
		}
		b.WriteString("\n")
	}

	if len(in.RecentTurns) > 0 {
		b.WriteString("RECENT TURNS:\n")
		for _, t := range in.RecentTurns {
			fmt.Fprintf(&b, "%s: %s\n", t.Source, t.UserText)
			if t.AssistantText != "" {
				fmt.Fprintf(&b, "assistant: %s\n", t.AssistantText)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("MESSAGE:\n")
	b.WriteString(in.CurrentMessage)

	return b.String()
}

func writeIdentityBlock(b *strings.Builder, k *models.IdentityKernel) {
	b.WriteString("IDENTITY:\n")
	if k.CommunicationStyle != "" {
		fmt.Fprintf(b, "style: %s\n", k.CommunicationStyle)
	}
	if traits := k.TopTraits(3); len(traits) > 0 {
		fmt.Fprintf(b, "traits: %s\n", strings.Join(traits, ", "))
	}
	if len(k.LongGoals) > 0 {
		fmt.Fprintf(b, "long_goals: %s\n", strings.Join(k.LongGoals, "; "))
	}
	b.WriteString("\n")
}

// beliefPromptScore is the spec's composite ordering for MY_BELIEFS:
// 0.6*confidence + 0.25*recency_factor + 0.15*valence.
func beliefPromptScore(e *models.MemoryEntry, now time.Time) float64 {
	days := now.Sub(e.CreatedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	recencyFactor := 1 / (1 + days)
	return 0.6*e.Confidence + 0.25*recencyFactor + 0.15*e.Valence
}

func writeBeliefsBlock(b *strings.Builder, beliefs []*models.MemoryEntry, max int, now time.Time) {
	if len(beliefs) == 0 {
		return
	}
	ordered := make([]*models.MemoryEntry, len(beliefs))
	copy(ordered, beliefs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return beliefPromptScore(ordered[i], now) > beliefPromptScore(ordered[j], now)
	})
	if len(ordered) > max {
		ordered = ordered[:max]
	}

	b.WriteString("MY_BELIEFS:\n")
	for _, e := range ordered {
		fmt.Fprintf(b, "- %s\n", e.Content)
	}
	b.WriteString("\n")
}

func writeRelationalBlock(b *strings.Builder, rows []RelationalRow) {
	b.WriteString("RELATIONAL MATRIX:\n")
	for _, row := range rows {
		fmt.Fprintf(b, "- %s: %s\n", row.Topic, strings.Join(row.Tiers, ", "))
	}
	b.WriteString("\n")
}

// BuildRelationalMatrix computes a compact cross-tier association table
// from entries' co-occurring tags: for each tag seen on more than one
// tier, list the distinct tiers it spans.
func BuildRelationalMatrix(entries []*models.MemoryEntry) []RelationalRow {
	tiersByTag := make(map[string]map[models.Tier]bool)
	for _, e := range entries {
		for _, tag := range e.Tags {
			if tiersByTag[tag] == nil {
				tiersByTag[tag] = make(map[models.Tier]bool)
			}
			tiersByTag[tag][e.Tier] = true
		}
	}

	var rows []RelationalRow
	for tag, tiers := range tiersByTag {
		if len(tiers) < 2 {
			continue
		}
		names := make([]string, 0, len(tiers))
		for t := range tiers {
			names = append(names, string(t))
		}
		sort.Strings(names)
		rows = append(rows, RelationalRow{Topic: tag, Tiers: names})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Topic < rows[j].Topic })
	return rows
}
