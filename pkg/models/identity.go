package models

import "time"

// IdentityKernel is a derived, cached view of who the agent is. It is
// rebuilt lazily from memory and persisted to a snapshot file for fast
// boot; it is never itself authoritative.
type IdentityKernel struct {
	CoreBeliefs          []string           `json:"core_beliefs"`
	CommunicationStyle   string             `json:"communication_style"`
	Traits               map[string]float64 `json:"traits"`
	LongGoals            []string           `json:"long_goals"`
	RelationshipMilestones []string         `json:"relationship_milestones"`
	BuiltAt              time.Time          `json:"built_at"`
}

// TopTraits returns the n highest-scoring trait names, ties broken by name.
func (k *IdentityKernel) TopTraits(n int) []string {
	if k == nil || n <= 0 {
		return nil
	}
	type kv struct {
		name  string
		score float64
	}
	items := make([]kv, 0, len(k.Traits))
	for name, score := range k.Traits {
		items = append(items, kv{name, score})
	}
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && (items[j].score > items[j-1].score ||
			(items[j].score == items[j-1].score && items[j].name < items[j-1].name)); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	if n > len(items) {
		n = len(items)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = items[i].name
	}
	return out
}
