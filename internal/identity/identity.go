// Package identity implements the Identity Kernel (C12): a stateless
// function from memory state plus a pinned .identity.json file to a
// single prompt block prepended to every LLM call. The block is cached
// and only recomposed when the Core tier's content changes.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aigent-dev/aigent/internal/memory"
	"github.com/aigent-dev/aigent/pkg/models"
)

// Pinned is the fixed, user-authored identity document: name, a
// freeform persona description, and values/constraints the assistant
// should never drift from regardless of what memory accumulates.
type Pinned struct {
	Name        string   `json:"name"`
	Persona     string   `json:"persona"`
	Values      []string `json:"values"`
	Constraints []string `json:"constraints"`
}

// Load reads a .identity.json file. A missing file yields a zero
// Pinned value rather than an error: identity is optional until the
// user configures one via onboarding.
func Load(path string) (Pinned, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Pinned{}, nil
		}
		return Pinned{}, fmt.Errorf("read identity file: %w", err)
	}
	var p Pinned
	if err := json.Unmarshal(data, &p); err != nil {
		return Pinned{}, fmt.Errorf("parse identity file: %w", err)
	}
	return p, nil
}

// Kernel composes the pinned identity with the live Core memory tier
// into a single prompt block, recomputed only when Core's content hash
// changes since the last call.
type Kernel struct {
	pinned  Pinned
	manager *memory.Manager

	mu        sync.Mutex
	lastHash  string
	lastBlock string
}

// New creates a Kernel over manager using the given pinned identity.
func New(pinned Pinned, manager *memory.Manager) *Kernel {
	return &Kernel{pinned: pinned, manager: manager}
}

// Block returns the current prompt block, recomposing it only if the
// Core tier has changed since the last call.
func (k *Kernel) Block() string {
	core := k.manager.ActiveByTier(models.TierCore)
	hash := coreHash(core)

	k.mu.Lock()
	defer k.mu.Unlock()
	if hash == k.lastHash && k.lastBlock != "" {
		return k.lastBlock
	}
	k.lastHash = hash
	k.lastBlock = compose(k.pinned, core)
	return k.lastBlock
}

func coreHash(entries []*models.MemoryEntry) string {
	h := sha256.New()
	for _, e := range entries {
		h.Write([]byte(e.ID))
		h.Write([]byte(e.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func compose(p Pinned, core []*models.MemoryEntry) string {
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "You are %s.\n", p.Name)
	}
	if p.Persona != "" {
		b.WriteString(p.Persona)
		b.WriteString("\n")
	}
	if len(p.Values) > 0 {
		b.WriteString("Values:\n")
		for _, v := range p.Values {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}
	if len(p.Constraints) > 0 {
		b.WriteString("Constraints:\n")
		for _, c := range p.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if len(core) > 0 {
		b.WriteString("Core memory:\n")
		for _, e := range core {
			fmt.Fprintf(&b, "- %s\n", e.Content)
		}
	}
	return b.String()
}
