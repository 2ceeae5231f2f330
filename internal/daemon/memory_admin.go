package daemon

import (
	"encoding/json"
	"fmt"

	"github.com/aigent-dev/aigent/pkg/models"
)

// handleGetMemoryStats backs `aigent memory stats`: per-tier counts
// plus the total active/all-time entry count and the log path the CLI
// can point a user at.
func (s *Server) handleGetMemoryStats(c *conn, req models.Request) error {
	s.sharedMu.Lock()
	stats := models.MemoryStats{
		TotalAll: len(s.manager.All()),
		ByTier:   make(map[models.Tier]int, len(models.AllTiers)),
		LogPath:  s.manager.LogPath(),
	}
	for _, tier := range models.AllTiers {
		n := len(s.manager.ActiveByTier(tier))
		stats.ByTier[tier] = n
		stats.TotalActive += n
	}
	s.sharedMu.Unlock()
	s.metrics.MemoryEntries.Set(float64(stats.TotalActive))

	e, err := bodyEvent(models.EvtMemoryStats, req.ID, stats)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

// handleExportVault backs `aigent memory export-vault`: runs one vault
// projection pass (C3) and reports which artefacts actually changed.
func (s *Server) handleExportVault(c *conn, req models.Request) error {
	if s.cfg.Vault == nil {
		return c.writeEvent(errorEvent(req.ID, fmt.Errorf("vault projector not configured")))
	}
	s.sharedMu.Lock()
	result, err := s.cfg.Vault.Project()
	s.sharedMu.Unlock()
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}

	out := models.VaultExportResult{Files: append(result.Written, result.Unchanged...), Changed: len(result.Written)}
	e, err := bodyEvent(models.EvtVaultExport, req.ID, out)
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(e)
}

// handleWipeMemory backs `aigent memory wipe --layer L --yes`. The
// --yes confirmation is enforced client-side; the daemon just performs
// the wipe of the requested tier against the canonical log.
func (s *Server) handleWipeMemory(c *conn, req models.Request) error {
	var body models.WipeMemoryBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	if body.Layer == "" {
		return c.writeEvent(errorEvent(req.ID, fmt.Errorf("layer is required")))
	}

	s.sharedMu.Lock()
	err := s.manager.Wipe(body.Layer)
	s.sharedMu.Unlock()
	if err != nil {
		return c.writeEvent(errorEvent(req.ID, err))
	}
	return c.writeEvent(ackEvent(req.ID))
}
