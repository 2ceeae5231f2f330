package daemon

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aigent-dev/aigent/pkg/models"
)

func TestHandleGetMemoryStats(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	if _, err := srv.manager.RecordBelief("likes tea", 0.9); err != nil {
		t.Fatalf("RecordBelief: %v", err)
	}

	c := dial(t, socket)
	defer c.close()
	c.enc.Encode(models.Request{Kind: models.ReqGetMemoryStats, ID: "1"})

	var e models.Event
	if err := c.dec.Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != models.EvtMemoryStats {
		t.Fatalf("kind = %v, want memory_stats", e.Kind)
	}
	var stats models.MemoryStats
	if err := json.Unmarshal(e.Body, &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.ByTier[models.TierCore] != 1 {
		t.Errorf("ByTier[core] = %d, want 1", stats.ByTier[models.TierCore])
	}
}

func TestHandleExportVaultWithoutProjectorErrors(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	c := dial(t, socket)
	defer c.close()
	c.enc.Encode(models.Request{Kind: models.ReqExportVault, ID: "1"})

	var e models.Event
	if err := c.dec.Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != models.EvtError {
		t.Errorf("kind = %v, want error when no vault projector is configured", e.Kind)
	}
}

func TestHandleWipeMemory(t *testing.T) {
	srv, socket := newTestServer(t)
	defer srv.Shutdown(context.Background())

	if _, err := srv.manager.RecordBelief("likes tea", 0.9); err != nil {
		t.Fatalf("RecordBelief: %v", err)
	}

	c := dial(t, socket)
	defer c.close()
	body, _ := json.Marshal(models.WipeMemoryBody{Layer: models.TierCore})
	c.enc.Encode(models.Request{Kind: models.ReqWipeMemory, ID: "1", Body: body})

	var e models.Event
	if err := c.dec.Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Kind != models.EvtAck {
		t.Fatalf("kind = %v, want ack", e.Kind)
	}
	if n := len(srv.manager.ActiveByTier(models.TierCore)); n != 0 {
		t.Errorf("ActiveByTier(core) = %d entries, want 0 after wipe", n)
	}
}
