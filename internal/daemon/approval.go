package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aigent-dev/aigent/pkg/models"
	"github.com/google/uuid"
)

// ApprovalGate implements tools.ApprovalGate by broadcasting an
// ApprovalRequest event over a Hub and blocking until a matching
// ReqApprovalResponse arrives on any connection. It is created before
// the Server (the tool Executor needs a gate at construction time,
// before the Server that will own its dispatch exists), sharing the
// same Hub the Server is later built around.
type ApprovalGate struct {
	broadcaster *Hub

	mu      sync.Mutex
	pending map[string]chan bool
}

// NewApprovalGate creates a gate broadcasting over hub.
func NewApprovalGate(hub *Hub) *ApprovalGate {
	return &ApprovalGate{broadcaster: hub, pending: make(map[string]chan bool)}
}

// RequestApproval satisfies tools.ApprovalGate.
func (g *ApprovalGate) RequestApproval(ctx context.Context, req models.ApprovalRequest) (bool, error) {
	req.ID = uuid.NewString()
	ch := make(chan bool, 1)

	g.mu.Lock()
	g.pending[req.ID] = ch
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.pending, req.ID)
		g.mu.Unlock()
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return false, fmt.Errorf("marshal approval request: %w", err)
	}
	g.broadcaster.Broadcast(models.Event{Kind: models.EvtApprovalRequest, Body: body})

	select {
	case approved := <-ch:
		return approved, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Resolve delivers a client's ReqApprovalResponse to the pending
// RequestApproval call with the matching request ID, if any.
func (g *ApprovalGate) Resolve(requestID string, approve bool) {
	g.mu.Lock()
	ch, ok := g.pending[requestID]
	g.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- approve:
	default:
	}
}
