package tools

import (
	"context"

	"github.com/aigent-dev/aigent/pkg/models"
)

// ApprovalGate publishes an ApprovalRequest and blocks until a response
// arrives, or ctx is done. The daemon's concrete implementation
// broadcasts the EvtApprovalRequest event and resolves the returned
// channel from a ReqApprovalResponse carrying the same request id.
type ApprovalGate interface {
	RequestApproval(ctx context.Context, req models.ApprovalRequest) (approved bool, err error)
}

// AutoGate is a fixed-answer ApprovalGate used by tests and by
// Autonomous-mode callers that never expect to reach the gate.
type AutoGate bool

// RequestApproval implements ApprovalGate.
func (g AutoGate) RequestApproval(ctx context.Context, _ models.ApprovalRequest) (bool, error) {
	return bool(g), nil
}
