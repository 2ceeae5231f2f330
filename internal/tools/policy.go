package tools

import "github.com/aigent-dev/aigent/pkg/models"

// Policy is the spec-scoped evaluation of models.ExecutionPolicy: a
// flat denylist, an optional allowlist, and an approval-mode gate. It
// deliberately omits the teacher's MCP/edge-server group and alias
// machinery, which this domain has no concept of.
type Policy struct {
	policy models.ExecutionPolicy
}

// NewPolicy wraps a models.ExecutionPolicy for evaluation.
func NewPolicy(p models.ExecutionPolicy) Policy {
	return Policy{policy: p}
}

// checkLists evaluates step 2 of the execution pipeline: deny always
// wins; when a non-empty allowlist is configured, only listed names
// pass.
func (p Policy) checkLists(name string) error {
	for _, pattern := range p.policy.ToolDenylist {
		if matchPattern(pattern, name) {
			return ErrToolDenied
		}
	}
	if len(p.policy.ToolAllowlist) == 0 {
		return nil
	}
	for _, pattern := range p.policy.ToolAllowlist {
		if matchPattern(pattern, name) {
			return nil
		}
	}
	return ErrToolNotAllowed
}

// matchPattern supports an exact name or the "*" wildcard, the only
// two forms the spec's tool_denylist/tool_allowlist need.
func matchPattern(pattern, name string) bool {
	return pattern == "*" || pattern == name
}

// isExempt reports whether name bypasses the approval prompt
// regardless of approval_mode.
func (p Policy) isExempt(name string) bool {
	for _, exempt := range p.policy.ApprovalExemptTools {
		if matchPattern(exempt, name) {
			return true
		}
	}
	return false
}

// decideApproval computes step 3: whether executing a tool of the
// given read-only classification requires an approval round-trip.
func (p Policy) decideApproval(name string, readOnly bool) models.ApprovalDecision {
	if p.isExempt(name) {
		return models.DecisionAuto
	}
	switch p.policy.ApprovalMode {
	case models.ApprovalAutonomous:
		return models.DecisionAuto
	case models.ApprovalSafer:
		return models.DecisionRequired
	default: // Balanced, or unset: treated as the documented default
		if readOnly {
			return models.DecisionAuto
		}
		return models.DecisionRequired
	}
}
