package tools

import (
	"testing"

	"github.com/aigent-dev/aigent/pkg/models"
)

func TestCheckListsDenyWinsOverAllow(t *testing.T) {
	p := NewPolicy(models.ExecutionPolicy{
		ToolAllowlist: []string{"*"},
		ToolDenylist:  []string{"run_shell"},
	})
	if err := p.checkLists("run_shell"); err != ErrToolDenied {
		t.Errorf("err = %v, want ErrToolDenied", err)
	}
	if err := p.checkLists("read_file"); err != nil {
		t.Errorf("err = %v, want nil for an allowed tool", err)
	}
}

func TestCheckListsEmptyAllowlistAllowsAll(t *testing.T) {
	p := NewPolicy(models.ExecutionPolicy{})
	if err := p.checkLists("anything"); err != nil {
		t.Errorf("err = %v, want nil with no allowlist configured", err)
	}
}

func TestCheckListsNonEmptyAllowlistRestricts(t *testing.T) {
	p := NewPolicy(models.ExecutionPolicy{ToolAllowlist: []string{"read_file"}})
	if err := p.checkLists("write_file"); err != ErrToolNotAllowed {
		t.Errorf("err = %v, want ErrToolNotAllowed", err)
	}
	if err := p.checkLists("read_file"); err != nil {
		t.Errorf("err = %v, want nil for the allowlisted tool", err)
	}
}

func TestDecideApprovalSafer(t *testing.T) {
	p := NewPolicy(models.ExecutionPolicy{ApprovalMode: models.ApprovalSafer})
	if d := p.decideApproval("read_file", true); d != models.DecisionRequired {
		t.Errorf("Safer read-only = %v, want Required", d)
	}
}

func TestDecideApprovalBalanced(t *testing.T) {
	p := NewPolicy(models.ExecutionPolicy{ApprovalMode: models.ApprovalBalanced})
	if d := p.decideApproval("read_file", true); d != models.DecisionAuto {
		t.Errorf("Balanced read-only = %v, want Auto", d)
	}
	if d := p.decideApproval("write_file", false); d != models.DecisionRequired {
		t.Errorf("Balanced write = %v, want Required", d)
	}
}

func TestDecideApprovalAutonomous(t *testing.T) {
	p := NewPolicy(models.ExecutionPolicy{ApprovalMode: models.ApprovalAutonomous})
	if d := p.decideApproval("run_shell", false); d != models.DecisionAuto {
		t.Errorf("Autonomous write = %v, want Auto", d)
	}
}

func TestDecideApprovalExemptBypassesSafer(t *testing.T) {
	p := NewPolicy(models.ExecutionPolicy{
		ApprovalMode:        models.ApprovalSafer,
		ApprovalExemptTools: []string{"read_file"},
	})
	if d := p.decideApproval("read_file", true); d != models.DecisionAuto {
		t.Errorf("exempt tool under Safer = %v, want Auto", d)
	}
}
