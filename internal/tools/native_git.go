package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aigent-dev/aigent/internal/vcs"
)

// GitRollbackTool implements git_rollback: hard-resets the workspace
// to n commits before HEAD.
type GitRollbackTool struct {
	workspace string
}

func NewGitRollbackTool(workspace string) *GitRollbackTool {
	return &GitRollbackTool{workspace: workspace}
}

func (t *GitRollbackTool) Name() string        { return "git_rollback" }
func (t *GitRollbackTool) Description() string { return "Revert the workspace to a prior commit." }
func (t *GitRollbackTool) ReadOnly() bool       { return true }

func (t *GitRollbackTool) Execute(ctx context.Context, args map[string]json.RawMessage) (string, error) {
	commits := 1
	_ = unmarshalArg(args, "commits", &commits)
	if commits < 1 {
		commits = 1
	}
	repo, err := vcs.Open(t.workspace)
	if err != nil {
		return "", fmt.Errorf("git_rollback: %w", err)
	}
	if err := repo.Rollback(commits); err != nil {
		return "", fmt.Errorf("git_rollback: %w", err)
	}
	return fmt.Sprintf("rolled back %d commit(s)", commits), nil
}
