// Package vcs wraps the embedded git repository the tool executor
// auto-commits to and rolls back, using go-git so the daemon needs no
// system git binary.
package vcs

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepo is returned when the workspace is not (and cannot be
// opened as) a git repository.
var ErrNotRepo = errors.New("vcs: not a git repository")

// Repo wraps an open workspace git repository.
type Repo struct {
	repo *git.Repository
	root string
}

// Open opens root as a git repository, returning ErrNotRepo if it
// isn't one. Callers that want auto-commit on a fresh workspace should
// use Init instead.
func Open(root string) (*Repo, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotRepo
		}
		return nil, fmt.Errorf("vcs: open %s: %w", root, err)
	}
	return &Repo{repo: repo, root: root}, nil
}

// Init creates a new repository at root if one does not already exist.
func Init(root string) (*Repo, error) {
	repo, err := git.PlainInit(root, false)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return Open(root)
		}
		return nil, fmt.Errorf("vcs: init %s: %w", root, err)
	}
	return &Repo{repo: repo, root: root}, nil
}

// AutoCommit stages every change under root and commits it with
// message, authored as the daemon. A clean worktree (nothing to
// commit) is not an error.
func (r *Repo) AutoCommit(message string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("vcs: worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("vcs: stage changes: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("vcs: status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "aigent",
			Email: "aigent@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("vcs: commit: %w", err)
	}
	return nil
}

// Rollback hard-resets the worktree to n commits before HEAD,
// discarding both the commits and any uncommitted changes. n must be
// >= 1.
func (r *Repo) Rollback(n int) error {
	if n < 1 {
		return fmt.Errorf("vcs: rollback count must be >= 1, got %d", n)
	}
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("vcs: head: %w", err)
	}
	commits, err := r.repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return fmt.Errorf("vcs: log: %w", err)
	}
	var target *object.Commit
	for i := 0; i <= n; i++ {
		c, err := commits.Next()
		if err != nil {
			return fmt.Errorf("vcs: history has fewer than %d commits before HEAD: %w", n, err)
		}
		target = c
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("vcs: worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: target.Hash, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("vcs: reset: %w", err)
	}
	return nil
}

// IsRepo reports whether root is (or is inside) a git repository.
func IsRepo(root string) bool {
	_, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	return err == nil
}
