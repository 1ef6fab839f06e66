// Package git reads version-control state with go-git.
package git

import (
	"errors"
	"fmt"

	ggit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ochairo/cauldron/internal/domain/interfaces/gateways"
)

// Revision implements gateways.SourceRevision
type Revision struct{}

var _ gateways.SourceRevision = (*Revision)(nil)

// NewRevision creates a go-git backed revision reader
func NewRevision() *Revision {
	return &Revision{}
}

// Revision returns the HEAD commit of the repository containing dir and whether the
// worktree has uncommitted changes. A directory outside any repository, or a
// repository without commits, yields an empty commit and no error.
func (r *Revision) Revision(dir string) (string, bool, error) {
	repo, err := ggit.PlainOpenWithOptions(dir, &ggit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, ggit.ErrRepositoryNotExists) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to open git repository: %w", err)
	}

	ref, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read HEAD: %w", err)
	}

	worktree, err := repo.Worktree()
	if errors.Is(err, ggit.ErrIsBareRepository) {
		return ref.Hash().String(), false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to open worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return "", false, fmt.Errorf("failed to read worktree status: %w", err)
	}

	return ref.Hash().String(), !status.IsClean(), nil
}
