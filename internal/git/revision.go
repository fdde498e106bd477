package git

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const shortHashLength = 7

// Revision identifies the commit checked out in a working directory.
type Revision struct {
	Commit string `json:"commit"`
	Short  string `json:"short"`
	Branch string `json:"branch,omitempty"` // empty on a detached HEAD
	Dirty  bool   `json:"dirty"`
}

// ErrNotRepository is returned when dir is not inside a git working tree.
var ErrNotRepository = errors.New("not a git repository")

// ReadRevision opens the repository containing dir (searching parent
// directories for .git) and returns its HEAD revision. A repository without
// commits yields a zero Revision and no error.
func ReadRevision(dir string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return Revision{}, ErrNotRepository
		}
		return Revision{}, fmt.Errorf("open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return Revision{}, nil
		}
		return Revision{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	rev := Revision{Commit: head.Hash().String()}
	rev.Short = rev.Commit
	if len(rev.Short) > shortHashLength {
		rev.Short = rev.Short[:shortHashLength]
	}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}

	wt, err := repo.Worktree()
	if err != nil {
		// bare repositories have no worktree to compare against
		return rev, nil
	}
	status, err := wt.Status()
	if err != nil {
		return rev, fmt.Errorf("worktree status: %w", err)
	}
	rev.Dirty = !status.IsClean()
	return rev, nil
}
