package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, root, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o600))
	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add(name)
	require.NoError(t, err)
	hash, err := w.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestReadRevisionFromSubdirectory(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	commit := commitFile(t, repo, root, "README.md", "# site")

	sub := filepath.Join(root, "src", "js")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	rev, err := ReadRevision(sub)
	require.NoError(t, err)
	assert.Equal(t, commit, rev.Commit)
	assert.Equal(t, commit[:7], rev.Short)
	assert.Equal(t, "master", rev.Branch)
	assert.False(t, rev.Dirty)
}

func TestReadRevisionDirtyWorktree(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	commitFile(t, repo, root, "a.txt", "one")
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("two"), 0o600))

	rev, err := ReadRevision(root)
	require.NoError(t, err)
	assert.True(t, rev.Dirty)
}

func TestReadRevisionWithoutCommits(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	rev, err := ReadRevision(root)
	require.NoError(t, err)
	assert.Empty(t, rev.Commit)
}

func TestReadRevisionNotRepository(t *testing.T) {
	_, err := ReadRevision(t.TempDir())
	require.ErrorIs(t, err, ErrNotRepository)
}
