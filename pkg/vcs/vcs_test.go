package vcs

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

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)

	hash, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestNotARepository(t *testing.T) {
	_, err := Head(t.TempDir())
	assert.ErrorIs(t, err, ErrNotARepository)

	_, err = ChangedFiles(t.TempDir(), "deadbeef")
	assert.ErrorIs(t, err, ErrNotARepository)
}

func TestHeadAndChangedFiles(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	first := commitFile(t, repo, dir, "main.py", "print('v1')\n")

	head, err := Head(dir)
	require.NoError(t, err)
	assert.Equal(t, first, head)

	// No changes between HEAD and itself.
	changed, err := ChangedFiles(dir, first)
	require.NoError(t, err)
	assert.Empty(t, changed)

	commitFile(t, repo, dir, "main.py", "print('v2')\n")
	commitFile(t, repo, dir, "core/util.py", "def f():\n    pass\n")

	changed, err = ChangedFiles(dir, first)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.py", "core/util.py"}, changed)
}

func TestChangedFilesIncludesDeleted(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	first := commitFile(t, repo, dir, "gone.py", "x = 1\n")
	commitFile(t, repo, dir, "kept.py", "y = 2\n")

	require.NoError(t, os.Remove(filepath.Join(dir, "gone.py")))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("gone.py")
	require.NoError(t, err)
	_, err = wt.Commit("remove gone.py", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	changed, err := ChangedFiles(dir, first)
	require.NoError(t, err)
	assert.Contains(t, changed, "gone.py")
	assert.Contains(t, changed, "kept.py")
}
