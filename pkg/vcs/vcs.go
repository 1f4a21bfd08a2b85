// Package vcs answers the two questions the incremental pipeline has about
// git: what commit is HEAD, and which files changed since a given commit.
package vcs

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotARepository is returned when the path is not inside a git work tree.
// Callers fall back to a full regenerate.
var ErrNotARepository = errors.New("vcs: not a git repository")

// Head returns the hex hash of the repository's HEAD commit.
func Head(repoPath string) (string, error) {
	repo, err := open(repoPath)
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("vcs: resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// ChangedFiles returns the repo-relative paths touched between the commit
// `since` and HEAD. Added, modified and deleted files all count as changed.
// Returns an empty list when since == HEAD.
func ChangedFiles(repoPath, since string) ([]string, error) {
	repo, err := open(repoPath)
	if err != nil {
		return nil, err
	}

	headRef, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("vcs: resolve HEAD: %w", err)
	}
	if headRef.Hash().String() == since {
		return nil, nil
	}

	headTree, err := commitTree(repo, headRef.Hash())
	if err != nil {
		return nil, err
	}
	sinceTree, err := commitTree(repo, plumbing.NewHash(since))
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(sinceTree, headTree)
	if err != nil {
		return nil, fmt.Errorf("vcs: diff trees: %w", err)
	}

	seen := make(map[string]bool)
	var files []string
	for _, change := range changes {
		for _, name := range []string{change.From.Name, change.To.Name} {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			files = append(files, name)
		}
	}
	return files, nil
}

func open(repoPath string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotARepository, repoPath)
		}
		return nil, fmt.Errorf("vcs: open repository: %w", err)
	}
	return repo, nil
}

func commitTree(repo *git.Repository, hash plumbing.Hash) (*object.Tree, error) {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("vcs: load commit %s: %w", hash.String()[:8], err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("vcs: load tree %s: %w", hash.String()[:8], err)
	}
	return tree, nil
}
