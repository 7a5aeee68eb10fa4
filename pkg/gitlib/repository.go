package gitlib

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// branchGlob matches every local branch head.
const branchGlob = "refs/heads/*"

// ErrEmptyRepository is returned when history is requested from a repository
// whose HEAD is unborn.
var ErrEmptyRepository = errors.New("repository has no commits")

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the path the repository was opened or cloned at.
func (r *Repository) Path() string {
	return r.path
}

// WorkDir returns the absolute working directory, falling back to the git
// directory for bare repositories.
func (r *Repository) WorkDir() string {
	dir := r.repo.Workdir()
	if dir == "" {
		dir = r.repo.Path()
	}

	dir = strings.TrimRight(dir, string(filepath.Separator))

	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}

	return abs
}

// Name returns the base name of the working directory.
func (r *Repository) Name() string {
	return filepath.Base(r.WorkDir())
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// IsEmpty reports whether HEAD is unborn, i.e. there is no history to walk.
func (r *Repository) IsEmpty() (bool, error) {
	unborn, err := r.repo.IsHeadUnborn()
	if err != nil {
		return false, fmt.Errorf("check HEAD: %w", err)
	}

	return unborn, nil
}

// LogOptions configures the commit log iteration.
type LogOptions struct {
	AllBranches bool // Walk every local branch instead of HEAD only.
	Reverse     bool // Oldest commits first.
}

// Log returns a commit iterator over the history selected by opts.
// Sorting is topological with time as tie breaker, so a commit is never
// yielded before its parents when Reverse is set.
func (r *Repository) Log(opts *LogOptions) (*CommitIter, error) {
	if opts == nil {
		opts = &LogOptions{}
	}

	empty, err := r.IsEmpty()
	if err != nil {
		return nil, err
	}

	if empty {
		return nil, ErrEmptyRepository
	}

	walk, err := r.newWalk(opts.AllBranches)
	if err != nil {
		return nil, err
	}

	mode := git2go.SortTime | git2go.SortTopological
	if opts.Reverse {
		mode |= git2go.SortReverse
	}

	walk.Sorting(mode)

	return &CommitIter{walk: walk, repo: r}, nil
}

// ReachableFromHead returns the set of commits reachable from HEAD.
// An empty repository yields an empty set.
func (r *Repository) ReachableFromHead() (map[Hash]struct{}, error) {
	reachable := make(map[Hash]struct{})

	empty, err := r.IsEmpty()
	if err != nil {
		return nil, err
	}

	if empty {
		return reachable, nil
	}

	walk, err := r.newWalk(false)
	if err != nil {
		return nil, err
	}
	defer walk.Free()

	oid := new(git2go.Oid)

	for walk.Next(oid) == nil {
		reachable[HashFromOid(oid)] = struct{}{}
	}

	return reachable, nil
}

func (r *Repository) newWalk(allBranches bool) (*git2go.RevWalk, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	if allBranches {
		err = walk.PushGlob(branchGlob)
		if err != nil {
			walk.Free()

			return nil, fmt.Errorf("push branches to revwalk: %w", err)
		}

		return walk, nil
	}

	err = walk.PushHead()
	if err != nil {
		walk.Free()

		return nil, fmt.Errorf("push HEAD to revwalk: %w", err)
	}

	return walk, nil
}
