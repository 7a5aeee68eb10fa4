package gitlib

import (
	"errors"
	"fmt"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrParentNotFound is returned when the requested parent commit is not found.
var ErrParentNotFound = errors.New("parent commit not found")

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
	repo   *Repository
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Author returns the commit author, or nil when the commit has none.
func (c *Commit) Author() *Signature {
	return signatureFrom(c.commit.Author())
}

// Committer returns the commit committer, or nil when the commit has none.
func (c *Commit) Committer() *Signature {
	return signatureFrom(c.commit.Committer())
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int {
	return int(c.commit.ParentCount())
}

// Parent returns the nth parent commit.
func (c *Commit) Parent(n int) (*Commit, error) {
	if n < 0 || n >= c.NumParents() {
		return nil, ErrParentNotFound
	}

	parent := c.commit.Parent(uint(n))
	if parent == nil {
		return nil, ErrParentNotFound
	}

	return &Commit{commit: parent, repo: c.repo}, nil
}

// Tree returns the tree associated with this commit.
func (c *Commit) Tree() (*Tree, error) {
	tree, err := c.commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get commit tree: %w", err)
	}

	return &Tree{tree: tree}, nil
}

// ChangeStats returns the line and file totals of the commit measured
// against its first parent. Root commits are measured against the empty tree.
func (c *Commit) ChangeStats() (ChangeStats, error) {
	tree, err := c.Tree()
	if err != nil {
		return ChangeStats{}, err
	}
	defer tree.Free()

	var parentTree *Tree

	if c.NumParents() > 0 {
		parent, parentErr := c.Parent(0)
		if parentErr != nil {
			return ChangeStats{}, fmt.Errorf("first parent of %s: %w", c.Hash(), parentErr)
		}
		defer parent.Free()

		parentTree, err = parent.Tree()
		if err != nil {
			return ChangeStats{}, err
		}
		defer parentTree.Free()
	}

	return c.repo.changeStats(parentTree, tree)
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}

// CommitIter iterates over commits produced by a revision walk.
type CommitIter struct {
	walk *git2go.RevWalk
	repo *Repository
}

// Next returns the next commit in the iteration, or io.EOF once the walk is
// exhausted. A commit that cannot be loaded is reported as an error rather
// than skipped.
func (ci *CommitIter) Next() (*Commit, error) {
	if ci.walk == nil {
		return nil, io.EOF
	}

	oid := new(git2go.Oid)

	err := ci.walk.Next(oid)
	if err != nil {
		ci.Close()

		if git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
			return nil, io.EOF
		}

		return nil, fmt.Errorf("revwalk next: %w", err)
	}

	commit, err := ci.repo.repo.LookupCommit(oid)
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", oid, err)
	}

	return &Commit{commit: commit, repo: ci.repo}, nil
}

// Close releases resources. It is safe to call more than once.
func (ci *CommitIter) Close() {
	if ci.walk != nil {
		ci.walk.Free()
		ci.walk = nil
	}
}
