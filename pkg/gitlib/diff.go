package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeStats are the per-commit change totals.
type ChangeStats struct {
	Insertions int
	Deletions  int
	Files      int
}

// Lines returns insertions plus deletions.
func (s ChangeStats) Lines() int {
	return s.Insertions + s.Deletions
}

// changeStats diffs oldTree against newTree. A nil oldTree stands for the
// empty tree. Identical trees, as in metadata-only commits, skip the diff.
func (r *Repository) changeStats(oldTree, newTree *Tree) (ChangeStats, error) {
	var from, to *git2go.Tree

	if oldTree != nil {
		from = oldTree.tree
	}

	if newTree != nil {
		to = newTree.tree
	}

	if from != nil && to != nil && from.Id().Equal(to.Id()) {
		return ChangeStats{}, nil
	}

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return ChangeStats{}, fmt.Errorf("diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(from, to, &opts)
	if err != nil {
		return ChangeStats{}, fmt.Errorf("diff trees: %w", err)
	}

	defer func() { _ = diff.Free() }()

	stats, err := diff.Stats()
	if err != nil {
		return ChangeStats{}, fmt.Errorf("diff stats: %w", err)
	}

	defer func() { _ = stats.Free() }()

	return ChangeStats{
		Insertions: stats.Insertions(),
		Deletions:  stats.Deletions(),
		Files:      stats.FilesChanged(),
	}, nil
}
