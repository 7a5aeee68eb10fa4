package gitlib

import git2go "github.com/libgit2/git2go/v34"

// Tree is a commit's root tree. Free it when done.
type Tree struct {
	tree *git2go.Tree
}

// Free releases the tree.
func (t *Tree) Free() {
	if t.tree == nil {
		return
	}

	t.tree.Free()
	t.tree = nil
}
