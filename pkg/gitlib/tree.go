package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Tree wraps a libgit2 tree.
type Tree struct {
	tree *git2go.Tree
}

// Hash returns the tree hash.
func (t *Tree) Hash() Hash {
	return HashFromOid(t.tree.Id())
}

// Free releases the tree resources. Safe on a nil tree.
func (t *Tree) Free() {
	if t != nil && t.tree != nil {
		t.tree.Free()
		t.tree = nil
	}
}

func (t *Tree) native() *git2go.Tree {
	if t == nil {
		return nil
	}

	return t.tree
}

// commitTree returns the tree of the given commit.
func (r *Repository) commitTree(hash Hash) (*Tree, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash.Short(), err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get tree of %s: %w", hash.Short(), err)
	}

	return &Tree{tree: tree}, nil
}

// diffTrees computes the diff between two trees. A nil old tree diffs against
// the empty tree.
func (r *Repository) diffTrees(oldTree, newTree *Tree, detectRenames bool) (*git2go.Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree.native(), newTree.native(), &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	if !detectRenames {
		return diff, nil
	}

	findOpts, err := git2go.DefaultDiffFindOptions()
	if err != nil {
		freeDiff(diff)

		return nil, fmt.Errorf("get diff find options: %w", err)
	}

	findOpts.Flags = git2go.DiffFindRenames

	err = diff.FindSimilar(&findOpts)
	if err != nil {
		freeDiff(diff)

		return nil, fmt.Errorf("find renames: %w", err)
	}

	return diff, nil
}

func freeDiff(diff *git2go.Diff) {
	// Free errors are not actionable during cleanup.
	_ = diff.Free()
}
