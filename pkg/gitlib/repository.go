package gitlib

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors returned by Repository.
var (
	// ErrUnresolvableRef is returned when a branch name cannot be resolved to a
	// commit, e.g. because the ref name is malformed or dangling. Callers treat
	// it as recoverable.
	ErrUnresolvableRef = errors.New("unresolvable ref")
	// ErrCommitNotFound is returned when a commit is missing from the object database.
	ErrCommitNotFound = errors.New("commit not found")
)

// headRefMarker identifies symbolic HEAD refs (HEAD, origin/HEAD) in branch listings.
const headRefMarker = "HEAD"

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

// CloneRepository clones url into a bare repository at path.
func CloneRepository(url, path string) (*Repository, error) {
	repo, err := git2go.Clone(url, path, &git2go.CloneOptions{Bare: true})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Branches lists local and remote-tracking branch names, skipping symbolic
// HEAD refs. Tags are not branches and are never listed. Local branches come
// first, each group sorted by name.
func (r *Repository) Branches(_ context.Context) ([]string, error) {
	iter, err := r.repo.NewBranchIterator(git2go.BranchAll)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	defer iter.Free()

	var local, remote []string

	err = iter.ForEach(func(branch *git2go.Branch, branchType git2go.BranchType) error {
		name, nameErr := branch.Name()
		if nameErr != nil {
			return fmt.Errorf("branch name: %w", nameErr)
		}

		if strings.Contains(name, headRefMarker) {
			return nil
		}

		if branchType == git2go.BranchRemote {
			remote = append(remote, name)
		} else {
			local = append(local, name)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate branches: %w", err)
	}

	slices.Sort(local)
	slices.Sort(remote)

	return append(local, remote...), nil
}

// ResolveBranch resolves a branch name to the hash of its head commit. Names
// the backend cannot interpret, or that do not point at a commit, wrap
// ErrUnresolvableRef.
func (r *Repository) ResolveBranch(_ context.Context, branch string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(branch)
	if err != nil {
		if isResolveError(err) {
			return Hash{}, fmt.Errorf("%w: %s: %w", ErrUnresolvableRef, branch, err)
		}

		return Hash{}, fmt.Errorf("resolve %s: %w", branch, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %s is not a commit: %w", ErrUnresolvableRef, branch, err)
	}
	defer peeled.Free()

	return HashFromOid(peeled.Id()), nil
}

func isResolveError(err error) bool {
	return git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) ||
		git2go.IsErrorCode(err, git2go.ErrorCodeInvalidSpec) ||
		git2go.IsErrorCode(err, git2go.ErrorCodeAmbiguous)
}

// Commit reads the commit with the given hash.
func (r *Repository) Commit(_ context.Context, hash Hash) (CommitInfo, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return CommitInfo{}, fmt.Errorf("%w: %s", ErrCommitNotFound, hash)
		}

		return CommitInfo{}, fmt.Errorf("lookup commit %s: %w", hash, err)
	}
	defer commit.Free()

	return commitInfoFromNative(commit), nil
}

// ChangedPaths returns the name-status change list of a commit: the diff
// against its parent (with rename detection), every file as added for a root
// commit, and the combined diff for a merge commit.
func (r *Repository) ChangedPaths(ctx context.Context, hash Hash) ([]PathChange, error) {
	info, err := r.Commit(ctx, hash)
	if err != nil {
		return nil, err
	}

	tree, err := r.commitTree(hash)
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	if !info.IsMerge() {
		var parentTree *Tree

		if !info.IsRoot() {
			parentTree, err = r.commitTree(info.Parents[0])
			if err != nil {
				return nil, err
			}
			defer parentTree.Free()
		}

		return r.treeChanges(parentTree, tree, true)
	}

	perParent := make([][]PathChange, 0, len(info.Parents))

	for _, parent := range info.Parents {
		changes, parentErr := r.parentChanges(parent, tree)
		if parentErr != nil {
			return nil, parentErr
		}

		perParent = append(perParent, changes)
	}

	return combineParentChanges(perParent), nil
}

func (r *Repository) parentChanges(parent Hash, tree *Tree) ([]PathChange, error) {
	parentTree, err := r.commitTree(parent)
	if err != nil {
		return nil, err
	}
	defer parentTree.Free()

	return r.treeChanges(parentTree, tree, false)
}

func (r *Repository) treeChanges(oldTree, newTree *Tree, detectRenames bool) ([]PathChange, error) {
	if oldTree != nil && oldTree.Hash() == newTree.Hash() {
		return []PathChange{}, nil
	}

	diff, err := r.diffTrees(oldTree, newTree, detectRenames)
	if err != nil {
		return nil, err
	}
	defer freeDiff(diff)

	return deltaChanges(diff)
}

// Patch returns the textual patch of a commit against its first parent, or
// against the empty tree for a root commit.
func (r *Repository) Patch(ctx context.Context, hash Hash) ([]byte, error) {
	info, err := r.Commit(ctx, hash)
	if err != nil {
		return nil, err
	}

	tree, err := r.commitTree(hash)
	if err != nil {
		return nil, err
	}
	defer tree.Free()

	var parentTree *Tree

	if !info.IsRoot() {
		parentTree, err = r.commitTree(info.Parents[0])
		if err != nil {
			return nil, err
		}
		defer parentTree.Free()
	}

	diff, err := r.diffTrees(parentTree, tree, false)
	if err != nil {
		return nil, err
	}
	defer freeDiff(diff)

	patch, err := diff.ToBuf(git2go.DiffFormatPatch)
	if err != nil {
		return nil, fmt.Errorf("format patch of %s: %w", hash.Short(), err)
	}

	return patch, nil
}
