package gitlib

import (
	"context"
	"fmt"
	"slices"
)

// MemoryCommit is a commit stored in a MemoryRepository.
type MemoryCommit struct {
	Info    CommitInfo
	Changes []PathChange
	Patch   []byte
}

// MemoryRepository is an in-memory commit arena addressed by hash. It exposes
// the same read-only surface as Repository and is used to mine synthetic
// histories in tests and tools. It is not safe for concurrent mutation.
type MemoryRepository struct {
	commits  map[Hash]MemoryCommit
	branches []string
	heads    map[string]Hash

	// Fail, when set, is consulted before every read and lets tests inject
	// backend failures for specific commits.
	Fail func(op string, hash Hash) error
}

// NewMemoryRepository creates an empty arena.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		commits: make(map[Hash]MemoryCommit),
		heads:   make(map[string]Hash),
	}
}

// AddCommit stores a commit. Parents do not need to exist yet.
func (m *MemoryRepository) AddCommit(commit MemoryCommit) {
	commit.Info.Parents = slices.Clone(commit.Info.Parents)
	commit.Changes = slices.Clone(commit.Changes)
	m.commits[commit.Info.Hash] = commit
}

// SetBranch points a branch at head. Branches are listed in the order they
// were first set.
func (m *MemoryRepository) SetBranch(name string, head Hash) {
	if _, ok := m.heads[name]; !ok {
		m.branches = append(m.branches, name)
	}

	m.heads[name] = head
}

// AddDanglingBranch lists a branch that cannot be resolved.
func (m *MemoryRepository) AddDanglingBranch(name string) {
	if !slices.Contains(m.branches, name) {
		m.branches = append(m.branches, name)
	}

	delete(m.heads, name)
}

// Free is a no-op; it satisfies the same lifecycle as Repository.
func (m *MemoryRepository) Free() {}

// Branches lists branch names in insertion order.
func (m *MemoryRepository) Branches(_ context.Context) ([]string, error) {
	return slices.Clone(m.branches), nil
}

// ResolveBranch returns the head of a branch.
func (m *MemoryRepository) ResolveBranch(_ context.Context, branch string) (Hash, error) {
	head, ok := m.heads[branch]
	if !ok {
		return Hash{}, fmt.Errorf("%w: %s", ErrUnresolvableRef, branch)
	}

	return head, nil
}

// Commit returns the stored commit metadata.
func (m *MemoryRepository) Commit(_ context.Context, hash Hash) (CommitInfo, error) {
	commit, err := m.lookup("commit", hash)
	if err != nil {
		return CommitInfo{}, err
	}

	info := commit.Info
	info.Parents = slices.Clone(info.Parents)

	return info, nil
}

// ChangedPaths returns the stored change list.
func (m *MemoryRepository) ChangedPaths(_ context.Context, hash Hash) ([]PathChange, error) {
	commit, err := m.lookup("changes", hash)
	if err != nil {
		return nil, err
	}

	return slices.Clone(commit.Changes), nil
}

// Patch returns the stored patch text.
func (m *MemoryRepository) Patch(_ context.Context, hash Hash) ([]byte, error) {
	commit, err := m.lookup("patch", hash)
	if err != nil {
		return nil, err
	}

	return slices.Clone(commit.Patch), nil
}

func (m *MemoryRepository) lookup(op string, hash Hash) (MemoryCommit, error) {
	if m.Fail != nil {
		err := m.Fail(op, hash)
		if err != nil {
			return MemoryCommit{}, err
		}
	}

	commit, ok := m.commits[hash]
	if !ok {
		return MemoryCommit{}, fmt.Errorf("%w: %s", ErrCommitNotFound, hash)
	}

	return commit, nil
}
