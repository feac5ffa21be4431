package gitlib

import (
	"time"
)

// testEpoch is the author time of the first commit created by a HistoryBuilder.
var testEpoch = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

// TestHash derives a stable hash from a symbolic commit name.
func TestHash(name string) Hash {
	return HashOf([]byte(name))
}

// TestSignature creates a signature for testing.
func TestSignature(name string, when time.Time) Signature {
	return Signature{
		Name:  name,
		Email: name + "@example.com",
		When:  when,
	}
}

// HistoryBuilder composes MemoryRepository histories from symbolic commit
// names. Every commit is authored one minute after the previous one.
// Used for testing; it is not safe for concurrent use.
type HistoryBuilder struct {
	repo  *MemoryRepository
	clock time.Time
}

// NewHistoryBuilder creates a builder over an empty arena.
func NewHistoryBuilder() *HistoryBuilder {
	return &HistoryBuilder{repo: NewMemoryRepository(), clock: testEpoch}
}

// Commit adds a commit named name with the given parents (by name) and
// changes, and returns its hash.
func (b *HistoryBuilder) Commit(name, message string, parents []string, changes ...PathChange) Hash {
	return b.CommitWithPatch(name, message, parents, "", changes...)
}

// CommitWithPatch is Commit with an explicit patch text.
func (b *HistoryBuilder) CommitWithPatch(name, message string, parents []string, patch string, changes ...PathChange) Hash {
	b.clock = b.clock.Add(time.Minute)

	parentHashes := make([]Hash, len(parents))
	for i, parent := range parents {
		parentHashes[i] = TestHash(parent)
	}

	hash := TestHash(name)
	sig := TestSignature("tester", b.clock)

	b.repo.AddCommit(MemoryCommit{
		Info: CommitInfo{
			Hash:      hash,
			Parents:   parentHashes,
			Message:   message,
			Author:    sig,
			Committer: sig,
		},
		Changes: changes,
		Patch:   []byte(patch),
	})

	return hash
}

// Branch points a branch at the named commit.
func (b *HistoryBuilder) Branch(branch, head string) {
	b.repo.SetBranch(branch, TestHash(head))
}

// Repository returns the arena being built.
func (b *HistoryBuilder) Repository() *MemoryRepository {
	return b.repo
}
