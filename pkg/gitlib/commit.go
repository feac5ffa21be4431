package gitlib

import (
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// Signature represents a git signature (author/committer).
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitInfo is an immutable snapshot of a commit read from the object
// database. It carries no libgit2 handles and is safe to keep around after the
// repository is freed.
type CommitInfo struct {
	Hash      Hash
	Parents   []Hash
	Message   string
	Author    Signature
	Committer Signature
}

// IsMerge reports whether the commit has more than one parent.
func (c CommitInfo) IsMerge() bool {
	return len(c.Parents) > 1
}

// IsRoot reports whether the commit has no parents.
func (c CommitInfo) IsRoot() bool {
	return len(c.Parents) == 0
}

// Before orders commits chronologically by author time, falling back to the
// committer time when the author times are equal. Cherry-picks keep the
// original author time, so the tie-break is what usually decides.
func (c CommitInfo) Before(other CommitInfo) bool {
	if !c.Author.When.Equal(other.Author.When) {
		return c.Author.When.Before(other.Author.When)
	}

	return c.Committer.When.Before(other.Committer.When)
}

// SameTime reports whether neither commit is chronologically before the other.
func (c CommitInfo) SameTime(other CommitInfo) bool {
	return !c.Before(other) && !other.Before(c)
}

func commitInfoFromNative(commit *git2go.Commit) CommitInfo {
	count := commit.ParentCount()
	parents := make([]Hash, 0, count)

	for i := range count {
		parents = append(parents, HashFromOid(commit.ParentId(i)))
	}

	return CommitInfo{
		Hash:      HashFromOid(commit.Id()),
		Parents:   parents,
		Message:   commit.Message(),
		Author:    signatureFromNative(commit.Author()),
		Committer: signatureFromNative(commit.Committer()),
	}
}

func signatureFromNative(sig *git2go.Signature) Signature {
	if sig == nil {
		return Signature{}
	}

	return Signature{
		Name:  sig.Name,
		Email: sig.Email,
		When:  sig.When,
	}
}
