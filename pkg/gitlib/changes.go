package gitlib

import (
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeType is the name-status code of a changed path, as printed by
// `git show --name-status`. Merge commits get one letter per parent
// (combined diff), so a path that differs from both parents of a two-parent
// merge is reported as "MM".
type ChangeType string

// Single-parent change types.
const (
	ChangeAdded       ChangeType = "A"
	ChangeModified    ChangeType = "M"
	ChangeDeleted     ChangeType = "D"
	ChangeRenamed     ChangeType = "R"
	ChangeCopied      ChangeType = "C"
	ChangeTypeChanged ChangeType = "T"
	ChangeUnknown     ChangeType = "X"
)

// ChangeMergeModified marks a path a merge commit modified relative to both of
// its parents, i.e. the merge itself carries a resolution.
const ChangeMergeModified ChangeType = "MM"

// PathChange is one (change-type, path) pair of a commit. For renames and
// copies Path is the destination and OldPath the source.
type PathChange struct {
	Type    ChangeType
	Path    string
	OldPath string
}

// String renders the change the way `git show --name-status` does.
func (p PathChange) String() string {
	if p.OldPath != "" && p.OldPath != p.Path {
		return string(p.Type) + "\t" + p.OldPath + "\t" + p.Path
	}

	return string(p.Type) + "\t" + p.Path
}

func changeTypeOf(status git2go.Delta) ChangeType {
	switch status {
	case git2go.DeltaAdded:
		return ChangeAdded
	case git2go.DeltaModified:
		return ChangeModified
	case git2go.DeltaDeleted:
		return ChangeDeleted
	case git2go.DeltaRenamed:
		return ChangeRenamed
	case git2go.DeltaCopied:
		return ChangeCopied
	case git2go.DeltaTypeChange:
		return ChangeTypeChanged
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return ChangeUnknown
	}

	return ChangeUnknown
}

// deltaChanges converts every meaningful delta of a diff into a PathChange.
func deltaChanges(diff *git2go.Diff) ([]PathChange, error) {
	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	changes := make([]PathChange, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("get delta %d: %w", i, deltaErr)
		}

		changeType := changeTypeOf(delta.Status)
		if changeType == ChangeUnknown {
			continue
		}

		change := PathChange{Type: changeType, Path: delta.NewFile.Path}

		switch changeType {
		case ChangeDeleted:
			change.Path = delta.OldFile.Path
		case ChangeRenamed, ChangeCopied:
			change.OldPath = delta.OldFile.Path
		}

		changes = append(changes, change)
	}

	return changes, nil
}

// combineParentChanges builds the combined change list of a merge commit from
// its per-parent change lists: only paths that differ from every parent are
// kept, and their type concatenates the per-parent letters in parent order.
// Path order follows the first parent's diff.
func combineParentChanges(perParent [][]PathChange) []PathChange {
	if len(perParent) == 0 {
		return nil
	}

	lookups := make([]map[string]ChangeType, len(perParent))

	for i, changes := range perParent {
		lookup := make(map[string]ChangeType, len(changes))
		for _, change := range changes {
			lookup[change.Path] = change.Type
		}

		lookups[i] = lookup
	}

	combined := make([]PathChange, 0, len(perParent[0]))

	for _, change := range perParent[0] {
		var status strings.Builder

		inAll := true

		for _, lookup := range lookups {
			changeType, ok := lookup[change.Path]
			if !ok {
				inAll = false

				break
			}

			status.WriteString(string(changeType))
		}

		if inAll {
			combined = append(combined, PathChange{Type: ChangeType(status.String()), Path: change.Path})
		}
	}

	return combined
}
