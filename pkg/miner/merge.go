package miner

import (
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
)

// countsAsPresent reports whether a change keeps a file in its chain: it was
// added or modified. Renames, deletions and mode changes break the chain.
func countsAsPresent(changeType gitlib.ChangeType) bool {
	return changeType == gitlib.ChangeAdded || changeType == gitlib.ChangeModified || isMergeModified(changeType)
}

// isMergeModified reports whether a combined merge status says the path
// differs from every parent ("MM" for two parents).
func isMergeModified(changeType gitlib.ChangeType) bool {
	return len(changeType) >= 2 && strings.Trim(string(changeType), string(gitlib.ChangeModified)) == ""
}

// touchesTrackedFiles reports whether any change, of any type, hits a path
// accepted by filter.
func touchesTrackedFiles(changes []gitlib.PathChange, filter PathFilter) bool {
	return slices.ContainsFunc(changes, func(change gitlib.PathChange) bool {
		return filter.Match(change.Path)
	})
}

// detectMerge turns a merge commit into a MergeScenario. Merges with no
// changed paths at all are kept as clean merges; merges whose changes all miss
// the tracked language are dropped. A tracked path modified against every
// parent means the merge itself resolved a conflict.
func detectMerge(commit gitlib.CommitInfo, changes []gitlib.PathChange, filter PathFilter) (MergeScenario, bool) {
	if !commit.IsMerge() {
		return MergeScenario{}, false
	}

	if len(changes) > 0 && !touchesTrackedFiles(changes, filter) {
		return MergeScenario{}, false
	}

	hadConflicts := slices.ContainsFunc(changes, func(change gitlib.PathChange) bool {
		return isMergeModified(change.Type) && filter.Match(change.Path)
	})

	return MergeScenario{
		MergeCommit:  commit.Hash,
		Parents:      slices.Clone(commit.Parents),
		HadConflicts: hadConflicts,
	}, true
}
