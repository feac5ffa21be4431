package miner

import (
	"slices"
	"time"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
)

// FileChainScenario is a run of consecutive commits of one branch walk that
// all touched the same tracked file.
type FileChainScenario struct {
	File                   string      `json:"file" yaml:"file"`
	Branch                 string      `json:"branch" yaml:"branch"`
	OldestCommit           gitlib.Hash `json:"oldest_commit" yaml:"oldest_commit"`
	NewestCommit           gitlib.Hash `json:"newest_commit" yaml:"newest_commit"`
	TimesSeenConsecutively int         `json:"times_seen_consecutively" yaml:"times_seen_consecutively"`
}

// MergeScenario is a merge commit together with its conflict status.
type MergeScenario struct {
	MergeCommit  gitlib.Hash   `json:"merge_commit_hash" yaml:"merge_commit_hash"`
	Parents      []gitlib.Hash `json:"parents" yaml:"parents"`
	HadConflicts bool          `json:"had_conflicts" yaml:"had_conflicts"`
}

// CherryPickScenario pairs a commit with the original commit whose change it
// reproduces. Parents are the parents of the cherry-pick commit.
type CherryPickScenario struct {
	CherryPickCommit gitlib.Hash   `json:"cherry_pick_commit" yaml:"cherry_pick_commit"`
	CherryCommit     gitlib.Hash   `json:"cherry_commit" yaml:"cherry_commit"`
	Parents          []gitlib.Hash `json:"parents" yaml:"parents"`
}

// Stats describes how a mining run went. CherryPickBudgetExpired marks runs
// whose content-hash matching stopped on the wall-clock budget; only those can
// differ between two runs over the same snapshot.
type Stats struct {
	BranchesWalked          int           `json:"branches_walked" yaml:"branches_walked"`
	BranchesSkipped         int           `json:"branches_skipped" yaml:"branches_skipped"`
	CommitsProcessed        int           `json:"commits_processed" yaml:"commits_processed"`
	KeepaliveRevisits       int           `json:"keepalive_revisits" yaml:"keepalive_revisits"`
	DuplicateMessageGroups  int           `json:"duplicate_message_groups" yaml:"duplicate_message_groups"`
	CherryPickComparisons   int           `json:"cherry_pick_comparisons" yaml:"cherry_pick_comparisons"`
	CherryPickBudgetExpired bool          `json:"cherry_pick_budget_expired" yaml:"cherry_pick_budget_expired"`
	CherryPickLimitReached  bool          `json:"cherry_pick_limit_reached" yaml:"cherry_pick_limit_reached"`
	CorruptChainStates      int           `json:"corrupt_chain_states" yaml:"corrupt_chain_states"`
	Duration                time.Duration `json:"duration" yaml:"duration"`
}

// Result is the outcome of one mining run. It owns its slices; the miner
// keeps no reference to them.
type Result struct {
	FileChains  []FileChainScenario  `json:"file_commit_chain_scenarios" yaml:"file_commit_chain_scenarios"`
	Merges      []MergeScenario      `json:"merge_scenarios" yaml:"merge_scenarios"`
	CherryPicks []CherryPickScenario `json:"cherry_pick_scenarios" yaml:"cherry_pick_scenarios"`
	Stats       Stats                `json:"stats" yaml:"stats"`
}

// Total returns the number of scenarios of all kinds.
func (r Result) Total() int {
	return len(r.FileChains) + len(r.Merges) + len(r.CherryPicks)
}

// accumulator collects scenarios in discovery order. It is append-only and
// is turned into a Result once per run.
type accumulator struct {
	fileChains  []FileChainScenario
	merges      []MergeScenario
	cherryPicks []CherryPickScenario
}

func (a *accumulator) addFileChains(scenarios ...FileChainScenario) {
	a.fileChains = append(a.fileChains, scenarios...)
}

func (a *accumulator) addMerge(scenario MergeScenario) {
	a.merges = append(a.merges, scenario)
}

func (a *accumulator) addCherryPick(scenario CherryPickScenario) {
	a.cherryPicks = append(a.cherryPicks, scenario)
}

// result copies the collected scenarios, parents included, into a Result.
func (a *accumulator) result(stats Stats) Result {
	merges := make([]MergeScenario, len(a.merges))
	for i, merge := range a.merges {
		merge.Parents = slices.Clone(merge.Parents)
		merges[i] = merge
	}

	cherryPicks := make([]CherryPickScenario, len(a.cherryPicks))
	for i, pick := range a.cherryPicks {
		pick.Parents = slices.Clone(pick.Parents)
		cherryPicks[i] = pick
	}

	fileChains := make([]FileChainScenario, len(a.fileChains))
	copy(fileChains, a.fileChains)

	return Result{
		FileChains:  fileChains,
		Merges:      merges,
		CherryPicks: cherryPicks,
		Stats:       stats,
	}
}
