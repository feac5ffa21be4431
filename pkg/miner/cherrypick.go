package miner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/patchid"
)

// cherryPickTrailer is the line `git cherry-pick -x` appends to a message.
var cherryPickTrailer = regexp.MustCompile(`cherry picked from commit ([0-9a-f]{40})`)

// detectTrailer trusts a cherry-pick trailer as is: the referenced commit is
// the original, no matter whether it exists or is older.
func detectTrailer(commit gitlib.CommitInfo) (CherryPickScenario, bool) {
	match := cherryPickTrailer.FindStringSubmatch(commit.Message)
	if match == nil {
		return CherryPickScenario{}, false
	}

	cherry, err := gitlib.ParseHash(match[1])
	if err != nil {
		return CherryPickScenario{}, false
	}

	return CherryPickScenario{
		CherryPickCommit: commit.Hash,
		CherryCommit:     cherry,
		Parents:          slices.Clone(commit.Parents),
	}, true
}

// messageIndex groups walked commits by their exact message.
type messageIndex struct {
	groups  map[string][]gitlib.CommitInfo
	order   []string
	indexed map[gitlib.Hash]struct{}
}

func newMessageIndex() *messageIndex {
	return &messageIndex{
		groups:  make(map[string][]gitlib.CommitInfo),
		indexed: make(map[gitlib.Hash]struct{}),
	}
}

// add indexes a commit once, however many branches walk it.
func (idx *messageIndex) add(commit gitlib.CommitInfo) {
	if _, ok := idx.indexed[commit.Hash]; ok {
		return
	}

	idx.indexed[commit.Hash] = struct{}{}

	if _, ok := idx.groups[commit.Message]; !ok {
		idx.order = append(idx.order, commit.Message)
	}

	idx.groups[commit.Message] = append(idx.groups[commit.Message], commit)
}

// duplicates returns the groups of at least two commits, smallest first.
// Groups of equal size keep their first-sighting order.
func (idx *messageIndex) duplicates() [][]gitlib.CommitInfo {
	var groups [][]gitlib.CommitInfo

	for _, message := range idx.order {
		if group := idx.groups[message]; len(group) >= 2 {
			groups = append(groups, group)
		}
	}

	slices.SortStableFunc(groups, func(a, b []gitlib.CommitInfo) int {
		return len(a) - len(b)
	})

	return groups
}

// orientPair makes the earlier commit the cherry. Commits with identical
// timestamps cannot be ordered and produce no scenario.
func orientPair(a, b gitlib.CommitInfo) (CherryPickScenario, bool) {
	if a.SameTime(b) {
		return CherryPickScenario{}, false
	}

	cherry, pick := a, b
	if b.Before(a) {
		cherry, pick = b, a
	}

	return CherryPickScenario{
		CherryPickCommit: pick.Hash,
		CherryCommit:     cherry.Hash,
		Parents:          slices.Clone(pick.Parents),
	}, true
}

// duplicateMatcher finds cherry-picks among commits sharing a message by
// comparing patch ids, within a wall-clock and a result budget.
type duplicateMatcher struct {
	ids     *patchid.Cache
	now     func() time.Time
	timeout time.Duration
	limit   int
	logger  *slog.Logger
	stats   *Stats
}

// match compares every pivot of a group with the later commits of that group
// and stops the pivot at its first match. That keeps one original picked onto
// several branches from pairing every copy with every other copy.
func (m *duplicateMatcher) match(
	ctx context.Context, groups [][]gitlib.CommitInfo, emit func(CherryPickScenario),
) error {
	start := m.now()
	found := 0

	for _, group := range groups {
		for i := range group {
			for j := i + 1; j < len(group); j++ {
				if m.exhausted(ctx, start, found) {
					return nil
				}

				err := ctx.Err()
				if err != nil {
					return fmt.Errorf("cherry-pick matching interrupted: %w", err)
				}

				m.stats.CherryPickComparisons++

				same, err := m.samePatch(ctx, group[i].Hash, group[j].Hash)
				if err != nil {
					return err
				}

				if !same {
					continue
				}

				if scenario, ok := orientPair(group[i], group[j]); ok {
					emit(scenario)
					found++
				}

				break
			}
		}
	}

	return nil
}

func (m *duplicateMatcher) exhausted(ctx context.Context, start time.Time, found int) bool {
	if found >= m.limit {
		m.stats.CherryPickLimitReached = true
		m.logger.InfoContext(ctx, "cherry-pick scenario limit reached", "limit", m.limit)

		return true
	}

	if elapsed := m.now().Sub(start); elapsed >= m.timeout {
		m.stats.CherryPickBudgetExpired = true
		m.logger.WarnContext(ctx, "cherry-pick time budget expired, result may be incomplete",
			"elapsed", elapsed, "budget", m.timeout, "found", found)

		return true
	}

	return false
}

func (m *duplicateMatcher) samePatch(ctx context.Context, a, b gitlib.Hash) (bool, error) {
	idA, err := m.ids.Sum(ctx, a)
	if err != nil {
		return false, err
	}

	idB, err := m.ids.Sum(ctx, b)
	if err != nil {
		return false, err
	}

	return idA == idB, nil
}
