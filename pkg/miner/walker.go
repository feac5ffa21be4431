package miner

import (
	"context"
	"fmt"

	"github.com/gammazero/deque"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
)

// walker traverses branch histories breadth-first. The visited set is shared
// by all branches of a run, so every commit gets exactly one primary visit; a
// branch that runs into history another branch already walked may continue
// for keepalive more commits before it stops.
type walker struct {
	repo       Repository
	windowSize int
	visited    map[gitlib.Hash]struct{}
	stats      *Stats
}

func newWalker(repo Repository, windowSize int, stats *Stats) *walker {
	return &walker{
		repo:       repo,
		windowSize: windowSize,
		visited:    make(map[gitlib.Hash]struct{}),
		stats:      stats,
	}
}

// walkBranch yields the commits of one branch walk starting at head, in
// breadth-first order. A commit is yielded at most once per branch.
func (w *walker) walkBranch(ctx context.Context, head gitlib.Hash, yield func(gitlib.CommitInfo) error) error {
	var queue deque.Deque[gitlib.Hash]

	queue.PushBack(head)

	keepalive := w.windowSize - 1
	yielded := make(map[gitlib.Hash]struct{})

	for queue.Len() > 0 {
		err := ctx.Err()
		if err != nil {
			return fmt.Errorf("walk interrupted: %w", err)
		}

		hash := queue.PopFront()

		// Diamonds in the DAG enqueue the same ancestor twice.
		if _, done := yielded[hash]; done {
			continue
		}

		_, seen := w.visited[hash]

		switch {
		case !seen:
			w.visited[hash] = struct{}{}
		case keepalive > 0:
			keepalive--
			w.stats.KeepaliveRevisits++
		default:
			return nil
		}

		commit, err := w.repo.Commit(ctx, hash)
		if err != nil {
			return fmt.Errorf("read commit %s: %w", hash.Short(), err)
		}

		w.enqueueContinuation(&queue, commit)

		yielded[hash] = struct{}{}
		w.stats.CommitsProcessed++

		err = yield(commit)
		if err != nil {
			return err
		}
	}

	return nil
}

// enqueueContinuation queues the parents to explore after commit. A merge
// only continues into parents nobody has visited yet; a single parent is
// always queued so the keepalive allowance can carry the walk past the point
// where it joins known history.
func (w *walker) enqueueContinuation(queue *deque.Deque[gitlib.Hash], commit gitlib.CommitInfo) {
	switch {
	case commit.IsMerge():
		for _, parent := range commit.Parents {
			if _, seen := w.visited[parent]; !seen {
				queue.PushBack(parent)
			}
		}
	case len(commit.Parents) == 1:
		queue.PushBack(commit.Parents[0])
	}
}
