package miner

import (
	"context"
	"log/slog"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
)

// chainKey identifies the run state of one file within one branch walk.
type chainKey struct {
	Branch string
	Path   string
}

// ChainState is the run of a file through consecutive commits of a branch
// walk. NewestCommit stays anchored at OldestCommit until the run reaches the
// window size.
type ChainState struct {
	OldestCommit           gitlib.Hash
	NewestCommit           gitlib.Hash
	TimesSeenConsecutively int
}

// FileChainTracker keeps sliding-window state per (branch, file) and turns
// finished runs into FileChainScenarios.
type FileChainTracker struct {
	windowSize int
	filter     PathFilter
	logger     *slog.Logger

	states map[chainKey]ChainState
	// order keeps first-sighting order so emission is deterministic.
	order []chainKey

	corrupt int
}

// NewFileChainTracker creates a tracker for runs of at least windowSize
// commits over the paths accepted by filter. A nil filter accepts every path.
func NewFileChainTracker(windowSize int, filter PathFilter, logger *slog.Logger) *FileChainTracker {
	if filter == nil {
		filter = AllPaths{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &FileChainTracker{
		windowSize: windowSize,
		filter:     filter,
		logger:     logger,
		states:     make(map[chainKey]ChainState),
	}
}

// Observe feeds one walked commit of branch into the tracker and returns the
// runs it completed.
func (t *FileChainTracker) Observe(
	ctx context.Context, branch string, commit gitlib.Hash, changes []gitlib.PathChange,
) []FileChainScenario {
	present := make(map[string]struct{}, len(changes))
	paths := make([]string, 0, len(changes))

	for _, change := range changes {
		if !countsAsPresent(change.Type) || !t.filter.Match(change.Path) {
			continue
		}

		if _, dup := present[change.Path]; dup {
			continue
		}

		present[change.Path] = struct{}{}
		paths = append(paths, change.Path)
	}

	var emitted []FileChainScenario

	kept := t.order[:0]

	for _, key := range t.order {
		if key.Branch != branch {
			kept = append(kept, key)

			continue
		}

		if _, ok := present[key.Path]; ok {
			kept = append(kept, key)

			continue
		}

		if scenario, ok := t.Finalize(ctx, key.Branch, key.Path, t.states[key]); ok {
			emitted = append(emitted, scenario)
		}

		delete(t.states, key)
	}

	t.order = kept

	for _, path := range paths {
		key := chainKey{Branch: branch, Path: path}

		state, ok := t.states[key]
		if !ok {
			t.states[key] = ChainState{OldestCommit: commit, NewestCommit: commit, TimesSeenConsecutively: 1}
			t.order = append(t.order, key)

			continue
		}

		state.TimesSeenConsecutively++
		if state.TimesSeenConsecutively >= t.windowSize {
			state.NewestCommit = commit
		}

		t.states[key] = state
	}

	return emitted
}

// Finish finalizes every run still open on branch, for example when the walk
// reached the root commit, and clears the branch state.
func (t *FileChainTracker) Finish(ctx context.Context, branch string) []FileChainScenario {
	var emitted []FileChainScenario

	kept := t.order[:0]

	for _, key := range t.order {
		if key.Branch != branch {
			kept = append(kept, key)

			continue
		}

		if scenario, ok := t.Finalize(ctx, key.Branch, key.Path, t.states[key]); ok {
			emitted = append(emitted, scenario)
		}

		delete(t.states, key)
	}

	t.order = kept

	return emitted
}

// Finalize decides whether a finished run becomes a scenario: it does iff
// the run lasted at least the window size. A run shorter than one commit
// can only come from corrupted state; it is logged and never emitted.
func (t *FileChainTracker) Finalize(
	ctx context.Context, branch, path string, state ChainState,
) (FileChainScenario, bool) {
	if state.TimesSeenConsecutively < 1 {
		t.corrupt++
		t.logger.ErrorContext(ctx, "discarding corrupt file chain state",
			"branch", branch, "file", path,
			"times_seen_consecutively", state.TimesSeenConsecutively)

		return FileChainScenario{}, false
	}

	if state.TimesSeenConsecutively < t.windowSize {
		return FileChainScenario{}, false
	}

	return FileChainScenario{
		File:                   path,
		Branch:                 branch,
		OldestCommit:           state.OldestCommit,
		NewestCommit:           state.NewestCommit,
		TimesSeenConsecutively: state.TimesSeenConsecutively,
	}, true
}

// State returns the open run of a file on a branch.
func (t *FileChainTracker) State(branch, path string) (ChainState, bool) {
	state, ok := t.states[chainKey{Branch: branch, Path: path}]

	return state, ok
}

// Open returns the number of open runs.
func (t *FileChainTracker) Open() int {
	return len(t.states)
}

// CorruptStates returns how many corrupt runs were discarded.
func (t *FileChainTracker) CorruptStates() int {
	return t.corrupt
}
