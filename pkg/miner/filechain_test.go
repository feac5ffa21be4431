package miner_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/language"
	"github.com/Sumatoshi-tech/scenariominer/pkg/miner"
)

func modified(paths ...string) []gitlib.PathChange {
	changes := make([]gitlib.PathChange, len(paths))
	for i, path := range paths {
		changes[i] = gitlib.PathChange{Type: gitlib.ChangeModified, Path: path}
	}

	return changes
}

func TestFinalizeThreshold(t *testing.T) {
	t.Parallel()

	const window = 4

	tests := []struct {
		name  string
		count int
		emit  bool
	}{
		{name: "longer than window", count: 5, emit: true},
		{name: "exactly window", count: 4, emit: true},
		{name: "shorter than window", count: 3, emit: false},
		{name: "zero", count: 0, emit: false},
		{name: "negative", count: -5, emit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracker := miner.NewFileChainTracker(window, nil, slog.New(slog.DiscardHandler))
			state := miner.ChainState{
				OldestCommit:           gitlib.TestHash("old"),
				NewestCommit:           gitlib.TestHash("new"),
				TimesSeenConsecutively: tt.count,
			}

			scenario, ok := tracker.Finalize(context.Background(), "main", "src/app.py", state)
			require.Equal(t, tt.emit, ok)

			if tt.emit {
				assert.Equal(t, miner.FileChainScenario{
					File:                   "src/app.py",
					Branch:                 "main",
					OldestCommit:           gitlib.TestHash("old"),
					NewestCommit:           gitlib.TestHash("new"),
					TimesSeenConsecutively: tt.count,
				}, scenario)
			}
		})
	}
}

func TestFinalizeLogsCorruptState(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	tracker := miner.NewFileChainTracker(3, nil, logger)

	_, ok := tracker.Finalize(context.Background(), "main", "a.py", miner.ChainState{TimesSeenConsecutively: -5})

	assert.False(t, ok)
	assert.Equal(t, 1, tracker.CorruptStates())
	assert.Contains(t, buf.String(), "corrupt file chain state")
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestObserveAnchorsNewestUntilWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := miner.NewFileChainTracker(3, nil, nil)

	c1, c2, c3, c4 := gitlib.TestHash("c1"), gitlib.TestHash("c2"), gitlib.TestHash("c3"), gitlib.TestHash("c4")

	assert.Empty(t, tracker.Observe(ctx, "main", c1, modified("a.py")))
	assert.Empty(t, tracker.Observe(ctx, "main", c2, modified("a.py")))

	state, ok := tracker.State("main", "a.py")
	require.True(t, ok)
	assert.Equal(t, miner.ChainState{OldestCommit: c1, NewestCommit: c1, TimesSeenConsecutively: 2}, state)

	assert.Empty(t, tracker.Observe(ctx, "main", c3, modified("a.py")))

	state, _ = tracker.State("main", "a.py")
	assert.Equal(t, c3, state.NewestCommit)

	// The file is absent from c4: its run of three ends and is emitted whole.
	emitted := tracker.Observe(ctx, "main", c4, modified("b.py"))
	require.Len(t, emitted, 1)
	assert.Equal(t, miner.FileChainScenario{
		File: "a.py", Branch: "main", OldestCommit: c1, NewestCommit: c3, TimesSeenConsecutively: 3,
	}, emitted[0])

	_, ok = tracker.State("main", "a.py")
	assert.False(t, ok)
	assert.Equal(t, 1, tracker.Open())
}

func TestObserveDiscardsShortRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := miner.NewFileChainTracker(3, nil, nil)

	tracker.Observe(ctx, "main", gitlib.TestHash("c1"), modified("a.py"))
	tracker.Observe(ctx, "main", gitlib.TestHash("c2"), modified("a.py"))

	assert.Empty(t, tracker.Observe(ctx, "main", gitlib.TestHash("c3"), nil))
	assert.Zero(t, tracker.Open())
}

func TestObserveChangeTypes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := miner.NewFileChainTracker(2, nil, nil)

	tracker.Observe(ctx, "main", gitlib.TestHash("c1"), []gitlib.PathChange{
		{Type: gitlib.ChangeAdded, Path: "added.py"},
		{Type: gitlib.ChangeMergeModified, Path: "merged.py"},
		{Type: gitlib.ChangeDeleted, Path: "deleted.py"},
		{Type: gitlib.ChangeRenamed, Path: "renamed.py", OldPath: "old.py"},
	})

	_, ok := tracker.State("main", "added.py")
	assert.True(t, ok)

	_, ok = tracker.State("main", "merged.py")
	assert.True(t, ok)

	_, ok = tracker.State("main", "deleted.py")
	assert.False(t, ok)

	_, ok = tracker.State("main", "renamed.py")
	assert.False(t, ok)

	// A rename of a tracked file breaks its chain.
	tracker.Observe(ctx, "main", gitlib.TestHash("c2"), modified("merged.py"))
	tracker.Observe(ctx, "main", gitlib.TestHash("c3"), []gitlib.PathChange{
		{Type: gitlib.ChangeRenamed, Path: "merged2.py", OldPath: "merged.py"},
	})

	_, ok = tracker.State("main", "merged.py")
	assert.False(t, ok)
}

func TestObserveAppliesLanguageFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	filter := language.NewFilter(language.MustParse(language.Kotlin))
	tracker := miner.NewFileChainTracker(1, filter, nil)

	tracker.Observe(ctx, "main", gitlib.TestHash("c1"), modified("app/Main.kt", "README.md", "app/Util.java"))

	assert.Equal(t, 1, tracker.Open())

	_, ok := tracker.State("main", "app/Main.kt")
	assert.True(t, ok)
}

func TestFinishIsPerBranch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := miner.NewFileChainTracker(2, nil, nil)

	tracker.Observe(ctx, "main", gitlib.TestHash("m1"), modified("a.py", "b.py"))
	tracker.Observe(ctx, "main", gitlib.TestHash("m2"), modified("a.py", "b.py"))
	tracker.Observe(ctx, "dev", gitlib.TestHash("d1"), modified("a.py"))

	emitted := tracker.Finish(ctx, "main")
	require.Len(t, emitted, 2)
	assert.Equal(t, "a.py", emitted[0].File)
	assert.Equal(t, "b.py", emitted[1].File)
	assert.Equal(t, 1, tracker.Open())

	_, ok := tracker.State("dev", "a.py")
	assert.True(t, ok)

	assert.Empty(t, tracker.Finish(ctx, "dev"))
	assert.Zero(t, tracker.Open())
}
