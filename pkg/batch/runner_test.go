package batch_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scenariominer/pkg/batch"
	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/language"
	"github.com/Sumatoshi-tech/scenariominer/pkg/miner"
)

var errUnreachable = errors.New("remote unreachable")

func mergeHistory() *gitlib.MemoryRepository {
	py := func(kind gitlib.ChangeType) gitlib.PathChange {
		return gitlib.PathChange{Type: kind, Path: "app.py"}
	}

	b := gitlib.NewHistoryBuilder()
	b.Commit("r", "root", nil, py(gitlib.ChangeAdded))
	b.Commit("x", "left", []string{"r"}, py(gitlib.ChangeModified))
	b.Commit("y", "right", []string{"r"}, py(gitlib.ChangeModified))
	b.Commit("m", "merge", []string{"x", "y"}, py(gitlib.ChangeMergeModified))
	b.Branch("main", "m")

	return b.Repository()
}

// memoryOpener serves in-memory repositories by source and counts closes.
type memoryOpener struct {
	mu     sync.Mutex
	repos  map[string]*gitlib.MemoryRepository
	closed map[string]int
}

func newMemoryOpener(repos map[string]*gitlib.MemoryRepository) *memoryOpener {
	return &memoryOpener{repos: repos, closed: make(map[string]int)}
}

func (o *memoryOpener) open(_ context.Context, source string) (batch.Opened, error) {
	repo, ok := o.repos[source]
	if !ok {
		return batch.Opened{}, errUnreachable
	}

	return batch.Opened{Repo: repo, Close: func() error {
		o.mu.Lock()
		defer o.mu.Unlock()

		o.closed[source]++

		return nil
	}}, nil
}

func newRunner(t *testing.T, opener batch.Opener, workers int) *batch.Runner {
	t.Helper()

	cfg := miner.DefaultConfig()
	cfg.Filter = language.NewFilter(language.MustParse(language.Python))

	runner, err := batch.NewRunner(batch.Options{
		Miner:   cfg,
		Workers: workers,
		Opener:  opener,
		Logger:  slog.New(slog.DiscardHandler),
		Now:     func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	return runner
}

func TestNewRunnerValidation(t *testing.T) {
	t.Parallel()

	_, err := batch.NewRunner(batch.Options{Miner: miner.DefaultConfig()})
	require.ErrorIs(t, err, batch.ErrNoOpener)

	cfg := miner.DefaultConfig()
	cfg.WindowSize = 0

	_, err = batch.NewRunner(batch.Options{Miner: cfg, Opener: newMemoryOpener(nil).open})
	require.ErrorIs(t, err, miner.ErrInvalidWindowSize)
}

func TestRunRecordsResultsInInputOrder(t *testing.T) {
	t.Parallel()

	opener := newMemoryOpener(map[string]*gitlib.MemoryRepository{
		"/repos/first":  mergeHistory(),
		"/repos/second": mergeHistory(),
	})

	var (
		mu       sync.Mutex
		reported []string
	)

	cfg := miner.DefaultConfig()
	cfg.Filter = language.NewFilter(language.MustParse(language.Python))

	runner, err := batch.NewRunner(batch.Options{
		Miner:   cfg,
		Workers: 2,
		Opener:  opener.open,
		Logger:  slog.New(slog.DiscardHandler),
		OnResult: func(_ context.Context, result batch.RepositoryResult) {
			mu.Lock()
			defer mu.Unlock()

			reported = append(reported, result.Name)
		},
	})
	require.NoError(t, err)

	results, err := runner.Run(context.Background(), []string{"/repos/first", "https://example.com/org/gone.git", "/repos/second"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "first", results[0].Name)
	assert.Equal(t, "org/gone", results[1].Name)
	assert.Equal(t, "second", results[2].Name)
	assert.ElementsMatch(t, []string{"first", "org/gone", "second"}, reported)

	first := results[0]
	assert.False(t, first.Failed())
	assert.Equal(t, language.Python, first.Language)
	assert.Equal(t, miner.DefaultWindowSize, first.WindowSize)
	assert.Equal(t, 1, first.Branches)
	assert.Equal(t, 4, first.Commits)
	require.Len(t, first.Scenarios.Merges, 1)
	assert.True(t, first.Scenarios.Merges[0].HadConflicts)

	assert.True(t, results[1].Failed())
	assert.Contains(t, results[1].Error, errUnreachable.Error())

	assert.Equal(t, 1, opener.closed["/repos/first"])
	assert.Equal(t, 1, opener.closed["/repos/second"])
}

func TestRunKeepsPartialScenariosOnFailure(t *testing.T) {
	t.Parallel()

	repo := mergeHistory()

	b := gitlib.NewHistoryBuilder()
	b.Commit("z", "broken", nil, gitlib.PathChange{Type: gitlib.ChangeAdded, Path: "z.py"})

	zCommit, err := b.Repository().Commit(context.Background(), gitlib.TestHash("z"))
	require.NoError(t, err)

	repo.AddCommit(gitlib.MemoryCommit{Info: zCommit})
	repo.SetBranch("broken", zCommit.Hash)
	repo.Fail = func(op string, hash gitlib.Hash) error {
		if op == "changes" && hash == zCommit.Hash {
			return errUnreachable
		}

		return nil
	}

	runner := newRunner(t, newMemoryOpener(map[string]*gitlib.MemoryRepository{"/repos/partial": repo}).open, 1)

	results, err := runner.Run(context.Background(), []string{"/repos/partial"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Failed())
	assert.Len(t, results[0].Scenarios.Merges, 1)
}

func TestRunCanceledContext(t *testing.T) {
	t.Parallel()

	runner := newRunner(t, newMemoryOpener(map[string]*gitlib.MemoryRepository{"/repos/a": mergeHistory()}).open, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := runner.Run(ctx, []string{"/repos/a"})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
}

func TestGitOpenerMissingLocalRepository(t *testing.T) {
	t.Parallel()

	open := batch.GitOpener("", false)

	_, err := open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestCloneDirName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		source string
		prefix string
	}{
		{source: "https://github.com/owner/repo.git", prefix: "owner__repo-"},
		{source: "git@github.com:owner/repo.git", prefix: "owner__repo-"},
		{source: "https://gitlab.com/group/sub/repo", prefix: "group__sub__repo-"},
	}

	for _, tt := range tests {
		name := batch.CloneDirName(tt.source)
		assert.True(t, strings.HasPrefix(name, tt.prefix), name)
		assert.NotContains(t, name, "/")
		assert.Equal(t, name, batch.CloneDirName(tt.source))
	}
}

func TestCloneDirNameSeparatesHosts(t *testing.T) {
	t.Parallel()

	github := batch.CloneDirName("https://github.com/owner/repo.git")
	gitlab := batch.CloneDirName("https://gitlab.com/owner/repo.git")

	assert.NotEqual(t, github, gitlab)
}
