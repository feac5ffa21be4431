package store_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scenariominer/pkg/batch"
	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/miner"
	"github.com/Sumatoshi-tech/scenariominer/pkg/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "db", "results.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, s.Close()) })

	return s
}

func sampleResult(name string) batch.RepositoryResult {
	chains := make([]miner.FileChainScenario, 0, 20)
	for range 20 {
		chains = append(chains, miner.FileChainScenario{
			File:                   "src/main/kotlin/App.kt",
			Branch:                 "main",
			OldestCommit:           gitlib.TestHash("old"),
			NewestCommit:           gitlib.TestHash("new"),
			TimesSeenConsecutively: 4,
		})
	}

	return batch.RepositoryResult{
		Name:       name,
		Source:     "https://github.com/" + name + ".git",
		Language:   "kotlin",
		WindowSize: 3,
		Branches:   2,
		Commits:    42,
		Scenarios: miner.Result{
			FileChains: chains,
			Merges: []miner.MergeScenario{{
				MergeCommit:  gitlib.TestHash("m"),
				Parents:      []gitlib.Hash{gitlib.TestHash("p1"), gitlib.TestHash("p2")},
				HadConflicts: true,
			}},
			CherryPicks: []miner.CherryPickScenario{},
			Stats:       miner.Stats{BranchesWalked: 2, CommitsProcessed: 42},
		},
		Duration: 1500 * time.Millisecond,
		MinedAt:  time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)
	want := sampleResult("owner/repo")

	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx, want.Source)
	require.NoError(t, err)

	assert.True(t, want.MinedAt.Equal(got.MinedAt))

	got.MinedAt = want.MinedAt
	assert.Equal(t, want, got)
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	_, err := openStore(t).Load(context.Background(), "https://github.com/nobody/nothing.git")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = openStore(t).Find(context.Background(), "nobody/nothing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveKeepsSameNamedSources(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)

	first := sampleResult("repo")
	first.Source = "/work/a/repo"

	second := sampleResult("repo")
	second.Source = "/work/b/repo"
	second.Scenarios.Merges = nil

	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/work/a/repo", entries[0].Source)
	assert.Equal(t, "/work/b/repo", entries[1].Source)

	found, err := s.Find(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Len(t, found[0].Scenarios.Merges, 1)
	assert.Empty(t, found[1].Scenarios.Merges)

	found, err = s.Find(ctx, "/work/b/repo")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "/work/b/repo", found[0].Source)
}

func TestSaveReplacesExistingRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)

	first := sampleResult("owner/repo")
	require.NoError(t, s.Save(ctx, first))

	second := sampleResult("owner/repo")
	second.Scenarios.Merges = nil
	second.Error = "read commit deadbeef: object not found"
	require.NoError(t, s.Save(ctx, second))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Zero(t, entries[0].Merges)
	assert.Equal(t, second.Error, entries[0].Error)
}

func TestList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)

	require.NoError(t, s.Save(ctx, sampleResult("zeta/repo")))
	require.NoError(t, s.Save(ctx, sampleResult("alpha/repo")))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "alpha/repo", entries[0].Name)
	assert.Equal(t, "zeta/repo", entries[1].Name)
	assert.Equal(t, 20, entries[0].FileChains)
	assert.Equal(t, 1, entries[0].Merges)
	assert.Zero(t, entries[0].CherryPicks)
	assert.Equal(t, 42, entries[0].Commits)
	assert.Equal(t, "kotlin", entries[0].Language)
}

func TestListEmpty(t *testing.T) {
	t.Parallel()

	entries, err := openStore(t).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
