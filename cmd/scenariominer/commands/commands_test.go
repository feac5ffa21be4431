package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scenariominer/pkg/batch"
	"github.com/Sumatoshi-tech/scenariominer/pkg/config"
	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/report"
)

var errNoSuchRemote = errors.New("no such remote")

var fixedNow = func() time.Time { return time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC) }

// kotlinHistory has one conflicting merge and a four-commit chain on App.kt.
func kotlinHistory() *gitlib.MemoryRepository {
	kt := func(kind gitlib.ChangeType) gitlib.PathChange {
		return gitlib.PathChange{Type: kind, Path: "src/App.kt"}
	}

	b := gitlib.NewHistoryBuilder()
	b.Commit("r", "root", nil, kt(gitlib.ChangeAdded))
	b.Commit("x", "left", []string{"r"}, kt(gitlib.ChangeModified))
	b.Commit("y", "right", []string{"r"}, kt(gitlib.ChangeModified))
	b.Commit("m", "merge", []string{"x", "y"}, kt(gitlib.ChangeMergeModified))
	b.Branch("main", "m")

	return b.Repository()
}

func memoryOpeners(repos map[string]*gitlib.MemoryRepository) openerFactory {
	return func(string, bool) batch.Opener {
		return func(_ context.Context, source string) (batch.Opened, error) {
			repo, ok := repos[source]
			if !ok {
				return batch.Opened{}, errNoSuchRemote
			}

			return batch.Opened{Repo: repo}, nil
		}
	}
}

func emptyConfig(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scenariominer.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	return path
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())

	return stdout.String(), err
}

func TestMineWritesJSONReport(t *testing.T) {
	t.Parallel()

	cmd := newMineCommandWithDeps(memoryOpeners(map[string]*gitlib.MemoryRepository{
		"/repos/app": kotlinHistory(),
	}), fixedNow)

	out, err := execute(t, cmd, "--config", emptyConfig(t), "-q", "/repos/app")
	require.NoError(t, err)
	require.NoError(t, report.Validate([]byte(out)))

	rep, err := report.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	require.Len(t, rep.Repositories, 1)

	repo := rep.Repositories[0]
	assert.Equal(t, "app", repo.Name)
	assert.Equal(t, config.DefaultLanguage, repo.Language)
	require.Len(t, repo.Scenarios.Merges, 1)
	assert.True(t, repo.Scenarios.Merges[0].HadConflicts)
}

func TestMineFlagsOverrideConfig(t *testing.T) {
	t.Parallel()

	cmd := newMineCommandWithDeps(memoryOpeners(map[string]*gitlib.MemoryRepository{
		"/repos/app": kotlinHistory(),
	}), fixedNow)

	out, err := execute(t, cmd, "--config", emptyConfig(t), "-q", "--window", "2", "--language", "python", "/repos/app")
	require.NoError(t, err)

	rep, err := report.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, err)

	repo := rep.Repositories[0]
	assert.Equal(t, "python", repo.Language)
	assert.Equal(t, 2, repo.WindowSize)
	assert.Empty(t, repo.Scenarios.Merges)
}

func TestMineRejectsInvalidWindow(t *testing.T) {
	t.Parallel()

	cmd := newMineCommandWithDeps(memoryOpeners(nil), fixedNow)

	_, err := execute(t, cmd, "--config", emptyConfig(t), "--window", "0", "/repos/app")
	require.ErrorIs(t, err, config.ErrInvalidWindowSize)
}

func TestMineReportsFailedRepositories(t *testing.T) {
	t.Parallel()

	cmd := newMineCommandWithDeps(memoryOpeners(map[string]*gitlib.MemoryRepository{
		"/repos/app": kotlinHistory(),
	}), fixedNow)

	out, err := execute(t, cmd, "--config", emptyConfig(t), "-q", "/repos/app", "https://example.com/org/missing.git")
	require.ErrorIs(t, err, ErrRepositoriesFailed)

	rep, decodeErr := report.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, decodeErr)
	require.Len(t, rep.Repositories, 2)
	assert.False(t, rep.Repositories[0].Failed())
	assert.True(t, rep.Repositories[1].Failed())
}

func TestMineStoreAndExport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "results.db")
	yamlPath := filepath.Join(dir, "report.yaml")

	mine := newMineCommandWithDeps(memoryOpeners(map[string]*gitlib.MemoryRepository{
		"/repos/app":   kotlinHistory(),
		"/repos/other": kotlinHistory(),
	}), fixedNow)

	_, err := execute(t, mine, "--config", emptyConfig(t), "-q", "--db", dbPath, "--output", yamlPath, "/repos/app", "/repos/other")
	require.NoError(t, err)

	written, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), "merge_scenarios:")

	out, err := execute(t, newExportCommandWithDeps(fixedNow), "--db", dbPath)
	require.NoError(t, err)

	rep, err := report.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	require.Len(t, rep.Repositories, 2)
	assert.Equal(t, "app", rep.Repositories[0].Name)
	assert.Equal(t, "other", rep.Repositories[1].Name)
	assert.Len(t, rep.Repositories[0].Scenarios.Merges, 1)

	out, err = execute(t, newExportCommandWithDeps(fixedNow), "--db", dbPath, "other")
	require.NoError(t, err)

	rep, err = report.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	require.Len(t, rep.Repositories, 1)
	assert.Equal(t, "other", rep.Repositories[0].Name)
}

func TestMineStoreKeepsSameNamedRepositories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "results.db")

	mine := newMineCommandWithDeps(memoryOpeners(map[string]*gitlib.MemoryRepository{
		"/work/a/repo": kotlinHistory(),
		"/work/b/repo": kotlinHistory(),
	}), fixedNow)

	_, err := execute(t, mine, "--config", emptyConfig(t), "-q", "--db", dbPath,
		"--output", filepath.Join(dir, "report.json"), "/work/a/repo", "/work/b/repo")
	require.NoError(t, err)

	out, err := execute(t, newExportCommandWithDeps(fixedNow), "--db", dbPath, "repo")
	require.NoError(t, err)

	rep, err := report.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	require.Len(t, rep.Repositories, 2)
	assert.Equal(t, "/work/a/repo", rep.Repositories[0].Source)
	assert.Equal(t, "/work/b/repo", rep.Repositories[1].Source)

	out, err = execute(t, newExportCommandWithDeps(fixedNow), "--db", dbPath, "/work/b/repo")
	require.NoError(t, err)

	rep, err = report.Decode(bytes.NewReader([]byte(out)))
	require.NoError(t, err)
	require.Len(t, rep.Repositories, 1)
	assert.Equal(t, "/work/b/repo", rep.Repositories[0].Source)
}

func TestExportRequiresDatabase(t *testing.T) {
	t.Parallel()

	_, err := execute(t, newExportCommandWithDeps(fixedNow))
	require.ErrorIs(t, err, ErrNoDatabase)
}

func TestValidateCompressedReport(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.json.lz4")

	mine := newMineCommandWithDeps(memoryOpeners(map[string]*gitlib.MemoryRepository{
		"/repos/app": kotlinHistory(),
	}), fixedNow)

	_, err := execute(t, mine, "--config", emptyConfig(t), "-q", "--output", path, "/repos/app")
	require.NoError(t, err)

	out, err := execute(t, NewValidateCommand(), path)
	require.NoError(t, err)
	assert.Contains(t, out, "report is valid")
}

func TestValidateRejectsInvalidReport(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tool":"scenariominer"}`), 0o600))

	_, err := execute(t, NewValidateCommand(), path)
	require.ErrorIs(t, err, report.ErrInvalidReport)
}
