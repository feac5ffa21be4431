package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyBuildInfo(t *testing.T) {
	savedVersion, savedCommit, savedDate := Version, Commit, Date

	t.Cleanup(func() { Version, Commit, Date = savedVersion, savedCommit, savedDate })

	Version, Commit, Date = "dev", unknown, unknown

	applyBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2024-01-01T00:00:00Z"},
		},
	})

	assert.Equal(t, "v1.2.3", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2024-01-01T00:00:00Z", Date)
	assert.Equal(t, "scenariominer v1.2.3 (commit: abc123, built: 2024-01-01T00:00:00Z)", String())
}

func TestApplyBuildInfoKeepsLinkerValues(t *testing.T) {
	savedVersion, savedCommit, savedDate := Version, Commit, Date

	t.Cleanup(func() { Version, Commit, Date = savedVersion, savedCommit, savedDate })

	Version, Commit, Date = "v9.9.9", "linked", "today"

	applyBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})

	assert.Equal(t, "v9.9.9", Version)
	assert.Equal(t, "linked", Commit)
	assert.Equal(t, "today", Date)
}
