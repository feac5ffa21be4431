// Package version holds the build metadata of the scenariominer binary.
package version

import (
	"runtime/debug"
	"sync"
)

const unknown = "unknown"

// Set at link time with -ldflags "-X .../pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

var initOnce sync.Once

// InitBinaryVersion fills Commit and Date from the VCS stamp of the build
// when they were not set at link time, and Version from the module version
// of a "go install"-ed binary.
func InitBinaryVersion() {
	initOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		applyBuildInfo(info)
	})
}

func applyBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String formats the version line printed by the version command.
func String() string {
	return "scenariominer " + Version + " (commit: " + Commit + ", built: " + Date + ")"
}
