package gitlib

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// scpLikeURI matches scp-style remotes such as git@github.com:owner/repo.git.
var scpLikeURI = regexp.MustCompile(`^[A-Za-z]\w*@[A-Za-z0-9][\w.]*:`)

// IsRemoteURI reports whether uri names a remote repository rather than a
// local path.
func IsRemoteURI(uri string) bool {
	return strings.Contains(uri, "://") || scpLikeURI.MatchString(uri)
}

// RepositoryName derives a short display name from a repository location:
// "owner/repo" for remote URIs, the directory name for local paths.
func RepositoryName(uri string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(uri, "/"+string(os.PathSeparator)), ".git")

	if IsRemoteURI(trimmed) {
		if idx := strings.Index(trimmed, "://"); idx >= 0 {
			trimmed = trimmed[idx+len("://"):]
			// Drop the host.
			if slash := strings.Index(trimmed, "/"); slash >= 0 {
				trimmed = trimmed[slash+1:]
			}
		} else if colon := strings.Index(trimmed, ":"); colon >= 0 {
			trimmed = trimmed[colon+1:]
		}

		return trimmed
	}

	return filepath.Base(trimmed)
}

// LoadRepository opens a local repository, tolerating a trailing path separator.
func LoadRepository(path string) (*Repository, error) {
	return OpenRepository(strings.TrimRight(path, string(os.PathSeparator)))
}
