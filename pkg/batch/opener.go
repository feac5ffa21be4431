package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/miner"
)

// Opened is a repository ready to be mined. Close releases it and removes
// any scratch clone.
type Opened struct {
	Repo  miner.Repository
	Close func() error
}

// Opener opens the repository named by source, a local path or a remote URI.
type Opener func(ctx context.Context, source string) (Opened, error)

// GitOpener opens local repositories in place and clones remote ones under
// cloneDir. An empty cloneDir clones into a fresh temporary directory.
// Clones are removed on Close unless keepClones is set, in which case a
// later run reuses them.
func GitOpener(cloneDir string, keepClones bool) Opener {
	return func(_ context.Context, source string) (Opened, error) {
		if !gitlib.IsRemoteURI(source) {
			repo, err := gitlib.LoadRepository(source)
			if err != nil {
				return Opened{}, err
			}

			return Opened{Repo: repo, Close: freeOnly(repo)}, nil
		}

		return cloneRemote(source, cloneDir, keepClones)
	}
}

func cloneRemote(source, cloneDir string, keepClones bool) (Opened, error) {
	root := cloneDir
	if root == "" {
		tmp, err := os.MkdirTemp("", "scenariominer-")
		if err != nil {
			return Opened{}, fmt.Errorf("create clone directory: %w", err)
		}

		root = tmp
	} else if err := os.MkdirAll(root, 0o750); err != nil {
		return Opened{}, fmt.Errorf("create clone directory: %w", err)
	}

	path := filepath.Join(root, CloneDirName(source))

	if keepClones {
		if repo, err := gitlib.OpenRepository(path); err == nil {
			return Opened{Repo: repo, Close: freeOnly(repo)}, nil
		}
	}

	repo, err := gitlib.CloneRepository(source, path)
	if err != nil {
		return Opened{}, errors.Join(err, removeClone(root, path, cloneDir))
	}

	closeFn := func() error {
		repo.Free()

		if keepClones {
			return nil
		}

		return removeClone(root, path, cloneDir)
	}

	return Opened{Repo: repo, Close: closeFn}, nil
}

// removeClone deletes path, and root as well when it was a temporary
// directory created for this clone alone.
func removeClone(root, path, cloneDir string) error {
	target := path
	if cloneDir == "" {
		target = root
	}

	err := os.RemoveAll(target)
	if err != nil {
		return fmt.Errorf("remove clone %s: %w", target, err)
	}

	return nil
}

func freeOnly(repo *gitlib.Repository) func() error {
	return func() error {
		repo.Free()

		return nil
	}
}

// CloneDirName turns a repository URI into a directory name made of the
// repository name and a short hash of the full URI:
// "https://github.com/owner/repo.git" becomes "owner__repo-<hash>". The
// same owner/repo on two hosts gets two directories.
func CloneDirName(source string) string {
	name := strings.NewReplacer("/", "__", ":", "_", "\\", "__").Replace(gitlib.RepositoryName(source))

	return name + "-" + gitlib.HashOf([]byte(source)).Short()
}
