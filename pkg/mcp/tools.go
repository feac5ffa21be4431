package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/language"
	"github.com/Sumatoshi-tech/scenariominer/pkg/miner"
	"github.com/Sumatoshi-tech/scenariominer/pkg/observability"
)

// ToolNameMine is the name of the mining tool.
const ToolNameMine = "mine_scenarios"

const defaultLanguage = language.Kotlin

// Sentinel errors for tool input validation.
var (
	// ErrEmptyRepoPath indicates the repo_path parameter is empty.
	ErrEmptyRepoPath = errors.New("repo_path parameter is required and must not be empty")
	// ErrRepoPathNotAbsolute indicates the repo_path is not an absolute path.
	ErrRepoPathNotAbsolute = errors.New("repo_path must be an absolute path")
	// ErrRepoNotFound indicates the repository path does not exist.
	ErrRepoNotFound = errors.New("repository path does not exist")
	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("path is not a git repository")
	// ErrInvalidWindowSize indicates a negative window_size.
	ErrInvalidWindowSize = errors.New("window_size must be positive")
)

// MineInput is the input schema for the mine_scenarios tool.
type MineInput struct {
	RepoPath   string `json:"repo_path"             jsonschema:"absolute path to a Git repository"`
	Language   string `json:"language,omitempty"    jsonschema:"tracked language (default: kotlin)"`
	WindowSize int    `json:"window_size,omitempty" jsonschema:"minimum file-commit chain length (default: 3)"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// handleMine processes mine_scenarios tool calls.
func (d minerDeps) handleMine(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input MineInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	cfg, err := d.config(input)
	if err != nil {
		return errorResult(err)
	}

	err = validateRepoPath(input.RepoPath)
	if err != nil {
		return errorResult(err)
	}

	repository, err := gitlib.LoadRepository(input.RepoPath)
	if err != nil {
		return errorResult(fmt.Errorf("load repository: %w", err))
	}
	defer repository.Free()

	m, err := miner.New(repository, cfg, miner.Deps{
		Logger:  d.logger,
		Tracer:  d.tracer,
		Metrics: d.metrics,
	})
	if err != nil {
		return errorResult(err)
	}

	ctx = observability.WithRepository(ctx, gitlib.RepositoryName(input.RepoPath))

	result, err := m.Mine(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("mine %s: %w", input.RepoPath, err))
	}

	return jsonResult(result)
}

// config applies the call's optional parameters to the server defaults.
func (d minerDeps) config(input MineInput) (miner.Config, error) {
	name := input.Language
	if name == "" {
		name = d.language
	}

	lang, err := language.Parse(name)
	if err != nil {
		return miner.Config{}, err
	}

	cfg := d.defaults
	cfg.Filter = language.NewFilter(lang)

	if input.WindowSize < 0 {
		return miner.Config{}, fmt.Errorf("%w: %d", ErrInvalidWindowSize, input.WindowSize)
	}

	if input.WindowSize > 0 {
		cfg.WindowSize = input.WindowSize
	}

	return cfg, nil
}

// validateRepoPath accepts absolute paths to a working tree with a .git
// entry or to a bare repository.
func validateRepoPath(repoPath string) error {
	if repoPath == "" {
		return ErrEmptyRepoPath
	}

	if !filepath.IsAbs(repoPath) {
		return ErrRepoPathNotAbsolute
	}

	info, err := os.Stat(repoPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRepoNotFound, repoPath)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRepoNotFound, repoPath)
	}

	for _, marker := range []string{".git", "HEAD"} {
		_, err = os.Stat(filepath.Join(repoPath, marker))
		if err == nil {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrNotGitRepo, repoPath)
}
