// Package miner walks the commit graph of a repository and extracts
// file-commit chain, merge and cherry-pick scenarios from it.
package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/observability"
	"github.com/Sumatoshi-tech/scenariominer/pkg/patchid"
)

// Defaults for Config.
const (
	DefaultWindowSize        = 3
	DefaultCherryPickTimeout = 180 * time.Second
	DefaultCherryPickLimit   = 50
)

// tracerName is the default OTel tracer name for the miner package.
const tracerName = "scenariominer"

// Sentinel errors for configuration.
var (
	ErrNilRepository        = errors.New("repository is nil")
	ErrInvalidWindowSize    = errors.New("window size must be at least 1")
	ErrInvalidCherryPickCap = errors.New("cherry-pick budget must be positive")
)

// Repository is the read-only view of a git repository the miner consumes.
// Both gitlib.Repository and gitlib.MemoryRepository implement it.
type Repository interface {
	Branches(ctx context.Context) ([]string, error)
	ResolveBranch(ctx context.Context, branch string) (gitlib.Hash, error)
	Commit(ctx context.Context, hash gitlib.Hash) (gitlib.CommitInfo, error)
	ChangedPaths(ctx context.Context, hash gitlib.Hash) ([]gitlib.PathChange, error)
	Patch(ctx context.Context, hash gitlib.Hash) ([]byte, error)
}

// PathFilter selects the source files of the tracked language.
type PathFilter interface {
	Match(path string) bool
}

// AllPaths is a PathFilter accepting every path.
type AllPaths struct{}

// Match always returns true.
func (AllPaths) Match(string) bool { return true }

// Config holds the mining parameters.
type Config struct {
	// WindowSize is the minimum run length of a file-commit chain. It also
	// sets how many already-walked commits a branch may revisit (WindowSize-1).
	WindowSize int

	// Filter selects tracked files. Nil tracks every path.
	Filter PathFilter

	// CherryPickTimeout bounds the wall-clock time of content-hash matching.
	CherryPickTimeout time.Duration

	// CherryPickLimit stops content-hash matching after that many scenarios.
	CherryPickLimit int

	// PatchCacheSize is the number of patch ids kept in memory. Zero selects
	// patchid.DefaultCacheSize.
	PatchCacheSize int
}

// DefaultConfig returns a Config tracking every path with the default budgets.
func DefaultConfig() Config {
	return Config{
		WindowSize:        DefaultWindowSize,
		CherryPickTimeout: DefaultCherryPickTimeout,
		CherryPickLimit:   DefaultCherryPickLimit,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWindowSize, c.WindowSize)
	}

	if c.CherryPickTimeout <= 0 || c.CherryPickLimit <= 0 {
		return fmt.Errorf("%w: timeout %s, limit %d",
			ErrInvalidCherryPickCap, c.CherryPickTimeout, c.CherryPickLimit)
	}

	return nil
}

// Deps holds the optional collaborators of a Miner. Zero values fall back to
// slog.Default, the global tracer, no metrics and time.Now.
type Deps struct {
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.MiningMetrics
	Now     func() time.Time
}

// Miner mines one repository. Mine may be called repeatedly; every call
// starts from a clean state.
type Miner struct {
	repo    Repository
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.MiningMetrics
	now     func() time.Time
}

// New creates a miner over repo.
func New(repo Repository, cfg Config, deps Deps) (*Miner, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.Filter == nil {
		cfg.Filter = AllPaths{}
	}

	m := &Miner{
		repo:    repo,
		cfg:     cfg,
		logger:  deps.Logger,
		tracer:  deps.Tracer,
		metrics: deps.Metrics,
		now:     deps.Now,
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}

	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}

	if m.now == nil {
		m.now = time.Now
	}

	return m, nil
}

// run is the state of one Mine call.
type run struct {
	*Miner

	walker   *walker
	tracker  *FileChainTracker
	messages *messageIndex
	acc      accumulator
	stats    Stats

	seenMerges   map[gitlib.Hash]struct{}
	seenTrailers map[gitlib.Hash]struct{}
}

// Mine walks every branch, then matches commits sharing a message by patch
// content. On a fatal repository error the scenarios gathered so far are
// returned together with the error.
func (m *Miner) Mine(ctx context.Context) (Result, error) {
	ctx, span := m.tracer.Start(ctx, "scenariominer.mine",
		trace.WithAttributes(attribute.Int("miner.window_size", m.cfg.WindowSize)))
	defer span.End()

	start := m.now()

	r := &run{
		Miner:        m,
		messages:     newMessageIndex(),
		seenMerges:   make(map[gitlib.Hash]struct{}),
		seenTrailers: make(map[gitlib.Hash]struct{}),
	}
	r.walker = newWalker(m.repo, m.cfg.WindowSize, &r.stats)
	r.tracker = NewFileChainTracker(m.cfg.WindowSize, m.cfg.Filter, m.logger)

	ids, err := patchid.NewCache(m.repo, m.cfg.PatchCacheSize)
	if err == nil {
		err = r.walkBranches(ctx)
	}

	if err == nil {
		err = r.matchDuplicates(ctx, ids)
	}

	r.stats.CorruptChainStates = r.tracker.CorruptStates()
	r.stats.Duration = m.now().Sub(start)
	result := r.acc.result(r.stats)

	m.metrics.RecordRun(ctx, miningStats(result, ids, err))

	span.SetAttributes(
		attribute.Int("miner.commits", result.Stats.CommitsProcessed),
		attribute.Int("miner.scenarios", result.Total()),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return result, err
	}

	m.logger.InfoContext(ctx, "mining complete",
		"branches", result.Stats.BranchesWalked,
		"branches_skipped", result.Stats.BranchesSkipped,
		"commits", result.Stats.CommitsProcessed,
		"file_chains", len(result.FileChains),
		"merges", len(result.Merges),
		"cherry_picks", len(result.CherryPicks),
		"duration", result.Stats.Duration)

	return result, nil
}

func (r *run) walkBranches(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "scenariominer.walk")
	defer span.End()

	branches, err := r.repo.Branches(ctx)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}

	span.SetAttributes(attribute.Int("miner.branches", len(branches)))

	for _, branch := range branches {
		head, resolveErr := r.repo.ResolveBranch(ctx, branch)
		if resolveErr != nil {
			if errors.Is(resolveErr, gitlib.ErrUnresolvableRef) {
				r.stats.BranchesSkipped++
				r.logger.WarnContext(ctx, "skipping unresolvable branch", "branch", branch, "error", resolveErr)

				continue
			}

			return fmt.Errorf("resolve branch %s: %w", branch, resolveErr)
		}

		r.stats.BranchesWalked++
		r.logger.DebugContext(ctx, "walking branch", "branch", branch, "head", head.Short())

		walkErr := r.walker.walkBranch(ctx, head, func(commit gitlib.CommitInfo) error {
			return r.process(ctx, branch, commit)
		})

		// Runs still open at the oldest walked commit are complete.
		r.acc.addFileChains(r.tracker.Finish(ctx, branch)...)

		if walkErr != nil {
			return fmt.Errorf("walk branch %s: %w", branch, walkErr)
		}
	}

	return nil
}

// process feeds one walked commit to every inline detector.
func (r *run) process(ctx context.Context, branch string, commit gitlib.CommitInfo) error {
	if scenario, ok := detectTrailer(commit); ok {
		if _, dup := r.seenTrailers[commit.Hash]; !dup {
			r.seenTrailers[commit.Hash] = struct{}{}
			r.acc.addCherryPick(scenario)
		}
	}

	changes, err := r.repo.ChangedPaths(ctx, commit.Hash)
	if err != nil {
		return fmt.Errorf("changed paths of %s: %w", commit.Hash.Short(), err)
	}

	if touchesTrackedFiles(changes, r.cfg.Filter) {
		r.messages.add(commit)
	}

	if scenario, ok := detectMerge(commit, changes, r.cfg.Filter); ok {
		if _, dup := r.seenMerges[commit.Hash]; !dup {
			r.seenMerges[commit.Hash] = struct{}{}
			r.acc.addMerge(scenario)
		}
	}

	r.acc.addFileChains(r.tracker.Observe(ctx, branch, commit.Hash, changes)...)

	return nil
}

func (r *run) matchDuplicates(ctx context.Context, ids *patchid.Cache) error {
	ctx, span := r.tracer.Start(ctx, "scenariominer.cherry_pick")
	defer span.End()

	groups := r.messages.duplicates()
	r.stats.DuplicateMessageGroups = len(groups)

	matcher := &duplicateMatcher{
		ids:     ids,
		now:     r.now,
		timeout: r.cfg.CherryPickTimeout,
		limit:   r.cfg.CherryPickLimit,
		logger:  r.logger,
		stats:   &r.stats,
	}

	err := matcher.match(ctx, groups, r.acc.addCherryPick)

	span.SetAttributes(
		attribute.Int("miner.message_groups", len(groups)),
		attribute.Int("miner.comparisons", r.stats.CherryPickComparisons),
		attribute.Bool("miner.budget_expired", r.stats.CherryPickBudgetExpired),
	)

	return err
}

func miningStats(result Result, ids *patchid.Cache, err error) observability.MiningStats {
	stats := observability.MiningStats{
		Commits:           int64(result.Stats.CommitsProcessed),
		BranchesWalked:    int64(result.Stats.BranchesWalked),
		BranchesSkipped:   int64(result.Stats.BranchesSkipped),
		KeepaliveRevisits: int64(result.Stats.KeepaliveRevisits),
		FileChains:        int64(len(result.FileChains)),
		Merges:            int64(len(result.Merges)),
		CherryPicks:       int64(len(result.CherryPicks)),
		Comparisons:       int64(result.Stats.CherryPickComparisons),
		BudgetExpired:     result.Stats.CherryPickBudgetExpired,
		Duration:          result.Stats.Duration,
		Failed:            err != nil,
	}

	if ids != nil {
		stats.PatchCacheHits = ids.Hits()
		stats.PatchCacheMisses = ids.Misses()
	}

	return stats
}
