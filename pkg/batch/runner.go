// Package batch mines many repositories concurrently and records one result
// per repository.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/scenariominer/pkg/gitlib"
	"github.com/Sumatoshi-tech/scenariominer/pkg/language"
	"github.com/Sumatoshi-tech/scenariominer/pkg/miner"
	"github.com/Sumatoshi-tech/scenariominer/pkg/observability"
)

const tracerName = "scenariominer/batch"

// ErrNoOpener is returned by NewRunner when Options.Opener is nil.
var ErrNoOpener = errors.New("batch runner needs an opener")

// RepositoryResult is the outcome of mining one repository. A failed run
// keeps the scenarios found before the failure and records the error text.
type RepositoryResult struct {
	Name       string        `json:"name" yaml:"name"`
	Source     string        `json:"source" yaml:"source"`
	Language   string        `json:"language" yaml:"language"`
	WindowSize int           `json:"window_size" yaml:"window_size"`
	Branches   int           `json:"branches" yaml:"branches"`
	Commits    int           `json:"commits" yaml:"commits"`
	Scenarios  miner.Result  `json:"scenarios" yaml:"scenarios"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	MinedAt    time.Time     `json:"mined_at" yaml:"mined_at"`
}

// Failed reports whether mining the repository ended with an error.
func (r RepositoryResult) Failed() bool {
	return r.Error != ""
}

// Options configures a Runner. Zero Workers runs one repository per CPU.
type Options struct {
	Miner   miner.Config
	Workers int
	Opener  Opener

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.MiningMetrics
	Now     func() time.Time

	// OnResult, when set, is called once per finished repository from the
	// worker goroutine that mined it.
	OnResult func(context.Context, RepositoryResult)
}

// Runner mines a list of repositories with bounded parallelism. Each
// repository is mined sequentially by a single worker.
type Runner struct {
	opts Options
}

// NewRunner validates opts and creates a Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Opener == nil {
		return nil, ErrNoOpener
	}

	err := opts.Miner.Validate()
	if err != nil {
		return nil, err
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{opts: opts}, nil
}

// Run mines every source and returns the results in input order. Per
// repository failures are recorded in the results; the returned error is
// only set when ctx ends before all repositories were mined.
func (r *Runner) Run(ctx context.Context, sources []string) ([]RepositoryResult, error) {
	results := make([]RepositoryResult, len(sources))

	var group errgroup.Group

	group.SetLimit(r.opts.Workers)

	for i, source := range sources {
		group.Go(func() error {
			results[i] = r.mineOne(ctx, source)

			if r.opts.OnResult != nil {
				r.opts.OnResult(ctx, results[i])
			}

			return nil
		})
	}

	_ = group.Wait()

	err := ctx.Err()
	if err != nil {
		return results, fmt.Errorf("batch interrupted: %w", err)
	}

	return results, nil
}

func (r *Runner) mineOne(ctx context.Context, source string) RepositoryResult {
	name := gitlib.RepositoryName(source)
	ctx = observability.WithRepository(ctx, name)

	ctx, span := r.opts.Tracer.Start(ctx, "scenariominer.repository",
		trace.WithAttributes(attribute.String("repository.name", name)))
	defer span.End()

	start := r.opts.Now()
	result := RepositoryResult{
		Name:       name,
		Source:     source,
		Language:   languageName(r.opts.Miner.Filter),
		WindowSize: r.opts.Miner.WindowSize,
		MinedAt:    start.UTC(),
	}

	scenarios, err := r.mine(ctx, source)
	result.Scenarios = scenarios
	result.Branches = scenarios.Stats.BranchesWalked
	result.Commits = scenarios.Stats.CommitsProcessed
	result.Duration = r.opts.Now().Sub(start)

	if err != nil {
		result.Error = err.Error()

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.opts.Logger.ErrorContext(ctx, "mining failed", "source", source, "error", err)

		return result
	}

	r.opts.Logger.InfoContext(ctx, "repository mined",
		"scenarios", scenarios.Total(), "duration", result.Duration)

	return result
}

func (r *Runner) mine(ctx context.Context, source string) (result miner.Result, err error) {
	opened, err := r.opts.Opener(ctx, source)
	if err != nil {
		return miner.Result{}, err
	}

	defer func() {
		if opened.Close == nil {
			return
		}

		closeErr := opened.Close()
		if closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	m, err := miner.New(opened.Repo, r.opts.Miner, miner.Deps{
		Logger:  r.opts.Logger,
		Tracer:  r.opts.Tracer,
		Metrics: r.opts.Metrics,
		Now:     r.opts.Now,
	})
	if err != nil {
		return miner.Result{}, err
	}

	return m.Mine(ctx)
}

func languageName(filter miner.PathFilter) string {
	if lf, ok := filter.(*language.Filter); ok {
		return lf.Language().Name
	}

	return ""
}
