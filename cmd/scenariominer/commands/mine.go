package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scenariominer/pkg/batch"
	"github.com/Sumatoshi-tech/scenariominer/pkg/config"
	"github.com/Sumatoshi-tech/scenariominer/pkg/observability"
	"github.com/Sumatoshi-tech/scenariominer/pkg/report"
	"github.com/Sumatoshi-tech/scenariominer/pkg/store"
	"github.com/Sumatoshi-tech/scenariominer/pkg/version"
)

// ErrRepositoriesFailed is returned by mine when at least one repository
// could not be mined. The report is still written.
var ErrRepositoriesFailed = errors.New("repositories failed")

// openerFactory builds the repository opener from the batch settings.
type openerFactory func(cloneDir string, keepClones bool) batch.Opener

// MineCommand holds the configuration for the mine command.
type MineCommand struct {
	configPath string
	format     string
	output     string
	verbose    bool
	quiet      bool

	openers openerFactory
	now     func() time.Time
}

// NewMineCommand creates the mine command.
func NewMineCommand() *cobra.Command {
	return newMineCommandWithDeps(batch.GitOpener, time.Now)
}

func newMineCommandWithDeps(openers openerFactory, now func() time.Time) *cobra.Command {
	mc := &MineCommand{openers: openers, now: now}

	cmd := &cobra.Command{
		Use:   "mine <repository>...",
		Short: "Mine scenarios from one or more repositories",
		Long: `Mine file-commit chain, merge and cherry-pick scenarios from local
repositories or remote URLs. Remote repositories are cloned first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: mc.run,
	}

	cmd.Flags().StringVarP(&mc.configPath, "config", "c", "", "Configuration file (default: ./scenariominer.yaml)")
	cmd.Flags().StringP("language", "l", config.DefaultLanguage, "Tracked language: kotlin, java, python, text or a linguist name")
	cmd.Flags().StringSlice("extensions", nil, "Extra file extensions counted as the tracked language")
	cmd.Flags().IntP("window", "w", config.DefaultWindowSize, "Minimum file-commit chain length")
	cmd.Flags().Int("workers", config.DefaultBatchWorkers, "Repositories mined in parallel (0 = CPU count)")
	cmd.Flags().StringVarP(&mc.format, "format", "f", "", "Output format: json, yaml, table (default: from --output extension, else json)")
	cmd.Flags().StringVarP(&mc.output, "output", "o", stdoutPath, "Report path, '-' for stdout; a .lz4 suffix compresses it")
	cmd.Flags().String("db", "", "SQLite database to store results in")
	cmd.Flags().String("clone-dir", "", "Directory for clones of remote repositories (default: temporary)")
	cmd.Flags().Bool("keep-clones", config.DefaultKeepClones, "Keep and reuse clones of remote repositories")
	cmd.Flags().Duration("cherry-pick-timeout", config.DefaultCherryPickTimeout, "Time budget of patch-content cherry-pick matching")
	cmd.Flags().Int("cherry-pick-limit", config.DefaultMaxScenarios, "Stop patch-content cherry-pick matching after this many scenarios")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9464)")
	cmd.Flags().BoolVarP(&mc.verbose, "verbose", "v", false, "Debug logging")
	cmd.Flags().BoolVarP(&mc.quiet, "quiet", "q", false, "Do not print the summary table")

	return cmd
}

func (mc *MineCommand) run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(mc.configPath)
	if err != nil {
		return err
	}

	err = applyMineFlags(cmd, cfg, mc.verbose)
	if err != nil {
		return err
	}

	minerCfg, err := cfg.MinerConfig()
	if err != nil {
		return err
	}

	providers, err := initObservability(cfg, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer shutdownObservability(providers)

	stopMetrics, err := serveMetrics(cfg.Telemetry.MetricsAddr, providers.MetricsHandler, providers.Logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	miningMetrics, err := observability.NewMiningMetrics(providers.Meter)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var saver *resultSaver

	if cfg.Store.Path != "" {
		db, openErr := store.Open(ctx, cfg.Store.Path, providers.Logger)
		if openErr != nil {
			return openErr
		}
		defer db.Close()

		saver = &resultSaver{db: db}
	}

	runner, err := batch.NewRunner(batch.Options{
		Miner:    minerCfg,
		Workers:  cfg.Batch.Workers,
		Opener:   mc.openers(cfg.Batch.CloneDir, cfg.Batch.KeepClones),
		Logger:   providers.Logger,
		Tracer:   providers.Tracer,
		Metrics:  miningMetrics,
		Now:      mc.now,
		OnResult: saver.save,
	})
	if err != nil {
		return err
	}

	results, runErr := runner.Run(ctx, args)
	rep := report.New(version.Version, mc.now(), results)

	err = writeReport(cmd.OutOrStdout(), mc.output, mc.format, rep)
	if err != nil {
		return err
	}

	if !mc.quiet && !(mc.format == report.FormatTable && isStdout(mc.output)) {
		err = report.WriteSummary(cmd.ErrOrStderr(), rep)
		if err != nil {
			return err
		}
	}

	err = errors.Join(runErr, saver.err())
	if err != nil {
		return err
	}

	if failed := rep.Failed(); failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrRepositoriesFailed, failed, len(rep.Repositories))
	}

	return nil
}

func isStdout(path string) bool {
	return path == "" || path == stdoutPath
}

// applyMineFlags overrides file and environment settings with the flags the
// user set explicitly.
func applyMineFlags(cmd *cobra.Command, cfg *config.Config, verbose bool) error {
	flags := cmd.Flags()

	var err error

	if flags.Changed("language") {
		cfg.Miner.Language, err = flags.GetString("language")
	}

	if err == nil && flags.Changed("extensions") {
		cfg.Miner.Extensions, err = flags.GetStringSlice("extensions")
	}

	if err == nil && flags.Changed("window") {
		cfg.Miner.WindowSize, err = flags.GetInt("window")
	}

	if err == nil && flags.Changed("workers") {
		cfg.Batch.Workers, err = flags.GetInt("workers")
	}

	if err == nil && flags.Changed("db") {
		cfg.Store.Path, err = flags.GetString("db")
	}

	if err == nil && flags.Changed("clone-dir") {
		cfg.Batch.CloneDir, err = flags.GetString("clone-dir")
	}

	if err == nil && flags.Changed("keep-clones") {
		cfg.Batch.KeepClones, err = flags.GetBool("keep-clones")
	}

	if err == nil && flags.Changed("cherry-pick-timeout") {
		cfg.CherryPick.Timeout, err = flags.GetDuration("cherry-pick-timeout")
	}

	if err == nil && flags.Changed("cherry-pick-limit") {
		cfg.CherryPick.MaxScenarios, err = flags.GetInt("cherry-pick-limit")
	}

	if err == nil && flags.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr, err = flags.GetString("metrics-addr")
	}

	if err != nil {
		return fmt.Errorf("read flags: %w", err)
	}

	if verbose {
		cfg.SetVerbose()
	}

	return cfg.Validate()
}

// resultSaver stores every finished repository. Batch workers call save
// concurrently; failures are collected and reported after the run.
type resultSaver struct {
	db *store.Store

	mu   sync.Mutex
	errs []error
}

func (s *resultSaver) save(ctx context.Context, result batch.RepositoryResult) {
	if s == nil {
		return
	}

	err := s.db.Save(ctx, result)
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.errs = append(s.errs, err)
}

func (s *resultSaver) err() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return errors.Join(s.errs...)
}
