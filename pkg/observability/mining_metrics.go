package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsTotal       = "scenariominer.mine.commits.total"
	metricBranchesTotal      = "scenariominer.mine.branches.total"
	metricRevisitsTotal      = "scenariominer.mine.keepalive.revisits.total"
	metricScenariosTotal     = "scenariominer.mine.scenarios.total"
	metricComparisonsTotal   = "scenariominer.mine.cherry_pick.comparisons.total"
	metricBudgetExpiredTotal = "scenariominer.mine.cherry_pick.budget_expired.total"
	metricPatchCacheTotal    = "scenariominer.mine.patch_cache.lookups.total"
	metricRunsTotal          = "scenariominer.mine.runs.total"
	metricRunDuration        = "scenariominer.mine.duration.seconds"

	attrKind   = "kind"
	attrResult = "result"
)

// MiningMetrics holds the OTel instruments recorded once per mining run.
type MiningMetrics struct {
	commits       metric.Int64Counter
	branches      metric.Int64Counter
	revisits      metric.Int64Counter
	scenarios     metric.Int64Counter
	comparisons   metric.Int64Counter
	budgetExpired metric.Int64Counter
	patchCache    metric.Int64Counter
	runs          metric.Int64Counter
	duration      metric.Float64Histogram
}

// MiningStats summarizes one mining run, decoupled from miner types.
type MiningStats struct {
	Commits           int64
	BranchesWalked    int64
	BranchesSkipped   int64
	KeepaliveRevisits int64
	FileChains        int64
	Merges            int64
	CherryPicks       int64
	Comparisons       int64
	BudgetExpired     bool
	PatchCacheHits    int64
	PatchCacheMisses  int64
	Duration          time.Duration
	Failed            bool
}

type counterSpec struct {
	dst  *metric.Int64Counter
	name string
	desc string
	unit string
}

// NewMiningMetrics creates mining metric instruments from the given meter.
func NewMiningMetrics(mt metric.Meter) (*MiningMetrics, error) {
	mm := &MiningMetrics{}

	counters := []counterSpec{
		{&mm.commits, metricCommitsTotal, "Commits processed by branch walks", "{commit}"},
		{&mm.branches, metricBranchesTotal, "Branches walked or skipped", "{branch}"},
		{&mm.revisits, metricRevisitsTotal, "Already-visited commits reprocessed under keepalive", "{commit}"},
		{&mm.scenarios, metricScenariosTotal, "Scenarios mined by kind", "{scenario}"},
		{&mm.comparisons, metricComparisonsTotal, "Patch comparisons among same-message commits", "{comparison}"},
		{&mm.budgetExpired, metricBudgetExpiredTotal, "Runs whose cherry-pick time budget expired", "{run}"},
		{&mm.patchCache, metricPatchCacheTotal, "Patch id cache lookups by result", "{lookup}"},
		{&mm.runs, metricRunsTotal, "Mining runs by result", "{run}"},
	}

	for _, spec := range counters {
		counter, err := mt.Int64Counter(spec.name,
			metric.WithDescription(spec.desc),
			metric.WithUnit(spec.unit),
		)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", spec.name, err)
		}

		*spec.dst = counter
	}

	duration, err := mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Mining run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	mm.duration = duration

	return mm, nil
}

// RecordRun records the statistics of a finished mining run.
// Safe to call on a nil receiver (no-op).
func (mm *MiningMetrics) RecordRun(ctx context.Context, stats MiningStats) {
	if mm == nil {
		return
	}

	mm.commits.Add(ctx, stats.Commits)
	mm.branches.Add(ctx, stats.BranchesWalked, metric.WithAttributes(attribute.String(attrResult, "walked")))
	mm.branches.Add(ctx, stats.BranchesSkipped, metric.WithAttributes(attribute.String(attrResult, "skipped")))
	mm.revisits.Add(ctx, stats.KeepaliveRevisits)

	mm.scenarios.Add(ctx, stats.FileChains, metric.WithAttributes(attribute.String(attrKind, "file_chain")))
	mm.scenarios.Add(ctx, stats.Merges, metric.WithAttributes(attribute.String(attrKind, "merge")))
	mm.scenarios.Add(ctx, stats.CherryPicks, metric.WithAttributes(attribute.String(attrKind, "cherry_pick")))

	mm.comparisons.Add(ctx, stats.Comparisons)

	if stats.BudgetExpired {
		mm.budgetExpired.Add(ctx, 1)
	}

	mm.patchCache.Add(ctx, stats.PatchCacheHits, metric.WithAttributes(attribute.String(attrResult, "hit")))
	mm.patchCache.Add(ctx, stats.PatchCacheMisses, metric.WithAttributes(attribute.String(attrResult, "miss")))

	result := statusOK
	if stats.Failed {
		result = statusError
	}

	mm.runs.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
	mm.duration.Record(ctx, stats.Duration.Seconds())
}
