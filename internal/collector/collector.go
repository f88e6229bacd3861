package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spachava753/perfcollector/internal/catalog"
	"github.com/spachava753/perfcollector/internal/metrics"
	"github.com/spachava753/perfcollector/internal/models"
	"github.com/spachava753/perfcollector/internal/runner"
	"github.com/spachava753/perfcollector/internal/toolchain"
)

// CommitSource lists the commits of the compiler, oldest first.
type CommitSource interface {
	Commits(ctx context.Context) ([]models.Commit, error)
}

// Store persists commit records, the retry queue and the broken-commit log.
type Store interface {
	LoadCommitData(commit models.Commit, triple string) (*models.CommitRecord, error)
	AddCommitData(rec *models.CommitRecord) error
	Success(ctx context.Context, rec *models.CommitRecord) error
	Commit(ctx context.Context, msg string) error
	FindMissingCommits(commits []models.Commit, benchmarks []string, triple string) ([]models.Commit, error)
	NextRetry(ctx context.Context) (string, bool, error)
	QueueRetry(ctx context.Context, shas ...string) error
	WriteBrokenCommit(ctx context.Context, bc models.BrokenCommit) error
}

// Deps are the collaborators of a Collector.
type Deps struct {
	Store      Store
	Toolchains toolchain.Provider
	Runner     runner.Runner
	Metrics    *metrics.Collector
	RunID      string
}

// Collector decides which commits need benchmarking, runs them and records
// the results.
type Collector struct {
	cfg        models.CollectorConfig
	store      Store
	toolchains toolchain.Provider
	runner     runner.Runner
	metrics    *metrics.Collector
	runID      string
	now        func() time.Time
}

// New creates a collector.
func New(cfg models.CollectorConfig, deps Deps) *Collector {
	m := deps.Metrics
	if m == nil {
		m = metrics.NewCollector(nil)
	}
	return &Collector{
		cfg:        cfg,
		store:      deps.Store,
		toolchains: deps.Toolchains,
		runner:     deps.Runner,
		metrics:    m,
		runID:      deps.RunID,
		now:        time.Now,
	}
}

// BenchCommit produces the record of a commit. Outcomes already in prior are
// reused for every benchmark still in the catalog, and only the remaining
// benchmarks are run. Benchmark failures are recorded, never returned.
func (c *Collector) BenchCommit(ctx context.Context, commit models.Commit, prior *models.CommitRecord, tc *toolchain.Toolchain, benchmarks []models.Benchmark, iterations int, mode models.Mode) *models.CommitRecord {
	slog.Info("benchmarking commit",
		"sha", commit.SHA,
		"date", commit.Date,
		"triple", tc.Triple,
		"mode", mode,
	)

	rec := &models.CommitRecord{
		Commit:     commit,
		Triple:     tc.Triple,
		Benchmarks: make(map[string]models.BenchmarkOutcome, len(benchmarks)),
	}
	if prior != nil {
		for _, b := range benchmarks {
			if outcome, ok := prior.Benchmarks[b.Name]; ok {
				rec.Benchmarks[b.Name] = outcome
			}
		}
	}

	c.metrics.SetRemaining(len(benchmarks) - len(rec.Benchmarks))
	for _, b := range benchmarks {
		if rec.Has(b.Name) {
			continue
		}

		start := time.Now()
		result, err := c.runner.Run(ctx, tc, b, iterations, mode)
		var benchErr *models.BenchmarkError
		if err != nil && !errors.As(err, &benchErr) {
			err = &models.BenchmarkError{Type: models.ErrInternalError, Message: err.Error()}
		}
		if err != nil {
			slog.Info("benchmark failed, recorded", "benchmark", b.Name, "error", err)
			rec.Benchmarks[b.Name] = models.Failed(err.Error())
		} else {
			rec.Benchmarks[b.Name] = models.Succeeded(result)
		}
		c.metrics.RecordBenchmark(b.Name, err == nil, time.Since(start))

		left := len(benchmarks) - len(rec.Benchmarks)
		c.metrics.SetRemaining(left)
		slog.Info("benchmarks left", "sha", commit.SHA, "count", left)
	}

	return rec
}

// SelectMissing returns the commits still lacking data for the current
// catalog, newest first, bounded by the per-run limit.
func (c *Collector) SelectMissing(commits []models.Commit, benchmarks []models.Benchmark) ([]models.Commit, error) {
	if len(commits) == 0 {
		slog.Info("nothing to do, no commits")
		return nil, nil
	}

	missing, err := c.store.FindMissingCommits(commits, catalog.Names(benchmarks), c.cfg.Triple)
	if err != nil {
		return nil, fmt.Errorf("finding missing commits: %w", err)
	}

	n := min(c.cfg.MaxCommitsPerRun, len(missing))
	selected := make([]models.Commit, 0, n)
	for i := len(missing) - 1; i >= 0 && len(selected) < n; i-- {
		selected = append(selected, missing[i])
	}

	slog.Info("missing commits selected", "missing", len(missing), "selected", len(selected))
	return selected, nil
}

// ProcessCommit installs the commit's toolchain, benchmarks it against the
// stored record and persists the result. Failures are returned as
// *models.CommitError.
func (c *Collector) ProcessCommit(ctx context.Context, commit models.Commit, benchmarks []models.Benchmark) (err error) {
	defer func() { c.metrics.RecordCommit(err == nil) }()

	slog.Debug("installing toolchain", "sha", commit.SHA, "provider", c.toolchains.Name())
	start := time.Now()
	tc, err := c.toolchains.Install(ctx, commit.SHA, c.cfg.Triple)
	if err != nil {
		var commitErr *models.CommitError
		if errors.As(err, &commitErr) {
			return err
		}
		return &models.CommitError{Type: models.ErrToolchainInstallFailed, SHA: commit.SHA, Err: err}
	}
	defer c.release(tc)
	c.metrics.RecordToolchainInstall(time.Since(start))

	prior, err := c.store.LoadCommitData(commit, c.cfg.Triple)
	if err != nil && !errors.Is(err, models.ErrRecordNotFound) {
		// An unreadable record is rebuilt from scratch.
		slog.Warn("ignoring unreadable commit record", "sha", commit.SHA, "error", err)
	}

	rec := c.BenchCommit(ctx, commit, prior, tc, benchmarks, c.cfg.Iterations, models.ModeNormal)
	if err := c.store.Success(ctx, rec); err != nil {
		return &models.CommitError{Type: models.ErrRecordPersistFailed, SHA: commit.SHA, Err: err}
	}
	return nil
}

// ProcessCommits benchmarks the selected missing commits. A commit that
// fails is written to the broken-commit log and the loop moves on.
func (c *Collector) ProcessCommits(ctx context.Context, commits []models.Commit, benchmarks []models.Benchmark) error {
	slog.Info("processing commits")

	selected, err := c.SelectMissing(commits, benchmarks)
	if err != nil {
		return err
	}

	for _, commit := range selected {
		if err := c.ProcessCommit(ctx, commit, benchmarks); err != nil {
			if err := c.writeBrokenCommit(ctx, commit, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessRetries drains the retry queue. What happens when a retried commit
// fails depends on the retry failure policy.
func (c *Collector) ProcessRetries(ctx context.Context, commits []models.Commit, benchmarks []models.Benchmark) error {
	for {
		sha, ok, err := c.store.NextRetry(ctx)
		if err != nil {
			return fmt.Errorf("reading retry queue: %w", err)
		}
		if !ok {
			return nil
		}
		c.metrics.RecordRetry()
		slog.Info("retrying commit", "sha", sha)

		commit, found := models.FindCommit(commits, sha)
		if !found {
			return fmt.Errorf("%s: %w", sha, models.ErrUnknownRetryCommit)
		}

		err = c.ProcessCommit(ctx, commit, benchmarks)
		if err == nil {
			continue
		}
		if c.cfg.RetryFailurePolicy != models.RetryIsolate {
			// The commit stays queued for the next run.
			if qerr := c.store.QueueRetry(ctx, sha); qerr != nil {
				slog.Error("failed to requeue commit", "sha", sha, "error", qerr)
			}
			return fmt.Errorf("retrying %s: %w", sha, err)
		}
		if err := c.writeBrokenCommit(ctx, commit, err); err != nil {
			return err
		}
	}
}

// QueueRetry adds commits to the retry queue.
func (c *Collector) QueueRetry(ctx context.Context, commits []models.Commit, shas []string) error {
	for _, sha := range shas {
		if _, ok := models.FindCommit(commits, sha); !ok {
			return fmt.Errorf("%s: %w", sha, models.ErrUnknownRetryCommit)
		}
	}
	if err := c.store.QueueRetry(ctx, shas...); err != nil {
		return fmt.Errorf("queueing retries: %w", err)
	}
	slog.Info("retries queued", "count", len(shas))
	return nil
}

// BenchSHA benchmarks a single commit. Identifiers unknown to the history are
// benchmarked as a placeholder commit.
func (c *Collector) BenchSHA(ctx context.Context, commits []models.Commit, sha string, benchmarks []models.Benchmark) error {
	resolved := models.ResolveCommit(commits, sha)
	if resolved.IsPlaceholder() {
		slog.Warn("commit not in history, using placeholder commit", "sha", sha, "date", resolved.Commit.Date)
	}
	return c.ProcessCommit(ctx, resolved.Commit, benchmarks)
}

// RemoveErrors drops the failed outcomes from every stored record so they
// are run again.
func (c *Collector) RemoveErrors(ctx context.Context, commits []models.Commit) error {
	removed := 0
	err := c.updateRecords(commits, func(rec *models.CommitRecord) {
		removed += rec.RemoveErrors()
	})
	if err != nil {
		return err
	}

	slog.Info("failed outcomes removed", "count", removed)
	return c.store.Commit(ctx, fmt.Sprintf("Remove %d failed outcomes", removed))
}

// RemoveBenchmark drops the outcome of a benchmark from every stored record.
func (c *Collector) RemoveBenchmark(ctx context.Context, commits []models.Commit, name string) error {
	err := c.updateRecords(commits, func(rec *models.CommitRecord) {
		if !rec.Has(name) {
			slog.Warn("benchmark not in record", "benchmark", name, "sha", rec.Commit.SHA)
			return
		}
		delete(rec.Benchmarks, name)
	})
	if err != nil {
		return err
	}
	return c.store.Commit(ctx, "Remove benchmark "+name)
}

func (c *Collector) updateRecords(commits []models.Commit, update func(rec *models.CommitRecord)) error {
	for _, commit := range commits {
		rec, err := c.store.LoadCommitData(commit, c.cfg.Triple)
		if errors.Is(err, models.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			slog.Warn("skipping unreadable commit record", "sha", commit.SHA, "error", err)
			continue
		}

		update(rec)
		if err := c.store.AddCommitData(rec); err != nil {
			return err
		}
	}
	return nil
}

// TestBenchmarks runs every benchmark once against the newest commit to check
// that the suite still builds. Nothing is persisted.
func (c *Collector) TestBenchmarks(ctx context.Context, commits []models.Commit, benchmarks []models.Benchmark) (*models.CommitRecord, error) {
	if len(commits) == 0 {
		return nil, models.ErrNoCommits
	}
	commit := commits[len(commits)-1]

	tc, err := c.toolchains.Install(ctx, commit.SHA, c.cfg.Triple)
	if err != nil {
		return nil, fmt.Errorf("installing toolchain for %s: %w", commit.SHA, err)
	}
	defer c.release(tc)

	rec := c.BenchCommit(ctx, commit, nil, tc, benchmarks, c.cfg.TestIterations, models.ModeTest)
	for _, b := range benchmarks {
		outcome := rec.Benchmarks[b.Name]
		if outcome.IsOk() {
			slog.Info("benchmark ok", "benchmark", b.Name)
		} else {
			slog.Warn("benchmark failed", "benchmark", b.Name, "error", outcome.Err)
		}
	}
	return rec, nil
}

// BenchLocal benchmarks a toolchain from provider under the given commit and
// writes the record as JSON to w.
func (c *Collector) BenchLocal(ctx context.Context, provider toolchain.Provider, commit models.Commit, benchmarks []models.Benchmark, w io.Writer) error {
	tc, err := provider.Install(ctx, commit.SHA, c.cfg.Triple)
	if err != nil {
		return fmt.Errorf("preparing local toolchain: %w", err)
	}
	defer c.release(tc)

	rec := c.BenchCommit(ctx, commit, nil, tc, benchmarks, c.cfg.Iterations, models.ModeNormal)
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

func (c *Collector) release(tc *toolchain.Toolchain) {
	if err := tc.Close(); err != nil {
		slog.Warn("failed to release toolchain", "sha", tc.SHA, "error", err)
	}
}

func (c *Collector) writeBrokenCommit(ctx context.Context, commit models.Commit, cause error) error {
	slog.Error("commit failed", "sha", commit.SHA, "error", cause)

	err := c.store.WriteBrokenCommit(ctx, models.BrokenCommit{
		Commit: commit,
		Error:  cause.Error(),
		RunID:  c.runID,
		Time:   c.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("writing broken commit %s: %w", commit.SHA, err)
	}
	c.metrics.RecordBrokenCommit()
	return nil
}
