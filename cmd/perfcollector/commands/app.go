package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/spachava753/perfcollector/cmd/perfcollector/internal/clierr"
	"github.com/spachava753/perfcollector/internal/catalog"
	"github.com/spachava753/perfcollector/internal/collector"
	"github.com/spachava753/perfcollector/internal/config"
	"github.com/spachava753/perfcollector/internal/environment/local"
	"github.com/spachava753/perfcollector/internal/history"
	"github.com/spachava753/perfcollector/internal/metrics"
	"github.com/spachava753/perfcollector/internal/models"
	"github.com/spachava753/perfcollector/internal/runner"
	"github.com/spachava753/perfcollector/internal/store"
	"github.com/spachava753/perfcollector/internal/toolchain"
)

// app is everything a subcommand needs, wired from the flags and the config
// file.
type app struct {
	cfg        models.CollectorConfig
	runID      string
	benchmarks []models.Benchmark
	commits    []models.Commit
	store      *store.GitStore
	metrics    *metrics.Collector
	collector  *collector.Collector
}

// setup controls which parts of the app a subcommand needs.
type setup struct {
	// excludeTestBenchmarks drops the benchmarks too slow for a smoke test.
	excludeTestBenchmarks bool
	// commits loads the compiler history.
	commits bool
}

func (o *options) loadConfig() (models.CollectorConfig, error) {
	cfg, err := config.LoadCollectorConfig(o.configPath)
	if err != nil {
		return cfg, clierr.Wrap(clierr.ExitFailure, "loading configuration", err)
	}

	if o.benchmarksDir != "" {
		cfg.BenchmarksDir = o.benchmarksDir
	}
	if o.rustRepo != "" {
		cfg.History.RepoPath = o.rustRepo
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.metricsFile != "" {
		cfg.MetricsFile = o.metricsFile
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func setupLogging(w io.Writer, levelName, runID string) error {
	level, err := parseLevel(levelName)
	if err != nil {
		return clierr.Usagef("%v", err)
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler).With("run_id", runID))
	return nil
}

// newApp validates the shared flags and wires the collector.
func (o *options) newApp(ctx context.Context, stderr io.Writer, s setup) (*app, error) {
	if o.outputRepo == "" {
		return nil, clierr.Usagef("required flag \"output-repo\" not set")
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	if err := setupLogging(stderr, cfg.LogLevel, runID); err != nil {
		return nil, err
	}

	filter := catalog.Filter{Include: o.filter}
	if s.excludeTestBenchmarks {
		filter.Exclude = cfg.TestExclude
	}
	benchmarks, err := catalog.Discover(cfg.BenchmarksDir, filter)
	if err != nil {
		return nil, err
	}
	slog.Info("benchmarks discovered", "count", len(benchmarks), "dir", cfg.BenchmarksDir)

	st, err := store.Open(ctx, o.outputRepo, store.Options{Output: cfg.Output, Sync: o.syncGit})
	if err != nil {
		return nil, err
	}
	slog.Info("record store opened", "dir", st.Dir(), "sync", o.syncGit)

	var commits []models.Commit
	if s.commits {
		src := history.NewGitSource(cfg.History)
		if err := src.Sync(ctx); err != nil {
			return nil, err
		}
		if commits, err = src.Commits(ctx); err != nil {
			return nil, err
		}
	}

	fetcher, err := toolchain.NewS3Fetcher(ctx, cfg.Toolchain)
	if err != nil {
		return nil, err
	}

	m := metrics.NewCollector(nil)
	return &app{
		cfg:        cfg,
		runID:      runID,
		benchmarks: benchmarks,
		commits:    commits,
		store:      st,
		metrics:    m,
		collector: collector.New(cfg, collector.Deps{
			Store:      st,
			Toolchains: toolchain.NewArtifactProvider(fetcher, cfg.Toolchain),
			Runner:     runner.NewCargoRunner(local.NewProvider()),
			Metrics:    m,
			RunID:      runID,
		}),
	}, nil
}

// finish exports the run metrics when a metrics file is configured.
func (a *app) finish() {
	if a.cfg.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteToTextfile(a.cfg.MetricsFile); err != nil {
		slog.Warn("failed to write metrics", "error", err)
	}
}
