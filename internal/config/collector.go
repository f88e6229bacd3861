package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spachava753/perfcollector/internal/models"
)

// DefaultTriple is the target platform benchmarks are collected for.
const DefaultTriple = "x86_64-unknown-linux-gnu"

// DefaultCollectorConfig returns a CollectorConfig with default values.
func DefaultCollectorConfig() models.CollectorConfig {
	return models.CollectorConfig{
		Triple:             DefaultTriple,
		BenchmarksDir:      "collector/benchmarks",
		Iterations:         3,
		TestIterations:     1,
		TestExclude:        "servo",
		MaxCommitsPerRun:   3,
		RetryFailurePolicy: models.RetryAbort,
		LogLevel:           "info",
		History: models.HistoryConfig{
			RepoPath:  "rust.git",
			RemoteURL: "https://github.com/rust-lang/rust.git",
			Branch:    "master",
		},
		Toolchain: models.ToolchainConfig{
			Bucket:             "rust-lang-ci",
			Region:             "us-west-1",
			Prefix:             "rustc-builds",
			Components:         []string{"rustc", "rust-std", "cargo"},
			DownloadTimeoutSec: 600.0,
			MaxRetryElapsedSec: 300.0,
		},
		Output: models.OutputConfig{
			RemoteName:  "origin",
			AuthorName:  "perfcollector",
			AuthorEmail: "perfcollector@localhost",
		},
	}
}

// LoadCollectorConfig loads and parses a perfcollector.yaml file.
// A missing file yields the default configuration.
func LoadCollectorConfig(path string) (models.CollectorConfig, error) {
	cfg := DefaultCollectorConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading collector config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing collector config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values left by a partial config file or by flags.
func ApplyDefaults(cfg *models.CollectorConfig) {
	def := DefaultCollectorConfig()

	if cfg.Triple == "" {
		cfg.Triple = def.Triple
	}
	if cfg.BenchmarksDir == "" {
		cfg.BenchmarksDir = def.BenchmarksDir
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = def.Iterations
	}
	if cfg.TestIterations == 0 {
		cfg.TestIterations = def.TestIterations
	}
	if cfg.MaxCommitsPerRun == 0 {
		cfg.MaxCommitsPerRun = def.MaxCommitsPerRun
	}
	if cfg.RetryFailurePolicy == "" {
		cfg.RetryFailurePolicy = def.RetryFailurePolicy
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.History.RepoPath == "" {
		cfg.History.RepoPath = def.History.RepoPath
	}
	if cfg.History.Branch == "" {
		cfg.History.Branch = def.History.Branch
	}
	if cfg.Toolchain.Bucket == "" {
		cfg.Toolchain.Bucket = def.Toolchain.Bucket
	}
	if cfg.Toolchain.Region == "" {
		cfg.Toolchain.Region = def.Toolchain.Region
	}
	if len(cfg.Toolchain.Components) == 0 {
		cfg.Toolchain.Components = def.Toolchain.Components
	}
	if cfg.Toolchain.DownloadTimeoutSec == 0 {
		cfg.Toolchain.DownloadTimeoutSec = def.Toolchain.DownloadTimeoutSec
	}
	if cfg.Toolchain.MaxRetryElapsedSec == 0 {
		cfg.Toolchain.MaxRetryElapsedSec = def.Toolchain.MaxRetryElapsedSec
	}
	if cfg.Output.RemoteName == "" {
		cfg.Output.RemoteName = def.Output.RemoteName
	}
	if cfg.Output.AuthorName == "" {
		cfg.Output.AuthorName = def.Output.AuthorName
	}
	if cfg.Output.AuthorEmail == "" {
		cfg.Output.AuthorEmail = def.Output.AuthorEmail
	}
}

// Validate rejects configurations the collector cannot run with.
func Validate(cfg models.CollectorConfig) error {
	switch cfg.RetryFailurePolicy {
	case models.RetryAbort, models.RetryIsolate:
	default:
		return fmt.Errorf("retry_failure_policy: unknown policy %q (want %q or %q)",
			cfg.RetryFailurePolicy, models.RetryAbort, models.RetryIsolate)
	}
	if cfg.Iterations < 0 || cfg.TestIterations < 0 {
		return fmt.Errorf("iterations must not be negative")
	}
	if cfg.MaxCommitsPerRun < 0 {
		return fmt.Errorf("max_commits_per_run must not be negative")
	}
	return nil
}
