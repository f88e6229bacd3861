package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/spachava753/perfcollector/internal/config"
	"github.com/spachava753/perfcollector/internal/models"
)

func TestLoadBenchmarkConfig(t *testing.T) {
	benchToml := `cargo_opts = "--features std"
cargo_rustc_opts = "-Zborrowck=mir"
runs = 1
timeout_sec = 120.0
`

	fsys := fstest.MapFS{
		"benchmark.toml": &fstest.MapFile{Data: []byte(benchToml)},
	}

	cfg, err := config.LoadBenchmarkConfig(fsys)
	if err != nil {
		t.Fatalf("LoadBenchmarkConfig failed: %v", err)
	}

	if cfg.CargoOpts != "--features std" {
		t.Errorf("expected cargo_opts '--features std', got %q", cfg.CargoOpts)
	}

	if cfg.CargoRustcOpts != "-Zborrowck=mir" {
		t.Errorf("expected cargo_rustc_opts '-Zborrowck=mir', got %q", cfg.CargoRustcOpts)
	}

	if cfg.Runs != 1 {
		t.Errorf("expected runs 1, got %d", cfg.Runs)
	}

	if cfg.TimeoutSec != 120.0 {
		t.Errorf("expected timeout 120, got %f", cfg.TimeoutSec)
	}
}

func TestLoadBenchmarkConfigMissingFile(t *testing.T) {
	cfg, err := config.LoadBenchmarkConfig(fstest.MapFS{})
	if err != nil {
		t.Fatalf("LoadBenchmarkConfig failed: %v", err)
	}

	if cfg != config.DefaultBenchmarkConfig() {
		t.Errorf("expected default config, got %+v", cfg)
	}
}

func TestLoadBenchmarkConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "malformed", data: `runs = `},
		{name: "unknown key", data: `iterations = 4`},
		{name: "negative runs", data: `runs = -1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{
				"benchmark.toml": &fstest.MapFile{Data: []byte(tt.data)},
			}
			if _, err := config.LoadBenchmarkConfig(fsys); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadCollectorConfig(t *testing.T) {
	collectorYaml := `triple: aarch64-unknown-linux-gnu
benchmarks_dir: benches
iterations: 5
max_commits_per_run: 2
retry_failure_policy: isolate
history:
  repo_path: /srv/rust.git
  branch: main
  epoch_commit: 927c55d86b0be44337f37cf5b0a76fb8ba86e06c
toolchain:
  bucket: ci-artifacts
  components: [rustc, rust-std]
`

	// Write to temp file
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "perfcollector.yaml")
	if err := os.WriteFile(tmpFile, []byte(collectorYaml), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	cfg, err := config.LoadCollectorConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadCollectorConfig failed: %v", err)
	}

	if cfg.Triple != "aarch64-unknown-linux-gnu" {
		t.Errorf("expected triple aarch64-unknown-linux-gnu, got %s", cfg.Triple)
	}

	if cfg.BenchmarksDir != "benches" {
		t.Errorf("expected benchmarks_dir benches, got %s", cfg.BenchmarksDir)
	}

	if cfg.Iterations != 5 {
		t.Errorf("expected iterations 5, got %d", cfg.Iterations)
	}

	if cfg.MaxCommitsPerRun != 2 {
		t.Errorf("expected max_commits_per_run 2, got %d", cfg.MaxCommitsPerRun)
	}

	if cfg.RetryFailurePolicy != models.RetryIsolate {
		t.Errorf("expected retry_failure_policy isolate, got %s", cfg.RetryFailurePolicy)
	}

	if cfg.History.Branch != "main" {
		t.Errorf("expected branch main, got %s", cfg.History.Branch)
	}

	if cfg.Toolchain.Bucket != "ci-artifacts" {
		t.Errorf("expected bucket ci-artifacts, got %s", cfg.Toolchain.Bucket)
	}

	if len(cfg.Toolchain.Components) != 2 {
		t.Errorf("expected 2 components, got %d", len(cfg.Toolchain.Components))
	}

	// Unset values keep their defaults
	if cfg.TestIterations != 1 {
		t.Errorf("expected default test_iterations 1, got %d", cfg.TestIterations)
	}

	if cfg.Toolchain.Prefix != "rustc-builds" {
		t.Errorf("expected default prefix rustc-builds, got %s", cfg.Toolchain.Prefix)
	}
}

func TestLoadCollectorConfigMissingFile(t *testing.T) {
	cfg, err := config.LoadCollectorConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadCollectorConfig failed: %v", err)
	}

	if cfg.Triple != config.DefaultTriple {
		t.Errorf("expected default triple, got %s", cfg.Triple)
	}
}

func TestLoadCollectorConfigInvalidPolicy(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "perfcollector.yaml")
	if err := os.WriteFile(tmpFile, []byte("retry_failure_policy: sometimes\n"), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}

	if _, err := config.LoadCollectorConfig(tmpFile); err == nil {
		t.Error("expected error for unknown retry policy")
	}
}

func TestDefaultCollectorConfig(t *testing.T) {
	cfg := config.DefaultCollectorConfig()

	if cfg.Triple != "x86_64-unknown-linux-gnu" {
		t.Errorf("expected default triple x86_64-unknown-linux-gnu, got %s", cfg.Triple)
	}

	if cfg.Iterations != 3 {
		t.Errorf("expected default iterations 3, got %d", cfg.Iterations)
	}

	if cfg.MaxCommitsPerRun != 3 {
		t.Errorf("expected default max_commits_per_run 3, got %d", cfg.MaxCommitsPerRun)
	}

	if cfg.RetryFailurePolicy != models.RetryAbort {
		t.Errorf("expected default retry_failure_policy abort, got %s", cfg.RetryFailurePolicy)
	}

	if cfg.TestExclude != "servo" {
		t.Errorf("expected default test_exclude servo, got %s", cfg.TestExclude)
	}
}
