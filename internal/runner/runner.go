package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spachava753/perfcollector/internal/environment"
	"github.com/spachava753/perfcollector/internal/environment/local"
	"github.com/spachava753/perfcollector/internal/models"
	"github.com/spachava753/perfcollector/internal/toolchain"
)

// Runner executes one benchmark against a toolchain.
type Runner interface {
	// Run builds the benchmark iterations times per build kind. Failures are
	// returned as *models.BenchmarkError.
	Run(ctx context.Context, tc *toolchain.Toolchain, b models.Benchmark, iterations int, mode models.Mode) (*models.BenchmarkResult, error)
}

// BuildKind is one way of compiling a benchmark crate.
type BuildKind struct {
	Name    string
	Check   bool
	Release bool
}

var (
	KindCheck = BuildKind{Name: "check", Check: true}
	KindDebug = BuildKind{Name: "debug"}
	KindOpt   = BuildKind{Name: "opt", Release: true}
)

// BuildKinds returns the build kinds exercised in mode.
func BuildKinds(mode models.Mode) []BuildKind {
	if mode == models.ModeTest {
		return []BuildKind{KindDebug}
	}
	return []BuildKind{KindCheck, KindDebug, KindOpt}
}

// stateClean is the incremental state of every run: builds start from an
// empty target directory.
const stateClean = "clean"

// stderrTail bounds how much compiler output ends up in a failure message.
const stderrTail = 2048

// CargoRunner builds benchmark crates with cargo in a scratch environment.
type CargoRunner struct {
	provider environment.Provider
}

// NewCargoRunner creates a runner. A nil provider uses local environments.
func NewCargoRunner(provider environment.Provider) *CargoRunner {
	if provider == nil {
		provider = local.NewProvider()
	}
	return &CargoRunner{provider: provider}
}

// Run builds the benchmark and reports the minimum wall time and peak RSS of
// each build kind.
func (r *CargoRunner) Run(ctx context.Context, tc *toolchain.Toolchain, b models.Benchmark, iterations int, mode models.Mode) (*models.BenchmarkResult, error) {
	iterations = b.Iterations(iterations)
	if iterations < 1 {
		iterations = 1
	}

	env, err := r.provider.CreateEnvironment(ctx, environment.CreateEnvironmentOptions{
		Name: "bench-" + b.Name,
		Env: map[string]string{
			"RUSTC":             tc.Rustc,
			"CARGO_INCREMENTAL": "0",
		},
	})
	if err != nil {
		return nil, &models.BenchmarkError{
			Type:    models.ErrBenchmarkPrepareFailed,
			Message: fmt.Sprintf("creating environment: %s", err),
		}
	}
	defer func() {
		if err := env.Destroy(context.Background()); err != nil {
			slog.Warn("failed to remove benchmark environment", "benchmark", b.Name, "error", err)
		}
	}()

	if err := env.CopyTo(ctx, b.Path, "crate"); err != nil {
		return nil, &models.BenchmarkError{
			Type:    models.ErrBenchmarkPrepareFailed,
			Message: fmt.Sprintf("copying benchmark: %s", err),
		}
	}

	result := &models.BenchmarkResult{Name: b.Name}
	for _, kind := range BuildKinds(mode) {
		run, err := r.runKind(ctx, env, tc, b, kind, iterations)
		if err != nil {
			return nil, err
		}
		result.Runs = append(result.Runs, run)
	}
	return result, nil
}

func (r *CargoRunner) runKind(ctx context.Context, env environment.Environment, tc *toolchain.Toolchain, b models.Benchmark, kind BuildKind, iterations int) (models.Run, error) {
	timeout := time.Duration(b.Config.TimeoutSec * float64(time.Second))

	var minWall time.Duration
	var minRSS int64
	for i := range iterations {
		var stdout, stderr bytes.Buffer
		res, err := env.Exec(ctx, cargoArgs(tc, b, kind), &stdout, &stderr, environment.ExecOptions{
			Env: map[string]string{
				"CARGO_TARGET_DIR": fmt.Sprintf("../target-%s-%d", kind.Name, i),
			},
			Timeout: timeout,
			WorkDir: "crate",
		})
		if err != nil {
			if errors.Is(err, local.ErrTimeout) {
				return models.Run{}, &models.BenchmarkError{
					Type:    models.ErrBenchmarkTimeout,
					Message: fmt.Sprintf("%s build timed out after %s", kind.Name, timeout),
				}
			}
			return models.Run{}, &models.BenchmarkError{
				Type:    models.ErrBenchmarkBuildFailed,
				Message: fmt.Sprintf("%s build: %s", kind.Name, err),
			}
		}
		if res.ExitCode != 0 {
			return models.Run{}, &models.BenchmarkError{
				Type:    models.ErrBenchmarkBuildFailed,
				Message: fmt.Sprintf("%s build exited with code %d: %s", kind.Name, res.ExitCode, tail(stderr.String())),
			}
		}

		slog.Debug("benchmark iteration finished",
			"benchmark", b.Name,
			"kind", kind.Name,
			"iteration", i+1,
			"wall", res.Wall,
			"max_rss_kib", res.MaxRSSKiB,
		)

		if i == 0 || res.Wall < minWall {
			minWall = res.Wall
		}
		if i == 0 || res.MaxRSSKiB < minRSS {
			minRSS = res.MaxRSSKiB
		}
	}

	return models.Run{
		Stats: []models.Stat{
			{Name: models.StatWallTime, Cnt: minWall.Seconds()},
			{Name: models.StatMaxRSS, Cnt: float64(minRSS)},
		},
		Check:   kind.Check,
		Release: kind.Release,
		State:   stateClean,
	}, nil
}

func cargoArgs(tc *toolchain.Toolchain, b models.Benchmark, kind BuildKind) []string {
	args := []string{tc.Cargo}
	if kind.Check {
		args = append(args, "check")
	} else {
		args = append(args, "rustc")
	}
	if kind.Release {
		args = append(args, "--release")
	}
	args = append(args, strings.Fields(b.Config.CargoOpts)...)
	if !kind.Check && b.Config.CargoRustcOpts != "" {
		args = append(args, "--")
		args = append(args, strings.Fields(b.Config.CargoRustcOpts)...)
	}
	return args
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTail {
		return s
	}
	return "..." + s[len(s)-stderrTail:]
}
