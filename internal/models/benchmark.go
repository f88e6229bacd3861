package models

// BenchmarkConfig represents the parsed benchmark.toml configuration.
type BenchmarkConfig struct {
	CargoOpts      string  `toml:"cargo_opts,omitempty"`
	CargoRustcOpts string  `toml:"cargo_rustc_opts,omitempty"`
	Runs           int     `toml:"runs,omitempty"`        // caps the iteration count when > 0
	TimeoutSec     float64 `toml:"timeout_sec,omitempty"` // default: 1800.0
}

// Benchmark is a single entry of the benchmark catalog.
type Benchmark struct {
	Name   string
	Path   string // filesystem path to the benchmark crate
	Config BenchmarkConfig
}

// Iterations returns the number of times the benchmark should be built.
// Slow benchmarks cap the requested count with runs.
func (b Benchmark) Iterations(requested int) int {
	if b.Config.Runs > 0 {
		return min(requested, b.Config.Runs)
	}
	return requested
}

// Mode selects how much of a benchmark is exercised.
type Mode int

const (
	// ModeNormal builds every build kind.
	ModeNormal Mode = iota
	// ModeTest builds only the debug kind, to check that benchmarks work.
	ModeTest
)

func (m Mode) String() string {
	if m == ModeTest {
		return "test"
	}
	return "normal"
}
