package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"

	"github.com/spachava753/perfcollector/internal/models"
)

// BenchmarkConfigFile is the optional per-benchmark settings file.
const BenchmarkConfigFile = "benchmark.toml"

// DefaultBenchmarkConfig returns a BenchmarkConfig with default values.
func DefaultBenchmarkConfig() models.BenchmarkConfig {
	return models.BenchmarkConfig{
		TimeoutSec: 1800.0,
	}
}

// LoadBenchmarkConfig loads and parses benchmark.toml from the given
// filesystem. A benchmark without the file gets the defaults.
func LoadBenchmarkConfig(fsys fs.FS) (models.BenchmarkConfig, error) {
	cfg := DefaultBenchmarkConfig()

	data, err := fs.ReadFile(fsys, BenchmarkConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", BenchmarkConfigFile, err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", BenchmarkConfigFile, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("parsing %s: unknown key %q", BenchmarkConfigFile, undecoded[0].String())
	}

	if cfg.Runs < 0 {
		return cfg, fmt.Errorf("parsing %s: runs must not be negative", BenchmarkConfigFile)
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = DefaultBenchmarkConfig().TimeoutSec
	}

	return cfg, nil
}
