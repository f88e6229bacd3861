package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/spachava753/perfcollector/internal/config"
	"github.com/spachava753/perfcollector/internal/models"
)

// infraDirs are directories of the benchmark root that are not benchmarks.
var infraDirs = []string{".git", "scripts"}

// Filter restricts which benchmarks are discovered. Empty fields do not
// filter anything.
type Filter struct {
	Include string // keep only names containing this substring
	Exclude string // drop names containing this substring
}

func (f Filter) match(name string) bool {
	if f.Include != "" && !strings.Contains(name, f.Include) {
		return false
	}
	if f.Exclude != "" && strings.Contains(name, f.Exclude) {
		return false
	}
	return true
}

// Discover lists the benchmarks under dir that pass the filter, sorted by
// name.
func Discover(dir string, filter Filter) ([]models.Benchmark, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing benchmarks: %w", err)
	}

	var benchmarks []models.Benchmark
	for _, entry := range entries {
		name := entry.Name()
		if !utf8.ValidString(name) {
			return nil, fmt.Errorf("non-utf8 benchmark name: %q", name)
		}

		if slices.Contains(infraDirs, name) || !entry.IsDir() {
			slog.Debug("benchmark ignored", "benchmark", name)
			continue
		}

		if !filter.match(name) {
			slog.Debug("benchmark filtered", "benchmark", name)
			continue
		}

		b, err := LoadBenchmark(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading benchmark %s: %w", name, err)
		}

		slog.Debug("benchmark registered", "benchmark", name)
		benchmarks = append(benchmarks, b)
	}

	slices.SortFunc(benchmarks, func(a, b models.Benchmark) int {
		return strings.Compare(a.Name, b.Name)
	})
	return benchmarks, nil
}

// LoadBenchmark loads a single benchmark from its directory.
func LoadBenchmark(path string) (models.Benchmark, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return models.Benchmark{}, fmt.Errorf("getting absolute path: %w", err)
	}

	cfg, err := config.LoadBenchmarkConfig(os.DirFS(absPath))
	if err != nil {
		return models.Benchmark{}, fmt.Errorf("loading benchmark config: %w", err)
	}

	return models.Benchmark{
		Name:   filepath.Base(absPath),
		Path:   absPath,
		Config: cfg,
	}, nil
}

// Names returns the names of the benchmarks, in order.
func Names(benchmarks []models.Benchmark) []string {
	names := make([]string, len(benchmarks))
	for i, b := range benchmarks {
		names[i] = b.Name
	}
	return names
}
