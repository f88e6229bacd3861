package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "perfcollector"

// Result labels.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Collector holds the metrics of one collector invocation. They are exported
// as a node_exporter textfile at the end of the run.
type Collector struct {
	registry *prometheus.Registry

	commitsProcessed    *prometheus.CounterVec
	benchmarkOutcomes   *prometheus.CounterVec
	benchmarkDuration   prometheus.Histogram
	benchmarksRemaining prometheus.Gauge
	toolchainInstall    prometheus.Histogram
	brokenCommits       prometheus.Counter
	retriesProcessed    prometheus.Counter
}

// NewCollector creates the metrics and registers them with registry. A nil
// registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		commitsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_processed_total",
			Help:      "Commits processed, by result.",
		}, []string{"result"}),
		benchmarkOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "benchmark_runs_total",
			Help:      "Benchmark runs, by benchmark and result.",
		}, []string{"benchmark", "result"}),
		benchmarkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "benchmark_duration_seconds",
			Help:      "Time spent running one benchmark for one commit.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		benchmarksRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "benchmarks_remaining",
			Help:      "Benchmarks left to run for the commit being processed.",
		}),
		toolchainInstall: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "toolchain_install_duration_seconds",
			Help:      "Time spent obtaining a toolchain.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		brokenCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broken_commits_total",
			Help:      "Commits written to the broken-commit log.",
		}),
		retriesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_processed_total",
			Help:      "Entries taken off the retry queue.",
		}),
	}

	registry.MustRegister(
		c.commitsProcessed,
		c.benchmarkOutcomes,
		c.benchmarkDuration,
		c.benchmarksRemaining,
		c.toolchainInstall,
		c.brokenCommits,
		c.retriesProcessed,
	)
	return c
}

// Registry returns the registry the metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCommit counts a processed commit.
func (c *Collector) RecordCommit(ok bool) {
	c.commitsProcessed.WithLabelValues(result(ok)).Inc()
}

// RecordBenchmark counts a benchmark run and observes its duration.
func (c *Collector) RecordBenchmark(name string, ok bool, d time.Duration) {
	c.benchmarkOutcomes.WithLabelValues(name, result(ok)).Inc()
	c.benchmarkDuration.Observe(d.Seconds())
}

// SetRemaining sets the number of benchmarks left for the current commit.
func (c *Collector) SetRemaining(n int) {
	c.benchmarksRemaining.Set(float64(n))
}

// RecordToolchainInstall observes the time spent obtaining a toolchain.
func (c *Collector) RecordToolchainInstall(d time.Duration) {
	c.toolchainInstall.Observe(d.Seconds())
}

// RecordBrokenCommit counts a broken-commit log entry.
func (c *Collector) RecordBrokenCommit() {
	c.brokenCommits.Inc()
}

// RecordRetry counts an entry taken off the retry queue.
func (c *Collector) RecordRetry() {
	c.retriesProcessed.Inc()
}

// WriteToTextfile writes every metric to path in the text exposition format.
func (c *Collector) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

func result(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultFailed
}
