package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Stat is a single named measurement.
type Stat struct {
	Name string  `json:"name"`
	Cnt  float64 `json:"cnt"`
}

// Run is the set of statistics for one build kind of a benchmark.
type Run struct {
	Stats   []Stat `json:"stats"`
	Check   bool   `json:"check"`
	Release bool   `json:"release"`
	State   string `json:"state"`
}

// Stat returns the named statistic of the run.
func (r Run) Stat(name string) (float64, bool) {
	for _, s := range r.Stats {
		if s.Name == name {
			return s.Cnt, true
		}
	}
	return 0, false
}

// BenchmarkResult is the success payload of a benchmark.
type BenchmarkResult struct {
	Name string `json:"name"`
	Runs []Run  `json:"runs"`
}

// BenchmarkOutcome holds either a result or the reason the benchmark failed.
// Exactly one of Result and Err is set.
type BenchmarkOutcome struct {
	Result *BenchmarkResult
	Err    string
}

// Succeeded returns an outcome wrapping a result.
func Succeeded(r *BenchmarkResult) BenchmarkOutcome {
	return BenchmarkOutcome{Result: r}
}

// Failed returns an outcome carrying a failure message.
func Failed(msg string) BenchmarkOutcome {
	return BenchmarkOutcome{Err: msg}
}

// IsOk reports whether the outcome is a success.
func (o BenchmarkOutcome) IsOk() bool {
	return o.Result != nil
}

type outcomeJSON struct {
	Ok  *BenchmarkResult `json:"Ok,omitempty"`
	Err *string          `json:"Err,omitempty"`
}

// MarshalJSON encodes the outcome as {"Ok": ...} or {"Err": "..."}.
func (o BenchmarkOutcome) MarshalJSON() ([]byte, error) {
	if o.Result != nil {
		return json.Marshal(outcomeJSON{Ok: o.Result})
	}
	msg := o.Err
	return json.Marshal(outcomeJSON{Err: &msg})
}

// UnmarshalJSON decodes the {"Ok": ...} / {"Err": "..."} form.
func (o *BenchmarkOutcome) UnmarshalJSON(data []byte) error {
	var v outcomeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch {
	case v.Ok != nil && v.Err != nil:
		return errors.New("benchmark outcome has both Ok and Err")
	case v.Ok != nil:
		*o = Succeeded(v.Ok)
	case v.Err != nil:
		*o = Failed(*v.Err)
	default:
		return errors.New("benchmark outcome has neither Ok nor Err")
	}
	return nil
}

// CommitRecord is the set of benchmark outcomes for one commit on one target
// triple.
type CommitRecord struct {
	Commit     Commit                      `json:"commit"`
	Triple     string                      `json:"triple"`
	Benchmarks map[string]BenchmarkOutcome `json:"benchmarks"`
}

// Key identifies the record in the store.
func (r *CommitRecord) Key() string {
	return fmt.Sprintf("%s-%s-%s", r.Commit.Date.UTC().Format(time.RFC3339), r.Commit.SHA, r.Triple)
}

// Has reports whether the record holds an outcome for the benchmark.
func (r *CommitRecord) Has(name string) bool {
	_, ok := r.Benchmarks[name]
	return ok
}

// RemoveErrors drops every failed outcome and returns how many were dropped.
func (r *CommitRecord) RemoveErrors() int {
	removed := 0
	for name, outcome := range r.Benchmarks {
		if !outcome.IsOk() {
			delete(r.Benchmarks, name)
			removed++
		}
	}
	return removed
}

// BrokenCommit is an entry of the broken-commit log.
type BrokenCommit struct {
	Commit Commit    `json:"commit"`
	Error  string    `json:"error"`
	RunID  string    `json:"run_id,omitempty"`
	Time   time.Time `json:"time"`
}

// Statistic names recorded by the runner.
const (
	StatWallTime = "wall-time"
	StatMaxRSS   = "max-rss"
)
