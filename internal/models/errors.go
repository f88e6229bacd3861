package models

import (
	"errors"
	"fmt"
)

// ErrorType identifies the category of error that occurred.
type ErrorType string

const (
	// Toolchain acquisition phase
	ErrToolchainInstallFailed  ErrorType = "toolchain_install_failed"
	ErrToolchainDownloadFailed ErrorType = "toolchain_download_failed"

	// Benchmark phase
	ErrBenchmarkPrepareFailed ErrorType = "benchmark_prepare_failed"
	ErrBenchmarkBuildFailed   ErrorType = "benchmark_build_failed"
	ErrBenchmarkTimeout       ErrorType = "benchmark_timeout"

	// Persistence phase
	ErrRecordPersistFailed ErrorType = "record_persist_failed"

	// Catch-all
	ErrInternalError ErrorType = "internal_error"
)

var (
	// ErrNoCommits is returned when an operation needs at least one commit
	// and the commit source produced none.
	ErrNoCommits = errors.New("no commits")

	// ErrUnknownRetryCommit is returned when the retry queue names a commit
	// that is not part of the commit history.
	ErrUnknownRetryCommit = errors.New("retry commit not found in history")

	// ErrRecordNotFound is returned by the record store when no record exists
	// for a (commit, triple) pair.
	ErrRecordNotFound = errors.New("commit record not found")
)

// CommitError is a failure that affects a whole commit rather than a single
// benchmark.
type CommitError struct {
	Type ErrorType
	SHA  string
	Err  error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s: commit %s: %v", e.Type, e.SHA, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// BenchmarkError is a failure of a single benchmark run. Its message is what
// gets recorded in the commit record.
type BenchmarkError struct {
	Type    ErrorType
	Message string
}

func (e *BenchmarkError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}
