package models

// RetryFailurePolicy controls what the retry loop does when a commit fails.
type RetryFailurePolicy string

const (
	// RetryAbort stops the retry pass, and the invocation, at the first failure.
	RetryAbort RetryFailurePolicy = "abort"
	// RetryIsolate logs the failure as a broken commit and keeps draining.
	RetryIsolate RetryFailurePolicy = "isolate"
)

// CollectorConfig represents the parsed perfcollector.yaml configuration.
type CollectorConfig struct {
	Triple             string             `yaml:"triple" json:"triple"`
	BenchmarksDir      string             `yaml:"benchmarks_dir" json:"benchmarks_dir"`
	Iterations         int                `yaml:"iterations" json:"iterations"`
	TestIterations     int                `yaml:"test_iterations" json:"test_iterations"`
	TestExclude        string             `yaml:"test_exclude" json:"test_exclude"`
	MaxCommitsPerRun   int                `yaml:"max_commits_per_run" json:"max_commits_per_run"`
	RetryFailurePolicy RetryFailurePolicy `yaml:"retry_failure_policy" json:"retry_failure_policy"`
	LogLevel           string             `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	MetricsFile        string             `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
	History            HistoryConfig      `yaml:"history" json:"history"`
	Toolchain          ToolchainConfig    `yaml:"toolchain" json:"toolchain"`
	Output             OutputConfig       `yaml:"output" json:"output"`
}

// HistoryConfig locates the compiler repository whose commits are benchmarked.
type HistoryConfig struct {
	RepoPath    string `yaml:"repo_path" json:"repo_path"`
	RemoteURL   string `yaml:"remote_url" json:"remote_url"`
	Branch      string `yaml:"branch" json:"branch"`
	EpochCommit string `yaml:"epoch_commit,omitempty" json:"epoch_commit,omitempty"`
}

// ToolchainConfig describes where CI toolchain artifacts are downloaded from.
type ToolchainConfig struct {
	Bucket             string   `yaml:"bucket" json:"bucket"`
	Region             string   `yaml:"region" json:"region"`
	Prefix             string   `yaml:"prefix" json:"prefix"`
	Endpoint           string   `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID        string   `yaml:"access_key_id,omitempty" json:"-"`
	SecretAccessKey    string   `yaml:"secret_access_key,omitempty" json:"-"`
	Components         []string `yaml:"components" json:"components"`
	DownloadTimeoutSec float64  `yaml:"download_timeout_sec" json:"download_timeout_sec"`
	MaxRetryElapsedSec float64  `yaml:"max_retry_elapsed_sec" json:"max_retry_elapsed_sec"`
	WorkDir            string   `yaml:"work_dir,omitempty" json:"work_dir,omitempty"`
}

// OutputConfig controls how the record store commits its changes.
type OutputConfig struct {
	RemoteName  string `yaml:"remote_name" json:"remote_name"`
	AuthorName  string `yaml:"author_name" json:"author_name"`
	AuthorEmail string `yaml:"author_email" json:"author_email"`
}
