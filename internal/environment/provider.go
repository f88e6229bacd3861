package environment

import (
	"context"
	"io"
	"time"
)

// Environment is a scratch workspace in which benchmark builds run.
type Environment interface {
	// ID returns the unique identifier for this environment.
	ID() string

	// Dir returns the root directory of the workspace.
	Dir() string

	// CopyTo copies a local directory tree into the workspace at dst,
	// which is relative to Dir.
	CopyTo(ctx context.Context, src, dst string) error

	// Exec runs a command in the workspace, streaming stdout and stderr to
	// the provided writers. A non-zero exit status is reported in the
	// result, not as an error.
	Exec(ctx context.Context, args []string, stdout, stderr io.Writer, opts ExecOptions) (ExecResult, error)

	// Destroy removes the workspace and everything in it.
	Destroy(ctx context.Context) error
}

// ExecOptions configures command execution.
type ExecOptions struct {
	Env     map[string]string
	Timeout time.Duration
	WorkDir string // relative to the environment's Dir
}

// ExecResult describes a finished command.
type ExecResult struct {
	ExitCode  int
	Wall      time.Duration
	MaxRSSKiB int64 // peak resident set size, 0 when the platform does not report it
}

// Provider is a factory for creating environments.
type Provider interface {
	// Name returns the provider name (e.g., "local").
	Name() string

	// CreateEnvironment creates a fresh, empty environment.
	CreateEnvironment(ctx context.Context, opts CreateEnvironmentOptions) (Environment, error)
}

// CreateEnvironmentOptions configures environment creation.
type CreateEnvironmentOptions struct {
	Name    string            // used as a prefix of the environment ID
	BaseDir string            // parent directory, os.TempDir() when empty
	Env     map[string]string // variables added to every Exec
}
