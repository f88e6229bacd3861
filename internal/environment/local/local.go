package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spachava753/perfcollector/internal/environment"
)

// ErrTimeout is returned by Exec when the command exceeded its timeout.
var ErrTimeout = errors.New("command timed out")

// Provider implements the local environment provider. Environments are
// temporary directories on the host and commands run as host processes.
type Provider struct{}

// NewProvider creates a new local provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "local"
}

// CreateEnvironment creates a temporary directory to work in.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	prefix := opts.Name
	if prefix == "" {
		prefix = "perfcollector"
	}

	dir, err := os.MkdirTemp(opts.BaseDir, prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating environment directory: %w", err)
	}

	slog.Debug("created local environment", "dir", dir)
	return &LocalEnvironment{
		id:  filepath.Base(dir),
		dir: dir,
		env: opts.Env,
	}, nil
}

// LocalEnvironment is a temporary directory on the host.
type LocalEnvironment struct {
	id  string
	dir string
	env map[string]string
}

// ID returns the environment ID.
func (e *LocalEnvironment) ID() string {
	return e.id
}

// Dir returns the workspace directory.
func (e *LocalEnvironment) Dir() string {
	return e.dir
}

// CopyTo copies the directory tree at src into the workspace.
func (e *LocalEnvironment) CopyTo(ctx context.Context, src, dst string) error {
	target := filepath.Join(e.dir, dst)

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(target, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(out, 0755)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, out)
		default:
			return copyFile(path, out)
		}
	})
	if err != nil {
		return fmt.Errorf("copying %s to environment: %w", src, err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

// Exec runs a command in the workspace.
func (e *LocalEnvironment) Exec(ctx context.Context, args []string, stdout, stderr io.Writer, opts environment.ExecOptions) (environment.ExecResult, error) {
	if len(args) == 0 {
		return environment.ExecResult{ExitCode: -1}, fmt.Errorf("executing command: empty command")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = filepath.Join(e.dir, opts.WorkDir)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// Add environment variables
	cmd.Env = os.Environ()
	for k, v := range e.env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	start := time.Now()
	err := cmd.Run()
	result := environment.ExecResult{
		Wall:      time.Since(start),
		MaxRSSKiB: maxRSS(cmd.ProcessState),
	}

	if err != nil {
		// Check for context timeout
		if ctx.Err() == context.DeadlineExceeded {
			result.ExitCode = -1
			return result, ErrTimeout
		}
		// Try to extract exit code
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("executing command: %w", err)
	}

	return result, nil
}

// Destroy removes the workspace directory.
func (e *LocalEnvironment) Destroy(ctx context.Context) error {
	if err := os.RemoveAll(e.dir); err != nil {
		return fmt.Errorf("removing environment %s: %w", e.id, err)
	}
	return nil
}
