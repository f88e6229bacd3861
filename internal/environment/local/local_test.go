package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spachava753/perfcollector/internal/environment"
)

func newTestEnv(t *testing.T) environment.Environment {
	t.Helper()
	env, err := NewProvider().CreateEnvironment(context.Background(), environment.CreateEnvironmentOptions{
		Name:    "test",
		BaseDir: t.TempDir(),
		Env:     map[string]string{"PERFCOLLECTOR_TEST": "1"},
	})
	if err != nil {
		t.Fatalf("CreateEnvironment failed: %v", err)
	}
	return env
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecExitCode(t *testing.T) {
	requireShell(t)
	env := newTestEnv(t)
	defer env.Destroy(context.Background())

	tests := []struct {
		name     string
		script   string
		expected int
	}{
		{name: "success", script: "exit 0", expected: 0},
		{name: "failure", script: "exit 3", expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.Exec(context.Background(), []string{"sh", "-c", tt.script}, nil, nil, environment.ExecOptions{})
			if err != nil {
				t.Fatalf("Exec failed: %v", err)
			}
			if res.ExitCode != tt.expected {
				t.Errorf("expected exit code %d, got %d", tt.expected, res.ExitCode)
			}
		})
	}
}

func TestExecEnvAndWorkDir(t *testing.T) {
	requireShell(t)
	env := newTestEnv(t)
	defer env.Destroy(context.Background())

	if err := os.Mkdir(filepath.Join(env.Dir(), "crate"), 0755); err != nil {
		t.Fatalf("creating workdir: %v", err)
	}

	var stdout bytes.Buffer
	res, err := env.Exec(context.Background(), []string{"sh", "-c", "echo $PERFCOLLECTOR_TEST $EXTRA; pwd"}, &stdout, nil, environment.ExecOptions{
		Env:     map[string]string{"EXTRA": "two"},
		WorkDir: "crate",
	})
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", res.ExitCode)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines of output, got %q", stdout.String())
	}
	if lines[0] != "1 two" {
		t.Errorf("expected env output '1 two', got %q", lines[0])
	}
	if filepath.Base(lines[1]) != "crate" {
		t.Errorf("expected to run in crate dir, got %q", lines[1])
	}
}

func TestExecTimeout(t *testing.T) {
	requireShell(t)
	env := newTestEnv(t)
	defer env.Destroy(context.Background())

	start := time.Now()
	res, err := env.Exec(context.Background(), []string{"sh", "-c", "sleep 5"}, nil, nil, environment.ExecOptions{
		Timeout: 100 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if res.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %d", res.ExitCode)
	}
	if time.Since(start) > 4*time.Second {
		t.Error("command was not stopped at the timeout")
	}
}

func TestExecEmptyCommand(t *testing.T) {
	env := newTestEnv(t)
	defer env.Destroy(context.Background())

	if _, err := env.Exec(context.Background(), nil, nil, nil, environment.ExecOptions{}); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestCopyToAndDestroy(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "Cargo.toml"), []byte("[package]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "src", "main.rs"), []byte("fn main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	env := newTestEnv(t)
	if err := env.CopyTo(context.Background(), src, "helloworld"); err != nil {
		t.Fatalf("CopyTo failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(env.Dir(), "helloworld", "src", "main.rs"))
	if err != nil {
		t.Fatalf("reading copied file: %v", err)
	}
	if string(data) != "fn main() {}\n" {
		t.Errorf("unexpected copied content %q", data)
	}

	if err := env.Destroy(context.Background()); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := os.Stat(env.Dir()); !os.IsNotExist(err) {
		t.Errorf("expected environment dir to be removed, stat err: %v", err)
	}
}

func TestEnvironmentIDsAreUnique(t *testing.T) {
	a := newTestEnv(t)
	b := newTestEnv(t)
	if a.ID() == b.ID() {
		t.Errorf("expected distinct IDs, both were %s", a.ID())
	}
}
