package toolchain

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Toolchain is an installed compiler that benchmarks can be built with.
type Toolchain struct {
	SHA    string
	Triple string
	Rustc  string // absolute path to the rustc binary
	Cargo  string // absolute path to the cargo binary

	dir string // removed by Close when set
}

// NewToolchain describes an installed toolchain. A non-empty dir is removed
// by Close.
func NewToolchain(sha, triple, rustc, cargo, dir string) *Toolchain {
	return &Toolchain{SHA: sha, Triple: triple, Rustc: rustc, Cargo: cargo, dir: dir}
}

// Close releases the files backing the toolchain.
func (t *Toolchain) Close() error {
	if t == nil || t.dir == "" {
		return nil
	}
	if err := os.RemoveAll(t.dir); err != nil {
		return fmt.Errorf("removing toolchain %s: %w", t.SHA, err)
	}
	slog.Debug("toolchain removed", "sha", t.SHA, "dir", t.dir)
	t.dir = ""
	return nil
}

// Provider obtains a toolchain for a commit.
type Provider interface {
	// Name returns the provider name (e.g., "artifacts").
	Name() string

	// Install makes the toolchain built from sha available for triple. The
	// caller must Close the returned toolchain.
	Install(ctx context.Context, sha, triple string) (*Toolchain, error)
}
