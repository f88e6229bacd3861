package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// LocalProvider wraps a compiler that is already present on the host. Cargo
// is looked up on PATH.
type LocalProvider struct {
	rustc string
	cargo string
}

// NewLocalProvider creates a provider for the given rustc binary. An empty
// cargo path means cargo is looked up on PATH at install time.
func NewLocalProvider(rustc, cargo string) *LocalProvider {
	return &LocalProvider{rustc: rustc, cargo: cargo}
}

// Name returns the provider name.
func (p *LocalProvider) Name() string {
	return "local"
}

// Install returns the local toolchain. The commit identifier is only used to
// label it.
func (p *LocalProvider) Install(ctx context.Context, sha, triple string) (*Toolchain, error) {
	rustc, err := filepath.Abs(p.rustc)
	if err != nil {
		return nil, fmt.Errorf("resolving rustc path: %w", err)
	}
	info, err := os.Stat(rustc)
	if err != nil {
		return nil, fmt.Errorf("checking rustc: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("rustc path %s is a directory", rustc)
	}

	cargo := p.cargo
	if cargo == "" {
		cargo = "cargo"
	}
	cargo, err = exec.LookPath(cargo)
	if err != nil {
		return nil, fmt.Errorf("finding cargo: %w", err)
	}

	return &Toolchain{
		SHA:    sha,
		Triple: triple,
		Rustc:  rustc,
		Cargo:  cargo,
	}, nil
}
