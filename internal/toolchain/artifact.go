package toolchain

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/spachava753/perfcollector/internal/models"
)

// ArtifactProvider installs toolchains from the tarballs produced by CI for
// every merged commit. Components are downloaded in parallel and unpacked
// into a single sysroot.
type ArtifactProvider struct {
	fetcher    Fetcher
	prefix     string
	components []string
	workDir    string
	timeout    time.Duration
	maxElapsed time.Duration
}

// NewArtifactProvider creates a provider reading artifacts through fetcher.
func NewArtifactProvider(fetcher Fetcher, cfg models.ToolchainConfig) *ArtifactProvider {
	return &ArtifactProvider{
		fetcher:    fetcher,
		prefix:     cfg.Prefix,
		components: cfg.Components,
		workDir:    cfg.WorkDir,
		timeout:    time.Duration(cfg.DownloadTimeoutSec * float64(time.Second)),
		maxElapsed: time.Duration(cfg.MaxRetryElapsedSec * float64(time.Second)),
	}
}

// Name returns the provider name.
func (p *ArtifactProvider) Name() string {
	return "artifacts"
}

// ArtifactKey returns the object key of a component tarball.
func ArtifactKey(prefix, sha, component, triple string) string {
	return path.Join(prefix, sha, fmt.Sprintf("%s-nightly-%s.tar.gz", component, triple))
}

// Install downloads and unpacks every configured component for the commit.
func (p *ArtifactProvider) Install(ctx context.Context, sha, triple string) (*Toolchain, error) {
	dir, err := os.MkdirTemp(p.workDir, "sysroot-"+sha+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating sysroot directory: %w", err)
	}
	tc := &Toolchain{SHA: sha, Triple: triple, dir: dir}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, component := range p.components {
		g.Go(func() error {
			return p.installComponent(gctx, sha, component, triple, dir)
		})
	}
	if err := g.Wait(); err != nil {
		tc.Close()
		return nil, &models.CommitError{Type: models.ErrToolchainDownloadFailed, SHA: sha, Err: err}
	}

	tc.Rustc = filepath.Join(dir, "bin", "rustc")
	if _, err := os.Stat(tc.Rustc); err != nil {
		tc.Close()
		return nil, &models.CommitError{
			Type: models.ErrToolchainInstallFailed,
			SHA:  sha,
			Err:  fmt.Errorf("rustc missing from sysroot: %w", err),
		}
	}

	tc.Cargo = filepath.Join(dir, "bin", "cargo")
	if _, err := os.Stat(tc.Cargo); err != nil {
		// Older artifacts do not ship cargo, fall back to the host one.
		tc.Cargo = "cargo"
	}

	slog.Info("toolchain installed",
		"sha", sha,
		"triple", triple,
		"dir", dir,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return tc, nil
}

func (p *ArtifactProvider) installComponent(ctx context.Context, sha, component, triple, dir string) error {
	key := ArtifactKey(p.prefix, sha, component, triple)

	op := func() error {
		attemptCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		body, err := p.fetcher.Fetch(attemptCtx, key)
		if err != nil {
			if errors.Is(err, ErrArtifactNotFound) {
				return backoff.Permanent(err)
			}
			slog.Warn("artifact download failed, retrying", "key", key, "error", err)
			return err
		}
		defer body.Close()

		if err := unpack(body, dir); err != nil {
			slog.Warn("artifact unpack failed, retrying", "key", key, "error", err)
			return err
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = p.maxElapsed
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("installing %s: %w", component, err)
	}

	slog.Debug("component installed", "component", component, "key", key)
	return nil
}

// unpack extracts a component tarball into dir. The archive's top-level
// directory and the component directory beneath it are stripped, so every
// component lands in the same sysroot layout (bin/, lib/, ...).
func unpack(r io.Reader, dir string) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		name := path.Clean(hdr.Name)
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return fmt.Errorf("tar entry %q escapes the sysroot", hdr.Name)
		}
		parts := strings.SplitN(name, "/", 3)
		if len(parts) < 3 {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(parts[2]))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

func writeFile(target string, r io.Reader, perm os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(f, r)
	return err
}
