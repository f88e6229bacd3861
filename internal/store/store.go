package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/spachava753/perfcollector/internal/models"
)

const (
	timesDir         = "times"
	retriesFile      = "retries"
	brokenCommitsLog = "broken-commits-log.json"
)

// Options configures a GitStore.
type Options struct {
	Output models.OutputConfig
	// Sync pulls from the remote on open and pushes after every commit.
	Sync bool
}

// GitStore keeps commit records, the retry queue and the broken-commit log in
// a git working tree. Every mutation is committed.
type GitStore struct {
	dir  string
	repo *gogit.Repository
	opts Options
}

// Open opens the record store at dir, initializing a repository there when
// none exists.
func Open(ctx context.Context, dir string, opts Options) (*GitStore, error) {
	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		slog.Info("initializing record store", "path", dir)
		repo, err = gogit.PlainInit(dir, false)
	}
	if err != nil {
		return nil, fmt.Errorf("opening record store %s: %w", dir, err)
	}

	s := &GitStore{dir: dir, repo: repo, opts: opts}

	if opts.Sync {
		if err := s.pull(ctx); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Join(dir, timesDir), 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", timesDir, err)
	}
	return s, nil
}

// Dir returns the working tree of the store.
func (s *GitStore) Dir() string {
	return s.dir
}

func (s *GitStore) recordPath(key string) string {
	return filepath.Join(s.dir, timesDir, key+".json")
}

// LoadCommitData reads the record of a commit on a triple. It returns
// models.ErrRecordNotFound when none exists.
func (s *GitStore) LoadCommitData(commit models.Commit, triple string) (*models.CommitRecord, error) {
	key := (&models.CommitRecord{Commit: commit, Triple: triple}).Key()
	data, err := os.ReadFile(s.recordPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, models.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", key, err)
	}

	var rec models.CommitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", key, err)
	}
	if rec.Benchmarks == nil {
		rec.Benchmarks = make(map[string]models.BenchmarkOutcome)
	}
	return &rec, nil
}

// AddCommitData writes a record to the working tree without committing it.
func (s *GitStore) AddCommitData(rec *models.CommitRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.Key(), err)
	}
	if err := os.WriteFile(s.recordPath(rec.Key()), data, 0644); err != nil {
		return fmt.Errorf("writing record %s: %w", rec.Key(), err)
	}
	return nil
}

// Success stores the record of a processed commit and commits it.
func (s *GitStore) Success(ctx context.Context, rec *models.CommitRecord) error {
	if err := s.AddCommitData(rec); err != nil {
		return err
	}
	return s.Commit(ctx, fmt.Sprintf("Benchmark %s on %s", rec.Commit.SHA, rec.Triple))
}

// FindMissingCommits returns, in input order, the commits that have no
// readable record on the triple or whose record lacks one of the benchmarks.
func (s *GitStore) FindMissingCommits(commits []models.Commit, benchmarks []string, triple string) ([]models.Commit, error) {
	var missing []models.Commit
	for _, c := range commits {
		rec, err := s.LoadCommitData(c, triple)
		if err != nil {
			if !errors.Is(err, models.ErrRecordNotFound) {
				slog.Warn("unreadable commit record, treating as missing", "sha", c.SHA, "error", err)
			}
			missing = append(missing, c)
			continue
		}
		if slices.ContainsFunc(benchmarks, func(name string) bool { return !rec.Has(name) }) {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

func (s *GitStore) readRetries() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, retriesFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading retries: %w", err)
	}

	var shas []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			shas = append(shas, line)
		}
	}
	return shas, sc.Err()
}

func (s *GitStore) writeRetries(shas []string) error {
	var buf bytes.Buffer
	for _, sha := range shas {
		buf.WriteString(sha)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(s.dir, retriesFile), buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing retries: %w", err)
	}
	return nil
}

// NextRetry removes and returns the oldest entry of the retry queue. The
// boolean is false when the queue is empty.
func (s *GitStore) NextRetry(ctx context.Context) (string, bool, error) {
	shas, err := s.readRetries()
	if err != nil {
		return "", false, err
	}
	if len(shas) == 0 {
		return "", false, nil
	}

	if err := s.writeRetries(shas[1:]); err != nil {
		return "", false, err
	}
	if err := s.Commit(ctx, "Retry "+shas[0]); err != nil {
		return "", false, err
	}
	return shas[0], true, nil
}

// QueueRetry appends commits to the retry queue.
func (s *GitStore) QueueRetry(ctx context.Context, shas ...string) error {
	queued, err := s.readRetries()
	if err != nil {
		return err
	}
	if err := s.writeRetries(append(queued, shas...)); err != nil {
		return err
	}
	return s.Commit(ctx, "Queue retry of "+strings.Join(shas, ", "))
}

// BrokenCommits returns the broken-commit log.
func (s *GitStore) BrokenCommits() ([]models.BrokenCommit, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, brokenCommitsLog))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading broken commits: %w", err)
	}

	var broken []models.BrokenCommit
	if err := json.Unmarshal(data, &broken); err != nil {
		return nil, fmt.Errorf("parsing broken commits: %w", err)
	}
	return broken, nil
}

// WriteBrokenCommit appends an entry to the broken-commit log and commits it.
func (s *GitStore) WriteBrokenCommit(ctx context.Context, bc models.BrokenCommit) error {
	broken, err := s.BrokenCommits()
	if err != nil {
		return err
	}
	broken = append(broken, bc)

	data, err := json.MarshalIndent(broken, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding broken commits: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, brokenCommitsLog), data, 0644); err != nil {
		return fmt.Errorf("writing broken commits: %w", err)
	}
	return s.Commit(ctx, "Broken commit "+bc.Commit.SHA)
}

// Commit stages every change in the working tree and commits it. Nothing is
// committed when the tree is clean.
func (s *GitStore) Commit(ctx context.Context, msg string) error {
	worktree, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	if err := worktree.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging changes: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("getting status: %w", err)
	}
	if status.IsClean() {
		slog.Debug("record store unchanged, nothing to commit", "message", msg)
		return nil
	}

	hash, err := worktree.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  s.opts.Output.AuthorName,
			Email: s.opts.Output.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing %q: %w", msg, err)
	}
	slog.Debug("record store committed", "hash", hash.String(), "message", msg)

	if s.opts.Sync {
		return s.push(ctx)
	}
	return nil
}

func (s *GitStore) pull(ctx context.Context) error {
	worktree, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}

	err = worktree.PullContext(ctx, &gogit.PullOptions{RemoteName: s.opts.Output.RemoteName})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return fmt.Errorf("pulling record store: %w", err)
	}
	return nil
}

func (s *GitStore) push(ctx context.Context) error {
	err := s.repo.PushContext(ctx, &gogit.PushOptions{RemoteName: s.opts.Output.RemoteName})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return fmt.Errorf("pushing record store: %w", err)
	}
	return nil
}
