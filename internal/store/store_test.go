package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/perfcollector/internal/models"
)

const triple = "x86_64-unknown-linux-gnu"

var testOptions = Options{
	Output: models.OutputConfig{
		RemoteName:  "origin",
		AuthorName:  "perfcollector",
		AuthorEmail: "perfcollector@localhost",
	},
}

func openTestStore(t *testing.T) *GitStore {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir(), testOptions)
	require.NoError(t, err)
	return s
}

func testCommit(sha string, day int) models.Commit {
	return models.Commit{SHA: sha, Date: time.Date(2018, time.January, day, 0, 0, 0, 0, time.UTC)}
}

func testRecord(commit models.Commit, outcomes map[string]models.BenchmarkOutcome) *models.CommitRecord {
	return &models.CommitRecord{Commit: commit, Triple: triple, Benchmarks: outcomes}
}

func okOutcome(name string) models.BenchmarkOutcome {
	return models.Succeeded(&models.BenchmarkResult{
		Name: name,
		Runs: []models.Run{{
			Stats: []models.Stat{{Name: models.StatWallTime, Cnt: 1.5}},
			State: "clean",
		}},
	})
}

func commitCount(t *testing.T, s *GitStore) int {
	t.Helper()
	head, err := s.repo.Head()
	if err == plumbing.ErrReferenceNotFound {
		return 0
	}
	require.NoError(t, err)

	iter, err := s.repo.Log(&gogit.LogOptions{From: head.Hash()})
	require.NoError(t, err)
	n := 0
	require.NoError(t, iter.ForEach(func(*object.Commit) error {
		n++
		return nil
	}))
	return n
}

func TestOpenInitializesRepository(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "perf-data")
	s, err := Open(context.Background(), dir, testOptions)
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(dir, ".git"))
	assert.DirExists(t, filepath.Join(dir, "times"))
	assert.Equal(t, dir, s.Dir())
}

func TestSuccessAndLoadCommitData(t *testing.T) {
	s := openTestStore(t)
	commit := testCommit("abc123", 1)

	_, err := s.LoadCommitData(commit, triple)
	require.ErrorIs(t, err, models.ErrRecordNotFound)

	rec := testRecord(commit, map[string]models.BenchmarkOutcome{
		"helloworld": okOutcome("helloworld"),
		"syn":        models.Failed("benchmark_build_failed: debug build exited with code 101"),
	})
	require.NoError(t, s.Success(context.Background(), rec))

	loaded, err := s.LoadCommitData(commit, triple)
	require.NoError(t, err)
	assert.Equal(t, rec.Commit.SHA, loaded.Commit.SHA)
	assert.True(t, loaded.Commit.Date.Equal(rec.Commit.Date))
	assert.Equal(t, rec.Benchmarks, loaded.Benchmarks)

	assert.FileExists(t, filepath.Join(s.Dir(), "times", rec.Key()+".json"))
	assert.Equal(t, 1, commitCount(t, s))

	// A different triple has its own record.
	_, err = s.LoadCommitData(commit, "aarch64-unknown-linux-gnu")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestRecordFileFormat(t *testing.T) {
	s := openTestStore(t)
	rec := testRecord(testCommit("abc123", 1), map[string]models.BenchmarkOutcome{
		"syn": models.Failed("boom"),
	})
	require.NoError(t, s.AddCommitData(rec))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "times", rec.Key()+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Err": "boom"`)
	assert.Contains(t, string(data), `"sha": "abc123"`)
}

func TestCommitSkipsCleanTree(t *testing.T) {
	s := openTestStore(t)
	rec := testRecord(testCommit("abc123", 1), map[string]models.BenchmarkOutcome{"syn": okOutcome("syn")})

	require.NoError(t, s.Success(context.Background(), rec))
	require.NoError(t, s.Success(context.Background(), rec))
	assert.Equal(t, 1, commitCount(t, s))
}

func TestFindMissingCommits(t *testing.T) {
	s := openTestStore(t)
	c1, c2, c3 := testCommit("c1", 1), testCommit("c2", 2), testCommit("c3", 3)

	// c1 is complete, c2 predates the regex benchmark, c3 was never run.
	require.NoError(t, s.AddCommitData(testRecord(c1, map[string]models.BenchmarkOutcome{
		"helloworld": okOutcome("helloworld"),
		"regex":      models.Failed("boom"),
	})))
	require.NoError(t, s.AddCommitData(testRecord(c2, map[string]models.BenchmarkOutcome{
		"helloworld": okOutcome("helloworld"),
	})))

	missing, err := s.FindMissingCommits([]models.Commit{c1, c2, c3}, []string{"helloworld", "regex"}, triple)
	require.NoError(t, err)
	assert.Equal(t, []models.Commit{c2, c3}, missing)

	// A record is never missing a benchmark the catalog does not have.
	missing, err = s.FindMissingCommits([]models.Commit{c1, c2, c3}, []string{"helloworld"}, triple)
	require.NoError(t, err)
	assert.Equal(t, []models.Commit{c3}, missing)
}

func TestFindMissingCommitsUnreadableRecord(t *testing.T) {
	s := openTestStore(t)
	c1, c2 := testCommit("c1", 1), testCommit("c2", 2)

	require.NoError(t, s.AddCommitData(testRecord(c1, map[string]models.BenchmarkOutcome{
		"helloworld": okOutcome("helloworld"),
	})))
	truncated := testRecord(c2, nil)
	require.NoError(t, os.WriteFile(s.recordPath(truncated.Key()), []byte(`{"commit": {"sha": "c2"`), 0644))

	_, err := s.LoadCommitData(c2, triple)
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrRecordNotFound)

	missing, err := s.FindMissingCommits([]models.Commit{c1, c2}, []string{"helloworld"}, triple)
	require.NoError(t, err)
	assert.Equal(t, []models.Commit{c2}, missing)
}

func TestRetryQueueIsFIFO(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.NextRetry(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.QueueRetry(ctx, "first", "second"))
	require.NoError(t, s.QueueRetry(ctx, "third"))

	for _, expected := range []string{"first", "second", "third"} {
		sha, ok, err := s.NextRetry(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, expected, sha)
	}

	_, ok, err = s.NextRetry(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetryFileIgnoresBlankLines(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "retries"), []byte("\nabc\n\n  def  \n"), 0644))

	sha, ok, err := s.NextRetry(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", sha)

	data, err := os.ReadFile(filepath.Join(s.Dir(), "retries"))
	require.NoError(t, err)
	assert.Equal(t, "def\n", string(data))
}

func TestBrokenCommitLogIsAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2018, time.February, 1, 0, 0, 0, 0, time.UTC)

	first := models.BrokenCommit{Commit: testCommit("c1", 1), Error: "toolchain_install_failed: commit c1: 404", RunID: "run-1", Time: now}
	second := models.BrokenCommit{Commit: testCommit("c2", 2), Error: "record_persist_failed: commit c2: disk full", RunID: "run-2", Time: now}

	require.NoError(t, s.WriteBrokenCommit(ctx, first))
	broken, err := s.BrokenCommits()
	require.NoError(t, err)
	require.Len(t, broken, 1)

	require.NoError(t, s.WriteBrokenCommit(ctx, second))
	broken, err = s.BrokenCommits()
	require.NoError(t, err)
	require.Len(t, broken, 2)
	assert.Equal(t, "c1", broken[0].Commit.SHA)
	assert.Equal(t, first.Error, broken[0].Error)
	assert.Equal(t, "c2", broken[1].Commit.SHA)
	assert.Equal(t, 2, commitCount(t, s))
}

func TestSyncPushesCommits(t *testing.T) {
	base := t.TempDir()

	// seed -> bare remote -> store clone
	seedDir := filepath.Join(base, "seed")
	seed, err := gogit.PlainInit(seedDir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "README.md"), []byte("perf data\n"), 0644))
	wt, err := seed.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("init", &gogit.CommitOptions{
		Author: &object.Signature{Name: "seed", Email: "seed@localhost", When: time.Now()},
	})
	require.NoError(t, err)

	remoteDir := filepath.Join(base, "remote.git")
	remote, err := gogit.PlainClone(remoteDir, true, &gogit.CloneOptions{URL: seedDir})
	require.NoError(t, err)

	storeDir := filepath.Join(base, "store")
	_, err = gogit.PlainClone(storeDir, false, &gogit.CloneOptions{URL: remoteDir})
	require.NoError(t, err)

	opts := testOptions
	opts.Sync = true
	s, err := Open(context.Background(), storeDir, opts)
	require.NoError(t, err)

	rec := testRecord(testCommit("abc123", 1), map[string]models.BenchmarkOutcome{"syn": okOutcome("syn")})
	require.NoError(t, s.Success(context.Background(), rec))

	localHead, err := s.repo.Head()
	require.NoError(t, err)
	remoteRef, err := remote.Reference(plumbing.NewBranchReferenceName("master"), true)
	require.NoError(t, err)
	assert.Equal(t, localHead.Hash(), remoteRef.Hash())
}
