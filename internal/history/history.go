package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/spachava753/perfcollector/internal/models"
)

// ErrEpochNotFound is returned when the configured epoch commit is not on the
// first-parent history of the branch.
var ErrEpochNotFound = errors.New("epoch commit not found on branch")

// GitSource lists the merged commits of a compiler repository. Only first
// parents are followed, so every listed commit is one that CI built.
type GitSource struct {
	repoPath  string
	remoteURL string
	branch    string
	epoch     string
}

// NewGitSource creates a commit source for the configured repository.
func NewGitSource(cfg models.HistoryConfig) *GitSource {
	return &GitSource{
		repoPath:  cfg.RepoPath,
		remoteURL: cfg.RemoteURL,
		branch:    cfg.Branch,
		epoch:     cfg.EpochCommit,
	}
}

// Sync brings the local repository up to date with the remote. The
// repository is cloned bare when it does not exist yet.
func (s *GitSource) Sync(ctx context.Context) error {
	ref := plumbing.NewBranchReferenceName(s.branch)

	if _, err := os.Stat(s.repoPath); errors.Is(err, os.ErrNotExist) {
		slog.Info("cloning compiler repository", "url", s.remoteURL, "path", s.repoPath)
		_, err := gogit.PlainCloneContext(ctx, s.repoPath, true, &gogit.CloneOptions{
			URL:           s.remoteURL,
			ReferenceName: ref,
			SingleBranch:  true,
		})
		if err != nil {
			return fmt.Errorf("cloning %s: %w", s.remoteURL, err)
		}
		return nil
	}

	repo, err := gogit.PlainOpen(s.repoPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.repoPath, err)
	}

	if _, err := repo.Remote("origin"); errors.Is(err, gogit.ErrRemoteNotFound) {
		slog.Debug("compiler repository has no remote, skipping fetch", "path", s.repoPath)
		return nil
	}

	refSpec := config.RefSpec(fmt.Sprintf("+%s:%s", ref, ref))
	err = repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
	})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return fmt.Errorf("fetching %s: %w", s.branch, err)
	}

	slog.Debug("compiler repository synced", "path", s.repoPath, "up_to_date", err == gogit.NoErrAlreadyUpToDate)
	return nil
}

// Commits returns the first-parent history of the branch, oldest first. The
// walk stops before the epoch commit when one is configured.
func (s *GitSource) Commits(ctx context.Context) ([]models.Commit, error) {
	repo, err := gogit.PlainOpen(s.repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.repoPath, err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(s.branch), true)
	if err != nil {
		return nil, fmt.Errorf("resolving branch %s: %w", s.branch, err)
	}

	c, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", ref.Hash(), err)
	}

	var commits []models.Commit
	foundEpoch := s.epoch == ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.epoch != "" && strings.HasPrefix(c.Hash.String(), s.epoch) {
			foundEpoch = true
			break
		}

		commits = append(commits, toCommit(c))

		if c.NumParents() == 0 {
			break
		}
		c, err = c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("reading parent of %s: %w", commits[len(commits)-1].SHA, err)
		}
	}

	if !foundEpoch {
		return nil, fmt.Errorf("%s: %w", s.epoch, ErrEpochNotFound)
	}

	slices.Reverse(commits)
	slog.Info("commit history loaded", "branch", s.branch, "commits", len(commits))
	return commits, nil
}

func toCommit(c *object.Commit) models.Commit {
	summary, _, _ := strings.Cut(c.Message, "\n")
	return models.Commit{
		SHA:     c.Hash.String(),
		Date:    c.Committer.When.UTC(),
		Summary: summary,
	}
}
