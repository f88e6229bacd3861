package models

import (
	"slices"
	"time"
)

// PlaceholderDate is the date given to commits that are not part of the known
// history.
var PlaceholderDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Commit is a point in the compiler's history.
type Commit struct {
	SHA     string    `json:"sha"`
	Date    time.Time `json:"date"`
	Summary string    `json:"-"`
}

// CommitKind tells whether a commit came from the history or was synthesized.
type CommitKind string

const (
	CommitKnown       CommitKind = "known"
	CommitPlaceholder CommitKind = "placeholder"
)

// ResolvedCommit is the result of looking a commit identifier up in the
// history.
type ResolvedCommit struct {
	Commit Commit
	Kind   CommitKind
}

// IsPlaceholder reports whether the commit was synthesized.
func (r ResolvedCommit) IsPlaceholder() bool {
	return r.Kind == CommitPlaceholder
}

// ResolveCommit finds sha in commits. Unknown identifiers resolve to a
// placeholder commit dated PlaceholderDate.
func ResolveCommit(commits []Commit, sha string) ResolvedCommit {
	if c, ok := FindCommit(commits, sha); ok {
		return ResolvedCommit{Commit: c, Kind: CommitKnown}
	}
	return ResolvedCommit{
		Commit: Commit{SHA: sha, Date: PlaceholderDate},
		Kind:   CommitPlaceholder,
	}
}

// FindCommit returns the commit with the given SHA.
func FindCommit(commits []Commit, sha string) (Commit, bool) {
	i := slices.IndexFunc(commits, func(c Commit) bool { return c.SHA == sha })
	if i < 0 {
		return Commit{}, false
	}
	return commits[i], true
}
