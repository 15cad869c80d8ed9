// Package analyzer decides whether a CI project exposes its secrets to
// forked pull requests. It collects forked PRs, correlates them with the CI
// builds they triggered, inspects each build's environment report and
// aggregates the findings into a verdict.
package analyzer

import (
	"context"

	"github.com/spiffcs/forkaudit/internal/model"
)

// RepositoryClient lists pull requests and commit statuses on the code host.
type RepositoryClient interface {
	// ListPullRequests returns one 1-based page of PRs in the given state,
	// newest first. An empty page signals the end of the list.
	ListPullRequests(ctx context.Context, owner, repo string, page int, state string) ([]model.PullRequest, error)

	// CommitStatuses returns the statuses reported against a commit.
	CommitStatuses(ctx context.Context, owner, repo, sha string) ([]model.CommitStatus, error)
}

// BuildClient fetches CI build documents and raw step output.
type BuildClient interface {
	Build(ctx context.Context, owner, repo string, buildNumber int) (*model.BuildDetail, error)
	FetchRaw(ctx context.Context, url string) ([]byte, error)
}

// Inspector extracts the secret names a candidate build was given.
type Inspector interface {
	Inspect(ctx context.Context, project Project, candidate model.CandidateBuild) ([]string, error)
}

// Ensure Detector implements Inspector interface.
var _ Inspector = (*Detector)(nil)
