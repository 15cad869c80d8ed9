package ghclient

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"

	"github.com/spiffcs/forkaudit/internal/model"
)

// ListPullRequests fetches a single 1-based page of pull requests in the
// given state ("open", "closed" or "all"), newest first. An empty result
// signals there are no more pages.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, page int, state string) ([]model.PullRequest, error) {
	opts := &gh.PullRequestListOptions{
		State: state,
		ListOptions: gh.ListOptions{
			Page: page,
		},
	}

	var prs []*gh.PullRequest
	var resp *gh.Response
	err := c.retry.Do(ctx, func() error {
		var err error
		prs, resp, err = c.client.PullRequests.List(ctx, owner, repo, opts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing pull requests for %s/%s (page %d): %w", owner, repo, page, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/pulls", page, len(prs))

	result := make([]model.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr == nil {
			continue
		}
		result = append(result, mapPullRequest(pr))
	}
	return result, nil
}

// CommitStatuses fetches the statuses reported against a commit.
func (c *Client) CommitStatuses(ctx context.Context, owner, repo, sha string) ([]model.CommitStatus, error) {
	var cs *gh.CombinedStatus
	var resp *gh.Response
	err := c.retry.Do(ctx, func() error {
		var err error
		cs, resp, err = c.client.Repositories.GetCombinedStatus(ctx, owner, repo, sha, nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching commit status for %s/%s@%s: %w", owner, repo, sha, err)
	}

	if cs == nil {
		return nil, nil
	}
	logRateLimit(resp, owner+"/"+repo+"/status", 0, len(cs.Statuses))

	statuses := make([]model.CommitStatus, 0, len(cs.Statuses))
	for _, s := range cs.Statuses {
		if s == nil {
			continue
		}
		statuses = append(statuses, mapStatus(s))
	}
	return statuses, nil
}

// mapPullRequest converts a go-github PullRequest into the domain model.
// Missing optional fields map to their zero values.
func mapPullRequest(pr *gh.PullRequest) model.PullRequest {
	head := pr.GetHead()

	p := model.PullRequest{
		Number:            pr.GetNumber(),
		HeadSHA:           head.GetSHA(),
		Author:            pr.GetUser().GetLogin(),
		AuthorAssociation: model.AuthorAssociation(pr.GetAuthorAssociation()),
		State:             pr.GetState(),
		IsFromFork:        head.GetRepo().GetFork(),
		HeadRepo:          head.GetRepo().GetFullName(),
		CreatedAt:         pr.GetCreatedAt().Time,
	}
	if pr.MergedAt != nil {
		merged := pr.MergedAt.Time
		p.MergedAt = &merged
	}
	return p
}

func mapStatus(s *gh.RepoStatus) model.CommitStatus {
	status := model.CommitStatus{
		TargetURL: s.GetTargetURL(),
		State:     model.StatusState(s.GetState()),
	}
	if s.CreatedAt != nil {
		created := s.CreatedAt.Time
		status.CreatedAt = &created
	}
	return status
}
