package analyzer

import (
	"context"
	"fmt"

	"github.com/spiffcs/forkaudit/internal/constants"
	"github.com/spiffcs/forkaudit/internal/log"
	"github.com/spiffcs/forkaudit/internal/model"
)

// Collector selects the most recent PRs that come from a fork and whose
// authors have no privileged association with the repository.
type Collector struct {
	repos RepositoryClient
	opts  Options
}

// NewCollector creates a Collector.
func NewCollector(repos RepositoryClient, opts Options) *Collector {
	return &Collector{
		repos: repos,
		opts:  opts.normalize(),
	}
}

// Collect pages through the project's PRs, newest first, until Limit PRs are
// accepted, a page comes back empty or MaxPages pages were read. Any listing
// failure fails the whole collection with ErrCollection.
func (c *Collector) Collect(ctx context.Context, project Project) ([]model.PullRequest, error) {
	if c.opts.OpenOnly {
		log.Info("collecting open PRs only", "project", project)
	}

	var prs []model.PullRequest
	for page := 1; page <= c.opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log.Debug("fetching PR page", "project", project, "page", page)
		batch, err := c.repos.ListPullRequests(ctx, project.Owner, project.Repo, page, constants.PRStateAll)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCollection, err)
		}
		if len(batch) == 0 {
			log.Debug("done collecting forked PRs", "project", project, "count", len(prs))
			return prs, nil
		}

		for _, pr := range batch {
			if !c.accept(pr) {
				continue
			}
			prs = append(prs, pr)
			log.Debug("found PR from fork",
				"project", project,
				"pr", pr.Number,
				"sha", pr.HeadSHA,
				"fork", pr.HeadRepo,
			)
			if len(prs) >= c.opts.Limit {
				log.Debug("done collecting forked PRs", "project", project, "count", len(prs))
				return prs, nil
			}
		}
	}

	log.Debug("stopping PR collection at page cap", "project", project, "pages", c.opts.MaxPages)
	return prs, nil
}

// accept applies the filters in order: ignored author, open only, fork
// origin, privileged association.
func (c *Collector) accept(pr model.PullRequest) bool {
	if c.opts.ignores(pr.Author) {
		log.Debug("ignoring PR from ignored user", "pr", pr.Number, "user", pr.Author)
		return false
	}
	if c.opts.OpenOnly && pr.State != "" && !pr.IsOpen() {
		return false
	}
	if !pr.IsFromFork || pr.HeadSHA == "" {
		return false
	}
	if pr.AuthorAssociation.IsPrivileged() {
		log.Debug("ignoring PR from privileged author",
			"pr", pr.Number,
			"user", pr.Author,
			"association", pr.AuthorAssociation,
		)
		return false
	}
	return true
}
