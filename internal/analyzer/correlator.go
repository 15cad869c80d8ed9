package analyzer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spiffcs/forkaudit/internal/log"
	"github.com/spiffcs/forkaudit/internal/model"
	"github.com/spiffcs/forkaudit/internal/urlutil"
)

// Correlator maps forked PRs to the CI builds their head commits triggered.
type Correlator struct {
	repos   RepositoryClient
	matcher *urlutil.BuildURLMatcher
	grace   time.Duration
}

// NewCorrelator creates a Correlator.
func NewCorrelator(repos RepositoryClient, opts Options) *Correlator {
	opts = opts.normalize()
	return &Correlator{
		repos:   repos,
		matcher: urlutil.NewBuildURLMatcher(opts.CIHost),
		grace:   opts.Grace,
	}
}

// Correlate returns the candidate builds for prs, unique by build number and
// ordered newest first. Statuses that point elsewhere, that are still
// pending, or that fired after the PR was merged are skipped. A failure to
// list statuses fails the whole correlation with ErrCollection.
func (c *Correlator) Correlate(ctx context.Context, project Project, prs []model.PullRequest) ([]model.CandidateBuild, error) {
	seen := make(map[int]bool)
	var builds []model.CandidateBuild

	for _, pr := range prs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		statuses, err := c.repos.CommitStatuses(ctx, project.Owner, project.Repo, pr.HeadSHA)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCollection, err)
		}

		for _, status := range statuses {
			num, ok := c.matcher.BuildNumber(status.TargetURL)
			if !ok || seen[num] {
				continue
			}

			if c.ranOnMerge(pr, status) {
				log.Debug("skipping build that appears to have run on merge", "build", num, "pr", pr.Number)
				continue
			}
			if status.State == model.StatusPending {
				log.Info("skipping pending build, try again soon for it to be checked", "build", num, "pr", pr.Number)
				continue
			}

			seen[num] = true
			builds = append(builds, model.CandidateBuild{
				BuildNumber:     num,
				PRNumber:        pr.Number,
				PRUser:          pr.Author,
				PRCreatedAt:     pr.CreatedAt,
				PRMergedAt:      pr.MergedAt,
				StatusCreatedAt: status.CreatedAt,
			})

			attrs := []any{"build", num, "pr", pr.Number, "sha", pr.HeadSHA}
			if status.CreatedAt != nil && !pr.CreatedAt.IsZero() {
				attrs = append(attrs, "seconds_after_pr", int64(status.CreatedAt.Sub(pr.CreatedAt).Seconds()))
			}
			log.Debug("found build from forked PR", attrs...)
		}
	}

	sort.Slice(builds, func(i, j int) bool {
		return builds[i].BuildNumber > builds[j].BuildNumber
	})

	return builds, nil
}

// ranOnMerge reports whether a status on a merged PR was most likely created
// by the build of the merge rather than by the PR being opened: it was
// created more than grace after the PR and no earlier than grace before the
// merge.
func (c *Correlator) ranOnMerge(pr model.PullRequest, status model.CommitStatus) bool {
	if pr.MergedAt == nil || status.CreatedAt == nil {
		return false
	}
	created := *status.CreatedAt
	return created.After(pr.CreatedAt.Add(c.grace)) && created.Add(c.grace).After(*pr.MergedAt)
}
