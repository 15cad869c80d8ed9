package ghclient

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v57/github"
)

// ListOrgRepos returns the names of every repository in an organization.
func (c *Client) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	opts := &gh.RepositoryListByOrgOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var names []string
	for {
		var repos []*gh.Repository
		var resp *gh.Response
		err := c.retry.Do(ctx, func() error {
			var err error
			repos, resp, err = c.client.Repositories.ListByOrg(ctx, org, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("listing repos for org %s (page %d): %w", org, opts.Page, err)
		}

		logRateLimit(resp, "orgs/"+org+"/repos", opts.Page, len(repos))

		for _, r := range repos {
			if r.GetName() != "" {
				names = append(names, r.GetName())
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// ListOrgMembers returns the logins of an organization's public members
// (or all members when the token can see them).
func (c *Client) ListOrgMembers(ctx context.Context, org string) ([]string, error) {
	opts := &gh.ListMembersOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var logins []string
	for {
		var users []*gh.User
		var resp *gh.Response
		err := c.retry.Do(ctx, func() error {
			var err error
			users, resp, err = c.client.Organizations.ListMembers(ctx, org, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("listing members for org %s (page %d): %w", org, opts.Page, err)
		}

		logRateLimit(resp, "orgs/"+org+"/members", opts.Page, len(users))

		for _, u := range users {
			if u.GetLogin() != "" {
				logins = append(logins, u.GetLogin())
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return logins, nil
}

// ListUserRepos returns the names of a user's personal repositories.
func (c *Client) ListUserRepos(ctx context.Context, user string) ([]string, error) {
	opts := &gh.RepositoryListOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var names []string
	for {
		var repos []*gh.Repository
		var resp *gh.Response
		err := c.retry.Do(ctx, func() error {
			var err error
			repos, resp, err = c.client.Repositories.List(ctx, user, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("listing repos for user %s (page %d): %w", user, opts.Page, err)
		}

		logRateLimit(resp, "users/"+user+"/repos", opts.Page, len(repos))

		for _, r := range repos {
			if r.GetName() != "" {
				names = append(names, r.GetName())
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}
