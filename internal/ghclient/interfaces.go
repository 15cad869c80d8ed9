package ghclient

import (
	"context"

	"github.com/spiffcs/forkaudit/internal/analyzer"
)

// Discoverer lists the repositories an organization and its members own.
// It backs the repos command, which finds candidate projects to check.
type Discoverer interface {
	ListOrgRepos(ctx context.Context, org string) ([]string, error)
	ListOrgMembers(ctx context.Context, org string) ([]string, error)
	ListUserRepos(ctx context.Context, user string) ([]string, error)
}

var (
	_ analyzer.RepositoryClient = (*Client)(nil)
	_ Discoverer                = (*Client)(nil)
)
