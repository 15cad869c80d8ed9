package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/spiffcs/forkaudit/config"
	"github.com/spiffcs/forkaudit/internal/analyzer"
	"github.com/spiffcs/forkaudit/internal/circleci"
	"github.com/spiffcs/forkaudit/internal/ghclient"
	"github.com/spiffcs/forkaudit/internal/log"
)

// projectProber reports whether a repository is built on CircleCI.
type projectProber interface {
	HasProject(ctx context.Context, owner, repo string) (bool, error)
}

type reposOptions struct {
	members     bool
	githubToken string
	circleToken string
	verbosity   int
}

// NewCmdRepos creates the repos command.
func NewCmdRepos() *cobra.Command {
	opts := &reposOptions{}

	cmd := &cobra.Command{
		Use:   "repos <org>",
		Short: "List an organization's repositories that build on CircleCI",
		Long: heredoc.Doc(`
			Lists every repository in a GitHub organization and prints the ones
			that have CircleCI builds, one owner/repo per line.

			With --members the personal repositories of each organization
			member are checked too.
		`),
		Example: heredoc.Doc(`
			$ forkaudit repos acme
			$ forkaudit repos acme --members | xargs forkaudit check
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepos(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.members, "members", false, "Also check the personal repositories of organization members")
	cmd.Flags().StringVar(&opts.circleToken, "circleci-token", "", "CircleCI API token (default: $CIRCLE_TOKEN)")
	cmd.Flags().StringVar(&opts.githubToken, "github-token", "", "GitHub API token (default: $GITHUB_TOKEN)")
	cmd.Flags().CountVarP(&opts.verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")

	return cmd
}

func runRepos(cmd *cobra.Command, org string, opts *reposOptions) error {
	log.Initialize(opts.verbosity, cmd.ErrOrStderr())

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ghToken, circleToken := cfg.GitHubToken, cfg.CircleToken
	if opts.githubToken != "" {
		ghToken = opts.githubToken
	}
	if opts.circleToken != "" {
		circleToken = opts.circleToken
	}
	warnMissingTokens(ghToken, circleToken)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RunTimeout())
	defer cancel()

	gh, err := ghclient.NewClient(ctx, ghToken,
		ghclient.WithBaseURL(cfg.GitHubURL),
		ghclient.WithRetry(cfg.RetryPolicy()),
	)
	if err != nil {
		return err
	}
	cc := circleci.NewClient(circleToken,
		circleci.WithBaseURL(cfg.CircleCIURL),
		circleci.WithUserAgent("forkaudit/"+version),
		circleci.WithRetry(cfg.RetryPolicy()),
	)

	return discoverProjects(ctx, gh, cc, org, opts.members, cmd.OutOrStdout())
}

// discoverProjects prints every owner/repo under org (and optionally its
// members) that has CircleCI builds. Probe failures are logged and skipped.
func discoverProjects(ctx context.Context, d ghclient.Discoverer, probe projectProber, org string, members bool, out io.Writer) error {
	candidates, err := listCandidates(ctx, d, org, members)
	if err != nil {
		return err
	}
	log.Info("probing repositories", "count", len(candidates))

	found := 0
	for i, p := range candidates {
		log.Progress("Probing CircleCI projects: %d/%d...", i+1, len(candidates))

		ok, err := probe.HasProject(ctx, p.Owner, p.Repo)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("could not probe project", "project", p, "error", err)
			continue
		}
		if !ok {
			log.Debug("not a CircleCI project", "project", p)
			continue
		}
		found++
		fmt.Fprintln(out, p.String())
	}
	log.ProgressDone()
	log.Info("CircleCI projects found", "count", found)

	return nil
}

func listCandidates(ctx context.Context, d ghclient.Discoverer, org string, members bool) ([]analyzer.Project, error) {
	repos, err := d.ListOrgRepos(ctx, org)
	if err != nil {
		return nil, err
	}

	projects := make([]analyzer.Project, 0, len(repos))
	for _, r := range repos {
		projects = append(projects, analyzer.Project{Owner: org, Repo: r})
	}
	if !members {
		return projects, nil
	}

	logins, err := d.ListOrgMembers(ctx, org)
	if err != nil {
		return nil, err
	}
	for _, login := range logins {
		userRepos, err := d.ListUserRepos(ctx, login)
		if err != nil {
			log.Warn("could not list member repositories", "user", login, "error", err)
			continue
		}
		for _, r := range userRepos {
			projects = append(projects, analyzer.Project{Owner: login, Repo: r})
		}
	}
	return projects, nil
}
