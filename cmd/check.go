package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spiffcs/forkaudit/config"
	"github.com/spiffcs/forkaudit/internal/analyzer"
	"github.com/spiffcs/forkaudit/internal/circleci"
	"github.com/spiffcs/forkaudit/internal/constants"
	"github.com/spiffcs/forkaudit/internal/ghclient"
	"github.com/spiffcs/forkaudit/internal/log"
	"github.com/spiffcs/forkaudit/internal/model"
	"github.com/spiffcs/forkaudit/internal/output"
	"github.com/spiffcs/forkaudit/internal/tui"
)

// NewCmdCheck creates the check command.
func NewCmdCheck(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <owner/repo>...",
		Short: "Check whether CircleCI passes secrets to forked PR builds",
		Long: heredoc.Doc(`
			Looks at recent pull requests opened from forks by users without
			write access, finds the CircleCI builds they triggered, and reads
			each build's environment report for project secrets.

			Projects are checked one after another. The exit status is 0 when
			any project shows evidence of exposure and 1 otherwise.
		`),
		Example: heredoc.Doc(`
			# Check a single project
			$ forkaudit check acme/widgets

			# Inspect every candidate build and emit JSON
			$ forkaudit check acme/widgets acme/gadgets --check-all -o json

			# Feed the output of repos into check
			$ forkaudit repos acme | xargs forkaudit check
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}

	addCheckFlags(cmd, opts)
	return cmd
}

// addCheckFlags adds the check-specific flags to a command.
func addCheckFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.Format, "output", "o", "", "Output format (table, json, markdown)")
	cmd.Flags().StringVar(&opts.CircleToken, "circleci-token", "", "CircleCI API token (default: $CIRCLE_TOKEN)")
	cmd.Flags().StringVar(&opts.GitHubToken, "github-token", "", "GitHub API token (default: $GITHUB_TOKEN)")
	cmd.Flags().StringSliceVar(&opts.IgnoreUsers, "ignore-users", nil, "Comma-separated PR authors to skip")
	cmd.Flags().BoolVar(&opts.CheckAll, "check-all", false, "Inspect every candidate build, not just until the first exposure")
	cmd.Flags().BoolVar(&opts.OpenOnly, "open-only", false, "Only consider open pull requests")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Forked PRs to collect per project (default: config pr_limit)")
	cmd.Flags().StringVar(&opts.Grace, "grace", "", "Merge timing tolerance, e.g. 1h or 90m (default: config grace_window)")
	cmd.Flags().CountVarP(&opts.Verbosity, "verbose", "v", "Increase verbosity (-v info, -vv debug, -vvv trace)")

	// TUI flag with tri-state: nil = auto, true = force, false = disable
	cmd.Flags().Var(newTUIFlag(opts), "tui", "Enable/disable TUI progress (default: auto-detect)")

	// Profiling flags
	cmd.Flags().StringVar(&opts.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	cmd.Flags().StringVar(&opts.MemProfile, "memprofile", "", "Write memory profile to file")
	cmd.Flags().StringVar(&opts.Trace, "trace", "", "Write execution trace to file")
}

// checkRuntime bundles what one invocation of check needs.
type checkRuntime struct {
	opts   analyzer.Options
	format output.Format
	repos  analyzer.RepositoryClient
	builds analyzer.BuildClient
	useTUI bool
	stdout io.Writer
	failed []string
}

func runCheck(cmd *cobra.Command, args []string, opts *Options) error {
	projects, err := parseProjects(args)
	if err != nil {
		return usageError(err)
	}

	profiler := NewProfiler(opts.CPUProfile, opts.MemProfile, opts.Trace)
	if err := profiler.Start(); err != nil {
		return err
	}
	defer profiler.Stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt, err := newCheckRuntime(cfg, opts, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RunTimeout())
	defer cancel()

	ghToken, circleToken := opts.tokens(cfg)
	warnMissingTokens(ghToken, circleToken)

	ghClient, err := ghclient.NewClient(ctx, ghToken,
		ghclient.WithBaseURL(cfg.GitHubURL),
		ghclient.WithRetry(cfg.RetryPolicy()),
	)
	if err != nil {
		return err
	}
	rt.repos = ghClient
	rt.builds = circleci.NewClient(circleToken,
		circleci.WithBaseURL(cfg.CircleCIURL),
		circleci.WithUserAgent("forkaudit/"+version),
		circleci.WithRetry(cfg.RetryPolicy()),
	)

	verdicts, err := rt.run(ctx, projects)
	if rt.useTUI {
		// Logs were discarded while the TUI owned the terminal.
		log.Initialize(opts.Verbosity, os.Stderr)
	}
	if err != nil {
		return err
	}
	for _, p := range rt.failed {
		log.Warn("project was not checked", "project", p)
	}
	return rt.report(verdicts)
}

func newCheckRuntime(cfg *config.Config, opts *Options, stdout io.Writer) (*checkRuntime, error) {
	format, err := output.ParseFormat(opts.format(cfg))
	if err != nil {
		return nil, usageError(err)
	}
	aopts, err := opts.analyzerOptions(cfg)
	if err != nil {
		return nil, usageError(err)
	}

	useTUI := shouldUseTUI(opts)
	logOut := io.Writer(os.Stderr)
	if useTUI {
		logOut = io.Discard
	}
	log.Initialize(opts.Verbosity, logOut)

	return &checkRuntime{
		opts:   aopts,
		format: format,
		useTUI: useTUI,
		stdout: stdout,
	}, nil
}

// run analyzes each project in turn. With the TUI enabled the analysis and
// the TUI run in an errgroup; quitting the TUI cancels the analysis.
func (rt *checkRuntime) run(ctx context.Context, projects []analyzer.Project) ([]*model.Verdict, error) {
	if !rt.useTUI {
		return rt.analyzeAll(ctx, projects, nil)
	}

	events := make(chan tui.Event, constants.TUIEventBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tui.Run(events)
	})

	var verdicts []*model.Verdict
	g.Go(func() error {
		defer close(events)
		var err error
		verdicts, err = rt.analyzeAll(gctx, projects, events)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

// analyzeAll runs the analyzer for every project. A collection failure is
// reported and the next project is checked; cancellation stops the run.
func (rt *checkRuntime) analyzeAll(ctx context.Context, projects []analyzer.Project, events chan tui.Event) ([]*model.Verdict, error) {
	observer := logObserver()
	if events != nil {
		observer = tui.Observer(events)
	}
	a := analyzer.New(rt.repos, rt.builds, rt.opts, observer)

	var verdicts []*model.Verdict
	for i, project := range projects {
		tui.SendEvent(events, tui.ProjectEvent{Project: project.String(), Index: i + 1, Total: len(projects)})
		log.Info("checking project", "project", project, "position", fmt.Sprintf("%d/%d", i+1, len(projects)))

		verdict, err := a.Run(ctx, project)
		sendRateLimit(events)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("check interrupted: %w", ctxErr)
			}
			log.Error("project check failed", "project", project, "error", err)
			rt.failed = append(rt.failed, project.String())
			continue
		}
		verdicts = append(verdicts, verdict)
	}

	if len(verdicts) == 0 && len(rt.failed) > 0 {
		return nil, fmt.Errorf("could not check %s", strings.Join(rt.failed, ", "))
	}
	return verdicts, nil
}

// report renders the verdicts and derives the exit status.
func (rt *checkRuntime) report(verdicts []*model.Verdict) error {
	formatter := output.NewFormatter(rt.format, rt.opts.CIHost)
	if err := formatter.Format(verdicts, rt.stdout); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return exitStatus(verdicts)
}

// exitStatus returns nil when any verdict is an exposure and an ExitError
// carrying the outcome otherwise.
func exitStatus(verdicts []*model.Verdict) error {
	for _, v := range verdicts {
		if v.Outcome.Exposed() {
			return nil
		}
	}

	msg := "no project shows evidence of secret exposure"
	if len(verdicts) == 1 {
		msg = verdicts[0].Outcome.Message(verdicts[0].Project)
	}
	return &ExitError{Code: ExitNotExposed, Err: errors.New(msg)}
}

// logObserver reports progress through the logger when the TUI is off.
func logObserver() analyzer.Observer {
	return func(p analyzer.Progress) {
		switch {
		case p.Err != nil:
			log.ProgressClear()
		case p.Skipped:
			log.Debug("stage skipped", "stage", p.Stage)
		case p.Finished:
			if p.Stage == analyzer.StageInspect {
				log.ProgressDone()
			}
			log.Info("stage complete", "stage", p.Stage, "count", p.Done)
		case p.Build != nil:
			log.Progress("Inspecting builds: %d/%d...", p.Done, p.Total)
		}
	}
}

func sendRateLimit(events chan tui.Event) {
	if events == nil {
		return
	}
	rl := ghclient.RateLimitStatus()
	tui.SendEvent(events, tui.RateLimitEvent{Limited: rl.Limited, ResetAt: rl.ResetAt})
}
