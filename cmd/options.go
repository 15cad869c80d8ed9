package cmd

import (
	"fmt"
	"strings"

	"github.com/spiffcs/forkaudit/config"
	"github.com/spiffcs/forkaudit/internal/analyzer"
	"github.com/spiffcs/forkaudit/internal/duration"
	"github.com/spiffcs/forkaudit/internal/log"
	"github.com/spiffcs/forkaudit/internal/urlutil"
)

// Options holds the command-line options for the check command.
type Options struct {
	Format      string
	GitHubToken string
	CircleToken string
	IgnoreUsers []string
	Grace       string
	Limit       int
	Verbosity   int
	CheckAll    bool
	OpenOnly    bool
	TUI         *bool // nil = auto-detect, true = force TUI, false = disable TUI

	// Profiling options
	CPUProfile string // Write CPU profile to file
	MemProfile string // Write memory profile to file
	Trace      string // Write execution trace to file
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithFormat sets the output format (table, json, markdown).
func WithFormat(format string) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithIgnoreUsers sets the PR authors to skip.
func WithIgnoreUsers(users ...string) Option {
	return func(o *Options) {
		o.IgnoreUsers = users
	}
}

// WithGrace sets the merge timing tolerance (e.g. "1h", "90m").
func WithGrace(grace string) Option {
	return func(o *Options) {
		o.Grace = grace
	}
}

// WithLimit sets how many forked PRs are collected per project.
func WithLimit(limit int) Option {
	return func(o *Options) {
		o.Limit = limit
	}
}

// WithCheckAll inspects every candidate build instead of stopping at the first exposure.
func WithCheckAll(all bool) Option {
	return func(o *Options) {
		o.CheckAll = all
	}
}

// WithOpenOnly restricts collection to open PRs.
func WithOpenOnly(open bool) Option {
	return func(o *Options) {
		o.OpenOnly = open
	}
}

// WithTUI controls TUI mode (nil = auto-detect, true = force, false = disable).
func WithTUI(tui *bool) Option {
	return func(o *Options) {
		o.TUI = tui
	}
}

// analyzerOptions merges the run's flags over the loaded configuration.
// Flags win when set; config values fill the rest.
func (o *Options) analyzerOptions(cfg *config.Config) (analyzer.Options, error) {
	opts := analyzer.DefaultOptions()
	opts.CIHost = cfg.CIHost
	opts.MaxPages = cfg.MaxPages
	opts.Limit = cfg.PRLimit
	opts.Grace = cfg.Grace()
	opts.IgnoreUsers = append([]string{}, cfg.IgnoreUsers...)
	opts.OpenOnly = o.OpenOnly
	opts.Exhaustive = o.CheckAll

	if o.Limit != 0 {
		if o.Limit < 0 {
			return analyzer.Options{}, fmt.Errorf("--limit must be positive, got %d", o.Limit)
		}
		opts.Limit = o.Limit
	}
	if o.Grace != "" {
		grace, err := duration.Parse(o.Grace)
		if err != nil {
			return analyzer.Options{}, fmt.Errorf("invalid --grace: %w", err)
		}
		opts.Grace = grace
	}
	for _, u := range o.IgnoreUsers {
		if u = strings.TrimSpace(u); u != "" {
			opts.IgnoreUsers = append(opts.IgnoreUsers, u)
		}
	}

	return opts, nil
}

// format returns the flag's format, falling back to the configured default.
func (o *Options) format(cfg *config.Config) string {
	if o.Format != "" {
		return o.Format
	}
	return cfg.DefaultFormat
}

// tokens returns the flag tokens, falling back to the environment.
func (o *Options) tokens(cfg *config.Config) (github, circle string) {
	github, circle = cfg.GitHubToken, cfg.CircleToken
	if o.GitHubToken != "" {
		github = o.GitHubToken
	}
	if o.CircleToken != "" {
		circle = o.CircleToken
	}
	return github, circle
}

// warnMissingTokens logs which APIs will be queried anonymously. Neither
// token is required; without them only public data is visible.
func warnMissingTokens(github, circle string) {
	if github == "" {
		log.Warn("no GitHub token configured, requests are unauthenticated and heavily rate limited")
	}
	if circle == "" {
		log.Warn("no CircleCI token configured, only public project builds are visible")
	}
}

// parseProjects validates owner/repo arguments.
func parseProjects(args []string) ([]analyzer.Project, error) {
	projects := make([]analyzer.Project, 0, len(args))
	for _, arg := range args {
		owner, repo, err := urlutil.SplitProject(strings.TrimSpace(arg))
		if err != nil {
			return nil, err
		}
		projects = append(projects, analyzer.Project{Owner: owner, Repo: repo})
	}
	return projects, nil
}
