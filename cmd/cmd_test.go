package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"

	"github.com/spiffcs/forkaudit/config"
	"github.com/spiffcs/forkaudit/internal/analyzer"
	"github.com/spiffcs/forkaudit/internal/model"
	"github.com/spiffcs/forkaudit/internal/output"
)

func TestNew(t *testing.T) {
	cmd := New()
	if cmd == nil {
		t.Fatal("New() returned nil")
	}
	if cmd.Use != "forkaudit" {
		t.Errorf("expected Use to be 'forkaudit', got %q", cmd.Use)
	}

	want := []string{"check", "repos", "config", "version", "ratelimit"}
	for _, name := range want {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestNewCmdCheckFlags(t *testing.T) {
	cmd := NewCmdCheck(NewOptions())
	for _, name := range []string{"circleci-token", "github-token", "ignore-users", "check-all", "open-only", "limit", "grace", "output", "verbose", "tui"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag --%s not defined", name)
		}
	}
}

func TestCheckRejectsMalformedProject(t *testing.T) {
	root := New()
	root.SetArgs([]string{"check", "not-a-project"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	if err == nil {
		t.Fatal("expected error for malformed project")
	}
	if got := ExitCode(err); got != ExitUsage {
		t.Errorf("ExitCode() = %d, want %d", got, ExitUsage)
	}
}

func TestParseProjects(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []analyzer.Project
		wantErr bool
	}{
		{
			name: "valid",
			args: []string{"acme/widgets", " acme/gadgets "},
			want: []analyzer.Project{{Owner: "acme", Repo: "widgets"}, {Owner: "acme", Repo: "gadgets"}},
		},
		{name: "missing slash", args: []string{"widgets"}, wantErr: true},
		{name: "empty owner", args: []string{"/widgets"}, wantErr: true},
		{name: "empty repo", args: []string{"acme/"}, wantErr: true},
		{name: "too many parts", args: []string{"acme/widgets/extra"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProjects(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseProjects() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseProjects() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("project %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAnalyzerOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.IgnoreUsers = []string{"dependabot[bot]"}
	cfg.GraceWindow = "2h"

	t.Run("config values apply without flags", func(t *testing.T) {
		got, err := NewOptions().analyzerOptions(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Limit != cfg.PRLimit {
			t.Errorf("Limit = %d, want %d", got.Limit, cfg.PRLimit)
		}
		if got.Grace != 2*time.Hour {
			t.Errorf("Grace = %v, want 2h", got.Grace)
		}
		if got.Exhaustive || got.OpenOnly {
			t.Error("Exhaustive and OpenOnly should default to false")
		}
	})

	t.Run("flags override config", func(t *testing.T) {
		opts := NewOptions(
			WithLimit(3),
			WithGrace("90m"),
			WithIgnoreUsers("renovate[bot]", " "),
			WithCheckAll(true),
			WithOpenOnly(true),
		)
		got, err := opts.analyzerOptions(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Limit != 3 {
			t.Errorf("Limit = %d, want 3", got.Limit)
		}
		if got.Grace != 90*time.Minute {
			t.Errorf("Grace = %v, want 90m", got.Grace)
		}
		if strings.Join(got.IgnoreUsers, ",") != "dependabot[bot],renovate[bot]" {
			t.Errorf("IgnoreUsers = %v", got.IgnoreUsers)
		}
		if !got.Exhaustive || !got.OpenOnly {
			t.Error("Exhaustive and OpenOnly should be set")
		}
	})

	t.Run("invalid grace", func(t *testing.T) {
		if _, err := NewOptions(WithGrace("soon")).analyzerOptions(cfg); err == nil {
			t.Error("expected error for invalid grace")
		}
	})

	t.Run("negative limit", func(t *testing.T) {
		if _, err := NewOptions(WithLimit(-1)).analyzerOptions(cfg); err == nil {
			t.Error("expected error for negative limit")
		}
	})
}

func TestTokensPreferFlags(t *testing.T) {
	cfg := &config.Config{GitHubToken: "env-gh", CircleToken: "env-cc"}

	ghTok, cc := NewOptions().tokens(cfg)
	if ghTok != "env-gh" || cc != "env-cc" {
		t.Errorf("tokens() = %q, %q, want environment values", ghTok, cc)
	}

	opts := &Options{CircleToken: "flag-cc"}
	ghTok, cc = opts.tokens(cfg)
	if ghTok != "env-gh" || cc != "flag-cc" {
		t.Errorf("tokens() = %q, %q, want flag to win for CircleCI", ghTok, cc)
	}
}

func TestTUIFlag(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"true", "true", false},
		{"yes", "true", false},
		{"0", "false", false},
		{"No", "false", false},
		{"auto", "auto", false},
		{"maybe", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			opts := &Options{}
			f := newTUIFlag(opts)
			err := f.Set(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && f.String() != tt.want {
				t.Errorf("String() = %q, want %q", f.String(), tt.want)
			}
		})
	}
}

func TestShouldUseTUIVerboseDisables(t *testing.T) {
	on := true
	if shouldUseTUI(&Options{TUI: &on, Verbosity: 1}) {
		t.Error("verbose runs should not use the TUI")
	}
	if !shouldUseTUI(&Options{TUI: &on}) {
		t.Error("--tui=true should force the TUI")
	}
}

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []model.Outcome
		wantCode int
		wantMsg  string
	}{
		{"exposed", []model.Outcome{model.OutcomeExposedOnLatest}, ExitExposed, ""},
		{"one of many exposed", []model.Outcome{model.OutcomeNoForkedBuilds, model.OutcomeExposedOnOlderBuild}, ExitExposed, ""},
		{"single clean project", []model.Outcome{model.OutcomeNoExposureEvidence}, ExitNotExposed, "no references to non-default secrets"},
		{"several clean projects", []model.Outcome{model.OutcomeNoForkedBuilds, model.OutcomeNoCorrelatedBuilds}, ExitNotExposed, "no project shows evidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verdicts []*model.Verdict
			for i, o := range tt.outcomes {
				verdicts = append(verdicts, &model.Verdict{Project: fmt.Sprintf("acme/p%d", i), Outcome: o})
			}
			err := exitStatus(verdicts)
			if got := ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d", got, tt.wantCode)
			}
			if tt.wantMsg != "" && (err == nil || !strings.Contains(err.Error(), tt.wantMsg)) {
				t.Errorf("error = %v, want message containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(errors.New("boom")); got != ExitNotExposed {
		t.Errorf("ExitCode(plain) = %d, want %d", got, ExitNotExposed)
	}
	wrapped := fmt.Errorf("context: %w", usageError(errors.New("bad")))
	if got := ExitCode(wrapped); got != ExitUsage {
		t.Errorf("ExitCode(wrapped usage) = %d, want %d", got, ExitUsage)
	}
}

// stubRepos serves one PR page per project from memory.
type stubRepos struct {
	prs      map[string][]model.PullRequest
	statuses map[string][]model.CommitStatus
	fail     map[string]error
}

func (s *stubRepos) ListPullRequests(_ context.Context, owner, repo string, page int, _ string) ([]model.PullRequest, error) {
	key := owner + "/" + repo
	if err := s.fail[key]; err != nil {
		return nil, err
	}
	if page > 1 {
		return nil, nil
	}
	return s.prs[key], nil
}

func (s *stubRepos) CommitStatuses(_ context.Context, _, _, sha string) ([]model.CommitStatus, error) {
	return s.statuses[sha], nil
}

type stubBuilds struct {
	details map[int]*model.BuildDetail
	outputs map[string]string
}

func (s *stubBuilds) Build(_ context.Context, _, _ string, n int) (*model.BuildDetail, error) {
	if d, ok := s.details[n]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("build %d not found", n)
}

func (s *stubBuilds) FetchRaw(_ context.Context, url string) ([]byte, error) {
	if out, ok := s.outputs[url]; ok {
		return []byte(out), nil
	}
	return nil, errors.New("missing")
}

func exposedFixture() (*stubRepos, *stubBuilds) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	statusAt := created.Add(2 * time.Minute)
	outputURL := "https://logs.example/env"

	repos := &stubRepos{
		prs: map[string][]model.PullRequest{
			"acme/widgets": {{
				Number:            42,
				HeadSHA:           "abc",
				Author:            "mallory",
				AuthorAssociation: model.AssociationNone,
				State:             "closed",
				IsFromFork:        true,
				HeadRepo:          "mallory/widgets",
				CreatedAt:         created,
			}},
		},
		statuses: map[string][]model.CommitStatus{
			"abc": {{TargetURL: "https://circleci.com/gh/acme/widgets/7", State: model.StatusSuccess, CreatedAt: &statusAt}},
		},
		fail: map[string]error{"acme/broken": errors.New("listing failed")},
	}
	builds := &stubBuilds{
		details: map[int]*model.BuildDetail{
			7: {
				BuildNumber:  7,
				ActorLogin:   "mallory",
				ActorIsHuman: true,
				Branch:       "pull/42",
				Steps: []model.BuildStep{{Actions: []model.BuildAction{{
					Name:      "Preparing environment variables",
					OutputURL: outputURL,
				}}}},
			},
		},
		outputs: map[string]string{
			outputURL: `[{"message":"Using environment variables from project settings and/or contexts:\n  AWS_SECRET=**REDACTED**\n  CIRCLE_JOB=**REDACTED**\n"}]`,
		},
	}
	return repos, builds
}

func TestAnalyzeAllReportsExposure(t *testing.T) {
	repos, builds := exposedFixture()
	var stdout bytes.Buffer
	rt := &checkRuntime{
		opts:   analyzer.DefaultOptions(),
		format: output.FormatJSON,
		repos:  repos,
		builds: builds,
		stdout: &stdout,
	}

	projects := []analyzer.Project{{Owner: "acme", Repo: "broken"}, {Owner: "acme", Repo: "widgets"}}
	verdicts, err := rt.run(context.Background(), projects)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if len(verdicts) != 1 {
		t.Fatalf("got %d verdicts, want 1", len(verdicts))
	}
	if len(rt.failed) != 1 || rt.failed[0] != "acme/broken" {
		t.Errorf("failed = %v, want [acme/broken]", rt.failed)
	}

	v := verdicts[0]
	if v.Outcome != model.OutcomeExposedOnLatest {
		t.Errorf("Outcome = %s, want %s", v.Outcome, model.OutcomeExposedOnLatest)
	}
	if strings.Join(v.Secrets, ",") != "AWS_SECRET" {
		t.Errorf("Secrets = %v, want [AWS_SECRET]", v.Secrets)
	}

	if err := rt.report(verdicts); err != nil {
		t.Errorf("report() error = %v, want nil for an exposed project", err)
	}
	if !strings.Contains(stdout.String(), "AWS_SECRET") {
		t.Errorf("report missing secret name:\n%s", stdout.String())
	}
}

func TestAnalyzeAllAllProjectsFail(t *testing.T) {
	repos, builds := exposedFixture()
	rt := &checkRuntime{opts: analyzer.DefaultOptions(), repos: repos, builds: builds}

	_, err := rt.run(context.Background(), []analyzer.Project{{Owner: "acme", Repo: "broken"}})
	if err == nil || !strings.Contains(err.Error(), "acme/broken") {
		t.Errorf("run() error = %v, want failure naming acme/broken", err)
	}
}

func TestAnalyzeAllStopsOnCancel(t *testing.T) {
	repos, builds := exposedFixture()
	rt := &checkRuntime{opts: analyzer.DefaultOptions(), repos: repos, builds: builds}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rt.run(ctx, []analyzer.Project{{Owner: "acme", Repo: "broken"}, {Owner: "acme", Repo: "widgets"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("run() error = %v, want context.Canceled", err)
	}
}

// stubDiscoverer lists repositories and members from memory.
type stubDiscoverer struct {
	orgRepos  []string
	members   []string
	userRepos map[string][]string
}

func (s *stubDiscoverer) ListOrgRepos(context.Context, string) ([]string, error) {
	return s.orgRepos, nil
}

func (s *stubDiscoverer) ListOrgMembers(context.Context, string) ([]string, error) {
	return s.members, nil
}

func (s *stubDiscoverer) ListUserRepos(_ context.Context, user string) ([]string, error) {
	if repos, ok := s.userRepos[user]; ok {
		return repos, nil
	}
	return nil, errors.New("user not found")
}

type stubProber map[string]error

func (s stubProber) HasProject(_ context.Context, owner, repo string) (bool, error) {
	err, ok := s[owner+"/"+repo]
	if !ok {
		return false, nil
	}
	return err == nil, err
}

func TestDiscoverProjects(t *testing.T) {
	d := &stubDiscoverer{
		orgRepos:  []string{"widgets", "docs", "flaky"},
		members:   []string{"alice", "ghost"},
		userRepos: map[string][]string{"alice": {"dotfiles", "tool"}},
	}
	probe := stubProber{
		"acme/widgets": nil,
		"acme/flaky":   errors.New("502"),
		"alice/tool":   nil,
	}

	tests := []struct {
		name    string
		members bool
		want    string
	}{
		{"org only", false, "acme/widgets\n"},
		{"members add to org repos", true, "acme/widgets\nalice/tool\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := discoverProjects(context.Background(), d, probe, "acme", tt.members, &out); err != nil {
				t.Fatalf("discoverProjects() error = %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestPrintRateLimits(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	limits := &gh.RateLimits{
		Core: &gh.Rate{Limit: 5000, Remaining: 4999, Reset: gh.Timestamp{Time: now.Add(30 * time.Minute)}},
	}

	var out bytes.Buffer
	printRateLimits(&out, limits, now)

	if !strings.Contains(out.String(), "Core API:   4999/5000 remaining (resets in 30m0s)") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if strings.Contains(out.String(), "Search") {
		t.Error("nil limits should not be printed")
	}
}

func TestNewCmdVersion(t *testing.T) {
	SetVersionInfo("1.0.0", "abc123", "2024-01-01")

	cmd := NewCmdVersion()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	if !strings.Contains(out.String(), "forkaudit 1.0.0") || !strings.Contains(out.String(), "abc123") {
		t.Errorf("unexpected version output:\n%s", out.String())
	}
}

func TestConfigSetWritesOnlyTargetFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	if err := runConfigSet(&out, "pr_limit", "15", false); err != nil {
		t.Fatalf("runConfigSet() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(home, "forkaudit", "config.yaml"))
	if err != nil {
		t.Fatalf("global config not written: %v", err)
	}
	if strings.TrimSpace(string(data)) != "pr_limit: 15" {
		t.Errorf("global config = %q, want only pr_limit", string(data))
	}

	if err := runConfigSet(&out, "github_token", "x", false); err == nil {
		t.Error("expected tokens to be rejected")
	}
	if err := runConfigSet(&out, "default_format", "xml", true); err == nil {
		t.Error("expected invalid format to be rejected")
	}
}

func TestConfigInitLocal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	work := t.TempDir()
	t.Chdir(work)

	var out bytes.Buffer
	if err := runConfigInit(strings.NewReader("2\n"), &out, false, false); err != nil {
		t.Fatalf("runConfigInit() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(work, ".forkaudit.yaml")); err != nil {
		t.Errorf("local config not created: %v", err)
	}

	if err := runConfigInit(strings.NewReader(""), &out, false, true); err == nil {
		t.Error("expected error when config already exists")
	}
	if err := runConfigInit(strings.NewReader(""), &out, true, true); err == nil {
		t.Error("expected error for --global with --local")
	}
}

func TestProfilerWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.out")
	mem := filepath.Join(dir, "mem.out")

	p := NewProfiler(cpu, mem, "")
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	p.Stop()

	for _, path := range []string{cpu, mem} {
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			t.Errorf("profile %s not written: %v", path, err)
		}
	}
}

func TestProfilerStartFailure(t *testing.T) {
	p := NewProfiler(filepath.Join(t.TempDir(), "missing", "cpu.out"), "", "")
	if err := p.Start(); err == nil {
		t.Error("expected error for unwritable profile path")
	}
}

// anonymousAPI serves just enough of the GitHub and CircleCI APIs for check
// and repos to finish, recording the CircleCI queries it receives.
func anonymousAPI(t *testing.T) func() []string {
	t.Helper()

	var (
		mu      sync.Mutex
		queries []string
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"widgets"}]`)
	})
	mux.HandleFunc("/api/v1.1/project/github/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		mu.Unlock()
		fmt.Fprint(w, `[{"build_num":1}]`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("CIRCLE_TOKEN", "")
	t.Setenv("FORKAUDIT_GITHUB_URL", server.URL)
	t.Setenv("FORKAUDIT_CIRCLECI_URL", server.URL+"/api/v1.1")
	t.Chdir(t.TempDir())

	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), queries...)
	}
}

func TestCheckRunsWithoutTokens(t *testing.T) {
	anonymousAPI(t)

	root := New()
	var out bytes.Buffer
	root.SetArgs([]string{"check", "acme/widgets", "--tui=false", "-o", "json"})
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	if got := ExitCode(err); got != ExitNotExposed {
		t.Fatalf("ExitCode() = %d, want %d (err = %v)", got, ExitNotExposed, err)
	}
	if !strings.Contains(out.String(), `"acme/widgets"`) || !strings.Contains(out.String(), string(model.OutcomeNoForkedBuilds)) {
		t.Errorf("expected a no_forked_builds report for acme/widgets, got:\n%s", out.String())
	}
}

func TestReposRunsWithoutTokens(t *testing.T) {
	queries := anonymousAPI(t)

	root := New()
	var out bytes.Buffer
	root.SetArgs([]string{"repos", "acme"})
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err != nil {
		t.Fatalf("repos error = %v", err)
	}
	if strings.TrimSpace(out.String()) != "acme/widgets" {
		t.Errorf("output = %q, want acme/widgets", out.String())
	}
	for _, q := range queries() {
		if strings.Contains(q, "circle-token") {
			t.Errorf("anonymous project lookup sent a token: %q", q)
		}
	}
	if len(queries()) == 0 {
		t.Error("expected the CircleCI project to be looked up")
	}
}
