package analyzer

import (
	"context"
	"strings"

	"github.com/spiffcs/forkaudit/internal/constants"
	"github.com/spiffcs/forkaudit/internal/log"
	"github.com/spiffcs/forkaudit/internal/model"
)

// Detector inspects a candidate build's environment report for the secrets
// that were injected into it.
type Detector struct {
	builds BuildClient
}

// NewDetector creates a Detector.
func NewDetector(builds BuildClient) *Detector {
	return &Detector{builds: builds}
}

// envStep is the located environment report action.
type envStep struct {
	outputURL string
	marker    string
}

// Inspect returns the secret names the candidate build was given, possibly
// none. Every reason the build cannot serve as evidence is returned as an
// *InspectError; context cancellation is returned as is.
func (d *Detector) Inspect(ctx context.Context, project Project, candidate model.CandidateBuild) ([]string, error) {
	num := candidate.BuildNumber
	log.Debug("checking build", "project", project, "build", num)

	detail, err := d.builds.Build(ctx, project.Owner, project.Repo, num)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &InspectError{Kind: FetchFailed, Build: num, Detail: "fetching build detail", Err: err}
	}

	if err := checkConsistency(detail, candidate); err != nil {
		return nil, err
	}

	step, err := locateEnvironmentStep(detail)
	if err != nil {
		return nil, err
	}

	log.Debug("downloading job output", "build", num)
	raw, err := d.builds.FetchRaw(ctx, step.outputURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &InspectError{Kind: FetchFailed, Build: num, Detail: "downloading job output", Err: err}
	}

	message, err := ParseJobOutput(raw)
	if err != nil {
		return nil, &InspectError{Kind: EmptyLogOutput, Build: num, Detail: "job output download was empty", Err: err}
	}

	secrets, ok := ExtractSecretNames(message, step.marker)
	if !ok {
		return nil, inspectFailure(MarkerNotFound, num, "could not find the %q message in the job output", step.marker)
	}

	for _, s := range secrets {
		log.Debug("found reference to env var", "build", num, "name", s)
	}
	return secrets, nil
}

// checkConsistency rejects builds that were not run by the PR author on a PR
// branch, since those do not show what untrusted code could see.
func checkConsistency(detail *model.BuildDetail, candidate model.CandidateBuild) error {
	num := candidate.BuildNumber

	if detail.ActorIsHuman && detail.ActorLogin != "" && !strings.EqualFold(detail.ActorLogin, candidate.PRUser) {
		return inspectFailure(ActorMismatch, num,
			"PR user is not the same as build user (GitHub PR: %s, CircleCI build: %s), a privileged user or bot may have run the build",
			candidate.PRUser, detail.ActorLogin)
	}

	if detail.Branch != "" && !strings.Contains(strings.ToLower(detail.Branch), "pull") {
		return inspectFailure(NotPullRequestBuild, num,
			"branch %q is not a pull request branch, the build was possibly caused by a merge", detail.Branch)
	}

	return nil
}

// locateEnvironmentStep finds the action whose output lists the injected
// variables. The current action name wins over the legacy one; the legacy
// one is only consulted when no current action exists at all.
func locateEnvironmentStep(detail *model.BuildDetail) (envStep, error) {
	url, found := findAction(detail, constants.PrepareEnvActionName)
	marker := constants.EnvMarkerCurrent
	if !found {
		log.Debug("no environment variables action, trying the legacy spin up action", "build", detail.BuildNumber)
		url, found = findAction(detail, constants.SpinUpEnvActionName)
		marker = constants.EnvMarker
	}

	if !found {
		return envStep{}, inspectFailure(EnvironmentStepMissing, detail.BuildNumber,
			"could not find an action showing environment variables used")
	}
	if url == "" {
		return envStep{}, inspectFailure(LogUrlMissing, detail.BuildNumber,
			"environment variables action has no output URL")
	}
	return envStep{outputURL: url, marker: marker}, nil
}

// findAction returns the output URL of the first action whose name contains
// name and has stored output. found is true when any action matched by name.
func findAction(detail *model.BuildDetail, name string) (url string, found bool) {
	for _, step := range detail.Steps {
		for _, action := range step.Actions {
			if !strings.Contains(strings.ToLower(action.Name), name) {
				continue
			}
			found = true
			if action.OutputURL != "" {
				return action.OutputURL, true
			}
		}
	}
	return "", found
}
