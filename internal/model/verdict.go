package model

import "fmt"

// Outcome is the terminal classification of an analysis run.
type Outcome string

const (
	// OutcomeNoForkedBuilds means no forked, unprivileged PRs were found, so
	// exposure cannot be determined.
	OutcomeNoForkedBuilds Outcome = "no_forked_builds"
	// OutcomeNoCorrelatedBuilds means forked PRs exist but none of their
	// statuses point at a CI build that ran on PR creation.
	OutcomeNoCorrelatedBuilds Outcome = "no_correlated_builds"
	// OutcomeNoExposureEvidence means every candidate build was inspected and
	// none injected non-default secrets.
	OutcomeNoExposureEvidence Outcome = "no_exposure_evidence"
	// OutcomeExposedOnLatest means the most recent candidate build was passed secrets.
	OutcomeExposedOnLatest Outcome = "exposed_on_latest"
	// OutcomeExposedOnOlderBuild means only an older candidate build was passed secrets.
	OutcomeExposedOnOlderBuild Outcome = "exposed_on_older_build"
)

// Exposed reports whether the outcome is evidence of secret exposure.
func (o Outcome) Exposed() bool {
	return o == OutcomeExposedOnLatest || o == OutcomeExposedOnOlderBuild
}

// Message returns the human readable summary for a project.
func (o Outcome) Message(project string) string {
	switch o {
	case OutcomeNoForkedBuilds:
		return fmt.Sprintf("%s: No builds found which came from a forked PR - unable to determine whether this project is vulnerable", project)
	case OutcomeNoCorrelatedBuilds:
		return fmt.Sprintf("%s: No CircleCI statuses found - unlikely to be vulnerable", project)
	case OutcomeNoExposureEvidence:
		return fmt.Sprintf("%s: Forked PRs do run builds, but no references to non-default secrets were found", project)
	case OutcomeExposedOnLatest:
		return fmt.Sprintf("%s: may be vulnerable!", project)
	case OutcomeExposedOnOlderBuild:
		return fmt.Sprintf("%s: an older forked PR build task was passed secrets, may be vulnerable!", project)
	default:
		return fmt.Sprintf("%s: unknown outcome %q", project, string(o))
	}
}

// BuildResult records what happened when a single candidate was inspected.
type BuildResult struct {
	Build   CandidateBuild `json:"build"`
	Secrets []string       `json:"secrets,omitempty"`
	Failure string         `json:"failure,omitempty"` // failure kind, empty on success
	Detail  string         `json:"detail,omitempty"`
}

// Failed reports whether inspecting the build failed.
func (r BuildResult) Failed() bool {
	return r.Failure != ""
}

// Verdict is the final result of assessing a project's candidate builds.
type Verdict struct {
	Project string  `json:"project"`
	Outcome Outcome `json:"outcome"`
	// Secrets is the accumulation of secret names across inspected builds in
	// discovery order. Names are not deduplicated across builds.
	Secrets []string `json:"secrets"`
	// ExposingBuild is the build number that first yielded secrets, zero if none.
	ExposingBuild int           `json:"exposingBuild,omitempty"`
	PullRequests  int           `json:"pullRequests"`
	Candidates    int           `json:"candidates"`
	Results       []BuildResult `json:"results,omitempty"`
}
