// Package constants provides a centralized location for the defaults and
// well-known CI strings used throughout forkaudit.
package constants

import "time"

// Collection constants
const (
	// DefaultPRLimit is how many forked, unprivileged PRs are collected per project.
	DefaultPRLimit = 10

	// MaxPRPages bounds how many PR list pages are requested per project.
	MaxPRPages = 20

	// PRStateAll requests open and closed PRs from the list API.
	PRStateAll = "all"
)

// Correlation constants
const (
	// DefaultMergeGrace is the tolerance used when deciding whether a status
	// was created by a build that ran on merge rather than on PR creation.
	DefaultMergeGrace = 1 * time.Hour

	// DefaultCIHost is the host that CI build URLs point at.
	DefaultCIHost = "circleci.com"
)

// CircleCI API constants
const (
	// DefaultCircleCIURL is the base URL of the CircleCI v1.1 API.
	DefaultCircleCIURL = "https://circleci.com/api/v1.1"

	// CircleCITokenParam is the query parameter carrying the API token.
	CircleCITokenParam = "circle-token"
)

// Environment report constants
const (
	// PrepareEnvActionName is matched (case-insensitively) against action
	// names to find the current environment report step.
	PrepareEnvActionName = "preparing environment variables"

	// SpinUpEnvActionName is the legacy environment report step.
	SpinUpEnvActionName = "spin up environment"

	// EnvMarker precedes the injected variables in the legacy step output.
	EnvMarker = "Using environment variables from project settings and/or contexts"

	// EnvMarkerCurrent precedes the injected variables in the current step output.
	EnvMarkerCurrent = EnvMarker + ":"

	// RedactedValue is what CircleCI prints in place of a secret value.
	RedactedValue = "**REDACTED**"

	// CircleJobVar is a built-in variable that is always listed and is not a secret.
	CircleJobVar = "CIRCLE_JOB"
)

// Rate limiting constants
const (
	// RateLimitLowWatermark is the threshold below which rate limit
	// warnings are logged.
	RateLimitLowWatermark = 100
)

// TUI constants
const (
	// TUIEventBuffer is the capacity of the progress event channel.
	TUIEventBuffer = 100
)
