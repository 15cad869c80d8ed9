package analyzer

import (
	"errors"
	"fmt"
)

// ErrCollection marks a failure to list PRs or commit statuses. It is fatal to
// a run because without the listings nothing can be assessed.
var ErrCollection = errors.New("collection failed")

// Kind classifies why a candidate build could not be used as evidence.
type Kind int

const (
	KindUnknown Kind = iota
	// ActorMismatch means someone other than the PR author ran the build.
	ActorMismatch
	// NotPullRequestBuild means the build ran on a branch that is not a PR branch.
	NotPullRequestBuild
	// EnvironmentStepMissing means no step reports the injected environment.
	EnvironmentStepMissing
	// LogUrlMissing means the environment step has no stored output.
	LogUrlMissing
	// MarkerNotFound means the output never lists project variables.
	MarkerNotFound
	// EmptyLogOutput means the downloaded output has no message body.
	EmptyLogOutput
	// FetchFailed means the build document or its output could not be downloaded.
	FetchFailed
)

var kindNames = map[Kind]string{
	KindUnknown:            "Unknown",
	ActorMismatch:          "ActorMismatch",
	NotPullRequestBuild:    "NotPullRequestBuild",
	EnvironmentStepMissing: "EnvironmentStepMissing",
	LogUrlMissing:          "LogUrlMissing",
	MarkerNotFound:         "MarkerNotFound",
	EmptyLogOutput:         "EmptyLogOutput",
	FetchFailed:            "FetchFailed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// InspectError is returned when a candidate build cannot be inspected. It is
// recoverable: the aggregator records it and moves on to the next candidate.
type InspectError struct {
	Kind   Kind
	Build  int
	Detail string
	Err    error
}

func (e *InspectError) Error() string {
	msg := fmt.Sprintf("build %d: %s", e.Build, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InspectError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an inspect failure anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var ie *InspectError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return KindUnknown, false
}

func inspectFailure(kind Kind, build int, format string, args ...any) *InspectError {
	return &InspectError{
		Kind:   kind,
		Build:  build,
		Detail: fmt.Sprintf(format, args...),
	}
}

// IsRecoverable reports whether err only disqualifies a single candidate.
func IsRecoverable(err error) bool {
	var ie *InspectError
	return errors.As(err, &ie)
}
