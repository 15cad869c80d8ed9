package model

import "time"

// CandidateBuild is a CI build number attributed to a forked PR through
// commit status correlation.
type CandidateBuild struct {
	BuildNumber     int        `json:"buildNumber"`
	PRNumber        int        `json:"prNumber"`
	PRUser          string     `json:"prUser,omitempty"`
	PRCreatedAt     time.Time  `json:"prCreatedAt"`
	PRMergedAt      *time.Time `json:"prMergedAt,omitempty"`
	StatusCreatedAt *time.Time `json:"statusCreatedAt,omitempty"`
}

// BuildDetail is the subset of a CI build document needed to locate the
// environment report of a build.
type BuildDetail struct {
	BuildNumber  int         `json:"buildNumber"`
	ActorLogin   string      `json:"actorLogin,omitempty"` // empty when the build has no recorded actor
	ActorIsHuman bool        `json:"actorIsHuman"`
	Branch       string      `json:"branch,omitempty"` // empty when unknown
	Steps        []BuildStep `json:"steps"`
}

// BuildStep is one step of a build; each step runs one or more actions.
type BuildStep struct {
	Actions []BuildAction `json:"actions"`
}

// BuildAction is a single action within a build step.
type BuildAction struct {
	Name      string `json:"name"`
	OutputURL string `json:"outputUrl,omitempty"` // empty when the action has no stored log
}
