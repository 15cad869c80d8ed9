// Package model contains domain types for the fork exposure audit.
// These types are independent of any external GitHub or CircleCI library.
package model

import "time"

// AuthorAssociation is GitHub's classification of a PR author's relationship
// to the repository.
// See: https://docs.github.com/en/graphql/reference/enums#commentauthorassociation
type AuthorAssociation string

const (
	AssociationOwner                AuthorAssociation = "OWNER"
	AssociationMember               AuthorAssociation = "MEMBER"
	AssociationCollaborator         AuthorAssociation = "COLLABORATOR"
	AssociationContributor          AuthorAssociation = "CONTRIBUTOR"
	AssociationFirstTimeContributor AuthorAssociation = "FIRST_TIME_CONTRIBUTOR"
	AssociationFirstTimer           AuthorAssociation = "FIRST_TIMER"
	AssociationMannequin            AuthorAssociation = "MANNEQUIN"
	AssociationNone                 AuthorAssociation = "NONE"
)

// IsPrivileged reports whether the association publicly marks the author as
// someone trusted by the repository (owner or org member).
func (a AuthorAssociation) IsPrivileged() bool {
	return a == AssociationOwner || a == AssociationMember
}

// PullRequest is a pull request as seen by the fork collector.
type PullRequest struct {
	Number            int               `json:"number"`
	HeadSHA           string            `json:"headSha"`
	Author            string            `json:"author,omitempty"`
	AuthorAssociation AuthorAssociation `json:"authorAssociation"`
	State             string            `json:"state"`
	IsFromFork        bool              `json:"isFromFork"`
	HeadRepo          string            `json:"headRepo,omitempty"` // full name of the head repository
	CreatedAt         time.Time         `json:"createdAt"`
	MergedAt          *time.Time        `json:"mergedAt,omitempty"`
}

// IsOpen reports whether the PR is currently open.
func (p PullRequest) IsOpen() bool {
	return p.State == "open"
}

// StatusState is the state of a commit status.
type StatusState string

const (
	StatusPending StatusState = "pending"
	StatusSuccess StatusState = "success"
	StatusFailure StatusState = "failure"
	StatusError   StatusState = "error"
)

// CommitStatus is a single status reported against a commit.
type CommitStatus struct {
	TargetURL string      `json:"targetUrl"`
	State     StatusState `json:"state"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
}
