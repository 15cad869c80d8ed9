package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/spiffcs/forkaudit/internal/constants"
)

// Options configures an analysis run. It is built once and passed by value
// to every component, which never modifies it.
type Options struct {
	// Limit is how many forked, unprivileged PRs to collect.
	Limit int
	// MaxPages bounds the PR list pages requested.
	MaxPages int
	// IgnoreUsers are PR authors excluded from collection.
	IgnoreUsers []string
	// OpenOnly restricts collection to open PRs.
	OpenOnly bool
	// Exhaustive inspects every candidate even after secrets were found.
	Exhaustive bool
	// Grace is the merge timing tolerance used by the correlator.
	Grace time.Duration
	// CIHost is the host CI build URLs point at.
	CIHost string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Limit:    constants.DefaultPRLimit,
		MaxPages: constants.MaxPRPages,
		Grace:    constants.DefaultMergeGrace,
		CIHost:   constants.DefaultCIHost,
	}
}

// normalize fills unset fields with their defaults.
func (o Options) normalize() Options {
	if o.Limit <= 0 {
		o.Limit = constants.DefaultPRLimit
	}
	if o.MaxPages <= 0 {
		o.MaxPages = constants.MaxPRPages
	}
	if o.Grace < 0 {
		o.Grace = 0
	}
	if o.CIHost == "" {
		o.CIHost = constants.DefaultCIHost
	}
	return o
}

func (o Options) ignores(user string) bool {
	if user == "" {
		return false
	}
	for _, u := range o.IgnoreUsers {
		if strings.EqualFold(strings.TrimSpace(u), user) {
			return true
		}
	}
	return false
}

// Project identifies a repository on the code host and its CI project.
type Project struct {
	Owner string
	Repo  string
}

// String returns the project in owner/repo form.
func (p Project) String() string {
	return fmt.Sprintf("%s/%s", p.Owner, p.Repo)
}
