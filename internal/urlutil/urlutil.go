// Package urlutil provides URL parsing utilities.
package urlutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BuildURLMatcher recognises CI build URLs of the form
// https://<host>/gh/<org>/<repo>/<build-number>.
type BuildURLMatcher struct {
	host    string
	pattern *regexp.Regexp
}

// NewBuildURLMatcher creates a matcher for build URLs served from host.
func NewBuildURLMatcher(host string) *BuildURLMatcher {
	host = strings.ToLower(host)
	return &BuildURLMatcher{
		host:    host,
		pattern: regexp.MustCompile(`^https://` + regexp.QuoteMeta(host) + `/gh/[^/]+/[^/]+/(\d+)`),
	}
}

// Host returns the CI host the matcher recognises.
func (m *BuildURLMatcher) Host() string {
	return m.host
}

// BuildNumber extracts the build number from a status target URL.
// Matching is case-insensitive. It returns false when the URL does not point
// at a build on the matcher's host or the number is not a positive integer.
func (m *BuildURLMatcher) BuildNumber(targetURL string) (int, bool) {
	lower := strings.ToLower(targetURL)
	if !strings.Contains(lower, "//"+m.host+"/") {
		return 0, false
	}

	matches := m.pattern.FindStringSubmatch(lower)
	if matches == nil {
		return 0, false
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil || num <= 0 {
		return 0, false
	}
	return num, true
}

// SplitProject splits an "org/repo" project reference.
func SplitProject(project string) (org, repo string, err error) {
	parts := strings.SplitN(project, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", fmt.Errorf("project must be in the format org/repo: %q", project)
	}
	return parts[0], parts[1], nil
}
