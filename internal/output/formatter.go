// Package output renders analysis verdicts for terminals and reports.
package output

import (
	"fmt"
	"io"

	"github.com/spiffcs/forkaudit/internal/model"
)

// Format represents the output format
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported output formats.
var Formats = []Format{FormatTable, FormatJSON, FormatMarkdown}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or markdown)", s)
}

// Formatter defines the interface for output formatters
type Formatter interface {
	Format(verdicts []*model.Verdict, w io.Writer) error
}

// NewFormatter creates a formatter for the specified format. ciHost is used
// to link build numbers back to the CI system.
func NewFormatter(format Format, ciHost string) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	case FormatMarkdown:
		return &MarkdownFormatter{CIHost: ciHost}
	default:
		return &TableFormatter{CIHost: ciHost}
	}
}

func buildURL(ciHost, project string, build int) string {
	return fmt.Sprintf("https://%s/gh/%s/%d", ciHost, project, build)
}
