package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spiffcs/forkaudit/internal/model"
)

// MarkdownFormatter formats output as Markdown
type MarkdownFormatter struct {
	CIHost string
	// Now is used for the generated timestamp; zero means time.Now.
	Now time.Time
}

// Format outputs verdicts as a Markdown report
func (f *MarkdownFormatter) Format(verdicts []*model.Verdict, w io.Writer) error {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}

	fmt.Fprintln(w, "# Forked PR Secret Exposure Report")
	fmt.Fprintf(w, "\n*Generated: %s*\n\n", now.Format("2006-01-02 15:04"))

	if len(verdicts) == 0 {
		fmt.Fprintln(w, "No projects checked.")
		return nil
	}

	for _, v := range verdicts {
		f.formatVerdict(v, w)
	}
	return nil
}

func (f *MarkdownFormatter) formatVerdict(v *model.Verdict, w io.Writer) {
	fmt.Fprintf(w, "## %s %s\n\n", outcomeEmoji(v.Outcome), v.Project)
	fmt.Fprintf(w, "%s\n\n", v.Outcome.Message(v.Project))

	fmt.Fprintf(w, "- **Outcome:** `%s`\n", v.Outcome)
	fmt.Fprintf(w, "- **Forked PRs:** %d\n", v.PullRequests)
	fmt.Fprintf(w, "- **Candidate builds:** %d\n", v.Candidates)
	if v.ExposingBuild > 0 {
		fmt.Fprintf(w, "- **First exposing build:** [%d](%s)\n", v.ExposingBuild, buildURL(f.CIHost, v.Project, v.ExposingBuild))
	}
	if len(v.Secrets) > 0 {
		fmt.Fprintf(w, "- **Secrets:** %s\n", formatNames(v.Secrets))
	}

	if len(v.Results) > 0 {
		fmt.Fprintln(w, "\n| Build | PR | User | Result |")
		fmt.Fprintln(w, "|-------|----|------|--------|")
		for _, r := range v.Results {
			fmt.Fprintf(w, "| [%d](%s) | #%d | %s | %s |\n",
				r.Build.BuildNumber,
				buildURL(f.CIHost, v.Project, r.Build.BuildNumber),
				r.Build.PRNumber,
				escapeCell(r.Build.PRUser),
				escapeCell(resultText(r, formatNames)),
			)
		}
	}

	fmt.Fprintln(w)
}

func outcomeEmoji(o model.Outcome) string {
	switch o {
	case model.OutcomeExposedOnLatest, model.OutcomeExposedOnOlderBuild:
		return "🔴"
	case model.OutcomeNoExposureEvidence, model.OutcomeNoCorrelatedBuilds:
		return "🟢"
	default:
		return "⚪"
	}
}

func formatNames(names []string) string {
	formatted := make([]string, len(names))
	for i, n := range names {
		formatted[i] = "`" + n + "`"
	}
	return strings.Join(formatted, " ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// resultText describes a build result, rendering secret names with join.
func resultText(r model.BuildResult, join func([]string) string) string {
	switch {
	case r.Failed():
		return "skipped: " + r.Failure
	case len(r.Secrets) == 0:
		return "no secrets"
	default:
		return join(r.Secrets)
	}
}
