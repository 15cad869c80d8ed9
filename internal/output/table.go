package output

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/spiffcs/forkaudit/internal/model"
)

// ansiRegex matches ANSI escape sequences
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// TableFormatter formats output as a terminal table
type TableFormatter struct {
	CIHost string
}

// Column widths
const (
	colBuild  = 8
	colPR     = 7
	colUser   = 20
	colLag    = 6
	colResult = 50
)

// hyperlink creates a clickable terminal hyperlink using OSC 8
// Format: \033]8;;URL\033\\TEXT\033]8;;\033\\
func hyperlink(text, url string) string {
	// Only use hyperlinks if stdout is a terminal
	if color.NoColor || !term.IsTerminal(int(os.Stdout.Fd())) {
		return text
	}
	return fmt.Sprintf("\033]8;;%s\033\\%s\033]8;;\033\\", url, text)
}

// displayWidth returns the visible width of a string in terminal columns
func displayWidth(s string) int {
	return runewidth.StringWidth(ansiRegex.ReplaceAllString(s, ""))
}

// cell truncates plain text to width and pads it; color is applied after
// so escape codes never count toward the width.
func cell(text string, width int, paint func(a ...any) string) string {
	text = runewidth.Truncate(text, width, "...")
	pad := strings.Repeat(" ", max(0, width-displayWidth(text)))
	if paint != nil {
		text = paint(text)
	}
	return text + pad
}

// Format outputs one block per verdict: the summary line, then a row per
// inspected build.
func (f *TableFormatter) Format(verdicts []*model.Verdict, w io.Writer) error {
	if len(verdicts) == 0 {
		fmt.Fprintln(w, "No projects checked.")
		return nil
	}

	for i, v := range verdicts {
		if i > 0 {
			fmt.Fprintln(w)
		}
		f.formatVerdict(v, w)
	}

	printFooterSummary(verdicts, w)
	return nil
}

func (f *TableFormatter) formatVerdict(v *model.Verdict, w io.Writer) {
	fmt.Fprintln(w, colorOutcome(v.Outcome)(v.Outcome.Message(v.Project)))

	if len(v.Results) == 0 {
		return
	}

	fmt.Fprintf(w, "\n  %s  %s  %s  %s  %s\n",
		cell("Build", colBuild, nil),
		cell("PR", colPR, nil),
		cell("User", colUser, nil),
		cell("Lag", colLag, nil),
		"Result")
	fmt.Fprintln(w, "  "+strings.Repeat("-", colBuild+colPR+colUser+colLag+colResult+8))

	dim := color.New(color.Faint).SprintFunc()
	for _, r := range v.Results {
		num := fmt.Sprintf("%d", r.Build.BuildNumber)
		numCell := hyperlink(cell(num, colBuild, nil), buildURL(f.CIHost, v.Project, r.Build.BuildNumber))

		var paint func(a ...any) string
		switch {
		case r.Failed():
			paint = dim
		case len(r.Secrets) > 0:
			paint = color.New(color.FgRed, color.Bold).SprintFunc()
		}

		fmt.Fprintf(w, "  %s  %s  %s  %s  %s\n",
			numCell,
			cell(fmt.Sprintf("#%d", r.Build.PRNumber), colPR, nil),
			cell(r.Build.PRUser, colUser, nil),
			cell(buildLag(r.Build), colLag, nil),
			cell(resultText(r, joinPlain), colResult, paint),
		)
	}
}

func joinPlain(names []string) string {
	return strings.Join(names, ", ")
}

func colorOutcome(o model.Outcome) func(format string, a ...any) string {
	switch o {
	case model.OutcomeExposedOnLatest, model.OutcomeExposedOnOlderBuild:
		return color.New(color.FgRed, color.Bold).SprintfFunc()
	case model.OutcomeNoExposureEvidence, model.OutcomeNoCorrelatedBuilds:
		return color.New(color.FgGreen).SprintfFunc()
	default:
		return color.New(color.FgYellow).SprintfFunc()
	}
}

// buildLag is how long after the PR was opened its build reported a status.
func buildLag(b model.CandidateBuild) string {
	if b.StatusCreatedAt == nil || b.PRCreatedAt.IsZero() {
		return "-"
	}
	return FormatAge(b.StatusCreatedAt.Sub(b.PRCreatedAt))
}

// FormatAge formats a duration in the compact form "now", "5m", "2h", "3d",
// "2w" or "3mo".
func FormatAge(d time.Duration) string {
	if d < time.Minute {
		return "now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}
	if days < 30 {
		return fmt.Sprintf("%dw", days/7)
	}
	return fmt.Sprintf("%dmo", days/30)
}

// printFooterSummary prints a one line tally when several projects were checked.
func printFooterSummary(verdicts []*model.Verdict, w io.Writer) {
	if len(verdicts) < 2 {
		return
	}

	exposed := 0
	undetermined := 0
	for _, v := range verdicts {
		switch {
		case v.Outcome.Exposed():
			exposed++
		case v.Outcome == model.OutcomeNoForkedBuilds:
			undetermined++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 40))
	fmt.Fprintf(w, "%d projects checked: %s, %d undetermined\n",
		len(verdicts),
		color.New(color.FgRed).Sprintf("%d may be vulnerable", exposed),
		undetermined,
	)
}
