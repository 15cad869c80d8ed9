package output

import (
	"encoding/json"
	"io"

	"github.com/spiffcs/forkaudit/internal/model"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Pretty bool
}

// JSONOutput wraps the verdicts with a summary for JSON output
type JSONOutput struct {
	Exposed  int              `json:"exposed"`
	Projects []*model.Verdict `json:"projects"`
}

// Format outputs verdicts as a single JSON document
func (f *JSONFormatter) Format(verdicts []*model.Verdict, w io.Writer) error {
	out := JSONOutput{Projects: verdicts}
	if out.Projects == nil {
		out.Projects = []*model.Verdict{}
	}
	for _, v := range verdicts {
		if v.Outcome.Exposed() {
			out.Exposed++
		}
	}

	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(out)
}
