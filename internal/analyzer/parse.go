package analyzer

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/spiffcs/forkaudit/internal/constants"
)

var errEmptyOutput = errors.New("job output has no message")

// secretLine matches a variable listed with its value redacted.
var secretLine = regexp.MustCompile(`^([^ =]+)=` + regexp.QuoteMeta(constants.RedactedValue))

// outputEntry is one element of a downloaded step output document.
type outputEntry struct {
	Message *string `json:"message"`
}

// ParseJobOutput decodes a downloaded step output document and returns the
// message of its first entry with escaped line breaks expanded. It fails
// when the document does not decode or carries no message.
func ParseJobOutput(raw []byte) (string, error) {
	var entries []outputEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return "", errEmptyOutput
	}
	if len(entries) == 0 || entries[0].Message == nil || *entries[0].Message == "" {
		return "", errEmptyOutput
	}

	message := strings.ReplaceAll(*entries[0].Message, `\n`, "\n")
	message = strings.ReplaceAll(message, `\r`, "")
	return message, nil
}

// ExtractSecretNames returns the names of the redacted variables listed at or
// after the marker line, in order of appearance and without duplicates.
// CIRCLE_JOB is never returned. The boolean is false when the marker line is
// absent; a marker on the very first line is accepted.
func ExtractSecretNames(message, marker string) ([]string, bool) {
	lines := strings.Split(message, "\n")

	start := -1
	for i, line := range lines {
		if strings.TrimRight(line, "\r") == marker {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	seen := make(map[string]bool)
	secrets := []string{}
	for _, line := range lines[start:] {
		m := secretLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		name := m[1]
		if name == constants.CircleJobVar || seen[name] {
			continue
		}
		seen[name] = true
		secrets = append(secrets, name)
	}
	return secrets, true
}
