package dispatcher

import (
	"regexp"
	"strings"
)

// keyValueLine matches a line introducing a new field: everything before the
// first ':' or full-width '：' is the key, everything after (on that line) is
// the start of the value. Unlike a strict key=value grammar, this tolerates
// model output that wraps a value across several following lines.
var keyValueLine = regexp.MustCompile(`^([^:：]+)[:：]\s?(.*)$`)

// ParsedResponse is the structured form of a model's free-text reply: one
// field per detected "Key: value" line, in the order they appeared.
type ParsedResponse struct {
	Fields map[string]string
	Order  []string
}

// ParseModelResponse splits a model's raw text reply into labeled fields. It
// walks line by line: a line matching "key: value" starts a new field, and
// every line until the next such match is appended (newline-preserved) to
// the current field's value, so a translation spanning multiple lines or
// containing blank lines round-trips intact.
func ParseModelResponse(raw string) ParsedResponse {
	result := ParsedResponse{Fields: make(map[string]string)}

	var currentKey string
	var currentValueLines []string
	hasCurrent := false

	flush := func() {
		if !hasCurrent {
			return
		}
		value := strings.TrimSpace(strings.Join(currentValueLines, "\n"))
		if _, exists := result.Fields[currentKey]; !exists {
			result.Order = append(result.Order, currentKey)
		}
		result.Fields[currentKey] = value
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := keyValueLine.FindStringSubmatch(line); m != nil {
			flush()
			currentKey = strings.TrimSpace(m[1])
			currentValueLines = []string{m[2]}
			hasCurrent = true
			continue
		}
		if hasCurrent {
			currentValueLines = append(currentValueLines, line)
		}
	}
	flush()

	return result
}
