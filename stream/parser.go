package stream

import (
	"encoding/json"
	"strings"

	docsearch "github.com/haowjy/docsearch-go"
)

// DataPrefix marks a line carrying an event payload.
const DataPrefix = "data: "

// maxReportedLine bounds how much of a bad line is kept in errors and logs.
const maxReportedLine = 256

// ParseLine parses one stream line.
//
// Line handling:
//   - Lines not starting with "data: " (blank lines, comments, other
//     SSE fields): returns nil, nil
//   - "data: " with an empty payload: returns nil, nil
//   - "data: <json>": returns the decoded event; unknown types are
//     returned as-is and ignored by the consumer
//   - "data: <invalid json>": returns a *docsearch.MalformedEventError
func ParseLine(line string) (*docsearch.StreamEvent, error) {
	if !strings.HasPrefix(line, DataPrefix) {
		return nil, nil
	}

	payload := strings.TrimSpace(line[len(DataPrefix):])
	if payload == "" {
		return nil, nil
	}

	var event docsearch.StreamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, &docsearch.MalformedEventError{Line: truncate(line), Err: err}
	}
	return &event, nil
}

func truncate(s string) string {
	if len(s) <= maxReportedLine {
		return s
	}
	return s[:maxReportedLine] + "…"
}
