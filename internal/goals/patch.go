package goals

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

var deadlineLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// ParseSubgoalPatch decodes a PATCH body. A key that is absent leaves the
// field alone; "deadline": null clears the deadline.
func ParseSubgoalPatch(body map[string]json.RawMessage) (SubgoalPatch, error) {
	var p SubgoalPatch

	if raw, ok := body["title"]; ok {
		var title string
		if err := json.Unmarshal(raw, &title); err != nil {
			return p, invalid("title must be a string")
		}
		p.Title = &title
	}

	if raw, ok := body["deadline"]; ok {
		p.SetDeadline = true
		if !isNull(raw) {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return p, invalid("deadline must be a string or null")
			}
			d, err := parseDeadline(s)
			if err != nil {
				return p, err
			}
			p.Deadline = d
		}
	}

	if raw, ok := body["is_completed"]; ok {
		var done bool
		if err := json.Unmarshal(raw, &done); err != nil {
			return p, invalid("is_completed must be a boolean")
		}
		p.IsCompleted = &done
	}

	if p.Empty() {
		return p, invalid("nothing to update")
	}
	return p, nil
}

// parseDeadline accepts RFC 3339, a datetime-local value or a bare date.
// Values without a zone are read as UTC. An empty string clears.
func parseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalid("invalid deadline %q", s)
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
