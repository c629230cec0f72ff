package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingSubgoals = errors.New(`reply has no "subgoals" array`)
	ErrEmptySubgoals   = errors.New("reply contains no usable sub-goals")
)

// ParseSubgoals extracts the sub-goal list from a model reply of the form
// {"subgoals": [...]}. A surrounding markdown code fence is tolerated.
// Entries are trimmed, blanks dropped and the list capped at
// MaxProviderSubgoals.
func ParseSubgoals(content string) ([]string, error) {
	body := stripCodeFence(strings.TrimSpace(content))

	var reply struct {
		Subgoals json.RawMessage `json:"subgoals"`
	}
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return nil, fmt.Errorf("reply is not a JSON object: %w", err)
	}

	var raw []json.RawMessage
	if len(reply.Subgoals) == 0 || json.Unmarshal(reply.Subgoals, &raw) != nil || raw == nil {
		return nil, ErrMissingSubgoals
	}

	items := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			items = append(items, s)
			continue
		}
		// numbers and booleans are kept verbatim, null and objects skipped
		switch t := strings.TrimSpace(string(r)); {
		case t == "null", strings.HasPrefix(t, "{"), strings.HasPrefix(t, "["):
		default:
			items = append(items, t)
		}
	}

	cleaned := Normalize(items, MaxProviderSubgoals)
	if len(cleaned) == 0 {
		return nil, ErrEmptySubgoals
	}
	return cleaned, nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop a language tag such as ```json
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
