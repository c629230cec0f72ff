// Package ai holds the decomposition strategies: the offline heuristic and
// the chat-completion backends. Every strategy satisfies Provider.
package ai

import (
	"context"
	"fmt"
	"strings"
)

const (
	// MaxProviderSubgoals caps what an external model may return.
	MaxProviderSubgoals = 12
	// MaxHeuristicSubgoals caps the heuristic output.
	MaxHeuristicSubgoals = 8
)

type Provider interface {
	Name() string
	Decompose(ctx context.Context, goal string) (Result, error)
}

type Result struct {
	Subgoals []string `json:"subgoals"`
	Meta     Meta     `json:"meta"`
}

// Meta records which strategy produced a decomposition.
type Meta struct {
	Model    string `json:"model"`
	Source   string `json:"source"`
	Provider string `json:"provider,omitempty"`
	Note     string `json:"note,omitempty"`
	// Fallback is the number of providers that failed before this one.
	Fallback int `json:"fallback,omitempty"`
}

// ProviderError is returned by a single strategy. The orchestrator logs it
// and moves on; it never reaches an HTTP client.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func providerErr(provider, op string, err error) error {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// Normalize trims every item, drops blanks and truncates to max.
func Normalize(items []string, max int) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
