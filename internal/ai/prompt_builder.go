package ai

import "strings"

// BuildUserPrompt formats the user message sent alongside the system prompt.
func BuildUserPrompt(goal string) string {
	var b strings.Builder

	b.WriteString("Decompose this goal into sub-goals:\n\n")
	b.WriteString("Goal: \"")
	b.WriteString(strings.TrimSpace(goal))
	b.WriteString("\"\n\n")
	b.WriteString("Remember: respond with JSON only.")

	return b.String()
}
