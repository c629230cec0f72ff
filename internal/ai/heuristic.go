package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const (
	HeuristicName  = "heuristic"
	HeuristicModel = "local-heuristic-v0"
)

var clauseSeparators = regexp.MustCompile(`(?i),|;|\s+and\s+|\s+и\s+|&`)

type keywordBlock struct {
	triggers []string
	steps    []string
}

var keywordBlocks = []keywordBlock{
	{
		triggers: []string{"learn", "study", "изуч", "выуч"},
		steps: []string{
			"Clarify what “learned” means for this topic.",
			"Collect a short, focused list of learning resources.",
			"Create a weekly study schedule with realistic time blocks.",
			"Complete at least one small project using the new knowledge.",
		},
	},
	{
		triggers: []string{"build", "create", "make", "создать", "сделать"},
		steps: []string{
			"Write down the main requirements and constraints for the project.",
			"Break the solution into 3–7 concrete deliverables (start with an MVP).",
			"Sketch a simple outline or wireframe for the solution.",
			"Implement deliverables one by one, verifying each on completion.",
		},
	},
	{
		triggers: []string{"job", "career", "работ", "карьер"},
		steps: []string{
			"Define the target role and industry as specifically as possible.",
			"Update CV/portfolio to reflect that target role.",
			"Schedule weekly blocks for applications and networking.",
			"Gather feedback on applications and iterate.",
		},
	},
}

var genericSteps = []string{
	"Clarify what success looks like for this goal.",
	"List key constraints (time, skills, money, tools).",
	"Split the path into 3–5 milestones with approximate deadlines.",
	"Define the very first small step you can take today.",
}

// Heuristic decomposes goals offline with keyword rules and clause
// splitting. It never fails for non-empty input.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) Name() string { return HeuristicName }

func (h *Heuristic) Decompose(_ context.Context, goal string) (Result, error) {
	return Result{
		Subgoals: h.Breakdown(goal),
		Meta: Meta{
			Model:  HeuristicModel,
			Source: HeuristicName,
			Note:   "Generated offline by keyword matching and clause splitting.",
		},
	}, nil
}

// Breakdown returns at most MaxHeuristicSubgoals steps. Clause refinements
// are emitted only when the goal splits into two or more clauses, and they
// always survive the cap; matched keyword blocks share the remaining slots
// round-robin, in block order.
func (h *Heuristic) Breakdown(goal string) []string {
	lower := strings.ToLower(goal)

	var matched []keywordBlock
	for _, b := range keywordBlocks {
		for _, trig := range b.triggers {
			if strings.Contains(lower, trig) {
				matched = append(matched, b)
				break
			}
		}
	}

	clauses := Normalize(clauseSeparators.Split(goal, -1), 0)
	if len(clauses) < 2 {
		clauses = nil
	}

	if len(matched) == 0 && len(clauses) == 0 {
		return append([]string(nil), genericSteps...)
	}

	if room := MaxHeuristicSubgoals - len(matched); len(clauses) > room {
		clauses = clauses[:room]
	}

	// hand out the free slots one step per block per round
	counts := make([]int, len(matched))
	free := MaxHeuristicSubgoals - len(clauses)
	for progress := true; free > 0 && progress; {
		progress = false
		for i, b := range matched {
			if free == 0 {
				break
			}
			if counts[i] < len(b.steps) {
				counts[i]++
				free--
				progress = true
			}
		}
	}

	out := make([]string, 0, MaxHeuristicSubgoals)
	for i, b := range matched {
		out = append(out, b.steps[:counts[i]]...)
	}
	for i, c := range clauses {
		out = append(out, fmt.Sprintf("Refine sub-goal #%d: %s", i+1, c))
	}
	return out
}
