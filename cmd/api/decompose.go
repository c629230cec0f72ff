package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"goalsplit-backend/internal/ai"
	"goalsplit-backend/internal/decompose"
)

var decomposeHeuristic bool

var decomposeCmd = &cobra.Command{
	Use:   "decompose <goal...>",
	Short: "Decompose a goal once and print the sub-goals",
	Long: `Run the provider chain for a single goal without touching the database.
Useful for checking provider credentials and prompt output.

Examples:
  api decompose "Learn Spanish, build a portfolio"
  api decompose --heuristic Найти работу`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecompose,
}

func init() {
	decomposeCmd.Flags().BoolVar(&decomposeHeuristic, "heuristic", false, "skip external providers")
}

func runDecompose(cmd *cobra.Command, args []string) error {
	goal := strings.TrimSpace(strings.Join(args, " "))
	if goal == "" {
		return errors.New("goal is empty")
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	orch := decompose.New(log, cfg.ProviderTimeout)
	if !decomposeHeuristic {
		orch = decompose.FromConfig(cfg, log)
	}

	res := orch.Decompose(cmd.Context(), goal)
	printResult(cmd.OutOrStdout(), goal, res)
	return nil
}

func printResult(w io.Writer, goal string, res ai.Result) {
	fmt.Fprintf(w, "%s %s\n\n", color.New(color.Bold).Sprint("Goal:"), goal)
	for i, s := range res.Subgoals {
		fmt.Fprintf(w, "  %s %s\n", color.CyanString("%2d.", i+1), s)
	}

	source := color.GreenString(res.Meta.Source)
	if res.Meta.Source == ai.HeuristicName {
		source = color.YellowString(res.Meta.Source)
	}
	fmt.Fprintf(w, "\n%s %s (%s)", color.New(color.Faint).Sprint("via"), source, res.Meta.Model)
	if res.Meta.Fallback > 0 {
		fmt.Fprintf(w, ", %s", color.RedString("%d provider(s) failed", res.Meta.Fallback))
	}
	fmt.Fprintln(w)
}
