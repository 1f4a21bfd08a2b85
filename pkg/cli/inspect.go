package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/search"
	"github.com/docbot-dev/docbot/pkg/state"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List documentation snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := repoRoot(cmd)
			if err != nil {
				return err
			}
			snaps, err := state.New(repo).ListSnapshots()
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snapshots yet. Run `docbot generate` first.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Run", "Age", "Scopes", "Files", "Symbols", "Commit"})
			for _, snap := range snaps {
				age := "?"
				if at := models.RunIDTime(snap.RunID); !at.IsZero() {
					age = humanize.Time(at)
				}
				commit := snap.Commit
				if len(commit) > 8 {
					commit = commit[:8]
				}
				t.AppendRow(table.Row{
					snap.RunID, age, snap.ScopeCount, snap.FileCount,
					snap.Stats.Symbols, commit,
				})
			}
			t.Render()
			return nil
		},
	}
}

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [from] [to]",
		Short: "Compare two snapshots (defaults to the two newest)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repoRoot(cmd)
			if err != nil {
				return err
			}
			store := state.New(repo)

			var fromID, toID string
			switch len(args) {
			case 2:
				fromID, toID = args[0], args[1]
			case 0:
				snaps, err := store.ListSnapshots()
				if err != nil {
					return err
				}
				if len(snaps) < 2 {
					return fmt.Errorf("need at least two snapshots to diff, have %d", len(snaps))
				}
				fromID, toID = snaps[1].RunID, snaps[0].RunID
			default:
				return fmt.Errorf("diff takes zero or two run ids")
			}

			report, err := store.ComputeDiff(fromID, toID)
			if err != nil {
				return err
			}
			printDiff(cmd, report)
			return nil
		},
	}
}

func printDiff(cmd *cobra.Command, report *models.DiffReport) {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen).FprintfFunc()
	red := color.New(color.FgRed).FprintfFunc()
	yellow := color.New(color.FgYellow).FprintfFunc()

	fmt.Fprintf(out, "%s -> %s\n\n", report.FromRun, report.ToRun)

	for _, id := range report.Added {
		green(out, "+ scope %s\n", id)
	}
	for _, id := range report.Removed {
		red(out, "- scope %s\n", id)
	}
	for _, mod := range report.Modified {
		yellow(out, "~ scope %s\n", mod.ScopeID)
		if diff, ok := report.SummaryDiffs[mod.ScopeID]; ok {
			fmt.Fprintln(out, indent(diff, "    "))
		}
	}
	if len(report.Added)+len(report.Removed)+len(report.Modified) == 0 {
		fmt.Fprintln(out, "No scope changes.")
	}

	fmt.Fprintf(out, "\nStats: symbols %+d, env vars %+d, entrypoints %+d\n",
		report.StatsDelta.Symbols, report.StatsDelta.EnvVars, report.StatsDelta.Entrypoints)
	if report.GraphChanged {
		yellow(out, "Scope graph changed.\n")
	}
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the latest documentation index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := repoRoot(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			idx, err := state.New(repo).LoadIndex()
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			hits := search.Build(idx).Search(query, limit)
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}
			for _, hit := range hits {
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-24s %s\n",
					strconv.FormatFloat(hit.Score, 'f', 3, 64), hit.ScopeID, hit.Summary)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "maximum results")
	return cmd
}

func indent(text, prefix string) string {
	return prefix + strings.ReplaceAll(text, "\n", "\n"+prefix)
}
