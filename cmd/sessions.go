package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ctxburn/internal/cli"
	"github.com/theirongolddev/ctxburn/internal/pipeline"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions by context window usage",
	RunE:  runSessions,
}

var sessionsLimit int

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Number of sessions to show (0 for all)")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(_ *cobra.Command, _ []string) error {
	sessions, err := filteredSessions()
	if err != nil {
		return err
	}

	reports := pipeline.BuildReports(sessions, reportOptions())
	pipeline.SortReports(reports)
	total := len(reports)
	sum := pipeline.Summarize(reports)

	if sessionsLimit > 0 && len(reports) > sessionsLimit {
		reports = reports[:sessionsLimit]
	}

	if done, err := printStructured(reports); done {
		return err
	}

	if total == 0 {
		fmt.Println("\n  No sessions found.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("SESSIONS  by context usage (showing %d of %d)", len(reports), total)))
	fmt.Println()

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		id := cli.Truncate(r.SessionID, 18)
		if r.ParentID != "" {
			id = cli.Truncate(r.SessionID, 12) + " (sub)"
		}
		rows = append(rows, []string{
			id,
			r.AgenticTool,
			cli.FormatNumber(int64(r.Tasks)),
			cli.FormatTokens(r.Cumulative),
			cli.FormatOptionalTokens(r.Limit),
			cli.RenderContextBar(r.Percent, r.Level, 10) + " " + cli.FormatPercent(r.Percent),
			cli.RenderLevel(r.Level),
			cli.FormatNumber(int64(r.Compactions)),
		})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Session", "Tool", "Turns", "Context", "Limit", "Used", "Level", "Compact"},
		Rows:    rows,
	}))

	fmt.Printf("\n  %d sessions · %d warn · %d critical · %d without a known limit\n",
		sum.Sessions, sum.Warn, sum.Critical, sum.Unknown)
	return nil
}
