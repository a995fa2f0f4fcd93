package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ctxburn/internal/cli"
	"github.com/theirongolddev/ctxburn/internal/pipeline"
)

var contextCmd = &cobra.Command{
	Use:   "context <session-id>",
	Short: "Show the context window report for one session",
	Long:  "Show the context window report for one session. A unique ID prefix is accepted.",
	Args:  cobra.ExactArgs(1),
	RunE:  runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
}

func runContext(_ *cobra.Command, args []string) error {
	sessions, err := filteredSessions()
	if err != nil {
		return err
	}

	s, ok := pipeline.FindSession(sessions, args[0])
	if !ok {
		if n := len(pipeline.FilterBySession(sessions, args[0])); n > 1 {
			return fmt.Errorf("session prefix %q is ambiguous (%d matches)", args[0], n)
		}
		return fmt.Errorf("session %q not found", args[0])
	}

	report := pipeline.BuildReport(s, reportOptions())
	if done, err := printStructured(report); done {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("CONTEXT  " + cli.Truncate(report.SessionID, 40)))
	fmt.Println()
	fmt.Print(cli.RenderReport(report, 30))
	fmt.Println()
	return nil
}
