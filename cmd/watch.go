package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/pipeline"
	"github.com/theirongolddev/ctxburn/internal/tui"
	"github.com/theirongolddev/ctxburn/internal/tui/theme"
)

var flagWatchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Live view of one session's context window",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVarP(&flagWatchInterval, "interval", "i", 5*time.Second, "Refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, args []string) error {
	cfg := loadConfig()
	theme.SetActive(cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes
	// Without this, lipgloss may default to Ascii profile (no colors)
	lipgloss.SetColorProfile(termenv.TrueColor)

	w := tui.NewWatch(tui.WatchConfig{
		SessionID: args[0],
		Interval:  flagWatchInterval,
		Report:    pipeline.ReportOptionsFromConfig(cfg.Context),
		Load: func() ([]model.Session, error) {
			result, err := loadDataWith(false)
			if err != nil {
				return nil, err
			}
			return pipeline.FilterByTool(result.Sessions, flagTool), nil
		},
	})

	p := tea.NewProgram(w, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
