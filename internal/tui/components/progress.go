package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/tui/theme"
)

// ContextBar renders a labeled fill bar for a context percentage (in percent
// units) colored by level. Values past 100% draw a full bar but keep the real
// number in the label. A nil percentage renders an empty track and "?".
func ContextBar(label string, pct *float64, level model.Level, labelW, barWidth int) string {
	t := theme.Active
	if barWidth < 4 {
		barWidth = 4
	}

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(t.Level(level)).Background(t.Surface).Bold(true)

	head := labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) + spaceStyle.Render(" ")

	if pct == nil {
		track := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).
			Render(strings.Repeat("░", barWidth))
		return head + track + spaceStyle.Render(" ") + pctStyle.Render("   ?")
	}

	frac := *pct / 100
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	bar := progress.New(
		progress.WithSolidFill(string(t.Level(level))),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	return head + bar.ViewAs(frac) + spaceStyle.Render(" ") + pctStyle.Render(fmt.Sprintf("%3.0f%%", *pct))
}

// CompactContextBar renders a status-bar-sized indicator without a label
// column.
func CompactContextBar(pct *float64, level model.Level, width int) string {
	return ContextBar("", pct, level, 0, width-6)
}
