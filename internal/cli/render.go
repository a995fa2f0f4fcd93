package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ctxburn/internal/model"
)

// Theme colors (Flexoki Dark)
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorRed       = lipgloss.Color("#D14D41")
	ColorBlue      = lipgloss.Color("#4385BE")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText).
			Align(lipgloss.Center)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	labelStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	valueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	tokenStyle = lipgloss.NewStyle().
			Foreground(ColorBlue)

	dimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)
)

// LevelColor returns the color used for a context level.
func LevelColor(l model.Level) lipgloss.Color {
	switch l {
	case model.LevelOK:
		return ColorGreen
	case model.LevelWarn:
		return ColorOrange
	case model.LevelCritical:
		return ColorRed
	default:
		return ColorTextMuted
	}
}

// RenderLevel renders a level name in its color.
func RenderLevel(l model.Level) string {
	return lipgloss.NewStyle().Foreground(LevelColor(l)).Bold(l == model.LevelCritical).Render(string(l))
}

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Widths  []int // optional column widths, auto-calculated if nil
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(60).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

// RenderTable renders a bordered table with headers and rows. The first
// column is left-aligned, the rest right-aligned. A row of {"---"} draws a
// separator. Cell widths are measured with lipgloss so pre-styled cells line
// up.
func RenderTable(t Table) string {
	if len(t.Rows) == 0 && len(t.Headers) == 0 {
		return ""
	}

	numCols := len(t.Headers)
	if numCols == 0 {
		numCols = len(t.Rows[0])
	}

	widths := make([]int, numCols)
	if t.Widths != nil {
		copy(widths, t.Widths)
	} else {
		measure := func(i int, cell string) {
			if w := lipgloss.Width(cell); i < numCols && w > widths[i] {
				widths[i] = w
			}
		}
		for i, h := range t.Headers {
			measure(i, h)
		}
		for _, row := range t.Rows {
			for i, cell := range row {
				measure(i, cell)
			}
		}
	}

	rule := func(left, mid, right string) string {
		var b strings.Builder
		b.WriteString(left)
		for i, w := range widths {
			b.WriteString(strings.Repeat("─", w+2))
			if i < numCols-1 {
				b.WriteString(mid)
			}
		}
		b.WriteString(right)
		return dimStyle.Render(b.String()) + "\n"
	}
	sep := dimStyle.Render("│")

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + headerStyle.Render(t.Title) + "\n")
	}

	b.WriteString(rule("╭", "┬", "╮"))

	if len(t.Headers) > 0 {
		b.WriteString(sep)
		for i, h := range t.Headers {
			b.WriteString(headerStyle.Render(" " + pad(h, widths[i], false) + " "))
			if i < numCols-1 {
				b.WriteString(sep)
			}
		}
		b.WriteString(sep + "\n")
		b.WriteString(rule("├", "┼", "┤"))
	}

	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == "---" {
			b.WriteString(rule("├", "┼", "┤"))
			continue
		}
		b.WriteString(sep)
		for i := 0; i < numCols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(valueStyle.Render(" " + pad(cell, widths[i], i > 0) + " "))
			if i < numCols-1 {
				b.WriteString(sep)
			}
		}
		b.WriteString(sep + "\n")
	}

	b.WriteString(rule("╰", "┴", "╯"))
	return b.String()
}

func pad(s string, width int, right bool) string {
	gap := width - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

// RenderContextBar renders a fill bar for a context percentage, colored by
// level. Values above 100% are drawn full. Unknown percentages render an
// empty dim track.
func RenderContextBar(pct *float64, level model.Level, width int) string {
	if width <= 0 {
		return ""
	}
	if pct == nil {
		return dimStyle.Render(strings.Repeat("░", width))
	}

	filled := int(*pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	fill := lipgloss.NewStyle().Foreground(LevelColor(level))
	return fill.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", width-filled))
}

// RenderReport renders a detailed single-session context panel.
func RenderReport(r model.ContextReport, barWidth int) string {
	var b strings.Builder

	line := func(label, value string) {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-14s", label)), value)
	}

	line("Session", valueStyle.Render(r.SessionID))
	if r.Title != "" {
		line("Title", valueStyle.Render(r.Title))
	}
	if r.ParentID != "" {
		line("Parent", valueStyle.Render(r.ParentID))
	}
	line("Tool", valueStyle.Render(r.AgenticTool))
	line("Turns", valueStyle.Render(FormatNumber(int64(r.Tasks))))
	if !r.LastActivity.IsZero() {
		line("Last active", valueStyle.Render(r.LastActivity.Local().Format("2006-01-02 15:04")))
	}
	b.WriteString("\n")

	line("Context", tokenStyle.Render(FormatNumber(r.Cumulative))+labelStyle.Render(" tokens since last reset"))
	if r.Occupancy != nil {
		line("Last turn", tokenStyle.Render(FormatNumber(*r.Occupancy))+labelStyle.Render(" tokens in prompt"))
	}
	if r.Limit != nil {
		line("Limit", valueStyle.Render(FormatNumber(*r.Limit))+labelStyle.Render(" ("+string(r.LimitSource)+")"))
	} else {
		line("Limit", labelStyle.Render("unknown"))
	}
	line("Usage", RenderContextBar(r.Percent, r.Level, barWidth)+" "+FormatPercent(r.Percent)+" "+RenderLevel(r.Level))

	if r.Compactions > 0 {
		line("Compactions", valueStyle.Render(fmt.Sprintf("%d (last at turn %d)", r.Compactions, r.LastCompactionIndex+1)))
	} else {
		line("Compactions", labelStyle.Render("none"))
	}

	return b.String()
}

// RenderProgressBar renders a simple text progress bar.
func RenderProgressBar(current, total int, width int) string {
	if total <= 0 {
		return ""
	}

	pct := float64(current) / float64(total)
	if pct > 1 {
		pct = 1
	}

	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %s/%s",
		labelStyle.Render(bar),
		FormatNumber(int64(current)),
		FormatNumber(int64(total)),
	)
}
