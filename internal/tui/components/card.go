// Package components provides reusable widgets for the ctxburn terminal views.
package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ctxburn/internal/tui/theme"
)

// Stat is one labeled figure in a stat row.
type Stat struct {
	Label string
	Value string
	Note  string
}

// LayoutRow distributes totalWidth into n widths that sum to exactly totalWidth.
// First items absorb the remainder from integer division.
func LayoutRow(totalWidth, n int) []int {
	if n <= 0 {
		return nil
	}
	base := totalWidth / n
	remainder := totalWidth % n
	widths := make([]int, n)
	for i := range widths {
		widths[i] = base
		if i < remainder {
			widths[i]++
		}
	}
	return widths
}

// StatCard renders a small bordered card with a label, a value and an
// optional note. outerWidth includes the border.
func StatCard(s Stat, outerWidth int) string {
	t := theme.Active

	contentWidth := outerWidth - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Width(contentWidth).
		Padding(0, 1)

	content := lipgloss.NewStyle().Foreground(t.TextMuted).Render(s.Label) + "\n" +
		lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true).Render(s.Value)
	if s.Note != "" {
		content += "\n" + lipgloss.NewStyle().Foreground(t.TextDim).Render(s.Note)
	}

	return cardStyle.Render(content)
}

// StatRow renders stat cards side by side, summing to exactly totalWidth.
// Shorter cards are padded to the tallest.
func StatRow(stats []Stat, totalWidth int) string {
	if len(stats) == 0 {
		return ""
	}

	widths := LayoutRow(totalWidth, len(stats))
	cards := make([]string, len(stats))
	maxH := 0
	for i, s := range stats {
		cards[i] = StatCard(s, widths[i])
		if h := lipgloss.Height(cards[i]); h > maxH {
			maxH = h
		}
	}
	for i := range cards {
		cards[i] = lipgloss.PlaceVertical(maxH, lipgloss.Top, cards[i])
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

// Panel renders a bordered panel with an optional title. An accented panel
// uses the focus border color.
func Panel(title, body string, outerWidth int, accent bool) string {
	t := theme.Active

	contentWidth := outerWidth - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	border := t.Border
	if accent {
		border = t.BorderAccent
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(contentWidth).
		Padding(0, 1)

	content := ""
	if title != "" {
		content = lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Render(title) + "\n"
	}
	return style.Render(content + body)
}

// InnerWidth returns the usable text width inside a Panel or StatCard of the
// given outer width.
func InnerWidth(outerWidth int) int {
	w := outerWidth - 4
	if w < 10 {
		w = 10
	}
	return w
}
