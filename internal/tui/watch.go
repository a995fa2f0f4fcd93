// Package tui provides the interactive Bubble Tea views for ctxburn.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/ctxburn/internal/cli"
	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/pipeline"
	"github.com/theirongolddev/ctxburn/internal/tui/components"
	"github.com/theirongolddev/ctxburn/internal/tui/theme"
)

const (
	minTerminalWidth = 60
	maxContentWidth  = 100
	maxChanges       = 8
	minRefresh       = 2 * time.Second
)

// LoadFunc returns the current set of sessions.
type LoadFunc func() ([]model.Session, error)

// WatchConfig configures the watch view.
type WatchConfig struct {
	SessionID string
	Interval  time.Duration
	Report    pipeline.ReportOptions
	Load      LoadFunc
}

// ReportMsg is sent when a refresh of the watched session completes.
type ReportMsg struct {
	Report   model.ContextReport
	Found    bool
	Err      error
	LoadTime time.Duration
}

type tickMsg struct{}

// change is one observed movement of the cumulative figure.
type change struct {
	At        time.Time
	Delta     int64
	Compacted bool
}

// Watch is the Bubble Tea model for `ctxburn watch`.
type Watch struct {
	cfg WatchConfig

	report      model.ContextReport
	loaded      bool
	err         error
	loadTime    time.Duration
	lastRefresh time.Time
	refreshing  bool
	changes     []change

	width   int
	height  int
	spinner spinner.Model
}

// NewWatch creates a watch model. Intervals below two seconds are raised.
func NewWatch(cfg WatchConfig) Watch {
	if cfg.Interval < minRefresh {
		cfg.Interval = minRefresh
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	return Watch{
		cfg:        cfg,
		spinner:    sp,
		refreshing: true,
	}
}

// Init implements tea.Model.
func (w Watch) Init() tea.Cmd {
	return tea.Batch(refreshCmd(w.cfg), w.spinner.Tick, tickCmd())
}

// Update implements tea.Model.
func (w Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		return w, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return w, tea.Quit
		case "r":
			if !w.refreshing {
				w.refreshing = true
				return w, refreshCmd(w.cfg)
			}
		}
		return w, nil

	case spinner.TickMsg:
		if !w.loaded {
			var cmd tea.Cmd
			w.spinner, cmd = w.spinner.Update(msg)
			return w, cmd
		}
		return w, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if !w.refreshing && time.Since(w.lastRefresh) >= w.cfg.Interval {
			w.refreshing = true
			cmds = append(cmds, refreshCmd(w.cfg))
		}
		return w, tea.Batch(cmds...)

	case ReportMsg:
		w.refreshing = false
		w.lastRefresh = time.Now()
		w.loadTime = msg.LoadTime
		w.applyReport(msg)
		return w, nil
	}

	return w, nil
}

// applyReport folds a refresh result into the model. Failed refreshes keep
// the last good report on screen.
func (w *Watch) applyReport(msg ReportMsg) {
	switch {
	case msg.Err != nil:
		w.err = msg.Err
		return
	case !msg.Found:
		w.err = fmt.Errorf("session %q not found", w.cfg.SessionID)
		return
	}
	w.err = nil

	if w.loaded {
		prev := w.report
		compacted := msg.Report.LastCompactionIndex != prev.LastCompactionIndex && msg.Report.LastCompactionIndex >= 0
		if delta := msg.Report.Cumulative - prev.Cumulative; delta != 0 || compacted {
			w.changes = append(w.changes, change{At: w.lastRefresh, Delta: delta, Compacted: compacted})
			if len(w.changes) > maxChanges {
				w.changes = w.changes[len(w.changes)-maxChanges:]
			}
		}
	}

	w.report = msg.Report
	w.loaded = true
}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// refreshCmd reloads sessions and rebuilds the watched session's report.
func refreshCmd(cfg WatchConfig) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		sessions, err := cfg.Load()
		if err != nil {
			return ReportMsg{Err: err, LoadTime: time.Since(start)}
		}
		s, ok := pipeline.FindSession(sessions, cfg.SessionID)
		if !ok {
			return ReportMsg{LoadTime: time.Since(start)}
		}
		return ReportMsg{
			Report:   pipeline.BuildReport(s, cfg.Report),
			Found:    true,
			LoadTime: time.Since(start),
		}
	}
}

// View implements tea.Model.
func (w Watch) View() string {
	if w.width == 0 {
		return ""
	}
	if w.width < minTerminalWidth {
		return fmt.Sprintf("\n  Terminal too narrow (%d cols, need %d)\n", w.width, minTerminalWidth)
	}
	if !w.loaded {
		return w.viewLoading()
	}
	return w.viewMain()
}

func (w Watch) contentWidth() int {
	if w.width > maxContentWidth {
		return maxContentWidth
	}
	return w.width
}

func (w Watch) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)
	logoStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ ctxburn"))
	b.WriteString(mutedStyle.Render(" · " + w.cfg.SessionID))
	b.WriteString("\n\n")
	if w.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Render(w.err.Error()))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("retrying every " + w.cfg.Interval.String()))
	} else {
		b.WriteString(w.spinner.View())
		b.WriteString(mutedStyle.Render(" Loading sessions..."))
	}

	return lipgloss.Place(w.width, w.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (w Watch) viewMain() string {
	t := theme.Active
	cw := w.contentWidth()
	r := w.report

	titleStyle := lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	header := titleStyle.Render("◈ ctxburn") + mutedStyle.Render(" · "+r.SessionID+" · "+r.AgenticTool)
	if r.Title != "" {
		header += "\n" + mutedStyle.Render(cli.Truncate(r.Title, cw-2))
	}

	limitNote := "unknown"
	if r.Limit != nil {
		limitNote = "from " + string(r.LimitSource)
	}
	compactNote := "none"
	if r.Compactions > 0 {
		compactNote = fmt.Sprintf("last at turn %d", r.LastCompactionIndex+1)
	}
	stats := components.StatRow([]components.Stat{
		{Label: "Context", Value: cli.FormatTokens(r.Cumulative), Note: "since last reset"},
		{Label: "Last turn", Value: cli.FormatOptionalTokens(r.Occupancy), Note: "prompt size"},
		{Label: "Limit", Value: cli.FormatOptionalTokens(r.Limit), Note: limitNote},
		{Label: "Compactions", Value: fmt.Sprintf("%d", r.Compactions), Note: compactNote},
	}, cw)

	barW := components.InnerWidth(cw) - 8 - 1 - 1 - 4
	usage := components.ContextBar("Usage", r.Percent, r.Level, 8, barW) + "\n" +
		mutedStyle.Render(fmt.Sprintf("%d turns · %d messages · level ", r.Tasks, r.Messages)) +
		lipgloss.NewStyle().Foreground(t.Level(r.Level)).Bold(true).Render(string(r.Level))
	usagePanel := components.Panel("Context window", usage, cw, r.Level == model.LevelCritical)

	changesPanel := components.Panel("Recent changes", w.renderChanges(), cw, false)

	body := lipgloss.JoinVertical(lipgloss.Left, header, "", stats, usagePanel, changesPanel)
	if w.err != nil {
		body += "\n" + lipgloss.NewStyle().Foreground(t.Orange).Render("refresh failed: "+w.err.Error())
	}

	right := "updated " + ago(time.Since(w.lastRefresh)) + fmt.Sprintf(" · load %.1fs", w.loadTime.Seconds())
	if w.refreshing {
		right = "refreshing..."
	}
	status := components.RenderStatusBar(w.width, "[r]efresh  [q]uit", right)

	contentH := w.height - lipgloss.Height(status)
	if contentH < 1 {
		contentH = 1
	}
	content := lipgloss.Place(w.width, contentH, lipgloss.Center, lipgloss.Top, body)
	return lipgloss.JoinVertical(lipgloss.Left, content, status)
}

func (w Watch) renderChanges() string {
	t := theme.Active
	if len(w.changes) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextDim).Render("no changes since watch started")
	}

	var lines []string
	for i := len(w.changes) - 1; i >= 0; i-- {
		c := w.changes[i]
		when := lipgloss.NewStyle().Foreground(t.TextDim).Render(c.At.Format("15:04:05"))
		var what string
		switch {
		case c.Compacted:
			what = lipgloss.NewStyle().Foreground(t.Yellow).Render(fmt.Sprintf("compacted (%s)", signedTokens(c.Delta)))
		case c.Delta > 0:
			what = lipgloss.NewStyle().Foreground(t.Blue).Render(signedTokens(c.Delta))
		default:
			what = lipgloss.NewStyle().Foreground(t.Green).Render(signedTokens(c.Delta))
		}
		lines = append(lines, when+"  "+what)
	}
	return strings.Join(lines, "\n")
}

func signedTokens(n int64) string {
	if n > 0 {
		return "+" + cli.FormatTokens(n)
	}
	return cli.FormatTokens(n)
}

func ago(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
}
