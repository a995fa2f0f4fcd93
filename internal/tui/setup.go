package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/theirongolddev/ctxburn/internal/cli"
	"github.com/theirongolddev/ctxburn/internal/config"
	"github.com/theirongolddev/ctxburn/internal/tui/theme"
	"github.com/theirongolddev/ctxburn/internal/usage"
)

// SetupValues holds the answers collected by the setup form. Thresholds are
// kept as strings because huh inputs bind to strings.
type SetupValues struct {
	DataDir         string
	DefaultTool     string
	WarnPercent     string
	CriticalPercent string
	Theme           string
}

// NewSetupValues pre-fills the form from an existing config.
func NewSetupValues(cfg config.Config) SetupValues {
	return SetupValues{
		DataDir:         config.GetDataDir(cfg),
		DefaultTool:     cfg.General.DefaultTool,
		WarnPercent:     strconv.FormatFloat(cfg.Context.WarnPercent, 'f', -1, 64),
		CriticalPercent: strconv.FormatFloat(cfg.Context.CriticalPercent, 'f', -1, 64),
		Theme:           cfg.Appearance.Theme,
	}
}

// NewSetupForm builds the first-run form bound to vals.
func NewSetupForm(sessionCount int, vals *SetupValues) *huh.Form {
	toolOpts := []huh.Option[string]{huh.NewOption("All tools", "")}
	for _, t := range usage.KnownTools {
		toolOpts = append(toolOpts, huh.NewOption(string(t), string(t)))
	}

	intro := "No session exports found yet."
	if sessionCount > 0 {
		intro = fmt.Sprintf("Found %s session files.", cli.FormatNumber(int64(sessionCount)))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to ctxburn").
				Description(intro+"\nctxburn tracks how full each session's context window is."),
			huh.NewInput().
				Title("Session export directory").
				Description("JSONL exports, one directory per tool.").
				Value(&vals.DataDir).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("directory is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Default tool filter").
				Options(toolOpts...).
				Value(&vals.DefaultTool),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Warn at (% of context window)").
				Value(&vals.WarnPercent).
				Validate(validatePercent),
			huh.NewInput().
				Title("Critical at (% of context window)").
				Value(&vals.CriticalPercent).
				Validate(validatePercent),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(huh.NewOptions(theme.Names()...)...).
				Value(&vals.Theme),
		),
	).WithTheme(huh.ThemeCharm())
}

func validatePercent(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("enter a number")
	}
	if v <= 0 || v > 1000 {
		return fmt.Errorf("must be between 0 and 1000")
	}
	return nil
}

// Apply writes the collected answers into cfg.
func (v SetupValues) Apply(cfg *config.Config) error {
	warn, err := strconv.ParseFloat(strings.TrimSpace(v.WarnPercent), 64)
	if err != nil {
		return fmt.Errorf("parsing warn percent: %w", err)
	}
	crit, err := strconv.ParseFloat(strings.TrimSpace(v.CriticalPercent), 64)
	if err != nil {
		return fmt.Errorf("parsing critical percent: %w", err)
	}
	if crit < warn {
		return fmt.Errorf("critical percent %.0f is below warn percent %.0f", crit, warn)
	}

	cfg.General.DataDir = strings.TrimSpace(v.DataDir)
	cfg.General.DefaultTool = v.DefaultTool
	cfg.Context.WarnPercent = warn
	cfg.Context.CriticalPercent = crit
	if v.Theme != "" {
		cfg.Appearance.Theme = v.Theme
	}
	return nil
}
