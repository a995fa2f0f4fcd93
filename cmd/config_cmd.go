package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ctxburn/internal/cli"
	"github.com/theirongolddev/ctxburn/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if done, err := printStructured(cfg); done {
		return err
	}

	fmt.Printf("  Config file: %s\n", config.ConfigPath())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Data directory: %s\n", config.GetDataDir(cfg))
	if cfg.General.DefaultTool != "" {
		fmt.Printf("    Default tool:   %s\n", cfg.General.DefaultTool)
	} else {
		fmt.Println("    Default tool:   all")
	}
	fmt.Println()

	fmt.Println("  [Context]")
	fmt.Printf("    Warn at:      %.0f%%\n", cfg.Context.WarnPercent)
	fmt.Printf("    Critical at:  %.0f%%\n", cfg.Context.CriticalPercent)
	if cfg.Context.DefaultLimit > 0 {
		fmt.Printf("    Default limit: %s tokens\n", cli.FormatNumber(cfg.Context.DefaultLimit))
	} else {
		fmt.Println("    Default limit: none (unknown models show no percentage)")
	}
	if len(cfg.Context.Limits) > 0 {
		names := make([]string, 0, len(cfg.Context.Limits))
		for name := range cfg.Context.Limits {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("    Limit overrides:")
		for _, name := range names {
			fmt.Printf("      %-28s %s\n", name, cli.FormatNumber(cfg.Context.Limits[name]))
		}
	}
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:       %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Interval:      %ds\n", cfg.Daemon.IntervalSec)
	fmt.Printf("    Events buffer: %d\n", cfg.Daemon.EventsBuffer)
	fmt.Printf("    Rate limit:    %.0f req/s per client\n", cfg.Daemon.RateLimitPerSec)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `ctxburn setup` to reconfigure.")
	return nil
}
