package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/ctxburn/internal/config"
	"github.com/theirongolddev/ctxburn/internal/source"
	"github.com/theirongolddev/ctxburn/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg := loadConfig()

	files, _ := source.ScanDir(flagDataDir)
	if len(files) > 0 {
		fmt.Printf("\n  Found %d session files in %s (%d tools)\n\n",
			len(files), flagDataDir, source.CountTools(files))
	}

	vals := tui.NewSetupValues(cfg)
	if err := tui.NewSetupForm(len(files), &vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup canceled, nothing saved.")
			return nil
		}
		return fmt.Errorf("setup form: %w", err)
	}

	if err := vals.Apply(&cfg); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `ctxburn setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
