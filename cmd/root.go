// Package cmd implements the ctxburn CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ctxburn/internal/cli"
	"github.com/theirongolddev/ctxburn/internal/config"
	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/pipeline"
	"github.com/theirongolddev/ctxburn/internal/store"
)

var (
	flagDataDir string
	flagTool    string
	flagNoCache bool
	flagQuiet   bool
	flagFormat  = formatTable
)

var rootCmd = &cobra.Command{
	Use:   "ctxburn",
	Short: "Context window accounting for agentic coding sessions",
	Long:  "Track how full each coding-agent session's context window is, across compactions and tools.",
	RunE:  runSessions,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cfg := loadConfig()

	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", config.GetDataDir(cfg), "Session export directory")
	rootCmd.PersistentFlags().StringVarP(&flagTool, "tool", "t", cfg.General.DefaultTool, "Filter to agentic tool (claude-code, codex, gemini, opencode)")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Skip SQLite cache, reparse everything")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().VarP(&flagFormat, "format", "f", "Output format (table, json, yaml)")
}

// loadConfig reads the config file, warning on stderr and using defaults when
// it cannot be parsed.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "  Warning: %v (using defaults)\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

func reportOptions() pipeline.ReportOptions {
	return pipeline.ReportOptionsFromConfig(loadConfig().Context)
}

// loadData is the shared data loading path used by all commands.
// Uses SQLite cache when available for fast subsequent runs.
func loadData() (*pipeline.LoadResult, error) {
	return loadDataWith(!flagQuiet)
}

func loadDataWith(verbose bool) (*pipeline.LoadResult, error) {
	if verbose {
		fmt.Fprintf(os.Stderr, "  Scanning sessions...\n")
	}

	var progressFn pipeline.ProgressFunc
	if verbose {
		progressFn = func(current, total int) {
			if current%100 == 0 || current == total {
				fmt.Fprintf(os.Stderr, "\r  Parsing %s", cli.RenderProgressBar(current, total, 30))
			}
		}
	}

	if !flagNoCache {
		cache, err := store.Open(pipeline.CachePath())
		if err != nil {
			if verbose {
				fmt.Fprintf(os.Stderr, "  Cache unavailable, doing full parse\n")
			}
		} else {
			defer cache.Close()

			cr, err := pipeline.LoadWithCache(flagDataDir, cache, progressFn)
			if err != nil {
				if verbose {
					fmt.Fprintf(os.Stderr, "\n  Cache error, falling back to full parse\n")
				}
			} else {
				if verbose && cr.TotalFiles > 0 {
					if cr.Reparsed == 0 {
						fmt.Fprintf(os.Stderr, "\r  Loaded %s sessions from cache (%d tools)    \n",
							cli.FormatNumber(int64(len(cr.Sessions))),
							cr.ToolCount,
						)
					} else {
						fmt.Fprintf(os.Stderr, "\r  %s cached + %d reparsed (%d tools)    \n",
							cli.FormatNumber(int64(cr.CacheHits)),
							cr.Reparsed,
							cr.ToolCount,
						)
					}
				}
				return &cr.LoadResult, nil
			}
		}
	}

	result, err := pipeline.Load(flagDataDir, progressFn)
	if err != nil {
		return nil, err
	}

	if verbose && result.TotalFiles > 0 {
		fmt.Fprintf(os.Stderr, "\r  Parsed %s session files across %d tools    \n",
			cli.FormatNumber(int64(result.ParsedFiles)),
			result.ToolCount,
		)
		if result.ParseErrors > 0 || result.FileErrors > 0 {
			fmt.Fprintf(os.Stderr, "  Skipped %d malformed lines, %d unreadable files\n",
				result.ParseErrors, result.FileErrors)
		}
	}

	return result, nil
}

// filteredSessions loads sessions and applies the --tool filter.
func filteredSessions() ([]model.Session, error) {
	result, err := loadData()
	if err != nil {
		return nil, err
	}
	return pipeline.FilterByTool(result.Sessions, flagTool), nil
}
