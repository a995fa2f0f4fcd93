package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/ctxburn/internal/cli"
	"github.com/theirongolddev/ctxburn/internal/daemon"
	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/pipeline"
)

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonRateLimit    float64
	flagDaemonVerbose      bool
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run a background context monitor with HTTP/SSE endpoints",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	dc := loadConfig().Daemon

	pf := daemonCmd.PersistentFlags()
	pf.StringVar(&flagDaemonAddr, "addr", dc.Addr, "HTTP listen address")
	pf.DurationVar(&flagDaemonInterval, "interval", time.Duration(dc.IntervalSec)*time.Second, "Polling interval")
	pf.StringVar(&flagDaemonPIDFile, "pid-file", filepath.Join(pipeline.CacheDir(), "ctxburnd.pid"), "PID file path")
	pf.StringVar(&flagDaemonLogFile, "log-file", filepath.Join(pipeline.CacheDir(), "ctxburnd.log"), "Log file path for detached mode")
	pf.IntVar(&flagDaemonEventsBuffer, "events-buffer", dc.EventsBuffer, "Max in-memory events retained")
	pf.Float64Var(&flagDaemonRateLimit, "rate-limit", dc.RateLimitPerSec, "Requests per second per client (0 disables)")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVarP(&flagDaemonVerbose, "verbose", "v", false, "Log every context update")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd, daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func pidFile() daemon.PIDFile {
	return daemon.PIDFile{Path: flagDaemonPIDFile}
}

func runDaemon(_ *cobra.Command, _ []string) error {
	switch {
	case flagDaemonDetach && flagDaemonChild:
		return errors.New("invalid daemon launch mode")
	case flagDaemonDetach:
		return startDaemonDetached()
	default:
		return runDaemonForeground()
	}
}

// startDaemonDetached re-executes the binary with --child, its output going
// to the log file.
func startDaemonDetached() error {
	if rt, err := pidFile().Running(); err == nil {
		return fmt.Errorf("daemon already running (pid %d)", rt.PID)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}
	//nolint:gosec // daemon log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, append(withoutDetach(os.Args[1:]), "--child")...) //nolint:gosec // re-exec of the current binary
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()

	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  Sessions: http://%s/v1/sessions\n", flagDaemonAddr)
	fmt.Printf("  Events:   http://%s/v1/stream\n", flagDaemonAddr)
	fmt.Printf("  Log:      %s\n", flagDaemonLogFile)
	return nil
}

func runDaemonForeground() error {
	pf := pidFile()
	if err := pf.Claim(daemon.Runtime{
		PID:       os.Getpid(),
		Addr:      flagDaemonAddr,
		StartedAt: time.Now(),
		DataDir:   flagDataDir,
	}); err != nil {
		return err
	}
	defer pf.Release()

	level := slog.LevelInfo
	if flagDaemonVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	svc, err := daemon.New(daemon.Config{
		DataDir:      flagDataDir,
		ToolFilter:   flagTool,
		UseCache:     !flagNoCache,
		Interval:     flagDaemonInterval,
		Addr:         flagDaemonAddr,
		EventsBuffer: flagDaemonEventsBuffer,
		RateLimit:    flagDaemonRateLimit,
		Report:       reportOptions(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	if !flagDaemonChild {
		fmt.Printf("  ctxburn daemon on http://%s, polling %s every %s\n", flagDaemonAddr, flagDataDir, flagDaemonInterval)
		fmt.Printf("  Stop with Ctrl-C or: ctxburn daemon stop --pid-file %s\n", flagDaemonPIDFile)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	rt, err := pidFile().Running()
	if err != nil {
		fmt.Printf("  Daemon: %v\n", err)
		return nil
	}

	addr := flagDaemonAddr
	if rt.Addr != "" {
		addr = rt.Addr
	}

	client := &http.Client{Timeout: 2 * time.Second}
	var st daemon.Status
	if err := getJSON(client, "http://"+addr+"/v1/status", &st); err != nil {
		fmt.Printf("  Daemon PID: %d\n  API %s: %v\n", rt.PID, addr, err)
		return nil
	}

	if done, err := printStructured(st); done {
		return err
	}

	fmt.Printf("  Daemon PID: %d\n", rt.PID)
	fmt.Printf("  Address:    http://%s\n", addr)
	if !rt.StartedAt.IsZero() {
		fmt.Printf("  Up since:   %s\n", rt.StartedAt.Local().Format(time.RFC3339))
	}
	if st.LastPollAt.IsZero() {
		fmt.Println("  Last poll:  pending")
	} else {
		fmt.Printf("  Last poll:  %s (%d polls)\n", st.LastPollAt.Local().Format(time.RFC3339), st.PollCount)
	}
	fmt.Printf("  Sessions:   %d (%d warn, %d critical, %d unknown limit)\n",
		st.Summary.Sessions, st.Summary.Warn, st.Summary.Critical, st.Summary.Unknown)
	fmt.Printf("  Events:     %d buffered, %d subscribers\n", st.EventCount, st.SubscriberCount)
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}

	if st.Summary.Warn+st.Summary.Critical == 0 {
		return nil
	}
	var reports []model.ContextReport
	if err := getJSON(client, "http://"+addr+"/v1/sessions", &reports); err != nil {
		return nil
	}
	fmt.Println()
	for _, r := range reports {
		if r.Level == model.LevelWarn || r.Level == model.LevelCritical {
			fmt.Printf("  %s  %s %s\n", cli.RenderLevel(r.Level), cli.Truncate(r.SessionID, 24), cli.FormatPercent(r.Percent))
		}
	}
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	pid, err := pidFile().Stop(8 * time.Second)
	if err != nil {
		return err
	}
	fmt.Printf("  Stopped daemon (pid %d)\n", pid)
	return nil
}

func getJSON(client *http.Client, url string, into any) error {
	resp, err := client.Get(url) //nolint:noctx // short status probe
	if err != nil {
		return fmt.Errorf("unreachable (%w)", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("malformed response (%w)", err)
	}
	return nil
}

func withoutDetach(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--detach" || strings.HasPrefix(a, "--detach=") {
			continue
		}
		out = append(out, a)
	}
	return out
}
