package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrNotRunning is returned when no live daemon owns the pid file.
var ErrNotRunning = errors.New("daemon is not running")

// Runtime describes a running daemon. It is stored beside the pid file so
// status and stop can find the API address.
type Runtime struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DataDir   string    `json:"data_dir"`
}

// PIDFile manages a daemon pid file and its runtime sidecar (<path>.json).
type PIDFile struct {
	Path string
}

func (p PIDFile) runtimePath() string {
	return p.Path + ".json"
}

// Claim records rt as the running daemon. It fails if another live process
// already holds the file; stale files are replaced.
func (p PIDFile) Claim(rt Runtime) error {
	if pid, err := p.pid(); err == nil && processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.WriteFile(p.Path, []byte(strconv.Itoa(rt.PID)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	data, err := json.MarshalIndent(rt, "", "  ")
	if err != nil {
		return err
	}
	// The sidecar is informational; a failed write leaves status on defaults.
	_ = os.WriteFile(p.runtimePath(), append(data, '\n'), 0o600)
	return nil
}

// Release removes the pid file and its sidecar.
func (p PIDFile) Release() {
	_ = os.Remove(p.Path)
	_ = os.Remove(p.runtimePath())
}

// Running returns the live daemon's runtime. A stale file (dead pid) is
// cleaned up and reported as ErrNotRunning. Addr and StartedAt are zero when
// the sidecar is missing.
func (p PIDFile) Running() (Runtime, error) {
	pid, err := p.pid()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Runtime{}, ErrNotRunning
		}
		return Runtime{}, err
	}
	if !processAlive(pid) {
		p.Release()
		return Runtime{PID: pid}, fmt.Errorf("%w (stale pid %d)", ErrNotRunning, pid)
	}

	rt := Runtime{PID: pid}
	//nolint:gosec // daemon state path is configured by the local user
	if data, err := os.ReadFile(p.runtimePath()); err == nil {
		_ = json.Unmarshal(data, &rt)
		rt.PID = pid
	}
	return rt, nil
}

// Stop sends SIGTERM to the running daemon and waits up to timeout for it to
// exit.
func (p PIDFile) Stop(timeout time.Duration) (int, error) {
	rt, err := p.Running()
	if err != nil {
		return 0, err
	}

	proc, err := os.FindProcess(rt.PID)
	if err != nil {
		return rt.PID, fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return rt.PID, fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(rt.PID) {
			p.Release()
			return rt.PID, nil
		}
		time.Sleep(150 * time.Millisecond)
	}
	return rt.PID, fmt.Errorf("daemon (pid %d) did not exit in time", rt.PID)
}

func (p PIDFile) pid() (int, error) {
	//nolint:gosec // daemon pid path is configured by the local user
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", p.Path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
