package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPIDFileClaimAndRunning(t *testing.T) {
	pf := PIDFile{Path: filepath.Join(t.TempDir(), "run", "d.pid")}

	if _, err := pf.Running(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Running on empty dir = %v, want ErrNotRunning", err)
	}

	rt := Runtime{PID: os.Getpid(), Addr: "127.0.0.1:9999", StartedAt: time.Now(), DataDir: "/data"}
	if err := pf.Claim(rt); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	got, err := pf.Running()
	if err != nil {
		t.Fatalf("Running: %v", err)
	}
	if got.PID != rt.PID || got.Addr != rt.Addr || got.DataDir != "/data" {
		t.Errorf("Running = %+v", got)
	}

	// This process is alive, so a second claim must fail.
	if err := pf.Claim(Runtime{PID: os.Getpid()}); err == nil {
		t.Error("second Claim succeeded while holder is alive")
	}

	pf.Release()
	if _, err := os.Stat(pf.Path); !os.IsNotExist(err) {
		t.Errorf("pid file still present after Release: %v", err)
	}
}

func TestPIDFileStaleIsCleaned(t *testing.T) {
	pf := PIDFile{Path: filepath.Join(t.TempDir(), "d.pid")}
	// PIDs this large are never handed out on Linux or macOS.
	if err := os.WriteFile(pf.Path, []byte("99999999\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := pf.Running(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Running with stale pid = %v, want ErrNotRunning", err)
	}
	if _, err := os.Stat(pf.Path); !os.IsNotExist(err) {
		t.Error("stale pid file was not removed")
	}
	if err := pf.Claim(Runtime{PID: os.Getpid()}); err != nil {
		t.Errorf("Claim over stale file: %v", err)
	}
}

func TestPIDFileInvalidContent(t *testing.T) {
	pf := PIDFile{Path: filepath.Join(t.TempDir(), "d.pid")}
	if err := os.WriteFile(pf.Path, []byte("not-a-pid"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := pf.Running(); err == nil || errors.Is(err, ErrNotRunning) {
		t.Errorf("Running with garbage = %v, want a parse error", err)
	}
}
