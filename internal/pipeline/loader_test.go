package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/store"
)

func sessionIDs(sessions []model.Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

func seedDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeExport(t, dir, "codex/cx-1.jsonl",
		`{"type":"session","session":{"session_id":"cx-1","agentic_tool":"codex"}}`,
		`{"type":"task","task":{"task_id":"t1","usage":{"input_tokens":1500,"cached_input_tokens":1000,"output_tokens":10}}}`,
	)
	writeExport(t, dir, "claude-code/cc-1.jsonl",
		`{"type":"task","task":{"task_id":"t1","usage":{"input_tokens":5,"output_tokens":5}}}`,
		`garbage`,
	)
	writeExport(t, dir, "empty.jsonl")
	return dir
}

func TestLoad(t *testing.T) {
	dir := seedDataDir(t)

	var calls atomic.Int32
	result, err := Load(dir, func(current, total int) {
		calls.Add(1)
		if total != 3 || current < 1 || current > total {
			t.Errorf("progress(%d, %d)", current, total)
		}
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if result.TotalFiles != 3 || result.ParsedFiles != 3 || result.ParseErrors != 1 {
		t.Errorf("counts = %+v", result)
	}
	if got := sessionIDs(result.Sessions); len(got) != 2 || got[0] != "cc-1" || got[1] != "cx-1" {
		t.Errorf("sessions = %v, want [cc-1 cx-1]", got)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("progress called %d times, want 3", n)
	}
	for _, s := range result.Sessions {
		if s.ID == "cc-1" && s.AgenticTool != "claude-code" {
			t.Errorf("cc-1 tool = %q, want from directory", s.AgenticTool)
		}
	}
}

func TestLoad_MissingDir(t *testing.T) {
	result, err := Load(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if result.TotalFiles != 0 || len(result.Sessions) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestLoadWithCache(t *testing.T) {
	dir := seedDataDir(t)
	cache, err := store.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	first, err := LoadWithCache(dir, cache, nil)
	if err != nil {
		t.Fatalf("first LoadWithCache: %v", err)
	}
	if first.Reparsed != 3 || first.CacheHits != 0 {
		t.Errorf("first run: reparsed %d hits %d, want 3/0", first.Reparsed, first.CacheHits)
	}

	second, err := LoadWithCache(dir, cache, nil)
	if err != nil {
		t.Fatalf("second LoadWithCache: %v", err)
	}
	// The empty file is never cached, so it is reparsed every time.
	if second.CacheHits != 2 || second.Reparsed != 1 {
		t.Errorf("second run: hits %d reparsed %d, want 2/1", second.CacheHits, second.Reparsed)
	}
	if got := sessionIDs(second.Sessions); len(got) != 2 {
		t.Errorf("second run sessions = %v", got)
	}

	// Cached sessions must produce the same accounting as fresh parses.
	fresh := BuildReports(first.Sessions, ReportOptions{})
	cached := BuildReports(second.Sessions, ReportOptions{})
	byID := make(map[string]int64)
	for _, r := range fresh {
		byID[r.SessionID] = r.Cumulative
	}
	for _, r := range cached {
		if byID[r.SessionID] != r.Cumulative {
			t.Errorf("%s: cached cumulative %d, fresh %d", r.SessionID, r.Cumulative, byID[r.SessionID])
		}
	}

	// Modify one file and delete another.
	path := writeExport(t, dir, "codex/cx-1.jsonl",
		`{"type":"session","session":{"session_id":"cx-1","agentic_tool":"codex"}}`,
		`{"type":"task","task":{"task_id":"t1","usage":{"input_tokens":1500,"cached_input_tokens":1000,"output_tokens":10}}}`,
		`{"type":"task","task":{"task_id":"t2","usage":{"input_tokens":100,"output_tokens":10}}}`,
	)
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "claude-code", "cc-1.jsonl")); err != nil {
		t.Fatal(err)
	}

	third, err := LoadWithCache(dir, cache, nil)
	if err != nil {
		t.Fatalf("third LoadWithCache: %v", err)
	}
	if third.Removed != 1 {
		t.Errorf("Removed = %d, want 1", third.Removed)
	}
	if got := sessionIDs(third.Sessions); len(got) != 1 || got[0] != "cx-1" {
		t.Fatalf("third run sessions = %v, want [cx-1]", got)
	}
	if n := len(third.Sessions[0].Tasks); n != 2 {
		t.Errorf("cx-1 tasks = %d, want 2 after reparse", n)
	}
	if n, _ := cache.SessionCount(); n != 1 {
		t.Errorf("cached sessions = %d, want 1", n)
	}
}

func TestLoadWithCacheSharedSessionID(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "claude-code/s1.jsonl",
		`{"type":"task","task":{"task_id":"t1","usage":{"input_tokens":5,"cache_read_input_tokens":100}}}`,
	)
	writeExport(t, dir, "codex/s1.jsonl",
		`{"type":"task","task":{"task_id":"t1","usage":{"input_tokens":1500,"cached_input_tokens":1000}}}`,
	)

	fresh, err := Load(dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(fresh.Sessions) != 2 {
		t.Fatalf("Load sessions = %d, want 2", len(fresh.Sessions))
	}

	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	for run := 1; run <= 2; run++ {
		res, err := LoadWithCache(dir, cache, nil)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if len(res.Sessions) != 2 {
			t.Fatalf("run %d: sessions = %d, want 2", run, len(res.Sessions))
		}
		tools := map[string]bool{}
		for _, s := range res.Sessions {
			tools[s.AgenticTool] = true
		}
		if !tools["claude-code"] || !tools["codex"] {
			t.Errorf("run %d: tools = %v, want claude-code and codex", run, tools)
		}
	}
}

func TestLoadWithCacheReparsesMissingCachedSession(t *testing.T) {
	dir := seedDataDir(t)
	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = cache.Close() }()

	if _, err := LoadWithCache(dir, cache, nil); err != nil {
		t.Fatal(err)
	}
	// Tracker survives but the session rows do not.
	if err := cache.DeleteSession("cx-1"); err != nil {
		t.Fatal(err)
	}

	res, err := LoadWithCache(dir, cache, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := sessionIDs(res.Sessions); len(got) != 2 || got[0] != "cc-1" || got[1] != "cx-1" {
		t.Errorf("sessions = %v, want [cc-1 cx-1]", got)
	}
	if res.CacheHits != 1 || res.Reparsed != 2 {
		t.Errorf("hits %d reparsed %d, want 1/2", res.CacheHits, res.Reparsed)
	}
}
