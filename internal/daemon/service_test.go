package daemon

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/pipeline"
)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func int64p(v int64) *int64 { return &v }

func codexSession(id string, tasks ...string) model.Session {
	s := model.Session{ID: id, AgenticTool: "codex"}
	for i, u := range tasks {
		s.Tasks = append(s.Tasks, model.Task{
			ID:                 id + "-t" + string(rune('0'+i)),
			Usage:              json.RawMessage(u),
			ContextWindowLimit: int64p(10000),
		})
	}
	return s
}

func TestDiffReports(t *testing.T) {
	at := time.Now()
	prev := map[string]model.ContextReport{
		"a": {SessionID: "a", Cumulative: 100, LastCompactionIndex: -1},
		"b": {SessionID: "b", Cumulative: 500, LastCompactionIndex: -1},
		"c": {SessionID: "c", Cumulative: 50, LastCompactionIndex: -1},
	}
	curr := map[string]model.ContextReport{
		"a": {SessionID: "a", Cumulative: 100, LastCompactionIndex: -1},
		"b": {SessionID: "b", Cumulative: 120, LastCompactionIndex: 3},
		"c": {SessionID: "c", Cumulative: 80, LastCompactionIndex: -1},
		"d": {SessionID: "d", Cumulative: 10, LastCompactionIndex: -1},
	}

	events := diffReports(prev, curr, at)

	type got struct {
		typ   string
		id    string
		delta int64
	}
	var list []got
	for _, ev := range events {
		list = append(list, got{ev.Type, ev.SessionID, ev.Delta})
	}
	want := []got{
		{EventContextUpdate, "b", -380},
		{EventCompaction, "b", 0},
		{EventContextUpdate, "c", 30},
		{EventContextUpdate, "d", 10},
	}
	if len(list) != len(want) {
		t.Fatalf("events = %+v, want %+v", list, want)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, list[i], want[i])
		}
	}
}

func TestPublishEventRingBuffer(t *testing.T) {
	s := newTestService(t, Config{
		DataDir:      ".",
		Interval:     10 * time.Second,
		EventsBuffer: 2,
	})

	s.publishEvent(Event{Type: EventSnapshot})
	s.publishEvent(Event{Type: EventContextUpdate})
	s.publishEvent(Event{Type: EventCompaction})

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.events) != 2 {
		t.Fatalf("events len = %d, want 2", len(s.events))
	}
	if s.events[0].ID != 2 || s.events[1].ID != 3 {
		t.Fatalf("events ring contains IDs [%d, %d], want [2, 3]", s.events[0].ID, s.events[1].ID)
	}
}

func TestPollOnce(t *testing.T) {
	s := newTestService(t, Config{
		Report: pipeline.ReportOptions{WarnAt: 80, CriticalAt: 95},
	})

	sessions := []model.Session{
		codexSession("s-1", `{"input_tokens":1500,"cached_input_tokens":1000,"output_tokens":100}`),
	}
	var loadErr error
	s.loadFn = func() ([]model.Session, error) { return sessions, loadErr }

	s.pollOnce()
	s.mu.RLock()
	first := append([]Event(nil), s.events...)
	rep := s.reports["s-1"]
	s.mu.RUnlock()

	if len(first) != 1 || first[0].Type != EventSnapshot || first[0].Snapshot.Sessions != 1 {
		t.Fatalf("first poll events = %+v, want one snapshot", first)
	}
	if rep.Cumulative != 1600 || rep.Level != model.LevelOK {
		t.Fatalf("report = %+v", rep)
	}

	// Unchanged data: no new events, memo hit.
	s.pollOnce()
	if n := s.snapshotStatus().EventCount; n != 1 {
		t.Fatalf("event count after idle poll = %d, want 1", n)
	}

	// A new turn pushes the session into warn territory.
	sessions = []model.Session{
		codexSession("s-1",
			`{"input_tokens":1500,"cached_input_tokens":1000,"output_tokens":100}`,
			`{"input_tokens":8000,"cached_input_tokens":1500,"output_tokens":500}`,
		),
	}
	s.pollOnce()

	s.mu.RLock()
	last := s.events[len(s.events)-1]
	s.mu.RUnlock()
	if last.Type != EventContextUpdate || last.SessionID != "s-1" {
		t.Fatalf("last event = %+v, want context_update for s-1", last)
	}
	if last.Delta != 7000 || last.Report.Level != model.LevelWarn {
		t.Errorf("delta %d level %s, want 7000 warn", last.Delta, last.Report.Level)
	}

	// Load failure is recorded, state is kept.
	loadErr = errors.New("disk gone")
	s.pollOnce()
	st := s.snapshotStatus()
	if st.LastError != "disk gone" || st.PollCount != 4 || st.Summary.Warn != 1 {
		t.Errorf("status after error = %+v", st)
	}
}

func TestHandlers(t *testing.T) {
	s := newTestService(t, Config{DataDir: "/data"})
	s.loadFn = func() ([]model.Session, error) {
		return []model.Session{
			codexSession("low", `{"input_tokens":100,"output_tokens":100}`),
			codexSession("high", `{"input_tokens":5000,"output_tokens":4000}`),
		}, nil
	}
	s.pollOnce()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	get := func(path string, into any) int {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		if into != nil {
			if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
				t.Fatalf("decode %s: %v", path, err)
			}
		}
		return resp.StatusCode
	}

	if code := get("/healthz", nil); code != http.StatusOK {
		t.Errorf("/healthz = %d", code)
	}

	var st Status
	if code := get("/v1/status", &st); code != http.StatusOK || st.Summary.Sessions != 2 || st.DataDir != "/data" {
		t.Errorf("/v1/status = %d %+v", code, st)
	}

	var list []model.ContextReport
	get("/v1/sessions", &list)
	if len(list) != 2 || list[0].SessionID != "high" {
		t.Errorf("/v1/sessions order = %+v", list)
	}

	var one model.ContextReport
	if code := get("/v1/sessions/low", &one); code != http.StatusOK || one.Cumulative != 200 {
		t.Errorf("/v1/sessions/low = %d %+v", code, one)
	}
	if code := get("/v1/sessions/nope", nil); code != http.StatusNotFound {
		t.Errorf("/v1/sessions/nope = %d, want 404", code)
	}

	var events []Event
	if code := get("/v1/events", &events); code != http.StatusOK || len(events) != 1 {
		t.Errorf("/v1/events = %d %+v", code, events)
	}
}

func TestHandlerRateLimit(t *testing.T) {
	s := newTestService(t, Config{RateLimit: 1})
	h := s.Handler()

	var limited bool
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if rec.Header().Get("Retry-After") == "" {
				t.Error("429 without Retry-After")
			}
		}
	}
	if !limited {
		t.Fatal("expected a 429 after exceeding the burst")
	}

	// Another client has its own bucket.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.2:6000"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second client = %d, want 200", rec.Code)
	}
}

func TestClientRateLimiterSharesBucketAcrossPorts(t *testing.T) {
	rl := NewClientRateLimiter(0, 1)
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	r1.RemoteAddr = "127.0.0.1:1111"
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.RemoteAddr = "127.0.0.1:2222"

	if !rl.Allow(clientHost(r1)) {
		t.Fatal("first request denied")
	}
	if rl.Allow(clientHost(r2)) {
		t.Fatal("second port should share the exhausted bucket")
	}
}
