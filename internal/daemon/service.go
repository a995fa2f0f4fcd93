// Package daemon provides the long-running context monitor service.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/maypok86/otter"
	"golang.org/x/time/rate"

	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/pipeline"
	"github.com/theirongolddev/ctxburn/internal/store"
)

// Event types.
const (
	EventSnapshot      = "snapshot"
	EventContextUpdate = "context_update"
	EventCompaction    = "compaction"
)

// Config controls the daemon runtime behavior.
type Config struct {
	DataDir      string
	ToolFilter   string
	UseCache     bool
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	RateLimit    float64 // requests per second per client; 0 disables
	Report       pipeline.ReportOptions
	Logger       *slog.Logger
}

// Snapshot is a compact state summary for status and event payloads.
type Snapshot struct {
	At          time.Time `json:"at"`
	Sessions    int       `json:"sessions"`
	Tasks       int       `json:"tasks"`
	Compactions int       `json:"compactions"`
	Unknown     int       `json:"unknown"`
	Warn        int       `json:"warn"`
	Critical    int       `json:"critical"`
}

// Event is emitted when a session's context changes.
type Event struct {
	ID        int64                `json:"id"`
	Type      string               `json:"type"`
	Timestamp time.Time            `json:"timestamp"`
	SessionID string               `json:"session_id,omitempty"`
	Delta     int64                `json:"delta,omitempty"`
	Report    *model.ContextReport `json:"report,omitempty"`
	Snapshot  *Snapshot            `json:"snapshot,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	DataDir         string    `json:"data_dir"`
	ToolFilter      string    `json:"tool_filter,omitempty"`
	Summary         Snapshot  `json:"summary"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// memoKey identifies a session state whose report can be reused. The last
// task's raw usage is included because tools rewrite a task's usage when the
// turn finishes without adding a new task.
type memoKey struct {
	FilePath  string
	SessionID string
	Tasks     int
	Messages  int
	LastUsage string
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg    Config
	log    *slog.Logger
	memo   otter.Cache[memoKey, model.ContextReport]
	loadFn func() ([]model.Session, error)

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	reports     map[string]model.ContextReport
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config) (*Service, error) {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 10 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	memo, err := otter.MustBuilder[memoKey, model.ContextReport](1000).Build()
	if err != nil {
		return nil, fmt.Errorf("building report cache: %w", err)
	}

	s := &Service{
		cfg:       cfg,
		log:       logger,
		memo:      memo,
		startedAt: time.Now(),
		reports:   make(map[string]model.ContextReport),
		subs:      make(map[int]chan Event),
	}
	s.loadFn = s.loadSessions
	return s, nil
}

// Handler returns the HTTP API, rate limited per client when configured.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/sessions", s.handleSessions)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleSession)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)

	if s.cfg.RateLimit <= 0 {
		return mux
	}
	burst := int(s.cfg.RateLimit * 2)
	return NewClientRateLimiter(rate.Limit(s.cfg.RateLimit), burst).Limit(mux)
}

// Run starts HTTP endpoints and polling until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	defer s.memo.Close()

	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("daemon listening", "addr", s.cfg.Addr, "data_dir", s.cfg.DataDir, "interval", s.cfg.Interval)

	// Seed initial snapshot so status is useful immediately.
	s.pollOnce()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("daemon shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce()
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) pollOnce() {
	start := time.Now()
	sessions, err := s.loadFn()
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = time.Now()
		s.pollCount++
		s.mu.Unlock()
		s.log.Warn("poll failed", "err", err)
		return
	}

	sessions = pipeline.FilterByTool(sessions, s.cfg.ToolFilter)

	now := time.Now()
	curr := make(map[string]model.ContextReport, len(sessions))
	for _, sess := range sessions {
		curr[sess.ID] = s.report(sess)
	}
	snap := snapshotFromReports(curr, now)

	s.mu.Lock()
	prev := s.reports
	first := !s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.reports = curr
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""
	s.mu.Unlock()

	var events []Event
	if first {
		events = []Event{{Type: EventSnapshot, Timestamp: now, Snapshot: &snap}}
	} else {
		events = diffReports(prev, curr, now)
	}
	for _, ev := range events {
		s.logEvent(ev, prev)
		s.publishEvent(ev)
	}

	s.log.Debug("poll complete", "sessions", len(curr), "events", len(events), "took", time.Since(start))
}

// report returns the memoized report for a session state, building it on a
// miss.
func (s *Service) report(sess model.Session) model.ContextReport {
	key := memoKey{FilePath: sess.FilePath, SessionID: sess.ID, Tasks: len(sess.Tasks), Messages: len(sess.Messages)}
	if n := len(sess.Tasks); n > 0 {
		key.LastUsage = string(sess.Tasks[n-1].Usage)
	}
	if r, ok := s.memo.Get(key); ok {
		return r
	}
	r := pipeline.BuildReport(sess, s.cfg.Report)
	s.memo.Set(key, r)
	return r
}

func (s *Service) loadSessions() ([]model.Session, error) {
	if s.cfg.UseCache {
		cache, err := store.Open(pipeline.CachePath())
		if err == nil {
			defer func() { _ = cache.Close() }()
			cr, loadErr := pipeline.LoadWithCache(s.cfg.DataDir, cache, nil)
			if loadErr == nil {
				return cr.Sessions, nil
			}
			s.log.Warn("cached load failed, doing full parse", "err", loadErr)
		}
	}

	result, err := pipeline.Load(s.cfg.DataDir, nil)
	if err != nil {
		return nil, err
	}
	return result.Sessions, nil
}

func snapshotFromReports(reports map[string]model.ContextReport, at time.Time) Snapshot {
	list := make([]model.ContextReport, 0, len(reports))
	for _, r := range reports {
		list = append(list, r)
	}
	sum := pipeline.Summarize(list)
	return Snapshot{
		At:          at,
		Sessions:    sum.Sessions,
		Tasks:       sum.Tasks,
		Compactions: sum.Compactions,
		Unknown:     sum.Unknown,
		Warn:        sum.Warn,
		Critical:    sum.Critical,
	}
}

// diffReports emits a context_update for every new or changed session and a
// compaction event when a session's last boundary moved. Events are ordered
// by session ID.
func diffReports(prev, curr map[string]model.ContextReport, at time.Time) []Event {
	ids := make([]string, 0, len(curr))
	for id := range curr {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var events []Event
	for _, id := range ids {
		r := curr[id]
		old, existed := prev[id]
		if existed && !contextChanged(old, r) {
			continue
		}

		rep := r
		ev := Event{Type: EventContextUpdate, Timestamp: at, SessionID: id, Report: &rep, Delta: r.Cumulative}
		if existed {
			ev.Delta = r.Cumulative - old.Cumulative
		}
		events = append(events, ev)

		if existed && r.LastCompactionIndex != old.LastCompactionIndex && r.LastCompactionIndex >= 0 {
			events = append(events, Event{Type: EventCompaction, Timestamp: at, SessionID: id, Report: &rep})
		}
	}
	return events
}

func contextChanged(a, b model.ContextReport) bool {
	return a.Cumulative != b.Cumulative ||
		!equalInt64Ptr(a.Occupancy, b.Occupancy) ||
		!equalInt64Ptr(a.Limit, b.Limit) ||
		a.LastCompactionIndex != b.LastCompactionIndex ||
		a.Tasks != b.Tasks
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) logEvent(ev Event, prev map[string]model.ContextReport) {
	switch ev.Type {
	case EventCompaction:
		s.log.Info("session compacted", "session", ev.SessionID, "task_index", ev.Report.LastCompactionIndex)
	case EventContextUpdate:
		old, existed := prev[ev.SessionID]
		if existed && old.Level == ev.Report.Level {
			s.log.Debug("context updated", "session", ev.SessionID, "cumulative", ev.Report.Cumulative, "delta", ev.Delta)
			return
		}
		if ev.Report.Level == model.LevelWarn || ev.Report.Level == model.LevelCritical {
			s.log.Warn("context threshold reached", "session", ev.SessionID,
				"level", ev.Report.Level, "percent", *ev.Report.Percent)
		}
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.nextEventID++
	ev.ID = s.nextEventID
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		DataDir:         s.cfg.DataDir,
		ToolFilter:      s.cfg.ToolFilter,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) sortedReports() []model.ContextReport {
	s.mu.RLock()
	list := make([]model.ContextReport, 0, len(s.reports))
	for _, r := range s.reports {
		list = append(list, r)
	}
	s.mu.RUnlock()

	pipeline.SortReports(list)
	return list
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sortedReports())
}

func (s *Service) handleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.RLock()
	rep, ok := s.reports[id]
	s.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found", "session_id": id})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

// handleStream serves events as SSE. ?session=<id> restricts the stream to
// one session's events.
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	only := r.URL.Query().Get("session")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	snap := s.snapshotStatus().Summary
	writeSSE(w, Event{Type: EventSnapshot, Timestamp: time.Now(), Snapshot: &snap})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			if only != "" && ev.SessionID != only {
				continue
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
