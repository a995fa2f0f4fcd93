package model

import "time"

// Level classifies how full a session's context window is.
type Level string

const (
	LevelUnknown  Level = "unknown"
	LevelOK       Level = "ok"
	LevelWarn     Level = "warn"
	LevelCritical Level = "critical"
)

// LimitSource records where a report's context window limit came from.
type LimitSource string

const (
	LimitFromTask   LimitSource = "task"
	LimitFromConfig LimitSource = "config"
)

// ContextReport is the accounting result for one session.
//
// Occupancy is the latest turn's own context figure; Cumulative is the
// independent running total since the last compaction. Pointer fields are
// nil when unknown, and callers should skip rendering rather than show zero.
type ContextReport struct {
	SessionID           string      `json:"session_id" yaml:"session_id"`
	ParentID            string      `json:"parent_session_id,omitempty" yaml:"parent_session_id,omitempty"`
	Title               string      `json:"title,omitempty" yaml:"title,omitempty"`
	AgenticTool         string      `json:"agentic_tool" yaml:"agentic_tool"`
	Tasks               int         `json:"tasks" yaml:"tasks"`
	Messages            int         `json:"messages" yaml:"messages"`
	Occupancy           *int64      `json:"occupancy,omitempty" yaml:"occupancy,omitempty"`
	Cumulative          int64       `json:"cumulative" yaml:"cumulative"`
	Limit               *int64      `json:"limit,omitempty" yaml:"limit,omitempty"`
	LimitSource         LimitSource `json:"limit_source,omitempty" yaml:"limit_source,omitempty"`
	Percent             *float64    `json:"percent,omitempty" yaml:"percent,omitempty"`
	Level               Level       `json:"level" yaml:"level"`
	LastCompactionIndex int         `json:"last_compaction_index" yaml:"last_compaction_index"`
	Compactions         int         `json:"compactions" yaml:"compactions"`
	LastActivity        time.Time   `json:"last_activity,omitzero" yaml:"last_activity,omitempty"`
}

// Summary holds totals across a set of reports.
type Summary struct {
	Sessions    int
	Tasks       int
	Compactions int
	Unknown     int
	Warn        int
	Critical    int
}
