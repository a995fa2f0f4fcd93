package source

import "encoding/json"

// RawSession is the header line of a session export.
type RawSession struct {
	SessionID       string `json:"session_id"`
	AgenticTool     string `json:"agentic_tool"`
	ParentSessionID string `json:"parent_session_id,omitempty"`
	Title           string `json:"title,omitempty"`
}

// RawTask is one completed turn as exported. Usage is kept verbatim.
type RawTask struct {
	TaskID             string          `json:"task_id"`
	CreatedAt          string          `json:"created_at,omitempty"`
	Model              string          `json:"model,omitempty"`
	Usage              json.RawMessage `json:"usage,omitempty"`
	ContextWindowLimit *int64          `json:"context_window_limit,omitempty"`
}

// RawMessage is one timeline event as exported.
type RawMessage struct {
	MessageID string          `json:"message_id"`
	TaskID    string          `json:"task_id,omitempty"`
	Type      string          `json:"type"`
	CreatedAt string          `json:"created_at,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// Per-type line envelopes. Only the payload for the routed type is decoded.
type (
	sessionLine struct {
		Session *RawSession `json:"session"`
	}
	taskLine struct {
		Task *RawTask `json:"task"`
	}
	messageLine struct {
		Message *RawMessage `json:"message"`
	}
)

// DiscoveredFile represents a JSONL file found during directory scanning.
type DiscoveredFile struct {
	Path          string
	SessionID     string // from the file stem
	ToolHint      string // top-level directory, when it names a known tool
	IsChild       bool
	ParentSession string // for children: the parent session ID
}
