// Package model defines domain types for ctxburn sessions and context reports.
package model

import (
	"encoding/json"
	"time"
)

// Task is one completed agent turn. Usage holds the provider's raw payload,
// untouched; ContextWindowLimit is the model's maximum context size if the
// provider reported one.
type Task struct {
	ID                 string          `json:"task_id"`
	CreatedAt          time.Time       `json:"created_at,omitempty"`
	Model              string          `json:"model,omitempty"`
	Usage              json.RawMessage `json:"usage,omitempty"`
	ContextWindowLimit *int64          `json:"context_window_limit,omitempty"`
}

// Message is one event in a session's timeline. TaskID is empty when the
// message is not tied to a task.
type Message struct {
	ID        string          `json:"message_id"`
	TaskID    string          `json:"task_id,omitempty"`
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// Session is an ordered view of tasks and messages for one conversation.
// ParentID records genealogy (forks, spawned subsessions) and does not
// influence accounting.
type Session struct {
	ID          string    `json:"session_id"`
	AgenticTool string    `json:"agentic_tool"`
	ParentID    string    `json:"parent_session_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	FilePath    string    `json:"-"`
	Tasks       []Task    `json:"-"`
	Messages    []Message `json:"-"`
}

// LastActivity returns the creation time of the newest task or message.
func (s Session) LastActivity() time.Time {
	var last time.Time
	for _, t := range s.Tasks {
		if t.CreatedAt.After(last) {
			last = t.CreatedAt
		}
	}
	for _, m := range s.Messages {
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}
	return last
}
