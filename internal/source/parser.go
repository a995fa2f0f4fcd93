// Package source discovers and parses JSONL session exports.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/ctxburn/internal/model"
)

// Line types routed by the top-level "type" field.
const (
	lineSession = "session"
	lineTask    = "task"
	lineMessage = "message"
)

// ParseResult holds the output of parsing a single JSONL file.
type ParseResult struct {
	Session     model.Session
	ParseErrors int
	Err         error
}

// ParseFile reads a session export and produces an ordered session.
//
// Entry routing by top-level "type" field:
//   - "session" → header (ID, tool, parent, title); later headers win
//   - "task"    → deduplicated by task_id, last entry wins, first position kept
//   - "message" → deduplicated by message_id the same way
//   - everything else → skip
func ParseFile(df DiscoveredFile) ParseResult {
	f, err := os.Open(df.Path)
	if err != nil {
		return ParseResult{Err: err}
	}
	defer func() { _ = f.Close() }()

	return Parse(f, df)
}

// Parse reads a session export from r. df supplies the defaults taken from
// the file's location.
func Parse(r io.Reader, df DiscoveredFile) ParseResult {
	s := model.Session{
		ID:          df.SessionID,
		AgenticTool: df.ToolHint,
		ParentID:    df.ParentSession,
		FilePath:    df.Path,
	}

	var (
		parseErrors int
		taskIdx     = make(map[string]int)
		msgIdx      = make(map[string]int)
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256*1024), 2*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		switch extractTopLevelType(line) {
		case lineSession:
			var entry sessionLine
			if err := json.Unmarshal(line, &entry); err != nil || entry.Session == nil {
				parseErrors++
				continue
			}
			applyHeader(&s, entry.Session)

		case lineTask:
			var entry taskLine
			if err := json.Unmarshal(line, &entry); err != nil || entry.Task == nil {
				parseErrors++
				continue
			}
			t := toTask(entry.Task)
			if i, ok := taskIdx[t.ID]; ok {
				s.Tasks[i] = t
				continue
			}
			taskIdx[t.ID] = len(s.Tasks)
			s.Tasks = append(s.Tasks, t)

		case lineMessage:
			var entry messageLine
			if err := json.Unmarshal(line, &entry); err != nil || entry.Message == nil {
				parseErrors++
				continue
			}
			m := toMessage(entry.Message)
			if i, ok := msgIdx[m.ID]; ok {
				s.Messages[i] = m
				continue
			}
			msgIdx[m.ID] = len(s.Messages)
			s.Messages = append(s.Messages, m)

		case "":
			// Lines that are not JSON objects at all count as malformed.
			if line[0] != '{' {
				parseErrors++
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return ParseResult{Err: err}
	}

	return ParseResult{
		Session:     s,
		ParseErrors: parseErrors,
	}
}

func applyHeader(s *model.Session, h *RawSession) {
	if h.SessionID != "" {
		s.ID = h.SessionID
	}
	if h.AgenticTool != "" {
		s.AgenticTool = h.AgenticTool
	}
	if h.ParentSessionID != "" {
		s.ParentID = h.ParentSessionID
	}
	if h.Title != "" {
		s.Title = h.Title
	}
}

func toTask(raw *RawTask) model.Task {
	id := raw.TaskID
	if id == "" {
		id = uuid.NewString()
	}
	return model.Task{
		ID:                 id,
		CreatedAt:          parseTime(raw.CreatedAt),
		Model:              raw.Model,
		Usage:              raw.Usage,
		ContextWindowLimit: raw.ContextWindowLimit,
	}
}

func toMessage(raw *RawMessage) model.Message {
	id := raw.MessageID
	if id == "" {
		id = uuid.NewString()
	}
	return model.Message{
		ID:        id,
		TaskID:    raw.TaskID,
		Type:      raw.Type,
		Content:   raw.Content,
		CreatedAt: parseTime(raw.CreatedAt),
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// typeKey is the byte sequence for a JSON key named "type" (with quotes).
var typeKey = []byte(`"type"`)

// extractTopLevelType finds the top-level "type" field in a JSONL line.
// Tracks brace depth and string boundaries so nested "type" keys are ignored
// (messages carry their own "type" one level down).
func extractTopLevelType(line []byte) string {
	depth := 0
	for i := 0; i < len(line); {
		switch line[i] {
		case '"':
			if depth == 1 && bytes.HasPrefix(line[i:], typeKey) {
				val, isKey := classifyType(line, i+len(typeKey))
				if isKey {
					return val
				}
				// "type" appeared as a value, not a key. Continue scanning.
			}
			i = skipJSONString(line, i)
		case '{', '[':
			depth++
			i++
		case '}', ']':
			depth--
			i++
		default:
			i++
		}
	}
	return ""
}

// classifyType checks whether pos follows a JSON key (expects : then value).
// isKey=false means "type" appeared as a value, not a key.
func classifyType(line []byte, pos int) (val string, isKey bool) {
	i := skipSpaces(line, pos)
	if i >= len(line) || line[i] != ':' {
		return "", false
	}
	i = skipSpaces(line, i+1)
	if i >= len(line) || line[i] != '"' {
		return "", true // key with non-string value (null, number, etc.)
	}
	i++

	end := bytes.IndexByte(line[i:], '"')
	if end < 0 || end > 20 {
		return "", true
	}
	v := string(line[i : i+end])
	switch v {
	case lineSession, lineTask, lineMessage:
		return v, true
	}
	return "", true
}

// skipJSONString advances past a JSON string starting at the opening quote.
//
//nolint:gosec // manual bounds checking throughout
func skipJSONString(line []byte, i int) int {
	i++
	for i < len(line) {
		switch line[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1
		default:
			i++
		}
	}
	return i
}

func skipSpaces(line []byte, i int) int {
	for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return i
}
