package pipeline

import (
	"github.com/theirongolddev/ctxburn/internal/model"

	"github.com/tidwall/gjson"
)

const compactingStatus = "compacting"

// FindLastCompactionTaskIndex returns the index of the last task that a
// compaction message points at, or -1 if the session was never compacted.
// Earlier boundaries are superseded by the latest one.
func FindLastCompactionTaskIndex(tasks []model.Task, messages []model.Message) int {
	boundaries := compactionTaskIDs(messages)
	if len(boundaries) == 0 {
		return -1
	}
	for i := len(tasks) - 1; i >= 0; i-- {
		if _, ok := boundaries[tasks[i].ID]; ok {
			return i
		}
	}
	return -1
}

// CountCompactions returns how many tasks are compaction boundaries.
func CountCompactions(tasks []model.Task, messages []model.Message) int {
	boundaries := compactionTaskIDs(messages)
	if len(boundaries) == 0 {
		return 0
	}
	n := 0
	for _, t := range tasks {
		if _, ok := boundaries[t.ID]; ok {
			n++
		}
	}
	return n
}

func compactionTaskIDs(messages []model.Message) map[string]struct{} {
	var ids map[string]struct{}
	for _, m := range messages {
		if m.TaskID == "" || !IsCompactionMessage(m) {
			continue
		}
		if ids == nil {
			ids = make(map[string]struct{})
		}
		ids[m.TaskID] = struct{}{}
	}
	return ids
}

// IsCompactionMessage reports whether a message carries a "compacting" system
// status. Two content shapes exist: an array of content blocks, any of which
// may hold the status, and a flat object with a top-level status field.
func IsCompactionMessage(m model.Message) bool {
	if len(m.Content) == 0 || !gjson.ValidBytes(m.Content) {
		return false
	}
	content := gjson.ParseBytes(m.Content)
	switch {
	case content.IsArray():
		found := false
		content.ForEach(func(_, block gjson.Result) bool {
			if block.IsObject() && isCompactingStatus(block.Get("status")) {
				found = true
				return false
			}
			return true
		})
		return found
	case content.IsObject():
		return isCompactingStatus(content.Get("status"))
	}
	return false
}

func isCompactingStatus(v gjson.Result) bool {
	return v.Type == gjson.String && v.Str == compactingStatus
}
