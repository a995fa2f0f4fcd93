package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theirongolddev/ctxburn/internal/model"
)

func task(id, usage string) model.Task {
	t := model.Task{ID: id}
	if usage != "" {
		t.Usage = json.RawMessage(usage)
	}
	return t
}

func taskWithLimit(id, usage string, limit int64) model.Task {
	t := task(id, usage)
	t.ContextWindowLimit = &limit
	return t
}

func compactionBlocks(id, taskID string) model.Message {
	return model.Message{
		ID:      id,
		TaskID:  taskID,
		Type:    "system",
		Content: json.RawMessage(`[{"type":"text","text":"Compacting conversation"},{"type":"system_status","status":"compacting"}]`),
	}
}

func compactionFlat(id, taskID string) model.Message {
	return model.Message{
		ID:      id,
		TaskID:  taskID,
		Type:    "system",
		Content: json.RawMessage(`{"status":"compacting","message":"summarizing"}`),
	}
}

func userMessage(id, taskID string) model.Message {
	return model.Message{ID: id, TaskID: taskID, Type: "user", Content: json.RawMessage(`"please continue"`)}
}

// writeExport writes a session export under dir/rel and returns its path.
func writeExport(t testing.TB, dir, rel string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
