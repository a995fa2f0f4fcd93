package pipeline

import (
	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/usage"
)

// CumulativeContextWindow reconstructs the session's running context size
// from per-turn deltas, starting just after the most recent compaction.
// It returns 0 when there is nothing to count.
func CumulativeContextWindow(tasks []model.Task, messages []model.Message, tool usage.Tool) int64 {
	return cumulativeFrom(tasks, FindLastCompactionTaskIndex(tasks, messages), tool)
}

// cumulativeFrom sums turn deltas after the boundary at index last (-1 for
// none) and adds a one-time baseline on the first counted turn.
func cumulativeFrom(tasks []model.Task, last int, tool usage.Tool) int64 {
	start := last + 1
	var total int64
	for i := start; i < len(tasks); i++ {
		rec := usage.Normalize(tasks[i].Usage, tool)
		if delta, ok := usage.TurnConversationDelta(rec); ok {
			total += delta
		}
		if i != start {
			continue
		}
		if last == -1 {
			// Session start: system instructions and tool definitions.
			total += rec.CacheRead() + rec.CacheCreation()
		} else {
			// After a compaction only the freshly written summary is counted.
			// Cache reads on this turn have been reported above the model's
			// own limit and are not trusted.
			total += rec.CacheCreation()
		}
	}
	return total
}

// SessionContextUsage returns the occupancy reported by the most recent task
// that has usage data, trusting the provider's own count for that turn.
func SessionContextUsage(tasks []model.Task, tool usage.Tool) (int64, bool) {
	for i := len(tasks) - 1; i >= 0; i-- {
		if v, ok := usage.TurnContextUsage(usage.Normalize(tasks[i].Usage, tool)); ok {
			return v, true
		}
	}
	return 0, false
}

// ContextWindowLimit returns the most recently reported context window limit.
func ContextWindowLimit(tasks []model.Task) (int64, bool) {
	for i := len(tasks) - 1; i >= 0; i-- {
		if l := tasks[i].ContextWindowLimit; l != nil && *l > 0 {
			return *l, true
		}
	}
	return 0, false
}
