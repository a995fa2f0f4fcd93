// Package pipeline orchestrates session loading, caching, and context accounting.
package pipeline

import (
	"sort"
	"strings"

	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/usage"
)

// Summarize computes totals across reports.
func Summarize(reports []model.ContextReport) model.Summary {
	var s model.Summary
	for _, r := range reports {
		s.Sessions++
		s.Tasks += r.Tasks
		s.Compactions += r.Compactions
		switch r.Level {
		case model.LevelUnknown:
			s.Unknown++
		case model.LevelWarn:
			s.Warn++
		case model.LevelCritical:
			s.Critical++
		}
	}
	return s
}

// SortReports orders reports by fill percentage descending, then by session
// ID. Reports without a percentage sort last.
func SortReports(reports []model.ContextReport) {
	sort.SliceStable(reports, func(i, j int) bool {
		pi, pj := reports[i].Percent, reports[j].Percent
		switch {
		case pi != nil && pj == nil:
			return true
		case pi == nil && pj != nil:
			return false
		case pi != nil && pj != nil && *pi != *pj:
			return *pi > *pj
		}
		return reports[i].SessionID < reports[j].SessionID
	})
}

// FilterByTool returns sessions recorded by the given agentic tool.
// Aliases are accepted ("claude" matches "claude-code").
func FilterByTool(sessions []model.Session, tool string) []model.Session {
	if tool == "" {
		return sessions
	}
	want := usage.ParseTool(tool)
	var result []model.Session
	for _, s := range sessions {
		if usage.ParseTool(s.AgenticTool) == want {
			result = append(result, s)
		}
	}
	return result
}

// FilterBySession returns sessions whose ID starts with prefix.
func FilterBySession(sessions []model.Session, prefix string) []model.Session {
	if prefix == "" {
		return sessions
	}
	var result []model.Session
	for _, s := range sessions {
		if strings.HasPrefix(s.ID, prefix) {
			result = append(result, s)
		}
	}
	return result
}

// FindSession resolves a session by exact ID, or by a unique ID prefix.
func FindSession(sessions []model.Session, id string) (model.Session, bool) {
	matches := FilterBySession(sessions, id)
	for _, s := range matches {
		if s.ID == id {
			return s, true
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return model.Session{}, false
}
