package pipeline

import (
	"github.com/theirongolddev/ctxburn/internal/config"
	"github.com/theirongolddev/ctxburn/internal/model"
	"github.com/theirongolddev/ctxburn/internal/usage"
)

// Default thresholds, in percent of the context window.
const (
	DefaultWarnAt     = 80.0
	DefaultCriticalAt = 95.0
)

// LimitLookup resolves a context window for a model name when no task
// reported one.
type LimitLookup func(model string) (int64, bool)

// ReportOptions controls limit fallback and level classification.
type ReportOptions struct {
	Limits     LimitLookup
	WarnAt     float64
	CriticalAt float64
}

// ReportOptionsFromConfig builds options from the [context] config section.
func ReportOptionsFromConfig(cfg config.ContextConfig) ReportOptions {
	return ReportOptions{
		Limits:     cfg.LookupLimit,
		WarnAt:     cfg.WarnPercent,
		CriticalAt: cfg.CriticalPercent,
	}
}

// BuildReport runs the accounting for one session.
func BuildReport(s model.Session, opts ReportOptions) model.ContextReport {
	tool := usage.ParseTool(s.AgenticTool)
	last := FindLastCompactionTaskIndex(s.Tasks, s.Messages)

	r := model.ContextReport{
		SessionID:           s.ID,
		ParentID:            s.ParentID,
		Title:               s.Title,
		AgenticTool:         string(tool),
		Tasks:               len(s.Tasks),
		Messages:            len(s.Messages),
		Cumulative:          cumulativeFrom(s.Tasks, last, tool),
		LastCompactionIndex: last,
		Compactions:         CountCompactions(s.Tasks, s.Messages),
		LastActivity:        s.LastActivity(),
	}

	if occ, ok := SessionContextUsage(s.Tasks, tool); ok {
		r.Occupancy = &occ
	}

	if limit, ok := ContextWindowLimit(s.Tasks); ok {
		r.Limit = &limit
		r.LimitSource = model.LimitFromTask
	} else if opts.Limits != nil {
		if limit, ok := opts.Limits(latestModel(s.Tasks)); ok && limit > 0 {
			r.Limit = &limit
			r.LimitSource = model.LimitFromConfig
		}
	}

	if r.Limit != nil {
		pct := float64(r.Cumulative) * 100 / float64(*r.Limit)
		r.Percent = &pct
	}
	r.Level = Classify(r.Percent, opts.WarnAt, opts.CriticalAt)

	return r
}

// BuildReports maps BuildReport over sessions, preserving order.
func BuildReports(sessions []model.Session, opts ReportOptions) []model.ContextReport {
	reports := make([]model.ContextReport, len(sessions))
	for i, s := range sessions {
		reports[i] = BuildReport(s, opts)
	}
	return reports
}

// Classify maps a fill percentage to a level. Non-positive thresholds fall
// back to the defaults.
func Classify(percent *float64, warnAt, criticalAt float64) model.Level {
	if percent == nil {
		return model.LevelUnknown
	}
	if warnAt <= 0 {
		warnAt = DefaultWarnAt
	}
	if criticalAt <= 0 {
		criticalAt = DefaultCriticalAt
	}
	switch {
	case *percent >= criticalAt:
		return model.LevelCritical
	case *percent >= warnAt:
		return model.LevelWarn
	default:
		return model.LevelOK
	}
}

func latestModel(tasks []model.Task) string {
	for i := len(tasks) - 1; i >= 0; i-- {
		if tasks[i].Model != "" {
			return tasks[i].Model
		}
	}
	return ""
}
