package config

import "strings"

// DefaultContextWindows maps model base names to their context window size
// in tokens. Used only when a task does not report its own limit.
var DefaultContextWindows = map[string]int64{
	"claude-opus-4-6":   200_000,
	"claude-opus-4-5":   200_000,
	"claude-opus-4-1":   200_000,
	"claude-opus-4":     200_000,
	"claude-sonnet-4-6": 200_000,
	"claude-sonnet-4-5": 200_000,
	"claude-sonnet-4":   200_000,
	"claude-haiku-4-5":  200_000,
	"claude-haiku-3-5":  200_000,

	"gpt-5":         272_000,
	"gpt-5-codex":   272_000,
	"gpt-5.1-codex": 272_000,
	"gpt-4.1":       1_047_576,
	"o3":            200_000,
	"o4-mini":       200_000,

	"gemini-2.5-pro":   1_048_576,
	"gemini-2.5-flash": 1_048_576,
	"gemini-2.0-flash": 1_048_576,
}

func hasLimitModel(model string) bool {
	_, ok := DefaultContextWindows[model]
	return ok
}

// NormalizeModelName strips provider prefixes and date suffixes from model
// identifiers.
// e.g., "anthropic/claude-opus-4-5-20251101" -> "claude-opus-4-5"
func NormalizeModelName(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if i := strings.LastIndexByte(raw, '/'); i >= 0 {
		raw = raw[i+1:]
	}
	if hasLimitModel(raw) {
		return raw
	}

	// Models can carry date suffixes like -20251101 (8 digits)
	parts := strings.Split(raw, "-")
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if isAllDigits(last) && len(last) >= 8 {
			candidate := strings.Join(parts[:len(parts)-1], "-")
			if hasLimitModel(candidate) {
				return candidate
			}
		}
	}

	return raw
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// LookupContextWindow returns the built-in context window for a model,
// normalizing the name first.
func LookupContextWindow(model string) (int64, bool) {
	limit, ok := DefaultContextWindows[NormalizeModelName(model)]
	return limit, ok
}

// LookupLimit resolves a model's context window: user overrides first (raw
// name, then normalized), then the built-in table, then DefaultLimit.
func (c ContextConfig) LookupLimit(model string) (int64, bool) {
	if model != "" {
		if l, ok := c.Limits[model]; ok && l > 0 {
			return l, true
		}
		normalized := NormalizeModelName(model)
		if l, ok := c.Limits[normalized]; ok && l > 0 {
			return l, true
		}
		if l, ok := LookupContextWindow(normalized); ok {
			return l, true
		}
	}
	if c.DefaultLimit > 0 {
		return c.DefaultLimit, true
	}
	return 0, false
}
