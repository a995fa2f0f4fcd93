// Package usage normalizes provider token-usage payloads into a canonical
// record and derives per-turn context figures from it.
package usage

import "strings"

// Tool identifies the agentic tool (provider backend) that drove a session.
// It selects the normalization strategy for that session's usage payloads.
type Tool string

const (
	ToolClaudeCode Tool = "claude-code"
	ToolCodex      Tool = "codex"
	ToolGemini     Tool = "gemini"
	ToolOpenCode   Tool = "opencode"
)

// KnownTools lists the tools with a documented reporting convention.
var KnownTools = []Tool{ToolClaudeCode, ToolCodex, ToolGemini, ToolOpenCode}

// ParseTool canonicalizes a tool identifier. Unknown identifiers are kept
// (lowercased) and fall back to the pass-through strategy.
func ParseTool(s string) Tool {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "claude", "claude_code", "claudecode", "claude-code":
		return ToolClaudeCode
	case "codex", "openai-codex", "codex-cli":
		return ToolCodex
	case "gemini", "gemini-cli":
		return ToolGemini
	case "opencode", "open-code":
		return ToolOpenCode
	}
	return Tool(s)
}

// IncludesCacheInInput reports whether the tool's input-token figure already
// contains the cache-read tokens, so fresh input must be recovered by
// subtraction.
func (t Tool) IncludesCacheInInput() bool {
	return t == ToolCodex
}

// Known reports whether t is one of KnownTools.
func (t Tool) Known() bool {
	for _, k := range KnownTools {
		if t == k {
			return true
		}
	}
	return false
}

// Record is the canonical usage of one turn. A nil field means the provider
// reported nothing for it, which is not the same as a reported zero.
type Record struct {
	InputTokens         *int64 `json:"input_tokens,omitempty" yaml:"input_tokens,omitempty"`
	OutputTokens        *int64 `json:"output_tokens,omitempty" yaml:"output_tokens,omitempty"`
	CacheReadTokens     *int64 `json:"cache_read_tokens,omitempty" yaml:"cache_read_tokens,omitempty"`
	CacheCreationTokens *int64 `json:"cache_creation_tokens,omitempty" yaml:"cache_creation_tokens,omitempty"`
	TotalTokens         *int64 `json:"total_tokens,omitempty" yaml:"total_tokens,omitempty"`
}

// Input returns the fresh input tokens, or 0 when absent. Safe on nil.
func (r *Record) Input() int64 {
	if r == nil {
		return 0
	}
	return deref(r.InputTokens)
}

// Output returns the output tokens, or 0 when absent. Safe on nil.
func (r *Record) Output() int64 {
	if r == nil {
		return 0
	}
	return deref(r.OutputTokens)
}

// CacheRead returns the cache-read tokens, or 0 when absent. Safe on nil.
func (r *Record) CacheRead() int64 {
	if r == nil {
		return 0
	}
	return deref(r.CacheReadTokens)
}

// CacheCreation returns the cache-creation tokens, or 0 when absent. Safe on nil.
func (r *Record) CacheCreation() int64 {
	if r == nil {
		return 0
	}
	return deref(r.CacheCreationTokens)
}

// Total returns the total tokens, or 0 when absent. Safe on nil.
func (r *Record) Total() int64 {
	if r == nil {
		return 0
	}
	return deref(r.TotalTokens)
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
