package usage

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		tool Tool
		want *Record
	}{
		{
			name: "camelCase without cache",
			raw:  `{"promptTokenCount":150,"candidatesTokenCount":75,"totalTokenCount":225}`,
			tool: ToolGemini,
			want: &Record{InputTokens: Int64(150), OutputTokens: Int64(75), TotalTokens: Int64(225)},
		},
		{
			name: "camelCase with cached content",
			raw:  `{"promptTokenCount":150,"candidatesTokenCount":75,"totalTokenCount":225,"cachedContentTokenCount":50}`,
			tool: ToolGemini,
			want: &Record{InputTokens: Int64(150), OutputTokens: Int64(75), CacheReadTokens: Int64(50), TotalTokens: Int64(225)},
		},
		{
			name: "total computed when missing",
			raw:  `{"promptTokenCount":150,"candidatesTokenCount":75}`,
			tool: ToolGemini,
			want: &Record{InputTokens: Int64(150), OutputTokens: Int64(75), TotalTokens: Int64(225)},
		},
		{
			name: "provider snake_case",
			raw:  `{"input_tokens":12,"output_tokens":300,"cache_read_input_tokens":40000,"cache_creation_input_tokens":1200}`,
			tool: ToolClaudeCode,
			want: &Record{
				InputTokens:         Int64(12),
				OutputTokens:        Int64(300),
				CacheReadTokens:     Int64(40000),
				CacheCreationTokens: Int64(1200),
				TotalTokens:         Int64(312),
			},
		},
		{
			name: "own field names",
			raw:  `{"input_tokens":10,"output_tokens":5,"cache_read_tokens":7,"cache_creation_tokens":3,"total_tokens":99}`,
			tool: ToolOpenCode,
			want: &Record{
				InputTokens:         Int64(10),
				OutputTokens:        Int64(5),
				CacheReadTokens:     Int64(7),
				CacheCreationTokens: Int64(3),
				TotalTokens:         Int64(99),
			},
		},
		{
			name: "codex subtracts cache reads from input",
			raw:  `{"input_tokens":100,"cache_read_tokens":40,"output_tokens":20}`,
			tool: ToolCodex,
			want: &Record{InputTokens: Int64(60), OutputTokens: Int64(20), CacheReadTokens: Int64(40), TotalTokens: Int64(80)},
		},
		{
			name: "codex cached_input_tokens spelling",
			raw:  `{"input_tokens":5000,"cached_input_tokens":4500,"output_tokens":200,"total_tokens":5200}`,
			tool: ToolCodex,
			want: &Record{InputTokens: Int64(500), OutputTokens: Int64(200), CacheReadTokens: Int64(4500), TotalTokens: Int64(5200)},
		},
		{
			name: "codex without cache keeps raw input",
			raw:  `{"input_tokens":100,"output_tokens":20}`,
			tool: ToolCodex,
			want: &Record{InputTokens: Int64(100), OutputTokens: Int64(20), TotalTokens: Int64(120)},
		},
		{
			name: "codex clamps negative input",
			raw:  `{"input_tokens":10,"cache_read_tokens":40}`,
			tool: ToolCodex,
			want: &Record{InputTokens: Int64(0), CacheReadTokens: Int64(40), TotalTokens: Int64(0)},
		},
		{
			name: "pass-through for non-codex tools",
			raw:  `{"input_tokens":100,"cache_read_tokens":40,"output_tokens":20}`,
			tool: ToolClaudeCode,
			want: &Record{InputTokens: Int64(100), OutputTokens: Int64(20), CacheReadTokens: Int64(40), TotalTokens: Int64(120)},
		},
		{
			name: "camelCase wins over snake_case",
			raw:  `{"promptTokenCount":1,"input_tokens":2}`,
			tool: ToolGemini,
			want: &Record{InputTokens: Int64(1), TotalTokens: Int64(1)},
		},
		{
			name: "non-numeric value falls through to next spelling",
			raw:  `{"promptTokenCount":"150","input_tokens":3}`,
			tool: ToolGemini,
			want: &Record{InputTokens: Int64(3), TotalTokens: Int64(3)},
		},
		{
			name: "negative count falls through to next spelling",
			raw:  `{"promptTokenCount":-5,"input_tokens":-500,"output_tokens":10}`,
			tool: ToolClaudeCode,
			want: &Record{OutputTokens: Int64(10), TotalTokens: Int64(10)},
		},
		{
			name: "out-of-range count is absent",
			raw:  `{"input_tokens":1e30,"cache_read_tokens":40}`,
			tool: ToolCodex,
			want: &Record{CacheReadTokens: Int64(40)},
		},
		{
			name: "huge integer literal is absent",
			raw:  `{"input_tokens":99999999999999999999,"output_tokens":7}`,
			tool: ToolClaudeCode,
			want: &Record{OutputTokens: Int64(7), TotalTokens: Int64(7)},
		},
		{
			name: "zero is reported, not absent",
			raw:  `{"input_tokens":0,"output_tokens":0}`,
			tool: ToolClaudeCode,
			want: &Record{InputTokens: Int64(0), OutputTokens: Int64(0), TotalTokens: Int64(0)},
		},
		{
			name: "cache-only record has no computed total",
			raw:  `{"cache_read_input_tokens":900}`,
			tool: ToolClaudeCode,
			want: &Record{CacheReadTokens: Int64(900)},
		},
		{
			name: "unrelated fields",
			raw:  `{"someOtherField":"value"}`,
			tool: ToolGemini,
		},
		{
			name: "total alone is not usage",
			raw:  `{"total_tokens":500}`,
			tool: ToolClaudeCode,
		},
		{name: "null", raw: `null`, tool: ToolClaudeCode},
		{name: "array", raw: `[{"input_tokens":1}]`, tool: ToolClaudeCode},
		{name: "number", raw: `42`, tool: ToolClaudeCode},
		{name: "string", raw: `"input_tokens"`, tool: ToolClaudeCode},
		{name: "invalid json", raw: `{"input_tokens":`, tool: ToolClaudeCode},
		{name: "empty", raw: ``, tool: ToolClaudeCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(json.RawMessage(tt.raw), tt.tool)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize(%s) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	raw := json.RawMessage(`{"input_tokens":100,"cached_input_tokens":40,"output_tokens":20}`)
	first := Normalize(raw, ToolCodex)
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, Normalize(raw, ToolCodex)); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
	if string(raw) != `{"input_tokens":100,"cached_input_tokens":40,"output_tokens":20}` {
		t.Fatal("Normalize mutated its input")
	}
}

func TestParseTool(t *testing.T) {
	tests := []struct {
		in   string
		want Tool
	}{
		{"claude-code", ToolClaudeCode},
		{"Claude_Code", ToolClaudeCode},
		{" codex ", ToolCodex},
		{"openai-codex", ToolCodex},
		{"gemini-cli", ToolGemini},
		{"opencode", ToolOpenCode},
		{"Cursor", Tool("cursor")},
	}
	for _, tt := range tests {
		if got := ParseTool(tt.in); got != tt.want {
			t.Errorf("ParseTool(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if !ToolCodex.IncludesCacheInInput() {
		t.Error("codex should include cache reads in input")
	}
	if Tool("cursor").IncludesCacheInInput() || Tool("cursor").Known() {
		t.Error("unknown tool should use pass-through strategy")
	}
}

// FuzzNormalize checks that arbitrary payloads never panic, never produce an
// all-absent record and never yield a negative figure.
func FuzzNormalize(f *testing.F) {
	f.Add([]byte(`{"promptTokenCount":150,"candidatesTokenCount":75}`), "gemini")
	f.Add([]byte(`{"input_tokens":100,"cache_read_tokens":40}`), "codex")
	f.Add([]byte(`{"input_tokens":null}`), "claude-code")
	f.Add([]byte(`[]`), "codex")
	f.Add([]byte(`{"input_tokens":1e30}`), "codex")
	f.Add([]byte(`{"input_tokens":1e30,"cache_read_tokens":40}`), "codex")
	f.Add([]byte(`{"input_tokens":-500,"output_tokens":10}`), "claude-code")
	f.Add([]byte(`{"input_tokens":9007199254740992,"output_tokens":9007199254740992}`), "opencode")
	f.Add([]byte(``), "")

	f.Fuzz(func(t *testing.T, data []byte, tool string) {
		r := Normalize(data, ParseTool(tool))
		if r == nil {
			return
		}
		if r.InputTokens == nil && r.OutputTokens == nil &&
			r.CacheReadTokens == nil && r.CacheCreationTokens == nil {
			t.Errorf("all-absent record returned for %q", data)
		}
		fields := map[string]*int64{
			"input":          r.InputTokens,
			"output":         r.OutputTokens,
			"cache_read":     r.CacheReadTokens,
			"cache_creation": r.CacheCreationTokens,
			"total":          r.TotalTokens,
		}
		for name, v := range fields {
			if v != nil && *v < 0 {
				t.Errorf("negative %s %d for %q (tool %q)", name, *v, data, tool)
			}
		}
		if occ, _ := TurnContextUsage(r); occ < 0 {
			t.Errorf("negative occupancy %d for %q", occ, data)
		}
		if delta, _ := TurnConversationDelta(r); delta < 0 {
			t.Errorf("negative delta %d for %q", delta, data)
		}
	})
}
