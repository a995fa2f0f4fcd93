package usage

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Key spellings per logical field, highest priority first: the camelCase
// provider convention, the provider snake_case convention, then our own names.
var (
	inputKeys         = []string{"promptTokenCount", "input_tokens"}
	outputKeys        = []string{"candidatesTokenCount", "output_tokens"}
	cacheReadKeys     = []string{"cachedContentTokenCount", "cache_read_input_tokens", "cached_input_tokens", "cache_read_tokens"}
	cacheCreationKeys = []string{"cache_creation_input_tokens", "cache_creation_tokens"}
	totalKeys         = []string{"totalTokenCount", "total_tokens"}
)

// maxTokenCount bounds accepted counts to integers a float64 holds exactly,
// leaving headroom so sums of a few fields cannot overflow int64.
const maxTokenCount = 1 << 53

// Normalize maps a raw provider usage payload onto a Record.
//
// It returns nil when the payload is not a JSON object or carries none of the
// input, output, cache-read or cache-creation figures. Non-numeric, negative
// and out-of-range values are ignored and the next spelling is tried.
func Normalize(raw json.RawMessage, tool Tool) *Record {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil
	}

	r := Record{
		InputTokens:         lookup(root, inputKeys),
		OutputTokens:        lookup(root, outputKeys),
		CacheReadTokens:     lookup(root, cacheReadKeys),
		CacheCreationTokens: lookup(root, cacheCreationKeys),
		TotalTokens:         lookup(root, totalKeys),
	}

	if tool.IncludesCacheInInput() && r.InputTokens != nil {
		fresh := *r.InputTokens - deref(r.CacheReadTokens)
		if fresh < 0 {
			fresh = 0
		}
		r.InputTokens = &fresh
	}

	if r.InputTokens == nil && r.OutputTokens == nil &&
		r.CacheReadTokens == nil && r.CacheCreationTokens == nil {
		return nil
	}

	if r.TotalTokens == nil && (r.InputTokens != nil || r.OutputTokens != nil) {
		total := deref(r.InputTokens) + deref(r.OutputTokens)
		r.TotalTokens = &total
	}

	return &r
}

func lookup(obj gjson.Result, keys []string) *int64 {
	for _, k := range keys {
		v := obj.Get(k)
		if v.Type != gjson.Number || v.Num < 0 || v.Num > maxTokenCount {
			continue
		}
		n := v.Int()
		return &n
	}
	return nil
}
