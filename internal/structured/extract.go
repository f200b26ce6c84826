// Package structured pulls JSON values out of free-form model output.
//
// Extraction runs through tiers that move from "the text is well formed" to
// "salvage whatever fragments are recognizable". Each tier reports a tagged
// (value, ok) result; the first success wins.
package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedOutput is returned when no tier could recover a value.
var ErrMalformedOutput = errors.New("malformed model output")

// Tier identifies which strategy produced a Result.
type Tier int

const (
	TierDirect Tier = iota + 1
	TierUnwrapped
	TierRewritten
	TierPartial
	TierDefault
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierUnwrapped:
		return "unwrapped"
	case TierRewritten:
		return "rewritten"
	case TierPartial:
		return "partial"
	case TierDefault:
		return "default"
	}
	return "unknown"
}

// Result is an extracted value and the tier that produced it.
type Result struct {
	Value    any
	Tier     Tier
	Degraded bool
}

// Object returns the value as a map, or nil if it is not an object.
func (r Result) Object() map[string]any {
	m, _ := r.Value.(map[string]any)
	return m
}

type options struct {
	keys []string
}

// Option tunes extraction.
type Option func(*options)

// WithKeys names the top-level keys the partial tier should look for.
func WithKeys(keys ...string) Option {
	return func(o *options) { o.keys = append(o.keys, keys...) }
}

type tierFunc func(text string, o *options) (any, bool)

var tiers = []struct {
	tier Tier
	fn   tierFunc
}{
	{TierDirect, parseDirect},
	{TierUnwrapped, parseUnwrapped},
	{TierRewritten, parseRewritten},
	{TierPartial, parsePartial},
}

// Extract runs the tiers in order and returns the first value recovered.
func Extract(text string, opts ...Option) (Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	for _, t := range tiers {
		if v, ok := t.fn(text, &o); ok {
			return Result{Value: v, Tier: t.tier, Degraded: t.tier == TierPartial}, nil
		}
	}
	preview := strings.TrimSpace(text)
	if len(preview) > 80 {
		preview = preview[:77] + "..."
	}
	return Result{}, fmt.Errorf("%w: no structured value in %q", ErrMalformedOutput, preview)
}

// ExtractOr behaves like Extract but substitutes def when every tier fails.
func ExtractOr(text string, def map[string]any, opts ...Option) Result {
	res, err := Extract(text, opts...)
	if err != nil {
		return Result{Value: def, Tier: TierDefault, Degraded: true}
	}
	return res
}

// Decode converts an extracted tree into out (a pointer) via its JSON tags.
func Decode(value any, out any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("re-encoding extracted value: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding extracted value: %w", err)
	}
	return nil
}

func decodeContainer(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, true
	}
	return nil, false
}

func parseDirect(text string, _ *options) (any, bool) {
	return decodeContainer(text)
}

// parseUnwrapped only tries the preferred slice, so a stray bracket in the
// prose can never win over an object that merely needs rewriting.
func parseUnwrapped(text string, _ *options) (any, bool) {
	c := candidates(text)
	if len(c) == 0 {
		return nil, false
	}
	return decodeContainer(c[0])
}

func parseRewritten(text string, _ *options) (any, bool) {
	for _, s := range candidates(text) {
		if v, ok := decodeContainer(rewrite(s)); ok {
			return v, true
		}
	}
	return nil, false
}

// candidates removes fence markers and returns the slices worth decoding,
// preferred first: first '{' to last '}', then first '[' to last ']'. The
// bracket slice leads only when it encloses the brace slice, as for a
// top-level array of objects, and is dropped when it starts inside an
// object, which is then truncated rather than absent.
func candidates(text string) []string {
	s := stripFences(text)
	obj, okObj := span(s, '{', '}')
	arr, okArr := span(s, '[', ']')
	if first := strings.IndexByte(s, '{'); okArr && first >= 0 && first < arr[0] {
		okArr = false
	}
	switch {
	case okObj && okArr:
		if arr[1] > obj[1] {
			return []string{s[arr[0]:arr[1]], s[obj[0]:obj[1]]}
		}
		return []string{s[obj[0]:obj[1]], s[arr[0]:arr[1]]}
	case okObj:
		return []string{s[obj[0]:obj[1]]}
	case okArr:
		return []string{s[arr[0]:arr[1]]}
	}
	return nil
}

// span returns the half-open range from the first open to the last close.
func span(s string, opener, closer byte) ([2]int, bool) {
	start := strings.IndexByte(s, opener)
	end := strings.LastIndexByte(s, closer)
	if start < 0 || end <= start {
		return [2]int{}, false
	}
	return [2]int{start, end + 1}, true
}

var (
	fenceOpenRe  = regexp.MustCompile("^```[\\w-]*[ \\t]*")
	fenceCloseRe = regexp.MustCompile("[ \\t]*```$")
)

// stripFences removes a leading fence marker with its info string and a
// trailing fence marker, keeping any content on the same line. Fences
// between prose and the value are cut off by the slicing anyway.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = fenceCloseRe.ReplaceAllString(s, "")
	return strings.Trim(strings.TrimSpace(s), "`")
}
