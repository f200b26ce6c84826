package structured

import (
	"regexp"
	"strings"
)

// parsePartial salvages individual top-level fields when the surrounding
// object is beyond repair. Keys are located by pattern; each value span is
// read with a string-aware bracket scan so nested arrays of objects survive.
// A truncated array keeps its complete leading elements.
func parsePartial(text string, o *options) (any, bool) {
	if len(o.keys) == 0 {
		return nil, false
	}
	out := make(map[string]any)
	for _, key := range o.keys {
		re := regexp.MustCompile(`"` + regexp.QuoteMeta(key) + `"\s*:\s*`)
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		frag, ok := valueSpan(text, loc[1])
		if !ok {
			continue
		}
		v, ok := decodeContainer(rewrite(`{"v":` + frag + `}`))
		if !ok {
			continue
		}
		out[key] = v.(map[string]any)["v"]
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func valueSpan(s string, at int) (string, bool) {
	if at >= len(s) {
		return "", false
	}
	switch s[at] {
	case '"':
		end := stringEnd(s, at)
		if end < 0 {
			return "", false
		}
		return s[at : end+1], true
	case '[', '{':
		return bracketSpan(s, at)
	}
	end := strings.IndexAny(s[at:], ",}]\n")
	if end < 0 {
		end = len(s) - at
	}
	frag := strings.TrimSpace(s[at : at+end])
	return frag, frag != ""
}

// stringEnd returns the index of the quote closing the string opened at i.
func stringEnd(s string, i int) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return -1
}

func bracketSpan(s string, start int) (string, bool) {
	depth := 0
	lastElementEnd := -1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '"':
			end := stringEnd(s, i)
			if end < 0 {
				return salvage(s, start, lastElementEnd)
			}
			i = end
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
			if depth == 1 {
				lastElementEnd = i
			}
		case ',':
			if depth == 1 {
				lastElementEnd = i - 1
			}
		}
	}
	return salvage(s, start, lastElementEnd)
}

// salvage closes a truncated array after its last complete element.
func salvage(s string, start, lastElementEnd int) (string, bool) {
	if s[start] != '[' || lastElementEnd < start {
		return "", false
	}
	return s[start:lastElementEnd+1] + "]", true
}
