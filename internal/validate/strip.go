package validate

import (
	"regexp"
	"strings"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/fileblocks"
)

var markupStartRe = regexp.MustCompile(`(?i)<!doctype|<html|<[a-z!]`)

// Strip removes the explanatory prose a model wraps around file content: an
// enclosing fence, text before the first structural token of the kind, and
// text after the last one.
func Strip(kind artifact.Kind, text string) string {
	if body, ok := fileblocks.Unfence(text); ok {
		text = body
	}
	text = strings.TrimSpace(text)

	switch kind {
	case artifact.KindMarkup:
		if loc := markupStartRe.FindStringIndex(text); loc != nil {
			text = text[loc[0]:]
		}
		if end := strings.LastIndexByte(text, '>'); end >= 0 {
			text = text[:end+1]
		}
	case artifact.KindStyle, artifact.KindBehavior:
		text = trimProseLines(text)
	}
	if text == "" {
		return ""
	}
	return text + "\n"
}

func trimProseLines(text string) string {
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && (isProse(lines[0]) || strings.TrimSpace(lines[0]) == "") {
		lines = lines[1:]
	}
	for len(lines) > 0 && (isProse(lines[len(lines)-1]) || strings.TrimSpace(lines[len(lines)-1]) == "") {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// isProse reports whether a line reads like a sentence addressed to the user
// rather than code: several words, no code punctuation, sentence-final mark.
func isProse(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" || !strings.Contains(s, " ") {
		return false
	}
	if strings.ContainsAny(s, "{};=()") {
		return false
	}
	for _, p := range []string{"/*", "//", "*", "@", "#", ".", ":"} {
		if strings.HasPrefix(s, p) {
			return false
		}
	}
	switch s[len(s)-1] {
	case '.', ':', '!', '?':
		return true
	}
	return false
}
