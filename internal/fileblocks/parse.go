// Package fileblocks reads and writes the fenced ```lang file=name blocks used
// to pass whole files through a completion call.
package fileblocks

import (
	"regexp"
	"strings"
)

// FileBlock represents a single extracted file from model output.
type FileBlock struct {
	Path    string // e.g. "pages/about.html"
	Lang    string // fence language tag, may be empty
	Content string // content between the fences
}

var (
	fenceOpenRe = regexp.MustCompile("^```([\\w+-]*)\\s*file=(\\S+)")
	anyFenceRe  = regexp.MustCompile("^```[\\w+-]*\\s*$")
)

// Parse extracts fenced code blocks annotated with file= from text.
// It recognizes opening fences like:
//
//	```html file=index.html
//	```file=styles.css
//	```javascript file=js/app.js
//
// Returns blocks in order of appearance. An unterminated final block is dropped.
func Parse(text string) []FileBlock {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var blocks []FileBlock
	var current *FileBlock
	var body []string

	for _, line := range lines {
		if current != nil {
			if strings.TrimSpace(line) == "```" {
				current.Content = strings.Join(body, "\n")
				blocks = append(blocks, *current)
				current = nil
				continue
			}
			body = append(body, line)
			continue
		}

		if m := fenceOpenRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			current = &FileBlock{Lang: m[1], Path: m[2]}
			body = body[:0]
		}
	}

	return blocks
}

// Render is the inverse of Parse.
func Render(blocks []FileBlock) string {
	var b strings.Builder
	for i, fb := range blocks {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("```")
		if fb.Lang != "" {
			b.WriteString(fb.Lang)
			b.WriteByte(' ')
		}
		b.WriteString("file=")
		b.WriteString(fb.Path)
		b.WriteByte('\n')
		b.WriteString(strings.TrimRight(fb.Content, "\n"))
		b.WriteString("\n```\n")
	}
	return b.String()
}

// Unfence returns the body of the first fenced block in text, annotated or
// not. An opening fence without a closer runs to the end of the text. Text
// with no fence is returned unchanged and ok is false.
func Unfence(text string) (body string, ok bool) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	start := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if start < 0 {
			if anyFenceRe.MatchString(trimmed) || fenceOpenRe.MatchString(trimmed) {
				start = i + 1
			}
			continue
		}
		if trimmed == "```" {
			return strings.Join(lines[start:i], "\n"), true
		}
	}
	if start < 0 {
		return text, false
	}
	return strings.Join(lines[start:], "\n"), true
}
