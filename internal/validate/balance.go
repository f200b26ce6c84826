package validate

import (
	"fmt"
	"strings"
)

// syntax describes the lexical features the delimiter scanner must skip over.
type syntax struct {
	lineComment bool // "//" comments
	template    bool // `...` literals
}

var (
	cssSyntax = syntax{}
	jsSyntax  = syntax{lineComment: true, template: true}
)

var closerFor = map[byte]byte{'{': '}', '(': ')', '[': ']'}

// delimiterProblems reports unbalanced braces, brackets and parens outside
// strings and comments, and literals or comments that never close.
func delimiterProblems(src string, syn syntax) []string {
	var problems []string
	var stack []byte
	scan(src, syn, func(c byte, at int) {
		switch c {
		case '{', '(', '[':
			stack = append(stack, c)
		default:
			if len(stack) == 0 || closerFor[stack[len(stack)-1]] != c {
				problems = append(problems, fmt.Sprintf("unexpected '%c' on line %d", c, lineAt(src, at)))
				return
			}
			stack = stack[:len(stack)-1]
		}
	}, func(open string, closer string, at int) {
		problems = append(problems, fmt.Sprintf("unterminated %s on line %d", open, lineAt(src, at)))
	})
	for i := len(stack) - 1; i >= 0; i-- {
		problems = append(problems, fmt.Sprintf("missing '%c'", closerFor[stack[i]]))
	}
	return problems
}

// balanceDelimiters drops closers that match nothing, closes intervening
// openers when a closer matches one further down the stack, terminates open
// literals and comments, and appends closers for whatever is still open.
func balanceDelimiters(src string, syn syntax) string {
	var b strings.Builder
	b.Grow(len(src) + 8)
	var stack []byte
	last := 0
	scan(src, syn, func(c byte, at int) {
		switch c {
		case '{', '(', '[':
			stack = append(stack, c)
			return
		}
		idx := -1
		for i := len(stack) - 1; i >= 0; i-- {
			if closerFor[stack[i]] == c {
				idx = i
				break
			}
		}
		b.WriteString(src[last:at])
		last = at
		if idx < 0 {
			last = at + 1 // drop the stray closer
			return
		}
		for i := len(stack) - 1; i > idx; i-- {
			b.WriteByte(closerFor[stack[i]])
		}
		stack = stack[:idx]
	}, func(_ string, closer string, at int) {
		b.WriteString(src[last:at])
		b.WriteString(closer)
		last = at
	})
	b.WriteString(src[last:])
	if len(stack) > 0 {
		b.WriteByte('\n')
		for i := len(stack) - 1; i >= 0; i-- {
			b.WriteByte(closerFor[stack[i]])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// scan calls visit for every delimiter byte outside literals and comments.
// unterminated receives the position where an open literal or comment should
// have been closed and the text that would close it; scanning then resumes
// from that position.
func scan(src string, syn syntax, visit func(c byte, at int), unterminated func(open, closer string, at int)) {
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				unterminated("comment", "*/", len(src))
				return
			}
			i += end + 3
		case syn.lineComment && c == '/' && i+1 < len(src) && src[i+1] == '/':
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				return
			}
			i += end
		case c == '"' || c == '\'' || (syn.template && c == '`'):
			end, closed := quoteEnd(src, i, c)
			if !closed {
				kind := "string"
				if c == '`' {
					kind = "template literal"
				}
				unterminated(kind, string(c), end)
			}
			i = end
			if !closed {
				i-- // re-examine the newline or stop at EOF
			}
		case c == '{' || c == '}' || c == '(' || c == ')' || c == '[' || c == ']':
			visit(c, i)
		}
	}
}

// quoteEnd finds the quote closing the literal opened at i. Plain strings may
// not span a raw newline; when one is hit, the newline's index is returned
// with closed set to false. At EOF len(src) is returned.
func quoteEnd(src string, i int, q byte) (int, bool) {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j, true
		case '\n':
			if q != '`' {
				return j, false
			}
		}
	}
	return len(src), false
}

func lineAt(src string, at int) int {
	if at > len(src) {
		at = len(src)
	}
	return strings.Count(src[:at], "\n") + 1
}
