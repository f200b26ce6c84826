package structured

import (
	"fmt"
	"strings"
)

// rewrite repairs the common ways model output breaks JSON syntax: raw
// control characters inside strings, stray line breaks between tokens,
// trailing commas, bare property names and invalid escapes. String contents
// are preserved; raw newlines inside strings become \n escapes.
func rewrite(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	var lastSig byte // last non-space byte written outside a string

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case c == '\\':
				if i+1 < len(s) && isEscape(s[i+1]) {
					b.WriteByte(c)
					b.WriteByte(s[i+1])
					i++
				} else {
					b.WriteString(`\\`)
				}
			case c == '"':
				inString = false
				b.WriteByte(c)
				lastSig = c
			case c == '\n':
				b.WriteString(`\n`)
			case c == '\r':
				b.WriteString(`\r`)
			case c == '\t':
				b.WriteString(`\t`)
			case c < 0x20:
				fmt.Fprintf(&b, `\u%04x`, c)
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '\n' || c == '\r' || c == '\t' || c == ' ':
			if out := b.String(); len(out) > 0 && out[len(out)-1] != ' ' {
				b.WriteByte(' ')
			}
		case c == ',':
			if next := nextSignificant(s, i+1); next == '}' || next == ']' {
				continue
			}
			b.WriteByte(c)
			lastSig = c
		case isIdentStart(c) && (lastSig == '{' || lastSig == ','):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			ident := s[i:j]
			if nextSignificant(s, j) == ':' {
				b.WriteByte('"')
				b.WriteString(ident)
				b.WriteByte('"')
				lastSig = '"'
			} else {
				b.WriteString(ident)
				lastSig = ident[len(ident)-1]
			}
			i = j - 1
		default:
			b.WriteByte(c)
			lastSig = c
		}
	}
	return b.String()
}

func isEscape(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func nextSignificant(s string, from int) byte {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\n', '\r', '\t':
			continue
		}
		return s[i]
	}
	return 0
}
