package validate

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Elements whose end tag the HTML parser infers; leaving them open is not
// reported.
var optionalClose = map[string]bool{
	"html": true, "head": true, "body": true, "p": true, "li": true,
	"dt": true, "dd": true, "option": true, "optgroup": true, "tr": true,
	"td": true, "th": true, "thead": true, "tbody": true, "tfoot": true,
	"colgroup": true, "caption": true, "rp": true, "rt": true,
}

var headOnly = map[string]bool{
	"title": true, "meta": true, "link": true, "base": true, "style": true,
}

type markupScan struct {
	doctype, html, head, body bool
	problems                  []string
}

func checkMarkup(src string) []string {
	if strings.TrimSpace(src) == "" {
		return []string{"document is empty"}
	}
	s := scanMarkup(src)
	var problems []string
	if !s.doctype {
		problems = append(problems, "missing <!DOCTYPE html>")
	}
	for _, req := range []struct {
		seen bool
		tag  string
	}{{s.html, "html"}, {s.head, "head"}, {s.body, "body"}} {
		if !req.seen {
			problems = append(problems, fmt.Sprintf("missing <%s> element", req.tag))
		}
	}
	return append(problems, s.problems...)
}

func scanMarkup(src string) markupScan {
	var s markupScan
	var stack []string
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				s.problems = append(s.problems, "tokenizer: "+err.Error())
			}
			for i := len(stack) - 1; i >= 0; i-- {
				if !optionalClose[stack[i]] {
					s.problems = append(s.problems, fmt.Sprintf("unclosed <%s>", stack[i]))
				}
			}
			return s
		case html.DoctypeToken:
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(string(z.Text()))), "html") {
				s.doctype = true
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch tag {
			case "html":
				s.html = true
			case "head":
				s.head = true
			case "body":
				s.body = true
			}
			if tt == html.StartTagToken && !voidElements[tag] {
				stack = append(stack, tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			idx := lastIndex(stack, tag)
			if idx < 0 {
				if !voidElements[tag] {
					s.problems = append(s.problems, fmt.Sprintf("stray </%s>", tag))
				}
				continue
			}
			for i := len(stack) - 1; i > idx; i-- {
				if !optionalClose[stack[i]] {
					s.problems = append(s.problems, fmt.Sprintf("<%s> not closed before </%s>", stack[i], tag))
				}
			}
			stack = stack[:idx]
		}
	}
}

// repairMarkup balances the element tree and supplies the doctype and the
// html/head/body skeleton when any of it is missing. Content that is already
// well formed passes through byte for byte.
func repairMarkup(src string) string {
	s := scanMarkup(src)
	if s.html && s.head && s.body {
		out := balanceMarkup(src)
		if !s.doctype {
			out = "<!DOCTYPE html>\n" + out
		}
		return out
	}
	return rebuildMarkup(src)
}

// balanceMarkup re-emits every token verbatim except stray end tags, writes
// the closers an end tag implies, and closes whatever is still open at EOF.
func balanceMarkup(src string) string {
	var b strings.Builder
	var stack []string
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw())
		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); !voidElements[tag] {
				stack = append(stack, tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			idx := lastIndex(stack, tag)
			if idx < 0 {
				continue
			}
			for i := len(stack) - 1; i > idx; i-- {
				b.WriteString("</" + stack[i] + ">")
			}
			stack = stack[:idx]
		}
		b.WriteString(raw)
	}
	closeAll(&b, stack)
	return b.String()
}

// rebuildMarkup drops whatever skeleton tags exist, routes leading head-only
// elements into <head> and everything else into a balanced <body>.
func rebuildMarkup(src string) string {
	var head, body strings.Builder
	var stack []string
	capture := "" // head element whose contents are being routed to <head>
	started := false

	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw())
		name, _ := z.TagName()
		tag := string(name)

		if capture != "" {
			head.WriteString(raw)
			if tt == html.EndTagToken && tag == capture {
				capture = ""
				head.WriteByte('\n')
			}
			continue
		}

		switch tt {
		case html.DoctypeToken:
			continue
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			if tag == "html" || tag == "head" || tag == "body" {
				continue
			}
		}

		if !started && len(stack) == 0 {
			switch tt {
			case html.StartTagToken, html.SelfClosingTagToken:
				if headOnly[tag] {
					head.WriteString(raw)
					if tt == html.StartTagToken && !voidElements[tag] {
						capture = tag
					} else {
						head.WriteByte('\n')
					}
					continue
				}
			case html.TextToken:
				if strings.TrimSpace(raw) == "" {
					continue
				}
			case html.CommentToken:
				head.WriteString(raw)
				continue
			}
		}

		started = true
		switch tt {
		case html.StartTagToken:
			if !voidElements[tag] {
				stack = append(stack, tag)
			}
		case html.EndTagToken:
			idx := lastIndex(stack, tag)
			if idx < 0 {
				continue
			}
			for i := len(stack) - 1; i > idx; i-- {
				body.WriteString("</" + stack[i] + ">")
			}
			stack = stack[:idx]
		}
		body.WriteString(raw)
	}
	if capture != "" {
		head.WriteString("</" + capture + ">\n")
	}
	closeAll(&body, stack)

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	if !strings.Contains(strings.ToLower(head.String()), "charset") {
		b.WriteString("<meta charset=\"utf-8\">\n")
	}
	b.WriteString(head.String())
	b.WriteString("</head>\n<body>\n")
	b.WriteString(strings.TrimSpace(body.String()))
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

func closeAll(b *strings.Builder, stack []string) {
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteString("</" + stack[i] + ">")
	}
}

func lastIndex(stack []string, tag string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == tag {
			return i
		}
	}
	return -1
}
