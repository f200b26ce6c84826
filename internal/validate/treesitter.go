package validate

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/javascript"
)

// maxSyntaxErrors bounds how many ERROR/MISSING nodes are reported.
const maxSyntaxErrors = 5

// parseTree parses src with a fresh parser; parsers are not safe for
// concurrent use. The caller closes the returned tree.
func parseTree(ctx context.Context, lang *sitter.Language, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)
	return parser.ParseCtx(ctx, nil, src)
}

// syntaxErrors collects ERROR and MISSING nodes as human-readable problems.
func syntaxErrors(node *sitter.Node, src []byte) []string {
	var out []string
	var walk func(n *sitter.Node, depth int)
	walk = func(n *sitter.Node, depth int) {
		if depth > 1000 || len(out) >= maxSyntaxErrors {
			return
		}
		if n.IsMissing() {
			out = append(out, fmt.Sprintf("line %d: missing %s", n.StartPoint().Row+1, n.Type()))
		} else if n.IsError() {
			snippet := strings.TrimSpace(n.Content(src))
			if len(snippet) > 40 {
				snippet = snippet[:40] + "..."
			}
			out = append(out, fmt.Sprintf("line %d: syntax error near %q", n.StartPoint().Row+1, snippet))
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), depth+1)
		}
	}
	walk(node, 0)
	if len(out) == 0 && node.HasError() {
		out = append(out, "syntax error")
	}
	return out
}

// countNodes counts descendants of the given type.
func countNodes(n *sitter.Node, typ string) int {
	count := 0
	if n.Type() == typ {
		count++
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		count += countNodes(n.NamedChild(i), typ)
	}
	return count
}

func checkStyle(ctx context.Context, src string) []string {
	if strings.TrimSpace(src) == "" {
		return []string{"stylesheet is empty"}
	}
	data := []byte(src)
	tree, err := parseTree(ctx, css.GetLanguage(), data)
	if err != nil {
		return []string{"parsing stylesheet: " + err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		problems := syntaxErrors(root, data)
		return append(problems, delimiterProblems(src, cssSyntax)...)
	}
	if countNodes(root, "rule_set") == 0 {
		return []string{"stylesheet has no rule sets"}
	}
	return nil
}

func checkBehavior(ctx context.Context, src string) []string {
	if strings.TrimSpace(src) == "" {
		return []string{"script is empty"}
	}
	data := []byte(src)
	tree, err := parseTree(ctx, javascript.GetLanguage(), data)
	if err != nil {
		return []string{"parsing script: " + err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		problems := syntaxErrors(root, data)
		return append(problems, delimiterProblems(src, jsSyntax)...)
	}
	statements := 0
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if root.NamedChild(i).Type() != "comment" {
			statements++
		}
	}
	if statements == 0 {
		return []string{"script has no statements"}
	}
	return nil
}

// styleClasses returns the class names defined by selectors in src.
func styleClasses(ctx context.Context, src string) map[string]bool {
	classes := make(map[string]bool)
	data := []byte(src)
	tree, err := parseTree(ctx, css.GetLanguage(), data)
	if err != nil {
		return classes
	}
	defer tree.Close()
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "class_name" {
			classes[n.Content(data)] = true
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())
	return classes
}
