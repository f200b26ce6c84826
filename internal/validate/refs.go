package validate

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/jorge-barreto/appgen/internal/artifact"
)

// FindingKind classifies a cross-reference problem.
type FindingKind string

const (
	MissingTarget  FindingKind = "missing-target"
	UndefinedClass FindingKind = "undefined-class"
	MissingID      FindingKind = "missing-id"
)

// Finding is one reference that does not resolve within the artifact set.
type Finding struct {
	Artifact string
	Kind     FindingKind
	Ref      string
}

func (f Finding) String() string {
	switch f.Kind {
	case MissingTarget:
		return fmt.Sprintf("%s links to %q, which is not in the file set", f.Artifact, f.Ref)
	case UndefinedClass:
		return fmt.Sprintf("%s uses class %q, which no stylesheet defines", f.Artifact, f.Ref)
	case MissingID:
		return fmt.Sprintf("%s looks up element #%s, which no page defines", f.Artifact, f.Ref)
	}
	return fmt.Sprintf("%s: %s %q", f.Artifact, f.Kind, f.Ref)
}

var (
	getByIDRe   = regexp.MustCompile(`getElementById\(\s*["'\x60]([\w-]+)["'\x60]\s*\)`)
	selectorRe  = regexp.MustCompile(`querySelector(?:All)?\(\s*["'\x60]([^"'\x60]+)["'\x60]`)
	classListRe = regexp.MustCompile(`classList\.(?:add|remove|toggle|contains)\(\s*["'\x60]([\w-]+)["'\x60]`)
	idTokenRe   = regexp.MustCompile(`#([A-Za-z_][\w-]*)`)
	classTokRe  = regexp.MustCompile(`\.([A-Za-z_][\w-]*)`)
)

type markupRefs struct {
	targets []string
	classes []string
	ids     []string
}

// ScanReferences reports local links and asset references that name no
// artifact, classes used in markup that no stylesheet defines, and element
// IDs that scripts look up but no page declares. Classes a script mentions
// are treated as hooks and not reported. The result is sorted.
func ScanReferences(ctx context.Context, arts []artifact.Artifact) []Finding {
	names := make(map[string]bool, len(arts))
	for _, a := range arts {
		names[a.Name] = true
	}

	defined := make(map[string]bool)
	ids := make(map[string]bool)
	scriptClasses := make(map[string]bool)
	haveStyle := false
	pages := make(map[string]markupRefs)

	for _, a := range arts {
		switch a.Kind {
		case artifact.KindStyle:
			haveStyle = true
			for c := range styleClasses(ctx, a.Content) {
				defined[c] = true
			}
		case artifact.KindMarkup:
			refs := scanMarkupRefs(a.Content)
			pages[a.Name] = refs
			for _, id := range refs.ids {
				ids[id] = true
			}
		case artifact.KindBehavior:
			for _, m := range classListRe.FindAllStringSubmatch(a.Content, -1) {
				scriptClasses[m[1]] = true
			}
			for _, sel := range selectorRe.FindAllStringSubmatch(a.Content, -1) {
				for _, m := range classTokRe.FindAllStringSubmatch(sel[1], -1) {
					scriptClasses[m[1]] = true
				}
			}
		}
	}

	seen := make(map[Finding]bool)
	var out []Finding
	add := func(f Finding) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	for _, a := range arts {
		switch a.Kind {
		case artifact.KindMarkup:
			refs := pages[a.Name]
			for _, t := range refs.targets {
				if resolved, ok := resolveLocal(a.Name, t); ok && !names[resolved] {
					add(Finding{Artifact: a.Name, Kind: MissingTarget, Ref: t})
				}
			}
			if haveStyle {
				for _, c := range refs.classes {
					if !defined[c] && !scriptClasses[c] {
						add(Finding{Artifact: a.Name, Kind: UndefinedClass, Ref: c})
					}
				}
			}
		case artifact.KindBehavior:
			for _, id := range scriptIDs(a.Content) {
				if !ids[id] {
					add(Finding{Artifact: a.Name, Kind: MissingID, Ref: id})
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Artifact != out[j].Artifact {
			return out[i].Artifact < out[j].Artifact
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Ref < out[j].Ref
	})
	return out
}

func scanMarkupRefs(src string) markupRefs {
	var r markupRefs
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return r
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		var refAttr string
		switch tok.Data {
		case "a", "link":
			refAttr = "href"
		case "script":
			refAttr = "src"
		}
		for _, attr := range tok.Attr {
			switch {
			case attr.Key == refAttr:
				r.targets = append(r.targets, attr.Val)
			case attr.Key == "class":
				r.classes = append(r.classes, strings.Fields(attr.Val)...)
			case attr.Key == "id":
				if id := strings.TrimSpace(attr.Val); id != "" {
					r.ids = append(r.ids, id)
				}
			}
		}
	}
}

func scriptIDs(src string) []string {
	var out []string
	for _, m := range getByIDRe.FindAllStringSubmatch(src, -1) {
		out = append(out, m[1])
	}
	for _, sel := range selectorRe.FindAllStringSubmatch(src, -1) {
		for _, m := range idTokenRe.FindAllStringSubmatch(sel[1], -1) {
			out = append(out, m[1])
		}
	}
	return out
}

// resolveLocal maps a reference found in from to an artifact name. ok is
// false for external URLs, fragments and other references that cannot name
// an artifact.
func resolveLocal(from, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", false
	}
	if i := strings.IndexByte(ref, ':'); i >= 0 && !strings.ContainsAny(ref[:i], "/?#") {
		return "", false // scheme: http:, mailto:, javascript:, data:
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" || strings.HasSuffix(ref, "/") {
		return "", false
	}
	var resolved string
	if strings.HasPrefix(ref, "/") {
		resolved = path.Clean(strings.TrimPrefix(ref, "/"))
	} else {
		resolved = path.Join(path.Dir(from), ref)
	}
	if strings.HasPrefix(resolved, "../") || resolved == ".." {
		return "", false
	}
	return resolved, true
}
