package generate

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/fileblocks"
)

// kindPrompt is the per-kind part of the generation prompt.
type kindPrompt struct {
	produce string
	rules   []string
}

var kindPrompts = map[artifact.Kind]kindPrompt{
	artifact.KindMarkup: {
		produce: "a complete HTML5 document",
		rules: []string{
			"Start with <!DOCTYPE html> and include <html>, <head> with <meta charset=\"utf-8\"> and <title>, and <body>.",
			"Close every element you open.",
			"Use only class names defined in the stylesheets below; add semantic ids to elements scripts will need.",
			"Do not inline <style> blocks or event-handler attributes.",
		},
	},
	artifact.KindStyle: {
		produce: "a complete CSS stylesheet",
		rules: []string{
			"Style every page in the plan; prefer class selectors over ids.",
			"Include a responsive layout with at least one media query.",
			"Do not use @import or reference images that are not in the plan.",
		},
	},
	artifact.KindBehavior: {
		produce: "a complete browser JavaScript file",
		rules: []string{
			"Plain JavaScript, no modules, no external libraries unless listed as global dependencies.",
			"Only look up element ids and classes that exist in the pages below, and guard every lookup against null.",
			"Wait for DOMContentLoaded before touching the page.",
		},
	},
}

// promptInput is everything one generation prompt embeds.
type promptInput struct {
	spec     artifact.Spec
	features artifact.Features
	manifest *artifact.Manifest
	deps     map[string]artifact.Artifact
}

func buildPrompt(in promptInput) string {
	kp := kindPrompts[in.spec.Kind]
	var b strings.Builder

	fmt.Fprintf(&b, "You are writing %s for a static web application.\n\n", kp.produce)
	fmt.Fprintf(&b, "File: %s\nPurpose: %s\n\n", in.spec.Name, in.spec.Purpose)

	b.WriteString("## Application\n\n")
	fmt.Fprintf(&b, "%s\n", strings.TrimSpace(in.features.Description))
	writeList(&b, "Features", in.features.Features)
	writeList(&b, "Functional requirements", in.features.Requirements)
	writeList(&b, "UI components", in.features.UISurfaces)
	writeList(&b, "Data requirements", in.features.DataNeeds)
	b.WriteString("\n")

	if m := in.manifest; m != nil {
		fmt.Fprintf(&b, "## Project %s\n\nFiles in the plan:\n", m.ProjectName)
		for _, s := range m.Specs {
			fmt.Fprintf(&b, "- %s (%s): %s\n", s.Name, s.Kind, s.Purpose)
		}
		if len(m.Navigation) > 0 {
			b.WriteString("\nNavigation:\n")
			for _, n := range m.Navigation {
				fmt.Fprintf(&b, "- %s -> %s\n", n.Label, relPath(in.spec.Name, n.Target))
			}
		}
		if len(m.GlobalDependencies) > 0 {
			fmt.Fprintf(&b, "\nGlobal dependencies: %s\n", strings.Join(m.GlobalDependencies, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Rules\n\n")
	for _, r := range kp.rules {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	if in.spec.Kind == artifact.KindMarkup {
		for _, r := range linkRules(in.spec, in.manifest) {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	b.WriteString("\n")

	if len(in.deps) > 0 {
		b.WriteString("## Files Already Written\n\nMatch these exactly: reuse their class names, ids and file names.\n\n")
		b.WriteString(fileblocks.Render(sortedBlocks(in.deps)))
		b.WriteString("\n")
	}

	b.WriteString("## Output Format\n\n")
	fmt.Fprintf(&b, "Produce ONLY one fenced code block with the complete file. No explanation.\n\n```%s file=%s\n<content>\n```\n",
		in.spec.Kind.Lang(), in.spec.Name)
	return b.String()
}

// linkRules tells a page which stylesheets and scripts to reference, with
// paths relative to the page.
func linkRules(spec artifact.Spec, m *artifact.Manifest) []string {
	if m == nil {
		return nil
	}
	var rules []string
	for _, dep := range spec.DependsOn {
		if s, ok := m.Spec(dep); ok && s.Kind == artifact.KindStyle {
			rules = append(rules, fmt.Sprintf("Link the stylesheet with <link rel=\"stylesheet\" href=%q>.", relPath(spec.Name, dep)))
		}
	}
	for _, s := range m.Specs {
		if s.Kind != artifact.KindBehavior {
			continue
		}
		for _, d := range s.DependsOn {
			if d == spec.Name {
				rules = append(rules, fmt.Sprintf("Load the script at the end of <body> with <script src=%q></script>.", relPath(spec.Name, s.Name)))
				break
			}
		}
	}
	return rules
}

func sortedBlocks(deps map[string]artifact.Artifact) []fileblocks.FileBlock {
	names := make([]string, 0, len(deps))
	for n := range deps {
		names = append(names, n)
	}
	sort.Strings(names)
	blocks := make([]fileblocks.FileBlock, 0, len(names))
	for _, n := range names {
		a := deps[n]
		blocks = append(blocks, fileblocks.FileBlock{Path: a.Name, Lang: a.Kind.Lang(), Content: a.Content})
	}
	return blocks
}

// relPath returns target relative to the directory of from.
func relPath(from, target string) string {
	rel, err := filepath.Rel(path.Dir(from), target)
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

const retryFeedback = `

IMPORTANT: Your previous attempt was rejected:
- %s

Try again. Output ONLY one fenced code block containing the complete, well-formed file.`
