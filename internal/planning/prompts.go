package planning

import (
	"fmt"
	"strings"

	"github.com/jorge-barreto/appgen/internal/artifact"
)

// Previous summarizes an earlier run the new request refines.
type Previous struct {
	Request  string
	Features *artifact.Features
	Files    []string
}

// buildFeaturesPrompt embeds the request, and the earlier run when the user
// is iterating, ahead of the exact JSON shape expected back.
func buildFeaturesPrompt(request string, prev *Previous) string {
	var b strings.Builder
	b.WriteString(featuresPromptPrefix)
	if prev != nil {
		b.WriteString("## Previous Request\n\n")
		b.WriteString(strings.TrimSpace(prev.Request))
		b.WriteString("\n\n")
		if prev.Features != nil {
			writeFeatures(&b, *prev.Features)
		}
		if len(prev.Files) > 0 {
			b.WriteString("Files produced last time: ")
			b.WriteString(strings.Join(prev.Files, ", "))
			b.WriteString("\n\n")
		}
		b.WriteString("The new request below refines or extends the previous one. Carry over what it does not change.\n\n")
	}
	b.WriteString("## Request\n\n")
	b.WriteString(strings.TrimSpace(request))
	b.WriteString(featuresPromptSuffix)
	return b.String()
}

func buildPlanPrompt(f artifact.Features) string {
	var b strings.Builder
	b.WriteString(planPromptPrefix)
	writeFeatures(&b, f)
	b.WriteString(planPromptSuffix)
	return b.String()
}

func writeFeatures(b *strings.Builder, f artifact.Features) {
	b.WriteString("## Feature Specification\n\n")
	fmt.Fprintf(b, "Description: %s\n", strings.TrimSpace(f.Description))
	writeList(b, "Features", f.Features)
	writeList(b, "Functional requirements", f.Requirements)
	writeList(b, "UI components", f.UISurfaces)
	writeList(b, "Data requirements", f.DataNeeds)
	b.WriteString("\n")
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

const featuresPromptPrefix = `You are analyzing a request for a static web application built only from HTML, CSS and JavaScript files. There is no server and no build step.

Your job: read the request and describe what the application must do.

`

const featuresPromptSuffix = `

## Output Format

Respond with ONLY a JSON object of exactly this shape. No prose, no code fences.

{
  "description": "one paragraph restating the application",
  "features": ["short feature name", "..."],
  "functional_requirements": ["what the user can do", "..."],
  "ui_components": ["navigation bar", "hero section", "..."],
  "data_requirements": ["data shown or stored client-side", "..."]
}

Keep every list ordered by importance. Use empty lists rather than omitting keys.
`

const planPromptPrefix = `You are planning the files of a static web application built only from HTML, CSS and JavaScript files. Each file will be written separately, in dependency order, by another model that sees only the files you list as its dependencies.

`

const planPromptSuffix = `## Rules

- Every file has a kind: "markup" (.html), "style" (.css) or "behavior" (.js).
- Use exactly one shared stylesheet unless the request clearly needs more. Every page depends on it.
- A script depends on the pages whose elements it looks up, so it can reuse their element IDs.
- Pages link to each other by file name; list every page the navigation needs.
- Names are relative paths such as "index.html" or "pages/about.html". No absolute paths, no "..".
- depends_on may only name files in this list, never the file itself, and must not form a cycle.

## Output Format

Respond with ONLY a JSON object of exactly this shape. No prose, no code fences.

{
  "project_name": "short-kebab-name",
  "files": [
    {"name": "styles.css", "kind": "style", "purpose": "shared look and layout", "depends_on": []},
    {"name": "index.html", "kind": "markup", "purpose": "landing page", "depends_on": ["styles.css"]},
    {"name": "script.js", "kind": "behavior", "purpose": "menu toggle", "depends_on": ["index.html"]}
  ],
  "dependencies": ["external CDN libraries, if any"],
  "navigation": [{"label": "Home", "target": "index.html"}]
}
`
