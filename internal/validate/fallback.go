package validate

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/jorge-barreto/appgen/internal/artifact"
)

const fallbackMarkup = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%[1]s</title>
</head>
<body>
<main>
<h1>%[1]s</h1>
<p>%[2]s</p>
<p>This page could not be generated. Run the generator again to replace it.</p>
</main>
</body>
</html>
`

const fallbackStyle = `body {
  margin: 0;
  padding: 2rem;
  font-family: system-ui, sans-serif;
  line-height: 1.5;
  color: #222;
}

main {
  max-width: 60rem;
  margin: 0 auto;
}
`

const fallbackBehavior = `document.addEventListener("DOMContentLoaded", function () {
  document.documentElement.classList.add("js");
});
`

// Fallback returns minimal, always-valid content for spec. It references no
// other artifact, so a set made partly of fallbacks stays internally intact.
func Fallback(spec artifact.Spec) string {
	switch spec.Kind {
	case artifact.KindMarkup:
		title := strings.TrimSuffix(path.Base(spec.Name), path.Ext(spec.Name))
		purpose := spec.Purpose
		if purpose == "" {
			purpose = "Placeholder page."
		}
		return fmt.Sprintf(fallbackMarkup, html.EscapeString(title), html.EscapeString(purpose))
	case artifact.KindStyle:
		return fallbackStyle
	case artifact.KindBehavior:
		return fallbackBehavior
	}
	return ""
}
