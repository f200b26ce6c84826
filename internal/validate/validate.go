// Package validate checks generated artifacts for structural soundness,
// applies one deterministic repair, and supplies fallbacks.
//
// Checks are structural only: markup is tokenized, stylesheets and scripts
// are parsed into syntax trees. Nothing is executed.
package validate

import (
	"context"

	"github.com/jorge-barreto/appgen/internal/artifact"
)

// Check returns the structural problems found in content. An empty result
// means the content is valid for its kind.
func Check(ctx context.Context, kind artifact.Kind, content string) []string {
	switch kind {
	case artifact.KindMarkup:
		return checkMarkup(content)
	case artifact.KindStyle:
		return checkStyle(ctx, content)
	case artifact.KindBehavior:
		return checkBehavior(ctx, content)
	}
	return []string{"unknown artifact kind " + string(kind)}
}

// Repair applies the deterministic fix for kind: missing markers are
// inserted, stray closers dropped and open delimiters closed.
func Repair(kind artifact.Kind, content string) string {
	switch kind {
	case artifact.KindMarkup:
		return repairMarkup(content)
	case artifact.KindStyle:
		return balanceDelimiters(content, cssSyntax)
	case artifact.KindBehavior:
		return balanceDelimiters(content, jsSyntax)
	}
	return content
}

// Outcome is the result of vetting one candidate.
type Outcome struct {
	Content  string
	Status   artifact.Status
	Problems []string // findings on the candidate as received
}

// Vet validates content, repairing it once if needed. ok is false when the
// repaired content is still invalid; Outcome.Problems then lists what the
// repair could not fix.
func Vet(ctx context.Context, kind artifact.Kind, content string) (Outcome, bool) {
	problems := Check(ctx, kind, content)
	if len(problems) == 0 {
		return Outcome{Content: content, Status: artifact.StatusValid}, true
	}
	repaired := Repair(kind, content)
	if remaining := Check(ctx, kind, repaired); len(remaining) > 0 {
		return Outcome{Content: content, Problems: remaining}, false
	}
	return Outcome{Content: repaired, Status: artifact.StatusRepaired, Problems: problems}, true
}
