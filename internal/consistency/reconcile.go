// Package consistency runs a best-effort pass that lets the model fix
// cross-file inconsistencies in a finished artifact set.
package consistency

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/completion"
	"github.com/jorge-barreto/appgen/internal/fileblocks"
	"github.com/jorge-barreto/appgen/internal/metrics"
	"github.com/jorge-barreto/appgen/internal/validate"
)

type Reconciler struct {
	client  completion.Completer
	log     *zap.Logger
	metrics *metrics.Recorder
}

type Option func(*Reconciler)

func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Reconciler) { r.metrics = m }
}

func New(client completion.Completer, opts ...Option) *Reconciler {
	r := &Reconciler{client: client, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile returns arts with any accepted revisions applied, in the same
// order, plus the names whose content changed. It never adds, removes or
// renames artifacts and never touches fallbacks. A failed completion leaves
// arts as they were.
func (r *Reconciler) Reconcile(ctx context.Context, features artifact.Features, arts []artifact.Artifact) ([]artifact.Artifact, []string) {
	out := make([]artifact.Artifact, len(arts))
	copy(out, arts)
	if len(arts) == 0 {
		return out, nil
	}

	findings := validate.ScanReferences(ctx, arts)
	raw, err := r.client.Complete(ctx, buildPrompt(features, arts, findings), completion.Options{Purpose: "reconcile"})
	if err != nil {
		r.log.Warn("consistency pass skipped", zap.Error(err))
		return out, nil
	}

	index := make(map[string]int, len(out))
	for i, a := range out {
		index[a.Name] = i
	}

	var touched []string
	seen := make(map[string]bool)
	for _, fb := range fileblocks.Parse(raw) {
		i, ok := index[fb.Path]
		if !ok {
			r.log.Debug("ignoring revision of unknown file", zap.String("artifact", fb.Path))
			continue
		}
		if seen[fb.Path] {
			continue
		}
		seen[fb.Path] = true

		cur := out[i]
		if cur.Status == artifact.StatusFallback {
			continue
		}
		candidate := validate.Strip(cur.Kind, fb.Content)
		if candidate == cur.Content {
			continue
		}
		res, ok := validate.Vet(ctx, cur.Kind, candidate)
		if !ok {
			r.log.Info("revision rejected", zap.String("artifact", cur.Name), zap.Strings("problems", res.Problems))
			continue
		}
		out[i] = artifact.Artifact{
			Name:     cur.Name,
			Kind:     cur.Kind,
			Content:  res.Content,
			Status:   res.Status,
			Problems: res.Problems,
		}
		touched = append(touched, cur.Name)
		r.metrics.Artifact(string(cur.Kind), "reconciled")
	}
	return out, touched
}

func buildPrompt(features artifact.Features, arts []artifact.Artifact, findings []validate.Finding) string {
	var b strings.Builder
	b.WriteString(reconcilePrefix)
	fmt.Fprintf(&b, "\n## Application\n\n%s\n\n## Files\n\n", strings.TrimSpace(features.Description))

	blocks := make([]fileblocks.FileBlock, len(arts))
	for i, a := range arts {
		blocks[i] = fileblocks.FileBlock{Path: a.Name, Lang: a.Kind.Lang(), Content: a.Content}
	}
	b.WriteString(fileblocks.Render(blocks))

	b.WriteString("\n## Known Problems\n\n")
	if len(findings) == 0 {
		b.WriteString("None detected automatically. Check that class names, ids and links agree across files.\n")
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString(reconcileSuffix)
	return b.String()
}

const reconcilePrefix = `You are reviewing a generated static web application for consistency between its files.
Pages must only use classes the stylesheets define, scripts must only look up ids the pages declare,
and every local link must point at a file in the set.`

const reconcileSuffix = `
## Output Format

Output ONLY the files you change, each as a complete fenced block using the same header:

` + "```<lang> file=<name>\n<complete file content>\n```" + `

Do not rename, add or delete files. If nothing needs to change, output nothing.`
