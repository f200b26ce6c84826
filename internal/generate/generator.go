// Package generate produces the content of one planned artifact.
package generate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/completion"
	"github.com/jorge-barreto/appgen/internal/metrics"
	"github.com/jorge-barreto/appgen/internal/validate"
)

// Generator writes artifacts through a completion client.
type Generator struct {
	client     completion.Completer
	regenerate int
	log        *zap.Logger
	metrics    *metrics.Recorder
}

// Option configures a Generator.
type Option func(*Generator)

// WithRegenerate sets how many extra completion calls, each carrying the
// validator's feedback, are made after the first candidate fails.
func WithRegenerate(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.regenerate = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(g *Generator) { g.metrics = m }
}

func New(client completion.Completer, opts ...Option) *Generator {
	g := &Generator{client: client, regenerate: 1, log: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate never fails: the result is valid, repaired, or the kind's
// fallback. deps holds the already-produced artifacts spec depends on.
func (g *Generator) Generate(ctx context.Context, spec artifact.Spec, features artifact.Features, manifest *artifact.Manifest, deps map[string]artifact.Artifact) artifact.Artifact {
	log := g.log.With(zap.String("artifact", spec.Name), zap.String("kind", string(spec.Kind)))
	prompt := buildPrompt(promptInput{spec: spec, features: features, manifest: manifest, deps: deps})

	var problems []string
	for attempt := 0; attempt <= g.regenerate; attempt++ {
		p := prompt
		if attempt > 0 {
			p += fmt.Sprintf(retryFeedback, strings.Join(problems, "\n- "))
		}
		raw, err := g.client.Complete(ctx, p, completion.Options{Purpose: "artifact"})
		if err != nil {
			log.Warn("completion failed, using fallback", zap.Error(err))
			problems = append(problems, "generation failed: "+err.Error())
			break
		}

		out, ok := validate.Vet(ctx, spec.Kind, validate.Strip(spec.Kind, raw))
		if ok {
			log.Debug("artifact accepted", zap.String("status", string(out.Status)), zap.Int("attempt", attempt+1))
			return g.done(artifact.Artifact{
				Name:     spec.Name,
				Kind:     spec.Kind,
				Content:  out.Content,
				Status:   out.Status,
				Problems: out.Problems,
			})
		}
		problems = out.Problems
		log.Info("candidate rejected", zap.Int("attempt", attempt+1), zap.Strings("problems", problems))
	}

	return g.done(artifact.Artifact{
		Name:     spec.Name,
		Kind:     spec.Kind,
		Content:  validate.Fallback(spec),
		Status:   artifact.StatusFallback,
		Problems: problems,
	})
}

func (g *Generator) done(a artifact.Artifact) artifact.Artifact {
	g.metrics.Artifact(string(a.Kind), string(a.Status))
	return a
}
