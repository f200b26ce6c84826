// Package planning turns a request into a FeatureSpec and a file manifest,
// one completion call each.
package planning

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/completion"
	"github.com/jorge-barreto/appgen/internal/metrics"
	"github.com/jorge-barreto/appgen/internal/structured"
)

// Planner issues the two planning calls.
type Planner struct {
	client  completion.Completer
	strict  bool
	log     *zap.Logger
	metrics *metrics.Recorder
}

// Option configures a Planner.
type Option func(*Planner)

// WithStrict makes unparseable planning output abort with
// structured.ErrMalformedOutput instead of degrading to a default.
func WithStrict(strict bool) Option {
	return func(p *Planner) { p.strict = strict }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.log = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(p *Planner) { p.metrics = m }
}

func New(client completion.Completer, opts ...Option) *Planner {
	p := &Planner{client: client, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// extract runs the extractor for one call site. In lenient mode a total
// failure yields a nil object and ok=false so the caller substitutes its
// default; in strict mode it is an error.
func (p *Planner) extract(site, raw string, keys ...string) (structured.Result, bool, error) {
	res, err := structured.Extract(raw, structured.WithKeys(keys...))
	if err != nil {
		p.metrics.ExtractionTier(site, structured.TierDefault.String())
		if p.strict {
			return structured.Result{}, false, err
		}
		p.log.Warn("planning output unparseable, using default",
			zap.String("site", site), zap.Error(err))
		return structured.Result{Tier: structured.TierDefault, Degraded: true}, false, nil
	}
	p.metrics.ExtractionTier(site, res.Tier.String())
	if res.Tier != structured.TierDirect {
		p.log.Debug("planning output repaired",
			zap.String("site", site), zap.Stringer("tier", res.Tier))
	}
	return res, true, nil
}

// PlanManifest asks for the file manifest, normalizes it and validates it.
// A manifest that fails validation is returned as an *artifact.ManifestError
// and nothing downstream runs.
func (p *Planner) PlanManifest(ctx context.Context, f artifact.Features) (*artifact.Manifest, error) {
	raw, err := p.client.Complete(ctx, buildPlanPrompt(f), completion.Options{Purpose: "plan"})
	if err != nil {
		return nil, fmt.Errorf("planning structure: %w", err)
	}

	res, ok, err := p.extract("plan", raw, "project_name", "files", "dependencies", "navigation")
	if err != nil {
		return nil, fmt.Errorf("planning structure: %w", err)
	}
	var m *artifact.Manifest
	if ok {
		m, ok = manifestFrom(res.Value)
		if !ok && p.strict {
			return nil, fmt.Errorf("planning structure: %w: no file list in plan", structured.ErrMalformedOutput)
		}
	}
	if !ok {
		m = DefaultManifest(f)
	}
	m.Degraded = m.Degraded || res.Degraded

	if err := Normalize(m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	p.log.Info("manifest planned",
		zap.String("project", m.ProjectName),
		zap.Int("files", len(m.Specs)),
		zap.Bool("degraded", m.Degraded))
	return m, nil
}

// DefaultManifest is the plan used when the model's plan cannot be read:
// one page, one stylesheet, one script.
func DefaultManifest(f artifact.Features) *artifact.Manifest {
	return &artifact.Manifest{
		ProjectName: "site",
		Specs: []artifact.Spec{
			{Name: "styles.css", Kind: artifact.KindStyle, Purpose: "Shared look and layout"},
			{Name: "index.html", Kind: artifact.KindMarkup, Purpose: firstNonEmpty(f.Description, "Main page"), DependsOn: []string{"styles.css"}},
			{Name: "script.js", Kind: artifact.KindBehavior, Purpose: "Page interactivity", DependsOn: []string{"index.html"}},
		},
		Navigation: []artifact.NavItem{{Label: "Home", Target: "index.html"}},
		Degraded:   true,
	}
}

// manifestFrom reads a manifest out of an extracted value. A bare array is
// taken as the file list.
func manifestFrom(v any) (*artifact.Manifest, bool) {
	var obj map[string]any
	var files []any
	switch t := v.(type) {
	case map[string]any:
		obj = t
		files, _ = first(obj, "files", "artifacts", "manifest").([]any)
	case []any:
		files = t
	}
	if len(files) == 0 {
		return nil, false
	}

	m := &artifact.Manifest{
		ProjectName:        str(first(obj, "project_name", "name", "title")),
		GlobalDependencies: stringList(first(obj, "dependencies", "libraries")),
	}
	for _, fv := range files {
		fo, ok := fv.(map[string]any)
		if !ok {
			if name := str(fv); name != "" {
				m.Specs = append(m.Specs, artifact.Spec{Name: name})
			}
			continue
		}
		kindWord := str(first(fo, "kind", "type"))
		m.Specs = append(m.Specs, artifact.Spec{
			Name:      str(first(fo, "name", "path", "filename", "file")),
			Kind:      artifact.Kind(kindWord),
			Purpose:   str(first(fo, "purpose", "description")),
			DependsOn: stringList(first(fo, "depends_on", "dependencies", "deps")),
		})
	}
	if navs, ok := first(obj, "navigation", "nav").([]any); ok {
		for _, nv := range navs {
			no, ok := nv.(map[string]any)
			if !ok {
				continue
			}
			item := artifact.NavItem{
				Label:  str(first(no, "label", "title", "name")),
				Target: str(first(no, "target", "href", "url", "path")),
			}
			if item.Label != "" && item.Target != "" {
				m.Navigation = append(m.Navigation, item)
			}
		}
	}
	return m, true
}

// Normalize canonicalizes a manifest in place: trimmed names, kinds resolved
// through aliases and extensions, de-duplicated dependencies, and the shared
// stylesheet added to every page when exactly one stylesheet exists.
func Normalize(m *artifact.Manifest) error {
	var styles []string
	for i := range m.Specs {
		s := &m.Specs[i]
		s.Name = cleanName(s.Name)
		s.Purpose = strings.TrimSpace(s.Purpose)
		kind, ok := artifact.ParseKind(string(s.Kind), s.Name)
		if !ok {
			return &artifact.ManifestError{
				Kind:  artifact.ErrInvalidSpec,
				Names: []string{s.Name},
				Msg:   fmt.Sprintf("unknown kind %q", s.Kind),
			}
		}
		s.Kind = kind
		if kind == artifact.KindStyle {
			styles = append(styles, s.Name)
		}

		seen := make(map[string]bool, len(s.DependsOn))
		deps := s.DependsOn[:0]
		for _, d := range s.DependsOn {
			d = cleanName(d)
			if d == "" || seen[d] {
				continue
			}
			seen[d] = true
			deps = append(deps, d)
		}
		s.DependsOn = deps
	}

	if len(styles) == 1 {
		shared := styles[0]
		for i := range m.Specs {
			s := &m.Specs[i]
			if s.Kind == artifact.KindMarkup && !contains(s.DependsOn, shared) {
				s.DependsOn = append([]string{shared}, s.DependsOn...)
			}
		}
	}

	for i := range m.Navigation {
		m.Navigation[i].Target = cleanName(m.Navigation[i].Target)
	}
	m.ProjectName = strings.TrimSpace(m.ProjectName)
	if m.ProjectName == "" {
		m.ProjectName = "site"
	}
	return nil
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	for strings.HasPrefix(name, "./") {
		name = name[2:]
	}
	return strings.TrimLeft(name, "/")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
