package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/completion"
	"github.com/jorge-barreto/appgen/internal/metrics"
	"github.com/jorge-barreto/appgen/internal/structured"
)

type stubCompleter struct {
	replies map[string]string
	err     error
	prompts map[string]string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string, opts completion.Options) (string, error) {
	if s.prompts == nil {
		s.prompts = make(map[string]string)
	}
	s.prompts[opts.Purpose] = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.replies[opts.Purpose], nil
}

const marketingPlan = `Here is the plan:
{
  "project_name": "acme-marketing",
  "files": [
    {"name": "index.html", "kind": "html", "purpose": "landing page"},
    {"name": "about.html", "kind": "page", "purpose": "about the company", "depends_on": []},
    {"name": "./contact.html", "type": "markup", "purpose": "contact form", "depends_on": ["styles.css", "styles.css"]},
    {"name": "styles.css", "kind": "stylesheet", "purpose": "shared styles"},
  ],
  "navigation": [{"label": "Home", "target": "index.html"}, {"title": "About", "href": "./about.html"}]
}`

func TestExtractFeatures_Direct(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"features": `{
		"description": "A bakery site",
		"features": ["menu", {"name": "ordering", "description": "online orders"}],
		"functional_requirements": ["browse menu"],
		"ui_components": ["navbar"],
		"data_requirements": []
	}`}}
	f, err := New(stub).ExtractFeatures(context.Background(), "bakery site", nil)
	require.NoError(t, err)
	assert.Equal(t, "A bakery site", f.Description)
	assert.Equal(t, []string{"menu", "ordering"}, f.Features)
	assert.Equal(t, []string{"browse menu"}, f.Requirements)
	assert.Equal(t, []string{"navbar"}, f.UISurfaces)
	assert.Empty(t, f.DataNeeds)
	assert.False(t, f.Degraded)
}

func TestExtractFeatures_DegradesWhenLenient(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	stub := &stubCompleter{replies: map[string]string{"features": "Sorry, I can't do JSON today."}}
	f, err := New(stub, WithMetrics(m)).ExtractFeatures(context.Background(), "  a todo app  ", nil)
	require.NoError(t, err)
	assert.True(t, f.Degraded)
	assert.Equal(t, "a todo app", f.Description)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionTiers.WithLabelValues("features", "default")))
}

func TestExtractFeatures_StrictFails(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"features": "no json"}}
	_, err := New(stub, WithStrict(true)).ExtractFeatures(context.Background(), "x", nil)
	assert.ErrorIs(t, err, structured.ErrMalformedOutput)
}

func TestExtractFeatures_PartialIsDegraded(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"features": `{"description": "shop", "features": ["cart", "search"], "ui_components": ["grid", "foo`}}
	f, err := New(stub).ExtractFeatures(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.True(t, f.Degraded)
	assert.Equal(t, "shop", f.Description)
	assert.Equal(t, []string{"cart", "search"}, f.Features)
	assert.Equal(t, []string{"grid"}, f.UISurfaces)
}

func TestExtractFeatures_CompletionError(t *testing.T) {
	stub := &stubCompleter{err: &completion.Error{Kind: completion.ErrFatalRequest, Attempts: 1, Err: errors.New("401")}}
	_, err := New(stub).ExtractFeatures(context.Background(), "x", nil)
	assert.ErrorIs(t, err, completion.ErrFatalRequest)
}

func TestExtractFeatures_PreviousRunInPrompt(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"features": `{"description": "d"}`}}
	prev := &Previous{
		Request:  "a bakery site",
		Features: &artifact.Features{Description: "Bakery", Features: []string{"menu"}},
		Files:    []string{"index.html", "styles.css"},
	}
	_, err := New(stub).ExtractFeatures(context.Background(), "add a contact page", prev)
	require.NoError(t, err)
	prompt := stub.prompts["features"]
	assert.Contains(t, prompt, "a bakery site")
	assert.Contains(t, prompt, "- menu")
	assert.Contains(t, prompt, "Files produced last time: index.html, styles.css")
	assert.Contains(t, prompt, "add a contact page")
}

func TestPlanManifest_BracketInProse(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"plan": "Per requirement [1] of the brief. " + marketingPlan}}
	m, err := New(stub, WithStrict(true)).PlanManifest(context.Background(), artifact.Features{Description: "marketing site"})
	require.NoError(t, err)
	assert.False(t, m.Degraded)
	assert.Len(t, m.Specs, 4)
	_, ok := m.Spec("index.html")
	assert.True(t, ok)
}

func TestPlanManifest_MarketingSite(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"plan": marketingPlan}}
	m, err := New(stub).PlanManifest(context.Background(), artifact.Features{Description: "build a three-page marketing site"})
	require.NoError(t, err)
	assert.Contains(t, stub.prompts["plan"], "build a three-page marketing site")

	assert.Equal(t, "acme-marketing", m.ProjectName)
	assert.False(t, m.Degraded)
	var pages, styles int
	for _, s := range m.Specs {
		switch s.Kind {
		case artifact.KindMarkup:
			pages++
			assert.Contains(t, s.DependsOn, "styles.css", "page %s", s.Name)
		case artifact.KindStyle:
			styles++
		}
	}
	assert.Equal(t, 3, pages)
	assert.Equal(t, 1, styles)

	contact, ok := m.Spec("contact.html")
	require.True(t, ok)
	assert.Equal(t, []string{"styles.css"}, contact.DependsOn)
	assert.Equal(t, []artifact.NavItem{{Label: "Home", Target: "index.html"}, {Label: "About", Target: "about.html"}}, m.Navigation)
}

func TestPlanManifest_DanglingDependency(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"plan": `{"files": [
		{"name": "index.html", "kind": "markup", "depends_on": ["theme.css"]},
		{"name": "app.js", "kind": "behavior"}
	]}`}}
	_, err := New(stub).PlanManifest(context.Background(), artifact.Features{})
	var me *artifact.ManifestError
	require.ErrorAs(t, err, &me)
	assert.ErrorIs(t, err, artifact.ErrDanglingDependency)
	assert.Equal(t, []string{"index.html", "theme.css"}, me.Names)
}

func TestPlanManifest_UnknownKind(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"plan": `{"files": [{"name": "logo.png", "kind": "image"}]}`}}
	_, err := New(stub).PlanManifest(context.Background(), artifact.Features{})
	assert.ErrorIs(t, err, artifact.ErrInvalidSpec)
	assert.ErrorIs(t, err, artifact.ErrManifest)
}

func TestPlanManifest_KindFromExtension(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"plan": `[
		{"name": "index.htm"}, {"name": "main.css"}, "app.js"
	]`}}
	m, err := New(stub).PlanManifest(context.Background(), artifact.Features{})
	require.NoError(t, err)
	kinds := map[string]artifact.Kind{}
	for _, s := range m.Specs {
		kinds[s.Name] = s.Kind
	}
	assert.Equal(t, map[string]artifact.Kind{
		"index.htm": artifact.KindMarkup,
		"main.css":  artifact.KindStyle,
		"app.js":    artifact.KindBehavior,
	}, kinds)
	assert.Equal(t, "site", m.ProjectName)
}

func TestPlanManifest_DefaultWhenUnreadable(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"plan": "I would suggest a homepage."}}
	m, err := New(stub).PlanManifest(context.Background(), artifact.Features{Description: "portfolio"})
	require.NoError(t, err)
	assert.True(t, m.Degraded)
	assert.Equal(t, []string{"styles.css", "index.html", "script.js"}, m.Names())
	idx, _ := m.Spec("index.html")
	assert.Equal(t, "portfolio", idx.Purpose)
}

func TestPlanManifest_DefaultWhenNoFiles(t *testing.T) {
	stub := &stubCompleter{replies: map[string]string{"plan": `{"project_name": "x"}`}}
	m, err := New(stub).PlanManifest(context.Background(), artifact.Features{})
	require.NoError(t, err)
	assert.True(t, m.Degraded)

	_, err = New(stub, WithStrict(true)).PlanManifest(context.Background(), artifact.Features{})
	assert.ErrorIs(t, err, structured.ErrMalformedOutput)
}

func TestNormalize_MultipleStylesNotShared(t *testing.T) {
	m := &artifact.Manifest{Specs: []artifact.Spec{
		{Name: "a.css", Kind: "css"},
		{Name: "b.css", Kind: "css"},
		{Name: "index.html", Kind: "html", DependsOn: []string{" a.css ", "a.css", ""}},
	}}
	require.NoError(t, Normalize(m))
	idx, _ := m.Spec("index.html")
	assert.Equal(t, []string{"a.css"}, idx.DependsOn)
}
