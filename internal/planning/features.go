package planning

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/completion"
)

// ExtractFeatures asks for the structured reading of request. prev, when
// set, is the run being refined.
func (p *Planner) ExtractFeatures(ctx context.Context, request string, prev *Previous) (artifact.Features, error) {
	raw, err := p.client.Complete(ctx, buildFeaturesPrompt(request, prev), completion.Options{Purpose: "features"})
	if err != nil {
		return artifact.Features{}, fmt.Errorf("extracting features: %w", err)
	}

	res, ok, err := p.extract("features", raw,
		"description", "features", "functional_requirements", "ui_components", "data_requirements")
	if err != nil {
		return artifact.Features{}, fmt.Errorf("extracting features: %w", err)
	}
	if !ok {
		return DefaultFeatures(request), nil
	}

	obj := res.Object()
	if obj == nil {
		// A bare list is read as the feature names.
		obj = map[string]any{"features": res.Value}
	}
	f := artifact.Features{
		Description:  str(first(obj, "description", "summary")),
		Features:     stringList(first(obj, "features", "feature_list")),
		Requirements: stringList(first(obj, "functional_requirements", "requirements")),
		UISurfaces:   stringList(first(obj, "ui_components", "ui_surfaces", "ui")),
		DataNeeds:    stringList(first(obj, "data_requirements", "data_needs", "data")),
		Degraded:     res.Degraded,
	}
	if f.Description == "" {
		f.Description = strings.TrimSpace(request)
	}
	p.log.Info("features extracted",
		zap.Int("features", len(f.Features)),
		zap.Int("requirements", len(f.Requirements)),
		zap.Bool("degraded", f.Degraded))
	return f, nil
}

// DefaultFeatures builds the degraded FeatureSpec used when the model's
// answer cannot be read: the request itself is the description.
func DefaultFeatures(request string) artifact.Features {
	return artifact.Features{
		Description: strings.TrimSpace(request),
		Degraded:    true,
	}
}

func first(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return fmt.Sprint(t)
	}
	return ""
}

// stringList flattens a list whose items may be strings or small objects
// such as {"name": ..., "description": ...}.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
		return nil
	case []any:
		var out []string
		for _, item := range t {
			var s string
			if o, ok := item.(map[string]any); ok {
				s = str(first(o, "name", "title", "label", "description"))
			} else {
				s = str(item)
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
