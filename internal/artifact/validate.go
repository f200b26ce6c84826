package artifact

import (
	"errors"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field rules and the dependency graph edges of the manifest.
// Cycles are left to the scheduler, which needs the full graph walk anyway.
func (m *Manifest) Validate() error {
	if m == nil {
		return manifestErrorf(ErrInvalidSpec, nil, "manifest is empty")
	}
	if err := structValidate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
			return manifestErrorf(ErrInvalidSpec, fields, "field validation failed")
		}
		return manifestErrorf(ErrInvalidSpec, nil, "%v", err)
	}

	seen := make(map[string]bool, len(m.Specs))
	for _, s := range m.Specs {
		if seen[s.Name] {
			return manifestErrorf(ErrInvalidSpec, []string{s.Name}, "duplicate artifact name")
		}
		seen[s.Name] = true
		if !safeName(s.Name) {
			return manifestErrorf(ErrInvalidSpec, []string{s.Name}, "artifact name must be a relative path without '..'")
		}
	}

	for _, s := range m.Specs {
		for _, dep := range s.DependsOn {
			if dep == s.Name {
				return manifestErrorf(ErrDanglingDependency, []string{s.Name}, "artifact depends on itself")
			}
			if !seen[dep] {
				return manifestErrorf(ErrDanglingDependency, []string{s.Name, dep}, "%q depends on unknown artifact %q", s.Name, dep)
			}
		}
	}
	return nil
}

func safeName(name string) bool {
	if strings.TrimSpace(name) != name || name == "" {
		return false
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." || part == "." || part == "" {
			return false
		}
	}
	return path.Clean(name) == name
}
