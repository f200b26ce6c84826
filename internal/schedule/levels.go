// Package schedule partitions a manifest into dependency levels.
package schedule

import (
	"sort"

	"github.com/jorge-barreto/appgen/internal/artifact"
)

// Levels groups the manifest's specs so that every spec's dependencies lie in
// strictly earlier levels. Specs within a level are sorted by name.
//
// A cycle yields a ManifestError matching artifact.ErrCyclicDependency that
// names every spec left unscheduled, and no levels. Dependencies on names
// outside the manifest are reported as artifact.ErrDanglingDependency.
func Levels(m *artifact.Manifest) ([][]artifact.Spec, error) {
	if m == nil || len(m.Specs) == 0 {
		return nil, nil
	}
	specs := make(map[string]artifact.Spec, len(m.Specs))
	for _, s := range m.Specs {
		specs[s.Name] = s
	}

	// Kahn's algorithm, one frontier per level.
	pending := make(map[string]int, len(specs))
	dependents := make(map[string][]string, len(specs))
	for name, s := range specs {
		for _, dep := range s.DependsOn {
			if _, ok := specs[dep]; !ok {
				return nil, &artifact.ManifestError{
					Kind:  artifact.ErrDanglingDependency,
					Names: []string{name, dep},
					Msg:   "dependency is not in the manifest",
				}
			}
		}
		deps := uniq(s.DependsOn)
		pending[name] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var frontier []string
	for name, n := range pending {
		if n == 0 {
			frontier = append(frontier, name)
		}
	}

	var levels [][]artifact.Spec
	scheduled := 0
	for len(frontier) > 0 {
		sort.Strings(frontier)
		level := make([]artifact.Spec, 0, len(frontier))
		var next []string
		for _, name := range frontier {
			level = append(level, specs[name])
			for _, d := range dependents[name] {
				pending[d]--
				if pending[d] == 0 {
					next = append(next, d)
				}
			}
		}
		levels = append(levels, level)
		scheduled += len(frontier)
		frontier = next
	}

	if scheduled < len(specs) {
		var stuck []string
		for name, n := range pending {
			if n > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, &artifact.ManifestError{
			Kind:  artifact.ErrCyclicDependency,
			Names: stuck,
			Msg:   "no artifact in the remaining set has all dependencies satisfied",
		}
	}
	return levels, nil
}

func uniq(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
