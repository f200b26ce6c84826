package artifact

import (
	"fmt"
	"sort"
	"sync"
)

// Set is a name-keyed artifact map that accepts exactly one write per name.
// Inserts are safe from concurrent goroutines.
type Set struct {
	mu    sync.RWMutex
	items map[string]Artifact
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{items: make(map[string]Artifact)}
}

// Put stores a. Writing a name twice is an error and leaves the first value in place.
func (s *Set) Put(a Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[a.Name]; ok {
		return fmt.Errorf("artifact %q already produced", a.Name)
	}
	s.items[a.Name] = a
	return nil
}

// Get returns the artifact stored under name.
func (s *Set) Get(name string) (Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[name]
	return a, ok
}

// Len returns the number of stored artifacts.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subset copies the named artifacts that are present.
func (s *Set) Subset(names []string) map[string]Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Artifact, len(names))
	for _, n := range names {
		if a, ok := s.items[n]; ok {
			out[n] = a
		}
	}
	return out
}

// Snapshot copies every stored artifact.
func (s *Set) Snapshot() map[string]Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Artifact, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

// Sorted returns the stored artifacts ordered by name.
func (s *Set) Sorted() []Artifact {
	snap := s.Snapshot()
	out := make([]Artifact, 0, len(snap))
	for _, a := range snap {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Files returns name → content for publishing.
func (s *Set) Files() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.items))
	for k, v := range s.items {
		out[k] = v.Content
	}
	return out
}
