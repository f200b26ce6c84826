// Package docs holds the articles 'appgen docs' prints.
package docs

import (
	"fmt"
	"strings"
)

type Topic struct {
	Name    string // CLI argument
	Title   string
	Summary string // one line, shown in the topic list
	Content string // plain text, no ANSI
}

// All returns every topic in display order.
func All() []Topic {
	return topics
}

// Get looks a topic up by name, case-insensitively. A unique prefix also
// matches, so "conf" finds "config".
func Get(name string) (Topic, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	var matches []Topic
	for _, t := range topics {
		if t.Name == name {
			return t, nil
		}
		if name != "" && strings.HasPrefix(t.Name, name) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Topic{}, fmt.Errorf("unknown topic %q: run 'appgen docs' to list available topics", name)
	}
	names := make([]string, len(matches))
	for i, t := range matches {
		names[i] = t.Name
	}
	return Topic{}, fmt.Errorf("topic %q is ambiguous: %s", name, strings.Join(names, ", "))
}
