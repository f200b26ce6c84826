package artifact

import (
	"path"
	"strings"
)

// Kind is the closed set of artifact kinds a manifest may declare.
type Kind string

const (
	KindMarkup   Kind = "markup"
	KindStyle    Kind = "style"
	KindBehavior Kind = "behavior"
)

// Kinds returns every kind in display order.
func Kinds() []Kind {
	return []Kind{KindMarkup, KindStyle, KindBehavior}
}

// Lang returns the fence language tag used when rendering content of this kind.
func (k Kind) Lang() string {
	switch k {
	case KindMarkup:
		return "html"
	case KindStyle:
		return "css"
	case KindBehavior:
		return "javascript"
	}
	return ""
}

var kindAliases = map[string]Kind{
	"markup":     KindMarkup,
	"html":       KindMarkup,
	"page":       KindMarkup,
	"style":      KindStyle,
	"css":        KindStyle,
	"stylesheet": KindStyle,
	"behavior":   KindBehavior,
	"behaviour":  KindBehavior,
	"script":     KindBehavior,
	"js":         KindBehavior,
	"javascript": KindBehavior,
}

// ParseKind maps a loosely-worded kind to a Kind. When the word is unknown the
// file extension of name decides. The second result is false if neither works.
func ParseKind(word, name string) (Kind, bool) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(word))]; ok {
		return k, true
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		return KindMarkup, true
	case ".css":
		return KindStyle, true
	case ".js", ".mjs":
		return KindBehavior, true
	}
	return "", false
}

// Features is the structured reading of the user's request. It is created once
// per run and never mutated afterwards.
type Features struct {
	Description  string   `json:"description"`
	Features     []string `json:"features"`
	Requirements []string `json:"functional_requirements"`
	UISurfaces   []string `json:"ui_components"`
	DataNeeds    []string `json:"data_requirements"`
	Degraded     bool     `json:"degraded,omitempty"`
}

// Spec is one planned file in a manifest.
type Spec struct {
	Name      string   `json:"name" validate:"required,max=128"`
	Kind      Kind     `json:"kind" validate:"required,oneof=markup style behavior"`
	Purpose   string   `json:"purpose"`
	DependsOn []string `json:"depends_on,omitempty" validate:"dive,required"`
}

// NavItem is one entry of the site navigation descriptor.
type NavItem struct {
	Label  string `json:"label" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Manifest is the planned, dependency-annotated file list for a run.
type Manifest struct {
	ProjectName        string    `json:"project_name"`
	Specs              []Spec    `json:"files" validate:"required,min=1,dive"`
	GlobalDependencies []string  `json:"dependencies,omitempty"`
	Navigation         []NavItem `json:"navigation,omitempty" validate:"dive"`
	Degraded           bool      `json:"degraded,omitempty"`
}

// Spec returns the spec with the given name.
func (m *Manifest) Spec(name string) (Spec, bool) {
	for _, s := range m.Specs {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Names returns spec names in manifest order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Specs))
	for i, s := range m.Specs {
		names[i] = s.Name
	}
	return names
}

// Status records how an artifact's content was obtained.
type Status string

const (
	StatusValid    Status = "valid"
	StatusRepaired Status = "repaired"
	StatusFallback Status = "fallback"
)

// Artifact is the generated content for one Spec.
type Artifact struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Content  string   `json:"content"`
	Status   Status   `json:"status"`
	Problems []string `json:"problems,omitempty"`
}
