package artifact

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrManifest           = errors.New("invalid manifest")
	ErrInvalidSpec        = errors.New("invalid artifact spec")
	ErrDanglingDependency = errors.New("dangling dependency")
	ErrCyclicDependency   = errors.New("cyclic dependency")
)

// ManifestError reports a manifest that cannot be executed. It matches both
// ErrManifest and its Kind with errors.Is.
type ManifestError struct {
	Kind  error
	Names []string
	Msg   string
}

func (e *ManifestError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(ErrManifest.Error())
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Names) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Names, ", "))
	}
	return b.String()
}

func (e *ManifestError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrManifest}
	}
	return []error{ErrManifest, e.Kind}
}

func manifestErrorf(kind error, names []string, format string, args ...any) error {
	return &ManifestError{Kind: kind, Names: names, Msg: fmt.Sprintf(format, args...)}
}
