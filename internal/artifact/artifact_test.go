package artifact

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func page(name string, deps ...string) Spec {
	return Spec{Name: name, Kind: KindMarkup, Purpose: "page", DependsOn: deps}
}

func TestParseKind_Aliases(t *testing.T) {
	cases := []struct {
		word, name string
		want       Kind
	}{
		{"HTML", "x", KindMarkup},
		{"stylesheet", "x", KindStyle},
		{"javascript", "x", KindBehavior},
		{"", "about.htm", KindMarkup},
		{"weird", "theme.css", KindStyle},
		{"", "app.mjs", KindBehavior},
	}
	for _, c := range cases {
		got, ok := ParseKind(c.word, c.name)
		if !ok || got != c.want {
			t.Fatalf("ParseKind(%q, %q) = %q, %v; want %q", c.word, c.name, got, ok, c.want)
		}
	}
	if _, ok := ParseKind("image", "logo.png"); ok {
		t.Fatal("expected unknown kind for png")
	}
}

func TestValidate_OK(t *testing.T) {
	m := &Manifest{Specs: []Spec{
		{Name: "styles.css", Kind: KindStyle},
		page("index.html", "styles.css"),
		page("pages/about.html", "styles.css"),
	}}
	if err := m.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestValidate_DanglingDependency(t *testing.T) {
	m := &Manifest{Specs: []Spec{page("index.html", "missing.css")}}
	err := m.Validate()
	if !errors.Is(err, ErrManifest) || !errors.Is(err, ErrDanglingDependency) {
		t.Fatalf("expected dangling dependency manifest error, got %v", err)
	}
	var me *ManifestError
	if !errors.As(err, &me) || len(me.Names) != 2 || me.Names[1] != "missing.css" {
		t.Fatalf("names = %+v", me)
	}
}

func TestValidate_SelfReference(t *testing.T) {
	m := &Manifest{Specs: []Spec{page("index.html", "index.html")}}
	if err := m.Validate(); !errors.Is(err, ErrDanglingDependency) {
		t.Fatalf("got %v", err)
	}
}

func TestValidate_Duplicate(t *testing.T) {
	m := &Manifest{Specs: []Spec{page("index.html"), page("index.html")}}
	if err := m.Validate(); !errors.Is(err, ErrInvalidSpec) {
		t.Fatalf("got %v", err)
	}
}

func TestValidate_BadKind(t *testing.T) {
	m := &Manifest{Specs: []Spec{{Name: "a.txt", Kind: "text"}}}
	if err := m.Validate(); !errors.Is(err, ErrInvalidSpec) {
		t.Fatalf("got %v", err)
	}
}

func TestValidate_Empty(t *testing.T) {
	if err := (&Manifest{}).Validate(); !errors.Is(err, ErrManifest) {
		t.Fatalf("got %v", err)
	}
}

func TestValidate_UnsafeNames(t *testing.T) {
	for _, name := range []string{"../escape.html", "/abs.html", "a//b.html", "./x.html", " pad.html"} {
		m := &Manifest{Specs: []Spec{page(name)}}
		if err := m.Validate(); !errors.Is(err, ErrInvalidSpec) {
			t.Fatalf("%q: got %v", name, err)
		}
	}
}

func TestSet_WriteOnce(t *testing.T) {
	s := NewSet()
	if err := s.Put(Artifact{Name: "a", Content: "1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(Artifact{Name: "a", Content: "2"}); err == nil {
		t.Fatal("expected second write to fail")
	}
	got, _ := s.Get("a")
	if got.Content != "1" {
		t.Fatalf("content = %q", got.Content)
	}
}

func TestSet_ConcurrentDisjointPuts(t *testing.T) {
	s := NewSet()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Put(Artifact{Name: fmt.Sprintf("f%02d", i)}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Fatalf("len = %d", s.Len())
	}
	sorted := s.Sorted()
	if sorted[0].Name != "f00" || sorted[49].Name != "f49" {
		t.Fatalf("unexpected order: %s..%s", sorted[0].Name, sorted[49].Name)
	}
}
