package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jorge-barreto/appgen/internal/progress"
	"github.com/jorge-barreto/appgen/internal/ux"
)

func TestReadRequest(t *testing.T) {
	if _, err := readRequest(""); err == nil {
		t.Fatal("expected error for missing request")
	}
	got, err := readRequest("a bakery site")
	if err != nil || got != "a bakery site" {
		t.Fatalf("got %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "req.txt")
	if err := os.WriteFile(path, []byte("a portfolio\nwith a blog\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = readRequest("@" + path)
	if err != nil || got != "a portfolio\nwith a blog\n" {
		t.Fatalf("got %q, %v", got, err)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readRequest("@" + empty); err == nil {
		t.Fatal("expected error for empty request file")
	}
	if _, err := readRequest("@" + filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".appgen"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".appgen", "config.yaml"), []byte("workers: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, ok := findProjectRoot(nested)
	if !ok || got != root {
		t.Fatalf("got %q, %v; want %q", got, ok, root)
	}
	if _, ok := findProjectRoot(t.TempDir()); ok {
		t.Fatal("unexpected root found")
	}
}

func TestResolve(t *testing.T) {
	if got := resolve("/proj", "site"); got != filepath.Join("/proj", "site") {
		t.Errorf("got %q", got)
	}
	if got := resolve("/proj", "/abs/site"); got != "/abs/site" {
		t.Errorf("got %q", got)
	}
}

func TestObserve_SlowObserverDoesNotBlockPublisher(t *testing.T) {
	release := make(chan struct{})
	var got []string
	slow := progress.SinkFunc(func(e progress.Event) {
		<-release
		got = append(got, e.Detail)
	})
	var console bytes.Buffer
	sink, drain := observe(ux.NewConsole(&console), slow, nil)

	published := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			sink.Publish(progress.Event{Step: progress.StepArtifact, Artifact: fmt.Sprintf("f%d.html", i), Detail: fmt.Sprint(i), Time: time.Now()})
		}
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("publishing blocked on a slow observer")
	}

	close(release)
	drain()
	if len(got) != 50 || got[0] != "0" || got[49] != "49" {
		t.Fatalf("slow observer got %d events: %v", len(got), got)
	}
	if !strings.Contains(console.String(), "f49.html") {
		t.Fatalf("console missed events:\n%s", console.String())
	}

	sink.Publish(progress.Event{Step: progress.StepDone})
	if len(got) != 50 {
		t.Fatal("events after drain must be dropped")
	}
}
