package completion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openAIServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAI_OK(t *testing.T) {
	var gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if n := len(req.Messages); n > 0 {
			gotPrompt = req.Messages[n-1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"<p>hi</p>"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI("key", srv.URL+"/v1", "gpt-4o-mini")
	out, err := o.Complete(context.Background(), "make a page")
	if err != nil {
		t.Fatal(err)
	}
	if out != "<p>hi</p>" {
		t.Fatalf("out = %q", out)
	}
	if gotPrompt != "make a page" {
		t.Fatalf("prompt = %q", gotPrompt)
	}
}

func TestOpenAI_StatusClassification(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, c := range cases {
		srv := openAIServer(t, c.status, `{"error":{"message":"nope","type":"test"}}`)
		_, err := NewOpenAI("key", srv.URL+"/v1", "gpt-4o-mini").Complete(context.Background(), "p")
		if err == nil {
			t.Fatalf("status %d: expected error", c.status)
		}
		if got := errors.Is(err, ErrTransientUnavailable); got != c.transient {
			t.Fatalf("status %d: transient = %v, want %v (%v)", c.status, got, c.transient, err)
		}
		if got := errors.Is(err, ErrFatalRequest); got == c.transient {
			t.Fatalf("status %d: fatal = %v (%v)", c.status, got, err)
		}
	}
}

func TestOpenAI_EmptyChoicesTransient(t *testing.T) {
	srv := openAIServer(t, http.StatusOK, `{"id":"x","choices":[]}`)
	_, err := NewOpenAI("key", srv.URL+"/v1", "").Complete(context.Background(), "p")
	if !errors.Is(err, ErrTransientUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestOpenAI_ConnectionRefusedTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	_, err := NewOpenAI("key", url+"/v1", "gpt-4o-mini").Complete(context.Background(), "p")
	if !errors.Is(err, ErrTransientUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-claude")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClaudeCLI_PassesPromptAndModel(t *testing.T) {
	bin := writeScript(t, `printf '%s|%s|%s' "$1" "$2" "$4"`)
	c := &ClaudeCLI{Binary: bin, Model: "sonnet"}
	out, err := c.Complete(context.Background(), "build it")
	if err != nil {
		t.Fatal(err)
	}
	if out != "-p|build it|sonnet" {
		t.Fatalf("out = %q", out)
	}
}

func TestClaudeCLI_NonZeroExitTransient(t *testing.T) {
	bin := writeScript(t, "echo overloaded >&2\nexit 3")
	_, err := (&ClaudeCLI{Binary: bin}).Complete(context.Background(), "p")
	if !errors.Is(err, ErrTransientUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "code 3") || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("err = %v", err)
	}
}

func TestClaudeCLI_EmptyOutputTransient(t *testing.T) {
	bin := writeScript(t, "exit 0")
	_, err := (&ClaudeCLI{Binary: bin}).Complete(context.Background(), "p")
	if !errors.Is(err, ErrTransientUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestClaudeCLI_MissingBinaryFatal(t *testing.T) {
	c := &ClaudeCLI{Binary: filepath.Join(t.TempDir(), "no-such-claude")}
	_, err := c.Complete(context.Background(), "p")
	if !errors.Is(err, ErrFatalRequest) {
		t.Fatalf("err = %v", err)
	}
	if err := c.Preflight(); err == nil {
		t.Fatal("expected preflight failure")
	}
}

func TestClaudeCLI_Preflight(t *testing.T) {
	bin := writeScript(t, "exit 0")
	if err := (&ClaudeCLI{Binary: bin}).Preflight(); err != nil {
		t.Fatal(err)
	}
}

func TestClaudeCLI_StripsClaudeCodeEnv(t *testing.T) {
	t.Setenv("CLAUDECODE", "1")
	t.Setenv("APPGEN_TEST_MARKER", "kept")
	bin := writeScript(t, "env")
	out, err := (&ClaudeCLI{Binary: bin}).Complete(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "CLAUDECODE=") {
		t.Fatal("CLAUDECODE leaked into child environment")
	}
	if !strings.Contains(out, "APPGEN_TEST_MARKER=kept") {
		t.Fatal("expected parent environment to be inherited")
	}
}

func TestExitCode(t *testing.T) {
	if code, err := exitCode(nil); code != 0 || err != nil {
		t.Fatalf("nil: %d, %v", code, err)
	}
	other := errors.New("boom")
	if code, err := exitCode(other); code != 0 || err != other {
		t.Fatalf("other: %d, %v", code, err)
	}
}
