package completion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ClaudeCLI runs `claude -p <prompt>` as a subprocess per call.
type ClaudeCLI struct {
	// Binary defaults to "claude".
	Binary string
	Model  string
	// Dir is the working directory of the subprocess.
	Dir string
}

func (c *ClaudeCLI) binary() string {
	if c.Binary == "" {
		return "claude"
	}
	return c.Binary
}

func (c *ClaudeCLI) Complete(ctx context.Context, prompt string) (string, error) {
	path, err := exec.LookPath(c.binary())
	if err != nil {
		return "", Fatal(fmt.Errorf("claude cli: %w", err))
	}

	args := []string{"-p", prompt}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = c.Dir
	cmd.Env = childEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	code, err := exitCode(cmd.Run())
	if err != nil {
		if ctx.Err() != nil {
			return "", Transient(fmt.Errorf("claude cli: %w", ctx.Err()))
		}
		return "", Fatal(fmt.Errorf("claude cli: %w", err))
	}
	if code != 0 {
		return "", Transient(fmt.Errorf("claude cli exited with code %d: %s", code, tail(stderr.String(), 400)))
	}
	out := stdout.String()
	if strings.TrimSpace(out) == "" {
		return "", Transient(errors.New("claude cli: empty output"))
	}
	return out, nil
}

// Preflight checks that the binary is on PATH.
func (c *ClaudeCLI) Preflight() error {
	if _, err := exec.LookPath(c.binary()); err != nil {
		return fmt.Errorf("required binaries not found in PATH: %s", c.binary())
	}
	return nil
}

// exitCode extracts an exit code from a command error.
// Returns (code, nil) for ExitError, (0, err) for other errors, (0, nil) for nil.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}

// childEnv inherits the current environment minus CLAUDECODE*, which makes a
// nested claude refuse to start.
func childEnv() []string {
	var env []string
	for _, e := range os.Environ() {
		key, _, _ := strings.Cut(e, "=")
		if strings.HasPrefix(key, "CLAUDECODE") {
			continue
		}
		env = append(env, e)
	}
	return env
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
