package ux

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/progress"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("15:04:05")
}

// Console renders progress events as timestamped terminal lines. It is a
// progress.Sink and may be published to from several goroutines.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Publish(e progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := fmt.Sprintf("%s[%s]%s", Dim, timestamp(e.Time), Reset)

	switch e.Step {
	case progress.StepGenerating:
		fmt.Fprintf(c.w, "\n%s %s══════════════════════════════════════%s\n", ts, Cyan, Reset)
		fmt.Fprintf(c.w, "%s  %sGenerating %s%s\n", ts, Bold, e.Detail, Reset)
	case progress.StepArtifact:
		fmt.Fprintf(c.w, "%s    %s %s %s%s%s\n", ts, statusMark(e.Status), e.Artifact, Dim, e.Detail, Reset)
	case progress.StepDone:
		fmt.Fprintf(c.w, "\n%s  %s%s══ Done: %s ══%s\n\n", ts, Bold, Green, e.Detail, Reset)
	case progress.StepFailed:
		fmt.Fprintf(c.w, "%s  %s✗ Failed: %s%s\n", ts, Red, e.Detail, Reset)
	case progress.StepCancelled:
		fmt.Fprintf(c.w, "%s  %s– %s%s\n", ts, Yellow, e.Detail, Reset)
	default:
		fmt.Fprintf(c.w, "%s  %s%s%s %s\n", ts, Bold, title(e.Step), Reset, e.Detail)
	}
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func statusMark(s artifact.Status) string {
	switch s {
	case artifact.StatusValid:
		return Green + "✓" + Reset
	case artifact.StatusRepaired:
		return Yellow + "~" + Reset
	case artifact.StatusFallback:
		return Red + "!" + Reset
	}
	return " "
}

// DryRunPrint prints the planned levels without generating anything.
func DryRunPrint(w io.Writer, m *artifact.Manifest, levels [][]artifact.Spec) {
	fmt.Fprintf(w, "\n%sDry run — %s: %d artifacts in %d levels:%s\n\n", Bold, m.ProjectName, len(m.Specs), len(levels), Reset)
	for i, level := range levels {
		fmt.Fprintf(w, "  %sLevel %d%s\n", Cyan, i+1, Reset)
		for _, s := range level {
			fmt.Fprintf(w, "    %s%s%s (%s)", Bold, s.Name, Reset, s.Kind)
			if s.Purpose != "" {
				fmt.Fprintf(w, " — %s", s.Purpose)
			}
			fmt.Fprintln(w)
			if len(s.DependsOn) > 0 {
				fmt.Fprintf(w, "       depends on: %s\n", strings.Join(s.DependsOn, ", "))
			}
		}
	}
	if len(m.Navigation) > 0 {
		fmt.Fprintf(w, "\n  %sNavigation:%s", Bold, Reset)
		for _, n := range m.Navigation {
			fmt.Fprintf(w, " %s → %s;", n.Label, n.Target)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

// Warnings prints one line per fallback or repaired artifact.
func Warnings(w io.Writer, arts []artifact.Artifact) {
	for _, a := range arts {
		switch a.Status {
		case artifact.StatusFallback:
			fmt.Fprintf(w, "  %swarning:%s %s is a placeholder (%s)\n", Yellow, Reset, a.Name, firstProblem(a))
		case artifact.StatusRepaired:
			fmt.Fprintf(w, "  %snote:%s %s was repaired (%s)\n", Dim, Reset, a.Name, firstProblem(a))
		}
	}
}

func firstProblem(a artifact.Artifact) string {
	if len(a.Problems) == 0 {
		return "no details"
	}
	return a.Problems[0]
}
