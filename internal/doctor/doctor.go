package doctor

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/completion"
	"github.com/jorge-barreto/appgen/internal/progress"
	"github.com/jorge-barreto/appgen/internal/state"
	"github.com/jorge-barreto/appgen/internal/ux"
)

const maxEvents = 200

const diagPrompt = `You are diagnosing a run of a static web application generator. The generator extracts features from a request, plans a file manifest, generates each file level by level, and finally reconciles cross-file references.

## Run
%s

## Plan
%s

## Artifacts
%s

## Progress Log (last %d events)
%s
Instructions:
1. Identify what went wrong: a planning failure, generation that fell back to placeholders, or a cancelled run.
2. Classify it as a REQUEST problem (ambiguous or contradictory description), a CAPABILITY problem (the model was unavailable, slow or rate-limited), or a PLAN problem (bad dependencies, unknown file kinds).
3. Suggest specific fixes: rewording the request, config changes (timeout, max-attempts, rate-limit, workers, regenerate, strict-planning), or a different model.
4. Recommend the next command to run:
   - appgen generate --continue "<refinement>"  (refine the last run)
   - appgen generate "<request>"               (start over)

Be direct and concise. Focus on actionable advice.`

// NeedsDiagnosis reports whether rec ended in a way worth explaining.
func NeedsDiagnosis(rec *state.Record) bool {
	if rec.State == "failed" || rec.State == "cancelled" {
		return true
	}
	return rec.Counts()[artifact.StatusFallback] > 0
}

// Run sends the run's context to client and writes the diagnosis to w.
func Run(ctx context.Context, w io.Writer, client completion.Completer, rec *state.Record, events []progress.Event) error {
	if !NeedsDiagnosis(rec) {
		fmt.Fprintln(w, "Nothing to diagnose: the last run finished without placeholders.")
		return nil
	}

	fmt.Fprintf(w, "\n%s%s══ Doctor: diagnosing run %s (%s) ══%s\n\n", ux.Bold, ux.Cyan, rec.ID, rec.State, ux.Reset)

	answer, err := client.Complete(ctx, buildPrompt(rec, events), completion.Options{Purpose: "doctor"})
	if err != nil {
		return fmt.Errorf("diagnosing run: %w", err)
	}
	fmt.Fprintln(w, strings.TrimSpace(answer))
	fmt.Fprintln(w)
	return nil
}

func buildPrompt(rec *state.Record, events []progress.Event) string {
	return fmt.Sprintf(diagPrompt, gatherRun(rec), gatherPlan(rec), gatherArtifacts(rec), maxEvents, gatherEvents(events))
}

func gatherRun(rec *state.Record) string {
	parts := []string{
		fmt.Sprintf("Request: %s", rec.Request),
		fmt.Sprintf("Final state: %s", rec.State),
	}
	if rec.Error != "" {
		parts = append(parts, fmt.Sprintf("Stopped during: %s", rec.FailedAt))
		parts = append(parts, fmt.Sprintf("Error: %s", rec.Error))
	}
	if rec.Features.Degraded {
		parts = append(parts, "Feature extraction output was unreadable; defaults were used.")
	}
	for _, t := range rec.Timing {
		if t.Duration != "" {
			parts = append(parts, fmt.Sprintf("Stage %s took %s", t.Stage, t.Duration))
		} else {
			parts = append(parts, fmt.Sprintf("Stage %s started %s (did not complete)", t.Stage, t.Start.Format("15:04:05")))
		}
	}
	return strings.Join(parts, "\n")
}

func gatherPlan(rec *state.Record) string {
	if rec.Manifest == nil {
		return "(no manifest was produced)"
	}
	var parts []string
	if rec.Manifest.Degraded {
		parts = append(parts, "Planning output was unreadable; the default plan was used.")
	}
	for _, s := range rec.Manifest.Specs {
		line := fmt.Sprintf("- %s (%s): %s", s.Name, s.Kind, s.Purpose)
		if len(s.DependsOn) > 0 {
			line += fmt.Sprintf(" [depends on %s]", strings.Join(s.DependsOn, ", "))
		}
		parts = append(parts, line)
	}
	for i, level := range rec.Levels {
		parts = append(parts, fmt.Sprintf("Level %d: %s", i+1, strings.Join(level, ", ")))
	}
	return strings.Join(parts, "\n")
}

func gatherArtifacts(rec *state.Record) string {
	if len(rec.Artifacts) == 0 {
		return "(none)"
	}
	var parts []string
	for _, a := range rec.Artifacts {
		line := fmt.Sprintf("- %s: %s", a.Name, a.Status)
		if len(a.Problems) > 0 {
			line += ": " + strings.Join(a.Problems, "; ")
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n")
}

func gatherEvents(events []progress.Event) string {
	if len(events) == 0 {
		return "(no events recorded)\n"
	}
	var b strings.Builder
	if len(events) > maxEvents {
		fmt.Fprintf(&b, "... (truncated to last %d events)\n", maxEvents)
		events = events[len(events)-maxEvents:]
	}
	for _, e := range events {
		fmt.Fprintf(&b, "%s %s", e.Time.Format("15:04:05"), e.Step)
		if e.Artifact != "" {
			fmt.Fprintf(&b, " %s", e.Artifact)
		}
		if e.Detail != "" {
			fmt.Fprintf(&b, ": %s", e.Detail)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
