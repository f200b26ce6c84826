package ux

import (
	"fmt"
	"io"

	"github.com/jorge-barreto/appgen/internal/artifact"
	"github.com/jorge-barreto/appgen/internal/state"
)

// RenderStatus prints the summary of a recorded run.
func RenderStatus(w io.Writer, rec *state.Record) {
	fmt.Fprintf(w, "%sRun:%s      %s\n", Bold, Reset, rec.ID)
	fmt.Fprintf(w, "%sRequest:%s  %s\n", Bold, Reset, rec.Request)
	switch rec.State {
	case "done":
		fmt.Fprintf(w, "%sState:%s    %s%sdone%s\n", Bold, Reset, Green, Bold, Reset)
	case "failed":
		fmt.Fprintf(w, "%sState:%s    %sfailed during %s%s: %s\n", Bold, Reset, Red, rec.FailedAt, Reset, rec.Error)
	default:
		fmt.Fprintf(w, "%sState:%s    %s\n", Bold, Reset, rec.State)
	}
	if !rec.Finished.IsZero() {
		fmt.Fprintf(w, "%sTook:%s     %s\n", Bold, Reset, state.FormatDuration(rec.Finished.Sub(rec.Started)))
	}

	if len(rec.Timing) > 0 {
		fmt.Fprintf(w, "\n%sStages:%s\n", Bold, Reset)
		for _, t := range rec.Timing {
			fmt.Fprintf(w, "  %-12s %s%s%s\n", t.Stage, Dim, t.Duration, Reset)
		}
	}

	fmt.Fprintf(w, "\n%sArtifacts:%s\n", Bold, Reset)
	if len(rec.Artifacts) == 0 {
		fmt.Fprintf(w, "  %s(none)%s\n", Dim, Reset)
	}
	reconciled := make(map[string]bool, len(rec.Reconciled))
	for _, n := range rec.Reconciled {
		reconciled[n] = true
	}
	for _, a := range rec.Artifacts {
		note := ""
		if reconciled[a.Name] {
			note = " (reconciled)"
		}
		fmt.Fprintf(w, "  %s %-28s %-9s %s%s%s\n", statusMark(a.Status), a.Name, a.Kind, Dim, string(a.Status)+note, Reset)
	}
	if counts := rec.Counts(); counts[artifact.StatusFallback] > 0 {
		fmt.Fprintf(w, "\n  %s%d placeholder artifact(s); run doctor for details%s\n", Yellow, counts[artifact.StatusFallback], Reset)
	}
	if rec.OutputDir != "" {
		fmt.Fprintf(w, "\n%sOutput:%s   %s\n", Bold, Reset, rec.OutputDir)
	}
	fmt.Fprintln(w)
}
