// Package scaffold writes a starter .appgen/ directory.
package scaffold

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jorge-barreto/appgen/internal/ux"
)

var configTemplate = `# Completion backend: openai or claude.
backend: openai
model: gpt-4o-mini
api-key: ${OPENAI_API_KEY}

# Per-attempt timeout in seconds, and retry pacing for transient failures.
timeout: 120
max-attempts: 4
backoff-ms: 500
max-backoff-ms: 8000
rate-limit: 0

# Generation.
workers: 4
regenerate: 1
reconcile: true
strict-planning: false

output-dir: site
state-dir: .appgen
log-level: info
`

// Init creates targetDir/.appgen/config.yaml. It refuses to overwrite an
// existing directory.
func Init(targetDir string, w io.Writer) error {
	dir := filepath.Join(targetDir, ".appgen")
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf(".appgen directory already exists in %s", targetDir)
	}
	if err := os.MkdirAll(filepath.Join(dir, "runs"), 0755); err != nil {
		return fmt.Errorf("creating .appgen: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config.yaml: %w", err)
	}

	fmt.Fprintf(w, "\n%s%s✓ Initialized .appgen/ directory%s\n\n", ux.Bold, ux.Green, ux.Reset)
	fmt.Fprintf(w, "  Created:\n")
	fmt.Fprintf(w, "    %s.appgen/config.yaml%s  backend, retry and generation settings\n\n", ux.Cyan, ux.Reset)
	fmt.Fprintf(w, "  Next steps:\n")
	fmt.Fprintf(w, "    1. Export %sOPENAI_API_KEY%s or switch the backend to claude\n", ux.Cyan, ux.Reset)
	fmt.Fprintf(w, "    2. Run %sappgen generate --dry-run \"a portfolio site\"%s to preview the plan\n\n", ux.Cyan, ux.Reset)
	return nil
}
