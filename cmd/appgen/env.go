package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/jorge-barreto/appgen/internal/completion"
	"github.com/jorge-barreto/appgen/internal/config"
	"github.com/jorge-barreto/appgen/internal/logging"
	"github.com/jorge-barreto/appgen/internal/metrics"
	"github.com/jorge-barreto/appgen/internal/pipeline"
	"github.com/jorge-barreto/appgen/internal/progress"
	"github.com/jorge-barreto/appgen/internal/state"
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "Config file (default: .appgen/config.yaml in this or a parent directory)"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Log at debug level to stderr"},
	}
}

// environment is what every command needs once flags are parsed.
type environment struct {
	cfg *config.Config
	log *zap.Logger
}

func setup(cmd *cli.Command) (*environment, error) {
	path := cmd.String("config")
	root, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if path == "" {
		if found, ok := findProjectRoot(root); ok {
			root = found
		}
		path = filepath.Join(root, config.DefaultPath)
	} else {
		root = filepath.Dir(filepath.Dir(path))
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.StateDir = resolve(root, cfg.StateDir)
	cfg.OutputDir = resolve(root, cfg.OutputDir)

	if err := state.EnsureDir(cfg.StateDir); err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.LogLevel, cmd.Bool("verbose"), filepath.Join(cfg.StateDir, "appgen.log"))
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, log: log}, nil
}

func (e *environment) close() {
	_ = e.log.Sync()
}

// client builds the configured backend behind the retrying client.
func (e *environment) client(rec *metrics.Recorder) (*completion.Client, error) {
	var backend completion.Capability
	switch e.cfg.Backend {
	case "claude":
		c := &completion.ClaudeCLI{Binary: e.cfg.ClaudeBinary, Model: e.cfg.Model}
		if err := c.Preflight(); err != nil {
			return nil, err
		}
		backend = c
	default:
		key := e.cfg.ResolveAPIKey()
		if key == "" && e.cfg.BaseURL == "" {
			return nil, errors.New("no API key: set api-key in the config or export OPENAI_API_KEY")
		}
		backend = completion.NewOpenAI(key, e.cfg.BaseURL, e.cfg.Model)
	}
	return completion.New(backend, e.cfg.CompletionSettings(),
		completion.WithLogger(e.log), completion.WithMetrics(rec)), nil
}

func orchestratorOptions(cfg *config.Config, log *zap.Logger) []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithRegenerate(cfg.Regenerate),
		pipeline.WithReconcile(cfg.Reconcile),
		pipeline.WithStrictPlanning(cfg.StrictPlanning),
		pipeline.WithLogger(log),
	}
}

// observe returns a sink that never blocks the pipeline: events are queued
// on a bus and handed to each observer by its own goroutine. drain delivers
// whatever is still queued and stops the bus.
func observe(observers ...progress.Sink) (sink progress.Sink, drain func()) {
	bus := progress.NewBus()
	for _, o := range observers {
		if o != nil {
			bus.Subscribe(o.Publish)
		}
	}
	return bus, bus.Close
}

// readRequest accepts the request text or @path to a file holding it.
func readRequest(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("request argument is required")
	}
	if name, ok := strings.CutPrefix(arg, "@"); ok {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("reading request: %w", err)
		}
		arg = string(data)
	}
	if strings.TrimSpace(arg) == "" {
		return "", errors.New("request is empty")
	}
	return arg, nil
}

func loadRecord(stateDir, id string) (*state.Record, error) {
	if id == "" {
		rec, err := state.LoadLatest(stateDir)
		if errors.Is(err, state.ErrNoRuns) {
			return nil, fmt.Errorf("no runs recorded in %s", stateDir)
		}
		return rec, err
	}
	rec, err := state.Load(stateDir, id)
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return rec, nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// findProjectRoot walks up from dir looking for .appgen/config.yaml.
func findProjectRoot(dir string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, config.DefaultPath)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
