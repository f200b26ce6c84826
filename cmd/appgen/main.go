package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/jorge-barreto/appgen/internal/docs"
	"github.com/jorge-barreto/appgen/internal/doctor"
	"github.com/jorge-barreto/appgen/internal/filestore"
	"github.com/jorge-barreto/appgen/internal/metrics"
	"github.com/jorge-barreto/appgen/internal/pipeline"
	"github.com/jorge-barreto/appgen/internal/progress"
	"github.com/jorge-barreto/appgen/internal/scaffold"
	"github.com/jorge-barreto/appgen/internal/server"
	"github.com/jorge-barreto/appgen/internal/state"
	"github.com/jorge-barreto/appgen/internal/ux"
)

func main() {
	app := &cli.Command{
		Name:        "appgen",
		Usage:       "Generate static web applications from a description",
		Description: "Run 'appgen docs' for documentation on configuration, pipeline stages, and the server.",
		Commands: []*cli.Command{
			initCmd(),
			generateCmd(),
			statusCmd(),
			doctorCmd(),
			serveCmd(),
			docsCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func generateCmd() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate a site from a request",
		ArgsUsage: "<request | @file>",
		Flags: append(commonFlags(),
			&cli.StringFlag{Name: "out", Usage: "Output directory (overrides output-dir)"},
			&cli.IntFlag{Name: "workers", Usage: "Concurrent generation calls per level"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the planned levels without generating"},
			&cli.BoolFlag{Name: "no-reconcile", Usage: "Skip the consistency pass"},
			&cli.BoolFlag{Name: "continue", Usage: "Refine the most recent run"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			text, err := readRequest(cmd.Args().First())
			if err != nil {
				return err
			}

			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			cfg := env.cfg
			if out := cmd.String("out"); out != "" {
				cfg.OutputDir = out
			}
			if n := int(cmd.Int("workers")); n > 0 {
				cfg.Workers = n
			}
			if cmd.Bool("no-reconcile") {
				cfg.Reconcile = false
			}

			req := pipeline.Request{Text: text}
			if cmd.Bool("continue") {
				prev, err := state.LoadLatest(cfg.StateDir)
				if errors.Is(err, state.ErrNoRuns) {
					return fmt.Errorf("--continue: no previous run in %s", cfg.StateDir)
				}
				if err != nil {
					return fmt.Errorf("loading previous run: %w", err)
				}
				req.Previous = pipeline.FromRecord(prev)
			}

			client, err := env.client(nil)
			if err != nil {
				return err
			}
			history, err := state.OpenHistory(cfg.StateDir, env.log)
			if err != nil {
				return err
			}
			defer history.Close()

			dryRun := cmd.Bool("dry-run")
			orch := pipeline.New(client, append(orchestratorOptions(cfg, env.log), pipeline.WithDryRun(dryRun))...)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			sink, drain := observe(ux.NewConsole(os.Stdout), history)
			run, runErr := orch.GenerateComplete(ctx, req, sink)
			drain()
			if dryRun && runErr == nil {
				ux.DryRunPrint(os.Stdout, run.Manifest, run.Levels)
				return nil
			}

			rec := run.Record()
			if run.State == pipeline.StateDone {
				store, err := filestore.NewOS(cfg.OutputDir, env.log)
				if err != nil {
					return err
				}
				if err := store.Publish(run.Artifacts.Files()); err != nil {
					return fmt.Errorf("publishing %s: %w", cfg.OutputDir, err)
				}
				rec.OutputDir = cfg.OutputDir
			}
			if err := rec.Save(cfg.StateDir); err != nil {
				return fmt.Errorf("saving run record: %w", err)
			}

			ux.Warnings(os.Stdout, run.Artifacts.Sorted())
			if runErr != nil {
				fmt.Fprintf(os.Stdout, "\n  Run %sappgen doctor%s for a diagnosis.\n\n", ux.Cyan, ux.Reset)
				return runErr
			}
			fmt.Fprintf(os.Stdout, "\n  %s%s✓ Published to %s%s\n\n", ux.Bold, ux.Green, cfg.OutputDir, ux.Reset)
			return nil
		},
	}
}

func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the outcome of a run",
		ArgsUsage: "[run-id]",
		Flags: append(commonFlags(),
			&cli.BoolFlag{Name: "list", Usage: "List every recorded run"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			if cmd.Bool("list") {
				recs, err := state.List(env.cfg.StateDir)
				if err != nil {
					return err
				}
				for _, r := range recs {
					fmt.Printf("  %s  %-10s  %s  %s\n", r.ID, r.State, r.Started.Format(time.DateTime), r.Request)
				}
				return nil
			}

			rec, err := loadRecord(env.cfg.StateDir, cmd.Args().First())
			if err != nil {
				return err
			}
			ux.RenderStatus(os.Stdout, rec)
			return nil
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "Diagnose a failed or degraded run using AI",
		ArgsUsage: "[run-id]",
		Flags:     commonFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			rec, err := loadRecord(env.cfg.StateDir, cmd.Args().First())
			if err != nil {
				return err
			}
			events, err := state.ReadHistory(env.cfg.StateDir, rec.ID)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			client, err := env.client(nil)
			if err != nil {
				return err
			}
			return doctor.Run(ctx, os.Stdout, client, rec, events)
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve runs, live progress, and metrics over HTTP",
		Flags: append(commonFlags(),
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "Listen address"},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.close()
			cfg := env.cfg

			rec := metrics.New(prometheus.DefaultRegisterer)
			client, err := env.client(rec)
			if err != nil {
				return err
			}
			history, err := state.OpenHistory(cfg.StateDir, env.log)
			if err != nil {
				return err
			}
			defer history.Close()
			store, err := filestore.NewOS(cfg.OutputDir, env.log)
			if err != nil {
				return err
			}

			bus := progress.NewBus()
			defer bus.Close()
			orch := pipeline.New(client, append(orchestratorOptions(cfg, env.log), pipeline.WithMetrics(rec))...)
			srv := server.New(orch, bus, cfg.StateDir,
				server.WithPublisher(store),
				server.WithHistory(history),
				server.WithLogger(env.log))

			httpSrv := &http.Server{Addr: cmd.String("addr"), Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- httpSrv.ListenAndServe() }()
			env.log.Info("listening", zap.String("addr", httpSrv.Addr))
			fmt.Printf("\n  %sappgen serving on %s%s\n\n", ux.Bold, httpSrv.Addr, ux.Reset)

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				env.log.Warn("http shutdown", zap.Error(err))
			}
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new .appgen/ directory with a starter config",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return scaffold.Init(dir, os.Stdout)
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				fmt.Print("\nAvailable topics:\n\n")
				for _, t := range docs.All() {
					fmt.Printf("  %-14s %s\n", t.Name, t.Summary)
				}
				fmt.Println("\nRun 'appgen docs <topic>' to read a topic.")
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}
