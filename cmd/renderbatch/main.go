// cmd/renderbatch/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/felix-eriksson/gtm-automation-engine/internal/assets"
	"github.com/felix-eriksson/gtm-automation-engine/internal/bus"
	"github.com/felix-eriksson/gtm-automation-engine/internal/config"
	"github.com/felix-eriksson/gtm-automation-engine/internal/hygiene"
	"github.com/felix-eriksson/gtm-automation-engine/internal/memstat"
	"github.com/felix-eriksson/gtm-automation-engine/internal/output"
	"github.com/felix-eriksson/gtm-automation-engine/internal/profile"
	"github.com/felix-eriksson/gtm-automation-engine/internal/runner"
	"github.com/felix-eriksson/gtm-automation-engine/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("render batch starting",
		"range_start", cfg.StartIndex, "range_end", cfg.EndIndex,
		"project_dir", cfg.ProjectDir, "render_bin", cfg.RenderBin,
		"render_timeout", cfg.RenderTimeout, "max_attempts", cfg.MaxAttempts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.StartDelay > 0 {
		logger.Info("delaying start", "delay", cfg.StartDelay)
		select {
		case <-ctx.Done():
			logger.Info("interrupted during start delay")
			return
		case <-time.After(cfg.StartDelay):
		}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fatal(logger, "ensure output directory", err, "output_dir", cfg.OutputDir)
	}

	tokens, err := profile.LoadTokens(cfg.IndexFile)
	if err != nil {
		logger.Warn("index file unavailable, every job uses the default profile", "err", err)
	}
	selector := profile.Selector{
		Sales:     profile.Profile{Name: "sales", ProjectFile: cfg.SalesProject},
		Solutions: profile.Profile{Name: "solutions", ProjectFile: cfg.SolutionsProject},
	}

	hyg := hygiene.New(logger)

	control := worker.NewAppControl(cfg.WorkerApp, cfg.WorkerProcSubstr, logger)
	control.ClearCaches = hyg.ClearCaches
	control.KillHelpers = hyg.KillHelpers

	invoker := &worker.Invoker{
		Bin:         cfg.RenderBin,
		Composition: cfg.Composition,
		OutputPath:  filepath.Join(cfg.OutputDir, cfg.OutputSlot),
		Timeout:     cfg.RenderTimeout,
		Logger:      logger,
	}

	var publisher runner.Publisher
	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL)
		if err != nil {
			// The bus is a handoff convenience, not a dependency of the
			// render loop itself.
			logger.Warn("handoff bus unavailable, continuing without it", "nats_url", cfg.NATSURL, "err", err)
		} else {
			logger.Info("connected to handoff bus", "nats_url", cfg.NATSURL, "subject", cfg.HandoffSubject)
			defer nc.Close()
			publisher = nc
		}
	}

	r := &runner.Runner{
		Logger:         logger,
		Control:        control,
		Invoker:        invoker,
		Hygiene:        hyg,
		Sample:         memstat.Sample,
		Select:         func(i int) profile.Profile { return selector.ForIndex(i, tokens) },
		Swap:           assets.NewSwapper(cfg.VariablesDir, logger).Swap,
		Finalizer:      output.NewFinalizer(cfg.OutputDir, cfg.OutputSlot, logger),
		CheckpointPath: cfg.CheckpointFile,
		Start:          cfg.StartIndex,
		End:            cfg.EndIndex,
		ReadyTimeout:   cfg.ReadyTimeout,
		Backoff:        cfg.RetryBackoff,
		MaxAttempts:    cfg.MaxAttempts,
		Bus:            publisher,
		Subject:        cfg.HandoffSubject,
	}

	state, err := r.Run(ctx)
	if err != nil {
		fatal(logger, "run aborted", err, "run_id", state.RunID)
	}
	logger.Info("run finished",
		"run_id", state.RunID,
		"completed", state.Completed,
		"skipped", len(state.Skipped),
		"aborted", state.Aborted,
		"elapsed", time.Since(state.StartedAt).Round(time.Second))
}

func newLogger(format string) *slog.Logger {
	if format == "pretty" {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo, TimeFormat: time.Kitchen}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}
