package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "time/tzdata"

	"ease_academy_api/internal/app"
	"ease_academy_api/internal/config"
	"ease_academy_api/internal/fees"
	"ease_academy_api/internal/logger"
	"ease_academy_api/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.Must(cfg.Debug).Named("worker")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialise application", zap.Error(err))
	}
	defer a.Close(context.Background())

	deps, err := a.TaskDependencies(ctx)
	if err != nil {
		log.Fatal("failed to initialise delivery channels", zap.Error(err))
	}

	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry, deps)
	fees.RegisterTasks(registry, a.Fees, log.Named("fees"))

	runner := tasks.NewRunner(a.Outbox, registry, a.Cache, log)

	log.Info("worker started", zap.Duration("interval", cfg.WorkerInterval))

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	// run once at startup so a fresh deploy does not wait a full interval
	tick(ctx, runner, log)
	for {
		select {
		case <-ticker.C:
			tick(ctx, runner, log)
		case <-ctx.Done():
			log.Info("shutting down worker")
			return
		}
	}
}

func tick(ctx context.Context, runner *tasks.Runner, log *zap.Logger) {
	if n := runner.ProcessDue(ctx); n > 0 {
		log.Info("processed due tasks", zap.Int("count", n))
	}
}
