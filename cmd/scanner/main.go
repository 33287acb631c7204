package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"opspulse_backend/internal/dispatch"
	"opspulse_backend/internal/escalation"
	"opspulse_backend/internal/events"
	"opspulse_backend/internal/scan"
	"opspulse_backend/internal/scheduler"
	"opspulse_backend/internal/settings"
	"opspulse_backend/internal/signals"
	"opspulse_backend/platform/config"
	"opspulse_backend/platform/db"
	"opspulse_backend/platform/logger"
	"opspulse_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scanner", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	// Worker-side module wiring (no HTTP handlers required).
	signalsModule := signals.NewModule(pool, val, eventBus, log)

	settingsModule, err := settings.NewModule(pool, val, log)
	if err != nil {
		log.Error("failed to initialize settings module", "error", err)
		panic("failed to initialize settings module: " + err.Error())
	}
	if err := settingsModule.Service.Seed(ctx); err != nil {
		log.Error("failed to seed domain settings", "error", err)
		panic("failed to seed domain settings: " + err.Error())
	}

	scanModule := scan.NewModule(pool, settingsModule.Service, signalsModule.Service, eventBus, log)
	dispatchModule := dispatch.NewModule(pool, signalsModule.Store, settingsModule.Service, val, eventBus, log, cfg)
	ladder := escalation.New(signalsModule.Store, settingsModule.Service, eventBus, log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	poller := scheduler.NewPoller(cfg, client, log)
	go poller.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, scanModule.Service, ladder, dispatchModule.Service, client, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
